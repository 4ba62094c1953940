// Package edid decodes the identity fields of raw EDID blobs.
//
// Bucket payloads are raw EDID byte blocks. This package is a standalone
// leaf: it shares no invariants with the index/bucket formats and exists so
// callers can render something human-readable (vendor, model, serial) from
// a fetched payload without a full-blown EDID toolchain.
//
// Only the base block is decoded. Extension blocks are counted and
// checksummed but otherwise opaque.
package edid

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	// BlockSize is the fixed EDID block size.
	BlockSize = 128

	// MaxBlocks bounds the number of blocks (base + extensions) accepted.
	MaxBlocks = 8
)

// headerMagic is the fixed 8-byte pattern every EDID base block starts with.
var headerMagic = []byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}

var (
	// ErrNoHeader is returned when the buffer does not start with the
	// EDID header pattern.
	ErrNoHeader = errors.New("edid: no EDID header found")

	// ErrBadSize is returned when the buffer is not a whole number of
	// blocks, is shorter than one block, or exceeds MaxBlocks.
	ErrBadSize = errors.New("edid: invalid EDID size")

	// ErrChecksum is returned when a block's bytes do not sum to zero.
	ErrChecksum = errors.New("edid: checksum mismatch")
)

// descriptor tags used in the base block's 18-byte display descriptors.
const (
	tagSerialString = 0xFF
	tagMonitorName  = 0xFC
)

// Identity holds the decoded identity fields of an EDID base block.
type Identity struct {
	// PNPID is the three-letter manufacturer identifier.
	PNPID string
	// ProductCode is the vendor-assigned product number.
	ProductCode uint16
	// SerialNumber is the 32-bit numeric serial, zero when unset.
	SerialNumber uint32
	// WeekOfManufacture is 1..54, 0 when unset, 255 means model year.
	WeekOfManufacture uint8
	// YearOfManufacture is the full year (base 1990), or the model year
	// when WeekOfManufacture is 255.
	YearOfManufacture int
	// Version and Revision are the EDID structure version, e.g. 1.4.
	Version  uint8
	Revision uint8
	// MonitorName is the display product name descriptor, "" when absent.
	MonitorName string
	// SerialString is the display serial-string descriptor, "" when absent.
	SerialString string
	// ExtensionBlocks is the declared number of extension blocks.
	ExtensionBlocks uint8
}

// Decode validates the header, size and per-block checksums, then extracts
// the base block identity fields.
func Decode(buf []byte) (*Identity, error) {
	if len(buf) < BlockSize || len(buf) > BlockSize*MaxBlocks || len(buf)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadSize, len(buf))
	}
	if !bytes.Equal(buf[:8], headerMagic) {
		return nil, ErrNoHeader
	}
	for b := 0; b*BlockSize < len(buf); b++ {
		block := buf[b*BlockSize : (b+1)*BlockSize]
		var sum uint8
		for _, v := range block {
			sum += v
		}
		if sum != 0 {
			return nil, fmt.Errorf("%w: block %d", ErrChecksum, b)
		}
	}

	id := &Identity{
		PNPID:             decodePNPID(binary.BigEndian.Uint16(buf[8:10])),
		ProductCode:       binary.LittleEndian.Uint16(buf[10:12]),
		SerialNumber:      binary.LittleEndian.Uint32(buf[12:16]),
		WeekOfManufacture: buf[16],
		YearOfManufacture: 1990 + int(buf[17]),
		Version:           buf[18],
		Revision:          buf[19],
		ExtensionBlocks:   buf[126],
	}

	// Four 18-byte descriptors at 54..125. Display descriptors are marked
	// by a zero pixel clock.
	for off := 54; off <= 108; off += 18 {
		d := buf[off : off+18]
		if d[0] != 0 || d[1] != 0 {
			continue // detailed timing, not a display descriptor
		}
		text := decodeDescriptorText(d[5:18])
		switch d[3] {
		case tagMonitorName:
			id.MonitorName = text
		case tagSerialString:
			id.SerialString = text
		}
	}

	return id, nil
}

// decodePNPID unpacks the big-endian two-byte compressed three-letter
// manufacturer ID: three 5-bit values, 1 = 'A'.
func decodePNPID(v uint16) string {
	letters := []byte{
		byte(v>>10&0x1F) + 'A' - 1,
		byte(v>>5&0x1F) + 'A' - 1,
		byte(v&0x1F) + 'A' - 1,
	}
	for _, c := range letters {
		if c < 'A' || c > 'Z' {
			return ""
		}
	}
	return string(letters)
}

// decodeDescriptorText trims the LF terminator and space padding of a
// 13-byte descriptor text field.
func decodeDescriptorText(d []byte) string {
	if i := bytes.IndexByte(d, '\n'); i >= 0 {
		d = d[:i]
	}
	return strings.TrimRight(string(d), " \x00")
}
