// Package bucketfile parses the on-disk bucket shard format ("EDIB").
//
// Records are partitioned into 256 immutable buckets by the first byte of
// their identifier; each bucket file stores the remaining key bytes, a
// packed descriptor locating the raw payload, and (depending on format
// version) auxiliary metadata. Entry order within a bucket is the order
// used upstream to assign global indices, so it is a cross-system contract:
// see VerifyOrdering.
//
// Four historical format versions coexist on disk. The version is resolved
// once at parse time into a layout; all entry accessors are version
// agnostic after that.
package bucketfile

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	// Magic is the little-endian file signature ("EDIB").
	Magic = 0x42494445

	// MinVersion and MaxVersion bound the supported format versions.
	MinVersion = 1
	MaxVersion = 4

	// MaxPayload is the largest representable payload: the packed
	// descriptor stores length/4 in one byte, so payloads are 4-byte
	// quantized and capped at 255*4.
	MaxPayload = 1020

	headerSize = 16

	legacyMetadataSize = 16
)

var (
	// ErrInvalidMagic is returned when the file does not start with Magic.
	ErrInvalidMagic = errors.New("bucketfile: invalid magic")

	// ErrUnsupportedVersion is returned for versions outside
	// [MinVersion, MaxVersion].
	ErrUnsupportedVersion = errors.New("bucketfile: unsupported version")

	// ErrTruncated is returned when the buffer ends before the data the
	// header claims is present.
	ErrTruncated = errors.New("bucketfile: truncated file")

	// ErrOutOfRange is returned for a local index outside [0, Len()).
	ErrOutOfRange = errors.New("bucketfile: local index out of range")

	// ErrUnordered is returned by VerifyOrdering when entry identifiers
	// are not strictly ascending.
	ErrUnordered = errors.New("bucketfile: entries out of order")
)

// layout carries the per-version format constants, selected once at parse
// time so no accessor ever branches on the version again.
type layout struct {
	keyLen         int
	hasVendorIndex bool
	hasLegacyMeta  bool
	hasVendorTable bool
}

var layouts = map[uint16]layout{
	1: {keyLen: 15, hasLegacyMeta: true},
	2: {keyLen: 15},
	3: {keyLen: 5},
	4: {keyLen: 5, hasVendorIndex: true, hasVendorTable: true},
}

// Entry is one reconstructed record: the full identifier, its raw payload
// and the vendor name when the format carries one.
type Entry struct {
	id         []byte
	vendor     string
	payload    []byte
	legacyMeta []byte
}

// ID returns the full identifier: the bucket's prefix byte followed by the
// stored key bytes (6 bytes for v3/v4 files, 16 for v1/v2).
func (e Entry) ID() []byte { return e.id }

// IDHex is the canonical hex-string form of ID.
func (e Entry) IDHex() string { return hex.EncodeToString(e.id) }

// EDIDHex is a legacy alias of IDHex kept for older callers.
//
// Deprecated: use IDHex.
func (e Entry) EDIDHex() string { return e.IDHex() }

// Vendor returns the vendor name from the v4 vendor table, or "" for
// earlier versions that do not store one.
func (e Entry) Vendor() string { return e.vendor }

// Payload returns the raw record bytes as a zero-copy view into the file
// buffer. Length is always a multiple of 4 and at most MaxPayload.
func (e Entry) Payload() []byte { return e.payload }

// LegacyMetadata returns the fixed 16-byte metadata record stored by v1
// files, or nil for later versions.
func (e Entry) LegacyMetadata() []byte { return e.legacyMeta }

// File is a parsed bucket shard. It retains the original buffer; payload
// views alias it. A File is immutable and safe for concurrent use.
type File struct {
	prefix  byte
	version uint16
	layout  layout
	buf     []byte
	count   int

	keysOff      int
	vendorIdxOff int
	metaOff      int
	descOff      int
	valuesOff    int

	vendors []string
}

// Parse validates the header, resolves the version layout, bounds-checks
// the fixed-width sections and every payload descriptor, and (for v4)
// decodes the vendor table. prefix is the leading identifier byte this
// shard was partitioned on.
func Parse(prefix byte, buf []byte) (*File, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("%w: %d byte header, have %d", ErrTruncated, headerSize, len(buf))
	}
	if magic := binary.LittleEndian.Uint32(buf[0:4]); magic != Magic {
		return nil, fmt.Errorf("%w: 0x%08x", ErrInvalidMagic, magic)
	}
	version := binary.LittleEndian.Uint16(buf[4:6])
	lay, ok := layouts[version]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	f := &File{
		prefix:    prefix,
		version:   version,
		layout:    lay,
		buf:       buf,
		count:     int(binary.LittleEndian.Uint16(buf[6:8])),
		valuesOff: int(binary.LittleEndian.Uint32(buf[8:12])),
	}

	// Fixed-width per-entry sections follow the header in a fixed order;
	// only their presence varies by version.
	off := headerSize
	f.keysOff = off
	off += f.count * lay.keyLen
	if lay.hasVendorIndex {
		f.vendorIdxOff = off
		off += f.count
	}
	if lay.hasLegacyMeta {
		f.metaOff = off
		off += f.count * legacyMetadataSize
	}
	f.descOff = off
	off += f.count * 4

	if off > len(buf) {
		return nil, fmt.Errorf("%w: entry tables need %d bytes, have %d", ErrTruncated, off, len(buf))
	}
	if f.valuesOff > len(buf) {
		return nil, fmt.Errorf("%w: values section at %d exceeds %d bytes", ErrTruncated, f.valuesOff, len(buf))
	}

	// Walk the descriptors so a file missing payload bytes is rejected
	// here rather than on first access to the affected entry.
	for i := 0; i < f.count; i++ {
		desc := binary.LittleEndian.Uint32(buf[f.descOff+i*4:])
		end := f.valuesOff + int(desc&0xFFFFFF) + int(desc>>24)*4
		if end > len(buf) {
			return nil, fmt.Errorf("%w: entry %d payload ends at %d, have %d bytes",
				ErrTruncated, i, end, len(buf))
		}
	}

	if lay.hasVendorTable {
		vendorTableOff := int(binary.LittleEndian.Uint32(buf[12:16]))
		vendors, err := parseVendorTable(buf, vendorTableOff)
		if err != nil {
			return nil, err
		}
		f.vendors = vendors
	}

	return f, nil
}

// parseVendorTable decodes the trailing vendor string table: a count byte
// followed by count length-prefixed UTF-8 strings.
func parseVendorTable(buf []byte, off int) ([]string, error) {
	if off >= len(buf) {
		return nil, fmt.Errorf("%w: vendor table at %d exceeds %d bytes", ErrTruncated, off, len(buf))
	}
	count := int(buf[off])
	off++

	vendors := make([]string, count)
	for i := 0; i < count; i++ {
		if off >= len(buf) {
			return nil, fmt.Errorf("%w: vendor table entry %d", ErrTruncated, i)
		}
		n := int(buf[off])
		off++
		if off+n > len(buf) {
			return nil, fmt.Errorf("%w: vendor table entry %d needs %d bytes", ErrTruncated, i, n)
		}
		vendors[i] = string(buf[off : off+n])
		off += n
	}
	return vendors, nil
}

// Prefix returns the leading identifier byte of this shard.
func (f *File) Prefix() byte { return f.prefix }

// Version returns the on-disk format version (1..4).
func (f *File) Version() uint16 { return f.version }

// Len returns the number of entries in the bucket.
func (f *File) Len() int { return f.count }

// Vendors returns the v4 vendor table in file order, or nil for earlier
// versions.
func (f *File) Vendors() []string { return f.vendors }

// Entry reconstructs the record at the given local index.
func (f *File) Entry(localIndex int) (Entry, error) {
	if localIndex < 0 || localIndex >= f.count {
		return Entry{}, fmt.Errorf("%w: %d of %d", ErrOutOfRange, localIndex, f.count)
	}

	id := make([]byte, 1+f.layout.keyLen)
	id[0] = f.prefix
	copy(id[1:], f.keyBytes(localIndex))

	desc := binary.LittleEndian.Uint32(f.buf[f.descOff+localIndex*4:])
	payloadOff := f.valuesOff + int(desc&0xFFFFFF)
	payloadLen := int(desc>>24) * 4
	if payloadOff+payloadLen > len(f.buf) {
		return Entry{}, fmt.Errorf("%w: entry %d payload at %d+%d exceeds %d bytes",
			ErrTruncated, localIndex, payloadOff, payloadLen, len(f.buf))
	}

	e := Entry{
		id:      id,
		payload: f.buf[payloadOff : payloadOff+payloadLen : payloadOff+payloadLen],
	}

	if f.layout.hasVendorIndex {
		vi := int(f.buf[f.vendorIdxOff+localIndex])
		if vi < len(f.vendors) {
			e.vendor = f.vendors[vi]
		}
	}
	if f.layout.hasLegacyMeta {
		off := f.metaOff + localIndex*legacyMetadataSize
		e.legacyMeta = f.buf[off : off+legacyMetadataSize : off+legacyMetadataSize]
	}

	return e, nil
}

func (f *File) keyBytes(i int) []byte {
	off := f.keysOff + i*f.layout.keyLen
	return f.buf[off : off+f.layout.keyLen]
}

// VerifyOrdering checks that identifiers ascend strictly within the bucket.
// Global-index assignment upstream depends on this order, and nothing at
// decode time can detect a disagreement, so debug builds should call this
// after parsing rather than trust the producer silently.
func (f *File) VerifyOrdering() error {
	for i := 1; i < f.count; i++ {
		if bytes.Compare(f.keyBytes(i-1), f.keyBytes(i)) >= 0 {
			return fmt.Errorf("%w: entry %d does not ascend", ErrUnordered, i)
		}
	}
	return nil
}
