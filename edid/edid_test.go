package edid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildBaseBlock assembles a checksummed 128-byte base block.
func buildBaseBlock(t *testing.T, mutate func(b []byte)) []byte {
	t.Helper()
	b := make([]byte, BlockSize)
	copy(b, headerMagic)

	// "DEL" = (4,5,12) packed into two big-endian bytes.
	b[8] = 0x10
	b[9] = 0xAC
	b[10] = 0x34 // product code 0x1234 LE
	b[11] = 0x12
	b[12] = 0x78 // serial 0x12345678 LE
	b[13] = 0x56
	b[14] = 0x34
	b[15] = 0x12
	b[16] = 23   // week
	b[17] = 32   // 1990+32 = 2022
	b[18] = 1    // version
	b[19] = 4    // revision

	if mutate != nil {
		mutate(b)
	}

	var sum uint8
	for _, v := range b[:BlockSize-1] {
		sum += v
	}
	b[BlockSize-1] = uint8(-sum)
	return b
}

func setDescriptorText(b []byte, slot int, tag byte, text string) {
	off := 54 + slot*18
	for i := 0; i < 5; i++ {
		b[off+i] = 0
	}
	b[off+3] = tag
	field := b[off+5 : off+18]
	for i := range field {
		field[i] = ' '
	}
	n := copy(field, text)
	if n < len(field) {
		field[n] = '\n'
	}
}

func TestDecode(t *testing.T) {
	buf := buildBaseBlock(t, func(b []byte) {
		setDescriptorText(b, 1, tagMonitorName, "DELL U2723QE")
		setDescriptorText(b, 2, tagSerialString, "ABC123")
	})

	id, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, "DEL", id.PNPID)
	require.Equal(t, uint16(0x1234), id.ProductCode)
	require.Equal(t, uint32(0x12345678), id.SerialNumber)
	require.Equal(t, uint8(23), id.WeekOfManufacture)
	require.Equal(t, 2022, id.YearOfManufacture)
	require.Equal(t, uint8(1), id.Version)
	require.Equal(t, uint8(4), id.Revision)
	require.Equal(t, "DELL U2723QE", id.MonitorName)
	require.Equal(t, "ABC123", id.SerialString)
	require.Zero(t, id.ExtensionBlocks)
}

func TestDecode_BadSize(t *testing.T) {
	_, err := Decode(make([]byte, 64))
	require.ErrorIs(t, err, ErrBadSize)

	_, err = Decode(make([]byte, BlockSize+1))
	require.ErrorIs(t, err, ErrBadSize)

	_, err = Decode(make([]byte, BlockSize*(MaxBlocks+1)))
	require.ErrorIs(t, err, ErrBadSize)
}

func TestDecode_NoHeader(t *testing.T) {
	buf := buildBaseBlock(t, func(b []byte) {
		b[0] = 0xFF
	})
	_, err := Decode(buf)
	require.ErrorIs(t, err, ErrNoHeader)
}

func TestDecode_Checksum(t *testing.T) {
	buf := buildBaseBlock(t, nil)
	buf[20] ^= 0xFF

	_, err := Decode(buf)
	require.ErrorIs(t, err, ErrChecksum)
}

func TestDecode_WithExtensionBlock(t *testing.T) {
	base := buildBaseBlock(t, func(b []byte) {
		b[126] = 1
	})

	ext := make([]byte, BlockSize)
	ext[0] = 0x02 // CTA-861 tag
	var sum uint8
	for _, v := range ext[:BlockSize-1] {
		sum += v
	}
	ext[BlockSize-1] = uint8(-sum)

	id, err := Decode(append(base, ext...))
	require.NoError(t, err)
	require.Equal(t, uint8(1), id.ExtensionBlocks)
}

func TestDecodePNPID(t *testing.T) {
	require.Equal(t, "DEL", decodePNPID(0x10AC))
	require.Equal(t, "AAA", decodePNPID(1<<10|1<<5|1))
	require.Empty(t, decodePNPID(0), "zero letters are out of range")
}
