package bitmap

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/require"
)

// roaringBytes serializes via the reference implementation. Without run
// containers this produces the exact-cookie no-run encoding; after
// RunOptimize it produces the portable run encoding.
func roaringBytes(t *testing.T, rb *roaring.Bitmap) []byte {
	t.Helper()
	data, err := rb.ToBytes()
	require.NoError(t, err)
	return data
}

// appendDirectory writes (key, cardinality-1) pairs.
func appendDirectory(buf *bytes.Buffer, keys []uint16, cards []int) {
	for i, k := range keys {
		_ = binary.Write(buf, binary.LittleEndian, k)
		_ = binary.Write(buf, binary.LittleEndian, uint16(cards[i]-1))
	}
}

// buildLegacyRun hand-assembles the exact-cookie run encoding: explicit
// container count, run-indicator bitmap, directory, offset header (always
// present in this producer), then run bodies.
func buildLegacyRun(keys []uint16, runs [][][2]uint16) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint32(cookieRun))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(keys)))

	flags := make([]byte, (len(keys)+7)/8)
	for i := range keys {
		flags[i/8] |= 1 << (i % 8)
	}
	buf.Write(flags)

	cards := make([]int, len(keys))
	for i, rr := range runs {
		for _, r := range rr {
			cards[i] += int(r[1]) + 1
		}
	}
	appendDirectory(&buf, keys, cards)

	buf.Write(make([]byte, len(keys)*4)) // offset header, unused by the decoder

	for _, rr := range runs {
		_ = binary.Write(&buf, binary.LittleEndian, uint16(len(rr)))
		for _, r := range rr {
			_ = binary.Write(&buf, binary.LittleEndian, r[0])
			_ = binary.Write(&buf, binary.LittleEndian, r[1])
		}
	}
	return buf.Bytes()
}

// buildPortableNoRun hand-assembles the embedded-count no-run encoding with
// array containers. Requires at least two containers so the cookie cannot
// collide with the exact value.
func buildPortableNoRun(keys []uint16, values [][]uint16) []byte {
	var buf bytes.Buffer
	cookie := uint32(cookieNoRun) | uint32(len(keys)-1)<<16
	_ = binary.Write(&buf, binary.LittleEndian, cookie)

	cards := make([]int, len(keys))
	for i, vs := range values {
		cards[i] = len(vs)
	}
	appendDirectory(&buf, keys, cards)

	if len(keys) >= noOffsetThreshold {
		buf.Write(make([]byte, len(keys)*4))
	}

	for _, vs := range values {
		for _, v := range vs {
			_ = binary.Write(&buf, binary.LittleEndian, v)
		}
	}
	return buf.Bytes()
}

func requireAscending(t *testing.T, values []uint32) {
	t.Helper()
	for i := 1; i < len(values); i++ {
		require.Less(t, values[i-1], values[i], "values must be strictly ascending at %d", i)
	}
}

func TestDecode_ReferenceNoRun(t *testing.T) {
	rb := roaring.BitmapOf(0, 1, 2, 100, 65535, 65536, 70000, 1<<20, 1<<31)
	data := roaringBytes(t, rb)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, rb.ToArray(), got)
	requireAscending(t, got)

	n, err := Cardinality(data)
	require.NoError(t, err)
	require.Equal(t, uint32(len(got)), n)
}

func TestDecode_ReferenceBitmapContainer(t *testing.T) {
	// Dense container forces the bitmap representation (> 4096 values).
	rb := roaring.New()
	for i := uint32(0); i < 5000; i++ {
		rb.Add(i * 2)
	}
	rb.Add(1 << 18)
	data := roaringBytes(t, rb)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, rb.ToArray(), got)
	requireAscending(t, got)

	n, err := Cardinality(data)
	require.NoError(t, err)
	require.Equal(t, uint32(len(got)), n)
}

func TestDecode_ReferenceRun(t *testing.T) {
	// Contiguous ranges survive RunOptimize as run containers; the sparse
	// second container stays an array, giving a mixed buffer.
	rb := roaring.New()
	rb.AddRange(10, 5000)
	rb.Add(1<<16 | 7)
	rb.Add(1<<16 | 9000)
	rb.RunOptimize()
	data := roaringBytes(t, rb)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, rb.ToArray(), got)
	requireAscending(t, got)

	n, err := Cardinality(data)
	require.NoError(t, err)
	require.Equal(t, uint32(len(got)), n)
}

func TestDecode_LegacyRun(t *testing.T) {
	data := buildLegacyRun(
		[]uint16{0, 2},
		[][][2]uint16{
			{{5, 3}, {100, 0}}, // 5..8, 100
			{{0, 1}, {50, 2}}, // 131072..131073, 131122..131124
		},
	)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, []uint32{5, 6, 7, 8, 100, 2 << 16, 2<<16 | 1, 2<<16 | 50, 2<<16 | 51, 2<<16 | 52}, got)

	n, err := Cardinality(data)
	require.NoError(t, err)
	require.Equal(t, uint32(len(got)), n)
}

func TestDecode_PortableNoRun(t *testing.T) {
	t.Run("below offset threshold", func(t *testing.T) {
		data := buildPortableNoRun(
			[]uint16{1, 3},
			[][]uint16{{0, 7, 9}, {65535}},
		)
		got, err := Decode(data)
		require.NoError(t, err)
		require.Equal(t, []uint32{1 << 16, 1<<16 | 7, 1<<16 | 9, 3<<16 | 65535}, got)
	})

	t.Run("at offset threshold", func(t *testing.T) {
		data := buildPortableNoRun(
			[]uint16{0, 1, 2, 3},
			[][]uint16{{1}, {2}, {3}, {4}},
		)
		got, err := Decode(data)
		require.NoError(t, err)
		require.Equal(t, []uint32{1, 1<<16 | 2, 2<<16 | 3, 3<<16 | 4}, got)
	})
}

func TestDecode_ArrayBitmapBoundary(t *testing.T) {
	// Exactly 4096 values stays an array container; 4097 becomes a bitmap
	// container. Both must decode to the same logical sequence.
	for _, count := range []uint32{4096, 4097} {
		rb := roaring.New()
		for i := uint32(0); i < count; i++ {
			rb.Add(i * 3)
		}
		data := roaringBytes(t, rb)

		got, err := Decode(data)
		require.NoError(t, err)
		require.Len(t, got, int(count))
		require.Equal(t, rb.ToArray(), got)

		n, err := Cardinality(data)
		require.NoError(t, err)
		require.Equal(t, count, n)
	}
}

func TestDecodeLimit(t *testing.T) {
	rb := roaring.New()
	rb.AddRange(0, 10000)
	rb.Add(1 << 20)
	rb.RunOptimize()
	data := roaringBytes(t, rb)

	full, err := Decode(data)
	require.NoError(t, err)

	for _, limit := range []int{0, 1, 100, 9999, len(full), len(full) + 5} {
		got, err := DecodeLimit(data, limit)
		require.NoError(t, err)
		want := full
		if limit < len(full) {
			want = full[:limit]
		}
		if limit == 0 {
			require.Empty(t, got)
			continue
		}
		require.Equal(t, want, got)
	}
}

func TestDecode_UnknownCookie(t *testing.T) {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint32(data, 99999)

	_, err := Decode(data)
	require.ErrorIs(t, err, ErrUnknownCookie)

	_, err = Cardinality(data)
	require.ErrorIs(t, err, ErrUnknownCookie)
}

func TestDecode_Truncated(t *testing.T) {
	rb := roaring.BitmapOf(1, 2, 3, 70000, 70001)
	valid := roaringBytes(t, rb)

	// Every proper prefix must fail cleanly, never panic or fabricate data.
	for n := 0; n < len(valid); n++ {
		_, err := Decode(valid[:n])
		require.Error(t, err, "prefix of %d bytes", n)
	}
}

func TestDecode_HugeClaimedCount(t *testing.T) {
	// A tiny buffer whose legacy directory claims 2^30 containers. The
	// count must be rejected against the remaining bytes before anything
	// is allocated from it, not trusted into a multi-GiB make().
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:], cookieNoRun)
	binary.LittleEndian.PutUint32(data[4:], 1<<30)

	_, err := Decode(data)
	require.ErrorIs(t, err, ErrTruncated)

	_, err = DecodeLimit(data, 1)
	require.ErrorIs(t, err, ErrTruncated)

	_, err = Cardinality(data)
	require.ErrorIs(t, err, ErrTruncated)

	// Same claim through the legacy run cookie.
	binary.LittleEndian.PutUint32(data[0:], cookieRun)
	_, err = Decode(data)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestCardinality_SkipsBodies(t *testing.T) {
	// A directory that promises a large bitmap container with no body
	// behind it: Cardinality must succeed (it never reads bodies), Decode
	// must fail with ErrTruncated.
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint32(cookieNoRun))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(1))
	appendDirectory(&buf, []uint16{0}, []int{5000})
	buf.Write(make([]byte, 4)) // offset header
	data := buf.Bytes()

	n, err := Cardinality(data)
	require.NoError(t, err)
	require.Equal(t, uint32(5000), n)

	_, err = Decode(data)
	require.ErrorIs(t, err, ErrTruncated)
}
