package bitmap

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// reader is a bounds-checked cursor over the input buffer. Every read that
// would pass the end of the buffer fails with ErrTruncated instead of
// panicking, so corrupt or partially transferred bitmaps surface as errors.
type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) need(n int) error {
	if r.remaining() < n {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.off, r.remaining())
	}
	return nil
}

func (r *reader) skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.off += n
	return nil
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// header is the fully parsed container directory of one serialized bitmap.
// Container bodies follow it in the stream, in directory order.
type header struct {
	format   Format
	keys     []uint16
	cards    []int // actual cardinalities (stored value + 1)
	runFlags []byte
}

func (h *header) isRun(i int) bool {
	return h.runFlags != nil && h.runFlags[i/8]&(1<<(i%8)) != 0
}

// parseHeader reads the cookie, container count, run-indicator bitmap,
// key/cardinality directory, and skips the offset header when present.
// The reader is left positioned at the first container body.
func parseHeader(r *reader) (*header, error) {
	cookie, err := r.u32()
	if err != nil {
		return nil, err
	}
	format, err := detectFormat(cookie)
	if err != nil {
		return nil, err
	}

	var count int
	switch format {
	case FormatLegacyNoRun, FormatLegacyRun:
		n, err := r.u32()
		if err != nil {
			return nil, err
		}
		count = int(n)
	default:
		count = int(cookie>>16) + 1
	}

	// The count is untrusted input. Check the buffer can hold the
	// key/cardinality directory before sizing any allocation from it;
	// dividing keeps the comparison safe from int overflow.
	if count < 0 || count > r.remaining()/4 {
		return nil, fmt.Errorf("%w: directory claims %d containers, %d bytes remain",
			ErrTruncated, count, r.remaining())
	}

	h := &header{format: format}

	if format.hasRuns() {
		h.runFlags, err = r.bytes((count + 7) / 8)
		if err != nil {
			return nil, err
		}
	}

	h.keys = make([]uint16, count)
	h.cards = make([]int, count)
	for i := 0; i < count; i++ {
		key, err := r.u16()
		if err != nil {
			return nil, err
		}
		stored, err := r.u16()
		if err != nil {
			return nil, err
		}
		h.keys[i] = key
		h.cards[i] = int(stored) + 1
	}

	// The offset header holds positional hints for random container access.
	// Decoding reads containers sequentially, so it is skipped. The legacy
	// producer always writes it; the portable encodings omit it below the
	// threshold.
	hasOffsets := true
	if format == FormatPortableNoRun || format == FormatPortableRun {
		hasOffsets = count >= noOffsetThreshold
	}
	if hasOffsets {
		if err := r.skip(count * 4); err != nil {
			return nil, err
		}
	}

	return h, nil
}

// Decode fully materializes the bitmap as a strictly ascending sequence of
// 32-bit values with no duplicates.
func Decode(buf []byte) ([]uint32, error) {
	return DecodeLimit(buf, -1)
}

// DecodeLimit decodes at most limit values, stopping as soon as the limit is
// reached. The returned prefix is identical to the same-length prefix of a
// full Decode. A negative limit decodes everything.
func DecodeLimit(buf []byte, limit int) ([]uint32, error) {
	r := &reader{buf: buf}
	h, err := parseHeader(r)
	if err != nil {
		return nil, err
	}
	if limit == 0 {
		return nil, nil
	}

	total := 0
	for _, c := range h.cards {
		total += c
	}
	capacity := total
	if limit >= 0 && limit < capacity {
		capacity = limit
	}
	out := make([]uint32, 0, capacity)

	for i := range h.keys {
		base := uint32(h.keys[i]) << 16

		switch {
		case h.isRun(i):
			numRuns, err := r.u16()
			if err != nil {
				return nil, err
			}
			for j := 0; j < int(numRuns); j++ {
				start, err := r.u16()
				if err != nil {
					return nil, err
				}
				length, err := r.u16()
				if err != nil {
					return nil, err
				}
				for v := uint32(start); v <= uint32(start)+uint32(length); v++ {
					out = append(out, base|v)
					if limit >= 0 && len(out) >= limit {
						return out, nil
					}
				}
			}

		case h.cards[i] <= arrayMaxCardinality:
			body, err := r.bytes(h.cards[i] * 2)
			if err != nil {
				return nil, err
			}
			for j := 0; j < len(body); j += 2 {
				out = append(out, base|uint32(binary.LittleEndian.Uint16(body[j:])))
				if limit >= 0 && len(out) >= limit {
					return out, nil
				}
			}

		default:
			body, err := r.bytes(bitmapContainerBytes)
			if err != nil {
				return nil, err
			}
			for w := 0; w < bitmapContainerBytes/8; w++ {
				word := binary.LittleEndian.Uint64(body[w*8:])
				wordBase := base | uint32(w*64)
				for word != 0 {
					bit := bits.TrailingZeros64(word)
					out = append(out, wordBase|uint32(bit))
					if limit >= 0 && len(out) >= limit {
						return out, nil
					}
					word &= word - 1
				}
			}
		}
	}

	return out, nil
}

// Cardinality returns the number of values in the bitmap without reading
// any container bodies. For every valid input
// Cardinality(buf) == len(Decode(buf)).
func Cardinality(buf []byte) (uint32, error) {
	r := &reader{buf: buf}
	h, err := parseHeader(r)
	if err != nil {
		return 0, err
	}
	var total uint32
	for _, c := range h.cards {
		total += uint32(c)
	}
	return total, nil
}
