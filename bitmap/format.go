package bitmap

import (
	"errors"
	"fmt"
)

const (
	// cookieNoRun marks a serialization without run containers.
	cookieNoRun = 12346
	// cookieRun marks a serialization that may contain run containers.
	cookieRun = 12347

	// noOffsetThreshold is the container count below which the portable
	// encodings omit the per-container offset header.
	noOffsetThreshold = 4

	// arrayMaxCardinality is the largest cardinality stored as an array
	// container; anything above is a bitmap container.
	arrayMaxCardinality = 4096

	// bitmapContainerBytes is the fixed size of a bitmap container body.
	bitmapContainerBytes = 8192
)

var (
	// ErrUnknownCookie is returned when the first four bytes do not match
	// any supported Roaring serialization.
	ErrUnknownCookie = errors.New("unknown Roaring bitmap format")

	// ErrTruncated is returned when the buffer ends before the data its
	// own header claims is present.
	ErrTruncated = errors.New("truncated Roaring bitmap")
)

// Format identifies one of the four supported serialization variants.
type Format uint8

const (
	// FormatLegacyNoRun is the exact-cookie 12346 encoding: explicit
	// container count, offset header always present, no run containers.
	FormatLegacyNoRun Format = iota + 1
	// FormatLegacyRun is the exact-cookie 12347 encoding: explicit
	// container count, run-indicator bitmap, offset header always present.
	FormatLegacyRun
	// FormatPortableNoRun embeds containerCount-1 in the cookie's upper
	// 16 bits; the offset header appears only at noOffsetThreshold or more
	// containers.
	FormatPortableNoRun
	// FormatPortableRun is FormatPortableNoRun plus a run-indicator bitmap.
	FormatPortableRun
)

// String returns a human-readable variant name.
func (f Format) String() string {
	switch f {
	case FormatLegacyNoRun:
		return "legacy"
	case FormatLegacyRun:
		return "legacy+run"
	case FormatPortableNoRun:
		return "portable"
	case FormatPortableRun:
		return "portable+run"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// hasRuns reports whether the variant carries a run-indicator bitmap.
func (f Format) hasRuns() bool {
	return f == FormatLegacyRun || f == FormatPortableRun
}

// detectFormat resolves the cookie to a Format once, up front, so the
// decode path never branches on raw cookie values again.
func detectFormat(cookie uint32) (Format, error) {
	switch {
	case cookie == cookieNoRun:
		return FormatLegacyNoRun, nil
	case cookie == cookieRun:
		return FormatLegacyRun, nil
	case cookie&0xFFFF == cookieNoRun:
		return FormatPortableNoRun, nil
	case cookie&0xFFFF == cookieRun:
		return FormatPortableRun, nil
	default:
		return 0, fmt.Errorf("%w: cookie 0x%08x", ErrUnknownCookie, cookie)
	}
}
