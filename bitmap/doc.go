// Package bitmap decodes serialized Roaring bitmaps.
//
// Only the read side is implemented: the bitmaps are produced upstream by
// the index builder and consumed here as immutable byte buffers. Decoding is
// a pure function over the input slice; no state is shared between calls and
// the functions are safe for concurrent use.
//
// Two cookie families are supported: the legacy encodings that store the
// exact cookie value (12346/12347) followed by an explicit container count,
// and the portable encodings that embed the container count in the upper
// 16 bits of the cookie. See Format for the four resulting variants.
package bitmap
