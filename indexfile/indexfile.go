// Package indexfile parses the on-disk search index format ("EIDX").
//
// An index file is an immutable snapshot of one search dimension (vendors,
// model names, ...). It maps UTF-8 search keys to serialized Roaring bitmaps
// of matching global record indices. The file is parsed once into an entry
// table; bitmap bytes are exposed as zero-copy views into the original
// buffer and decoded lazily by the caller.
package indexfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	// Magic is the four-byte file signature.
	Magic = "EIDX"

	// Version is the only supported format version.
	Version = 1

	headerSize = 16
	entrySize  = 12
)

var (
	// ErrInvalidMagic is returned when the file does not start with Magic.
	ErrInvalidMagic = errors.New("indexfile: invalid magic")

	// ErrUnsupportedVersion is returned for any version other than Version.
	ErrUnsupportedVersion = errors.New("indexfile: unsupported version")

	// ErrTruncated is returned when the buffer ends before the data the
	// header claims is present.
	ErrTruncated = errors.New("indexfile: truncated file")
)

// Entry is one search key with a pointer to its serialized bitmap.
type Entry struct {
	// Key is the search key exactly as stored in the file.
	Key string

	// folded is the pre-computed lower-cased key used for matching.
	folded string

	bitmapOff uint32
	bitmapLen uint16
}

// File is a parsed index file. It retains the original buffer so bitmap
// views can be handed out without copying. A File is immutable and safe for
// concurrent use.
type File struct {
	buf     []byte
	entries []Entry
}

// Parse validates the header and materializes the entry table. The buffer
// is retained by the returned File and must not be modified afterwards.
func Parse(buf []byte) (*File, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("%w: %d byte header, have %d", ErrTruncated, headerSize, len(buf))
	}
	if string(buf[:4]) != Magic {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMagic, buf[:4])
	}
	version := binary.LittleEndian.Uint16(buf[4:6])
	if version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	count := binary.LittleEndian.Uint32(buf[6:10])

	tableEnd := headerSize + int(count)*entrySize
	if tableEnd > len(buf) || tableEnd < headerSize {
		return nil, fmt.Errorf("%w: entry table needs %d bytes, have %d", ErrTruncated, tableEnd, len(buf))
	}

	entries := make([]Entry, count)
	for i := range entries {
		rec := buf[headerSize+i*entrySize:]
		strOff := binary.LittleEndian.Uint32(rec[0:4])
		strLen := binary.LittleEndian.Uint16(rec[4:6])
		bmOff := binary.LittleEndian.Uint32(rec[6:10])
		bmLen := binary.LittleEndian.Uint16(rec[10:12])

		if int64(strOff)+int64(strLen) > int64(len(buf)) {
			return nil, fmt.Errorf("%w: entry %d string at %d+%d exceeds %d bytes", ErrTruncated, i, strOff, strLen, len(buf))
		}
		if int64(bmOff)+int64(bmLen) > int64(len(buf)) {
			return nil, fmt.Errorf("%w: entry %d bitmap at %d+%d exceeds %d bytes", ErrTruncated, i, bmOff, bmLen, len(buf))
		}

		key := string(buf[strOff : strOff+uint32(strLen)])
		entries[i] = Entry{
			Key:       key,
			folded:    strings.ToLower(key),
			bitmapOff: bmOff,
			bitmapLen: bmLen,
		}
	}

	return &File{buf: buf, entries: entries}, nil
}

// Len returns the number of keys in the file.
func (f *File) Len() int { return len(f.entries) }

// Entries returns the full entry table in file order. The returned slice is
// shared; callers must not modify it.
func (f *File) Entries() []Entry { return f.entries }

// BitmapBytes returns the serialized Roaring bitmap for the entry as a
// zero-copy view into the file buffer.
func (f *File) BitmapBytes(e Entry) []byte {
	return f.buf[e.bitmapOff : uint32(e.bitmapOff)+uint32(e.bitmapLen) : uint32(e.bitmapOff)+uint32(e.bitmapLen)]
}
