package blobstore

import (
	"bytes"
	"context"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression frame magics, all little-endian on the wire.
var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// DecompressingStore wraps a Store and transparently inflates gzip, zstd
// and lz4 frames. Snapshots are typically published pre-compressed at rest;
// the wrapper sniffs the frame magic so mixed deployments (some shards
// compressed, some not) keep working.
type DecompressingStore struct {
	inner Store
}

// NewDecompressingStore wraps inner with magic-sniffing decompression.
func NewDecompressingStore(inner Store) *DecompressingStore {
	return &DecompressingStore{inner: inner}
}

// Open opens the inner blob and, when a known compression frame is
// detected, inflates it into an in-memory handle. Unknown leading bytes
// pass through untouched.
func (s *DecompressingStore) Open(ctx context.Context, name string) (Blob, error) {
	inner, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}

	data, err := readBlob(ctx, inner)
	closeErr := inner.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, closeErr
	}

	inflated, err := inflate(data)
	if err != nil {
		return nil, err
	}
	return &memoryBlob{data: inflated}, nil
}

func readBlob(ctx context.Context, b Blob) ([]byte, error) {
	if m, ok := b.(Mappable); ok {
		if data, err := m.Bytes(); err == nil {
			out := make([]byte, len(data))
			copy(out, data)
			return out, nil
		}
	}
	out := make([]byte, b.Size())
	if len(out) == 0 {
		return out, nil
	}
	n, err := b.ReadAt(ctx, out, 0)
	if err != nil && !(err == io.EOF && int64(n) == b.Size()) {
		return nil, err
	}
	return out[:n], nil
}

func inflate(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)

	case bytes.HasPrefix(data, zstdMagic):
		r, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r.IOReadCloser())

	case bytes.HasPrefix(data, lz4Magic):
		return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))

	default:
		return data, nil
	}
}
