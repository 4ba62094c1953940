// Package manifest loads and validates the published snapshot manifest.
//
// The manifest is produced by the upstream index builder alongside the
// shard files. It is the consumer's only source for the per-bucket entry
// counts that define the global index address space, so validation here is
// strict: a wrong count table silently corrupts every lookup downstream.
package manifest

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/edix/addr"
	"github.com/hupe1980/edix/blobstore"
	"github.com/hupe1980/edix/codec"
)

// DefaultFileName is the blob name the manifest is published under.
const DefaultFileName = "manifest.json"

var (
	// ErrInvalid is returned when the manifest fails validation.
	ErrInvalid = errors.New("manifest: invalid manifest")
)

// Manifest describes one published snapshot of the record corpus.
type Manifest struct {
	// Version identifies the snapshot build, informational only.
	Version string `json:"version"`

	// GeneratedAt is the builder's timestamp, informational only.
	GeneratedAt string `json:"generated_at,omitempty"`

	// TotalEntries is the record count across all buckets.
	TotalEntries uint32 `json:"total_entries"`

	// BucketCounts holds the entry count of each of the 256 buckets, in
	// bucket-id order.
	BucketCounts []uint32 `json:"bucket_counts"`

	// Dimensions lists the searchable index files included in the
	// snapshot (e.g. "vendors", "models").
	Dimensions []string `json:"dimensions,omitempty"`
}

// Parse decodes and validates a manifest document.
func Parse(data []byte, c codec.Codec) (*Manifest, error) {
	if c == nil {
		c = codec.Default
	}
	var m Manifest
	if err := c.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load fetches the manifest blob and parses it.
func Load(ctx context.Context, store blobstore.Store, name string, c codec.Codec) (*Manifest, error) {
	if name == "" {
		name = DefaultFileName
	}
	data, err := blobstore.ReadAll(ctx, store, name)
	if err != nil {
		return nil, err
	}
	return Parse(data, c)
}

// Validate checks internal consistency: exactly 256 bucket counts summing
// to TotalEntries.
func (m *Manifest) Validate() error {
	if len(m.BucketCounts) != addr.NumBuckets {
		return fmt.Errorf("%w: %d bucket counts, want %d", ErrInvalid, len(m.BucketCounts), addr.NumBuckets)
	}
	var total uint64
	for _, c := range m.BucketCounts {
		total += uint64(c)
	}
	if total != uint64(m.TotalEntries) {
		return fmt.Errorf("%w: bucket counts sum to %d, total_entries says %d", ErrInvalid, total, m.TotalEntries)
	}
	return nil
}

// Resolver builds the address resolver for this snapshot's partition.
func (m *Manifest) Resolver() (*addr.Resolver, error) {
	return addr.NewResolver(m.BucketCounts)
}
