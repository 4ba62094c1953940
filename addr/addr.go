// Package addr maps global record indices to (bucket, local index) pairs.
//
// The upstream index builder assigns every record a zero-based rank over
// the concatenation of all 256 buckets in bucket-id order, then local order
// within the bucket. Bitmaps in index files carry these global ranks; this
// package inverts the mapping using the per-bucket entry counts from the
// manifest.
package addr

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// NumBuckets is the fixed shard count of the record partition.
const NumBuckets = 256

var (
	// ErrBadCounts is returned when the bucket count table is not exactly
	// NumBuckets long or overflows the 32-bit global index space.
	ErrBadCounts = errors.New("addr: invalid bucket counts")

	// ErrOutOfRange is returned when a global index is at or beyond the
	// total entry count, or a (bucket, local) pair is outside its bucket.
	ErrOutOfRange = errors.New("addr: index out of range")
)

// Resolver converts between global indices and (bucket, local) pairs. It is
// immutable after construction and safe for concurrent use.
type Resolver struct {
	// offsets[b] is the global index of the first entry of bucket b;
	// offsets[NumBuckets] is the total entry count.
	offsets [NumBuckets + 1]uint32
}

// NewResolver builds the cumulative offset table from per-bucket entry
// counts, in bucket-id order.
func NewResolver(counts []uint32) (*Resolver, error) {
	if len(counts) != NumBuckets {
		return nil, fmt.Errorf("%w: got %d buckets, want %d", ErrBadCounts, len(counts), NumBuckets)
	}
	r := &Resolver{}
	var total uint64
	for i, c := range counts {
		total += uint64(c)
		if total > math.MaxUint32 {
			return nil, fmt.Errorf("%w: total entries overflow uint32", ErrBadCounts)
		}
		r.offsets[i+1] = uint32(total)
	}
	return r, nil
}

// Total returns the number of entries across all buckets.
func (r *Resolver) Total() uint32 { return r.offsets[NumBuckets] }

// BucketCount returns the number of entries in one bucket.
func (r *Resolver) BucketCount(bucket byte) uint32 {
	return r.offsets[int(bucket)+1] - r.offsets[bucket]
}

// Resolve converts a global index into its (bucket, local index) pair by
// binary search for the largest bucket whose first global index is not past
// g.
func (r *Resolver) Resolve(g uint32) (bucket byte, local uint32, err error) {
	if g >= r.Total() {
		return 0, 0, fmt.Errorf("%w: global index %d of %d", ErrOutOfRange, g, r.Total())
	}
	// First offset strictly greater than g, minus one, is the owning
	// bucket. offsets[0] == 0 <= g keeps the result in range.
	b := sort.Search(NumBuckets, func(i int) bool { return r.offsets[i+1] > g })
	return byte(b), g - r.offsets[b], nil
}

// GlobalIndex is the exact inverse of Resolve.
func (r *Resolver) GlobalIndex(bucket byte, local uint32) (uint32, error) {
	if local >= r.BucketCount(bucket) {
		return 0, fmt.Errorf("%w: local index %d of %d in bucket %d",
			ErrOutOfRange, local, r.BucketCount(bucket), bucket)
	}
	return r.offsets[bucket] + local, nil
}
