package addr

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewResolver_Validation(t *testing.T) {
	_, err := NewResolver(make([]uint32, 255))
	require.ErrorIs(t, err, ErrBadCounts)

	_, err = NewResolver(make([]uint32, 257))
	require.ErrorIs(t, err, ErrBadCounts)

	overflow := make([]uint32, NumBuckets)
	overflow[0] = math.MaxUint32
	overflow[1] = 1
	_, err = NewResolver(overflow)
	require.ErrorIs(t, err, ErrBadCounts)
}

func TestResolve_InverseLaw(t *testing.T) {
	// Random counts with plenty of empty buckets, the common shape for a
	// partition keyed on the first identifier byte.
	rng := rand.New(rand.NewSource(42))
	counts := make([]uint32, NumBuckets)
	for i := range counts {
		if rng.Intn(3) == 0 {
			continue // empty bucket
		}
		counts[i] = uint32(rng.Intn(50))
	}

	r, err := NewResolver(counts)
	require.NoError(t, err)

	var cumulative uint32
	cumulativeAt := make([]uint32, NumBuckets)
	for i, c := range counts {
		cumulativeAt[i] = cumulative
		cumulative += c
	}
	require.Equal(t, cumulative, r.Total())

	for g := uint32(0); g < r.Total(); g++ {
		b, l, err := r.Resolve(g)
		require.NoError(t, err)
		require.Less(t, l, counts[b], "local index within bucket %d", b)
		require.Equal(t, g, cumulativeAt[b]+l, "cumulative[b] + l == g")

		back, err := r.GlobalIndex(b, l)
		require.NoError(t, err)
		require.Equal(t, g, back)
	}
}

func TestResolve_Boundaries(t *testing.T) {
	counts := make([]uint32, NumBuckets)
	counts[0] = 3
	counts[7] = 2
	counts[255] = 1

	r, err := NewResolver(counts)
	require.NoError(t, err)
	require.Equal(t, uint32(6), r.Total())

	cases := []struct {
		g      uint32
		bucket byte
		local  uint32
	}{
		{0, 0, 0},
		{2, 0, 2},
		{3, 7, 0},
		{4, 7, 1},
		{5, 255, 0},
	}
	for _, tc := range cases {
		b, l, err := r.Resolve(tc.g)
		require.NoError(t, err)
		require.Equal(t, tc.bucket, b, "global %d", tc.g)
		require.Equal(t, tc.local, l, "global %d", tc.g)
	}

	_, _, err = r.Resolve(6)
	require.ErrorIs(t, err, ErrOutOfRange)

	_, err = r.GlobalIndex(1, 0)
	require.ErrorIs(t, err, ErrOutOfRange)
	_, err = r.GlobalIndex(0, 3)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestResolve_EmptyPartition(t *testing.T) {
	r, err := NewResolver(make([]uint32, NumBuckets))
	require.NoError(t, err)
	require.Zero(t, r.Total())

	_, _, err = r.Resolve(0)
	require.ErrorIs(t, err, ErrOutOfRange)
}
