package loader

import (
	"context"
	"fmt"

	"github.com/hupe1980/edix/blobstore"
	"github.com/hupe1980/edix/bucketfile"
	"github.com/hupe1980/edix/indexfile"
)

// IndexBlobName maps a search dimension to its published blob name.
func IndexBlobName(dimension string) string {
	return dimension + ".idx"
}

// BucketBlobName maps a bucket prefix byte to its published blob name.
func BucketBlobName(prefix byte) string {
	return fmt.Sprintf("buckets/%02x.bin", prefix)
}

// IndexLoader loads index files keyed by search dimension name.
type IndexLoader struct {
	*Loader[*indexfile.File]
}

// NewIndexLoader creates a loader for index files.
func NewIndexLoader(store blobstore.Store, opts ...Option) *IndexLoader {
	return &IndexLoader{
		Loader: New(store, IndexBlobName,
			func(_ string, data []byte) (*indexfile.File, error) {
				return indexfile.Parse(data)
			}, opts...),
	}
}

// BucketLoader loads bucket shards keyed by their prefix byte.
type BucketLoader struct {
	inner *Loader[*bucketfile.File]
}

// NewBucketLoader creates a loader for bucket files.
func NewBucketLoader(store blobstore.Store, opts ...Option) *BucketLoader {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	parse := func(key string, data []byte) (*bucketfile.File, error) {
		var prefix byte
		if _, err := fmt.Sscanf(key, "%02x", &prefix); err != nil {
			return nil, fmt.Errorf("loader: bad bucket key %q: %w", key, err)
		}
		f, err := bucketfile.Parse(prefix, data)
		if err != nil {
			return nil, err
		}
		if cfg.verifyOrdering {
			if err := f.VerifyOrdering(); err != nil {
				return nil, err
			}
		}
		return f, nil
	}

	blobName := func(key string) string { return "buckets/" + key + ".bin" }

	return &BucketLoader{inner: New(store, blobName, parse, opts...)}
}

// Load fetches and parses the bucket shard for the given prefix byte,
// de-duplicated the same way as any other loader key.
func (b *BucketLoader) Load(ctx context.Context, prefix byte) (*bucketfile.File, error) {
	return b.inner.Load(ctx, bucketKey(prefix))
}

// Cached returns the shard if it has already been loaded.
func (b *BucketLoader) Cached(prefix byte) (*bucketfile.File, bool) {
	return b.inner.Cached(bucketKey(prefix))
}

// Prefetch warms the cache for the given prefix bytes.
func (b *BucketLoader) Prefetch(ctx context.Context, prefixes []byte, concurrency int) error {
	keys := make([]string, len(prefixes))
	for i, p := range prefixes {
		keys[i] = bucketKey(p)
	}
	return b.inner.Prefetch(ctx, keys, concurrency)
}

func bucketKey(prefix byte) string {
	return fmt.Sprintf("%02x", prefix)
}
