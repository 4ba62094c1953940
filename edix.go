package edix

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/edix/addr"
	"github.com/hupe1980/edix/bitmap"
	"github.com/hupe1980/edix/blobstore"
	"github.com/hupe1980/edix/bucketfile"
	"github.com/hupe1980/edix/indexfile"
	"github.com/hupe1980/edix/loader"
	"github.com/hupe1980/edix/manifest"
)

// Engine is the top-level client over one published snapshot. It is safe
// for concurrent use; all mutable state lives in the loaders, which are
// internally synchronized.
type Engine struct {
	logger  *Logger
	metrics MetricsCollector

	manifest *manifest.Manifest
	resolver *addr.Resolver

	indexes *loader.IndexLoader
	buckets *loader.BucketLoader

	searchLimit         int
	prefetchConcurrency int
}

// Match is one search hit: a key and the size of its record set. The
// underlying bitmap is decoded lazily via GlobalIndices.
type Match struct {
	// Key is the matched search key.
	Key string

	// Count is the number of records behind this key, computed from the
	// bitmap header without materializing the set.
	Count uint32

	file  *indexfile.File
	entry indexfile.Entry
}

// GlobalIndices decodes the match's bitmap into global record indices,
// ascending. A negative limit decodes all of them; otherwise decoding
// stops once limit values are collected.
func (m Match) GlobalIndices(limit int) ([]uint32, error) {
	indices, err := bitmap.DecodeLimit(m.file.BitmapBytes(m.entry), limit)
	if err != nil {
		return nil, translateError(err)
	}
	return indices, nil
}

// Record is one fully resolved entry.
type Record struct {
	// GlobalIndex is the record's rank across all buckets.
	GlobalIndex uint32
	// Bucket and LocalIndex locate the record within its shard.
	Bucket     byte
	LocalIndex uint32
	// ID is the record identifier in canonical hex form.
	ID string
	// Vendor is the vendor name when the shard format carries one.
	Vendor string
	// Payload is the raw EDID bytes.
	Payload []byte
}

// Open loads and validates the snapshot manifest from the store and
// returns an Engine bound to it. No shard or index files are fetched until
// first use.
func Open(ctx context.Context, store blobstore.Store, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	m, err := manifest.Load(ctx, store, o.manifestName, o.codec)
	if err != nil {
		return nil, translateError(err)
	}
	resolver, err := m.Resolver()
	if err != nil {
		return nil, translateError(err)
	}

	e := &Engine{
		logger:              o.logger,
		metrics:             o.metrics,
		manifest:            m,
		resolver:            resolver,
		searchLimit:         o.searchLimit,
		prefetchConcurrency: o.prefetchConcurrency,
	}

	progress := e.progressHook(ctx, o.progress)
	loaderOpts := []loader.Option{loader.WithProgress(progress)}
	bucketOpts := loaderOpts
	if o.debugChecks {
		bucketOpts = append([]loader.Option{loader.WithOrderingCheck()}, loaderOpts...)
	}

	e.indexes = loader.NewIndexLoader(store, loaderOpts...)
	e.buckets = loader.NewBucketLoader(store, bucketOpts...)

	e.logger.InfoContext(ctx, "snapshot opened",
		"version", m.Version,
		"total_entries", m.TotalEntries,
		"dimensions", m.Dimensions,
	)

	return e, nil
}

// progressHook fans loader events out to metrics, logging and the optional
// user callback.
func (e *Engine) progressHook(ctx context.Context, user loader.ProgressFunc) loader.ProgressFunc {
	return func(ev loader.Event) {
		switch ev.Kind {
		case loader.EventDone:
			e.metrics.RecordLoad(ev.Name, ev.Bytes, nil)
			e.logger.LogLoad(ctx, ev.Name, ev.Bytes, nil)
		case loader.EventFailed:
			e.metrics.RecordLoad(ev.Name, 0, ev.Err)
			e.logger.LogLoad(ctx, ev.Name, 0, ev.Err)
		}
		if user != nil {
			user(ev)
		}
	}
}

// Manifest returns the snapshot manifest.
func (e *Engine) Manifest() *manifest.Manifest { return e.manifest }

// TotalEntries returns the record count across all buckets.
func (e *Engine) TotalEntries() uint32 { return e.resolver.Total() }

// Search loads the index file for the dimension (at most once) and runs a
// ranked substring search over its keys: exact match first, then prefix
// matches, then remaining substring matches.
func (e *Engine) Search(ctx context.Context, dimension, query string) ([]Match, error) {
	start := time.Now()

	matches, err := e.search(ctx, dimension, query)

	e.metrics.RecordSearch(len(matches), time.Since(start), err)
	e.logger.LogSearch(ctx, dimension, query, len(matches), err)
	return matches, err
}

func (e *Engine) search(ctx context.Context, dimension, query string) ([]Match, error) {
	f, err := e.indexes.Load(ctx, dimension)
	if err != nil {
		return nil, translateError(err)
	}

	entries := f.Search(query)
	if e.searchLimit > 0 && len(entries) > e.searchLimit {
		entries = entries[:e.searchLimit]
	}

	matches := make([]Match, 0, len(entries))
	for _, entry := range entries {
		count, err := bitmap.Cardinality(f.BitmapBytes(entry))
		if err != nil {
			return nil, translateError(fmt.Errorf("key %q: %w", entry.Key, err))
		}
		matches = append(matches, Match{Key: entry.Key, Count: count, file: f, entry: entry})
	}
	return matches, nil
}

// ResolveGlobalIndex converts a global record index into its (bucket,
// local index) pair.
func (e *Engine) ResolveGlobalIndex(g uint32) (bucket byte, local uint32, err error) {
	bucket, local, err = e.resolver.Resolve(g)
	return bucket, local, translateError(err)
}

// GetEntry loads the bucket shard (at most once) and reconstructs the
// entry at the given local index.
func (e *Engine) GetEntry(ctx context.Context, bucket byte, local uint32) (bucketfile.Entry, error) {
	f, err := e.buckets.Load(ctx, bucket)
	if err != nil {
		return bucketfile.Entry{}, translateError(err)
	}
	entry, err := f.Entry(int(local))
	return entry, translateError(err)
}

// GetRecord resolves a global index end to end.
func (e *Engine) GetRecord(ctx context.Context, g uint32) (Record, error) {
	bucket, local, err := e.ResolveGlobalIndex(g)
	if err != nil {
		return Record{}, err
	}
	entry, err := e.GetEntry(ctx, bucket, local)
	if err != nil {
		return Record{}, err
	}
	return Record{
		GlobalIndex: g,
		Bucket:      bucket,
		LocalIndex:  local,
		ID:          entry.IDHex(),
		Vendor:      entry.Vendor(),
		Payload:     entry.Payload(),
	}, nil
}

// Lookup runs the full pipeline for the best-ranked key matching the
// query: search the dimension, decode the top match's bitmap, and resolve
// up to limit records. A negative limit resolves all of them. A query with
// no matches yields no records and no error.
func (e *Engine) Lookup(ctx context.Context, dimension, query string, limit int) ([]Record, error) {
	start := time.Now()

	records, err := e.lookup(ctx, dimension, query, limit)

	e.metrics.RecordLookup(len(records), time.Since(start), err)
	e.logger.LogLookup(ctx, dimension, query, len(records), err)
	return records, err
}

func (e *Engine) lookup(ctx context.Context, dimension, query string, limit int) ([]Record, error) {
	matches, err := e.search(ctx, dimension, query)
	if err != nil || len(matches) == 0 {
		return nil, err
	}

	indices, err := matches[0].GlobalIndices(limit)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(indices))
	for _, g := range indices {
		rec, err := e.GetRecord(ctx, g)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// PrefetchBuckets warms the bucket cache for every non-empty bucket in the
// manifest. Useful before going offline or to front-load transfer cost.
func (e *Engine) PrefetchBuckets(ctx context.Context) error {
	var prefixes []byte
	for i := 0; i < addr.NumBuckets; i++ {
		if e.resolver.BucketCount(byte(i)) > 0 {
			prefixes = append(prefixes, byte(i))
		}
	}
	return translateError(e.buckets.Prefetch(ctx, prefixes, e.prefetchConcurrency))
}
