// Package loader orchestrates fetch, parse and caching of snapshot files.
//
// Each loader guarantees at-most-one outstanding transfer per key: a
// completed-result cache serves repeat calls, and an in-flight group merges
// concurrent callers onto the same pending fetch. Failures are never
// cached, so a later call re-attempts the transfer.
package loader

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/edix/blobstore"
)

// EventKind classifies a progress event.
type EventKind uint8

const (
	// EventStart fires when a transfer actually begins (cache misses only).
	EventStart EventKind = iota + 1
	// EventDone fires after a successful fetch and parse.
	EventDone
	// EventFailed fires when a fetch or parse fails.
	EventFailed
)

// Event reports loading progress for UI consumption.
type Event struct {
	// Name is the blob name being transferred.
	Name string
	// Kind is the event type.
	Kind EventKind
	// Bytes is the transferred size, set on EventDone.
	Bytes int
	// Err is set on EventFailed.
	Err error
}

// ProgressFunc receives progress events. It may be called from multiple
// goroutines and must be safe for concurrent use.
type ProgressFunc func(Event)

type config struct {
	progress       ProgressFunc
	verifyOrdering bool
}

// Option configures a loader.
type Option func(*config)

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(c *config) { c.progress = fn }
}

// WithOrderingCheck enables the debug-mode consistency assertion on bucket
// files: identifiers must ascend within each bucket. Global-index
// assignment depends on that order and nothing else can detect a
// producer/consumer disagreement.
func WithOrderingCheck() Option {
	return func(c *config) { c.verifyOrdering = true }
}

// Loader fetches, parses and caches immutable snapshot files of one kind.
type Loader[T any] struct {
	store    blobstore.Store
	blobName func(key string) string
	parse    func(key string, data []byte) (T, error)
	progress ProgressFunc

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]T
}

// New creates a Loader. blobName maps a logical key to the blob to fetch;
// parse turns the fetched bytes into the cached value.
func New[T any](store blobstore.Store, blobName func(string) string, parse func(string, []byte) (T, error), opts ...Option) *Loader[T] {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Loader[T]{
		store:    store,
		blobName: blobName,
		parse:    parse,
		progress: cfg.progress,
		cache:    make(map[string]T),
	}
}

// Load returns the parsed value for key, fetching it at most once. Callers
// arriving while a fetch for the same key is in flight share its result.
func (l *Loader[T]) Load(ctx context.Context, key string) (T, error) {
	l.mu.RLock()
	v, ok := l.cache[key]
	l.mu.RUnlock()
	if ok {
		return v, nil
	}

	res, err, _ := l.group.Do(key, func() (any, error) {
		name := l.blobName(key)
		l.emit(Event{Name: name, Kind: EventStart})

		data, err := blobstore.ReadAll(ctx, l.store, name)
		if err != nil {
			l.emit(Event{Name: name, Kind: EventFailed, Err: err})
			return nil, err
		}

		parsed, err := l.parse(key, data)
		if err != nil {
			l.emit(Event{Name: name, Kind: EventFailed, Err: err})
			return nil, err
		}

		l.mu.Lock()
		l.cache[key] = parsed
		l.mu.Unlock()

		l.emit(Event{Name: name, Kind: EventDone, Bytes: len(data)})
		return parsed, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

// Cached returns the value for key if it has already been loaded.
func (l *Loader[T]) Cached(key string) (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.cache[key]
	return v, ok
}

// Prefetch warms the cache for the given keys with bounded concurrency.
// The first error cancels the remaining fetches.
func (l *Loader[T]) Prefetch(ctx context.Context, keys []string, concurrency int) error {
	if concurrency <= 0 {
		concurrency = 8
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, key := range keys {
		g.Go(func() error {
			_, err := l.Load(ctx, key)
			return err
		})
	}
	return g.Wait()
}

func (l *Loader[T]) emit(e Event) {
	if l.progress != nil {
		l.progress(e)
	}
}
