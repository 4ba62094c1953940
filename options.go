package edix

import (
	"github.com/hupe1980/edix/codec"
	"github.com/hupe1980/edix/loader"
)

type options struct {
	codec               codec.Codec
	logger              *Logger
	metrics             MetricsCollector
	progress            loader.ProgressFunc
	manifestName        string
	debugChecks         bool
	searchLimit         int
	prefetchConcurrency int
}

func defaultOptions() *options {
	return &options{
		codec:               codec.Default,
		logger:              NoopLogger(),
		metrics:             NoopMetricsCollector{},
		manifestName:        "",
		prefetchConcurrency: 8,
	}
}

// Option configures Open behavior.
type Option func(*options)

// WithCodec configures the codec used for decoding the manifest.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetricsCollector installs a metrics sink. Defaults to no-op.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithProgress installs a progress callback for all blob transfers. Useful
// for driving loading indicators in a UI.
func WithProgress(fn loader.ProgressFunc) Option {
	return func(o *options) { o.progress = fn }
}

// WithManifestName overrides the manifest blob name
// (default "manifest.json").
func WithManifestName(name string) Option {
	return func(o *options) { o.manifestName = name }
}

// WithDebugChecks enables consistency assertions that are too expensive for
// production defaults, currently the per-bucket identifier ordering check.
// Ordering is a cross-system contract with the index builder that lookups
// cannot verify on their own; enable this when validating a new snapshot
// pipeline.
func WithDebugChecks(enabled bool) Option {
	return func(o *options) { o.debugChecks = enabled }
}

// WithSearchLimit caps the number of keys Search returns. 0 means
// unlimited.
func WithSearchLimit(n int) Option {
	return func(o *options) { o.searchLimit = n }
}

// WithPrefetchConcurrency bounds parallel transfers during PrefetchBuckets.
func WithPrefetchConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.prefetchConcurrency = n
		}
	}
}
