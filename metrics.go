package edix

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordSearch is called after each index search.
	// results is the number of matching keys, duration the time taken,
	// err is nil if successful.
	RecordSearch(results int, duration time.Duration, err error)

	// RecordLookup is called after each full query-to-records pipeline
	// run. records is the number of records materialized.
	RecordLookup(records int, duration time.Duration, err error)

	// RecordLoad is called after each blob transfer attempt.
	// bytes is the transferred size (0 on failure).
	RecordLoad(name string, bytes int, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordSearch(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordLookup(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordLoad(string, int, error)          {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64

	LookupCount      atomic.Int64
	LookupErrors     atomic.Int64
	LookupTotalNanos atomic.Int64

	LoadCount        atomic.Int64
	LoadErrors       atomic.Int64
	BytesTransferred atomic.Int64
}

func (c *BasicMetricsCollector) RecordSearch(_ int, d time.Duration, err error) {
	c.SearchCount.Add(1)
	c.SearchTotalNanos.Add(int64(d))
	if err != nil {
		c.SearchErrors.Add(1)
	}
}

func (c *BasicMetricsCollector) RecordLookup(_ int, d time.Duration, err error) {
	c.LookupCount.Add(1)
	c.LookupTotalNanos.Add(int64(d))
	if err != nil {
		c.LookupErrors.Add(1)
	}
}

func (c *BasicMetricsCollector) RecordLoad(_ string, bytes int, err error) {
	c.LoadCount.Add(1)
	c.BytesTransferred.Add(int64(bytes))
	if err != nil {
		c.LoadErrors.Add(1)
	}
}
