package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"
)

// HTTPStore fetches blobs from static-file hosting over HTTP(S). Published
// snapshots are plain files behind a CDN, so a GET per blob is the whole
// protocol. Bodies are read fully into memory; shard files are small enough
// (hundreds of KB) that range requests buy nothing.
type HTTPStore struct {
	base    *url.URL
	client  *http.Client
	limiter *rate.Limiter
}

// HTTPOption configures an HTTPStore.
type HTTPOption func(*HTTPStore)

// WithHTTPClient sets the HTTP client. Defaults to http.DefaultClient.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPStore) {
		if c != nil {
			s.client = c
		}
	}
}

// WithRateLimit throttles outgoing requests. Useful against hosts with
// per-IP request budgets.
func WithRateLimit(limit rate.Limit, burst int) HTTPOption {
	return func(s *HTTPStore) {
		s.limiter = rate.NewLimiter(limit, burst)
	}
}

// NewHTTPStore creates a store fetching relative to baseURL.
func NewHTTPStore(baseURL string, opts ...HTTPOption) (*HTTPStore, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("blobstore: invalid base URL: %w", err)
	}
	s := &HTTPStore{
		base:   base,
		client: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open fetches the blob and returns an in-memory handle to it.
func (s *HTTPStore) Open(ctx context.Context, name string) (Blob, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	ref, err := url.Parse(name)
	if err != nil {
		return nil, fmt.Errorf("blobstore: invalid blob name %q: %w", name, err)
	}
	u := s.base.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("blobstore: GET %s: unexpected status %s", u, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &memoryBlob{data: data}, nil
}
