package loader

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/edix/blobstore"
	"github.com/hupe1980/edix/indexfile"
)

// gatedStore counts Opens and can hold them until released, so tests can
// pile up concurrent callers behind one in-flight fetch.
type gatedStore struct {
	inner blobstore.Store
	opens atomic.Int64
	gate  chan struct{}
}

func (g *gatedStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	g.opens.Add(1)
	if g.gate != nil {
		<-g.gate
	}
	return g.inner.Open(ctx, name)
}

func buildIndexBlob(t *testing.T, keys ...string) []byte {
	t.Helper()

	headerAndTable := 16 + 12*len(keys)
	var strSection bytes.Buffer
	type rec struct {
		off uint32
		n   uint16
	}
	recs := make([]rec, len(keys))
	for i, k := range keys {
		recs[i] = rec{off: uint32(headerAndTable + strSection.Len()), n: uint16(len(k))}
		strSection.WriteString(k)
	}

	var buf bytes.Buffer
	buf.WriteString(indexfile.Magic)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(indexfile.Version))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(keys)))
	buf.Write(make([]byte, 6))
	for _, r := range recs {
		_ = binary.Write(&buf, binary.LittleEndian, r.off)
		_ = binary.Write(&buf, binary.LittleEndian, r.n)
		_ = binary.Write(&buf, binary.LittleEndian, uint32(0)) // empty bitmap pointer
		_ = binary.Write(&buf, binary.LittleEndian, uint16(0))
	}
	buf.Write(strSection.Bytes())
	return buf.Bytes()
}

func TestIndexLoader_CachesResults(t *testing.T) {
	ctx := context.Background()

	mem := blobstore.NewMemoryStore()
	mem.Put("vendors.idx", buildIndexBlob(t, "Dell", "Acme"))
	store := &gatedStore{inner: mem}

	l := NewIndexLoader(store)

	f1, err := l.Load(ctx, "vendors")
	require.NoError(t, err)
	require.Equal(t, 2, f1.Len())

	f2, err := l.Load(ctx, "vendors")
	require.NoError(t, err)
	require.Same(t, f1, f2)

	require.Equal(t, int64(1), store.opens.Load(), "repeat loads must not re-fetch")

	cached, ok := l.Cached("vendors")
	require.True(t, ok)
	require.Same(t, f1, cached)
}

func TestIndexLoader_DedupsConcurrentLoads(t *testing.T) {
	ctx := context.Background()

	mem := blobstore.NewMemoryStore()
	mem.Put("vendors.idx", buildIndexBlob(t, "Dell"))
	store := &gatedStore{inner: mem, gate: make(chan struct{})}

	l := NewIndexLoader(store)

	const callers = 16
	results := make([]*indexfile.File, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = l.Load(ctx, "vendors")
	}()

	// Wait for the first transfer to be in flight, then pile the
	// remaining callers on top of it.
	require.Eventually(t, func() bool { return store.opens.Load() == 1 },
		time.Second, time.Millisecond)

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = l.Load(ctx, "vendors")
		}()
	}
	time.Sleep(50 * time.Millisecond) // let the callers reach the in-flight group

	close(store.gate) // release the single in-flight fetch
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
	}

	require.Equal(t, int64(1), store.opens.Load(), "one transfer for all concurrent callers")
	for i := 1; i < callers; i++ {
		require.Same(t, results[0], results[i])
	}
}

func TestLoader_FailuresAreNotCached(t *testing.T) {
	ctx := context.Background()

	mem := blobstore.NewMemoryStore()
	store := &gatedStore{inner: mem}
	l := NewIndexLoader(store)

	_, err := l.Load(ctx, "vendors")
	require.ErrorIs(t, err, blobstore.ErrNotFound)

	// The blob shows up later (e.g. transient outage): a retry must
	// re-attempt the transfer and succeed.
	mem.Put("vendors.idx", buildIndexBlob(t, "Dell"))

	f, err := l.Load(ctx, "vendors")
	require.NoError(t, err)
	require.Equal(t, 1, f.Len())
	require.Equal(t, int64(2), store.opens.Load())
}

func TestLoader_ParseErrorsPropagate(t *testing.T) {
	ctx := context.Background()

	mem := blobstore.NewMemoryStore()
	mem.Put("vendors.idx", []byte("not an index file"))
	l := NewIndexLoader(mem)

	_, err := l.Load(ctx, "vendors")
	require.ErrorIs(t, err, indexfile.ErrInvalidMagic)

	_, ok := l.Cached("vendors")
	require.False(t, ok)
}

func TestLoader_ProgressEvents(t *testing.T) {
	ctx := context.Background()

	mem := blobstore.NewMemoryStore()
	blob := buildIndexBlob(t, "Dell")
	mem.Put("vendors.idx", blob)

	var mu sync.Mutex
	var events []Event
	l := NewIndexLoader(mem, WithProgress(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}))

	_, err := l.Load(ctx, "vendors")
	require.NoError(t, err)
	_, err = l.Load(ctx, "vendors") // cache hit, no events
	require.NoError(t, err)

	_, err = l.Load(ctx, "missing")
	require.Error(t, err)

	require.Len(t, events, 4)
	require.Equal(t, Event{Name: "vendors.idx", Kind: EventStart}, events[0])
	require.Equal(t, Event{Name: "vendors.idx", Kind: EventDone, Bytes: len(blob)}, events[1])
	require.Equal(t, EventStart, events[2].Kind)
	require.Equal(t, EventFailed, events[3].Kind)
	require.True(t, errors.Is(events[3].Err, blobstore.ErrNotFound))
}

func TestBucketLoader_KeyMapping(t *testing.T) {
	require.Equal(t, "buckets/00.bin", BucketBlobName(0x00))
	require.Equal(t, "buckets/ab.bin", BucketBlobName(0xAB))
	require.Equal(t, "buckets/ff.bin", BucketBlobName(0xFF))
	require.Equal(t, "vendors.idx", IndexBlobName("vendors"))
}

func TestLoader_Prefetch(t *testing.T) {
	ctx := context.Background()

	mem := blobstore.NewMemoryStore()
	mem.Put("a.idx", buildIndexBlob(t, "A"))
	mem.Put("b.idx", buildIndexBlob(t, "B"))
	store := &gatedStore{inner: mem}

	l := NewIndexLoader(store)
	require.NoError(t, l.Prefetch(ctx, []string{"a", "b"}, 4))
	require.Equal(t, int64(2), store.opens.Load())

	_, ok := l.Cached("a")
	require.True(t, ok)
	_, ok = l.Cached("b")
	require.True(t, ok)
}
