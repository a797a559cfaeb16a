package dictionary

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dictcache/internal/cache"
	"github.com/kailas-cloud/dictcache/internal/domain/registry"
	"github.com/kailas-cloud/dictcache/internal/domain/schema"
	"github.com/kailas-cloud/dictcache/internal/domain/schema/field"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// countingFetcher records calls per operation. Unset fns succeed with defaults.
type countingFetcher struct {
	mu    sync.Mutex
	calls map[string]int

	collectionFn func(ctx context.Context, e registry.Entry) (json.RawMessage, error)
	listFn       func(ctx context.Context, e registry.Entry, depth int) (json.RawMessage, error)
	itemFn       func(ctx context.Context, e registry.Entry, id string) (json.RawMessage, error)
	schemaFn     func(ctx context.Context, e registry.Entry) ([]field.Structure, error)
}

func newCountingFetcher() *countingFetcher {
	return &countingFetcher{calls: map[string]int{}}
}

func (f *countingFetcher) inc(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *countingFetcher) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *countingFetcher) FetchCollection(ctx context.Context, e registry.Entry) (json.RawMessage, error) {
	f.inc("collection")
	if f.collectionFn != nil {
		return f.collectionFn(ctx, e)
	}
	return json.RawMessage(`[{"id":1,"name":"` + e.Name + `"}]`), nil
}

func (f *countingFetcher) FetchCollectionAsList(ctx context.Context, e registry.Entry, depth int) (json.RawMessage, error) {
	f.inc("list")
	if f.listFn != nil {
		return f.listFn(ctx, e, depth)
	}
	return json.RawMessage(`[]`), nil
}

func (f *countingFetcher) FetchItem(ctx context.Context, e registry.Entry, id string) (json.RawMessage, error) {
	f.inc("item")
	if f.itemFn != nil {
		return f.itemFn(ctx, e, id)
	}
	return json.RawMessage(`{"id":` + id + `}`), nil
}

func (f *countingFetcher) FetchSchema(ctx context.Context, e registry.Entry) ([]field.Structure, error) {
	f.inc("schema")
	if f.schemaFn != nil {
		return f.schemaFn(ctx, e)
	}
	return []field.Structure{
		field.New("id", "BigAutoField"),
		field.New("title", "CharField"),
		field.New("company", field.TypeRelation),
	}, nil
}

// memSnapshots implements SnapshotStore in memory.
type memSnapshots struct {
	mu          sync.Mutex
	collections map[string]*cache.Collection
	schemas     map[string]*schema.Entry
	loadErr     error
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{
		collections: map[string]*cache.Collection{},
		schemas:     map[string]*schema.Entry{},
	}
}

func (m *memSnapshots) SaveCollection(_ context.Context, c *cache.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[c.Name] = c
	return nil
}

func (m *memSnapshots) LoadCollection(_ context.Context, name string) (*cache.Collection, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, false, m.loadErr
	}
	c, ok := m.collections[name]
	return c, ok, nil
}

func (m *memSnapshots) SaveSchema(_ context.Context, name string, e *schema.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemas[name] = e
	return nil
}

func (m *memSnapshots) LoadSchema(_ context.Context, name string) (*schema.Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, false, m.loadErr
	}
	e, ok := m.schemas[name]
	return e, ok, nil
}

type testEnv struct {
	svc     *Service
	clock   *fakeClock
	fetcher *countingFetcher
	store   *cache.Store
}

func newTestEnv(t *testing.T, reg *registry.Registry) *testEnv {
	t.Helper()
	if reg == nil {
		reg = registry.MustNew(registry.Entry{Name: "A", Path: "/api/core/?model=app.A", TTL: time.Second})
	}
	clock := &fakeClock{t: time.Unix(1_000, 0)}
	store := cache.New(clock.Now)
	fetcher := newCountingFetcher()
	svc := New(reg, store, fetcher, zap.NewNop()).WithClock(clock.Now)
	return &testEnv{svc: svc, clock: clock, fetcher: fetcher, store: store}
}
