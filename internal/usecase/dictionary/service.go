package dictionary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/dictcache/internal/cache"
	"github.com/kailas-cloud/dictcache/internal/domain"
	"github.com/kailas-cloud/dictcache/internal/domain/registry"
	"github.com/kailas-cloud/dictcache/internal/domain/schema"
	"github.com/kailas-cloud/dictcache/internal/domain/schema/field"
)

const (
	kindCollection = "collection"
	kindSchema     = "schema"

	defaultFetchTimeout = 30 * time.Second
)

// emptyList is what callers get when a dictionary cannot be served.
func emptyList() json.RawMessage { return json.RawMessage("[]") }

// Service serves dictionaries from the cache and refetches them per the freshness policy.
//
// Every method returns a usable value even when err is non-nil: an empty JSON
// array for collections, a nil schema or a zero field. Callers that only need
// the degrade-to-empty behavior may ignore err. Returned bodies are copies.
//
// Non-forced misses of one name share a single fetch. Forced calls never join
// a fetch that is already running: they wait for it and then fetch again.
// Fetch-and-store for one name is serialized, so stores land in fetch order.
type Service struct {
	registry     *registry.Registry
	store        *cache.Store
	fetcher      Fetcher
	snapshots    SnapshotStore
	lookups      *prometheus.CounterVec
	logger       *zap.Logger
	now          func() time.Time
	fetchTimeout time.Duration
	group        singleflight.Group
	locks        sync.Map // kind:name -> chan struct{}
}

// New creates a dictionary service.
func New(reg *registry.Registry, store *cache.Store, fetcher Fetcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry:     reg,
		store:        store,
		fetcher:      fetcher,
		logger:       logger,
		now:          time.Now,
		fetchTimeout: defaultFetchTimeout,
	}
}

// WithSnapshots enables warm start and stale fallback from a snapshot store.
func (s *Service) WithSnapshots(snap SnapshotStore) *Service {
	s.snapshots = snap
	return s
}

// WithClock overrides the clock used by the freshness policy.
// It should be the same clock the cache store stamps entries with.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// WithFetchTimeout bounds a shared fetch. A shared fetch outlives the
// cancellation of the caller that started it, so it needs its own deadline.
func (s *Service) WithFetchTimeout(d time.Duration) *Service {
	if d > 0 {
		s.fetchTimeout = d
	}
	return s
}

// WithLookupCounter sets the counter vec with labels dictionary, kind and result.
func (s *Service) WithLookupCounter(cv *prometheus.CounterVec) *Service {
	s.lookups = cv
	return s
}

// Config returns the registered dictionaries in declaration order.
func (s *Service) Config() []registry.Entry {
	return s.registry.Entries()
}

// GetDictionary returns the dictionary body, refetching it when it is
// missing, stale or force is set. When a refetch fails the previously
// fetched body (in memory or in the snapshot store) is returned with the error.
func (s *Service) GetDictionary(ctx context.Context, name string, force bool) (json.RawMessage, error) {
	e, err := s.lookup(name)
	if err != nil {
		return emptyList(), err
	}

	cached, _ := s.store.GetCollection(name)
	decision := decideCollection(cached, e.TTL, force, s.now())
	s.countLookup(name, kindCollection, decision)

	if !decision.NeedsFetch() {
		s.logger.Debug("dictionary cache hit", zap.String("dictionary", name))
		return bytes.Clone(cached.Data), nil
	}

	fallback := cached
	if cached == nil && s.snapshots != nil {
		snap := s.loadCollectionSnapshot(ctx, name)
		if snap != nil && !force && isFresh(snap.LastUpdated, e.TTL, s.now()) {
			restored, _ := s.store.RestoreCollection(name, snap.Data, snap.LastUpdated)
			s.logger.Debug("dictionary restored from snapshot",
				zap.String("dictionary", name),
				zap.Time("last_updated", snap.LastUpdated),
			)
			return bytes.Clone(restored.Data), nil
		}
		fallback = snap
	}

	c, err := s.refreshCollection(ctx, e, force)
	if err != nil {
		err = fmt.Errorf("load dictionary %s: %w", name, err)
		if fallback != nil {
			s.logger.Warn("dictionary refetch failed, serving stale data",
				zap.String("dictionary", name),
				zap.String("decision", string(decision)),
				zap.Time("last_updated", fallback.LastUpdated),
				zap.Error(err),
			)
			return bytes.Clone(fallback.Data), err
		}
		s.logger.Warn("dictionary load failed",
			zap.String("dictionary", name),
			zap.String("decision", string(decision)),
			zap.Error(err),
		)
		return emptyList(), err
	}
	return bytes.Clone(c.Data), nil
}

// ForceRefresh refetches the dictionary regardless of freshness.
func (s *Service) ForceRefresh(ctx context.Context, name string) (json.RawMessage, error) {
	return s.GetDictionary(ctx, name, true)
}

// GetDictionaryAsList fetches the dictionary flattened to depth. The result is not cached.
func (s *Service) GetDictionaryAsList(ctx context.Context, name string, depth int) (json.RawMessage, error) {
	e, err := s.lookup(name)
	if err != nil {
		return emptyList(), err
	}
	if depth < 0 {
		depth = 0
	}

	data, err := s.fetcher.FetchCollectionAsList(ctx, e, depth)
	if err != nil {
		err = fmt.Errorf("load dictionary %s as list: %w", name, err)
		s.logger.Warn("dictionary list load failed",
			zap.String("dictionary", name),
			zap.Int("depth", depth),
			zap.Error(err),
		)
		return emptyList(), err
	}
	return data, nil
}

// GetDictionaryItemByID fetches a single item. The result is not cached.
// An empty id yields an empty list without a network call.
func (s *Service) GetDictionaryItemByID(ctx context.Context, name, id string) (json.RawMessage, error) {
	if id == "" {
		return emptyList(), nil
	}
	e, err := s.lookup(name)
	if err != nil {
		return emptyList(), err
	}

	data, err := s.fetcher.FetchItem(ctx, e, id)
	if err != nil {
		err = fmt.Errorf("load item %s of %s: %w", id, name, err)
		s.logger.Warn("dictionary item load failed",
			zap.String("dictionary", name),
			zap.String("id", id),
			zap.Error(err),
		)
		return emptyList(), err
	}
	return data, nil
}

// GetDictionaryStructure returns the form structure of a dictionary.
// Once cached it is reused until force is set.
func (s *Service) GetDictionaryStructure(ctx context.Context, name string, force bool) (*schema.Entry, error) {
	e, err := s.lookup(name)
	if err != nil {
		return nil, err
	}

	cached, _ := s.store.GetSchema(name)
	decision := decideSchema(cached, force)
	s.countLookup(name, kindSchema, decision)

	if !decision.NeedsFetch() {
		return cached, nil
	}

	if cached == nil && !force && s.snapshots != nil {
		if snap := s.loadSchemaSnapshot(ctx, name); snap != nil {
			restored, _ := s.store.RestoreSchema(name, snap.Fields(), snap.LastUpdated())
			return restored, nil
		}
	}

	entry, err := s.refreshSchema(ctx, e, force)
	if err != nil {
		err = fmt.Errorf("load structure of %s: %w: %w", name, domain.ErrSchemaUnavailable, err)
		s.logger.Warn("dictionary structure load failed",
			zap.String("dictionary", name),
			zap.String("decision", string(decision)),
			zap.Error(err),
		)
		return nil, err
	}
	return entry, nil
}

// GetModelStructureField returns one field of a dictionary's form structure,
// loading the structure on first use.
func (s *Service) GetModelStructureField(ctx context.Context, name, fieldName string) (field.Structure, error) {
	entry, err := s.GetDictionaryStructure(ctx, name, false)
	if err != nil {
		return field.Structure{}, err
	}

	if entry.Len() == 0 {
		s.logger.Warn("dictionary structure has no fields", zap.String("dictionary", name))
		return field.Structure{}, fmt.Errorf("structure of %s is empty: %w", name, domain.ErrSchemaUnavailable)
	}

	f, ok := entry.Field(fieldName)
	if !ok {
		s.logger.Warn("field not found",
			zap.String("dictionary", name),
			zap.String("field", fieldName),
		)
		return field.Structure{}, fmt.Errorf("field %s of %s: %w", fieldName, name, domain.ErrFieldNotFound)
	}
	return f, nil
}

func (s *Service) lookup(name string) (registry.Entry, error) {
	e, ok := s.registry.Get(name)
	if !ok {
		s.logger.Warn("dictionary not registered", zap.String("dictionary", name))
		return registry.Entry{}, fmt.Errorf("dictionary %q: %w", name, domain.ErrUnknownDictionary)
	}
	return e, nil
}

// refreshCollection fetches and stores a collection. Concurrent non-forced
// refreshes of one name share a single upstream call.
func (s *Service) refreshCollection(ctx context.Context, e registry.Entry, force bool) (*cache.Collection, error) {
	if force {
		return s.fetchCollection(ctx, e, true)
	}
	v, err := s.shared(ctx, kindCollection+":"+e.Name, func(fctx context.Context) (any, error) {
		c, err := s.fetchCollection(fctx, e, false)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*cache.Collection), nil
}

func (s *Service) fetchCollection(ctx context.Context, e registry.Entry, force bool) (*cache.Collection, error) {
	unlock, err := s.lockName(ctx, kindCollection+":"+e.Name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// A forced refresh may have stored a fresh body while this call waited.
	if !force {
		if c, ok := s.store.GetCollection(e.Name); ok && isFresh(c.LastUpdated, e.TTL, s.now()) {
			return c, nil
		}
	}

	data, err := s.fetcher.FetchCollection(ctx, e)
	if err != nil {
		return nil, err
	}
	c := s.store.PutCollection(e.Name, data)
	if s.snapshots != nil {
		if err := s.snapshots.SaveCollection(ctx, c); err != nil {
			s.logger.Warn("save dictionary snapshot", zap.String("dictionary", e.Name), zap.Error(err))
		}
	}
	return c, nil
}

func (s *Service) refreshSchema(ctx context.Context, e registry.Entry, force bool) (*schema.Entry, error) {
	if force {
		return s.fetchSchema(ctx, e, true)
	}
	v, err := s.shared(ctx, kindSchema+":"+e.Name, func(fctx context.Context) (any, error) {
		entry, err := s.fetchSchema(fctx, e, false)
		if err != nil {
			return nil, err
		}
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*schema.Entry), nil
}

func (s *Service) fetchSchema(ctx context.Context, e registry.Entry, force bool) (*schema.Entry, error) {
	unlock, err := s.lockName(ctx, kindSchema+":"+e.Name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if !force {
		if cached, ok := s.store.GetSchema(e.Name); ok {
			return cached, nil
		}
	}

	fields, err := s.fetcher.FetchSchema(ctx, e)
	if err != nil {
		return nil, err
	}
	entry := s.store.PutSchema(e.Name, fields)
	if s.snapshots != nil {
		if err := s.snapshots.SaveSchema(ctx, e.Name, entry); err != nil {
			s.logger.Warn("save structure snapshot", zap.String("dictionary", e.Name), zap.Error(err))
		}
	}
	return entry, nil
}

// shared runs fn once per key for all concurrent callers. fn gets a context
// detached from the caller, so one caller giving up does not fail the others;
// each caller still returns as soon as its own ctx is done.
func (s *Service) shared(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		return fn(fctx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// lockName serializes fetch-and-store for one key. The returned func releases it.
func (s *Service) lockName(ctx context.Context, key string) (func(), error) {
	v, _ := s.locks.LoadOrStore(key, make(chan struct{}, 1))
	sem := v.(chan struct{})
	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) loadCollectionSnapshot(ctx context.Context, name string) *cache.Collection {
	c, ok, err := s.snapshots.LoadCollection(ctx, name)
	if err != nil {
		s.logger.Warn("load dictionary snapshot", zap.String("dictionary", name), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	return c
}

func (s *Service) loadSchemaSnapshot(ctx context.Context, name string) *schema.Entry {
	e, ok, err := s.snapshots.LoadSchema(ctx, name)
	if err != nil {
		s.logger.Warn("load structure snapshot", zap.String("dictionary", name), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	return e
}

func (s *Service) countLookup(name, kind string, d Decision) {
	if s.lookups != nil {
		s.lookups.WithLabelValues(name, kind, string(d)).Inc()
	}
}
