package dictcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dictcache/internal/cache"
	"github.com/kailas-cloud/dictcache/internal/db"
	dbRedis "github.com/kailas-cloud/dictcache/internal/db/redis"
	"github.com/kailas-cloud/dictcache/internal/domain/registry"
	"github.com/kailas-cloud/dictcache/internal/domain/schema"
	"github.com/kailas-cloud/dictcache/internal/domain/schema/field"
	"github.com/kailas-cloud/dictcache/internal/repository/snapshot"
	"github.com/kailas-cloud/dictcache/internal/transport/upstream"
	dictionaryuc "github.com/kailas-cloud/dictcache/internal/usecase/dictionary"
	healthuc "github.com/kailas-cloud/dictcache/internal/usecase/health"
)

const (
	defaultTimeout          = 15 * time.Second
	defaultReadinessTimeout = 10 * time.Second
)

type (
	// Dictionary registers a collection: its name, API path and freshness TTL.
	Dictionary = registry.Entry
	// Structure is a cached form structure.
	Structure = schema.Entry
	// Field describes one form field.
	Field = field.Structure
	// PreloadReport summarizes a PreloadAll run.
	PreloadReport = dictionaryuc.PreloadReport
	// HealthReport aggregates dependency checks and cache occupancy.
	HealthReport = healthuc.Report
)

// Internal interfaces so tests can substitute fakes.
type dictionaryUseCase interface {
	Config() []registry.Entry
	GetDictionary(ctx context.Context, name string, force bool) (json.RawMessage, error)
	ForceRefresh(ctx context.Context, name string) (json.RawMessage, error)
	GetDictionaryAsList(ctx context.Context, name string, depth int) (json.RawMessage, error)
	GetDictionaryItemByID(ctx context.Context, name, id string) (json.RawMessage, error)
	GetDictionaryStructure(ctx context.Context, name string, force bool) (*schema.Entry, error)
	GetModelStructureField(ctx context.Context, name, fieldName string) (field.Structure, error)
	PreloadAll(ctx context.Context) dictionaryuc.PreloadReport
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the dictcache entry point. It is safe for concurrent use.
type Client struct {
	store     db.Store
	dictSvc   dictionaryUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client. Nothing is fetched until the first lookup or PreloadAll.
// When a snapshot store is configured, ctx bounds its readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{timeout: defaultTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.baseURL == "" {
		return nil, errors.New("dictcache: catalog API base URL required (use WithBaseURL)")
	}
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := registry.Builtin()
	if cfg.dictionaries != nil {
		var err error
		if reg, err = registry.New(cfg.dictionaries...); err != nil {
			return nil, fmt.Errorf("dictcache: %w", err)
		}
	}

	obs, err := newObserver(logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	var store db.Store
	if len(cfg.snapshotAddrs) > 0 {
		if store, err = createStore(ctx, cfg); err != nil {
			return nil, err
		}
	}

	return wireClient(reg, store, cfg, obs, logger), nil
}

func createStore(ctx context.Context, cfg *clientConfig) (db.Store, error) {
	s, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.snapshotAddrs,
		Password: cfg.snapshotPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("dictcache: create redis store: %w", err)
	}
	if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		s.Close()
		return nil, fmt.Errorf("dictcache: snapshot store not ready: %w", err)
	}
	return s, nil
}

func wireClient(
	reg *registry.Registry, store db.Store, cfg *clientConfig, obs *observer, logger *zap.Logger,
) *Client {
	up := upstream.NewClient(&upstream.Config{
		BaseURL:    cfg.baseURL,
		Token:      cfg.token,
		Timeout:    cfg.timeout,
		HTTPClient: cfg.httpClient,
		Logger:     logger,
	})
	mem := cache.New(nil)

	dictSvc := dictionaryuc.New(reg, mem, up, logger).
		WithLookupCounter(obs.lookupCounter()).
		WithFetchTimeout(cfg.timeout)

	var snapshotPinger healthuc.Pinger
	if store != nil {
		dictSvc = dictSvc.WithSnapshots(snapshot.New(store, cfg.snapshotPrefix, cfg.snapshotTTL))
		snapshotPinger = store
	}

	return &Client{
		store:     store,
		dictSvc:   dictSvc,
		healthSvc: healthuc.New(up, snapshotPinger, mem),
		obs:       obs,
	}
}

// Close releases the snapshot store connection, if any.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Dictionaries returns the registered dictionaries in declaration order.
func (c *Client) Dictionaries() []Dictionary {
	return c.dictSvc.Config()
}

// GetDictionary returns the dictionary body, refetching it when stale or when force is set.
// On failure the last known body or an empty JSON array is returned with the error.
func (c *Client) GetDictionary(ctx context.Context, name string, force bool) (_ json.RawMessage, err error) {
	start := time.Now()
	defer func() { c.obs.observe("dictionary.get", name, start, err) }()

	return c.dictSvc.GetDictionary(ctx, name, force)
}

// ForceRefresh refetches the dictionary regardless of freshness.
func (c *Client) ForceRefresh(ctx context.Context, name string) (_ json.RawMessage, err error) {
	start := time.Now()
	defer func() { c.obs.observe("dictionary.refresh", name, start, err) }()

	return c.dictSvc.ForceRefresh(ctx, name)
}

// GetDictionaryAsList returns the dictionary flattened to depth. Not cached.
func (c *Client) GetDictionaryAsList(ctx context.Context, name string, depth int) (_ json.RawMessage, err error) {
	start := time.Now()
	defer func() { c.obs.observe("dictionary.list", name, start, err) }()

	return c.dictSvc.GetDictionaryAsList(ctx, name, depth)
}

// GetDictionaryItemByID returns one item of the dictionary. Not cached.
func (c *Client) GetDictionaryItemByID(ctx context.Context, name, id string) (_ json.RawMessage, err error) {
	start := time.Now()
	defer func() { c.obs.observe("dictionary.item", name, start, err) }()

	return c.dictSvc.GetDictionaryItemByID(ctx, name, id)
}

// GetDictionaryStructure returns the form structure. It is fetched once and kept until force.
func (c *Client) GetDictionaryStructure(ctx context.Context, name string, force bool) (_ *Structure, err error) {
	start := time.Now()
	defer func() { c.obs.observe("structure.get", name, start, err) }()

	return c.dictSvc.GetDictionaryStructure(ctx, name, force)
}

// GetModelStructureField returns one field of the form structure.
func (c *Client) GetModelStructureField(ctx context.Context, name, fieldName string) (_ Field, err error) {
	start := time.Now()
	defer func() { c.obs.observe("structure.field", name, start, err) }()

	return c.dictSvc.GetModelStructureField(ctx, name, fieldName)
}

// PreloadAll loads every registered dictionary and form structure concurrently.
func (c *Client) PreloadAll(ctx context.Context) PreloadReport {
	start := time.Now()
	report := c.dictSvc.PreloadAll(ctx)

	var err error
	if !report.OK() {
		err = fmt.Errorf("preload: %d collections, %d schemas failed",
			len(report.FailedCollections), len(report.FailedSchemas))
	}
	c.obs.observe("preload", "", start, err)
	return report
}

// Health pings the catalog API and the snapshot store.
func (c *Client) Health(ctx context.Context) HealthReport {
	return c.healthSvc.Check(ctx)
}
