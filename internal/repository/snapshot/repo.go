package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/dictcache/internal/cache"
	"github.com/kailas-cloud/dictcache/internal/db"
	"github.com/kailas-cloud/dictcache/internal/domain"
	"github.com/kailas-cloud/dictcache/internal/domain/schema"
)

// store is the consumer interface for snapshot persistence (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Repo persists fetched dictionaries so a restarted process can warm up
// without the catalog API and serve stale data when it is down.
type Repo struct {
	store  store
	prefix string
	ttl    time.Duration
}

// New creates a snapshot repository. An empty prefix falls back to domain.KeyPrefix.
// ttl is the key expiry; zero keeps snapshots forever.
func New(s store, prefix string, ttl time.Duration) *Repo {
	if prefix == "" {
		prefix = domain.KeyPrefix
	}
	return &Repo{store: s, prefix: prefix, ttl: ttl}
}

// SaveCollection writes the dictionary body under its collection key.
func (r *Repo) SaveCollection(ctx context.Context, c *cache.Collection) error {
	return r.put(ctx, r.collectionKey(c.Name), collectionDTO{Data: c.Data, LastUpdated: c.LastUpdated})
}

// LoadCollection reads a persisted dictionary body. ok is false when none exists.
func (r *Repo) LoadCollection(ctx context.Context, name string) (*cache.Collection, bool, error) {
	var dto collectionDTO
	ok, err := r.get(ctx, r.collectionKey(name), &dto)
	if err != nil || !ok || len(dto.Data) == 0 {
		return nil, false, err
	}
	return &cache.Collection{Name: name, Data: dto.Data, LastUpdated: dto.LastUpdated}, true, nil
}

// SaveSchema writes the form structure under its schema key.
func (r *Repo) SaveSchema(ctx context.Context, name string, e *schema.Entry) error {
	return r.put(ctx, r.schemaKey(name), schemaDTO{Fields: e.Fields(), LastUpdated: e.LastUpdated()})
}

// LoadSchema reads a persisted form structure. ok is false when none exists.
func (r *Repo) LoadSchema(ctx context.Context, name string) (*schema.Entry, bool, error) {
	var dto schemaDTO
	ok, err := r.get(ctx, r.schemaKey(name), &dto)
	if err != nil || !ok {
		return nil, false, err
	}
	return schema.NewEntry(dto.Fields, dto.LastUpdated), true, nil
}

func (r *Repo) collectionKey(name string) string { return r.prefix + "collection:" + name }
func (r *Repo) schemaKey(name string) string     { return r.prefix + "schema:" + name }

func (r *Repo) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", key, err)
	}
	if r.ttl <= 0 {
		err = r.store.Set(ctx, key, data)
	} else {
		err = r.store.SetWithTTL(ctx, key, data, r.ttl)
	}
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", key, err)
	}
	return nil
}

func (r *Repo) get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load snapshot %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return true, nil
}
