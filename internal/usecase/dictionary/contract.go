package dictionary

import (
	"context"
	"encoding/json"

	"github.com/kailas-cloud/dictcache/internal/cache"
	"github.com/kailas-cloud/dictcache/internal/domain/registry"
	"github.com/kailas-cloud/dictcache/internal/domain/schema"
	"github.com/kailas-cloud/dictcache/internal/domain/schema/field"
)

// Fetcher retrieves dictionaries from the catalog API.
type Fetcher interface {
	FetchCollection(ctx context.Context, e registry.Entry) (json.RawMessage, error)
	FetchCollectionAsList(ctx context.Context, e registry.Entry, depth int) (json.RawMessage, error)
	FetchItem(ctx context.Context, e registry.Entry, id string) (json.RawMessage, error)
	FetchSchema(ctx context.Context, e registry.Entry) ([]field.Structure, error)
}

// SnapshotStore persists fetched entries outside the process.
type SnapshotStore interface {
	SaveCollection(ctx context.Context, c *cache.Collection) error
	LoadCollection(ctx context.Context, name string) (*cache.Collection, bool, error)
	SaveSchema(ctx context.Context, name string, e *schema.Entry) error
	LoadSchema(ctx context.Context, name string) (*schema.Entry, bool, error)
}
