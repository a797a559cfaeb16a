package chi

import (
	"context"
	"encoding/json"

	"github.com/kailas-cloud/dictcache/internal/domain/registry"
	"github.com/kailas-cloud/dictcache/internal/domain/schema"
	"github.com/kailas-cloud/dictcache/internal/domain/schema/field"
	dictionaryuc "github.com/kailas-cloud/dictcache/internal/usecase/dictionary"
	healthuc "github.com/kailas-cloud/dictcache/internal/usecase/health"
)

// Dictionaries is the dictionary use case consumed by the gateway.
type Dictionaries interface {
	Config() []registry.Entry
	GetDictionary(ctx context.Context, name string, force bool) (json.RawMessage, error)
	GetDictionaryAsList(ctx context.Context, name string, depth int) (json.RawMessage, error)
	GetDictionaryItemByID(ctx context.Context, name, id string) (json.RawMessage, error)
	GetDictionaryStructure(ctx context.Context, name string, force bool) (*schema.Entry, error)
	GetModelStructureField(ctx context.Context, name, fieldName string) (field.Structure, error)
	ForceRefresh(ctx context.Context, name string) (json.RawMessage, error)
	PreloadAll(ctx context.Context) dictionaryuc.PreloadReport
}

// HealthChecker reports service health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
