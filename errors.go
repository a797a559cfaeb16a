package dictcache

import "github.com/kailas-cloud/dictcache/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrUnknownDictionary   = domain.ErrUnknownDictionary
	ErrUpstreamUnavailable = domain.ErrUpstreamUnavailable
	ErrSchemaUnavailable   = domain.ErrSchemaUnavailable
	ErrFieldNotFound       = domain.ErrFieldNotFound
	ErrInvalidRegistry     = domain.ErrInvalidRegistry
)
