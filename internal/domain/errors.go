package domain

import "errors"

var (
	// ErrUnknownDictionary signals a name that is not in the registry.
	ErrUnknownDictionary = errors.New("unknown dictionary")
	// ErrUpstreamUnavailable signals a transport or HTTP failure talking to the catalog API.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrSchemaUnavailable signals a form structure that could not be loaded or is empty.
	ErrSchemaUnavailable = errors.New("schema unavailable")
	// ErrFieldNotFound signals a field missing from a loaded schema.
	ErrFieldNotFound = errors.New("field not found")
	// ErrInvalidRegistry signals a malformed dictionary registration.
	ErrInvalidRegistry = errors.New("invalid registry")
)

// KeyPrefix is the default namespace for keys written to external stores.
const KeyPrefix = "dictcache:"
