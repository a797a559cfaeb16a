package health

import "context"

// Pinger checks a dependency's availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheStats reports how many entries are cached.
type CacheStats interface {
	Stats() (collections, schemas int)
}
