package dictionary

import (
	"time"

	"github.com/kailas-cloud/dictcache/internal/cache"
	"github.com/kailas-cloud/dictcache/internal/domain/schema"
)

// Decision is the outcome of a freshness check.
type Decision string

const (
	// Hit means the cached entry is returned as-is.
	Hit Decision = "hit"
	// Miss means nothing is cached yet.
	Miss Decision = "miss"
	// Stale means the cached entry outlived its TTL.
	Stale Decision = "stale"
	// Forced means the caller bypassed the cache.
	Forced Decision = "forced"
)

// NeedsFetch reports whether the decision requires a network call.
func (d Decision) NeedsFetch() bool { return d != Hit }

// decideCollection applies the TTL policy to a cached collection.
func decideCollection(c *cache.Collection, ttl time.Duration, force bool, now time.Time) Decision {
	switch {
	case force:
		return Forced
	case c == nil:
		return Miss
	case !isFresh(c.LastUpdated, ttl, now):
		return Stale
	default:
		return Hit
	}
}

// decideSchema applies the schema policy. Schemas have no TTL.
func decideSchema(e *schema.Entry, force bool) Decision {
	switch {
	case force:
		return Forced
	case e == nil:
		return Miss
	default:
		return Hit
	}
}

func isFresh(lastUpdated time.Time, ttl time.Duration, now time.Time) bool {
	return now.Sub(lastUpdated) < ttl
}
