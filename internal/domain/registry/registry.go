package registry

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/dictcache/internal/domain"
)

// Entry describes where a dictionary is fetched from and how long it stays fresh.
type Entry struct {
	Name string
	Path string
	TTL  time.Duration
}

// Registry is an immutable, ordered set of dictionary entries.
type Registry struct {
	entries []Entry
	byName  map[string]int
}

// New validates entries and builds a Registry.
// Names must be unique and non-empty, paths non-empty, TTLs positive.
func New(entries ...Entry) (*Registry, error) {
	r := &Registry{
		entries: make([]Entry, 0, len(entries)),
		byName:  make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("%w: dictionary name is required", domain.ErrInvalidRegistry)
		}
		if e.Path == "" {
			return nil, fmt.Errorf("%w: dictionary %q has no path", domain.ErrInvalidRegistry, e.Name)
		}
		if e.TTL <= 0 {
			return nil, fmt.Errorf("%w: dictionary %q ttl must be positive, got %s",
				domain.ErrInvalidRegistry, e.Name, e.TTL)
		}
		if _, dup := r.byName[e.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate dictionary %q", domain.ErrInvalidRegistry, e.Name)
		}
		r.byName[e.Name] = len(r.entries)
		r.entries = append(r.entries, e)
	}
	return r, nil
}

// MustNew is New that panics on invalid input. Use for static tables only.
func MustNew(entries ...Entry) *Registry {
	r, err := New(entries...)
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the entry registered under name.
func (r *Registry) Get(name string) (Entry, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Names returns registered names in declaration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Name
	}
	return names
}

// Entries returns a copy of all entries in declaration order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of registered dictionaries.
func (r *Registry) Len() int { return len(r.entries) }
