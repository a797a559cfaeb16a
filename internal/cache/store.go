package cache

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"

	"github.com/kailas-cloud/dictcache/internal/domain/schema"
	"github.com/kailas-cloud/dictcache/internal/domain/schema/field"
)

// Collection is a cached dictionary body. Data is opaque upstream JSON.
// The store owns Data; callers must treat it as read-only.
type Collection struct {
	Name        string
	Data        json.RawMessage
	LastUpdated time.Time
}

// Store holds fetched collections and schemas in memory.
// Entries are replaced wholesale and never evicted.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*Collection
	schemas     map[string]*schema.Entry
	now         func() time.Time
}

// New creates an empty Store. now defaults to time.Now.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		collections: make(map[string]*Collection),
		schemas:     make(map[string]*schema.Entry),
		now:         now,
	}
}

// GetCollection returns the cached collection for name.
func (s *Store) GetCollection(name string) (*Collection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	return c, ok
}

// PutCollection replaces the entry for name and stamps it with the current time.
// data is copied, so the caller may reuse its buffer.
func (s *Store) PutCollection(name string, data json.RawMessage) *Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now()
	if prev, ok := s.collections[name]; ok && ts.Before(prev.LastUpdated) {
		ts = prev.LastUpdated
	}
	c := &Collection{Name: name, Data: bytes.Clone(data), LastUpdated: ts}
	s.collections[name] = c
	return c
}

// RestoreCollection installs a previously fetched entry with its original
// timestamp. It is a no-op when the cached entry is newer.
func (s *Store) RestoreCollection(name string, data json.RawMessage, lastUpdated time.Time) (*Collection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.collections[name]; ok && !lastUpdated.After(prev.LastUpdated) {
		return prev, false
	}
	c := &Collection{Name: name, Data: bytes.Clone(data), LastUpdated: lastUpdated}
	s.collections[name] = c
	return c, true
}

// GetSchema returns the cached schema for name.
func (s *Store) GetSchema(name string) (*schema.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.schemas[name]
	return e, ok
}

// PutSchema rebuilds the field index and empty record from fields and stores them.
func (s *Store) PutSchema(name string, fields []field.Structure) *schema.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now()
	if prev, ok := s.schemas[name]; ok && ts.Before(prev.LastUpdated()) {
		ts = prev.LastUpdated()
	}
	e := schema.NewEntry(fields, ts)
	s.schemas[name] = e
	return e
}

// RestoreSchema installs a previously fetched schema with its original timestamp.
// It is a no-op when the cached entry is newer.
func (s *Store) RestoreSchema(name string, fields []field.Structure, lastUpdated time.Time) (*schema.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.schemas[name]; ok && !lastUpdated.After(prev.LastUpdated()) {
		return prev, false
	}
	e := schema.NewEntry(fields, lastUpdated)
	s.schemas[name] = e
	return e, true
}

// Stats reports how many entries of each kind are cached.
func (s *Store) Stats() (collections, schemas int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections), len(s.schemas)
}
