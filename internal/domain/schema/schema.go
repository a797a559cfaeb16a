package schema

import (
	"time"

	"github.com/kailas-cloud/dictcache/internal/domain/schema/field"
)

// Entry is the cached form structure of one dictionary.
// It is immutable after construction; refreshes build a new Entry.
type Entry struct {
	fields      []field.Structure
	fieldByName map[string]field.Structure
	emptyRecord map[string]field.Value
	lastUpdated time.Time
}

// NewEntry indexes fields by name and derives the empty record.
// On duplicate names the first occurrence wins.
func NewEntry(fields []field.Structure, lastUpdated time.Time) *Entry {
	e := &Entry{
		fields:      append([]field.Structure(nil), fields...),
		fieldByName: make(map[string]field.Structure, len(fields)),
		emptyRecord: make(map[string]field.Value, len(fields)),
		lastUpdated: lastUpdated,
	}
	for _, f := range e.fields {
		if _, dup := e.fieldByName[f.Name]; dup {
			continue
		}
		e.fieldByName[f.Name] = f
		e.emptyRecord[f.Name] = f.EmptyValue()
	}
	return e
}

// Fields returns the fields in upstream order.
func (e *Entry) Fields() []field.Structure {
	return append([]field.Structure(nil), e.fields...)
}

// Field looks up a field by name.
func (e *Entry) Field(name string) (field.Structure, bool) {
	f, ok := e.fieldByName[name]
	return f, ok
}

// Len returns the number of distinct field names.
func (e *Entry) Len() int { return len(e.fieldByName) }

// EmptyRecord returns a fresh copy of the blank form record.
func (e *Entry) EmptyRecord() map[string]field.Value {
	out := make(map[string]field.Value, len(e.emptyRecord))
	for k, v := range e.emptyRecord {
		out[k] = v
	}
	return out
}

// LastUpdated returns when the schema was fetched.
func (e *Entry) LastUpdated() time.Time { return e.lastUpdated }

