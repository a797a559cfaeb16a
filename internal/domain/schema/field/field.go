package field

import (
	"encoding/json"
	"fmt"
)

// Kind classifies a field by how forms treat it.
type Kind string

// Field kinds.
const (
	KindIdentity   Kind = "identity"
	KindRelation   Kind = "relation"
	KindText       Kind = "text"
	KindNumber     Kind = "number"
	KindBoolean    Kind = "boolean"
	KindTemporal   Kind = "temporal"
	KindStructured Kind = "structured"
	// KindUnknown is the fallback; the raw type string stays on Structure.Type.
	KindUnknown Kind = "unknown"
)

// TypeRelation is the type upstream reports for foreign keys and reverse relations.
const TypeRelation = "Relation"

var kindByType = map[string]Kind{
	"AutoField":      KindIdentity,
	"BigAutoField":   KindIdentity,
	"SmallAutoField": KindIdentity,

	TypeRelation:      KindRelation,
	"ForeignKey":      KindRelation,
	"OneToOneField":   KindRelation,
	"ManyToManyField": KindRelation,

	"CharField":             KindText,
	"TextField":             KindText,
	"SlugField":             KindText,
	"EmailField":            KindText,
	"URLField":              KindText,
	"UUIDField":             KindText,
	"FileField":             KindText,
	"ImageField":            KindText,
	"FilePathField":         KindText,
	"GenericIPAddressField": KindText,

	"IntegerField":              KindNumber,
	"BigIntegerField":           KindNumber,
	"SmallIntegerField":         KindNumber,
	"PositiveIntegerField":      KindNumber,
	"PositiveSmallIntegerField": KindNumber,
	"PositiveBigIntegerField":   KindNumber,
	"FloatField":                KindNumber,
	"DecimalField":              KindNumber,

	"BooleanField":     KindBoolean,
	"NullBooleanField": KindBoolean,

	"DateField":     KindTemporal,
	"DateTimeField": KindTemporal,
	"TimeField":     KindTemporal,
	"DurationField": KindTemporal,

	"JSONField": KindStructured,
}

// KindOf classifies a field. The "id" field is always an identity.
func KindOf(name, fieldType string) Kind {
	if name == "id" {
		return KindIdentity
	}
	if k, ok := kindByType[fieldType]; ok {
		return k
	}
	return KindUnknown
}

// Structure describes one field of a dictionary's form schema.
type Structure struct {
	Name         string
	Type         string
	Kind         Kind
	VerboseName  string
	HelpText     string
	Default      Value
	RelatedModel string
	RelatedApp   string
	// Extra holds keys this package does not model (max_length, choices, on_delete...).
	Extra map[string]json.RawMessage
}

// New builds a Structure and derives its Kind.
func New(name, fieldType string) Structure {
	return Structure{Name: name, Type: fieldType, Kind: KindOf(name, fieldType)}
}

// EmptyValue is the value a blank form starts with: null for identity and
// relation fields, an empty string otherwise.
func (s Structure) EmptyValue() Value {
	switch s.Kind {
	case KindIdentity, KindRelation:
		return Null()
	default:
		return String("")
	}
}

var knownKeys = []string{
	"name", "type", "kind", "verbose_name", "help_text", "default", "related_model", "related_app",
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Structure) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode field structure: %w", err)
	}

	var out Structure
	if err := decodeString(m, "name", &out.Name); err != nil {
		return err
	}
	if out.Name == "" {
		return fmt.Errorf("field structure without name")
	}
	for key, dst := range map[string]*string{
		"type":          &out.Type,
		"verbose_name":  &out.VerboseName,
		"help_text":     &out.HelpText,
		"related_model": &out.RelatedModel,
		"related_app":   &out.RelatedApp,
	} {
		if err := decodeString(m, key, dst); err != nil {
			return fmt.Errorf("field %q: %w", out.Name, err)
		}
	}
	if raw, ok := m["default"]; ok {
		if err := out.Default.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("field %q default: %w", out.Name, err)
		}
	}
	out.Kind = KindOf(out.Name, out.Type)

	for _, k := range knownKeys {
		delete(m, k)
	}
	if len(m) > 0 {
		out.Extra = m
	}

	*s = out
	return nil
}

// MarshalJSON implements json.Marshaler. Extra keys are emitted alongside known ones.
func (s Structure) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(s.Extra)+len(knownKeys))
	for k, v := range s.Extra {
		m[k] = v
	}
	m["name"] = s.Name
	m["type"] = s.Type
	m["kind"] = s.Kind
	m["default"] = s.Default
	putOptional(m, "verbose_name", s.VerboseName)
	putOptional(m, "help_text", s.HelpText)
	putOptional(m, "related_model", s.RelatedModel)
	putOptional(m, "related_app", s.RelatedApp)
	return json.Marshal(m)
}

// decodeString reads an optional string key; null and absent leave dst empty.
func decodeString(m map[string]json.RawMessage, key string, dst *string) error {
	raw, ok := m[key]
	if !ok {
		return nil
	}
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if s != nil {
		*dst = *s
	}
	return nil
}

func putOptional(m map[string]any, key, val string) {
	if val != "" {
		m[key] = val
	}
}
