package field

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

// Value variants.
const (
	ValueNull ValueKind = iota
	ValueString
	ValueNumber
	ValueBool
	// ValueCallable marks a default computed server-side (sent as the literal "callable").
	ValueCallable
	// ValueRaw carries JSON that fits no other variant (objects, arrays).
	ValueRaw
)

const callableMarker = "callable"

// Value is a field default or empty-record value.
// The zero Value is Null. Numbers keep their JSON literal, so large
// integers and out-of-range literals survive a round trip.
type Value struct {
	kind ValueKind
	str  string
	num  json.Number
	b    bool
	raw  json.RawMessage
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: ValueString, str: s} }

// Number returns a numeric value.
func Number(n float64) Value {
	return Value{kind: ValueNumber, num: json.Number(strconv.FormatFloat(n, 'g', -1, 64))}
}

// NumberLiteral returns a numeric value holding the literal as sent upstream.
func NumberLiteral(n json.Number) Value { return Value{kind: ValueNumber, num: n} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: ValueBool, b: b} }

// Callable returns the server-computed default marker.
func Callable() Value { return Value{kind: ValueCallable} }

// Raw wraps untyped JSON. The input is copied.
func Raw(data json.RawMessage) Value {
	return Value{kind: ValueRaw, raw: append(json.RawMessage(nil), data...)}
}

// Kind returns the variant tag.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether v is the null variant.
func (v Value) IsNull() bool { return v.kind == ValueNull }

// AsString returns the string payload.
func (v Value) AsString() (string, bool) { return v.str, v.kind == ValueString }

// AsNumber returns the numeric payload as a float64. Literals outside the
// float64 range yield ±Inf.
func (v Value) AsNumber() (float64, bool) {
	if v.kind != ValueNumber {
		return 0, false
	}
	f, _ := strconv.ParseFloat(string(v.num), 64)
	return f, true
}

// AsJSONNumber returns the numeric payload as its exact JSON literal.
func (v Value) AsJSONNumber() (json.Number, bool) { return v.num, v.kind == ValueNumber }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == ValueBool }

// RawJSON returns the untyped payload of a Raw value.
func (v Value) RawJSON() (json.RawMessage, bool) { return v.raw, v.kind == ValueRaw }

// Equal compares two values by variant and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case ValueString:
		return v.str == o.str
	case ValueNumber:
		return numbersEqual(v.num, o.num)
	case ValueBool:
		return v.b == o.b
	case ValueRaw:
		return bytes.Equal(v.raw, o.raw)
	default:
		return true
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueNull:
		return []byte("null"), nil
	case ValueString:
		return json.Marshal(v.str)
	case ValueNumber:
		return []byte(v.num), nil
	case ValueBool:
		return json.Marshal(v.b)
	case ValueCallable:
		return json.Marshal(callableMarker)
	case ValueRaw:
		if len(v.raw) == 0 {
			return []byte("null"), nil
		}
		return v.raw, nil
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Null()
		return nil
	}

	switch c := data[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode string value: %w", err)
		}
		if s == callableMarker {
			*v = Callable()
		} else {
			*v = String(s)
		}
	case c == 't' || c == 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("decode bool value: %w", err)
		}
		*v = Bool(b)
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("decode number value: %w", err)
		}
		*v = NumberLiteral(n)
	default:
		if !json.Valid(data) {
			return fmt.Errorf("invalid JSON value %q", data)
		}
		*v = Raw(data)
	}
	return nil
}

// numbersEqual compares literals exactly when both are integers and by
// float64 value otherwise, so 1e2 equals 100.
func numbersEqual(a, b json.Number) bool {
	if a == b {
		return true
	}
	ai, aerr := a.Int64()
	bi, berr := b.Int64()
	if aerr == nil && berr == nil {
		return ai == bi
	}
	af, aerr := a.Float64()
	bf, berr := b.Float64()
	return aerr == nil && berr == nil && af == bf
}
