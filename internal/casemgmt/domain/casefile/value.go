package casefile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind string

const (
	KindString     Kind = "string"
	KindNumber     Kind = "number"
	KindBool       Kind = "bool"
	KindStructured Kind = "structured"
	KindBinary     Kind = "binary"
)

// Value is a case file value: a closed tagged union over the kinds a case
// file may hold. Equality, serialization, and placeholder rendering are total
// over the variant set.
type Value struct {
	kind       Kind
	str        string
	num        float64
	boolean    bool
	structured json.RawMessage
	binary     []byte
}

// String creates a string value.
func String(v string) Value {
	return Value{kind: KindString, str: v}
}

// Number creates a numeric value.
func Number(v float64) Value {
	return Value{kind: KindNumber, num: v}
}

// Bool creates a boolean value.
func Bool(v bool) Value {
	return Value{kind: KindBool, boolean: v}
}

// Structured creates a structured value from any JSON-encodable Go value.
func Structured(v any) (Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Value{}, fmt.Errorf("encode structured value: %w", err)
	}
	return Value{kind: KindStructured, structured: raw}, nil
}

// Binary creates a binary value. The bytes are copied.
func Binary(v []byte) Value {
	return Value{kind: KindBinary, binary: append([]byte(nil), v...)}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind {
	return v.kind
}

// IsZero reports whether the value is the zero Value (no variant set).
func (v Value) IsZero() bool {
	return v.kind == ""
}

// StringValue returns the string variant, or "" for other kinds.
func (v Value) StringValue() string {
	return v.str
}

// NumberValue returns the numeric variant, or 0 for other kinds.
func (v Value) NumberValue() float64 {
	return v.num
}

// BoolValue returns the boolean variant, or false for other kinds.
func (v Value) BoolValue() bool {
	return v.boolean
}

// StructuredValue decodes the structured variant into a generic Go value.
func (v Value) StructuredValue() (any, error) {
	if v.kind != KindStructured {
		return nil, fmt.Errorf("value is %s, not structured", v.kind)
	}
	var out any
	if err := json.Unmarshal(v.structured, &out); err != nil {
		return nil, fmt.Errorf("decode structured value: %w", err)
	}
	return out, nil
}

// BinaryValue returns a copy of the binary variant, or nil for other kinds.
func (v Value) BinaryValue() []byte {
	if v.binary == nil {
		return nil
	}
	return append([]byte(nil), v.binary...)
}

// Equal reports whether two values hold the same variant and payload.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num
	case KindBool:
		return v.boolean == other.boolean
	case KindStructured:
		return bytes.Equal(v.structured, other.structured)
	case KindBinary:
		return bytes.Equal(v.binary, other.binary)
	default:
		return true
	}
}

// Render returns the placeholder rendering of the value: the form substituted
// for #{name} expressions. Numbers drop a trailing .0, structured values
// render as compact JSON, binary as its byte length.
func (v Value) Render() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.boolean)
	case KindStructured:
		return string(v.structured)
	case KindBinary:
		return fmt.Sprintf("<%d bytes>", len(v.binary))
	default:
		return ""
	}
}

// Interface returns the value as a generic Go value, suitable for JSON-schema
// validation documents.
func (v Value) Interface() (any, error) {
	switch v.kind {
	case KindString:
		return v.str, nil
	case KindNumber:
		return v.num, nil
	case KindBool:
		return v.boolean, nil
	case KindStructured:
		return v.StructuredValue()
	case KindBinary:
		return v.BinaryValue(), nil
	default:
		return nil, nil
	}
}

type valueEnvelope struct {
	Kind       Kind            `json:"kind"`
	String     *string         `json:"string,omitempty"`
	Number     *float64        `json:"number,omitempty"`
	Bool       *bool           `json:"bool,omitempty"`
	Structured json.RawMessage `json:"structured,omitempty"`
	Binary     []byte          `json:"binary,omitempty"`
}

// MarshalJSON encodes the value as a kind-tagged envelope.
func (v Value) MarshalJSON() ([]byte, error) {
	env := valueEnvelope{Kind: v.kind}
	switch v.kind {
	case KindString:
		env.String = &v.str
	case KindNumber:
		env.Number = &v.num
	case KindBool:
		env.Bool = &v.boolean
	case KindStructured:
		env.Structured = v.structured
	case KindBinary:
		env.Binary = v.binary
	case "":
		return nil, fmt.Errorf("cannot encode zero value")
	}
	return json.Marshal(env)
}

// UnmarshalJSON decodes a kind-tagged envelope.
func (v *Value) UnmarshalJSON(data []byte) error {
	var env valueEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode value envelope: %w", err)
	}
	switch env.Kind {
	case KindString:
		if env.String == nil {
			return fmt.Errorf("string value payload is missing")
		}
		*v = String(*env.String)
	case KindNumber:
		if env.Number == nil {
			return fmt.Errorf("number value payload is missing")
		}
		*v = Number(*env.Number)
	case KindBool:
		if env.Bool == nil {
			return fmt.Errorf("bool value payload is missing")
		}
		*v = Bool(*env.Bool)
	case KindStructured:
		if len(env.Structured) == 0 {
			return fmt.Errorf("structured value payload is missing")
		}
		*v = Value{kind: KindStructured, structured: append(json.RawMessage(nil), env.Structured...)}
	case KindBinary:
		*v = Binary(env.Binary)
	default:
		return fmt.Errorf("unknown value kind %q", env.Kind)
	}
	return nil
}
