// Package jsonvalue provides a generic JSON value tree used as the storage
// representation of schema-less documents. Objects keep their member order so
// a parsed document serializes back with the same layout, and numbers keep
// their literal text so no precision is lost on the way through.
package jsonvalue

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "boolean"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// Member is a single key/value pair of an object.
type Member struct {
	Key   string
	Value Value
}

// Value is an immutable JSON value. The zero Value is JSON null.
type Value struct {
	kind    Kind
	boolean bool
	text    string // string contents or number literal
	items   []Value
	members []Member
}

// NewNull returns a null value.
func NewNull() Value { return Value{} }

// NewBool returns a boolean value.
func NewBool(b bool) Value { return Value{kind: Bool, boolean: b} }

// NewString returns a string value.
func NewString(s string) Value { return Value{kind: String, text: s} }

// NewInt returns a number value holding an integer.
func NewInt(n int64) Value {
	return Value{kind: Number, text: strconv.FormatInt(n, 10)}
}

// NewFloat returns a number value formatted the way encoding/json formats
// float64. NaN and infinities have no JSON form and are rejected.
func NewFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("jsonvalue: unsupported float %v", f)
	}
	return Value{kind: Number, text: string(appendFloat(nil, f))}, nil
}

// NewNumber returns a number value from a JSON number literal.
func NewNumber(n json.Number) (Value, error) {
	if !isNumberLiteral(string(n)) {
		return Value{}, fmt.Errorf("jsonvalue: invalid number literal %q", string(n))
	}
	return Value{kind: Number, text: string(n)}, nil
}

// NewArray returns an array holding items in order.
func NewArray(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: Array, items: items}
}

// NewObject returns an object holding members in order. Keys are expected to
// be unique.
func NewObject(members ...Member) Value {
	if members == nil {
		members = []Member{}
	}
	return Value{kind: Object, members: members}
}

// Kind reports the variant of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is JSON null.
func (v Value) IsNull() bool { return v.kind == Null }

// Bool returns the boolean held by v, or false for other kinds.
func (v Value) Bool() bool { return v.kind == Bool && v.boolean }

// Text returns the contents of a string value, or "" for other kinds.
func (v Value) Text() string {
	if v.kind != String {
		return ""
	}
	return v.text
}

// Number returns the literal of a number value, or "" for other kinds.
func (v Value) Number() json.Number {
	if v.kind != Number {
		return ""
	}
	return json.Number(v.text)
}

// Int64 returns the number held by v as an int64.
func (v Value) Int64() (int64, error) {
	if v.kind != Number {
		return 0, fmt.Errorf("jsonvalue: %s is not a number", v.kind)
	}
	return strconv.ParseInt(v.text, 10, 64)
}

// Float64 returns the number held by v as a float64.
func (v Value) Float64() (float64, error) {
	if v.kind != Number {
		return 0, fmt.Errorf("jsonvalue: %s is not a number", v.kind)
	}
	return strconv.ParseFloat(v.text, 64)
}

// Len returns the number of items of an array or members of an object.
func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.items)
	case Object:
		return len(v.members)
	}
	return 0
}

// Index returns the i-th item of an array. It panics if i is out of range.
func (v Value) Index(i int) Value { return v.items[i] }

// Items returns the items of an array. The slice must not be modified.
func (v Value) Items() []Value { return v.items }

// Members returns the members of an object in order. The slice must not be
// modified.
func (v Value) Members() []Member { return v.members }

// Get looks up a member of an object by key.
func (v Value) Get(key string) (Value, bool) {
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Equal reports whether v and other hold the same JSON value. Objects are
// compared by key set regardless of member order and numbers by numeric value.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case Null:
		return true
	case Bool:
		return v.boolean == other.boolean
	case String:
		return v.text == other.text
	case Number:
		return numbersEqual(v.text, other.text)
	case Array:
		if len(v.items) != len(other.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(other.items[i]) {
				return false
			}
		}
		return true
	case Object:
		if len(v.members) != len(other.members) {
			return false
		}
		for _, m := range v.members {
			o, ok := other.Get(m.Key)
			if !ok || !m.Value.Equal(o) {
				return false
			}
		}
		return true
	}
	return false
}

func numbersEqual(a, b string) bool {
	if a == b {
		return true
	}
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		return ai == bi
	}
	ar, ok := new(big.Rat).SetString(a)
	if !ok {
		return false
	}
	br, ok := new(big.Rat).SetString(b)
	if !ok {
		return false
	}
	return ar.Cmp(br) == 0
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return v.AppendJSON(make([]byte, 0, 64)), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// String returns the compact JSON text of v.
func (v Value) String() string {
	return string(v.AppendJSON(nil))
}

// Scan implements sql.Scanner for JSON, JSONB and text columns.
func (v *Value) Scan(src any) error {
	switch s := src.(type) {
	case nil:
		*v = Value{}
		return nil
	case []byte:
		return v.UnmarshalJSON(s)
	case string:
		return v.UnmarshalJSON([]byte(s))
	default:
		return fmt.Errorf("jsonvalue: cannot scan %T", src)
	}
}

// Value implements driver.Valuer. The JSON text is sent as a string so that
// drivers bind it as text rather than as a binary blob.
func (v Value) Value() (driver.Value, error) {
	return v.String(), nil
}
