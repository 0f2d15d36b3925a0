package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	}
	return "unknown"
}

// Value is a JSON value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	num  json.Number
	str  string
	arr  []Value
	obj  *Object
}

func Null() Value { return Value{} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func Int(i int64) Value { return Value{kind: KindNumber, num: json.Number(strconv.FormatInt(i, 10))} }

// Float returns null for NaN and infinities, which JSON cannot carry.
func Float(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Null()
	}
	return Value{kind: KindNumber, num: json.Number(strconv.FormatFloat(f, 'g', -1, 64))}
}

func String(s string) Value { return Value{kind: KindString, str: s} }

func Array(vs ...Value) Value {
	return Value{kind: KindArray, arr: append([]Value{}, vs...)}
}

func ObjectValue(o *Object) Value {
	if o == nil {
		o = NewObject()
	}
	return Value{kind: KindObject, obj: o}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) Str() string { return v.str }
func (v Value) Truth() bool { return v.b }
func (v Value) Elems() []Value { return v.arr }

// Object returns the object payload, or nil when v is not an object.
func (v Value) Object() *Object { return v.obj }

// Number returns the literal text of a number value.
func (v Value) Number() json.Number { return v.num }

func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, err := v.num.Float64()
	return f, err == nil
}

// Equal reports structural equality. Numbers are equal when their literal
// text matches or they parse to the same float64.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		if v.num == o.num {
			return true
		}
		a, okA := v.Float()
		b, okB := o.Float()
		return okA && okB && a == b
	case KindString:
		return v.str == o.str
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		return v.obj.Equal(o.obj)
	}
	return false
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	switch v.kind {
	case KindArray:
		out := make([]Value, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Clone()
		}
		return Value{kind: KindArray, arr: out}
	case KindObject:
		return Value{kind: KindObject, obj: v.obj.Clone()}
	}
	return v
}

func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		if _, err := v.num.Float64(); err != nil {
			return fmt.Errorf("invalid number %q", string(v.num))
		}
		buf.WriteString(string(v.num))
	case KindString:
		b, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := e.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		return v.obj.encode(buf)
	}
	return nil
}

func (v *Value) UnmarshalJSON(b []byte) error {
	parsed, err := ParseValue(b)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseValue decodes one JSON document, keeping object key order and the
// literal text of numbers.
func ParseValue(b []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, fmt.Errorf("unexpected data after JSON value")
	}
	return v, nil
}

// ParseObject decodes a JSON object.
func ParseObject(b []byte) (*Object, error) {
	v, err := ParseValue(b)
	if err != nil {
		return nil, err
	}
	if v.kind != KindObject {
		return nil, fmt.Errorf("expected JSON object, got %s", v.kind)
	}
	return v.obj, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Value{kind: KindNumber, num: t}, nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			arr := []Value{}
			for dec.More() {
				e, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				arr = append(arr, e)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Value{kind: KindArray, arr: arr}, nil
		case '{':
			obj := NewObject()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := kt.(string)
				if !ok {
					return Value{}, fmt.Errorf("object key must be a string, got %v", kt)
				}
				e, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				obj.Set(key, e)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Value{kind: KindObject, obj: obj}, nil
		}
	}
	return Value{}, fmt.Errorf("unexpected JSON token %v", tok)
}

// Object is a JSON object that remembers key insertion order.
type Object struct {
	keys []string
	vals map[string]Value
}

func NewObject() *Object {
	return &Object{vals: map[string]Value{}}
}

func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return append([]string(nil), o.keys...)
}

func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return Value{}, false
	}
	v, ok := o.vals[key]
	return v, ok
}

// Set stores v under key. An existing key keeps its position.
func (o *Object) Set(key string, v Value) {
	if o.vals == nil {
		o.vals = map[string]Value{}
	}
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = v
}

func (o *Object) Delete(key string) {
	if o == nil {
		return
	}
	if _, ok := o.vals[key]; !ok {
		return
	}
	delete(o.vals, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

func (o *Object) Clone() *Object {
	out := NewObject()
	if o == nil {
		return out
	}
	for _, k := range o.keys {
		out.Set(k, o.vals[k].Clone())
	}
	return out
}

// Merge copies every field of patch into o, overwriting existing fields and
// leaving the others alone.
func (o *Object) Merge(patch *Object) {
	if patch == nil {
		return
	}
	for _, k := range patch.keys {
		o.Set(k, patch.vals[k].Clone())
	}
}

// Matches reports whether every field of filter is present in o with an
// equal value. A nil or empty filter matches everything.
func (o *Object) Matches(filter *Object) bool {
	if filter == nil {
		return true
	}
	for _, k := range filter.keys {
		v, ok := o.Get(k)
		if !ok || !v.Equal(filter.vals[k]) {
			return false
		}
	}
	return true
}

// Equal compares field sets and values, ignoring key order.
func (o *Object) Equal(other *Object) bool {
	if o.Len() != other.Len() {
		return false
	}
	for _, k := range o.Keys() {
		ov, ok := other.Get(k)
		if !ok || !o.vals[k].Equal(ov) {
			return false
		}
	}
	return true
}

func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := o.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *Object) encode(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	if o != nil {
		for i, k := range o.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := o.vals[k].encode(buf); err != nil {
				return err
			}
		}
	}
	buf.WriteByte('}')
	return nil
}

func (o *Object) UnmarshalJSON(b []byte) error {
	parsed, err := ParseObject(b)
	if err != nil {
		return err
	}
	*o = *parsed
	return nil
}
