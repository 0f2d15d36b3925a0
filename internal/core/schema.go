package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type DataType string

const (
	TypeText      DataType = "text"
	TypeInteger   DataType = "integer"
	TypeBoolean   DataType = "boolean"
	TypeTimestamp DataType = "timestamp"
	TypeUUID      DataType = "uuid"
	TypeJSONB     DataType = "jsonb"
	TypeFloat     DataType = "float"
)

var dataTypes = map[DataType]bool{
	TypeText: true, TypeInteger: true, TypeBoolean: true, TypeTimestamp: true,
	TypeUUID: true, TypeJSONB: true, TypeFloat: true,
}

// ParseDataType normalizes a column type tag. Blank means text.
func ParseDataType(s string) (DataType, error) {
	t := DataType(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return TypeText, nil
	}
	if !dataTypes[t] {
		return "", fmt.Errorf("%w: %q", ErrInvalidColumnType, s)
	}
	return t, nil
}

// ColumnDef is the caller's description of a column to create.
type ColumnDef struct {
	Name         string  `json:"name"`
	DataType     string  `json:"data_type"`
	IsNullable   bool    `json:"is_nullable"`
	DefaultValue *string `json:"default_value"`
}

// DefaultFor converts a column's default string into a value of the column's
// type. Strings that do not parse as the declared type stay strings.
func (c Column) DefaultFor() (Value, bool) {
	if c.DefaultValue == nil {
		return Value{}, false
	}
	raw := *c.DefaultValue
	switch c.DataType {
	case TypeInteger:
		if i, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
			return Int(i), true
		}
	case TypeFloat:
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return Float(f), true
		}
	case TypeBoolean:
		if b, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
			return Bool(b), true
		}
	case TypeJSONB:
		if v, err := ParseValue([]byte(raw)); err == nil {
			return v, true
		}
	}
	return String(raw), true
}

// Accepts reports whether v fits the column's declared type. Null is judged
// by nullability alone.
func (c Column) Accepts(v Value) bool {
	if v.IsNull() {
		return c.IsNullable
	}
	switch c.DataType {
	case TypeText:
		return v.Kind() == KindString
	case TypeInteger:
		f, ok := v.Float()
		return ok && f == math.Trunc(f)
	case TypeFloat:
		return v.Kind() == KindNumber
	case TypeBoolean:
		return v.Kind() == KindBool
	case TypeTimestamp:
		if v.Kind() != KindString {
			return false
		}
		_, err := time.Parse(time.RFC3339Nano, v.Str())
		return err == nil
	case TypeUUID:
		if v.Kind() != KindString {
			return false
		}
		_, err := uuid.Parse(v.Str())
		return err == nil
	case TypeJSONB:
		return true
	}
	return false
}
