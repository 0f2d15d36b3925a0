package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseValuePreservesOrderAndNumbers(t *testing.T) {
	in := `{"z":1.50,"a":[1,"two",null,true],"m":{"k":1e3}}`

	v, err := ParseValue([]byte(in))
	require.NoError(t, err)
	require.Equal(t, KindObject, v.Kind())
	assert.Equal(t, []string{"z", "a", "m"}, v.Object().Keys())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, in, string(out))
}

func TestParseValueRejectsTrailingData(t *testing.T) {
	_, err := ParseValue([]byte(`{"a":1} {"b":2}`))
	assert.Error(t, err)

	_, err = ParseObject([]byte(`[1]`))
	assert.Error(t, err)

	for _, in := range []string{`{"a":1} }`, `{"a":1} xyz`, `{"a":1} ]`, `1 ,`} {
		_, err = ParseValue([]byte(in))
		assert.Error(t, err, in)
	}

	obj, err := ParseObject([]byte("{\"a\":1} \n\t"))
	require.NoError(t, err)
	assert.Equal(t, 1, obj.Len())
}

func TestValueEqual(t *testing.T) {
	parse := func(s string) Value {
		v, err := ParseValue([]byte(s))
		require.NoError(t, err)
		return v
	}

	assert.True(t, parse(`1`).Equal(parse(`1.0`)))
	assert.True(t, parse(`{"a":1,"b":2}`).Equal(parse(`{"b":2,"a":1}`)))
	assert.True(t, parse(`[1,[2]]`).Equal(parse(`[1,[2]]`)))
	assert.False(t, parse(`[1,2]`).Equal(parse(`[2,1]`)))
	assert.False(t, parse(`"1"`).Equal(parse(`1`)))
	assert.False(t, parse(`null`).Equal(parse(`false`)))
	assert.False(t, parse(`{"a":1}`).Equal(parse(`{"a":1,"b":null}`)))
}

func TestObjectSetKeepsPosition(t *testing.T) {
	o := NewObject()
	o.Set("a", Int(1))
	o.Set("b", Int(2))
	o.Set("a", Int(3))
	o.Delete("missing")

	assert.Equal(t, []string{"a", "b"}, o.Keys())
	v, _ := o.Get("a")
	assert.Equal(t, Int(3), v)

	o.Delete("a")
	assert.Equal(t, []string{"b"}, o.Keys())
}

func TestObjectMergeAndMatches(t *testing.T) {
	base, err := ParseObject([]byte(`{"a":1,"b":2}`))
	require.NoError(t, err)
	patch, err := ParseObject([]byte(`{"b":3,"c":{"d":4}}`))
	require.NoError(t, err)

	base.Merge(patch)
	out, err := json.Marshal(base)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":3,"c":{"d":4}}`, string(out))

	// Merge copies, so later edits to the patch do not leak.
	patch.Set("b", Int(9))
	v, _ := base.Get("b")
	assert.Equal(t, Int(3), v)

	filter, err := ParseObject([]byte(`{"c":{"d":4},"a":1.0}`))
	require.NoError(t, err)
	assert.True(t, base.Matches(filter))
	assert.True(t, base.Matches(nil))
	assert.True(t, base.Matches(NewObject()))

	filter.Set("a", String("1"))
	assert.False(t, base.Matches(filter))
}

func TestPatchProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		keys := rapid.SliceOfDistinct(rapid.StringMatching(`[a-e]`), func(s string) string { return s })
		baseKeys := keys.Draw(t, "base")
		patchKeys := keys.Draw(t, "patch")

		base := NewObject()
		for i, k := range baseKeys {
			base.Set(k, Int(int64(i)))
		}
		patch := NewObject()
		for i, k := range patchKeys {
			patch.Set(k, String(string(rune('p'+i))))
		}
		before := base.Clone()

		base.Merge(patch)

		for _, k := range patchKeys {
			got, _ := base.Get(k)
			want, _ := patch.Get(k)
			if !got.Equal(want) {
				t.Fatalf("patched key %q = %v, want %v", k, got, want)
			}
		}
		for _, k := range before.Keys() {
			if _, patched := patch.Get(k); patched {
				continue
			}
			got, _ := base.Get(k)
			want, _ := before.Get(k)
			if !got.Equal(want) {
				t.Fatalf("untouched key %q changed", k)
			}
		}
	})
}

func TestFloatRejectsNonFinite(t *testing.T) {
	zero := 0.0
	assert.True(t, Float(1/zero).IsNull())
	assert.Equal(t, KindNumber, Float(2.5).Kind())
}

func TestColumnAccepts(t *testing.T) {
	col := func(dt DataType, nullable bool) Column {
		return Column{Name: "c", DataType: dt, IsNullable: nullable}
	}

	assert.True(t, col(TypeInteger, false).Accepts(Int(3)))
	assert.True(t, col(TypeInteger, false).Accepts(Float(3)))
	assert.False(t, col(TypeInteger, false).Accepts(Float(3.5)))
	assert.True(t, col(TypeFloat, false).Accepts(Float(3.5)))
	assert.False(t, col(TypeText, false).Accepts(Null()))
	assert.True(t, col(TypeText, true).Accepts(Null()))
	assert.True(t, col(TypeBoolean, false).Accepts(Bool(false)))
	assert.True(t, col(TypeJSONB, false).Accepts(Array(Int(1))))
	assert.True(t, col(TypeTimestamp, false).Accepts(String("2024-03-01T12:00:00.123Z")))
	assert.False(t, col(TypeUUID, false).Accepts(String("x")))
}

func TestParseDataType(t *testing.T) {
	dt, err := ParseDataType("")
	require.NoError(t, err)
	assert.Equal(t, TypeText, dt)

	dt, err = ParseDataType(" JSONB ")
	require.NoError(t, err)
	assert.Equal(t, TypeJSONB, dt)

	_, err = ParseDataType("varchar")
	require.ErrorIs(t, err, ErrInvalidColumnType)
}

func TestStatusCode(t *testing.T) {
	cases := map[error]int{
		nil:                  200,
		ErrMissingFields:     400,
		ErrSchemaViolation:   400,
		ErrInvalidKey:        401,
		ErrNotAuthenticated:  401,
		ErrRowNotFound:       404,
		ErrTableNotFound:     404,
		ErrDuplicateEmail:    409,
		ErrVersionConflict:   409,
		ErrInternal:          500,
		assert.AnError:       500,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusCode(err), "%v", err)
	}
	assert.Equal(t, "Internal server error", PublicMessage(assert.AnError))
	assert.Equal(t, ErrRowNotFound.Error(), PublicMessage(ErrRowNotFound))
}
