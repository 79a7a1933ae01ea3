package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshal_Scalars(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Value
	}{
		{"string", `"hello"`, String("hello")},
		{"int", `42`, Number(42)},
		{"float", `3.5`, Number(3.5)},
		{"bool true", `true`, Bool(true)},
		{"bool false", `false`, Bool(false)},
		{"null", `null`, Null{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Unmarshal([]byte(tt.json))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnmarshal_Nested(t *testing.T) {
	v, err := Unmarshal([]byte(`{"a":{"b":[1,2.5,"x",null,true]}}`))
	require.NoError(t, err)

	obj, ok := v.(Object)
	require.True(t, ok)

	inner, ok := obj["a"].(Object)
	require.True(t, ok)

	arr, ok := inner["b"].(Array)
	require.True(t, ok)
	assert.Equal(t, Array{Number(1), Number(2.5), String("x"), Null{}, Bool(true)}, arr)
}

func TestUnmarshalObject_RejectsNonObject(t *testing.T) {
	_, err := UnmarshalObject([]byte(`[1,2,3]`))
	assert.Error(t, err)
}

func TestClone_DeepCopy(t *testing.T) {
	orig := Object{
		"a": Object{"b": Number(5)},
		"c": Array{String("x")},
	}

	cloned := Clone(orig).(Object)

	// Mutate the clone, original must not change
	cloned["a"].(Object)["b"] = Number(99)
	cloned["c"].(Array)[0] = String("y")

	assert.Equal(t, Number(5), orig["a"].(Object)["b"])
	assert.Equal(t, String("x"), orig["c"].(Array)[0])
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Number(1), Number(1)))
	assert.True(t, Equal(Null{}, Null{}))
	assert.True(t, Equal(
		Object{"a": Array{Number(1)}},
		Object{"a": Array{Number(1)}},
	))
	assert.True(t, Equal(Number(math.NaN()), Number(math.NaN())),
		"NaN should compare equal to NaN for stable output comparison")

	assert.False(t, Equal(Number(1), String("1")))
	assert.False(t, Equal(Object{"a": Number(1)}, Object{"a": Number(2)}))
	assert.False(t, Equal(Object{"a": Number(1)}, Object{}))
}

func TestSortedKeys_UTF16Ordering(t *testing.T) {
	obj := Object{
		"b": Number(1),
		"a": Number(2),
		"A": Number(3),
	}
	assert.Equal(t, []string{"A", "a", "b"}, obj.SortedKeys())
}

func TestMarshal_SortedDeterministic(t *testing.T) {
	obj := Object{"z": Number(1), "a": Number(2), "m": Bool(false)}

	first, err := Marshal(obj)
	require.NoError(t, err)
	second, err := Marshal(obj)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t, `{"a":2,"m":false,"z":1}`, string(first))
}

func TestMarshal_IntegralFloatsWithoutDecimal(t *testing.T) {
	b, err := Marshal(Object{"n": Number(5), "f": Number(2.5)})
	require.NoError(t, err)
	assert.Equal(t, `{"f":2.5,"n":5}`, string(b))
}

func TestMarshal_NaNRendersNull(t *testing.T) {
	b, err := Marshal(Number(math.NaN()))
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}

func TestTruthy(t *testing.T) {
	assert.True(t, Truthy(Bool(true)))
	assert.True(t, Truthy(Number(1)))
	assert.True(t, Truthy(String("x")))
	assert.True(t, Truthy(Array{Number(1)}))

	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(Null{}))
	assert.False(t, Truthy(Bool(false)))
	assert.False(t, Truthy(Number(0)))
	assert.False(t, Truthy(Number(math.NaN())))
	assert.False(t, Truthy(String("")))
	assert.False(t, Truthy(Array{}))
	assert.False(t, Truthy(Object{}))
}

func TestFromAny_RoundTrip(t *testing.T) {
	v, err := FromAny(map[string]any{
		"s": "str",
		"n": 1.5,
		"i": 7,
		"b": true,
		"x": nil,
		"a": []any{1.0, "two"},
	})
	require.NoError(t, err)

	back := ToAny(v).(map[string]any)
	assert.Equal(t, "str", back["s"])
	assert.Equal(t, 1.5, back["n"])
	assert.Equal(t, 7.0, back["i"])
	assert.Equal(t, true, back["b"])
	assert.Nil(t, back["x"])
	assert.Equal(t, []any{1.0, "two"}, back["a"])
}
