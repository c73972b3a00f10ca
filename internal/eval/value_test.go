package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "42", FormatNumber(42))
	assert.Equal(t, "-7", FormatNumber(-7))
	assert.Equal(t, "0", FormatNumber(0))
	assert.Equal(t, "2.5", FormatNumber(2.5))
	assert.Equal(t, "1e+15", FormatNumber(1e15))
}

func TestValueTruthy(t *testing.T) {
	assert.False(t, Null().Truthy())
	assert.False(t, Bool(false).Truthy())
	assert.True(t, Bool(true).Truthy())
	assert.False(t, Number(0).Truthy())
	assert.True(t, Number(0.1).Truthy())
	assert.False(t, String("").Truthy())
	assert.True(t, String("x").Truthy())
	assert.False(t, List(nil).Truthy())
	assert.True(t, List([]Value{Null()}).Truthy())
	assert.False(t, Object(nil).Truthy())
	assert.True(t, Object([]Field{{Key: "a", Value: Null()}}).Truthy())
	assert.True(t, Unknown().Truthy())
}

func TestValueStringifyScalar(t *testing.T) {
	s, ok := Null().StringifyScalar()
	require.True(t, ok)
	assert.Equal(t, "", s)

	s, ok = Bool(true).StringifyScalar()
	require.True(t, ok)
	assert.Equal(t, "true", s)

	s, ok = Number(8080).StringifyScalar()
	require.True(t, ok)
	assert.Equal(t, "8080", s)

	_, ok = List(nil).StringifyScalar()
	assert.False(t, ok)
	_, ok = Unknown().StringifyScalar()
	assert.False(t, ok)
}

func TestValueSecret(t *testing.T) {
	v := String("hunter2")
	assert.False(t, v.IsSecret())

	s := v.Secret()
	assert.True(t, s.IsSecret())
	assert.False(t, v.IsSecret(), "Secret returns a copy")

	assert.Equal(t, "[secret]", s.GoString())
	assert.True(t, Number(1).withSecretFrom(s).IsSecret())
	assert.False(t, Number(1).withSecretFrom(v).IsSecret())
}

func TestValueObjectField(t *testing.T) {
	obj := Object([]Field{
		{Key: "a", Value: Number(1)},
		{Key: "b", Value: Number(2)},
	})

	v, ok := obj.ObjectField("b")
	require.True(t, ok)
	assert.Equal(t, 2.0, v.AsNumber())

	_, ok = obj.ObjectField("c")
	assert.False(t, ok)
}

func TestValueGoString(t *testing.T) {
	assert.Equal(t, "null", Null().GoString())
	assert.Equal(t, `"hi"`, String("hi").GoString())
	assert.Equal(t, "[unknown]", Unknown().GoString())
	assert.Equal(t, "[1, true]", List([]Value{Number(1), Bool(true)}).GoString())
	assert.Equal(t, `{a: "x"}`, Object([]Field{{Key: "a", Value: String("x")}}).GoString())
	assert.Equal(t, "resource(db)", Resource(&ResourceValue{Name: "db"}).GoString())
}
