package buddyscript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplay(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{NullValue(), "null"},
		{BoolValue(true), "true"},
		{NumberValue(3), "3"},
		{NumberValue(3.5), "3.5"},
		{NumberValue(-0.25), "-0.25"},
		{StringValue("hi"), "hi"},
		{ArrayValue([]Value{NumberValue(1), StringValue("a")}), `[1, "a"]`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.v.Display())
	}

	obj := NewMapObject()
	obj.Set("b", NumberValue(1))
	obj.Set("a", StringValue("x"))
	assert.Equal(t, `{b: 1, a: "x"}`, ObjectValue(obj).Display())
}

func TestEqualStructural(t *testing.T) {
	a := ArrayValue([]Value{NumberValue(1), StringValue("x")})
	b := ArrayValue([]Value{NumberValue(1), StringValue("x")})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(ArrayValue([]Value{NumberValue(1)})))
	assert.False(t, NumberValue(1).Equal(StringValue("1")))

	o1, o2 := NewMapObject(), NewMapObject()
	o1.Set("k", NumberValue(2))
	o2.Set("k", NumberValue(2))
	assert.True(t, ObjectValue(o1).Equal(ObjectValue(o2)))
}

func TestMapObjectOrder(t *testing.T) {
	m := NewMapObject()
	m.Set("z", NumberValue(1))
	m.Set("a", NumberValue(2))
	m.Set("z", NumberValue(3)) // update keeps position
	assert.Equal(t, []string{"z", "a"}, m.Keys)

	m.Delete("z")
	assert.Equal(t, []string{"a"}, m.Keys)
	_, ok := m.Get("z")
	assert.False(t, ok)
}

func TestConversions(t *testing.T) {
	f, err := ToNumber(StringValue(" 42 "))
	require.NoError(t, err)
	assert.Equal(t, 42.0, f)

	_, err = ToNumber(StringValue("nope"))
	require.Error(t, err)

	_, err = ToNumber(ArrayValue(nil))
	require.Error(t, err)

	f, err = ToInt(NumberValue(-3.9))
	require.NoError(t, err)
	assert.Equal(t, -3.0, f)

	assert.False(t, ToBool(NumberValue(0)))
	assert.False(t, ToBool(StringValue("")))
	assert.True(t, ToBool(ArrayValue(nil)))
}

func TestEnvChain(t *testing.T) {
	root := NewEnv(nil)
	require.NoError(t, root.Define("x", NumberValue(1), true))
	require.Error(t, root.Define("x", NumberValue(2), true), "same-scope redeclaration")

	child := NewEnv(root)
	require.NoError(t, child.Define("x", NumberValue(10), true))
	v, ok := child.Get("x")
	require.True(t, ok)
	assert.Equal(t, 10.0, v.Number())

	// Assignment walks the chain past the shadow's scope.
	require.NoError(t, NewEnv(root).Assign("x", NumberValue(5)))
	v, _ = root.Get("x")
	assert.Equal(t, 5.0, v.Number())

	require.NoError(t, root.Define("c", NumberValue(1), false))
	err := root.Assign("c", NumberValue(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "constant")

	require.Error(t, root.Assign("missing", NullValue()))
}
