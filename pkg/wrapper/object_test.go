package wrapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertyScenario(t *testing.T) {
	obj := NewObject("drinks", map[string]any{"beer": "yummy"})
	w, err := WrapMember(obj, "beer")
	require.NoError(t, err)
	assert.Equal(t, KindProperty, w.Kind())
	assert.Equal(t, "drinks.beer", w.Name())
	assert.True(t, IsWrappedMember(obj, "beer"))

	v, err := obj.Get("beer")
	require.NoError(t, err)
	assert.Equal(t, "yummy", v)
	require.NoError(t, obj.Set("beer", "yucky"))
	v, err = obj.Get("beer")
	require.NoError(t, err)
	assert.Equal(t, "yucky", v)

	h := w.History()
	require.Equal(t, 3, h.Len())
	assert.Equal(t, 2, h.FilterPropGet().Len())
	assert.True(t, h.FilterPropSet().ExpectCount(1))

	set, err := h.FilterByNumber(1)
	require.NoError(t, err)
	assert.Equal(t, OpSet, set.Kind())
	assert.True(t, set.ExpectSetVal("yucky"))
	assert.True(t, set.ExpectReturn("yucky"))
	_, err = set.Args()
	assert.ErrorIs(t, err, ErrKindMismatch)

	last, err := h.FilterLast()
	require.NoError(t, err)
	assert.True(t, last.ExpectReturn("yucky"))

	orig, err := UnwrapMember(obj, "beer")
	require.NoError(t, err)
	assert.Equal(t, "yummy", orig)
	assert.False(t, IsWrappedMember(obj, "beer"))

	v, err = obj.Get("beer")
	require.NoError(t, err)
	assert.Equal(t, "yummy", v, "writes made while wrapped are discarded")
	assert.Equal(t, 3, w.History().Len(), "history stays readable")
}

func TestSetWithoutCallUnderlying(t *testing.T) {
	obj := NewObject("drinks", map[string]any{"beer": "yummy"})
	w, err := WrapMember(obj, "beer")
	require.NoError(t, err)
	require.NoError(t, w.ConfigCallUnderlying(false))
	w.TriggerOnSetVal("flat").ActionSetVal("fizzy")

	require.NoError(t, obj.Set("beer", "gone"))
	require.NoError(t, obj.Set("beer", "flat"))

	sets := w.History().FilterPropSet()
	assert.Equal(t, []any{"gone", "fizzy"}, sets.GetAllReturns())
	first, err := sets.FilterFirst()
	require.NoError(t, err)
	assert.True(t, first.ExpectReturn("gone"))

	_, err = w.Unwrap()
	require.NoError(t, err)
	v, err := obj.Get("beer")
	require.NoError(t, err)
	assert.Equal(t, "yummy", v, "nothing was stored")
}

func TestFieldDoesNotRecord(t *testing.T) {
	obj := NewObject("o", map[string]any{"a": 1})
	w, err := WrapMember(obj, "a")
	require.NoError(t, err)

	v, ok := obj.Field("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Zero(t, w.History().Len())
	_, err = w.Unwrap()
	require.NoError(t, err)
}

type countingAccessor struct {
	value any
	gets  int
	sets  int
}

func (a *countingAccessor) Get() (any, error) { a.gets++; return a.value, nil }
func (a *countingAccessor) Set(v any) error   { a.sets++; a.value = v; return nil }

func TestCustomAccessorPassesThrough(t *testing.T) {
	acc := &countingAccessor{value: 10}
	obj := NewObject("o", nil)
	obj.Define("n", acc)

	w, err := WrapMember(obj, "n")
	require.NoError(t, err)

	v, err := obj.Get("n")
	require.NoError(t, err)
	assert.Equal(t, 10, v)
	require.NoError(t, obj.Set("n", 11))
	assert.Equal(t, 1, acc.gets)
	assert.Equal(t, 1, acc.sets)
	assert.Equal(t, 11, acc.value)
	assert.Equal(t, 2, w.History().Len())

	_, err = w.Unwrap()
	require.NoError(t, err)
	v, err = obj.Get("n")
	require.NoError(t, err)
	assert.Equal(t, 11, v)

	restored, ok := obj.slot("n")
	require.True(t, ok)
	assert.Same(t, acc, restored, "unwrap puts back the original accessor")
}

func greet(self any, args ...any) (any, error) {
	name, _ := args[0].(string)
	return "hello " + name, nil
}

func TestMethodWrapper(t *testing.T) {
	obj := NewObject("greeter", map[string]any{"greet": Func(greet)})
	w, err := WrapMember(obj, "greet")
	require.NoError(t, err)
	assert.Equal(t, KindFunction, w.Kind())

	ret, err := obj.Call("greet", "bob")
	require.NoError(t, err)
	assert.Equal(t, "hello bob", ret)

	op, err := w.History().FilterOnly()
	require.NoError(t, err)
	assert.True(t, op.ExpectContext(obj))
	assert.True(t, op.ExpectCallArgs("bob"))

	filtered, err := w.History().FilterByCallContext(obj)
	require.NoError(t, err)
	assert.Equal(t, 1, filtered.Len())

	assert.Error(t, obj.Set("greet", Func(greet)), "wrapped methods cannot be reassigned")

	orig, err := w.Unwrap()
	require.NoError(t, err)
	_, ok := orig.(Func)
	assert.True(t, ok)
	ret, err = obj.Call("greet", "amy")
	require.NoError(t, err)
	assert.Equal(t, "hello amy", ret)
	assert.Equal(t, 1, w.History().Len())
}

func TestRewrapMember(t *testing.T) {
	obj := NewObject("o", map[string]any{"greet": Func(greet), "x": 1})

	w1, err := WrapMember(obj, "greet")
	require.NoError(t, err)
	w2, err := WrapMember(obj, "greet")
	require.NoError(t, err)
	assert.Same(t, w1, w2)

	_, err = WrapMemberWith(obj, "greet", Func(greet))
	assert.ErrorIs(t, err, ErrRewrap)

	require.NoError(t, w1.ConfigAllowRewrap(false))
	_, err = WrapMember(obj, "greet")
	assert.ErrorIs(t, err, ErrRewrap)

	_, err = WrapMember(obj, "missing")
	assert.ErrorIs(t, err, ErrNoMember)
}

func TestWrapMemberWith(t *testing.T) {
	obj := NewObject("o", map[string]any{"greet": Func(greet)})
	w, err := WrapMemberWith(obj, "greet", func(any, ...any) (any, error) {
		return "replaced", nil
	})
	require.NoError(t, err)

	ret, err := obj.Call("greet", "bob")
	require.NoError(t, err)
	assert.Equal(t, "replaced", ret)

	_, err = w.Unwrap()
	require.NoError(t, err)
	ret, err = obj.Call("greet", "bob")
	require.NoError(t, err)
	assert.Equal(t, "hello bob", ret)
}

func TestWrapMemberWithCreatesMember(t *testing.T) {
	obj := NewObject("o", nil)
	w, err := WrapMemberWith(obj, "fresh", func(any, ...any) (any, error) { return 7, nil })
	require.NoError(t, err)
	assert.True(t, obj.Has("fresh"))

	ret, err := obj.Call("fresh")
	require.NoError(t, err)
	assert.Equal(t, 7, ret)
	assert.Equal(t, 1, w.History().Len())

	_, err = WrapMemberWith(NewObject("p", map[string]any{"x": 1}), "x", Func(greet))
	assert.ErrorIs(t, err, ErrType)
}

func TestWrapObject(t *testing.T) {
	inner := NewObject("inner", map[string]any{"depth": 2})
	obj := NewObject("outer", map[string]any{
		"greet": Func(greet),
		"inner": inner,
		"name":  "outer",
	})

	ws, err := WrapObject(obj)
	require.NoError(t, err)
	require.Len(t, ws, 3)

	names := make([]string, len(ws))
	for i, w := range ws {
		names[i] = w.Name()
	}
	assert.Equal(t, []string{"outer.greet", "inner.depth", "outer.name"}, names)
	assert.True(t, IsWrappedMember(inner, "depth"))
	assert.False(t, IsWrappedMember(obj, "inner"))

	again, err := WrapObject(obj)
	require.NoError(t, err)
	for i := range ws {
		assert.Same(t, ws[i], again[i])
	}
}

func TestObjectCallErrors(t *testing.T) {
	obj := NewObject("o", map[string]any{"x": 1})
	_, err := obj.Call("x")
	assert.ErrorIs(t, err, ErrType)
	_, err = obj.Call("nope")
	assert.ErrorIs(t, err, ErrNoMember)
	assert.Equal(t, "[object o]", obj.String())
}
