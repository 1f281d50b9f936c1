package wrapper

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mesh-intelligence/spyglass/pkg/match"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// calledWith returns a square wrapper that has seen each argument once.
func calledWith(t *testing.T, args ...any) *Wrapper {
	t.Helper()
	w := Wrap(square)
	for _, a := range args {
		_, _ = w.Call(a)
	}
	return w
}

func TestFilterSelection(t *testing.T) {
	w := calledWith(t, 1, 2, 3)
	h := w.History()

	first, err := h.FilterFirst()
	require.NoError(t, err)
	assert.Equal(t, 0, first.Number())

	last, err := h.FilterLast()
	require.NoError(t, err)
	assert.Equal(t, 2, last.Number())

	_, err = h.FilterOnly()
	assert.ErrorIs(t, err, ErrRange)

	for _, n := range []int{-1, 3} {
		_, err := h.FilterByNumber(n)
		assert.ErrorIs(t, err, ErrRange, "index %d", n)
	}

	empty := New().History()
	_, err = empty.FilterFirst()
	assert.ErrorIs(t, err, ErrRange)
	_, err = empty.FilterLast()
	assert.ErrorIs(t, err, ErrRange)
}

func TestFilterComposition(t *testing.T) {
	w := calledWith(t, 2, "x", 2, 3, "x", 2)
	h := w.History()

	twos := h.FilterByCallArgs(2)
	assert.Equal(t, 3, twos.Len())
	assert.True(t, twos.FilterByException(nil).ExpectCount(3))
	assert.True(t, h.FilterByException(&TypeError{"expected a number"}).ExpectCount(2))
	assert.True(t, h.FilterByReturn(4).FilterByCallArgs(2).ExpectCount(3))

	// Derived lists keep the original numbering.
	op, err := twos.FilterByNumber(1)
	require.NoError(t, err)
	assert.Equal(t, 2, op.Number())

	assert.Equal(t, 6, h.Len(), "filtering leaves the source untouched")
	assert.Zero(t, h.FilterPropGet().Len())
}

func TestFilterByCallContext(t *testing.T) {
	a := NewObject("a", nil)
	b := map[string]any{"name": "b"}
	w := New()
	_, _ = w.CallWith(a)
	_, _ = w.CallWith(b)
	_, _ = w.Call()

	tests := []struct {
		name    string
		ctx     any
		want    int
		wantErr bool
	}{
		{"object", a, 1, false},
		{"map", map[string]any{"name": "b"}, 1, false},
		{"nil", nil, 1, false},
		{"string", "nope", 0, true},
		{"number", 42, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := w.History().FilterByCallContext(tt.ctx)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Len())
		})
	}
}

func TestProjections(t *testing.T) {
	w := calledWith(t, 2, "x", 3)
	h := w.History()

	assert.Equal(t, [][]any{{2}, {"x"}, {3}}, h.GetAllCallArgs())
	assert.Equal(t, []any{nil, nil, nil}, h.GetAllCallContexts())
	assert.Equal(t, []any{4, nil, 9}, h.GetAllReturns())

	excs := h.GetAllExceptions()
	require.Len(t, excs, 3)
	assert.NoError(t, excs[0])
	assert.Error(t, excs[1])
	assert.Nil(t, h.GetAllSetVals())
}

func TestCountExpectations(t *testing.T) {
	h := calledWith(t, 1, 2, 3).History()
	tests := []struct {
		name  string
		check func() bool
		want  bool
	}{
		{"count", func() bool { return h.ExpectCount(3) }, true},
		{"count wrong", func() bool { return h.ExpectCount(2) }, false},
		{"min", func() bool { return h.ExpectCountMin(3) }, true},
		{"min too high", func() bool { return h.ExpectCountMin(4) }, false},
		{"max", func() bool { return h.ExpectCountMax(3) }, true},
		{"max too low", func() bool { return h.ExpectCountMax(2) }, false},
		{"range", func() bool { return h.ExpectCountRange(1, 3) }, true},
		{"range outside", func() bool { return h.ExpectCountRange(4, 9) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check())
		})
	}
}

func TestCountFailureMessage(t *testing.T) {
	w := calledWith(t, 1)
	assert.False(t, w.History().ExpectCount(2))
	failures := w.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, fmt.Sprintf("%s: history ExpectCount: expected exactly 2 operations; got 1", w.Name()), failures[0])
}

func TestQuantifiers(t *testing.T) {
	w := calledWith(t, 2, 2, 3)
	h := w.History()

	assert.True(t, h.FilterByCallArgs(2).ExpectAll().ExpectReturn(4))
	assert.False(t, h.ExpectAll().ExpectReturn(4))
	assert.True(t, h.ExpectSome().ExpectReturn(9))
	assert.False(t, h.ExpectSome().ExpectReturn(16))
	assert.True(t, h.ExpectNone().ExpectException(errors.New("any")))
	assert.False(t, h.ExpectNone().ExpectCallArgs(3))
	assert.True(t, h.ExpectAll().ExpectContext(nil))
	assert.True(t, h.ExpectAll().ExpectCustom(func(op *Operation) error {
		if op.Kind() != OpCall {
			return errors.New("not a call")
		}
		return nil
	}))

	failures := w.Failures()
	require.Len(t, failures, 3)
	assert.Contains(t, failures[0], "history ExpectAll(ExpectReturn): operation 2 ExpectReturn")
	assert.Contains(t, failures[1], "history ExpectSome(ExpectReturn): none of 3 operations passed")
	assert.Contains(t, failures[2], "history ExpectNone(ExpectCallArgs): operation 2 passed")
}

func TestQuantifiersOnEmptyList(t *testing.T) {
	h := New().History()
	assert.True(t, h.ExpectAll().ExpectReturn(1))
	assert.True(t, h.ExpectNone().ExpectReturn(1))
	assert.False(t, h.ExpectSome().ExpectReturn(1))
}

func TestQuantifierThrows(t *testing.T) {
	w := calledWith(t, 2)
	require.NoError(t, w.ConfigExpectThrows(true))
	ee := recoverExpectError(t, func() { w.History().ExpectAll().ExpectReturn(5) })
	assert.Contains(t, ee.Error(), "expectation failed:")
}

func TestQuantifiedSetVal(t *testing.T) {
	obj := NewObject("o", map[string]any{"v": 0})
	w, err := WrapMember(obj, "v")
	require.NoError(t, err)
	require.NoError(t, obj.Set("v", 1))
	require.NoError(t, obj.Set("v", 1))
	_, err = obj.Get("v")
	require.NoError(t, err)

	h := w.History()
	assert.True(t, h.FilterPropSet().ExpectAll().ExpectSetVal(1))
	assert.False(t, h.ExpectAll().ExpectSetVal(1), "the get operation has no set value")
}

func TestOperationKindAccessors(t *testing.T) {
	obj := NewObject("o", map[string]any{"v": 0})
	w, err := WrapMember(obj, "v")
	require.NoError(t, err)
	_, err = obj.Get("v")
	require.NoError(t, err)

	op, err := w.History().FilterOnly()
	require.NoError(t, err)
	_, err = op.SetVal()
	assert.ErrorIs(t, err, ErrKindMismatch)
	_, err = op.Context()
	assert.ErrorIs(t, err, ErrKindMismatch)
	assert.False(t, op.ExpectCallArgs())
	assert.ErrorIs(t, op.SetReturnValue(1), ErrSealed)
	assert.ErrorIs(t, op.SetException(nil), ErrSealed)
	assert.Equal(t, "#0 get", op.String())
}

func TestOperationMatchType(t *testing.T) {
	w := calledWith(t, 2, 2, 3)
	ops := w.History().Operations()

	assert.True(t, match.Compare(ops[0], ops[1]))
	d := match.Diff(ops[0], ops[2])
	require.Len(t, d, 2)
	assert.Equal(t, "args[0]", d[0].Path)
	assert.Equal(t, "returnValue", d[1].Path)
	assert.Equal(t, OperationType, match.GetType(ops[0]).Name)
}
