package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/spyglass/pkg/wrapper"
)

func greet(_ any, args ...any) (any, error) {
	return "hello " + args[0].(string), nil
}

func TestRestoreUnwrapsEverything(t *testing.T) {
	obj := wrapper.NewObject("o", map[string]any{
		"greet": wrapper.Func(greet),
		"level": 1,
	})
	inc := func(n int) int { return n + 1 }

	s := New()
	fw := s.Wrap(greet)
	_, err := s.WrapMember(obj, "greet")
	require.NoError(t, err)
	_, err = s.WrapMember(obj, "level")
	require.NoError(t, err)
	_, err = s.WrapVar(&inc)
	require.NoError(t, err)
	assert.Len(t, s.Wrappers(), 4)

	_, err = fw.Unwrap()
	require.NoError(t, err)

	require.NoError(t, s.Restore())
	assert.Empty(t, s.Wrappers())
	assert.False(t, wrapper.IsWrappedMember(obj, "greet"))
	assert.False(t, wrapper.IsWrappedMember(obj, "level"))
	assert.False(t, wrapper.IsWrapper(&inc))
	assert.Equal(t, 3, inc(2))

	require.NoError(t, s.Restore(), "restoring twice is a no-op")
}

func TestTrackDeduplicates(t *testing.T) {
	obj := wrapper.NewObject("o", map[string]any{"greet": wrapper.Func(greet)})
	s := New()
	w1, err := s.WrapMember(obj, "greet")
	require.NoError(t, err)
	w2, err := s.WrapMember(obj, "greet")
	require.NoError(t, err)
	assert.Same(t, w1, w2)
	assert.Len(t, s.Wrappers(), 1)
	require.NoError(t, s.Restore())
}

func TestWrapObjectAndWith(t *testing.T) {
	obj := wrapper.NewObject("o", map[string]any{"greet": wrapper.Func(greet), "n": 1})
	s := New()
	ws, err := s.WrapObject(obj)
	require.NoError(t, err)
	assert.Len(t, ws, 2)

	other := wrapper.NewObject("p", nil)
	_, err = s.WrapMemberWith(other, "stub", func(any, ...any) (any, error) { return 1, nil })
	require.NoError(t, err)
	assert.Len(t, s.Wrappers(), 3)

	_, err = s.WrapMember(obj, "missing")
	assert.ErrorIs(t, err, wrapper.ErrNoMember)
	assert.Len(t, s.Wrappers(), 3)

	require.NoError(t, s.Restore())
	for _, w := range ws {
		assert.True(t, w.Unwrapped())
	}
}

func TestRun(t *testing.T) {
	obj := wrapper.NewObject("o", map[string]any{"greet": wrapper.Func(greet)})

	t.Run("inner", func(t *testing.T) {
		Run(t, func(s *Sandbox) {
			w, err := s.WrapMember(obj, "greet")
			require.NoError(t, err)
			w.TriggerAlways().ActionReturn("stubbed")
			ret, err := obj.Call("greet", "bob")
			require.NoError(t, err)
			assert.Equal(t, "stubbed", ret)
		})
	})

	assert.False(t, wrapper.IsWrappedMember(obj, "greet"))
	ret, err := obj.Call("greet", "bob")
	require.NoError(t, err)
	assert.Equal(t, "hello bob", ret)
}

func TestGlobalSandbox(t *testing.T) {
	require.ErrorIs(t, Stop(), ErrNotStarted)

	s, err := Start()
	require.NoError(t, err)
	assert.Same(t, s, Current())

	_, err = Start()
	assert.ErrorIs(t, err, ErrAlreadyStarted)

	w := s.Wrap(nil)
	require.NoError(t, Stop())
	assert.True(t, w.Unwrapped())
	assert.Nil(t, Current())
}
