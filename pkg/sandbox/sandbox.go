// Package sandbox tracks the wrappers created during a test so they can
// all be restored in one call.
package sandbox

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/mesh-intelligence/spyglass/pkg/wrapper"
)

// Sandbox lifecycle errors.
var (
	ErrAlreadyStarted = errors.New("sandbox already started")
	ErrNotStarted     = errors.New("sandbox not started")
)

// Sandbox remembers every wrapper created through it.
type Sandbox struct {
	mu       sync.Mutex
	wrappers []*wrapper.Wrapper
}

// New returns an empty sandbox.
func New() *Sandbox {
	return &Sandbox{}
}

func (s *Sandbox) track(w *wrapper.Wrapper) *wrapper.Wrapper {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.wrappers, w) {
		s.wrappers = append(s.wrappers, w)
	}
	return w
}

// Wrap wraps fn and tracks the wrapper.
func (s *Sandbox) Wrap(fn wrapper.Func) *wrapper.Wrapper {
	return s.track(wrapper.Wrap(fn))
}

// WrapVar wraps the function variable fnPtr points to.
func (s *Sandbox) WrapVar(fnPtr any) (*wrapper.Wrapper, error) {
	w, err := wrapper.WrapVar(fnPtr)
	if err != nil {
		return nil, err
	}
	return s.track(w), nil
}

// WrapMember wraps obj.key.
func (s *Sandbox) WrapMember(obj *wrapper.Object, key string) (*wrapper.Wrapper, error) {
	w, err := wrapper.WrapMember(obj, key)
	if err != nil {
		return nil, err
	}
	return s.track(w), nil
}

// WrapMemberWith wraps obj.key with a replacement implementation.
func (s *Sandbox) WrapMemberWith(obj *wrapper.Object, key string, replacement wrapper.Func) (*wrapper.Wrapper, error) {
	w, err := wrapper.WrapMemberWith(obj, key, replacement)
	if err != nil {
		return nil, err
	}
	return s.track(w), nil
}

// WrapObject wraps every member of obj. Wrappers created before a failure
// are still tracked.
func (s *Sandbox) WrapObject(obj *wrapper.Object) ([]*wrapper.Wrapper, error) {
	ws, err := wrapper.WrapObject(obj)
	for _, w := range ws {
		s.track(w)
	}
	return ws, err
}

// Wrappers returns the tracked wrappers in creation order.
func (s *Sandbox) Wrappers() []*wrapper.Wrapper {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.wrappers)
}

// Restore unwraps every tracked wrapper, newest first, and forgets them.
// Wrappers already unwrapped elsewhere are skipped.
func (s *Sandbox) Restore() error {
	s.mu.Lock()
	ws := s.wrappers
	s.wrappers = nil
	s.mu.Unlock()

	var errs []error
	restored := 0
	for i := len(ws) - 1; i >= 0; i-- {
		w := ws[i]
		if w.Unwrapped() {
			continue
		}
		if _, err := w.Unwrap(); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", w.Name(), err))
			continue
		}
		restored++
	}
	wrapper.DefaultConfig().Logger.Debug("sandbox restored", "wrappers", restored, "errors", len(errs))
	return errors.Join(errs...)
}

// Run calls fn with a fresh sandbox that is restored when tb finishes.
func Run(tb testing.TB, fn func(s *Sandbox)) {
	tb.Helper()
	s := New()
	tb.Cleanup(func() {
		if err := s.Restore(); err != nil {
			tb.Errorf("sandbox restore: %v", err)
		}
	})
	fn(s)
}

var (
	globalMu sync.Mutex
	global   *Sandbox
)

// Start creates the process-wide sandbox.
func Start() (*Sandbox, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global != nil {
		return nil, ErrAlreadyStarted
	}
	global = New()
	return global, nil
}

// Current returns the process-wide sandbox, or nil when none is started.
func Current() *Sandbox {
	globalMu.Lock()
	defer globalMu.Unlock()
	return global
}

// Stop restores and discards the process-wide sandbox.
func Stop() error {
	globalMu.Lock()
	s := global
	global = nil
	globalMu.Unlock()
	if s == nil {
		return ErrNotStarted
	}
	return s.Restore()
}
