package behavior

import (
	"errors"
	"fmt"

	"github.com/mesh-intelligence/spyglass/pkg/wrapper"
)

// Stub is the set of wrapped objects built from a definition.
type Stub struct {
	// Root holds one *wrapper.Object member per interface.
	Root *wrapper.Object

	def      *Definition
	wrappers map[string]*wrapper.Wrapper
}

func stubFunc(any, ...any) (any, error) { return nil, nil }

// Stub builds wrapped objects for every interface. Function members do
// nothing unless a behavior says otherwise; property members start at
// their declared value. cfg is applied to every wrapper, except that
// function members never call their (empty) implementation.
func (d *Definition) Stub(cfg wrapper.Config) (*Stub, error) {
	s := &Stub{
		Root:     wrapper.NewObject("stub", nil),
		def:      d,
		wrappers: make(map[string]*wrapper.Wrapper),
	}
	for _, iface := range d.Interfaces {
		obj := wrapper.NewObject(iface.Name, nil)
		for _, m := range iface.Members {
			if m.Kind == KindFunction {
				obj.Put(m.Name, wrapper.Func(stubFunc))
			} else {
				obj.Put(m.Name, m.Value)
			}
			w, err := wrapper.WrapMember(obj, m.Name)
			if err != nil {
				return nil, err
			}
			c := cfg
			if m.Kind == KindFunction {
				c.CallUnderlying = false
			}
			if err := w.Configure(c); err != nil {
				return nil, err
			}
			s.wrappers[iface.Name+"."+m.Name] = w
		}
		s.Root.Put(iface.Name, obj)
	}

	for _, b := range d.Behaviors {
		w, ok := s.wrappers[b.Member]
		if !ok {
			return nil, fmt.Errorf("%w: %s: unknown member %q", ErrInvalidDefinition, b.Label(), b.Member)
		}
		if err := install(w, b); err != nil {
			return nil, fmt.Errorf("%s: %w", b.Label(), err)
		}
	}
	return s, nil
}

func install(w *wrapper.Wrapper, b Behavior) error {
	var t *wrapper.Trigger
	switch {
	case b.When.CallNumber != nil:
		t = w.TriggerOnCallNumber(*b.When.CallNumber)
	case b.When.Args != nil:
		t = w.TriggerOnCallArgs(b.When.Args...)
	case b.When.SetVal != nil:
		t = w.TriggerOnSetVal(b.When.SetVal)
	case b.When.GetNumber != nil:
		t = w.TriggerOnGetNumber(*b.When.GetNumber)
	default:
		t = w.TriggerAlways()
	}

	if b.SetVal != nil {
		t.ActionSetVal(b.SetVal)
	}
	if b.Return != nil {
		t.ActionReturn(b.Return)
	}
	if b.Throw != "" {
		t.ActionThrowException(&ThrownError{Message: b.Throw})
	}
	if b.Resolve != nil {
		t.ActionReturnResolvedPromise(b.Resolve)
	}
	if b.Reject != "" {
		t.ActionReturnRejectedPromise(&ThrownError{Message: b.Reject})
	}
	return t.Err()
}

// Wrapper returns the wrapper of "interface.member".
func (s *Stub) Wrapper(ref string) (*wrapper.Wrapper, error) {
	w, ok := s.wrappers[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", wrapper.ErrNoMember, ref)
	}
	return w, nil
}

// Object returns the stub object of an interface.
func (s *Stub) Object(iface string) (*wrapper.Object, error) {
	v, err := s.Root.Get(iface)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*wrapper.Object)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an interface", wrapper.ErrType, iface)
	}
	return obj, nil
}

// Restore unwraps every member, leaving the objects holding their
// declared values.
func (s *Stub) Restore() error {
	var errs []error
	for _, ref := range s.def.MemberRefs() {
		w := s.wrappers[ref]
		if w == nil || w.Unwrapped() {
			continue
		}
		if _, err := w.Unwrap(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
