package wrapper

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/google/uuid"
)

// WrapperKind says whether a Wrapper intercepts calls or property access.
type WrapperKind int

// Wrapper kinds.
const (
	KindFunction WrapperKind = iota + 1
	KindProperty
)

func (k WrapperKind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindProperty:
		return "property"
	}
	return fmt.Sprintf("WrapperKind(%d)", int(k))
}

// Wrapper is the instrumented stand-in for one function or property. It
// is not safe for concurrent use.
type Wrapper struct {
	// ID identifies the wrapper in logs and failure reports.
	ID string

	name string
	kind WrapperKind
	cfg  Config

	// orig is the wrapped implementation; impl is what dispatch invokes,
	// which differs from orig when a replacement was supplied.
	orig Func
	impl Func

	host     *Object
	key      string
	origSlot PropertyAccessor
	// shadow holds the property value while wrapped, unless the original
	// member had a custom accessor, in which case reads and writes pass
	// through to origSlot.
	shadow      any
	passthrough bool

	fnVar *funcVar

	history   *HistoryList
	triggers  []*Trigger
	failures  []string
	unwrapped bool
}

func newWrapper(kind WrapperKind, name string) *Wrapper {
	w := &Wrapper{
		ID:   uuid.Must(uuid.NewV7()).String(),
		name: name,
		kind: kind,
		cfg:  DefaultConfig(),
	}
	w.history = newHistoryList(w)
	return w
}

func noop(any, ...any) (any, error) { return nil, nil }

// New returns a wrapper around a function that does nothing and returns
// nil.
func New() *Wrapper {
	return Wrap(nil)
}

// Wrap returns a wrapper around fn. A nil fn wraps a no-op.
func Wrap(fn Func) *Wrapper {
	name := "anonymous"
	if fn == nil {
		fn = noop
		name = "noop"
	} else if n := funcName(reflect.ValueOf(fn)); n != "" {
		name = n
	}
	w := newWrapper(KindFunction, name)
	w.orig, w.impl = fn, fn
	w.logEvent("wrap")
	return w
}

// WrapMember wraps one member of obj in place. Members holding a Func
// become function wrappers; every other member becomes a property
// wrapper. Wrapping an already wrapped member returns its wrapper.
func WrapMember(obj *Object, key string) (*Wrapper, error) {
	if obj == nil {
		return nil, typeErrorf("nil object")
	}
	acc, ok := obj.slot(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrNoMember, obj.name, key)
	}
	if w := wrapperOf(acc); w != nil {
		if !w.cfg.AllowRewrap {
			return nil, fmt.Errorf("%w: %s.%s", ErrRewrap, obj.name, key)
		}
		return w, nil
	}

	if vs, ok := acc.(*valueSlot); ok {
		if fn, ok := vs.value.(Func); ok && fn != nil {
			return wrapMethod(obj, key, acc, fn, fn), nil
		}
	}

	w := newWrapper(KindProperty, obj.name+"."+key)
	w.host, w.key, w.origSlot = obj, key, acc
	if vs, ok := acc.(*valueSlot); ok {
		w.shadow = vs.value
	} else {
		w.passthrough = true
	}
	obj.replace(key, &propertySlot{w: w})
	w.logEvent("wrap")
	return w, nil
}

// WrapMemberWith wraps a method of obj, running replacement instead of the
// original implementation. A missing member is created. Supplying a
// replacement for an already wrapped member fails with ErrRewrap.
func WrapMemberWith(obj *Object, key string, replacement Func) (*Wrapper, error) {
	if obj == nil {
		return nil, typeErrorf("nil object")
	}
	if replacement == nil {
		return nil, typeErrorf("nil replacement for %s.%s", obj.name, key)
	}
	acc, ok := obj.slot(key)
	if !ok {
		acc = &valueSlot{}
		obj.Define(key, acc)
	}
	if wrapperOf(acc) != nil {
		return nil, fmt.Errorf("%w: cannot replace the implementation of %s.%s", ErrRewrap, obj.name, key)
	}
	vs, ok := acc.(*valueSlot)
	if !ok {
		return nil, typeErrorf("%s.%s is an accessor property, not a method", obj.name, key)
	}
	var orig Func
	switch v := vs.value.(type) {
	case nil:
		orig = noop
	case Func:
		orig = v
	default:
		return nil, typeErrorf("%s.%s is not a function", obj.name, key)
	}
	return wrapMethod(obj, key, acc, orig, replacement), nil
}

func wrapMethod(obj *Object, key string, acc PropertyAccessor, orig, impl Func) *Wrapper {
	w := newWrapper(KindFunction, obj.name+"."+key)
	w.host, w.key, w.origSlot = obj, key, acc
	w.orig, w.impl = orig, impl
	obj.replace(key, &methodSlot{w: w})
	w.logEvent("wrap")
	return w
}

// WrapObject wraps every member of obj, recursing into members that hold
// an *Object. It returns every wrapper involved, including existing ones.
func WrapObject(obj *Object) ([]*Wrapper, error) {
	if obj == nil {
		return nil, typeErrorf("nil object")
	}
	var out []*Wrapper
	for _, key := range obj.Keys() {
		acc, _ := obj.slot(key)
		if vs, ok := acc.(*valueSlot); ok {
			if nested, ok := vs.value.(*Object); ok && nested != nil {
				ws, err := WrapObject(nested)
				if err != nil {
					return out, err
				}
				out = append(out, ws...)
				continue
			}
		}
		w, err := WrapMember(obj, key)
		if err != nil {
			return out, err
		}
		out = append(out, w)
	}
	return out, nil
}

// Name returns a human-readable name for the wrapped target.
func (w *Wrapper) Name() string { return w.name }

// Kind returns whether the wrapper intercepts calls or property access.
func (w *Wrapper) Kind() WrapperKind { return w.kind }

// History returns the wrapper's history. It stays readable after Unwrap.
func (w *Wrapper) History() *HistoryList { return w.history }

// Triggers returns the registered triggers in order.
func (w *Wrapper) Triggers() []*Trigger { return append([]*Trigger(nil), w.triggers...) }

// Unwrapped reports whether Unwrap has been called.
func (w *Wrapper) Unwrapped() bool { return w.unwrapped }

// Failures returns the pending expectation failures.
func (w *Wrapper) Failures() []string { return append([]string(nil), w.failures...) }

func (w *Wrapper) checkActive() error {
	if w.unwrapped {
		return fmt.Errorf("%w: %s", ErrUnwrapped, w.name)
	}
	return nil
}

func (w *Wrapper) checkKind(kind WrapperKind, what string) error {
	if w.kind != kind {
		return fmt.Errorf("%w: %s needs a %s wrapper, %s is a %s wrapper", ErrKindMismatch, what, kind, w.name, w.kind)
	}
	return nil
}

// Call invokes a function wrapper with a nil receiver.
func (w *Wrapper) Call(args ...any) (any, error) {
	return w.CallWith(nil, args...)
}

// CallWith invokes a function wrapper with self as the receiver.
func (w *Wrapper) CallWith(self any, args ...any) (any, error) {
	if err := w.checkActive(); err != nil {
		return nil, err
	}
	if err := w.checkKind(KindFunction, "Call"); err != nil {
		return nil, err
	}
	op := newCallOperation(w, self, args)
	return w.dispatch(op, func(op *Operation) {
		op.returnValue, op.exception = safeInvoke(w.impl, op.context, op.args)
	})
}

// Func returns the wrapper's entry point as a Func, suitable for passing
// wherever the wrapped function was expected.
func (w *Wrapper) Func() Func {
	return func(self any, args ...any) (any, error) {
		return w.CallWith(self, args...)
	}
}

// Get reads a property wrapper.
func (w *Wrapper) Get() (any, error) {
	if err := w.checkActive(); err != nil {
		return nil, err
	}
	if err := w.checkKind(KindProperty, "Get"); err != nil {
		return nil, err
	}
	op := newPropertyOperation(w, OpGet, nil)
	return w.dispatch(op, func(op *Operation) {
		if w.passthrough {
			op.returnValue, op.exception = w.origSlot.Get()
			return
		}
		op.returnValue = w.shadow
	})
}

// Set writes a property wrapper. The value being set, after any
// ActionSetVal, is the operation's return value whether or not it is
// stored.
func (w *Wrapper) Set(v any) error {
	if err := w.checkActive(); err != nil {
		return err
	}
	if err := w.checkKind(KindProperty, "Set"); err != nil {
		return err
	}
	op := newPropertyOperation(w, OpSet, v)
	_, err := w.dispatch(op, func(op *Operation) {
		if w.passthrough {
			op.exception = w.origSlot.Set(op.setVal)
		} else {
			w.shadow = op.setVal
		}
	})
	return err
}

// dispatch drives one operation through pre triggers, the underlying
// target, post triggers and the history.
func (w *Wrapper) dispatch(op *Operation, underlying func(op *Operation)) (any, error) {
	if err := w.triggerErr(); err != nil {
		return nil, err
	}
	if err := w.runTriggers(op); err != nil {
		return nil, err
	}
	if op.kind == OpSet {
		op.returnValue = op.setVal
	}
	if w.cfg.CallUnderlying {
		underlying(op)
	}
	op.phase = PhasePost
	if err := w.runTriggers(op); err != nil {
		return nil, err
	}
	op.phase = PhaseBoth
	op.number = w.history.Len()
	w.history.append(op)
	w.cfg.Logger.Debug("wrapper operation",
		"wrapper", w.name, "id", w.ID, "op", op.kind.String(), "number", op.number,
		"exception", op.exception != nil)
	return op.returnValue, op.exception
}

func (w *Wrapper) runTriggers(op *Operation) error {
	for _, t := range w.triggers {
		if err := t.run(op); err != nil {
			return err
		}
	}
	return nil
}

func (w *Wrapper) triggerErr() error {
	for i, t := range w.triggers {
		if t.err != nil {
			return fmt.Errorf("trigger %d on %s: %w", i, w.name, t.err)
		}
	}
	return nil
}

func safeInvoke(fn Func, self any, args []any) (ret any, err error) {
	defer func() {
		if r := recover(); r != nil {
			ret, err = nil, &PanicError{Value: r}
		}
	}()
	return fn(self, args...)
}

// Unwrap restores the wrapped target and returns the original value: the
// original Func, the original member value, or the original function
// stored in a wrapped variable. The wrapper cannot be used afterwards.
func (w *Wrapper) Unwrap() (any, error) {
	if err := w.checkActive(); err != nil {
		return nil, err
	}
	var orig any
	switch {
	case w.fnVar != nil:
		orig = w.fnVar.restore()
	case w.host != nil:
		w.host.replace(w.key, w.origSlot)
		orig, _ = w.origSlot.Get()
	default:
		orig = w.orig
	}
	w.unwrapped = true
	w.logEvent("unwrap")
	return orig, nil
}

// ExpectReportAllFailures returns nil when no expectation has failed and
// an *ExpectError listing every failure otherwise. With clear set the
// failure log is emptied either way.
func (w *Wrapper) ExpectReportAllFailures(clear bool) error {
	if err := w.checkActive(); err != nil {
		return err
	}
	failures := w.failures
	if clear {
		w.failures = nil
	}
	if len(failures) == 0 {
		return nil
	}
	return &ExpectError{Failures: append([]string(nil), failures...)}
}

// fail records an expectation failure and panics when configured to.
func (w *Wrapper) fail(msg string) {
	w.record(msg)
	if w.cfg.ExpectThrows {
		panic(&ExpectError{Failures: []string{w.attribute(msg)}})
	}
}

func (w *Wrapper) record(msg string) {
	w.failures = append(w.failures, w.attribute(msg))
	w.cfg.Logger.Debug("expectation failed", "wrapper", w.name, "id", w.ID, "failure", msg)
}

func (w *Wrapper) attribute(msg string) string {
	return w.name + ": " + msg
}

func (w *Wrapper) logEvent(event string) {
	w.cfg.Logger.Debug("wrapper "+event, "wrapper", w.name, "id", w.ID, "kind", w.kind.String())
}

func funcName(v reflect.Value) string {
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return ""
	}
	name := f.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Member slots installed by wrapping.

type methodSlot struct{ w *Wrapper }

func (s *methodSlot) Get() (any, error) { return s.w.Func(), nil }

func (s *methodSlot) Set(any) error {
	return typeErrorf("cannot assign to wrapped method %s; unwrap it first", s.w.name)
}

func (s *methodSlot) peek() any { return s.w.orig }

type propertySlot struct{ w *Wrapper }

func (s *propertySlot) Get() (any, error) { return s.w.Get() }
func (s *propertySlot) Set(v any) error   { return s.w.Set(v) }

func (s *propertySlot) peek() any {
	if s.w.passthrough {
		if p, ok := s.w.origSlot.(peeker); ok {
			return p.peek()
		}
		return nil
	}
	return s.w.shadow
}

func wrapperOf(acc PropertyAccessor) *Wrapper {
	switch s := acc.(type) {
	case *methodSlot:
		return s.w
	case *propertySlot:
		return s.w
	}
	return nil
}

// IsWrapper reports whether target is a live *Wrapper or a pointer to a
// function variable that is currently wrapped.
func IsWrapper(target any) bool {
	switch t := target.(type) {
	case *Wrapper:
		return t != nil && !t.unwrapped
	case nil:
		return false
	}
	return lookupVar(target) != nil
}

// IsWrappedMember reports whether obj.key is currently wrapped.
func IsWrappedMember(obj *Object, key string) bool {
	if obj == nil {
		return false
	}
	acc, ok := obj.slot(key)
	return ok && wrapperOf(acc) != nil
}

// FromMember returns the wrapper installed on obj.key.
func FromMember(obj *Object, key string) (*Wrapper, error) {
	if obj == nil {
		return nil, typeErrorf("nil object")
	}
	acc, ok := obj.slot(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrNoMember, obj.name, key)
	}
	w := wrapperOf(acc)
	if w == nil {
		return nil, typeErrorf("%s.%s is not wrapped", obj.name, key)
	}
	return w, nil
}

// Unwrap unwraps target, which must be a *Wrapper or a pointer to a
// wrapped function variable, and returns the original value.
func Unwrap(target any) (any, error) {
	if w, ok := target.(*Wrapper); ok && w != nil {
		return w.Unwrap()
	}
	if w := lookupVar(target); w != nil {
		return w.Unwrap()
	}
	return nil, typeErrorf("%T is not a wrapper", target)
}

// UnwrapMember unwraps obj.key and returns the original member value.
func UnwrapMember(obj *Object, key string) (any, error) {
	w, err := FromMember(obj, key)
	if err != nil {
		return nil, err
	}
	return w.Unwrap()
}
