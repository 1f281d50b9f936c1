package wrapper

import (
	"fmt"
	"reflect"

	"github.com/mesh-intelligence/spyglass/pkg/match"
)

// Predicate decides whether a trigger applies to an operation.
type Predicate func(op *Operation) bool

// action is one scripted effect. It runs only in its phase, so it runs
// once per matching operation even though the predicate is evaluated in
// both phases.
type action struct {
	name  string
	phase Phase
	fn    func(op *Operation) error
}

// Trigger pairs a predicate with an ordered list of actions and
// expectations. Action methods return the trigger for chaining. A misused
// action latches an error on the trigger (see Err) instead of being added,
// and the next dispatch through the wrapper fails with it.
type Trigger struct {
	wrapper   *Wrapper
	predicate Predicate
	actions   []action
	callback  *callbackAction
	err       error
}

// NewTrigger registers a trigger with predicate on w.
func NewTrigger(w *Wrapper, predicate Predicate) (*Trigger, error) {
	if w == nil {
		return nil, typeErrorf("trigger needs a wrapper")
	}
	if predicate == nil {
		return nil, typeErrorf("trigger needs a predicate")
	}
	if err := w.checkActive(); err != nil {
		return nil, err
	}
	t := &Trigger{wrapper: w, predicate: predicate}
	w.triggers = append(w.triggers, t)
	return t, nil
}

// newTrigger is NewTrigger for the factory methods: failures are latched
// on the returned trigger.
func (w *Wrapper) newTrigger(predicate Predicate, err error) *Trigger {
	if err == nil {
		err = w.checkActive()
	}
	if err != nil {
		t := &Trigger{wrapper: w, predicate: func(*Operation) bool { return false }, err: err}
		if !w.unwrapped {
			w.triggers = append(w.triggers, t)
		}
		return t
	}
	t, _ := NewTrigger(w, predicate)
	return t
}

// Err returns the first registration error, if any.
func (t *Trigger) Err() error { return t.err }

// Wrapper returns the trigger's wrapper.
func (t *Trigger) Wrapper() *Wrapper { return t.wrapper }

func (t *Trigger) run(op *Operation) error {
	if !t.predicate(op) {
		return nil
	}
	// Indexed loop: actions added while running still run.
	for i := 0; i < len(t.actions); i++ {
		a := t.actions[i]
		if a.phase != op.phase {
			continue
		}
		if err := a.fn(op); err != nil {
			return err
		}
	}
	return nil
}

func (t *Trigger) add(name string, phase Phase, fn func(op *Operation) error) *Trigger {
	if t.err != nil {
		return t
	}
	t.actions = append(t.actions, action{name: name, phase: phase, fn: fn})
	return t
}

func (t *Trigger) latch(err error) *Trigger {
	if t.err == nil {
		t.err = err
	}
	return t
}

func (t *Trigger) require(kind WrapperKind, what string) bool {
	if t.err != nil {
		return false
	}
	if err := t.wrapper.checkKind(kind, what); err != nil {
		t.latch(err)
		return false
	}
	return true
}

// Actions.

// ActionReturn makes the operation return v.
func (t *Trigger) ActionReturn(v any) *Trigger {
	return t.add("ActionReturn", PhasePost, func(op *Operation) error {
		return op.SetReturnValue(v)
	})
}

// ActionReturnFromArg makes the call return its argument at index i, or
// nil when the call had fewer arguments.
func (t *Trigger) ActionReturnFromArg(i int) *Trigger {
	if !t.require(KindFunction, "ActionReturnFromArg") {
		return t
	}
	if i < 0 {
		return t.latch(typeErrorf("ActionReturnFromArg: negative index %d", i))
	}
	return t.add("ActionReturnFromArg", PhasePost, func(op *Operation) error {
		var v any
		if i < len(op.args) {
			v = op.args[i]
		}
		return op.SetReturnValue(v)
	})
}

// ActionReturnContext makes the call return its receiver.
func (t *Trigger) ActionReturnContext() *Trigger {
	if !t.require(KindFunction, "ActionReturnContext") {
		return t
	}
	return t.add("ActionReturnContext", PhasePost, func(op *Operation) error {
		return op.SetReturnValue(op.context)
	})
}

// ActionReturnFromContext makes the call return the named field of its
// receiver, or nil when the receiver has no such field.
func (t *Trigger) ActionReturnFromContext(key string) *Trigger {
	if !t.require(KindFunction, "ActionReturnFromContext") {
		return t
	}
	return t.add("ActionReturnFromContext", PhasePost, func(op *Operation) error {
		return op.SetReturnValue(field(op.context, key))
	})
}

// ActionThrowException makes the operation raise err. A nil err clears a
// raised error.
func (t *Trigger) ActionThrowException(err error) *Trigger {
	return t.add("ActionThrowException", PhasePost, func(op *Operation) error {
		return op.SetException(err)
	})
}

// ActionSetVal replaces the value a set operation stores. It runs before
// the value is stored.
func (t *Trigger) ActionSetVal(v any) *Trigger {
	if !t.require(KindProperty, "ActionSetVal") {
		return t
	}
	return t.add("ActionSetVal", PhasePre, func(op *Operation) error {
		if op.kind != OpSet {
			return nil
		}
		return op.SetSetVal(v)
	})
}

type callbackAction struct {
	fn       Func
	argIndex int
	args     []any
	context  any
}

// ActionCallbackFunction calls fn during dispatch. Use
// ActionCallbackArgs and ActionCallbackContext to set what it is called
// with.
func (t *Trigger) ActionCallbackFunction(fn Func) *Trigger {
	if fn == nil {
		return t.latch(typeErrorf("ActionCallbackFunction: nil function"))
	}
	return t.addCallback(&callbackAction{fn: fn, argIndex: -1})
}

// ActionCallbackToArg calls the call's own argument at index i, which must
// be a Func.
func (t *Trigger) ActionCallbackToArg(i int) *Trigger {
	if !t.require(KindFunction, "ActionCallbackToArg") {
		return t
	}
	if i < 0 {
		return t.latch(typeErrorf("ActionCallbackToArg: negative index %d", i))
	}
	return t.addCallback(&callbackAction{argIndex: i})
}

func (t *Trigger) addCallback(cb *callbackAction) *Trigger {
	if t.err != nil {
		return t
	}
	t.callback = cb
	return t.add("ActionCallback", PhasePost, func(op *Operation) error {
		fn := cb.fn
		if cb.argIndex >= 0 {
			if cb.argIndex >= len(op.args) {
				return typeErrorf("callback argument %d missing, call has %d arguments", cb.argIndex, len(op.args))
			}
			f, ok := op.args[cb.argIndex].(Func)
			if !ok || f == nil {
				return typeErrorf("callback argument %d is %T, not a Func", cb.argIndex, op.args[cb.argIndex])
			}
			fn = f
		}
		// The callback's own results do not affect the operation.
		_, _ = fn(cb.context, cb.args...)
		return nil
	})
}

// ActionCallbackArgs sets the arguments of the preceding callback action.
func (t *Trigger) ActionCallbackArgs(args ...any) *Trigger {
	if t.err != nil {
		return t
	}
	if t.callback == nil {
		return t.latch(typeErrorf("ActionCallbackArgs without a preceding callback action"))
	}
	t.callback.args = append([]any{}, args...)
	return t
}

// ActionCallbackContext sets the receiver of the preceding callback action.
func (t *Trigger) ActionCallbackContext(ctx any) *Trigger {
	if t.err != nil {
		return t
	}
	if t.callback == nil {
		return t.latch(typeErrorf("ActionCallbackContext without a preceding callback action"))
	}
	t.callback.context = ctx
	return t
}

// ActionReturnResolvedPromise makes the operation return a resolved
// *Promise holding v, or the current return value when v is omitted.
func (t *Trigger) ActionReturnResolvedPromise(v ...any) *Trigger {
	if len(v) > 1 {
		return t.latch(typeErrorf("ActionReturnResolvedPromise takes at most one value, got %d", len(v)))
	}
	return t.add("ActionReturnResolvedPromise", PhasePost, func(op *Operation) error {
		val := op.returnValue
		if len(v) == 1 {
			val = v[0]
		}
		return op.SetReturnValue(Resolved(val))
	})
}

// ActionReturnRejectedPromise makes the operation return a rejected
// *Promise instead of raising. Without err the promise is rejected with
// whatever the operation raised.
func (t *Trigger) ActionReturnRejectedPromise(err ...error) *Trigger {
	if len(err) > 1 {
		return t.latch(typeErrorf("ActionReturnRejectedPromise takes at most one error, got %d", len(err)))
	}
	return t.add("ActionReturnRejectedPromise", PhasePost, func(op *Operation) error {
		e := op.exception
		if len(err) == 1 {
			e = err[0]
		}
		if serr := op.SetException(nil); serr != nil {
			return serr
		}
		return op.SetReturnValue(Rejected(e))
	})
}

// ActionCustom runs fn against the operation after the underlying target.
// fn may change the outcome through the Operation setters; a returned
// error aborts the intercepted call with that error.
func (t *Trigger) ActionCustom(fn func(op *Operation) error) *Trigger {
	if fn == nil {
		return t.latch(typeErrorf("ActionCustom: nil function"))
	}
	return t.add("ActionCustom", PhasePost, fn)
}

// Expectation actions.

func (t *Trigger) expect(name string, c check) *Trigger {
	return t.add(name, PhasePost, func(op *Operation) error {
		ok, msg := c(op)
		if ok {
			return nil
		}
		msg = fmt.Sprintf("trigger on operation %d %s", op.number, msg)
		w := t.wrapper
		w.record(msg)
		if w.cfg.ExpectThrowsOnTrigger {
			return &ExpectError{Failures: []string{w.attribute(msg)}}
		}
		return nil
	})
}

// ExpectCallArgs checks the arguments of each matching call.
func (t *Trigger) ExpectCallArgs(args ...any) *Trigger {
	if !t.require(KindFunction, "ExpectCallArgs") {
		return t
	}
	return t.expect("ExpectCallArgs", checkCallArgs(args))
}

// ExpectContext checks the receiver of each matching call.
func (t *Trigger) ExpectContext(ctx any) *Trigger {
	if !t.require(KindFunction, "ExpectContext") {
		return t
	}
	return t.expect("ExpectContext", checkContext(ctx))
}

// ExpectReturn checks the return value of each matching operation.
func (t *Trigger) ExpectReturn(v any) *Trigger {
	return t.expect("ExpectReturn", checkReturn(v))
}

// ExpectException checks the raised error of each matching operation.
func (t *Trigger) ExpectException(err error) *Trigger {
	return t.expect("ExpectException", checkException(err))
}

// ExpectSetVal checks the stored value of each matching set operation.
func (t *Trigger) ExpectSetVal(v any) *Trigger {
	if !t.require(KindProperty, "ExpectSetVal") {
		return t
	}
	return t.expect("ExpectSetVal", func(op *Operation) (bool, string) {
		if op.kind != OpSet {
			return true, ""
		}
		return checkSetVal(v)(op)
	})
}

// ExpectCustom runs fn against each matching operation.
func (t *Trigger) ExpectCustom(fn func(op *Operation) error) *Trigger {
	if fn == nil {
		return t.latch(typeErrorf("ExpectCustom: nil function"))
	}
	return t.expect("ExpectCustom", checkCustom(fn))
}

// field reads key from an Object, a string-keyed map or a struct.
func field(v any, key string) any {
	if f, ok := v.(match.Fielder); ok {
		val, _ := f.Field(key)
		return val
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil
		}
		val := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if val.IsValid() {
			return val.Interface()
		}
	case reflect.Struct:
		sf, ok := rv.Type().FieldByName(key)
		if ok && sf.IsExported() {
			return rv.FieldByIndex(sf.Index).Interface()
		}
	}
	return nil
}
