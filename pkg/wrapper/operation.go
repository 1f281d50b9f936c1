package wrapper

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/spyglass/pkg/match"
)

// OpKind says what kind of interaction an Operation recorded.
type OpKind int

// Operation kinds.
const (
	OpCall OpKind = iota + 1
	OpGet
	OpSet
)

func (k OpKind) String() string {
	switch k {
	case OpCall:
		return "call"
	case OpGet:
		return "get"
	case OpSet:
		return "set"
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// Phase tracks where an Operation is in the dispatch cycle.
type Phase int

// Dispatch phases. PhaseBoth marks a stored operation.
const (
	PhasePre Phase = iota + 1
	PhasePost
	PhaseBoth
)

func (p Phase) String() string {
	switch p {
	case PhasePre:
		return "pre"
	case PhasePost:
		return "post"
	case PhaseBoth:
		return "both"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Operation is the record of one intercepted call, get or set.
type Operation struct {
	wrapper *Wrapper
	kind    OpKind
	number  int
	// kindNumber counts prior operations of the same kind.
	kindNumber int
	phase      Phase

	args     []any
	context  any
	setVal   any
	incoming any

	returnValue any
	exception   error
}

func newCallOperation(w *Wrapper, self any, args []any) *Operation {
	op := &Operation{wrapper: w, kind: OpCall, context: self, phase: PhasePre}
	op.args = append([]any{}, args...)
	op.number = w.history.Len()
	op.kindNumber = op.number
	return op
}

func newPropertyOperation(w *Wrapper, kind OpKind, v any) *Operation {
	op := &Operation{wrapper: w, kind: kind, phase: PhasePre}
	if kind == OpSet {
		op.setVal = v
		op.incoming = v
	}
	op.number = w.history.Len()
	op.kindNumber = w.history.countKind(kind)
	return op
}

// Kind returns the operation kind.
func (op *Operation) Kind() OpKind { return op.kind }

// Number returns the 0-based position of the operation in its wrapper's
// history.
func (op *Operation) Number() int { return op.number }

// Phase returns the dispatch phase.
func (op *Operation) Phase() Phase { return op.phase }

// Wrapper returns the wrapper that recorded the operation.
func (op *Operation) Wrapper() *Wrapper { return op.wrapper }

// Args returns a copy of the call's arguments.
func (op *Operation) Args() ([]any, error) {
	if op.kind != OpCall {
		return nil, op.kindError("Args")
	}
	return append([]any{}, op.args...), nil
}

// Context returns the receiver the call was made on.
func (op *Operation) Context() (any, error) {
	if op.kind != OpCall {
		return nil, op.kindError("Context")
	}
	return op.context, nil
}

// SetVal returns the value a set operation stored.
func (op *Operation) SetVal() (any, error) {
	if op.kind != OpSet {
		return nil, op.kindError("SetVal")
	}
	return op.setVal, nil
}

// ReturnValue returns the value the operation returned.
func (op *Operation) ReturnValue() any { return op.returnValue }

// Exception returns the error the operation raised, or nil.
func (op *Operation) Exception() error { return op.exception }

// SetReturnValue replaces the return value of an in-flight operation.
func (op *Operation) SetReturnValue(v any) error {
	if op.phase == PhaseBoth {
		return ErrSealed
	}
	op.returnValue = v
	return nil
}

// SetException replaces the thrown error of an in-flight operation. A nil
// err clears it.
func (op *Operation) SetException(err error) error {
	if op.phase == PhaseBoth {
		return ErrSealed
	}
	op.exception = err
	return nil
}

// SetSetVal replaces the value an in-flight set operation stores.
func (op *Operation) SetSetVal(v any) error {
	if op.kind != OpSet {
		return op.kindError("SetSetVal")
	}
	if op.phase == PhaseBoth {
		return ErrSealed
	}
	op.setVal = v
	return nil
}

func (op *Operation) kindError(field string) error {
	return fmt.Errorf("%w: %s is not available on a %s operation", ErrKindMismatch, field, op.kind)
}

func (op *Operation) String() string {
	switch op.kind {
	case OpCall:
		return fmt.Sprintf("#%d call(%s)", op.number, renderList(op.args))
	case OpSet:
		return fmt.Sprintf("#%d set(%s)", op.number, match.Render(op.setVal))
	default:
		return fmt.Sprintf("#%d get", op.number)
	}
}

// Expectations. Each check returns the pass flag and, on failure, the
// failure message without wrapper attribution.

type check func(op *Operation) (bool, string)

// argList copies an expected argument list. A nil list becomes empty,
// matching a call made without arguments.
func argList(args []any) []any { return append([]any{}, args...) }

func checkCallArgs(args []any) check {
	return func(op *Operation) (bool, string) {
		if op.kind != OpCall {
			return false, "ExpectCallArgs: " + op.kindError("args").Error()
		}
		return diffCheck("ExpectCallArgs", argList(args), op.args)
	}
}

func checkContext(ctx any) check {
	return func(op *Operation) (bool, string) {
		if op.kind != OpCall {
			return false, "ExpectContext: " + op.kindError("context").Error()
		}
		return diffCheck("ExpectContext", ctx, op.context)
	}
}

func checkSetVal(v any) check {
	return func(op *Operation) (bool, string) {
		if op.kind != OpSet {
			return false, "ExpectSetVal: " + op.kindError("set value").Error()
		}
		return diffCheck("ExpectSetVal", v, op.setVal)
	}
}

func checkReturn(v any) check {
	return func(op *Operation) (bool, string) {
		return diffCheck("ExpectReturn", v, op.returnValue)
	}
}

func checkException(err error) check {
	return func(op *Operation) (bool, string) {
		switch {
		case err == nil && op.exception == nil:
			return true, ""
		case err == nil:
			return false, fmt.Sprintf("ExpectException: expected no exception; got '%s'", op.exception)
		case op.exception == nil:
			return false, fmt.Sprintf("ExpectException: expected '%s'; got no exception", err)
		}
		return diffCheck("ExpectException", err, op.exception)
	}
}

func checkCustom(fn func(op *Operation) error) check {
	return func(op *Operation) (bool, string) {
		if fn == nil {
			return false, "ExpectCustom: " + typeErrorf("nil check function").Error()
		}
		if err := fn(op); err != nil {
			return false, "ExpectCustom: " + err.Error()
		}
		return true, ""
	}
}

func diffCheck(name string, expected, actual any) (bool, string) {
	d := match.Diff(expected, actual)
	if d.Equal() {
		return true, ""
	}
	return false, name + ": " + strings.Join(d.Strings(), "; ")
}

// expect runs a check and records a failure on the owning wrapper.
func (op *Operation) expect(c check) bool {
	ok, msg := c(op)
	if !ok {
		op.wrapper.fail(fmt.Sprintf("operation %d %s", op.number, msg))
	}
	return ok
}

// ExpectCallArgs checks the call's arguments.
func (op *Operation) ExpectCallArgs(args ...any) bool {
	return op.expect(checkCallArgs(args))
}

// ExpectContext checks the receiver of the call.
func (op *Operation) ExpectContext(ctx any) bool {
	return op.expect(checkContext(ctx))
}

// ExpectReturn checks the returned value.
func (op *Operation) ExpectReturn(v any) bool {
	return op.expect(checkReturn(v))
}

// ExpectException checks the raised error. A nil err expects that no
// error was raised.
func (op *Operation) ExpectException(err error) bool {
	return op.expect(checkException(err))
}

// ExpectSetVal checks the value a set operation stored.
func (op *Operation) ExpectSetVal(v any) bool {
	return op.expect(checkSetVal(v))
}

// ExpectCustom runs fn against the operation. A nil error passes; a
// non-nil error is the failure message.
func (op *Operation) ExpectCustom(fn func(op *Operation) error) bool {
	return op.expect(checkCustom(fn))
}

func renderList(vals []any) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = match.Render(v)
	}
	return strings.Join(parts, ", ")
}
