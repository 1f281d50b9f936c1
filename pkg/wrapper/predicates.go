package wrapper

import "github.com/mesh-intelligence/spyglass/pkg/match"

// TriggerAlways registers a trigger that matches every operation.
func (w *Wrapper) TriggerAlways() *Trigger {
	return w.newTrigger(func(*Operation) bool { return true }, nil)
}

// TriggerOnCallArgs matches calls made with exactly args.
func (w *Wrapper) TriggerOnCallArgs(args ...any) *Trigger {
	return w.newTrigger(func(op *Operation) bool {
		return op.kind == OpCall && match.Compare(argList(args), op.args)
	}, w.kindErr(KindFunction, "TriggerOnCallArgs"))
}

// TriggerOnCallContext matches calls made on ctx.
func (w *Wrapper) TriggerOnCallContext(ctx any) *Trigger {
	return w.newTrigger(func(op *Operation) bool {
		return op.kind == OpCall && match.Compare(ctx, op.context)
	}, w.kindErr(KindFunction, "TriggerOnCallContext"))
}

// TriggerOnCallNumber matches the n-th call, counting from 0.
func (w *Wrapper) TriggerOnCallNumber(n int) *Trigger {
	err := w.kindErr(KindFunction, "TriggerOnCallNumber")
	if err == nil && n < 0 {
		err = typeErrorf("TriggerOnCallNumber: negative call number %d", n)
	}
	return w.newTrigger(func(op *Operation) bool {
		return op.kind == OpCall && op.kindNumber == n
	}, err)
}

// TriggerOnException matches operations that raised err, or raised nothing
// when err is nil. It only matches once the outcome is known.
func (w *Wrapper) TriggerOnException(err error) *Trigger {
	return w.newTrigger(func(op *Operation) bool {
		if op.phase == PhasePre {
			return false
		}
		if err == nil || op.exception == nil {
			return err == nil && op.exception == nil
		}
		return match.Compare(err, op.exception)
	}, nil)
}

// TriggerOnReturn matches operations that returned v. It only matches once
// the outcome is known.
func (w *Wrapper) TriggerOnReturn(v any) *Trigger {
	return w.newTrigger(func(op *Operation) bool {
		return op.phase != PhasePre && match.Compare(v, op.returnValue)
	}, nil)
}

// TriggerOnCustom matches operations for which fn returns true.
func (w *Wrapper) TriggerOnCustom(fn Predicate) *Trigger {
	var err error
	if fn == nil {
		err = typeErrorf("TriggerOnCustom: nil predicate")
	}
	return w.newTrigger(fn, err)
}

// TriggerOnGet matches every property read.
func (w *Wrapper) TriggerOnGet() *Trigger {
	return w.newTrigger(func(op *Operation) bool {
		return op.kind == OpGet
	}, w.kindErr(KindProperty, "TriggerOnGet"))
}

// TriggerOnSet matches every property write.
func (w *Wrapper) TriggerOnSet() *Trigger {
	return w.newTrigger(func(op *Operation) bool {
		return op.kind == OpSet
	}, w.kindErr(KindProperty, "TriggerOnSet"))
}

// TriggerOnSetVal matches writes of v. The comparison uses the value
// passed to Set, before any ActionSetVal replaces it.
func (w *Wrapper) TriggerOnSetVal(v any) *Trigger {
	return w.newTrigger(func(op *Operation) bool {
		return op.kind == OpSet && match.Compare(v, op.incoming)
	}, w.kindErr(KindProperty, "TriggerOnSetVal"))
}

// TriggerOnGetNumber matches the n-th read, counting from 0.
func (w *Wrapper) TriggerOnGetNumber(n int) *Trigger {
	return w.propertyNumberTrigger("TriggerOnGetNumber", n, func(op *Operation) bool {
		return op.kind == OpGet && op.kindNumber == n
	})
}

// TriggerOnSetNumber matches the n-th write, counting from 0.
func (w *Wrapper) TriggerOnSetNumber(n int) *Trigger {
	return w.propertyNumberTrigger("TriggerOnSetNumber", n, func(op *Operation) bool {
		return op.kind == OpSet && op.kindNumber == n
	})
}

// TriggerOnTouchNumber matches the n-th read or write, counting from 0.
func (w *Wrapper) TriggerOnTouchNumber(n int) *Trigger {
	return w.propertyNumberTrigger("TriggerOnTouchNumber", n, func(op *Operation) bool {
		return op.number == n
	})
}

func (w *Wrapper) propertyNumberTrigger(name string, n int, p Predicate) *Trigger {
	err := w.kindErr(KindProperty, name)
	if err == nil && n < 0 {
		err = typeErrorf("%s: negative number %d", name, n)
	}
	return w.newTrigger(p, err)
}

func (w *Wrapper) kindErr(kind WrapperKind, what string) error {
	return w.checkKind(kind, what)
}
