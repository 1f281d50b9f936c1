package wrapper

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/spyglass/pkg/match"
)

// HistoryList is an ordered sequence of Operations. A wrapper's own list is
// append-only; filters return new lists that share the owner.
type HistoryList struct {
	owner *Wrapper
	ops   []*Operation
}

func newHistoryList(owner *Wrapper) *HistoryList {
	return &HistoryList{owner: owner}
}

func (h *HistoryList) append(op *Operation) {
	h.ops = append(h.ops, op)
}

func (h *HistoryList) derive(ops []*Operation) *HistoryList {
	return &HistoryList{owner: h.owner, ops: ops}
}

func (h *HistoryList) countKind(kind OpKind) int {
	n := 0
	for _, op := range h.ops {
		if op.kind == kind {
			n++
		}
	}
	return n
}

// Len returns the number of operations.
func (h *HistoryList) Len() int { return len(h.ops) }

// Operations returns a copy of the operations in order.
func (h *HistoryList) Operations() []*Operation {
	return append([]*Operation(nil), h.ops...)
}

// Selection.

// FilterByNumber returns the operation at index n.
func (h *HistoryList) FilterByNumber(n int) (*Operation, error) {
	if n < 0 || n >= len(h.ops) {
		return nil, fmt.Errorf("%w: index %d, length %d", ErrRange, n, len(h.ops))
	}
	return h.ops[n], nil
}

// FilterFirst returns the first operation.
func (h *HistoryList) FilterFirst() (*Operation, error) {
	return h.FilterByNumber(0)
}

// FilterLast returns the last operation.
func (h *HistoryList) FilterLast() (*Operation, error) {
	return h.FilterByNumber(len(h.ops) - 1)
}

// FilterOnly returns the single operation of a one-element list.
func (h *HistoryList) FilterOnly() (*Operation, error) {
	if len(h.ops) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one operation, have %d", ErrRange, len(h.ops))
	}
	return h.ops[0], nil
}

// Filters.

// Filter returns the operations for which keep returns true.
func (h *HistoryList) Filter(keep func(op *Operation) bool) *HistoryList {
	var out []*Operation
	for _, op := range h.ops {
		if keep(op) {
			out = append(out, op)
		}
	}
	return h.derive(out)
}

// FilterByCallArgs keeps calls made with exactly args.
func (h *HistoryList) FilterByCallArgs(args ...any) *HistoryList {
	return h.Filter(func(op *Operation) bool {
		return op.kind == OpCall && match.Compare(argList(args), op.args)
	})
}

// FilterByCallContext keeps calls made on ctx. ctx must be an object-like
// value or nil.
func (h *HistoryList) FilterByCallContext(ctx any) (*HistoryList, error) {
	if ctx != nil {
		if t := match.GetType(ctx); t == nil || !(t.IsA("object") || t.IsA("null")) {
			return nil, typeErrorf("call context must be an object or nil, got %T", ctx)
		}
	}
	return h.Filter(func(op *Operation) bool {
		return op.kind == OpCall && match.Compare(ctx, op.context)
	}), nil
}

// FilterByReturn keeps operations that returned v.
func (h *HistoryList) FilterByReturn(v any) *HistoryList {
	return h.Filter(func(op *Operation) bool {
		return match.Compare(v, op.returnValue)
	})
}

// FilterByException keeps operations that raised err. A nil err keeps
// operations that raised nothing.
func (h *HistoryList) FilterByException(err error) *HistoryList {
	return h.Filter(func(op *Operation) bool {
		if err == nil || op.exception == nil {
			return err == nil && op.exception == nil
		}
		return match.Compare(err, op.exception)
	})
}

// FilterPropGet keeps property reads.
func (h *HistoryList) FilterPropGet() *HistoryList {
	return h.Filter(func(op *Operation) bool { return op.kind == OpGet })
}

// FilterPropSet keeps property writes.
func (h *HistoryList) FilterPropSet() *HistoryList {
	return h.Filter(func(op *Operation) bool { return op.kind == OpSet })
}

// FilterPropSetByVal keeps property writes that stored v.
func (h *HistoryList) FilterPropSetByVal(v any) *HistoryList {
	return h.Filter(func(op *Operation) bool {
		return op.kind == OpSet && match.Compare(v, op.setVal)
	})
}

// Projections.

// GetAllCallArgs returns the argument list of every call.
func (h *HistoryList) GetAllCallArgs() [][]any {
	var out [][]any
	for _, op := range h.ops {
		if op.kind == OpCall {
			out = append(out, append([]any{}, op.args...))
		}
	}
	return out
}

// GetAllCallContexts returns the receiver of every call.
func (h *HistoryList) GetAllCallContexts() []any {
	var out []any
	for _, op := range h.ops {
		if op.kind == OpCall {
			out = append(out, op.context)
		}
	}
	return out
}

// GetAllReturns returns every operation's return value.
func (h *HistoryList) GetAllReturns() []any {
	out := make([]any, len(h.ops))
	for i, op := range h.ops {
		out[i] = op.returnValue
	}
	return out
}

// GetAllExceptions returns every operation's raised error, nil where none.
func (h *HistoryList) GetAllExceptions() []error {
	out := make([]error, len(h.ops))
	for i, op := range h.ops {
		out[i] = op.exception
	}
	return out
}

// GetAllSetVals returns the value of every set operation.
func (h *HistoryList) GetAllSetVals() []any {
	var out []any
	for _, op := range h.ops {
		if op.kind == OpSet {
			out = append(out, op.setVal)
		}
	}
	return out
}

// Count expectations.

// ExpectCount checks that the list holds exactly n operations.
func (h *HistoryList) ExpectCount(n int) bool {
	return h.expectCount("ExpectCount", len(h.ops) == n, fmt.Sprintf("exactly %d", n))
}

// ExpectCountMin checks that the list holds at least n operations.
func (h *HistoryList) ExpectCountMin(n int) bool {
	return h.expectCount("ExpectCountMin", len(h.ops) >= n, fmt.Sprintf("at least %d", n))
}

// ExpectCountMax checks that the list holds at most n operations.
func (h *HistoryList) ExpectCountMax(n int) bool {
	return h.expectCount("ExpectCountMax", len(h.ops) <= n, fmt.Sprintf("at most %d", n))
}

// ExpectCountRange checks that the list holds between lo and hi
// operations, inclusive.
func (h *HistoryList) ExpectCountRange(lo, hi int) bool {
	ok := len(h.ops) >= lo && len(h.ops) <= hi
	return h.expectCount("ExpectCountRange", ok, fmt.Sprintf("between %d and %d", lo, hi))
}

func (h *HistoryList) expectCount(name string, ok bool, want string) bool {
	if !ok {
		h.owner.fail(fmt.Sprintf("history %s: expected %s operations; got %d", name, want, len(h.ops)))
	}
	return ok
}

// Quantified expectations.

type quantifier int

const (
	quantAll quantifier = iota + 1
	quantSome
	quantNone
)

func (q quantifier) String() string {
	switch q {
	case quantAll:
		return "ExpectAll"
	case quantSome:
		return "ExpectSome"
	}
	return "ExpectNone"
}

// Quantifier applies one expectation to every operation in a list and
// reduces the results.
type Quantifier struct {
	list *HistoryList
	mode quantifier
}

// ExpectAll passes when every operation passes the next expectation.
func (h *HistoryList) ExpectAll() *Quantifier { return &Quantifier{list: h, mode: quantAll} }

// ExpectSome passes when at least one operation passes the next expectation.
func (h *HistoryList) ExpectSome() *Quantifier { return &Quantifier{list: h, mode: quantSome} }

// ExpectNone passes when no operation passes the next expectation.
func (h *HistoryList) ExpectNone() *Quantifier { return &Quantifier{list: h, mode: quantNone} }

// ExpectCallArgs applies Operation.ExpectCallArgs to each operation.
func (q *Quantifier) ExpectCallArgs(args ...any) bool {
	return q.apply("ExpectCallArgs", checkCallArgs(args))
}

// ExpectContext applies Operation.ExpectContext to each operation.
func (q *Quantifier) ExpectContext(ctx any) bool {
	return q.apply("ExpectContext", checkContext(ctx))
}

// ExpectReturn applies Operation.ExpectReturn to each operation.
func (q *Quantifier) ExpectReturn(v any) bool {
	return q.apply("ExpectReturn", checkReturn(v))
}

// ExpectException applies Operation.ExpectException to each operation.
func (q *Quantifier) ExpectException(err error) bool {
	return q.apply("ExpectException", checkException(err))
}

// ExpectSetVal applies Operation.ExpectSetVal to each operation.
func (q *Quantifier) ExpectSetVal(v any) bool {
	return q.apply("ExpectSetVal", checkSetVal(v))
}

// ExpectCustom applies Operation.ExpectCustom to each operation.
func (q *Quantifier) ExpectCustom(fn func(op *Operation) error) bool {
	return q.apply("ExpectCustom", checkCustom(fn))
}

func (q *Quantifier) apply(name string, c check) bool {
	var passed int
	var offending []string
	for _, op := range q.list.ops {
		ok, msg := c(op)
		if ok {
			passed++
			if q.mode == quantNone {
				offending = append(offending, fmt.Sprintf("operation %d passed", op.number))
			}
			continue
		}
		if q.mode == quantAll {
			offending = append(offending, fmt.Sprintf("operation %d %s", op.number, msg))
		}
	}

	var ok bool
	switch q.mode {
	case quantAll:
		ok = passed == len(q.list.ops)
	case quantSome:
		ok = passed > 0
		if !ok {
			offending = append(offending, fmt.Sprintf("none of %d operations passed", len(q.list.ops)))
		}
	case quantNone:
		ok = passed == 0
	}
	if !ok {
		q.list.owner.fail(fmt.Sprintf("history %s(%s): %s", q.mode, name, strings.Join(offending, " | ")))
	}
	return ok
}
