package behavior

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/spyglass/pkg/match"
	"github.com/mesh-intelligence/spyglass/pkg/wrapper"
)

// ErrNoScenario is returned when running a definition without a scenario.
var ErrNoScenario = errors.New("definition has no scenario")

// Scenario is an ordered script of member accesses followed by checks
// against the recorded histories.
type Scenario struct {
	Steps  []Step   `yaml:"steps" json:"steps"`
	Expect []Expect `yaml:"expect,omitempty" json:"expect,omitempty"`
}

// Step performs exactly one of Call, Get or Set on "interface.member".
type Step struct {
	Call  string `yaml:"call,omitempty" json:"call,omitempty"`
	Get   string `yaml:"get,omitempty" json:"get,omitempty"`
	Set   string `yaml:"set,omitempty" json:"set,omitempty"`
	Args  []any  `yaml:"args,omitempty" json:"args,omitempty"`
	Value any    `yaml:"value,omitempty" json:"value,omitempty"`
}

func (s Step) target() (kind, ref string) {
	switch {
	case s.Call != "":
		return "call", s.Call
	case s.Get != "":
		return "get", s.Get
	case s.Set != "":
		return "set", s.Set
	}
	return "", ""
}

func (s Step) String() string {
	kind, ref := s.target()
	switch kind {
	case "call":
		parts := make([]string, len(s.Args))
		for i, a := range s.Args {
			parts[i] = show(a)
		}
		return fmt.Sprintf("call %s(%s)", ref, strings.Join(parts, ", "))
	case "set":
		return fmt.Sprintf("set %s = %s", ref, show(s.Value))
	}
	return kind + " " + ref
}

// Expect checks one member's history. Count checks the number of
// operations; Number selects one operation for the remaining checks.
type Expect struct {
	Member    string `yaml:"member" json:"member"`
	Count     *int   `yaml:"count,omitempty" json:"count,omitempty"`
	Number    *int   `yaml:"number,omitempty" json:"number,omitempty"`
	Args      []any  `yaml:"args,omitempty" json:"args,omitempty"`
	Return    any    `yaml:"return,omitempty" json:"return,omitempty"`
	Exception string `yaml:"exception,omitempty" json:"exception,omitempty"`
	SetVal    any    `yaml:"setVal,omitempty" json:"setVal,omitempty"`
}

func (e Expect) hasOperationChecks() bool {
	return e.Args != nil || e.Return != nil || e.Exception != "" || e.SetVal != nil
}

func (sc *Scenario) validate(d *Definition) error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidDefinition, fmt.Sprintf(format, args...)))
	}

	for i, s := range sc.Steps {
		set := 0
		for _, v := range []string{s.Call, s.Get, s.Set} {
			if v != "" {
				set++
			}
		}
		if set != 1 {
			invalid("step %d: exactly one of call, get or set is required", i)
			continue
		}
		kind, ref := s.target()
		m, ok := d.lookup(ref)
		if !ok {
			invalid("step %d: unknown member %q", i, ref)
			continue
		}
		switch {
		case kind == "call" && m.Kind != KindFunction:
			invalid("step %d: %s is not a function", i, ref)
		case kind != "call" && m.Kind != KindProperty:
			invalid("step %d: %s is not a property", i, ref)
		case kind != "call" && s.Args != nil:
			invalid("step %d: args are only valid on call steps", i)
		case kind != "set" && s.Value != nil:
			invalid("step %d: value is only valid on set steps", i)
		}
	}

	for i, e := range sc.Expect {
		m, ok := d.lookup(e.Member)
		if !ok {
			invalid("expect %d: unknown member %q", i, e.Member)
			continue
		}
		if e.Count == nil && e.Number == nil {
			invalid("expect %d: count or number is required", i)
		}
		if e.hasOperationChecks() && e.Number == nil {
			invalid("expect %d: args, return, exception and setVal need a number", i)
		}
		if e.Args != nil && m.Kind != KindFunction {
			invalid("expect %d: args on property %s", i, e.Member)
		}
		if e.SetVal != nil && m.Kind != KindProperty {
			invalid("expect %d: setVal on function %s", i, e.Member)
		}
	}
	return errors.Join(errs...)
}

// StepResult is the outcome of one step.
type StepResult struct {
	Step   string `json:"step"`
	Return string `json:"return,omitempty"`
	Error  string `json:"error,omitempty"`
}

// MemberReport lists one member's recorded operations.
type MemberReport struct {
	Member     string   `json:"member"`
	Kind       string   `json:"kind"`
	Operations []string `json:"operations"`
}

// Report is the result of running a scenario.
type Report struct {
	Steps    []StepResult   `json:"steps"`
	Members  []MemberReport `json:"members"`
	Failures []string       `json:"failures"`
}

// Passed reports whether every expectation held.
func (r *Report) Passed() bool { return len(r.Failures) == 0 }

// Err returns the failures as an *wrapper.ExpectError, or nil.
func (r *Report) Err() error {
	if r.Passed() {
		return nil
	}
	return &wrapper.ExpectError{Failures: append([]string(nil), r.Failures...)}
}

// Run builds a stub with cfg, runs the scenario against it and restores
// the stub.
func (d *Definition) Run(cfg wrapper.Config) (*Report, error) {
	if d.Scenario == nil {
		return nil, ErrNoScenario
	}
	stub, err := d.Stub(cfg)
	if err != nil {
		return nil, err
	}
	report, err := d.Scenario.Run(stub)
	if rerr := stub.Restore(); err == nil {
		err = rerr
	}
	return report, err
}

// Run performs the steps against stub and evaluates the expectations.
// Errors raised by stubbed members are part of the report; the returned
// error is reserved for steps that cannot be performed at all.
func (sc *Scenario) Run(stub *Stub) (*Report, error) {
	report := &Report{}
	for i, s := range sc.Steps {
		res, err := runStep(stub, s)
		if err != nil {
			return report, fmt.Errorf("step %d: %w", i, err)
		}
		report.Steps = append(report.Steps, res)
	}

	for i, e := range sc.Expect {
		w, err := stub.Wrapper(e.Member)
		if err != nil {
			return report, fmt.Errorf("expect %d: %w", i, err)
		}
		if err := w.ConfigExpectThrows(false); err != nil {
			return report, fmt.Errorf("expect %d: %w", i, err)
		}
		check(w, e, &report.Failures)
	}

	for _, ref := range stub.def.MemberRefs() {
		w := stub.wrappers[ref]
		mr := MemberReport{Member: ref, Kind: w.Kind().String(), Operations: []string{}}
		for _, op := range w.History().Operations() {
			mr.Operations = append(mr.Operations, describe(op))
		}
		report.Members = append(report.Members, mr)

		var ee *wrapper.ExpectError
		if errors.As(w.ExpectReportAllFailures(true), &ee) {
			report.Failures = append(report.Failures, ee.Failures...)
		}
	}
	return report, nil
}

func runStep(stub *Stub, s Step) (StepResult, error) {
	kind, ref := s.target()
	ifaceName, member, _ := strings.Cut(ref, ".")
	obj, err := stub.Object(ifaceName)
	if err != nil {
		return StepResult{}, err
	}

	var ret any
	switch kind {
	case "call":
		ret, err = obj.Call(member, s.Args...)
	case "get":
		ret, err = obj.Get(member)
	case "set":
		err = obj.Set(member, s.Value)
		ret = s.Value
	default:
		return StepResult{}, fmt.Errorf("%w: empty step", ErrInvalidDefinition)
	}

	res := StepResult{Step: s.String()}
	if err != nil {
		res.Error = err.Error()
	} else {
		res.Return = show(ret)
	}
	return res, nil
}

// check applies e to w's history. Failures land in w's failure log, except
// a missing operation, which is appended to failures directly.
func check(w *wrapper.Wrapper, e Expect, failures *[]string) {
	h := w.History()
	if e.Count != nil {
		h.ExpectCount(*e.Count)
	}
	if e.Number == nil {
		return
	}
	op, err := h.FilterByNumber(*e.Number)
	if err != nil {
		*failures = append(*failures, fmt.Sprintf("%s: operation %d: %v", w.Name(), *e.Number, err))
		return
	}
	if e.Args != nil {
		op.ExpectCallArgs(e.Args...)
	}
	if e.Return != nil {
		op.ExpectReturn(e.Return)
	}
	if e.Exception != "" {
		op.ExpectException(&ThrownError{Message: e.Exception})
	}
	if e.SetVal != nil {
		op.ExpectSetVal(e.SetVal)
	}
}

// show renders v like match.Render, quoting strings.
func show(v any) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return match.Render(v)
}

func describe(op *wrapper.Operation) string {
	if err := op.Exception(); err != nil {
		return fmt.Sprintf("%s throws %q", op, err.Error())
	}
	return fmt.Sprintf("%s returns %s", op, match.Render(op.ReturnValue()))
}
