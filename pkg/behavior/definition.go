// Package behavior builds stub objects from YAML definitions and runs
// scripted scenarios against them.
//
// A definition declares interfaces (named groups of function and property
// members), behaviors (a condition on one member plus the outcome to
// force), and optionally a scenario of steps and expectations. Stub turns
// the interfaces into wrapped objects with every behavior installed as a
// trigger; Scenario.Run drives the steps and checks the expectations using
// the wrappers' own histories.
package behavior

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidDefinition is wrapped by every validation failure.
var ErrInvalidDefinition = errors.New("invalid definition")

// MemberKind is the kind of an interface member.
type MemberKind string

// Member kinds.
const (
	KindFunction MemberKind = "function"
	KindProperty MemberKind = "property"
)

// Definition is the root of a behavior file.
type Definition struct {
	Interfaces []Interface `yaml:"interfaces" json:"interfaces"`
	Behaviors  []Behavior  `yaml:"behaviors,omitempty" json:"behaviors,omitempty"`
	Scenario   *Scenario   `yaml:"scenario,omitempty" json:"scenario,omitempty"`
}

// Interface is a named group of members, stubbed as one object.
type Interface struct {
	Name    string   `yaml:"name" json:"name"`
	Members []Member `yaml:"members" json:"members"`
}

// Member is one function or property of an interface. Value is the
// initial value of a property.
type Member struct {
	Name  string     `yaml:"name" json:"name"`
	Kind  MemberKind `yaml:"kind" json:"kind"`
	Value any        `yaml:"value,omitempty" json:"value,omitempty"`
}

// Behavior forces an outcome on a member when its condition holds.
// Member is written "interface.member".
type Behavior struct {
	Name    string `yaml:"name,omitempty" json:"name,omitempty"`
	Member  string `yaml:"member" json:"member"`
	When    When   `yaml:"when,omitempty" json:"when,omitempty"`
	Return  any    `yaml:"return,omitempty" json:"return,omitempty"`
	Throw   string `yaml:"throw,omitempty" json:"throw,omitempty"`
	SetVal  any    `yaml:"setVal,omitempty" json:"setVal,omitempty"`
	Resolve any    `yaml:"resolve,omitempty" json:"resolve,omitempty"`
	Reject  string `yaml:"reject,omitempty" json:"reject,omitempty"`
}

// When selects the operations a behavior applies to. At most one
// condition may be set; none means always.
type When struct {
	Always     bool  `yaml:"always,omitempty" json:"always,omitempty"`
	CallNumber *int  `yaml:"callNumber,omitempty" json:"callNumber,omitempty"`
	Args       []any `yaml:"args,omitempty" json:"args,omitempty"`
	SetVal     any   `yaml:"setVal,omitempty" json:"setVal,omitempty"`
	GetNumber  *int  `yaml:"getNumber,omitempty" json:"getNumber,omitempty"`
}

// conditions returns the names of the conditions that are set.
func (w When) conditions() []string {
	var out []string
	if w.Always {
		out = append(out, "always")
	}
	if w.CallNumber != nil {
		out = append(out, "callNumber")
	}
	if w.Args != nil {
		out = append(out, "args")
	}
	if w.SetVal != nil {
		out = append(out, "setVal")
	}
	if w.GetNumber != nil {
		out = append(out, "getNumber")
	}
	return out
}

// Label names the behavior in messages.
func (b Behavior) Label() string {
	if b.Name != "" {
		return b.Name
	}
	return "behavior on " + b.Member
}

// ThrownError is the error a stub raises for throw and reject outcomes.
type ThrownError struct {
	Message string
}

func (e *ThrownError) Error() string { return e.Message }

// Load decodes and validates a definition. Unknown keys are rejected.
func Load(r io.Reader) (*Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var def Definition
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidDefinition)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadFile reads a definition from path.
func LoadFile(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open definition: %w", err)
	}
	defer f.Close()
	def, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Validate checks names, kinds and that every behavior and scenario step
// references an existing member of a compatible kind.
func (d *Definition) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidDefinition, fmt.Sprintf(format, args...)))
	}

	if len(d.Interfaces) == 0 {
		invalid("no interfaces")
	}
	seen := make(map[string]bool)
	for _, iface := range d.Interfaces {
		switch {
		case iface.Name == "":
			invalid("interface without a name")
			continue
		case strings.Contains(iface.Name, "."):
			invalid("interface name %q contains a dot", iface.Name)
		case seen[iface.Name]:
			invalid("duplicate interface %q", iface.Name)
		}
		seen[iface.Name] = true
		members := make(map[string]bool)
		for _, m := range iface.Members {
			ref := iface.Name + "." + m.Name
			switch {
			case m.Name == "":
				invalid("member without a name in interface %q", iface.Name)
			case members[m.Name]:
				invalid("duplicate member %q", ref)
			case m.Kind != KindFunction && m.Kind != KindProperty:
				invalid("member %q has unknown kind %q", ref, m.Kind)
			case m.Kind == KindFunction && m.Value != nil:
				invalid("function member %q cannot have a value", ref)
			}
			members[m.Name] = true
		}
	}

	for _, b := range d.Behaviors {
		m, ok := d.lookup(b.Member)
		if !ok {
			invalid("%s: unknown member %q", b.Label(), b.Member)
			continue
		}
		if err := b.validate(m); err != nil {
			errs = append(errs, err)
		}
	}

	if d.Scenario != nil {
		if err := d.Scenario.validate(d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b Behavior) validate(m Member) error {
	var problems []string
	if conds := b.When.conditions(); len(conds) > 1 {
		problems = append(problems, "more than one condition: "+strings.Join(conds, ", "))
	}
	outcomes := 0
	for _, set := range []bool{b.Return != nil, b.Throw != "", b.SetVal != nil, b.Resolve != nil, b.Reject != ""} {
		if set {
			outcomes++
		}
	}
	if outcomes == 0 {
		problems = append(problems, "no outcome")
	}

	if m.Kind == KindFunction {
		if b.When.SetVal != nil || b.When.GetNumber != nil {
			problems = append(problems, "property condition on a function member")
		}
		if b.SetVal != nil {
			problems = append(problems, "setVal outcome on a function member")
		}
	} else {
		if b.When.CallNumber != nil || b.When.Args != nil {
			problems = append(problems, "call condition on a property member")
		}
	}
	if n := b.When.CallNumber; n != nil && *n < 0 {
		problems = append(problems, "negative callNumber")
	}
	if n := b.When.GetNumber; n != nil && *n < 0 {
		problems = append(problems, "negative getNumber")
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s: %s", ErrInvalidDefinition, b.Label(), strings.Join(problems, "; "))
}

// lookup resolves "interface.member".
func (d *Definition) lookup(ref string) (Member, bool) {
	ifaceName, memberName, ok := strings.Cut(ref, ".")
	if !ok {
		return Member{}, false
	}
	for _, iface := range d.Interfaces {
		if iface.Name != ifaceName {
			continue
		}
		for _, m := range iface.Members {
			if m.Name == memberName {
				return m, true
			}
		}
	}
	return Member{}, false
}

// MemberRefs lists every member as "interface.member" in declaration
// order.
func (d *Definition) MemberRefs() []string {
	var out []string
	for _, iface := range d.Interfaces {
		for _, m := range iface.Members {
			out = append(out, iface.Name+"."+m.Name)
		}
	}
	return out
}
