package match

import "fmt"

// Matcher is an expected value that can stand anywhere a concrete value
// is expected. A value matcher compares structurally against its value; a
// type matcher accepts any value of its type or a descendant type.
type Matcher struct {
	reg      *Registry
	value    any
	hasValue bool
	typ      *TypeNode
}

// MatcherOption configures NewMatcher.
type MatcherOption func(*matcherSpec)

type matcherSpec struct {
	value    any
	hasValue bool
	typeName string
}

// WithValue makes the matcher compare against v.
func WithValue(v any) MatcherOption {
	return func(s *matcherSpec) {
		s.value = v
		s.hasValue = true
	}
}

// WithType makes the matcher accept any value of the named type.
func WithType(name string) MatcherOption {
	return func(s *matcherSpec) { s.typeName = name }
}

// NewMatcher builds a matcher from exactly one of WithValue or WithType.
func (r *Registry) NewMatcher(opts ...MatcherOption) (*Matcher, error) {
	var spec matcherSpec
	for _, opt := range opts {
		opt(&spec)
	}
	switch {
	case spec.typeName != "" && spec.hasValue:
		return nil, fmt.Errorf("%w: both value and type given", ErrInvalidMatcher)
	case spec.typeName != "":
		node, err := r.Lookup(spec.typeName)
		if err != nil {
			return nil, err
		}
		return &Matcher{reg: r, typ: node}, nil
	case spec.hasValue:
		return &Matcher{reg: r, value: spec.value, hasValue: true}, nil
	}
	return nil, ErrInvalidMatcher
}

// Value returns a matcher that compares against v.
func (r *Registry) Value(v any) *Matcher {
	return &Matcher{reg: r, value: v, hasValue: true}
}

// Type returns a matcher accepting any value of the named type.
func (r *Registry) Type(name string) (*Matcher, error) {
	return r.NewMatcher(WithType(name))
}

// IsMatcher reports whether v is a *Matcher.
func IsMatcher(v any) bool {
	m, ok := v.(*Matcher)
	return ok && m != nil
}

// Diff returns the mismatches between the matcher and actual.
func (m *Matcher) Diff(actual any) Result { return m.diff(m.reg, actual) }

// Compare reports whether actual satisfies the matcher.
func (m *Matcher) Compare(actual any) bool { return len(m.Diff(actual)) == 0 }

// TypeNode returns the matched type for a type matcher, else nil.
func (m *Matcher) TypeNode() *TypeNode { return m.typ }

func (m *Matcher) diff(r *Registry, actual any) Result {
	if m.hasValue {
		return r.Diff(m.value, actual)
	}
	if t := r.GetType(actual); t != nil && t.IsA(m.typ.Name) {
		return nil
	}
	return Result{{Expected: m, Actual: actual}}
}

func (m *Matcher) String() string {
	if m.typ != nil {
		return "<" + m.typ.Name + ">"
	}
	return Render(m.value)
}
