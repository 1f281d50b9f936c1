package match

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry used by the package-level
// functions.
func Default() *Registry { return defaultRegistry }

// GetType classifies v in the default registry.
func GetType(v any) *TypeNode { return defaultRegistry.GetType(v) }

// FindCommonType returns the deepest type shared by a and b.
func FindCommonType(a, b any) *TypeNode { return defaultRegistry.FindCommonType(a, b) }

// Diff returns the mismatches between expected and actual.
func Diff(expected, actual any) Result { return defaultRegistry.Diff(expected, actual) }

// Compare reports whether expected and actual are structurally equal.
func Compare(expected, actual any) bool { return defaultRegistry.Compare(expected, actual) }

// AddType registers a custom type in the default registry.
func AddType(name, parent string, test TestFunc, diff DiffFunc) error {
	return defaultRegistry.AddType(name, parent, test, diff)
}

// Lookup returns a registered type from the default registry.
func Lookup(name string) (*TypeNode, error) { return defaultRegistry.Lookup(name) }

// Value returns a value matcher bound to the default registry.
func Value(v any) *Matcher { return defaultRegistry.Value(v) }

// Type returns a type matcher bound to the default registry.
func Type(name string) (*Matcher, error) { return defaultRegistry.Type(name) }

// NewMatcher builds a matcher bound to the default registry.
func NewMatcher(opts ...MatcherOption) (*Matcher, error) { return defaultRegistry.NewMatcher(opts...) }
