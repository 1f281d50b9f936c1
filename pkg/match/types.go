package match

import (
	"fmt"
	"reflect"
	"regexp"
	"sync"
	"time"
)

// Kind tags the variant of a TypeNode. Built-in types each have their own
// kind; every type added through AddType is KindCustom.
type Kind int

// Type kinds.
const (
	KindNumber Kind = iota + 1
	KindString
	KindBoolean
	KindNull
	KindUndefined
	KindArray
	KindObject
	KindDate
	KindRegexp
	KindError
	KindCustom
)

var kindNames = map[Kind]string{
	KindNumber:    "number",
	KindString:    "string",
	KindBoolean:   "boolean",
	KindNull:      "null",
	KindUndefined: "undefined",
	KindArray:     "array",
	KindObject:    "object",
	KindDate:      "date",
	KindRegexp:    "regexp",
	KindError:     "error",
	KindCustom:    "custom",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// TestFunc reports whether a value belongs to a type.
type TestFunc func(v any) bool

// DiffFunc computes the mismatches between two values that both belong to
// a type. Implementations recurse into nested values through r.Diff.
type DiffFunc func(r *Registry, expected, actual any) Result

// TypeNode is one type in the hierarchy.
type TypeNode struct {
	Name string
	Kind Kind

	parent   *TypeNode
	children []*TypeNode
	test     TestFunc
	diff     DiffFunc
}

// Parent returns the parent type, or nil for a root type.
func (n *TypeNode) Parent() *TypeNode { return n.parent }

// Chain returns the type names from the root down to n.
func (n *TypeNode) Chain() []string {
	nodes := n.lineage()
	names := make([]string, len(nodes))
	for i, node := range nodes {
		names[i] = node.Name
	}
	return names
}

// IsA reports whether n is the named type or one of its descendants.
func (n *TypeNode) IsA(name string) bool {
	for node := n; node != nil; node = node.parent {
		if node.Name == name {
			return true
		}
	}
	return false
}

func (n *TypeNode) lineage() []*TypeNode {
	var rev []*TypeNode
	for node := n; node != nil; node = node.parent {
		rev = append(rev, node)
	}
	out := make([]*TypeNode, len(rev))
	for i, node := range rev {
		out[len(rev)-1-i] = node
	}
	return out
}

// diffFunc returns the closest diff function on the path to the root.
func (n *TypeNode) diffFunc() DiffFunc {
	for node := n; node != nil; node = node.parent {
		if node.diff != nil {
			return node.diff
		}
	}
	return opaqueDiff
}

// Registry holds a type hierarchy. The zero value is not usable; call
// NewRegistry, which installs the built-in types.
type Registry struct {
	mu     sync.RWMutex
	roots  []*TypeNode
	byName map[string]*TypeNode
	order  []string
}

// NewRegistry returns a registry holding only the built-in types.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]*TypeNode)}
	r.install(KindNumber, "", isNumber, numberDiff)
	r.install(KindString, "", isString, stringDiff)
	r.install(KindBoolean, "", isBoolean, booleanDiff)
	r.install(KindNull, "", isNull, equalDiff)
	r.install(KindUndefined, "", isUndefined, equalDiff)
	r.install(KindArray, "", isArray, arrayDiff)
	r.install(KindObject, "", isObject, objectDiff)
	r.install(KindDate, "object", isDate, dateDiff)
	r.install(KindRegexp, "object", isRegexp, regexpDiff)
	r.install(KindError, "object", isError, errorDiff)
	return r
}

func (r *Registry) install(kind Kind, parent string, test TestFunc, diff DiffFunc) {
	node := &TypeNode{Name: kind.String(), Kind: kind, test: test, diff: diff}
	r.attach(node, parent)
}

func (r *Registry) attach(node *TypeNode, parent string) {
	if parent == "" {
		r.roots = append(r.roots, node)
	} else {
		p := r.byName[parent]
		node.parent = p
		p.children = append(p.children, node)
	}
	r.byName[node.Name] = node
	r.order = append(r.order, node.Name)
}

// AddType registers a custom type under parent ("" for a new root). A nil
// diff inherits the parent's diff function.
func (r *Registry) AddType(name, parent string, test TestFunc, diff DiffFunc) error {
	if name == "" || test == nil {
		return fmt.Errorf("%w: name and test function are required", ErrInvalidType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateType, name)
	}
	if parent != "" {
		if _, ok := r.byName[parent]; !ok {
			return fmt.Errorf("%w: parent %q", ErrUnknownType, parent)
		}
	}
	r.attach(&TypeNode{Name: name, Kind: KindCustom, test: test, diff: diff}, parent)
	return nil
}

// Lookup returns the registered type with the given name.
func (r *Registry) Lookup(name string) (*TypeNode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	node, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return node, nil
}

// TypeNames returns every registered type name in registration order.
func (r *Registry) TypeNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// GetType returns the most specific type v belongs to, or nil.
func (r *Registry) GetType(v any) *TypeNode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return classify(r.roots, v)
}

func classify(nodes []*TypeNode, v any) *TypeNode {
	for _, n := range nodes {
		if !n.test(v) {
			continue
		}
		if child := classify(n.children, v); child != nil {
			return child
		}
		return n
	}
	return nil
}

// FindCommonType returns the deepest type shared by a and b, or nil when
// they have no common ancestor.
func (r *Registry) FindCommonType(a, b any) *TypeNode {
	return commonAncestor(r.GetType(a), r.GetType(b))
}

func commonAncestor(a, b *TypeNode) *TypeNode {
	if a == nil || b == nil {
		return nil
	}
	la, lb := a.lineage(), b.lineage()
	var common *TypeNode
	for i := 0; i < len(la) && i < len(lb); i++ {
		if la[i] != lb[i] {
			break
		}
		common = la[i]
	}
	return common
}

// Built-in type tests.

// undefinedType is the type of Undefined.
type undefinedType struct{}

func (undefinedType) String() string { return "undefined" }

// Undefined stands for a value that is absent, such as the missing side of
// an array element or object key.
var Undefined = undefinedType{}

// Fielder is implemented by dynamic objects that expose named fields to
// the object diff.
type Fielder interface {
	FieldNames() []string
	Field(name string) (any, bool)
}

func isNumber(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isString(v any) bool {
	return v != nil && reflect.ValueOf(v).Kind() == reflect.String
}

func isBoolean(v any) bool {
	return v != nil && reflect.ValueOf(v).Kind() == reflect.Bool
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Chan, reflect.Interface, reflect.UnsafePointer,
		reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

func isUndefined(v any) bool {
	_, ok := v.(undefinedType)
	return ok
}

func isArray(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func isObject(v any) bool {
	if v == nil {
		return false
	}
	switch v.(type) {
	case error, Fielder:
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		return rv.Type().Key().Kind() == reflect.String
	case reflect.Struct:
		return true
	case reflect.Pointer:
		return !rv.IsNil() && rv.Elem().Kind() == reflect.Struct
	}
	return false
}

func isDate(v any) bool {
	switch t := v.(type) {
	case time.Time:
		return true
	case *time.Time:
		return t != nil
	}
	return false
}

func isRegexp(v any) bool {
	re, ok := v.(*regexp.Regexp)
	return ok && re != nil
}

func isError(v any) bool {
	_, ok := v.(error)
	return ok
}
