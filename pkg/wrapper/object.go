package wrapper

import (
	"fmt"
	"sort"
)

// Func is the signature of every function a Wrapper can intercept. self
// is the receiver the call was made on (the Object for method calls, nil
// otherwise). A returned error is the call's thrown error.
type Func func(self any, args ...any) (any, error)

// PropertyAccessor is the storage behind one Object member.
type PropertyAccessor interface {
	Get() (any, error)
	Set(v any) error
}

// peeker is implemented by accessors that can report their value without
// recording an operation.
type peeker interface {
	peek() any
}

// valueSlot is a plain stored value.
type valueSlot struct {
	value any
}

func (s *valueSlot) Get() (any, error) { return s.value, nil }
func (s *valueSlot) Set(v any) error   { s.value = v; return nil }
func (s *valueSlot) peek() any         { return s.value }

// Object is a host of named members, each stored behind a
// PropertyAccessor. Members holding a Func are methods and are invoked
// with Call. Wrapping a member swaps its accessor for an instrumented one.
type Object struct {
	name  string
	keys  []string
	slots map[string]PropertyAccessor
}

// NewObject returns an object holding members as plain values, ordered by
// key. Nested map[string]any values stay plain values; use NewObject for
// each level to get nested objects.
func NewObject(name string, members map[string]any) *Object {
	o := &Object{name: name, slots: make(map[string]PropertyAccessor, len(members))}
	keys := make([]string, 0, len(members))
	for k := range members {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		o.Put(k, members[k])
	}
	return o
}

// Name returns the object's name, used in logs and failure reports.
func (o *Object) Name() string { return o.name }

// Put stores v as a plain value member, adding the key if needed.
func (o *Object) Put(key string, v any) {
	o.Define(key, &valueSlot{value: v})
}

// Define installs a custom accessor for a member.
func (o *Object) Define(key string, acc PropertyAccessor) {
	if _, ok := o.slots[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.slots[key] = acc
}

// Has reports whether the object has the member.
func (o *Object) Has(key string) bool {
	_, ok := o.slots[key]
	return ok
}

// Keys returns member names in insertion order.
func (o *Object) Keys() []string {
	return append([]string(nil), o.keys...)
}

// Get reads a member through its accessor.
func (o *Object) Get(key string) (any, error) {
	acc, ok := o.slots[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrNoMember, o.name, key)
	}
	return acc.Get()
}

// Set writes a member through its accessor. A missing member is created as
// a plain value.
func (o *Object) Set(key string, v any) error {
	acc, ok := o.slots[key]
	if !ok {
		o.Put(key, v)
		return nil
	}
	return acc.Set(v)
}

// Call invokes the method stored under key with the object as self.
func (o *Object) Call(key string, args ...any) (any, error) {
	v, err := o.Get(key)
	if err != nil {
		return nil, err
	}
	fn, ok := v.(Func)
	if !ok || fn == nil {
		return nil, typeErrorf("%s.%s is not a function", o.name, key)
	}
	return fn(o, args...)
}

// FieldNames lists members for structural comparison.
func (o *Object) FieldNames() []string { return o.Keys() }

// Field returns a member's value without going through wrapped
// accessors, so comparing objects records no operations.
func (o *Object) Field(key string) (any, bool) {
	acc, ok := o.slots[key]
	if !ok {
		return nil, false
	}
	if p, ok := acc.(peeker); ok {
		return p.peek(), true
	}
	v, err := acc.Get()
	if err != nil {
		return nil, false
	}
	return v, true
}

func (o *Object) String() string { return "[object " + o.name + "]" }

func (o *Object) slot(key string) (PropertyAccessor, bool) {
	acc, ok := o.slots[key]
	return acc, ok
}

func (o *Object) replace(key string, acc PropertyAccessor) {
	o.Define(key, acc)
}
