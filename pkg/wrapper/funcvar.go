package wrapper

import (
	"fmt"
	"reflect"
	"sync"
)

var errorType = reflect.TypeFor[error]()

// funcVar is a wrapped Go function variable.
type funcVar struct {
	ptr  reflect.Value
	orig reflect.Value
	key  uintptr
}

func (v *funcVar) restore() any {
	v.ptr.Elem().Set(v.orig)
	varsMu.Lock()
	delete(vars, v.key)
	varsMu.Unlock()
	return v.orig.Interface()
}

var (
	varsMu sync.Mutex
	vars   = make(map[uintptr]*Wrapper)
)

func lookupVar(target any) *Wrapper {
	pv := reflect.ValueOf(target)
	if !pv.IsValid() || pv.Kind() != reflect.Pointer || pv.IsNil() {
		return nil
	}
	varsMu.Lock()
	defer varsMu.Unlock()
	return vars[pv.Pointer()]
}

// WrapVar wraps the Go function stored in the variable fnPtr points to,
// replacing it in place with a proxy of the same type. Arguments are
// recorded as a flat list (variadic arguments expanded). The return value
// is the single non-error result, a []any for several, or nil for none;
// a trailing error result is the thrown error. When a function without an
// error result has a thrown error, the proxy panics with it.
func WrapVar(fnPtr any) (*Wrapper, error) {
	pv := reflect.ValueOf(fnPtr)
	if !pv.IsValid() || pv.Kind() != reflect.Pointer || pv.IsNil() || pv.Elem().Kind() != reflect.Func {
		return nil, typeErrorf("WrapVar needs a pointer to a function variable, got %T", fnPtr)
	}
	fv := pv.Elem()
	if fv.IsNil() {
		return nil, typeErrorf("function variable %T is nil", fnPtr)
	}

	varsMu.Lock()
	defer varsMu.Unlock()
	key := pv.Pointer()
	if w, ok := vars[key]; ok {
		if !w.cfg.AllowRewrap {
			return nil, fmt.Errorf("%w: %s", ErrRewrap, w.name)
		}
		return w, nil
	}

	orig := reflect.ValueOf(fv.Interface())
	w := newWrapper(KindFunction, funcName(orig))
	w.orig = reflectFunc(orig)
	w.impl = w.orig
	w.fnVar = &funcVar{ptr: pv, orig: orig, key: key}

	ft := fv.Type()
	fv.Set(reflect.MakeFunc(ft, func(in []reflect.Value) []reflect.Value {
		return w.callReflect(ft, in)
	}))
	vars[key] = w
	w.logEvent("wrap")
	return w, nil
}

// FromVar returns the wrapper installed on a function variable.
func FromVar(fnPtr any) (*Wrapper, error) {
	if w := lookupVar(fnPtr); w != nil {
		return w, nil
	}
	return nil, typeErrorf("%T is not a wrapped function variable", fnPtr)
}

// reflectFunc adapts an arbitrary Go function to Func.
func reflectFunc(fn reflect.Value) Func {
	ft := fn.Type()
	return func(_ any, args ...any) (any, error) {
		in, err := toValues(ft, args)
		if err != nil {
			return nil, err
		}
		return fromValues(ft, fn.Call(in))
	}
}

func (w *Wrapper) callReflect(ft reflect.Type, in []reflect.Value) []reflect.Value {
	var args []any
	for i, v := range in {
		if ft.IsVariadic() && i == len(in)-1 {
			for j := 0; j < v.Len(); j++ {
				args = append(args, v.Index(j).Interface())
			}
			continue
		}
		args = append(args, v.Interface())
	}

	ret, err := w.CallWith(nil, args...)

	out := make([]reflect.Value, ft.NumOut())
	hasErr := ft.NumOut() > 0 && ft.Out(ft.NumOut()-1) == errorType
	n := ft.NumOut()
	if hasErr {
		n--
		out[n] = reflect.Zero(errorType)
	}
	if err != nil {
		if !hasErr {
			panic(err)
		}
		for i := 0; i < n; i++ {
			out[i] = reflect.Zero(ft.Out(i))
		}
		out[n] = reflect.ValueOf(&err).Elem()
		return out
	}

	var vals []any
	switch {
	case n == 1:
		vals = []any{ret}
	case n > 1:
		if ret != nil {
			list, ok := ret.([]any)
			if !ok || len(list) != n {
				panic(typeErrorf("%s must return []any of length %d, got %T", w.name, n, ret))
			}
			vals = list
		}
	}
	for i := 0; i < n; i++ {
		var v any
		if i < len(vals) {
			v = vals[i]
		}
		rv, cerr := convert(v, ft.Out(i))
		if cerr != nil {
			panic(fmt.Errorf("result %d of %s: %w", i, w.name, cerr))
		}
		out[i] = rv
	}
	return out
}

func toValues(ft reflect.Type, args []any) ([]reflect.Value, error) {
	fixed := ft.NumIn()
	if ft.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, typeErrorf("want at least %d arguments, got %d", fixed, len(args))
		}
	} else if len(args) != fixed {
		return nil, typeErrorf("want %d arguments, got %d", fixed, len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		t := ft.In(min(i, ft.NumIn()-1))
		if i >= fixed {
			t = ft.In(ft.NumIn() - 1).Elem()
		}
		v, err := convert(a, t)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in[i] = v
	}
	return in, nil
}

func fromValues(ft reflect.Type, out []reflect.Value) (any, error) {
	var err error
	if n := len(out); n > 0 && ft.Out(n-1) == errorType {
		if e := out[n-1].Interface(); e != nil {
			err = e.(error)
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return nil, err
	case 1:
		return out[0].Interface(), err
	}
	vals := make([]any, len(out))
	for i, v := range out {
		vals[i] = v.Interface()
	}
	return vals, err
}

func convert(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		out := reflect.New(t).Elem()
		out.Set(rv)
		return out, nil
	}
	if isNumericKind(rv.Kind()) && isNumericKind(t.Kind()) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, typeErrorf("cannot use %T as %s", v, t)
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
