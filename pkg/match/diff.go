package match

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Mismatch is one leaf-level difference. Path is empty for a mismatch at
// the root, dotted for object fields and bracketed for array indexes.
type Mismatch struct {
	Path     string
	Expected any
	Actual   any
}

// String renders the mismatch as "[At <path>: ]Expected: '<e>'; Got: '<a>'".
func (m Mismatch) String() string {
	s := fmt.Sprintf("Expected: '%s'; Got: '%s'", Render(m.Expected), Render(m.Actual))
	if m.Path != "" {
		return "At " + m.Path + ": " + s
	}
	return s
}

// Result is an ordered list of mismatches. An empty Result means equal.
type Result []Mismatch

// Equal reports whether the diff has no mismatches.
func (d Result) Equal() bool { return len(d) == 0 }

// Strings renders every mismatch, one string each.
func (d Result) Strings() []string {
	out := make([]string, len(d))
	for i, m := range d {
		out[i] = m.String()
	}
	return out
}

// Diff returns the mismatches between expected and actual. A *Matcher in
// expected position delegates to the matcher.
func (r *Registry) Diff(expected, actual any) Result {
	if m, ok := expected.(*Matcher); ok {
		return m.diff(r, actual)
	}
	if samePointer(expected, actual) {
		return nil
	}
	common := commonAncestor(r.GetType(expected), r.GetType(actual))
	if common == nil {
		if identical(expected, actual) {
			return nil
		}
		return opaqueDiff(r, expected, actual)
	}
	return common.diffFunc()(r, expected, actual)
}

// Compare reports whether expected and actual have no mismatches.
func (r *Registry) Compare(expected, actual any) bool {
	return len(r.Diff(expected, actual)) == 0
}

func samePointer(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Kind() != reflect.Pointer || rb.Kind() != reflect.Pointer || ra.Type() != rb.Type() {
		return false
	}
	return !ra.IsNil() && ra.Pointer() == rb.Pointer()
}

// identical reports whether two values outside the hierarchy are the same
// value: same dynamic type, and the same function, channel or pointer, or
// deeply equal otherwise.
func identical(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}
	switch ra.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Pointer:
		return ra.Pointer() == rb.Pointer()
	}
	return reflect.DeepEqual(a, b)
}

func opaqueDiff(_ *Registry, expected, actual any) Result {
	return Result{{Expected: expected, Actual: actual}}
}

func equalDiff(*Registry, any, any) Result { return nil }

func numberDiff(r *Registry, expected, actual any) Result {
	if numbersEqual(reflect.ValueOf(expected), reflect.ValueOf(actual)) {
		return nil
	}
	return opaqueDiff(r, expected, actual)
}

func numbersEqual(a, b reflect.Value) bool {
	ai, aInt := intValue(a)
	bi, bInt := intValue(b)
	if aInt && bInt {
		return ai == bi
	}
	au, aUint := uintValue(a)
	bu, bUint := uintValue(b)
	switch {
	case aUint && bUint:
		return au == bu
	case aInt && bUint:
		return ai >= 0 && uint64(ai) == bu
	case aUint && bInt:
		return bi >= 0 && uint64(bi) == au
	}
	af, bf := floatValue(a), floatValue(b)
	if math.IsNaN(af) && math.IsNaN(bf) {
		return false
	}
	return af == bf
}

func intValue(v reflect.Value) (int64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	}
	return 0, false
}

func uintValue(v reflect.Value) (uint64, bool) {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint(), true
	}
	return 0, false
}

func floatValue(v reflect.Value) float64 {
	if i, ok := intValue(v); ok {
		return float64(i)
	}
	if u, ok := uintValue(v); ok {
		return float64(u)
	}
	return v.Float()
}

func stringDiff(r *Registry, expected, actual any) Result {
	if reflect.ValueOf(expected).String() == reflect.ValueOf(actual).String() {
		return nil
	}
	return opaqueDiff(r, expected, actual)
}

func booleanDiff(r *Registry, expected, actual any) Result {
	if reflect.ValueOf(expected).Bool() == reflect.ValueOf(actual).Bool() {
		return nil
	}
	return opaqueDiff(r, expected, actual)
}

func arrayDiff(r *Registry, expected, actual any) Result {
	ev, av := reflect.ValueOf(expected), reflect.ValueOf(actual)
	n := max(ev.Len(), av.Len())
	var out Result
	for i := 0; i < n; i++ {
		e, a := index(ev, i), index(av, i)
		prefix := fmt.Sprintf("[%d]", i)
		for _, m := range r.Diff(e, a) {
			m.Path = joinPath(prefix, m.Path)
			out = append(out, m)
		}
	}
	return out
}

func index(v reflect.Value, i int) any {
	if i >= v.Len() {
		return Undefined
	}
	return v.Index(i).Interface()
}

func objectDiff(r *Registry, expected, actual any) Result {
	ek, ef := fields(expected)
	ak, af := fields(actual)
	if len(ek) == 0 && len(ak) == 0 {
		if opaqueStruct(expected) || opaqueStruct(actual) {
			if reflect.DeepEqual(expected, actual) {
				return nil
			}
			return opaqueDiff(r, expected, actual)
		}
		return nil
	}

	keys := append([]string(nil), ek...)
	seen := make(map[string]bool, len(ek))
	for _, k := range ek {
		seen[k] = true
	}
	for _, k := range ak {
		if !seen[k] {
			keys = append(keys, k)
		}
	}

	var out Result
	for _, k := range keys {
		e, eok := ef(k)
		a, aok := af(k)
		if !eok {
			e = Undefined
		}
		if !aok {
			a = Undefined
		}
		for _, m := range r.Diff(e, a) {
			m.Path = joinPath(k, m.Path)
			out = append(out, m)
		}
	}
	return out
}

// opaqueStruct reports whether v is a struct with no exported fields,
// which the key-wise object diff cannot see into.
func opaqueStruct(v any) bool {
	if _, ok := v.(Fielder); ok {
		return false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	return rv.Kind() == reflect.Struct
}

type fieldGetter func(name string) (any, bool)

// fields lists the keys of an object-like value and returns a getter.
func fields(v any) ([]string, fieldGetter) {
	if f, ok := v.(Fielder); ok {
		return f.FieldNames(), f.Field
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, noFields
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return keys, func(name string) (any, bool) {
			val := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
			if !val.IsValid() {
				return nil, false
			}
			return val.Interface(), true
		}
	case reflect.Struct:
		t := rv.Type()
		var keys []string
		for i := 0; i < t.NumField(); i++ {
			if t.Field(i).IsExported() {
				keys = append(keys, t.Field(i).Name)
			}
		}
		return keys, func(name string) (any, bool) {
			sf, ok := t.FieldByName(name)
			if !ok || !sf.IsExported() {
				return nil, false
			}
			return rv.FieldByIndex(sf.Index).Interface(), true
		}
	}
	return nil, noFields
}

func noFields(string) (any, bool) { return nil, false }

func dateDiff(r *Registry, expected, actual any) Result {
	if toTime(expected).Equal(toTime(actual)) {
		return nil
	}
	return opaqueDiff(r, expected, actual)
}

func toTime(v any) time.Time {
	if p, ok := v.(*time.Time); ok {
		return *p
	}
	return v.(time.Time)
}

func regexpDiff(r *Registry, expected, actual any) Result {
	if expected.(*regexp.Regexp).String() == actual.(*regexp.Regexp).String() {
		return nil
	}
	return opaqueDiff(r, expected, actual)
}

func errorDiff(_ *Registry, expected, actual any) Result {
	e, a := expected.(error), actual.(error)
	var out Result
	if en, an := ErrorName(e), ErrorName(a); en != an {
		out = append(out, Mismatch{Path: "name", Expected: en, Actual: an})
	}
	if em, am := e.Error(), a.Error(); em != am {
		out = append(out, Mismatch{Path: "message", Expected: em, Actual: am})
	}
	return out
}

// ErrorName returns the name the error diff compares: the error's
// concrete Go type.
func ErrorName(err error) string {
	return reflect.TypeOf(err).String()
}

func joinPath(parent, child string) string {
	switch {
	case child == "":
		return parent
	case strings.HasPrefix(child, "["):
		return parent + child
	default:
		return parent + "." + child
	}
}

// Render formats a value for failure messages.
func Render(v any) string {
	if isNull(v) {
		return "null"
	}
	switch t := v.(type) {
	case undefinedType:
		return "undefined"
	case *Matcher:
		return t.String()
	case string:
		return t
	case error:
		return t.Error()
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case *regexp.Regexp:
		return "/" + t.String() + "/"
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprintf("%v", v)
}
