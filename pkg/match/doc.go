// Package match classifies Go values into a small type hierarchy and
// computes structural diffs between an expected and an actual value.
//
// The built-in hierarchy has seven roots (number, string, boolean, null,
// undefined, array, object) and three refinements of object (date,
// regexp, error). Further types can be registered at runtime with
// AddType. Two values are equal when Diff returns no mismatches.
package match
