package wrapper

import (
	"errors"
	"fmt"
	"strings"
)

// Usage, state and range errors. Usage errors wrap ErrType.
var (
	ErrType         = errors.New("invalid argument")
	ErrRange        = errors.New("history index out of range")
	ErrUnwrapped    = errors.New("wrapper already unwrapped")
	ErrKindMismatch = errors.New("kind mismatch")
	ErrSealed       = errors.New("operation is sealed")
	ErrRewrap       = errors.New("target is already wrapped")
	ErrNoMember     = errors.New("object has no such member")
	ErrRejected     = errors.New("promise rejected")
)

// ExpectError reports one or more failed expectations.
type ExpectError struct {
	Failures []string
}

func (e *ExpectError) Error() string {
	if len(e.Failures) == 1 {
		return "expectation failed: " + e.Failures[0]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d expectations failed:", len(e.Failures))
	for _, f := range e.Failures {
		b.WriteString("\n    ")
		b.WriteString(f)
	}
	return b.String()
}

// PanicError is recorded as the thrown error when a wrapped function
// panics.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("wrapped function panicked: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

func typeErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrType, fmt.Sprintf(format, args...))
}
