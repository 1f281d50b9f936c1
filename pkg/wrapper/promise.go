package wrapper

import (
	"context"

	"github.com/mesh-intelligence/spyglass/pkg/match"
)

// Promise is a settled deferred value returned by the promise actions.
// Wrappers never wait on a Promise; callers receive it as the call's
// return value and await it themselves.
type Promise struct {
	done  chan struct{}
	value any
	err   error
}

func settled(v any, err error) *Promise {
	p := &Promise{done: make(chan struct{}), value: v, err: err}
	close(p.done)
	return p
}

// Resolved returns a promise fulfilled with v.
func Resolved(v any) *Promise { return settled(v, nil) }

// Rejected returns a promise rejected with err. A nil err rejects with
// ErrRejected.
func Rejected(err error) *Promise {
	if err == nil {
		err = ErrRejected
	}
	return settled(nil, err)
}

// Done is closed once the promise settles.
func (p *Promise) Done() <-chan struct{} { return p.done }

// Await blocks until the promise settles or ctx is done.
func (p *Promise) Await(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Promise) String() string {
	select {
	case <-p.done:
	default:
		return "Promise{pending}"
	}
	if p.err != nil {
		return "Promise{rejected: " + p.err.Error() + "}"
	}
	return "Promise{resolved: " + match.Render(p.value) + "}"
}
