// Package pending implements the request-correlation primitives of a debug
// session: single-assignment futures with three terminal states and the
// table mapping outstanding request tokens to them.
package pending

import (
	"context"
	"errors"
	"sync"

	"github.com/dedbg/dedbg/internal/wire"
)

// ErrCancelled is the outcome a waiter observes when its request was cut
// short by timeout, disconnect, or a caller-supplied cancellation. Distinct
// from both transport errors and remote faults.
var ErrCancelled = errors.New("request cancelled")

// Future is the single-assignment result slot of one outstanding request.
// It transitions exactly once to resolved, faulted, or cancelled; later
// completions are no-ops. Completion never blocks, so the receive loop can
// dispatch regardless of how slowly the waiter consumes the result.
type Future struct {
	once sync.Once
	done chan struct{}

	reply     *wire.Reply
	fault     *wire.RemoteFault
	cancelled bool
}

// NewFuture returns an unresolved future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolve completes the future with a parsed reply document.
func (f *Future) Resolve(reply *wire.Reply) {
	f.once.Do(func() {
		f.reply = reply
		close(f.done)
	})
}

// Fail completes the future with a remote fault.
func (f *Future) Fail(fault *wire.RemoteFault) {
	f.once.Do(func() {
		f.fault = fault
		close(f.done)
	})
}

// Cancel completes the future with a cancelled outcome.
func (f *Future) Cancel() {
	f.once.Do(func() {
		f.cancelled = true
		close(f.done)
	})
}

// Done is closed on the first completion, whichever it was.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future completes or ctx is cancelled. A remote
// fault is returned as the error; cancellation from either source surfaces
// as ErrCancelled.
func (f *Future) Await(ctx context.Context) (*wire.Reply, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		f.Cancel()
		return nil, ErrCancelled
	}
	switch {
	case f.cancelled:
		return nil, ErrCancelled
	case f.fault != nil:
		return nil, f.fault
	default:
		return f.reply, nil
	}
}
