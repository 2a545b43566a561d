package dispose

import (
	"context"
	"sync/atomic"
)

// AnyDisposable is the type-erased view of a Disposable, used by scopes
// and extensions that do not care about the payload type.
type AnyDisposable interface {
	// Label returns the diagnostic label given at construction, or "".
	Label() string
	// TeardownKind reports the flavor of the attached teardown.
	TeardownKind() TeardownKind
	// IsDisposed reports whether the teardown has already fired.
	IsDisposed() bool

	dispose() error
	disposeContext(ctx context.Context) error
}

// HandleOption configures a Disposable at construction.
type HandleOption func(*handleConfig)

type handleConfig struct {
	label string
}

// WithLabel attaches a diagnostic label to a Disposable. The label shows
// up in TeardownError and in the debug extensions.
func WithLabel(label string) HandleOption {
	return func(c *handleConfig) {
		c.label = label
	}
}

// Disposable pairs a payload with exactly one teardown operation. The
// disposed flag is monotonic: it transitions false to true at most once,
// and a second disposal of the same handle is a no-op.
//
// After disposal the payload must be treated as released; the runtime
// does not revoke access to it.
type Disposable[T any] struct {
	payload  T
	teardown Teardown
	label    string
	disposed atomic.Bool
}

// NewDisposable pairs payload with a teardown.
func NewDisposable[T any](payload T, teardown Teardown, opts ...HandleOption) *Disposable[T] {
	var cfg handleConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Disposable[T]{
		payload:  payload,
		teardown: teardown,
		label:    cfg.label,
	}
}

// Value returns the payload. It is the caller's responsibility not to use
// the payload after disposal.
func (d *Disposable[T]) Value() T { return d.payload }

// Label returns the diagnostic label.
func (d *Disposable[T]) Label() string { return d.label }

// TeardownKind reports the flavor of the attached teardown.
func (d *Disposable[T]) TeardownKind() TeardownKind { return d.teardown.kind }

// IsDisposed reports whether the teardown has already fired (or the
// handle was disposed with no teardown attached).
func (d *Disposable[T]) IsDisposed() bool { return d.disposed.Load() }

// Dispose runs the teardown synchronously. Disposing a handle that
// carries an async-only teardown is a ProtocolError; use DisposeContext.
// Disposing an already-disposed handle returns nil without invoking the
// teardown again.
func (d *Disposable[T]) Dispose() error {
	if d.teardown.kind == TeardownAsync {
		return &ProtocolError{
			Op:     "dispose",
			Reason: "teardown is asynchronous; use DisposeContext",
		}
	}
	return d.dispose()
}

// DisposeContext runs the teardown, preferring the async routine and
// falling back to the sync one. Repeat disposal is a no-op.
func (d *Disposable[T]) DisposeContext(ctx context.Context) error {
	return d.disposeContext(ctx)
}

func (d *Disposable[T]) dispose() error {
	if !d.disposed.CompareAndSwap(false, true) {
		return nil
	}
	return d.teardown.run()
}

func (d *Disposable[T]) disposeContext(ctx context.Context) error {
	if !d.disposed.CompareAndSwap(false, true) {
		return nil
	}
	return d.teardown.runContext(ctx)
}
