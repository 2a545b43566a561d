package dispose

import (
	"context"
	"io"
)

// TeardownKind identifies which release flavor a Teardown carries.
type TeardownKind uint8

const (
	// TeardownNone means no release routine is attached.
	TeardownNone TeardownKind = iota
	// TeardownSync is a context-free release routine that runs to
	// completion before returning.
	TeardownSync
	// TeardownAsync is a context-accepting release routine that may
	// suspend internally and honors cancellation.
	TeardownAsync
)

func (k TeardownKind) String() string {
	switch k {
	case TeardownSync:
		return "sync"
	case TeardownAsync:
		return "async"
	default:
		return "none"
	}
}

// Teardown is a tagged variant over {sync, async, none} release routines.
// The flavor is selected once at construction and never changes.
type Teardown struct {
	kind    TeardownKind
	syncFn  func() error
	asyncFn func(context.Context) error
}

// Sync wraps a synchronous release routine.
func Sync(fn func() error) Teardown {
	return Teardown{kind: TeardownSync, syncFn: fn}
}

// Async wraps an asynchronous release routine.
func Async(fn func(context.Context) error) Teardown {
	return Teardown{kind: TeardownAsync, asyncFn: fn}
}

// Closer wraps an io.Closer's Close as a synchronous teardown.
func Closer(c io.Closer) Teardown {
	return Sync(c.Close)
}

// NoTeardown returns the empty variant. A value carrying it cannot be
// registered on a scope.
func NoTeardown() Teardown {
	return Teardown{kind: TeardownNone}
}

// Kind reports the selected flavor.
func (t Teardown) Kind() TeardownKind { return t.kind }

// IsZero reports whether no release routine is attached.
func (t Teardown) IsZero() bool { return t.kind == TeardownNone }

// run invokes the teardown on the synchronous path. The caller is
// responsible for rejecting async-only teardowns first.
func (t Teardown) run() error {
	if t.syncFn == nil {
		return nil
	}
	return t.syncFn()
}

// runContext invokes the teardown on the asynchronous path, preferring
// the async routine and falling back to the sync one.
func (t Teardown) runContext(ctx context.Context) error {
	if t.asyncFn != nil {
		return t.asyncFn(ctx)
	}
	return t.run()
}
