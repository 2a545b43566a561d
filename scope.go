package dispose

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type scopeMode uint8

const (
	modeSync scopeMode = iota
	modeAsync
)

type scopeState uint8

const (
	stateOpen scopeState = iota
	stateClosing
	stateClosed
)

// Scope owns the disposables registered during one dynamic extent and
// guarantees their release in reverse registration order on exit, on
// every exit path.
//
// A scope is either synchronous (NewScope) or asynchronous
// (NewAsyncScope). Synchronous scopes reject async-only teardowns at
// registration time; asynchronous scopes accept both flavors and fall
// back to the sync routine when no async one exists.
type Scope struct {
	mu         sync.Mutex
	id         string
	mode       scopeMode
	state      scopeState
	entries    []AnyDisposable
	extensions []Extension
	tags       sync.Map
	tree       *scopeTree
	parent     *Scope
}

// ScopeOption is a modifier for scopes
type ScopeOption func(*Scope)

// WithExtension returns an option that registers an extension to a scope
func WithExtension(ext Extension) ScopeOption {
	return func(s *Scope) {
		if err := s.UseExtension(ext); err != nil {
			panic(err)
		}
	}
}

// NewScope creates a new synchronous scope.
func NewScope(opts ...ScopeOption) *Scope {
	return newScope(modeSync, opts)
}

// NewAsyncScope creates a new asynchronous scope. It must be closed with
// CloseContext or CloseWithContext.
func NewAsyncScope(opts ...ScopeOption) *Scope {
	return newScope(modeAsync, opts)
}

func newScope(mode scopeMode, opts []ScopeOption) *Scope {
	s := &Scope{
		id:      uuid.NewString(),
		mode:    mode,
		entries: globalEntryPool.acquire(),
		tree:    newScopeTree(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Child opens a nested scope of the same flavor. A child left open when
// its parent closes is unwound first, newest child first, so inner
// teardown always completes before outer teardown begins.
func (s *Scope) Child() *Scope {
	child := &Scope{
		id:      uuid.NewString(),
		mode:    s.mode,
		entries: globalEntryPool.acquire(),
		tree:    s.tree,
		parent:  s,
	}

	s.mu.Lock()
	child.extensions = append(child.extensions, s.extensions...)
	s.mu.Unlock()

	s.tree.addChild(s, child)
	return child
}

// UseExtension registers an extension to the scope
func (s *Scope) UseExtension(ext Extension) error {
	s.mu.Lock()
	s.extensions = append(s.extensions, ext)
	sort.SliceStable(s.extensions, func(i, j int) bool {
		return s.extensions[i].Order() < s.extensions[j].Order()
	})
	s.mu.Unlock()

	return ext.Init(s)
}

// ID returns the scope's unique identifier.
func (s *Scope) ID() string { return s.id }

// IsAsync reports whether the scope accepts asynchronous teardowns.
func (s *Scope) IsAsync() bool { return s.mode == modeAsync }

// Parent returns the enclosing scope, or nil for a root scope.
func (s *Scope) Parent() *Scope { return s.parent }

// Children returns the scope's currently open child scopes, oldest first.
func (s *Scope) Children() []*Scope {
	return s.tree.directChildren(s)
}

// Entries returns a snapshot of the registered disposables in
// registration order.
func (s *Scope) Entries() []AnyDisposable {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AnyDisposable, len(s.entries))
	copy(out, s.entries)
	return out
}

// GetTag retrieves a tag value from the scope
func (s *Scope) GetTag(tag any) (any, bool) {
	return s.tags.Load(tag)
}

// SetTag stores a tag value on the scope
func (s *Scope) SetTag(tag any, val any) {
	s.tags.Store(tag, val)
}

func (s *Scope) register(d AnyDisposable) error {
	if d.TeardownKind() == TeardownNone {
		return &ProtocolError{
			Op:     "register",
			Reason: "value has no teardown attached",
		}
	}
	if s.mode == modeSync && d.TeardownKind() == TeardownAsync {
		return &ProtocolError{
			Op:     "register",
			Reason: "asynchronous teardown in a synchronous scope",
		}
	}

	s.mu.Lock()
	if s.state != stateOpen {
		s.mu.Unlock()
		return &ProtocolError{
			Op:     "register",
			Reason: "scope is closing or closed",
		}
	}
	s.entries = append(s.entries, d)
	exts := s.extensions
	s.mu.Unlock()

	for _, ext := range exts {
		ext.OnRegister(s, d)
	}
	return nil
}

// Using runs the creation expression and registers its result on the
// scope. A creation failure propagates with nothing registered.
//
// If registration itself is rejected (async-only teardown in a sync
// scope, or a value with no teardown), the created payload is returned
// together with the ProtocolError: the scope has not taken ownership and
// the caller must dispose the value itself.
func Using[T any](s *Scope, acquire func() (T, Teardown, error), opts ...HandleOption) (T, error) {
	payload, teardown, err := acquire()
	if err != nil {
		var zero T
		return zero, err
	}
	if err := s.register(NewDisposable(payload, teardown, opts...)); err != nil {
		return payload, err
	}
	return payload, nil
}

// UsingCloser opens an io.Closer-shaped resource and registers its Close
// as a synchronous teardown.
func UsingCloser[T io.Closer](s *Scope, open func() (T, error), opts ...HandleOption) (T, error) {
	return Using(s, func() (T, Teardown, error) {
		v, err := open()
		if err != nil {
			var zero T
			return zero, NoTeardown(), err
		}
		return v, Closer(v), nil
	}, opts...)
}

// Adopt registers an existing disposable on the scope and returns its
// payload. The same registration rules as Using apply.
func Adopt[T any](s *Scope, d *Disposable[T]) (T, error) {
	if err := s.register(d); err != nil {
		return d.Value(), err
	}
	return d.Value(), nil
}

// Close unwinds a synchronous scope. Closing an already-closed scope is
// a no-op; closing an asynchronous scope without a context is a
// ProtocolError.
func (s *Scope) Close() error {
	if s.mode == modeAsync {
		return &ProtocolError{
			Op:     "close",
			Reason: "asynchronous scope requires CloseContext",
		}
	}
	return s.unwind(context.Background(), nil)
}

// CloseWith unwinds a synchronous scope, aggregating the body's in-flight
// error with any teardown failures. With a nil error it behaves exactly
// like Close.
func (s *Scope) CloseWith(err error) error {
	if s.mode == modeAsync {
		return &ProtocolError{
			Op:     "close",
			Reason: "asynchronous scope requires CloseWithContext",
		}
	}
	return s.unwind(context.Background(), err)
}

// CloseContext unwinds the scope, awaiting each asynchronous teardown in
// turn. It also accepts synchronous scopes, whose teardowns simply do
// not observe the context.
func (s *Scope) CloseContext(ctx context.Context) error {
	return s.unwind(ctx, nil)
}

// CloseWithContext unwinds the scope, aggregating the body's in-flight
// error with any teardown failures.
func (s *Scope) CloseWithContext(ctx context.Context, err error) error {
	return s.unwind(ctx, err)
}

// unwind releases every registered disposable in strict reverse
// registration order. Teardowns run sequentially, never concurrently;
// each one completes before the previous-in-registration-order entry is
// released. Unwind of a given scope is not reentrant.
func (s *Scope) unwind(ctx context.Context, body error) error {
	s.mu.Lock()
	switch s.state {
	case stateClosed:
		s.mu.Unlock()
		return body
	case stateClosing:
		s.mu.Unlock()
		return &ProtocolError{
			Op:     "close",
			Reason: "unwind already in progress",
		}
	}
	s.state = stateClosing
	entries := s.entries
	exts := s.extensions
	s.mu.Unlock()

	var failures []error

	// Still-open children unwind first, newest child first, so inner
	// teardown fully precedes this scope's own entries.
	children := s.tree.directChildren(s)
	for i := len(children) - 1; i >= 0; i-- {
		if err := children[i].unwind(ctx, nil); err != nil {
			failures = append(failures, err)
		}
	}

	for i := len(entries) - 1; i >= 0; i-- {
		d := entries[i]

		var err error
		if s.mode == modeAsync {
			err = d.disposeContext(ctx)
		} else {
			err = d.dispose()
		}
		if err == nil {
			continue
		}

		terr, ok := err.(*TeardownError)
		if !ok {
			terr = &TeardownError{Label: d.Label(), Phase: "close", Err: err}
		}

		handled := false
		for _, ext := range exts {
			if ext.OnTeardownError(terr) {
				handled = true
				break
			}
		}
		if !handled {
			failures = append(failures, terr)
		}
	}

	s.mu.Lock()
	s.state = stateClosed
	s.entries = nil
	s.mu.Unlock()

	s.tree.remove(s)
	globalEntryPool.release(entries)

	for _, ext := range exts {
		if err := ext.Dispose(s); err != nil {
			failures = append(failures, fmt.Errorf("disposing extension %s: %w", ext.Name(), err))
		}
	}

	return aggregate(body, failures)
}

// With opens a synchronous scope around fn and always unwinds it: on
// normal return, on error return, and on panic (the unwind runs, then
// the panic continues). The body's error is aggregated with teardown
// failures per the SuppressedError rules.
func With(fn func(*Scope) error) error {
	s := NewScope()
	panicked := true
	defer func() {
		if panicked {
			_ = s.Close()
		}
	}()
	err := fn(s)
	panicked = false
	return s.CloseWith(err)
}

// WithContext is the asynchronous counterpart of With.
func WithContext(ctx context.Context, fn func(context.Context, *Scope) error) error {
	s := NewAsyncScope()
	panicked := true
	defer func() {
		if panicked {
			_ = s.CloseContext(ctx)
		}
	}()
	err := fn(ctx, s)
	panicked = false
	return s.CloseWithContext(ctx, err)
}
