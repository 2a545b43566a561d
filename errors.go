package dispose

import (
	"fmt"

	"go.uber.org/multierr"
)

// CreationError wraps a createFn failure. The originating manager's state
// is untouched: no count change, no stored teardown context.
type CreationError struct {
	Manager string
	Key     string
	Err     error
}

func (e *CreationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("creating resource %q (key %q): %v", e.Manager, e.Key, e.Err)
	}
	return fmt.Sprintf("creating resource %q: %v", e.Manager, e.Err)
}

func (e *CreationError) Unwrap() error {
	return e.Err
}

// TeardownError wraps a single teardown failure during unwind or manual
// disposal. It is always surfaced, never swallowed.
type TeardownError struct {
	Label string
	Phase string // "close", "handle", or "manual"
	Err   error
}

func (e *TeardownError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("teardown of %q failed during %s: %v", e.Label, e.Phase, e.Err)
	}
	return fmt.Sprintf("teardown failed during %s: %v", e.Phase, e.Err)
}

func (e *TeardownError) Unwrap() error {
	return e.Err
}

// SuppressedError aggregates a primary error with one or more additional
// errors raised during failure-path cleanup. Both the primary and every
// suppressed error are reachable through errors.Is and errors.As.
type SuppressedError struct {
	Primary    error
	Suppressed []error
}

func (e *SuppressedError) Error() string {
	return fmt.Sprintf("%v (suppressed: %v)", e.Primary, multierr.Combine(e.Suppressed...))
}

func (e *SuppressedError) Unwrap() []error {
	return append([]error{e.Primary}, e.Suppressed...)
}

// ProtocolError reports a misuse of the disposal protocol: synchronous
// disposal of an async-only teardown, registration-flavor mismatch,
// reentrant unwind, or a release that would drive a count below zero.
type ProtocolError struct {
	Op     string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("dispose: %s: %s", e.Op, e.Reason)
}

// aggregate combines the scope body's error with the teardown errors
// collected during one unwind. The body error, if any, is primary and the
// teardown errors are suppressed. If only teardowns failed, the first
// encountered (the innermost registration, since unwind is LIFO) is
// primary and the rest are suppressed.
func aggregate(body error, teardown []error) error {
	switch {
	case len(teardown) == 0:
		return body
	case body != nil:
		return &SuppressedError{Primary: body, Suppressed: teardown}
	case len(teardown) == 1:
		return teardown[0]
	default:
		return &SuppressedError{Primary: teardown[0], Suppressed: teardown[1:]}
	}
}
