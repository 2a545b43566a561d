// Package dispose provides deterministic, scope-bound release of acquired
// resources, plus reference-counted managers that share one expensive
// resource between overlapping borrows.
//
// # Overview
//
// Dispose organizes code around three core concepts:
//
//  1. Disposables: values paired with exactly one teardown operation
//  2. Scopes: dynamic extents that release their disposables in reverse
//     registration order on every exit path
//  3. Managers: reference-counted allocators that create a shared
//     resource lazily and tear it down exactly once, when the last
//     borrow is released
//
// # Basic Usage
//
// Open a scope, acquire through it, and close it:
//
//	s := dispose.NewScope()
//	defer s.Close()
//
//	f, err := dispose.UsingCloser(s, func() (*os.File, error) {
//	    return os.Open("data.txt")
//	})
//
// Or let With handle the unwind on every exit path, including panics:
//
//	err := dispose.With(func(s *dispose.Scope) error {
//	    f, err := dispose.UsingCloser(s, openLog)
//	    if err != nil {
//	        return err
//	    }
//	    return process(f)
//	})
//
// Teardown order is strictly LIFO: the last value registered is the
// first one released. Nested scopes (Scope.Child) unwind fully before
// their parent's own entries.
//
// # Synchronous and Asynchronous Scopes
//
// A synchronous scope (NewScope) only accepts synchronous teardowns;
// registering an async-only teardown there is a ProtocolError at
// registration time, not a surprising interleaving at close time. An
// asynchronous scope (NewAsyncScope, closed with CloseContext) prefers a
// disposable's async teardown and falls back to its sync one. Teardowns
// always run sequentially, each to completion before the next, so LIFO
// order stays deterministic.
//
// # Error Aggregation
//
// No teardown error is silently dropped. If the scope body fails and
// teardowns also fail during the unwind, CloseWith returns a
// SuppressedError carrying the body error as primary and every teardown
// error as suppressed; errors.Is and errors.As see all of them. If only
// teardowns fail, the innermost failure is primary.
//
// # Reference Counting
//
// A Manager shares one underlying resource between overlapping borrows:
//
//	pool := dispose.NewManager(
//	    func() (*Conn, *Conn, error) { c, err := connect(); return c, c, err },
//	    func(c *Conn) error { return c.Close() },
//	    dispose.WithName("db"),
//	)
//
//	h1, _ := pool.Borrow() // connects
//	h2, _ := pool.Borrow() // shares the live connection
//	h2.Dispose()           // count 1, still connected
//	h1.Dispose()           // count 0, Close runs exactly once
//
// After a full teardown the manager is re-creatable: the next borrow
// opens a fresh generation. A KeyedManager holds one such manager per
// key (say, per file name), creating entries on first borrow and
// dropping them when a key's count returns to zero.
//
// # Extensions and Observers
//
// Scope extensions hook registration, teardown failures, and scope
// disposal; manager observers receive create/borrow/release/teardown
// events. The extensions package ships zap logging, Prometheus metrics,
// and a scope-tree renderer built on them.
package dispose
