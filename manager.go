package dispose

import (
	"context"
	"sync"
)

// CreateFunc produces a payload plus the opaque context its teardown will
// need. A failed creation leaves nothing behind.
type CreateFunc[T, C any] func(ctx context.Context) (T, C, error)

// TeardownFunc releases the resource described by the teardown context.
type TeardownFunc[C any] func(ctx context.Context, tctx C) error

// ManagerOption configures a manager or keyed manager.
type ManagerOption func(*managerConfig)

type managerConfig struct {
	name      string
	observers []Observer
}

// WithName names the manager; the name shows up in errors, handle labels
// and observer events.
func WithName(name string) ManagerOption {
	return func(c *managerConfig) {
		c.name = name
	}
}

// WithObserver attaches a lifecycle observer.
func WithObserver(obs Observer) ManagerOption {
	return func(c *managerConfig) {
		c.observers = append(c.observers, obs)
	}
}

func applyManagerOptions(opts []ManagerOption) managerConfig {
	var cfg managerConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Manager shares one lazily created resource between any number of
// overlapping borrows and tears it down exactly once, when the last
// borrow is released. After a full teardown the manager is re-creatable:
// the next borrow invokes createFn again for a fresh generation.
//
// Count and resource mutations are guarded by a mutex, but the intended
// use is a single logical sequencing domain per manager; racing a borrow
// against an in-flight zero-transition from another goroutine yields a
// fresh generation, not an error.
type Manager[T, C any] struct {
	mu         sync.Mutex
	createFn   CreateFunc[T, C]
	teardownFn TeardownFunc[C]
	name       string
	key        string
	async      bool
	observers  []Observer

	payload T
	tctx    C
	live    bool
	count   int
	gen     uint64
}

// NewManager builds a manager over synchronous create and teardown
// operations. Its borrow handles carry synchronous teardowns and can be
// registered on either scope flavor.
func NewManager[T, C any](create func() (T, C, error), teardown func(C) error, opts ...ManagerOption) *Manager[T, C] {
	cfg := applyManagerOptions(opts)
	return &Manager[T, C]{
		createFn: func(context.Context) (T, C, error) {
			return create()
		},
		teardownFn: func(_ context.Context, tctx C) error {
			return teardown(tctx)
		},
		name:      cfg.name,
		observers: cfg.observers,
	}
}

// NewAsyncManager builds a manager over context-accepting create and
// teardown operations. Its borrow handles carry asynchronous teardowns
// and are rejected by synchronous scopes.
func NewAsyncManager[T, C any](create CreateFunc[T, C], teardown TeardownFunc[C], opts ...ManagerOption) *Manager[T, C] {
	cfg := applyManagerOptions(opts)
	return &Manager[T, C]{
		createFn:   create,
		teardownFn: teardown,
		name:       cfg.name,
		async:      true,
		observers:  cfg.observers,
	}
}

// Borrow takes one claim on the shared resource, creating it first if no
// generation is live. Only synchronous managers may borrow without a
// context.
func (m *Manager[T, C]) Borrow() (*Disposable[T], error) {
	if m.async {
		return nil, &ProtocolError{
			Op:     "borrow",
			Reason: "asynchronous manager requires BorrowContext",
		}
	}
	return m.BorrowContext(context.Background())
}

// BorrowContext takes one claim on the shared resource. The returned
// handle's teardown decrements the count and, on the zero transition,
// runs teardownFn with the stored context and resets the manager for a
// fresh creation.
func (m *Manager[T, C]) BorrowContext(ctx context.Context) (*Disposable[T], error) {
	m.mu.Lock()
	created := false
	if !m.live {
		payload, tctx, err := m.createFn(ctx)
		if err != nil {
			m.mu.Unlock()
			return nil, &CreationError{Manager: m.name, Key: m.key, Err: err}
		}
		m.payload = payload
		m.tctx = tctx
		m.live = true
		m.gen++
		created = true
	}
	m.count++
	count := m.count
	gen := m.gen
	payload := m.payload
	m.mu.Unlock()

	if created {
		for _, obs := range m.observers {
			obs.OnCreate(m.name, m.key)
		}
	}
	for _, obs := range m.observers {
		obs.OnBorrow(m.name, m.key, count)
	}

	var td Teardown
	if m.async {
		td = Async(func(ctx context.Context) error {
			return m.release(ctx, gen)
		})
	} else {
		td = Sync(func() error {
			return m.release(context.Background(), gen)
		})
	}
	return NewDisposable(payload, td, WithLabel(m.label())), nil
}

func (m *Manager[T, C]) release(ctx context.Context, gen uint64) error {
	m.mu.Lock()
	if !m.live || m.gen != gen || m.count == 0 {
		m.mu.Unlock()
		return &ProtocolError{
			Op:     "release",
			Reason: "release after the resource was already torn down",
		}
	}
	m.count--
	count := m.count
	if count > 0 {
		m.mu.Unlock()
		for _, obs := range m.observers {
			obs.OnRelease(m.name, m.key, count)
		}
		return nil
	}

	// Zero transition. Reset before running teardownFn so a failing
	// teardown cannot leave the manager permanently stuck.
	tctx := m.tctx
	var zeroT T
	var zeroC C
	m.payload = zeroT
	m.tctx = zeroC
	m.live = false
	m.mu.Unlock()

	err := m.teardownFn(ctx, tctx)
	for _, obs := range m.observers {
		obs.OnTeardown(m.name, m.key, err)
	}
	if err != nil {
		return &TeardownError{Label: m.label(), Phase: "handle", Err: err}
	}
	return nil
}

// Count returns the number of active borrows.
func (m *Manager[T, C]) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Live reports whether a resource generation is currently live.
func (m *Manager[T, C]) Live() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

// Generation returns how many times the manager has created its
// underlying resource.
func (m *Manager[T, C]) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// Name returns the manager's configured name.
func (m *Manager[T, C]) Name() string { return m.name }

func (m *Manager[T, C]) label() string {
	switch {
	case m.name != "" && m.key != "":
		return m.name + ":" + m.key
	case m.key != "":
		return m.key
	default:
		return m.name
	}
}

// Borrow borrows from m and registers the handle on s, returning the
// shared payload. The handle is released when s closes.
func Borrow[T, C any](s *Scope, m *Manager[T, C]) (T, error) {
	h, err := m.Borrow()
	if err != nil {
		var zero T
		return zero, err
	}
	if err := s.register(h); err != nil {
		// The scope refused the handle; give the claim back.
		_ = h.dispose()
		var zero T
		return zero, err
	}
	return h.Value(), nil
}

// BorrowContext borrows from m and registers the handle on s, returning
// the shared payload.
func BorrowContext[T, C any](ctx context.Context, s *Scope, m *Manager[T, C]) (T, error) {
	h, err := m.BorrowContext(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := s.register(h); err != nil {
		_ = h.disposeContext(ctx)
		var zero T
		return zero, err
	}
	return h.Value(), nil
}
