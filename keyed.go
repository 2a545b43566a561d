package dispose

import (
	"context"
	"sync"
)

// KeyedCreateFunc produces the payload and teardown context for one key.
type KeyedCreateFunc[T, C any] func(ctx context.Context, key string) (T, C, error)

// KeyedTeardownFunc releases the resource backing one key.
type KeyedTeardownFunc[C any] func(ctx context.Context, key string, tctx C) error

// KeyedManager is a collection of independent reference-counted managers
// indexed by key. A key is present exactly while its manager's count is
// above zero: the entry is created on first borrow of an unseen key and
// removed when the last borrow of that key is released.
//
// The mapping and the count transitions of its entries share one mutex,
// so "decrement to zero, remove key" cannot interleave with "lookup key,
// borrow".
type KeyedManager[T, C any] struct {
	mu         sync.Mutex
	entries    map[string]*Manager[T, C]
	createFn   KeyedCreateFunc[T, C]
	teardownFn KeyedTeardownFunc[C]
	name       string
	async      bool
	observers  []Observer
}

// NewKeyedManager builds a keyed manager over synchronous per-key create
// and teardown operations.
func NewKeyedManager[T, C any](create func(key string) (T, C, error), teardown func(key string, tctx C) error, opts ...ManagerOption) *KeyedManager[T, C] {
	cfg := applyManagerOptions(opts)
	return &KeyedManager[T, C]{
		entries: make(map[string]*Manager[T, C]),
		createFn: func(_ context.Context, key string) (T, C, error) {
			return create(key)
		},
		teardownFn: func(_ context.Context, key string, tctx C) error {
			return teardown(key, tctx)
		},
		name:      cfg.name,
		observers: cfg.observers,
	}
}

// NewAsyncKeyedManager builds a keyed manager over context-accepting
// per-key operations; its handles carry asynchronous teardowns.
func NewAsyncKeyedManager[T, C any](create KeyedCreateFunc[T, C], teardown KeyedTeardownFunc[C], opts ...ManagerOption) *KeyedManager[T, C] {
	cfg := applyManagerOptions(opts)
	return &KeyedManager[T, C]{
		entries:    make(map[string]*Manager[T, C]),
		createFn:   create,
		teardownFn: teardown,
		name:       cfg.name,
		async:      true,
		observers:  cfg.observers,
	}
}

// Borrow takes one claim on the resource behind key. Only synchronous
// keyed managers may borrow without a context.
func (k *KeyedManager[T, C]) Borrow(key string) (*Disposable[T], error) {
	if k.async {
		return nil, &ProtocolError{
			Op:     "borrow",
			Reason: "asynchronous manager requires BorrowContext",
		}
	}
	return k.BorrowContext(context.Background(), key)
}

// BorrowContext takes one claim on the resource behind key, creating the
// per-key manager on first sight. The returned handle's teardown
// releases the claim and removes the key from the mapping if and only if
// the key's count reached zero.
func (k *KeyedManager[T, C]) BorrowContext(ctx context.Context, key string) (*Disposable[T], error) {
	k.mu.Lock()
	m, known := k.entries[key]
	if !known {
		m = k.newEntry(key)
	}
	h, err := m.BorrowContext(ctx)
	if err != nil {
		// Creation failed: the key must not appear in the mapping.
		k.mu.Unlock()
		return nil, err
	}
	k.entries[key] = m
	k.mu.Unlock()

	release := func(ctx context.Context) error {
		k.mu.Lock()
		defer k.mu.Unlock()
		err := h.disposeContext(ctx)
		if m.Count() == 0 {
			delete(k.entries, key)
		}
		return err
	}

	var td Teardown
	if k.async {
		td = Async(release)
	} else {
		td = Sync(func() error {
			return release(context.Background())
		})
	}
	return NewDisposable(h.Value(), td, WithLabel(h.Label())), nil
}

func (k *KeyedManager[T, C]) newEntry(key string) *Manager[T, C] {
	return &Manager[T, C]{
		createFn: func(ctx context.Context) (T, C, error) {
			return k.createFn(ctx, key)
		},
		teardownFn: func(ctx context.Context, tctx C) error {
			return k.teardownFn(ctx, key, tctx)
		},
		name:      k.name,
		key:       key,
		async:     k.async,
		observers: k.observers,
	}
}

// Len returns the number of keys with a live claim.
func (k *KeyedManager[T, C]) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// Keys returns the keys with a live claim, in no particular order.
func (k *KeyedManager[T, C]) Keys() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	keys := make([]string, 0, len(k.entries))
	for key := range k.entries {
		keys = append(keys, key)
	}
	return keys
}

// Count returns the number of active borrows of key.
func (k *KeyedManager[T, C]) Count(key string) int {
	k.mu.Lock()
	m, ok := k.entries[key]
	k.mu.Unlock()
	if !ok {
		return 0
	}
	return m.Count()
}

// BorrowKey borrows key from km and registers the handle on s, returning
// the shared payload.
func BorrowKey[T, C any](s *Scope, km *KeyedManager[T, C], key string) (T, error) {
	h, err := km.Borrow(key)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := s.register(h); err != nil {
		_ = h.dispose()
		var zero T
		return zero, err
	}
	return h.Value(), nil
}

// BorrowKeyContext borrows key from km and registers the handle on s,
// returning the shared payload.
func BorrowKeyContext[T, C any](ctx context.Context, s *Scope, km *KeyedManager[T, C], key string) (T, error) {
	h, err := km.BorrowContext(ctx, key)
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
