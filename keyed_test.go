package dispose

import (
	"context"
	"errors"
	"sort"
	"testing"
)

type keyedFixture struct {
	created   map[string]int
	torndown  map[string]int
	failOpen  map[string]error
	failClose map[string]error
}

func newKeyedFixture() *keyedFixture {
	return &keyedFixture{
		created:   map[string]int{},
		torndown:  map[string]int{},
		failOpen:  map[string]error{},
		failClose: map[string]error{},
	}
}

func (f *keyedFixture) manager() *KeyedManager[string, string] {
	return NewKeyedManager(
		func(key string) (string, string, error) {
			if err := f.failOpen[key]; err != nil {
				return "", "", err
			}
			f.created[key]++
			return "payload-" + key, key, nil
		},
		func(key string, tctx string) error {
			f.torndown[key]++
			return f.failClose[key]
		},
		WithName("files"),
	)
}

func TestKeyedManager_SameKeySharesOneResource(t *testing.T) {
	f := newKeyedFixture()
	km := f.manager()

	h1, err := km.Borrow("x")
	if err != nil {
		t.Fatal(err)
	}
	h2, err := km.Borrow("x")
	if err != nil {
		t.Fatal(err)
	}

	if f.created["x"] != 1 {
		t.Fatalf("expected one creation for x, got %d", f.created["x"])
	}
	if h1.Value() != h2.Value() {
		t.Error("borrows of the same key must share the payload")
	}
	if km.Count("x") != 2 {
		t.Errorf("expected count 2 for x, got %d", km.Count("x"))
	}

	if err := h1.Dispose(); err != nil {
		t.Fatal(err)
	}
	if f.torndown["x"] != 0 {
		t.Fatal("teardown must wait for the last release")
	}
	if err := h2.Dispose(); err != nil {
		t.Fatal(err)
	}
	if f.torndown["x"] != 1 {
		t.Fatalf("expected one teardown for x, got %d", f.torndown["x"])
	}
}

func TestKeyedManager_KeysAreIndependent(t *testing.T) {
	f := newKeyedFixture()
	km := f.manager()

	hx, err := km.Borrow("x")
	if err != nil {
		t.Fatal(err)
	}
	hy, err := km.Borrow("y")
	if err != nil {
		t.Fatal(err)
	}

	keys := km.Keys()
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "x" || keys[1] != "y" {
		t.Fatalf("expected keys [x y], got %v", keys)
	}

	// Releasing all of x must not touch y.
	if err := hx.Dispose(); err != nil {
		t.Fatal(err)
	}
	if f.torndown["x"] != 1 || f.torndown["y"] != 0 {
		t.Fatalf("expected only x torn down, got %v", f.torndown)
	}
	if km.Len() != 1 || km.Count("y") != 1 {
		t.Errorf("y must keep its entry and count, len=%d count=%d", km.Len(), km.Count("y"))
	}

	if err := hy.Dispose(); err != nil {
		t.Fatal(err)
	}
	if km.Len() != 0 {
		t.Errorf("expected empty mapping, got %v", km.Keys())
	}
}

func TestKeyedManager_KeyRemovedExactlyAtZero(t *testing.T) {
	f := newKeyedFixture()
	km := f.manager()

	h, err := km.Borrow("x")
	if err != nil {
		t.Fatal(err)
	}
	if km.Len() != 1 {
		t.Fatal("key must be present while borrowed")
	}
	if err := h.Dispose(); err != nil {
		t.Fatal(err)
	}
	if km.Len() != 0 {
		t.Fatal("key must be removed at zero")
	}

	// Borrowing the same key again starts a fresh per-key generation.
	h2, err := km.Borrow("x")
	if err != nil {
		t.Fatal(err)
	}
	if f.created["x"] != 2 {
		t.Fatalf("expected a fresh creation, got %d", f.created["x"])
	}
	_ = h2.Dispose()
}

func TestKeyedManager_CreationFailureInsertsNoKey(t *testing.T) {
	f := newKeyedFixture()
	f.failOpen["bad"] = errors.New("no such file")
	km := f.manager()

	_, err := km.Borrow("bad")
	var cerr *CreationError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CreationError, got %v", err)
	}
	if cerr.Key != "bad" {
		t.Errorf("unexpected key %q", cerr.Key)
	}
	if km.Len() != 0 {
		t.Error("a failed creation must not insert the key")
	}

	// The key is retried from scratch once the failure clears.
	delete(f.failOpen, "bad")
	h, err := km.Borrow("bad")
	if err != nil {
		t.Fatal(err)
	}
	_ = h.Dispose()
}

func TestKeyedManager_TeardownFailureStillRemovesKey(t *testing.T) {
	f := newKeyedFixture()
	f.failClose["x"] = errors.New("close failed")
	km := f.manager()

	h, err := km.Borrow("x")
	if err != nil {
		t.Fatal(err)
	}

	err = h.Dispose()
	var terr *TeardownError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TeardownError, got %v", err)
	}
	if km.Len() != 0 {
		t.Error("key must be removed even when its teardown fails")
	}
}

func TestKeyedManager_ScopedBorrows(t *testing.T) {
	f := newKeyedFixture()
	km := f.manager()

	err := With(func(s *Scope) error {
		if _, err := BorrowKey(s, km, "x"); err != nil {
			return err
		}
		if _, err := BorrowKey(s, km, "x"); err != nil {
			return err
		}
		_, err := BorrowKey(s, km, "y")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	if km.Len() != 0 {
		t.Errorf("scope exit must drain every key, got %v", km.Keys())
	}
	if f.created["x"] != 1 || f.torndown["x"] != 1 {
		t.Errorf("x: expected one create and one teardown, got %d/%d", f.created["x"], f.torndown["x"])
	}
	if f.created["y"] != 1 || f.torndown["y"] != 1 {
		t.Errorf("y: expected one create and one teardown, got %d/%d", f.created["y"], f.torndown["y"])
	}
}

func TestAsyncKeyedManager_BorrowRequiresContext(t *testing.T) {
	km := NewAsyncKeyedManager(
		func(_ context.Context, key string) (string, struct{}, error) {
			return key, struct{}{}, nil
		},
		func(context.Context, string, struct{}) error { return nil },
	)

	_, err := km.Borrow("x")
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}

	h, err := km.BorrowContext(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	if err := h.DisposeContext(context.Background()); err != nil {
		t.Fatal(err)
	}
	if km.Len() != 0 {
		t.Error("expected empty mapping after release")
	}
}
