package dispose

import (
	"errors"
	"strings"
	"testing"
)

func TestCloseWith_AggregatesBodyAndTeardownErrors(t *testing.T) {
	s := NewScope()

	bodyErr := errors.New("body failed")
	disposeErr := errors.New("dispose failed")

	_, err := Using(s, func() (string, Teardown, error) {
		return "r", Sync(func() error {
			return disposeErr
		}), nil
	})
	if err != nil {
		t.Fatal(err)
	}

	got := s.CloseWith(bodyErr)

	var sup *SuppressedError
	if !errors.As(got, &sup) {
		t.Fatalf("expected SuppressedError, got %v", got)
	}
	if !errors.Is(got, bodyErr) {
		t.Error("aggregate must reference the body error")
	}
	if !errors.Is(got, disposeErr) {
		t.Error("aggregate must reference the teardown error")
	}
	if !strings.Contains(got.Error(), "body failed") || !strings.Contains(got.Error(), "dispose failed") {
		t.Errorf("message must carry both causes, got %q", got.Error())
	}
}

func TestClose_SingleTeardownErrorIsSole(t *testing.T) {
	s := NewScope()

	disposeErr := errors.New("dispose failed")
	_, err := Using(s, func() (string, Teardown, error) {
		return "r", Sync(func() error { return disposeErr }), nil
	}, WithLabel("conn"))
	if err != nil {
		t.Fatal(err)
	}

	got := s.Close()
	var terr *TeardownError
	if !errors.As(got, &terr) {
		t.Fatalf("expected TeardownError, got %v", got)
	}
	if terr.Label != "conn" {
		t.Errorf("unexpected label %q", terr.Label)
	}
	if !errors.Is(got, disposeErr) {
		t.Error("teardown cause must be reachable")
	}
}

func TestClose_MultipleTeardownErrorsInnermostPrimary(t *testing.T) {
	s := NewScope()

	errA := errors.New("a failed")
	errB := errors.New("b failed")

	// Registered first, released last.
	_, err := Using(s, func() (string, Teardown, error) {
		return "a", Sync(func() error { return errA }), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	// Registered last, released first: the innermost failure.
	_, err = Using(s, func() (string, Teardown, error) {
		return "b", Sync(func() error { return errB }), nil
	})
	if err != nil {
		t.Fatal(err)
	}

	got := s.Close()
	var sup *SuppressedError
	if !errors.As(got, &sup) {
		t.Fatalf("expected SuppressedError, got %v", got)
	}
	if !errors.Is(sup.Primary, errB) {
		t.Errorf("expected the innermost failure to be primary, got %v", sup.Primary)
	}
	if len(sup.Suppressed) != 1 || !errors.Is(sup.Suppressed[0], errA) {
		t.Errorf("expected a single suppressed failure for a, got %v", sup.Suppressed)
	}
}

func TestClose_TeardownErrorDoesNotStopUnwind(t *testing.T) {
	s := NewScope()

	released := []string{}
	_, err := Using(s, func() (string, Teardown, error) {
		return "a", Sync(func() error {
			released = append(released, "a")
			return nil
		}), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = Using(s, func() (string, Teardown, error) {
		return "b", Sync(func() error {
			released = append(released, "b")
			return errors.New("b failed")
		}), nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := s.Close(); got == nil {
		t.Fatal("expected an error")
	}
	if len(released) != 2 || released[0] != "b" || released[1] != "a" {
		t.Errorf("every teardown must still run in LIFO order, got %v", released)
	}
}

func TestProtocolError_Message(t *testing.T) {
	err := &ProtocolError{Op: "release", Reason: "count already zero"}
	if !strings.Contains(err.Error(), "release") || !strings.Contains(err.Error(), "count already zero") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestCreationError_UnwrapAndMessage(t *testing.T) {
	cause := errors.New("permission denied")
	err := &CreationError{Manager: "files", Key: "a.txt", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("cause must be reachable")
	}
	if !strings.Contains(err.Error(), "files") || !strings.Contains(err.Error(), "a.txt") {
		t.Errorf("unexpected message %q", err.Error())
	}
}
