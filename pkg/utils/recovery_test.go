package utils

import (
	"errors"
	"testing"
)

func TestRecoverAsError(t *testing.T) {
	t.Run("recovers from panic", func(t *testing.T) {
		fn := func() (err error) {
			defer RecoverAsError(&err)
			panic("test panic")
		}

		err := fn()
		if err == nil {
			t.Fatal("expected error from panic recovery")
		}

		var panicErr *PanicError
		if !errors.As(err, &panicErr) {
			t.Fatalf("expected PanicError, got %T", err)
		}

		if panicErr.Value != "test panic" {
			t.Errorf("expected panic value 'test panic', got %v", panicErr.Value)
		}

		if panicErr.StackTrace == "" {
			t.Error("expected stack trace to be populated")
		}
	})

	t.Run("no error when no panic", func(t *testing.T) {
		fn := func() (err error) {
			defer RecoverAsError(&err)
			return nil
		}

		err := fn()
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("preserves original error", func(t *testing.T) {
		originalErr := errors.New("original error")
		fn := func() (err error) {
			defer RecoverAsError(&err)
			return originalErr
		}

		err := fn()
		if err != originalErr {
			t.Errorf("expected original error, got %v", err)
		}
	})
}

func TestPanicErrorString(t *testing.T) {
	err := &PanicError{Value: "test value"}
	expected := "panic: test value"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}

func TestPanicErrorUnwrap(t *testing.T) {
	cause := errors.New("index out of range")
	fn := func() (err error) {
		defer RecoverAsError(&err)
		panic(cause)
	}

	err := fn()
	if !errors.Is(err, cause) {
		t.Errorf("expected panic error to unwrap to %v, got %v", cause, err)
	}

	if (&PanicError{Value: 42}).Unwrap() != nil {
		t.Error("non-error panic values should not unwrap")
	}
}
