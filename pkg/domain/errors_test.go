package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{&ValidationError{Field: "name", Msg: "bad"}, KindValidation},
		{fmt.Errorf("wrapped: %w", &ValidationError{Msg: "bad"}), KindValidation},
		{&ConflictError{Msg: "Database `a` already exists."}, KindConflict},
		{&PolicyError{Msg: "no"}, KindPolicy},
		{&CascadeError{Name: "a", Err: errors.New("table busy")}, KindCascade},
		{&CascadeError{Name: "a", Err: context.Canceled}, KindInterrupted},
		{&InterruptedError{Err: context.Canceled}, KindInterrupted},
		{context.DeadlineExceeded, KindInterrupted},
		{errors.New("whatever"), KindInternal},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestValidationErrorFieldQualification(t *testing.T) {
	err := &ValidationError{Field: "name", Msg: "Expected a string."}
	if got := err.Error(); got != "In `name`: Expected a string." {
		t.Fatalf("unexpected message: %q", got)
	}
	bare := &ValidationError{Msg: "Expected a field named `id`."}
	if got := bare.Error(); got != "Expected a field named `id`." {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestGuaranteePanicsWithInvariantError(t *testing.T) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			t.Fatal("expected panic")
		}
		inv, ok := recovered.(*InvariantError)
		if !ok {
			t.Fatalf("expected *InvariantError, got %T", recovered)
		}
		if inv.Error() != "invariant violated: id collision on 42" {
			t.Fatalf("unexpected message: %q", inv.Error())
		}
	}()
	Guarantee(false, "id collision on %d", 42)
}

func TestGuaranteeNoopWhenHeld(t *testing.T) {
	Guarantee(true, "never evaluated")
}
