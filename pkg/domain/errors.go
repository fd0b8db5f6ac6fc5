package domain

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failed table operation for the request router.
type Kind string

// Error classifications surfaced alongside messages.
const (
	// KindValidation marks malformed row input; recoverable.
	KindValidation Kind = "validation"
	// KindConflict marks a name collision or reserved-name use; recoverable.
	KindConflict Kind = "conflict"
	// KindPolicy marks an operation forbidden by write policy; recoverable.
	KindPolicy Kind = "policy"
	// KindCascade marks a downstream failure during a cascading drop; retryable.
	KindCascade Kind = "cascade"
	// KindInterrupted marks cooperative cancellation observed mid-operation; retryable.
	KindInterrupted Kind = "interrupted"
	// KindInternal marks everything else, including violated invariants.
	KindInternal Kind = "internal"
)

// ValidationError reports malformed row input. Field, when set, qualifies
// the message ("In `name`: ...").
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("In `%s`: %s", e.Field, e.Msg)
}

// ConflictError reports a name collision or reserved-name use. The backend
// tailors the message to create-versus-rename context.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

// PolicyError reports an operation the write policy forbids, such as
// creating a record under a caller-chosen primary key.
type PolicyError struct {
	Msg string
}

func (e *PolicyError) Error() string { return e.Msg }

// CascadeError wraps a coordinator failure during a cascading drop. When it
// is returned the store was left unmodified.
type CascadeError struct {
	Name Name
	Err  error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("dropping the tables of database `%s`: %v", e.Name, e.Err)
}

func (e *CascadeError) Unwrap() error { return e.Err }

// InterruptedError reports that the caller's cancellation was observed. The
// operation unwound without mutating the store and may be retried.
type InterruptedError struct {
	Err error
}

func (e *InterruptedError) Error() string { return fmt.Sprintf("operation interrupted: %v", e.Err) }

func (e *InterruptedError) Unwrap() error { return e.Err }

// InvariantError is the payload of the panic raised by Guarantee. It marks a
// state the preceding checks prove impossible; reaching one is a bug in the
// system, never bad input, so it must fail loudly instead of surfacing as a
// recoverable result.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return "invariant violated: " + e.Msg }

// Guarantee panics with an InvariantError when cond is false. It is the
// single assertion path for conditions only a programming error can violate.
func Guarantee(cond bool, format string, args ...any) {
	if !cond {
		panic(&InvariantError{Msg: fmt.Sprintf(format, args...)})
	}
}

// KindOf classifies err for the request router. Unrecognized errors fall
// through to KindInternal.
func KindOf(err error) Kind {
	var (
		validation  *ValidationError
		conflict    *ConflictError
		policy      *PolicyError
		cascade     *CascadeError
		interrupted *InterruptedError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &conflict):
		return KindConflict
	case errors.As(err, &policy):
		return KindPolicy
	case errors.As(err, &interrupted):
		return KindInterrupted
	case errors.As(err, &cascade):
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return KindInterrupted
		}
		return KindCascade
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindInterrupted
	default:
		return KindInternal
	}
}
