// Package kerrors defines the kernel's typed error taxonomy (see spec §7).
package kerrors

import (
	"errors"
	"fmt"
)

// Kind tags an error with its taxonomy bucket so callers can branch on it
// without string matching.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindAccessDenied Kind = "access_denied"
	KindIntegrity   Kind = "integrity_error"
	KindConflict    Kind = "conflict"
	KindTransient   Kind = "transient"
	KindPlanFailure Kind = "plan_failure"
	KindRateLimited Kind = "rate_limited"
	KindCircuitOpen Kind = "circuit_open"
)

// Sentinel errors for errors.Is() comparisons across package boundaries.
var (
	ErrNotFound      = errors.New("not found")
	ErrAccessDenied  = errors.New("access denied")
	ErrIntegrity     = errors.New("integrity error")
	ErrConflict      = errors.New("conflict")
	ErrTransient     = errors.New("transient error")
	ErrPlanFailure   = errors.New("plan failure")
	ErrRateLimited   = errors.New("rate limited")
	ErrCircuitOpen   = errors.New("circuit open")
	ErrAlreadyResolved = errors.New("proposal already resolved")
	ErrUnknownAction = errors.New("unknown action")
)

// KernelError carries a taxonomy Kind plus operation context, matching the
// structured-result contract of spec §7 (success=false, error=message, kind=tag).
type KernelError struct {
	Op      string
	Kind    Kind
	Message string
	Err     error
}

func (e *KernelError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *KernelError) Unwrap() error {
	return e.Err
}

func newErr(op string, kind Kind, sentinel error, format string, args ...interface{}) *KernelError {
	return &KernelError{
		Op:      op,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     sentinel,
	}
}

func NotFound(op, format string, args ...interface{}) error {
	return newErr(op, KindNotFound, ErrNotFound, format, args...)
}

func AccessDenied(op, format string, args ...interface{}) error {
	return newErr(op, KindAccessDenied, ErrAccessDenied, format, args...)
}

func Integrity(op, format string, args ...interface{}) error {
	return newErr(op, KindIntegrity, ErrIntegrity, format, args...)
}

func Conflict(op, format string, args ...interface{}) error {
	return newErr(op, KindConflict, ErrConflict, format, args...)
}

func Transient(op string, cause error, format string, args ...interface{}) error {
	e := newErr(op, KindTransient, ErrTransient, format, args...)
	if cause != nil {
		e.Err = cause
	}
	return e
}

func PlanFailure(op, format string, args ...interface{}) error {
	return newErr(op, KindPlanFailure, ErrPlanFailure, format, args...)
}

func RateLimited(op, format string, args ...interface{}) error {
	return newErr(op, KindRateLimited, ErrRateLimited, format, args...)
}

func CircuitOpen(op, format string, args ...interface{}) error {
	return newErr(op, KindCircuitOpen, ErrCircuitOpen, format, args...)
}

// KindOf extracts the taxonomy Kind from err, if it is (or wraps) a KernelError.
func KindOf(err error) (Kind, bool) {
	var ke *KernelError
	if errors.As(err, &ke) {
		return ke.Kind, true
	}
	return "", false
}

// IsRetryable reports whether err's kind is one the orchestrator's retry
// strategies should act on.
func IsRetryable(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindTransient
}
