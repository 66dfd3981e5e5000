package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while the engine mediates a
// run, as opposed to errors raised by the handlers or the scheduler, which
// are returned wrapped.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Handler names the handler involved, if any.
	Handler string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeQuotaExceeded indicates the run reached its event limit before
	// the end-of-run event.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeUnconfirmed indicates a handler returned no out-state but
	// cannot propose a new candidate.
	ErrCodeUnconfirmed RuntimeErrorCode = "UNCONFIRMED_NOT_SUPPORTED"

	// ErrCodeArguments indicates a handler declared an in-state layout the
	// engine cannot provide.
	ErrCodeArguments RuntimeErrorCode = "INVALID_ARGUMENTS"

	// ErrCodeNoActiveFactor indicates that no factor can be scheduled after
	// the start of the run.
	ErrCodeNoActiveFactor RuntimeErrorCode = "NO_ACTIVE_FACTOR"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Handler != "" {
		return fmt.Sprintf("%s: %s (handler=%s)", e.Code, e.Message, e.Handler)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsQuotaError returns true if the error is a quota exceeded error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and EventsExceededError.
func IsQuotaError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeQuotaExceeded
	}
	var ee *EventsExceededError
	return errors.As(err, &ee)
}

// IsRuntimeError returns true if err is or wraps a RuntimeError with the
// given code.
func IsRuntimeError(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == code
}

// NewQuotaError creates a RuntimeError for an exhausted event quota.
func NewQuotaError(events, maxEvents int64) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeQuotaExceeded,
		Message: fmt.Sprintf("run exceeded max events (%d > %d)", events, maxEvents),
		Details: map[string]string{
			"events":     fmt.Sprintf("%d", events),
			"max_events": fmt.Sprintf("%d", maxEvents),
		},
	}
}

func newRuntimeError(code RuntimeErrorCode, handler, format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: code, Handler: handler, Message: fmt.Sprintf(format, args...)}
}
