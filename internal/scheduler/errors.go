package scheduler

import (
	"errors"
	"fmt"

	"github.com/roach88/ecmc/internal/simtime"
)

// SchedulerError is a fatal scheduling condition. It signals a bug in a
// handler's arithmetic or in the driver glue, never a transient state.
type SchedulerError struct {
	// Code identifies the error category.
	Code SchedulerErrorCode

	// Message is a human-readable description.
	Message string

	// Handler names the handler whose event triggered the error, if any.
	Handler string
}

// SchedulerErrorCode categorizes scheduler errors.
type SchedulerErrorCode string

const (
	// ErrCodeNoEvents indicates the succeeding event was requested from an
	// empty scheduler.
	ErrCodeNoEvents SchedulerErrorCode = "NO_EVENTS"

	// ErrCodeTimeDecreased indicates the smallest pending time is earlier
	// than the last returned one.
	ErrCodeTimeDecreased SchedulerErrorCode = "TIME_DECREASED"
)

// Error implements the error interface.
func (e *SchedulerError) Error() string {
	if e.Handler != "" {
		return fmt.Sprintf("%s: %s (handler=%s)", e.Code, e.Message, e.Handler)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNoEventsError returns true if err reports an empty scheduler.
func IsNoEventsError(err error) bool {
	var se *SchedulerError
	if errors.As(err, &se) {
		return se.Code == ErrCodeNoEvents
	}
	return false
}

// IsOrderingError returns true if err reports an event time that went
// backwards.
func IsOrderingError(err error) bool {
	var se *SchedulerError
	if errors.As(err, &se) {
		return se.Code == ErrCodeTimeDecreased
	}
	return false
}

func newNoEventsError(scheduler string) *SchedulerError {
	return &SchedulerError{
		Code:    ErrCodeNoEvents,
		Message: fmt.Sprintf("succeeding event requested from %s without pending events", scheduler),
	}
}

func newTimeDecreasedError(last simtime.Time, lastHandler string, next simtime.Time, handler string) *SchedulerError {
	return &SchedulerError{
		Code: ErrCodeTimeDecreased,
		Message: fmt.Sprintf("last returned event time %s (from %s) is greater than the new smallest event time %s",
			last, lastHandler, next),
		Handler: handler,
	}
}
