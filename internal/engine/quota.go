package engine

import (
	"errors"
	"fmt"
)

// QuotaEnforcer counts committed events and enforces a maximum.
//
// A zero limit disables the quota. The end-of-run handler is the regular
// way to stop a run; the quota guards against configurations whose end
// time is never reached, such as a chain that stalls at an infinite event
// time.
type QuotaEnforcer struct {
	maxEvents int64
	current   int64
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
func NewQuotaEnforcer(maxEvents int64) *QuotaEnforcer {
	return &QuotaEnforcer{maxEvents: maxEvents}
}

// Check increments the event counter and validates against the limit.
func (q *QuotaEnforcer) Check() error {
	q.current++
	if q.maxEvents > 0 && q.current > q.maxEvents {
		return &EventsExceededError{Events: q.current, Limit: q.maxEvents}
	}
	return nil
}

// Reset resets the event counter to 0.
func (q *QuotaEnforcer) Reset() {
	q.current = 0
}

// Current returns the current event count.
func (q *QuotaEnforcer) Current() int64 {
	return q.current
}

// MaxEvents returns the limit, 0 when disabled.
func (q *QuotaEnforcer) MaxEvents() int64 {
	return q.maxEvents
}

// EventsExceededError is returned when a run exceeds its event quota.
type EventsExceededError struct {
	Events int64
	Limit  int64
}

// Error implements the error interface.
func (e *EventsExceededError) Error() string {
	return fmt.Sprintf("run exceeded max events quota: %d events > %d limit", e.Events, e.Limit)
}

// IsEventsExceededError returns true if the error is an EventsExceededError.
func IsEventsExceededError(err error) bool {
	var ee *EventsExceededError
	return errors.As(err, &ee)
}
