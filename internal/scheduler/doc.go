// Package scheduler orders pending events by candidate time.
//
// A Scheduler maps each event handler to its most recently pushed
// candidate time and hands back, on demand, the handler owning the globally
// smallest valid time. Two implementations share the Scheduler interface:
//
//   - ListScheduler: linear scan over a slice. Simple enough to serve as the
//     correctness oracle in tests.
//   - HeapScheduler: binary min-heap with lazy deletion. TrashEvent bumps a
//     per-handler generation counter; heap entries carrying an older
//     generation are stale and are discarded when they surface at the root.
//
// CRITICAL PATTERNS:
//
// Monotonic Event Times:
// GetSucceedingEvent never returns a time smaller than the last one it
// returned. A violation means a handler computed a time in the past; it is
// reported as a fatal SchedulerError and never retried.
//
// Peek, Don't Consume:
// GetSucceedingEvent leaves the returned entry in place. The mediator trashes
// the handler's event after it has been handled (or before re-requesting a
// new candidate).
//
// Both implementations treat the same edge cases identically:
//   - pushing an infinite time is a no-op;
//   - pushing for a handler that already has a pending event replaces it;
//   - trashing a handler without a pending event is a no-op;
//   - an empty scheduler returns ErrCodeNoEvents.
package scheduler
