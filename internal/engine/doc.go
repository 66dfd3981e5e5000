// Package engine drives an event-chain Monte Carlo run.
//
// The engine is the mediator between the tree state, the scheduler and the
// event handlers. It never computes physics itself: it extracts in-states,
// asks handlers for candidate event times, commits confirmed out-states and
// reschedules the handlers the commit affects.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// A run is strictly sequential. Run() owns the tree state and the scheduler
// for its whole duration, and the only pseudo-random source is consumed in
// handler call order. Two runs with the same seed produce the same event
// sequence.
//
// Event Processing Order:
//  1. The start-of-run handler activates the initial chain.
//  2. Every factor with exactly one active leaf is asked for its event time.
//  3. GetSucceedingEvent() returns the handler with the earliest time.
//  4. The handler's out-state is committed to the tree state, or, for an
//     unconfirmed candidate, the handler is asked again.
//  5. Factors sharing a root with the committed branches are rescheduled.
//
// The loop ends at the end-of-run event, when the event quota is exhausted,
// or when the context is cancelled. Cancellation is checked between events,
// never inside a handler call.
//
// Logical Clock:
// Every committed event is stamped with a sequence number by Clock.Stamp,
// starting at 1. Recorders persist it together with the simulation time.
package engine
