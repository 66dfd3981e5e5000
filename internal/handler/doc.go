// Package handler implements the event handlers of the kernel.
//
// ARCHITECTURE:
//
// Every handler models one factor (an interaction between a fixed group of
// units) or one pseudo-event (sampling, end of chain, end of run, start of
// run). The engine drives all of them through the same two-step protocol:
//
//  1. SendEventTime receives the in-state declared by Arguments().EventTime
//     and returns a candidate time. Pseudo-events may also return Pending
//     identifiers, which the engine extracts and hands to SendOutState.
//  2. When the candidate is the globally next event, SendOutState returns the
//     branches to commit. A nil result without error means the event was not
//     confirmed; the engine then calls ResendEventTime, which reuses the
//     cached in-state.
//
// Phases:
//
//	IDLE -> TIME_REQUESTED -> OUT_STATE_DELIVERED
//	                       -> UNCONFIRMED -> (ResendEventTime) -> TIME_REQUESTED
//
// CRITICAL PATTERNS:
//
// Handlers only modify the branches handed to them. The in-state of a factor
// is time-sliced to the candidate time inside SendEventTime, so a confirmed
// out-state is already consistent at the event time.
//
// Velocity changes of leaves are registered into their ancestors weighted by
// the leaf weight and committed once per event. A composite whose velocity
// drops below 1e-13 in every component becomes inactive.
//
// All randomness comes from an explicit Random; there is no global source.
package handler
