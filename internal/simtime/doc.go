// Package simtime implements the split time representation used for event
// times and time-stamps.
//
// A Time stores an integral quotient and a remainder confined to [0, 1).
// Handlers repeatedly add small displacements to time-stamps that grow
// without bound over a run; keeping the remainder bounded means the
// precision of those additions never degrades as the quotient grows.
//
// Times are values. Add returns a new Time and never mutates its receiver.
// Sub returns a plain float64 and is used for reporting and time-slicing
// only, never for further accumulation.
package simtime
