// Package state owns the global state of a run.
//
// ARCHITECTURE:
//
// The global state is split in two:
//
//   - the physical state maps every identifier to a position and a charge
//     and is always fully populated;
//   - the lifting state maps an identifier to a velocity and the time-stamp
//     of its last time-slicing, and holds entries for active identifiers only.
//
// Identifiers are node.StateID paths. With one node level every root is a
// point mass; with two node levels roots are composite objects and their
// children are the point masses.
//
// CRITICAL PATTERNS:
//
// ExtractFromGlobalState and ExtractActiveGlobalState return deep copies, so
// event handlers may modify branches freely. Nothing changes in the global
// state until the branches come back through InsertIntoGlobalState.
//
// ExtractGlobalState aliases the stored position and velocity slices. Callers
// (samplers, output) must treat the result as read-only and must not retain it
// across a commit.
package state
