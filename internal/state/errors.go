package state

import "errors"

var (
	// ErrUnknownIdentifier is returned when an identifier does not address a
	// node of the forest.
	ErrUnknownIdentifier = errors.New("unknown state identifier")

	// ErrInconsistentLifting is returned when a unit carries a velocity
	// without a time-stamp or the other way round.
	ErrInconsistentLifting = errors.New("velocity and time-stamp must be set or cleared together")

	// ErrNotInitialized is returned by every accessor before Initialize.
	ErrNotInitialized = errors.New("state handler is not initialized")
)
