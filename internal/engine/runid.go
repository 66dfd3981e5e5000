package engine

import "github.com/google/uuid"

// RunIDGenerator generates run identifiers.
// Implemented by UUIDv7Generator (production) and
// testutil.FixedRunIDGenerator (tests).
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits, so run logs of
// several runs in one database sort by start time.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
