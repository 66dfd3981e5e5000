package testutil

// FixedRunIDGenerator returns the same run identifier every time.
//
// Runs recorded with a FixedRunIDGenerator produce byte-identical run logs,
// which keeps store assertions and golden output stable.
//
// Implements engine.RunIDGenerator.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator returning id. An empty id
// becomes "test-run-default".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run identifier.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
