package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// beginTestRun inserts a run header with minimal fields.
func beginTestRun(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, s.BeginRun(context.Background(), Run{ID: id, Seed: 42, ConfigJSON: `{"seed":42}`}))
}
