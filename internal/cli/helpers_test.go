package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ecmc/internal/testutil"
)

// twoSpheresConfig collides two disks once at t=0.25 and samples once.
const twoSpheresConfig = `
seed: 1
setting:
  dimension: 2
  system_lengths: [1, 1]
particles:
  positions:
    - [0.125, 0.5]
    - [0.5, 0.5]
interaction:
  type: hard_sphere
  radius: 0.0625
sampling_interval: 0.5
end_time: 0.875
logging:
  level: error
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs cmd with args and returns stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// recordRun runs the two-sphere configuration into a fresh run log and
// returns the database path.
func recordRun(t *testing.T, runID string) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "run.yaml", twoSpheresConfig)
	dbPath := filepath.Join(dir, "runs.db")

	opts := &RunOptions{
		RootOptions:    &RootOptions{Format: "text"},
		RunIDGenerator: testutil.NewFixedRunIDGenerator(runID),
	}
	cmd := newRunCommandWith(opts)
	_, err := execute(t, cmd, "--db", dbPath, cfgPath)
	require.NoError(t, err)
	return dbPath
}
