package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuns_ListsRecordedRuns(t *testing.T) {
	dbPath := recordRun(t, "run-1")

	out, err := execute(t, NewRunsCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "run-1  seed=1  events=4  samples=1  final_time=0.875")
}

func TestRuns_Empty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")

	out, err := execute(t, NewRunsCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")
}

func TestRuns_MissingDatabaseFlag(t *testing.T) {
	_, err := execute(t, NewRunsCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestTrace_Events(t *testing.T) {
	dbPath := recordRun(t, "run-1")

	out, err := execute(t, NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--run", "run-1")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Events, 4)
	assert.Equal(t, TraceEvent{Seq: 2, Time: 0.25, Handler: "pair(0,1)", Kind: "factor"}, resp.Data.Events[1])
	assert.Equal(t, "end_of_run", resp.Data.Events[3].Kind)
	assert.Nil(t, resp.Data.Particle)
}

func TestTrace_Trajectory(t *testing.T) {
	dbPath := recordRun(t, "run-1")

	out, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}),
		"--db", dbPath, "--run", "run-1", "--particle", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Trajectory of particle 1 in run run-1 (1 samples)")
	assert.Contains(t, out, "[3] t=0.5")
}

func TestTrace_UnknownRun(t *testing.T) {
	dbPath := recordRun(t, "run-1")

	_, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--run", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "run not found: nope")
}
