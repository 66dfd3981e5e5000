package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ecmc/internal/store"
	"github.com/roach88/ecmc/internal/testutil"
)

func TestRun_MissingArgument(t *testing.T) {
	_, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestRun_MissingConfig(t *testing.T) {
	_, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestRun_InvalidConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "run.yaml", "end_time: -1\nsampling_interval: 0\n")

	out, err := execute(t, NewRunCommand(&RootOptions{Format: "json"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
}

func TestRun_TextSummary(t *testing.T) {
	path := writeFile(t, t.TempDir(), "run.yaml", twoSpheresConfig)
	opts := &RunOptions{
		RootOptions:    &RootOptions{Format: "text"},
		RunIDGenerator: testutil.NewFixedRunIDGenerator("run-1"),
	}

	out, err := execute(t, newRunCommandWith(opts), path)
	require.NoError(t, err)
	assert.Contains(t, out, "Run run-1 finished")
	assert.Contains(t, out, "events:      4")
	assert.Contains(t, out, "samples:     1")
	assert.Contains(t, out, "final time:  0.875")
	assert.NotContains(t, out, "run log:", "no database configured")
}

func TestRun_RecordsRunLog(t *testing.T) {
	dbPath := recordRun(t, "run-1")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	run, err := st.ReadRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.True(t, run.Finished)
	assert.Equal(t, uint64(1), run.Seed)
	assert.Equal(t, int64(4), run.Events)
	assert.Equal(t, int64(1), run.Samples)
	assert.InDelta(t, 0.875, run.FinalTime, 1e-12)
	assert.Contains(t, run.ConfigJSON, `"radius":0.0625`)

	events, err := st.ReadEvents(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "pair(0,1)", events[1].Handler)
}

func TestRun_FlagOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "run.yaml", twoSpheresConfig)
	dbPath := filepath.Join(dir, "runs.db")
	opts := &RunOptions{
		RootOptions:    &RootOptions{Format: "json"},
		RunIDGenerator: testutil.NewFixedRunIDGenerator("run-9"),
	}

	out, err := execute(t, newRunCommandWith(opts), "--db", dbPath, "--seed", "9", path)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-9", resp.Data.RunID)
	assert.Equal(t, "finished", resp.Data.Status)
	assert.Equal(t, dbPath, resp.Data.Database)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	run, err := st.ReadRun(context.Background(), "run-9")
	require.NoError(t, err)
	assert.Equal(t, uint64(9), run.Seed)
}

func TestRun_EventLimit(t *testing.T) {
	path := writeFile(t, t.TempDir(), "run.yaml", twoSpheresConfig)
	opts := &RunOptions{
		RootOptions:    &RootOptions{Format: "json"},
		RunIDGenerator: testutil.NewFixedRunIDGenerator("run-1"),
	}

	out, err := execute(t, newRunCommandWith(opts), "--events", "2", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "run failed")

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeRun, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "exceeded max events")
}

func TestRun_Interrupted(t *testing.T) {
	path := writeFile(t, t.TempDir(), "run.yaml", twoSpheresConfig)
	opts := &RunOptions{
		RootOptions:    &RootOptions{Format: "text"},
		RunIDGenerator: testutil.NewFixedRunIDGenerator("run-1"),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := newRunCommandWith(opts)
	cmd.SetContext(ctx)
	out, err := execute(t, cmd, path)
	require.NoError(t, err, "an interrupted run is not a failure")
	assert.Contains(t, out, "Run run-1 interrupted")
}

func TestRun_WritesMetricsFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "run.yaml", twoSpheresConfig)
	metricsPath := filepath.Join(dir, "run.prom")

	out, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}), "--metrics-file", metricsPath, path)
	require.NoError(t, err)
	assert.Contains(t, out, "metrics:     "+metricsPath)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `ecmc_engine_events_total{kind="factor"}`)
	assert.Contains(t, text, `ecmc_engine_events_total{kind="end_of_run"}`)
	assert.Contains(t, text, "ecmc_engine_samples_total")
	assert.Contains(t, text, "ecmc_engine_dispatch_duration_seconds_bucket")
}

func TestRun_MetricsFileUnwritable(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "run.yaml", twoSpheresConfig)

	_, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}),
		"--metrics-file", filepath.Join(dir, "missing", "run.prom"), path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to write metrics")
}
