package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(RunSummary{RunID: "run-1", Events: 12}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "run-1", data["run_id"])
	assert.Equal(t, float64(12), data["events"])
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error(ErrCodeConfig, "invalid configuration", []string{"end_time: invalid value"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
	assert.Equal(t, "invalid configuration", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_Text(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success("configuration valid"))
	assert.Contains(t, buf.String(), "configuration valid")

	buf.Reset()
	require.NoError(t, formatter.Error(ErrCodeStore, "database locked", map[string]string{"path": "runs.db"}))
	assert.Contains(t, buf.String(), "Error [E_STORE]: database locked")
	assert.NotContains(t, buf.String(), "Details:", "details only in verbose mode")

	buf.Reset()
	formatter.Verbose = true
	require.NoError(t, formatter.Error(ErrCodeStore, "database locked", map[string]string{"path": "runs.db"}))
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			diag := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: tt.verbose}

			formatter.VerboseLog("loaded %s", "run.yaml")

			assert.Empty(t, out.String(), "diagnostics never go to the JSON stream")
			if tt.wantLog {
				assert.Contains(t, diag.String(), "loaded run.yaml")
			} else {
				assert.Empty(t, diag.String())
			}
		})
	}
}

func TestOutputFormatter_PrintfGroupsDigits(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	formatter.Printf("events: %d", 1234567)
	assert.Equal(t, "events: 1,234,567", buf.String())
}

func TestExitError(t *testing.T) {
	cause := errors.New("no such file")
	err := WrapExitError(ExitCommandError, "failed to load config", cause)

	assert.Equal(t, "failed to load config: no such file", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ExitFailure, GetExitCode(NewExitError(ExitFailure, "run failed")))
	assert.Equal(t, ExitFailure, GetExitCode(cause), "plain errors map to failure")
	assert.Equal(t, "run failed", NewExitError(ExitFailure, "run failed").Error())
}
