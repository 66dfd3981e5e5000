package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot captures the deterministic part of a scenario result.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	RunID        string       `json:"run_id"`
	Trace        []TraceEvent `json:"trace"`
	Samples      int64        `json:"samples"`
	FinalTime    float64      `json:"final_time"`
	Positions    [][]float64  `json:"positions"`
}

// Marshal encodes the snapshot as indented JSON with a trailing newline.
// Floats use the shortest representation that round-trips.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Snapshot builds the golden snapshot of a result.
func Snapshot(name string, result *Result) *TraceSnapshot {
	return &TraceSnapshot{
		ScenarioName: name,
		RunID:        result.RunID,
		Trace:        result.Trace,
		Samples:      result.Samples,
		FinalTime:    result.FinalTime,
		Positions:    result.Positions,
	}
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}
	AssertGoldenBytes(t, scenarioName, data)
	return nil
}

// AssertGoldenBytes compares data against testdata/golden/{name}.golden.
func AssertGoldenBytes(t *testing.T, name string, data []byte) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
