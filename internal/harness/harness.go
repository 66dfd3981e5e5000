package harness

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/ecmc/internal/sim"
	"github.com/roach88/ecmc/internal/store"
	"github.com/roach88/ecmc/internal/testutil"
)

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory run log with a fixed run id, so
// the same scenario always yields the same trace.
//
// An error is returned when the scenario cannot be executed at all: an
// invalid configuration, a broken run log. A run that stops with an
// unexpected error, or finishes although ExpectError was set, is a failed
// result instead.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario, zap.NewNop())
}

// RunContext is Run with a context and a logger for the simulation.
func RunContext(ctx context.Context, scenario *Scenario, logger *zap.Logger) (*Result, error) {
	cfg := scenario.Config
	if cfg == nil {
		return nil, fmt.Errorf("scenario %s has no configuration", scenario.Name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	configJSON, err := cfg.JSON()
	if err != nil {
		return nil, err
	}

	simulation, err := sim.Build(cfg,
		sim.WithLogger(logger),
		sim.WithRecorder(st),
		sim.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(scenario.RunID)))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	eng := simulation.Engine
	runID := eng.RunID()

	if err := st.BeginRun(ctx, store.Run{ID: runID, Seed: cfg.Seed, ConfigJSON: configJSON}); err != nil {
		return nil, err
	}

	result := NewResult()
	result.RunID = runID

	runErr := eng.Run(ctx)
	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
		return nil, runErr
	}
	summary := eng.Summary()
	if err := st.FinishRun(ctx, summary); err != nil {
		return nil, err
	}

	switch {
	case runErr != nil && scenario.ExpectError == "":
		result.AddError(fmt.Sprintf("run failed: %v", runErr))
	case runErr != nil && !strings.Contains(runErr.Error(), scenario.ExpectError):
		result.AddError(fmt.Sprintf("run failed with %q, expected an error containing %q", runErr, scenario.ExpectError))
	case runErr == nil && scenario.ExpectError != "":
		result.AddError(fmt.Sprintf("run finished, expected an error containing %q", scenario.ExpectError))
	}

	events, err := st.ReadEvents(ctx, runID)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		result.Trace = append(result.Trace, TraceEvent{
			Seq:     ev.Seq,
			Time:    ev.Time.Float64(),
			Handler: ev.Handler,
			Kind:    ev.Kind.String(),
		})
	}
	result.Samples = summary.Samples
	result.Unconfirmed = summary.Unconfirmed
	result.FinalTime = summary.FinalTime.Float64()
	for _, root := range simulation.State.ExtractGlobalState() {
		result.Positions = append(result.Positions, slices.Clone(root.Value.Position))
	}

	actx := &AssertionContext{Store: st, RunID: runID, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}
