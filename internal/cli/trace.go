package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ecmc/internal/node"
	"github.com/roach88/ecmc/internal/store"
)

// TraceOptions holds flags for the runs and trace commands.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Particle int // -1 prints the event log instead of a trajectory
}

// RunInfo is one row of the runs command.
type RunInfo struct {
	ID        string  `json:"id"`
	Seed      uint64  `json:"seed"`
	Finished  bool    `json:"finished"`
	Events    int64   `json:"events"`
	Samples   int64   `json:"samples"`
	FinalTime float64 `json:"final_time"`
}

// TraceEvent is one committed event of the trace command.
type TraceEvent struct {
	Seq     int64   `json:"seq"`
	Time    float64 `json:"time"`
	Handler string  `json:"handler"`
	Kind    string  `json:"kind"`
}

// TrajectoryPoint is one sample of a particle.
type TrajectoryPoint struct {
	Seq      int64     `json:"seq"`
	Time     float64   `json:"time"`
	Position []float64 `json:"position"`
	Velocity []float64 `json:"velocity,omitempty"`
}

// TraceResult holds the trace command output.
type TraceResult struct {
	RunID      string            `json:"run_id"`
	Events     []TraceEvent      `json:"events,omitempty"`
	Particle   *int              `json:"particle,omitempty"`
	Trajectory []TrajectoryPoint `json:"trajectory,omitempty"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List the runs of a run log",
		Long: `List every run recorded in a run log, oldest first.

Examples:
  ecmc runs --db ./runs.db
  ecmc runs --db ./runs.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run log (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the event log or a trajectory of a run",
		Long: `Show the committed events of a run in sequence order, or with
--particle the sampled positions of one particle.

Examples:
  ecmc trace --db ./runs.db --run 0190...
  ecmc trace --db ./runs.db --run 0190... --particle 3
  ecmc trace --db ./runs.db --run 0190... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run log (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to trace (required)")
	_ = cmd.MarkFlagRequired("run")
	cmd.Flags().IntVar(&opts.Particle, "particle", -1, "print the trajectory of this particle")

	return cmd
}

func openRunLog(path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func runRuns(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openRunLog(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(context.Background())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	infos := make([]RunInfo, len(runs))
	for i, r := range runs {
		infos[i] = RunInfo{ID: r.ID, Seed: r.Seed, Finished: r.Finished, Events: r.Events, Samples: r.Samples, FinalTime: r.FinalTime}
	}

	if formatter.isJSON() {
		return formatter.Success(infos)
	}
	if len(infos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}
	for _, r := range infos {
		if !r.Finished {
			formatter.Printf("%s  seed=%d  unfinished\n", r.ID, r.Seed)
			continue
		}
		formatter.Printf("%s  seed=%d  events=%d  samples=%d  final_time=%.6g\n",
			r.ID, r.Seed, r.Events, r.Samples, r.FinalTime)
	}
	return nil
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openRunLog(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.ReadRun(ctx, opts.RunID); err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			_ = formatter.Error(ErrCodeStore, fmt.Sprintf("run not found: %s", opts.RunID), nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
		}
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	result := TraceResult{RunID: opts.RunID}
	if opts.Particle >= 0 {
		samples, err := st.ReadTrajectory(ctx, opts.RunID, node.StateID{opts.Particle})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read trajectory", err)
		}
		result.Particle = &opts.Particle
		for _, s := range samples {
			result.Trajectory = append(result.Trajectory, TrajectoryPoint{
				Seq: s.Seq, Time: s.Time, Position: s.Position, Velocity: s.Velocity,
			})
		}
	} else {
		events, err := st.ReadEvents(ctx, opts.RunID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read events", err)
		}
		for _, ev := range events {
			result.Events = append(result.Events, TraceEvent{
				Seq: ev.Seq, Time: ev.Time.Float64(), Handler: ev.Handler, Kind: ev.Kind.String(),
			})
		}
	}

	if formatter.isJSON() {
		return formatter.Success(result)
	}

	if result.Particle != nil {
		formatter.Printf("Trajectory of particle %d in run %s (%d samples)\n", opts.Particle, opts.RunID, len(result.Trajectory))
		for _, p := range result.Trajectory {
			formatter.Printf("  [%d] t=%.12g %v\n", p.Seq, p.Time, p.Position)
		}
		return nil
	}
	formatter.Printf("Run %s (%d events)\n", opts.RunID, len(result.Events))
	for _, ev := range result.Events {
		formatter.Printf("  [%d] t=%.12g %-12s %s\n", ev.Seq, ev.Time, ev.Kind, ev.Handler)
	}
	return nil
}
