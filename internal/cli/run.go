package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/ecmc/internal/config"
	"github.com/roach88/ecmc/internal/engine"
	"github.com/roach88/ecmc/internal/sim"
	"github.com/roach88/ecmc/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	Seed        uint64
	Events      int64
	MetricsFile string

	// RunIDGenerator allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDGenerator engine.RunIDGenerator
}

// RunSummary is the outcome of a run as printed by the run command.
type RunSummary struct {
	RunID       string  `json:"run_id"`
	Status      string  `json:"status"` // "finished", "interrupted" or "failed"
	Events      int64   `json:"events"`
	Unconfirmed int64   `json:"unconfirmed"`
	Samples     int64   `json:"samples"`
	FinalTime   float64 `json:"final_time"`
	Database    string  `json:"database,omitempty"`
	MetricsFile string  `json:"metrics_file,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommandWith(&RunOptions{RootOptions: rootOpts})
}

func newRunCommandWith(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Run a simulation",
		Long: `Run an event-chain Monte Carlo simulation described by a YAML or TOML
configuration file.

The run stops at the configured end time, at the event limit, or on
Ctrl-C. When a database is configured (store.path or --db), every
committed event and every sample is written to it.

Example:
  ecmc run ./run.yaml
  ecmc run ./run.toml --db ./runs.db --seed 7
  ecmc run ./run.yaml --events 100000 --format json
  ecmc run ./run.yaml --metrics-file ./run.prom`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run log (overrides store.path)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "random seed (overrides seed)")
	cmd.Flags().Int64Var(&opts.Events, "events", 0, "maximum number of events (overrides max_events)")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "",
		"write engine metrics in Prometheus text format when the run stops")

	return cmd
}

func runSimulation(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := config.Load(path)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if cmd.Flags().Changed("db") {
		cfg.Store.Path = opts.Database
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = opts.Seed
	}
	if cmd.Flags().Changed("events") {
		cfg.MaxEvents = opts.Events
	}
	if err := cfg.Validate(); err != nil {
		_ = formatter.Error(ErrCodeConfig, "invalid configuration", violations(err))
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger, err := newLogger(cfg.Logging, opts.Verbose)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create logger", err)
	}
	defer func() { _ = logger.Sync() }()

	simOpts := []sim.Option{sim.WithLogger(logger)}
	if opts.RunIDGenerator != nil {
		simOpts = append(simOpts, sim.WithRunIDGenerator(opts.RunIDGenerator))
	}

	var st *store.Store
	if cfg.Store.Path != "" {
		logger.Info("opening run log", zap.String("path", cfg.Store.Path))
		st, err = store.Open(cfg.Store.Path)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", zap.Error(closeErr))
			}
		}()
		simOpts = append(simOpts, sim.WithRecorder(st))
	}

	simulation, err := sim.Build(cfg, simOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to build simulation", err)
	}
	eng := simulation.Engine
	logger.Info("simulation ready",
		zap.String("run_id", eng.RunID()),
		zap.Int("particles", cfg.ParticleCount()),
		zap.Int("factors", simulation.Pairs))

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	if st != nil {
		configJSON, err := cfg.JSON()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to encode config", err)
		}
		run := store.Run{ID: eng.RunID(), Seed: cfg.Seed, ConfigJSON: configJSON}
		if err := st.BeginRun(parentCtx, run); err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to begin run", err)
		}
	}

	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping run", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	runErr := eng.Run(ctx)
	summary := eng.Summary()

	if st != nil {
		// The parent context may be cancelled already; the header must
		// still be finished.
		if err := st.FinishRun(context.WithoutCancel(parentCtx), summary); err != nil {
			logger.Error("failed to finish run", zap.Error(err))
		}
	}

	if opts.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.MetricsFile, prometheus.DefaultGatherer); err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
		logger.Info("metrics written", zap.String("path", opts.MetricsFile))
	}

	result := RunSummary{
		RunID:       summary.RunID,
		Status:      "finished",
		Events:      summary.Events,
		Unconfirmed: summary.Unconfirmed,
		Samples:     summary.Samples,
		FinalTime:   summary.FinalTime.Float64(),
		Database:    cfg.Store.Path,
		MetricsFile: opts.MetricsFile,
	}
	interrupted := errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)
	switch {
	case interrupted:
		result.Status = "interrupted"
	case runErr != nil:
		result.Status = "failed"
		result.Error = runErr.Error()
	}

	if err := outputRunSummary(formatter, result); err != nil {
		return err
	}

	if runErr != nil && !interrupted {
		return WrapExitError(ExitFailure, "run failed", runErr)
	}
	logger.Info("run stopped", zap.String("status", result.Status))
	return nil
}

func outputRunSummary(f *OutputFormatter, s RunSummary) error {
	if f.isJSON() {
		if s.Status == "failed" {
			return f.Error(ErrCodeRun, s.Error, s)
		}
		return f.Success(s)
	}

	f.Printf("Run %s %s\n", s.RunID, s.Status)
	f.Printf("  events:      %d\n", s.Events)
	f.Printf("  unconfirmed: %d\n", s.Unconfirmed)
	f.Printf("  samples:     %d\n", s.Samples)
	f.Printf("  final time:  %.6g\n", s.FinalTime)
	if s.Database != "" {
		f.Printf("  run log:     %s\n", s.Database)
	}
	if s.MetricsFile != "" {
		f.Printf("  metrics:     %s\n", s.MetricsFile)
	}
	if s.Error != "" {
		f.Printf("  error:       %s\n", s.Error)
	}
	return nil
}
