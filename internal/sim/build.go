package sim

import (
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/roach88/ecmc/internal/config"
	"github.com/roach88/ecmc/internal/engine"
	"github.com/roach88/ecmc/internal/errs"
	"github.com/roach88/ecmc/internal/handler"
	"github.com/roach88/ecmc/internal/node"
	"github.com/roach88/ecmc/internal/potential"
	"github.com/roach88/ecmc/internal/scheduler"
	"github.com/roach88/ecmc/internal/setting"
	"github.com/roach88/ecmc/internal/state"
)

// ChargeName is the charge key of every particle built from a
// configuration with charges.
const ChargeName = "charge"

const component = "sim"

// Simulation is an engine ready to run together with the state it mediates.
type Simulation struct {
	Setting *setting.Setting
	State   *state.TreeStateHandler
	Engine  *engine.Engine

	// Pairs is the number of pair factors.
	Pairs int
}

// Option configures Build.
type Option func(*options)

type options struct {
	logger   *zap.Logger
	recorder engine.Recorder
	sink     engine.SampleSink
	runIDGen engine.RunIDGenerator
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder persists the run log.
func WithRecorder(r engine.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithSampleSink receives the global state at every sampling event.
func WithSampleSink(sink engine.SampleSink) Option {
	return func(o *options) { o.sink = sink }
}

// WithRunIDGenerator replaces the UUIDv7 run identifiers.
func WithRunIDGenerator(g engine.RunIDGenerator) Option {
	return func(o *options) { o.runIDGen = g }
}

// Build assembles a simulation from cfg. cfg must have passed Validate.
func Build(cfg *config.Config, opts ...Option) (*Simulation, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	count := cfg.ParticleCount()
	s, err := setting.NewHypercuboid(setting.HypercuboidConfig{
		SystemLengths:            cfg.Setting.SystemLengths,
		Beta:                     cfg.Setting.Beta,
		Dimension:                cfg.Setting.Dimension,
		NumberOfRootNodes:        count,
		NumberOfNodesPerRootNode: 1,
		NumberOfNodeLevels:       1,
	})
	if err != nil {
		return nil, err
	}

	positions := cfg.Particles.Positions
	if positions == nil {
		positions = LatticePositions(count, cfg.Setting.SystemLengths)
	}
	if cfg.Interaction.Type == config.InteractionHardSphere {
		if err := checkOverlaps(s, positions, cfg.Interaction.Radius); err != nil {
			return nil, err
		}
	}

	st := state.NewTreeStateHandler(s, state.WithLogger(o.logger.Named("state")))
	if err := st.Initialize(particles(positions, cfg.Particles.Charges)); err != nil {
		return nil, fmt.Errorf("initialize state: %w", err)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))

	factors, err := pairFactors(cfg, s, rng, o.logger.Named("handler"))
	if err != nil {
		return nil, err
	}

	engineOpts := []engine.Option{
		engine.WithFactors(factors...),
		engine.WithMaxEvents(cfg.MaxEvents),
		engine.WithLogger(o.logger.Named("engine")),
	}
	if o.recorder != nil {
		engineOpts = append(engineOpts, engine.WithRecorder(o.recorder))
	}
	if o.runIDGen != nil {
		engineOpts = append(engineOpts, engine.WithRunIDGenerator(o.runIDGen))
	}

	pseudo, err := pseudoHandlers(cfg, s, rng, o)
	if err != nil {
		return nil, err
	}
	engineOpts = append(engineOpts, pseudo...)

	e, err := engine.New(st, newScheduler(cfg, o.logger.Named("scheduler")), engineOpts...)
	if err != nil {
		return nil, err
	}
	return &Simulation{Setting: s, State: st, Engine: e, Pairs: len(factors)}, nil
}

func newScheduler(cfg *config.Config, logger *zap.Logger) scheduler.Scheduler[*engine.Slot] {
	opts := []scheduler.Option{scheduler.WithLogger(logger)}
	if cfg.WarnOnEqualEventTimes {
		opts = append(opts, scheduler.WithWarnOnEqualEventTimes())
	}
	if cfg.Scheduler == config.SchedulerList {
		return scheduler.NewListScheduler[*engine.Slot](opts...)
	}
	return scheduler.NewHeapScheduler[*engine.Slot](opts...)
}

// particles builds one point-mass root per position.
func particles(positions [][]float64, charges []float64) []*node.Node {
	roots := make([]*node.Node, len(positions))
	for i, p := range positions {
		u := &node.Unit{Identifier: node.StateID{i}, Position: append([]float64(nil), p...)}
		if charges != nil {
			u.Charge = map[string]float64{ChargeName: charges[i]}
		}
		roots[i] = node.New(u, 1)
	}
	return roots
}

func checkOverlaps(s *setting.Setting, positions [][]float64, radius float64) error {
	for i := range positions {
		for j := i + 1; j < len(positions); j++ {
			sep := s.PeriodicBoundaries.SeparationVector(positions[i], positions[j])
			if distance := floats.Norm(sep, 2); distance < 2*radius {
				return errs.NewConfigurationError(component,
					"hard spheres %d and %d overlap at distance %.6g < %.6g", i, j, distance, 2*radius)
			}
		}
	}
	return nil
}

// pairPotential returns the potential shared by all pair factors.
func pairPotential(cfg *config.Config) (potential.Potential, error) {
	in := cfg.Interaction
	switch in.Type {
	case config.InteractionHardSphere:
		return potential.NewHardSphere(in.Radius)
	case config.InteractionInversePower:
		return potential.NewInversePower(in.Power, in.Prefactor)
	case config.InteractionDisplacedEvenPower:
		return potential.NewDisplacedEvenPower(in.Equilibrium, int(in.Power), in.Prefactor)
	case config.InteractionLennardJones:
		return potential.NewLennardJones(in.Prefactor, in.Length, in.Cutoff)
	default:
		return nil, errs.NewConfigurationError(component, "unknown interaction type %q", in.Type)
	}
}

// pairFactors creates one handler per unordered pair of particles, in
// lexicographic order of the pair.
func pairFactors(cfg *config.Config, s *setting.Setting, rng handler.Random, logger *zap.Logger) ([]engine.Factor, error) {
	p, err := pairPotential(cfg)
	if err != nil {
		return nil, err
	}
	in := cfg.Interaction

	handlerOpts := []handler.Option{handler.WithLogger(logger)}
	if cfg.Particles.Charges != nil {
		handlerOpts = append(handlerOpts, handler.WithCharge(ChargeName))
	}
	if in.ImageMode == config.ImageModeNextImage {
		handlerOpts = append(handlerOpts, handler.WithImageMode(handler.ImageModeNextImage))
	}
	if in.Estimator != nil {
		estimator, err := potential.NewInnerPointEstimator(p,
			potential.WithPointsPerSide(in.Estimator.PointsPerSide),
			potential.WithPrefactor(in.Estimator.Prefactor),
			potential.WithBoundaries(s.PeriodicBoundaries))
		if err != nil {
			return nil, err
		}
		handlerOpts = append(handlerOpts, handler.WithEstimator(estimator))
	}

	newHandler := func() (handler.EventHandler, error) {
		if in.Sampler == config.SamplerPiecewiseConstant {
			return handler.NewTwoLeafUnitPiecewiseConstantEventHandler(s, p, rng, in.Offset, in.MaxDisplacement,
				handlerOpts...)
		}
		invertible, ok := p.(potential.InvertiblePotential)
		if !ok {
			return nil, errs.NewConfigurationError(component, "%s cannot be sampled in closed form", in.Type)
		}
		return handler.NewTwoLeafUnitEventHandler(s, invertible, rng, handlerOpts...)
	}

	count := cfg.ParticleCount()
	factors := make([]engine.Factor, 0, count*(count-1)/2)
	for i := 0; i < count; i++ {
		for j := i + 1; j < count; j++ {
			h, err := newHandler()
			if err != nil {
				return nil, err
			}
			factors = append(factors, engine.Factor{
				Name:        fmt.Sprintf("pair(%d,%d)", i, j),
				Handler:     h,
				Identifiers: []node.StateID{{i}, {j}},
			})
		}
	}
	return factors, nil
}

func pseudoHandlers(cfg *config.Config, s *setting.Setting, rng handler.Random, o options) ([]engine.Option, error) {
	logger := handler.WithLogger(o.logger.Named("handler"))

	start, err := handler.NewInitialChainStartOfRunEventHandler(s, node.StateID(cfg.Start.Identifier), cfg.Start.Velocity)
	if err != nil {
		return nil, err
	}
	end, err := handler.NewFinalTimeEndOfRunEventHandler(s, cfg.EndTime, logger)
	if err != nil {
		return nil, err
	}
	out := []engine.Option{engine.WithStart(start), engine.WithEndOfRun(end)}

	if cfg.SamplingInterval > 0 {
		sampling, err := handler.NewFixedIntervalSamplingEventHandler(s, cfg.SamplingInterval, logger)
		if err != nil {
			return nil, err
		}
		out = append(out, engine.WithSampling(sampling, o.sink))
	}
	if cfg.ChainTime > 0 {
		chain, err := handler.NewPeriodicDirectionEndOfChainEventHandler(s, cfg.ChainTime, rng)
		if err != nil {
			return nil, err
		}
		out = append(out, engine.WithEndOfChain(chain))
	}
	return out, nil
}
