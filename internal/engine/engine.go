package engine

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/ecmc/internal/errs"
	"github.com/roach88/ecmc/internal/handler"
	"github.com/roach88/ecmc/internal/node"
	"github.com/roach88/ecmc/internal/scheduler"
	"github.com/roach88/ecmc/internal/simtime"
)

// State is the part of the tree state the engine mediates.
// Implemented by *state.TreeStateHandler.
type State interface {
	ExtractFromGlobalState(id node.StateID) (*node.Node, error)
	ExtractActiveGlobalState() ([]*node.Node, error)
	InsertIntoGlobalState(branches []*node.Node) error
	ExtractGlobalState() []*node.Node
}

// Factor is an interaction handler bound to fixed identifiers. The
// identifiers are extracted in order and passed as the handler's in-state.
type Factor struct {
	// Name labels the factor in logs and run logs. Empty names are derived
	// from the handler type and the identifiers.
	Name        string
	Handler     handler.EventHandler
	Identifiers []node.StateID
}

// Slot is one registered handler as seen by the scheduler.
type Slot struct {
	kind        Kind
	name        string
	handler     handler.EventHandler
	identifiers []node.StateID
	time        simtime.Time
	pending     [][]node.StateID
}

// String returns the handler name.
func (s *Slot) String() string { return s.name }

// Kind returns the handler kind.
func (s *Slot) Kind() Kind { return s.kind }

// Engine is the single-writer event loop of a run.
//
// INVARIANTS:
//   - factors order NEVER changes after construction; factors affected by a
//     commit are rescheduled in that order, which keeps the consumption of
//     the pseudo-random source reproducible
//   - every slot has at most one pending event in the scheduler
type Engine struct {
	state    State
	sched    scheduler.Scheduler[*Slot]
	clock    *Clock
	quota    *QuotaEnforcer
	runIDGen RunIDGenerator
	runID    string
	logger   *zap.Logger
	recorder Recorder

	factors    []*Slot
	byRoot     map[int][]*Slot
	start      *Slot
	sampling   *Slot
	sink       SampleSink
	endOfRun   *Slot
	endOfChain *Slot

	maxEvents int64
	summary   Summary
	err       error
}

// Option configures an Engine.
type Option func(*Engine)

// WithFactors registers interaction handlers.
func WithFactors(factors ...Factor) Option {
	return func(e *Engine) {
		for _, f := range factors {
			name := f.Name
			if name == "" {
				name = factorName(f)
			}
			e.factors = append(e.factors, &Slot{
				kind:        KindFactor,
				name:        name,
				handler:     f.Handler,
				identifiers: cloneIDs(f.Identifiers),
			})
		}
	}
}

// WithSampling registers the sampling handler. sink may be nil when only
// the recorder consumes samples.
func WithSampling(h handler.EventHandler, sink SampleSink) Option {
	return func(e *Engine) {
		e.sampling = &Slot{kind: KindSampling, name: typeName(h), handler: h}
		e.sink = sink
	}
}

// WithEndOfRun registers the handler that stops the run.
func WithEndOfRun(h handler.EventHandler) Option {
	return func(e *Engine) {
		e.endOfRun = &Slot{kind: KindEndOfRun, name: typeName(h), handler: h}
	}
}

// WithEndOfChain registers the handler that restarts the chain.
func WithEndOfChain(h handler.EventHandler) Option {
	return func(e *Engine) {
		e.endOfChain = &Slot{kind: KindEndOfChain, name: typeName(h), handler: h}
	}
}

// WithStart registers the start-of-run handler. It fires once before any
// other handler is asked for an event time.
func WithStart(h handler.EventHandler) Option {
	return func(e *Engine) {
		e.start = &Slot{kind: KindStartOfRun, name: typeName(h), handler: h}
	}
}

// WithMaxEvents limits the number of committed events. Zero disables the
// limit.
func WithMaxEvents(n int64) Option {
	return func(e *Engine) {
		e.maxEvents = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRecorder persists every committed event and sample.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithRunIDGenerator replaces the UUIDv7 run identifiers.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDGen = g
	}
}

// New creates an Engine mediating between st and sched.
//
// The handlers' declared arguments are validated here; a handler the engine
// cannot feed is a configuration error.
func New(st State, sched scheduler.Scheduler[*Slot], opts ...Option) (*Engine, error) {
	e := &Engine{
		state:    st,
		sched:    sched,
		clock:    NewClock(),
		runIDGen: UUIDv7Generator{},
		logger:   zap.NewNop(),
		byRoot:   make(map[int][]*Slot),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	for _, s := range e.factors {
		seen := make(map[int]bool)
		for _, id := range s.identifiers {
			if root := id[0]; !seen[root] {
				seen[root] = true
				e.byRoot[root] = append(e.byRoot[root], s)
			}
		}
	}
	e.quota = NewQuotaEnforcer(e.maxEvents)
	e.runID = e.runIDGen.Generate()
	e.summary.RunID = e.runID
	return e, nil
}

func (e *Engine) validate() error {
	const component = "Engine"
	if e.state == nil || e.sched == nil {
		return errs.NewConfigurationError(component, "state and scheduler are required")
	}
	if e.maxEvents < 0 {
		return errs.NewConfigurationError(component, "max events must be >= 0, got %d", e.maxEvents)
	}
	for _, s := range e.factors {
		if s.handler == nil {
			return errs.NewConfigurationError(component, "factor %s has no handler", s.name)
		}
		if len(s.identifiers) == 0 {
			return errs.NewConfigurationError(component, "factor %s has no identifiers", s.name)
		}
		for _, id := range s.identifiers {
			if len(id) == 0 {
				return errs.NewConfigurationError(component, "factor %s has an empty identifier", s.name)
			}
		}
		if args := s.handler.Arguments(); args.EventTime != 1 || args.OutState != 0 {
			return errs.NewConfigurationError(component, "factor %s declares arguments %+v, want {1 0}", s.name, args)
		}
	}
	for _, s := range []*Slot{e.start, e.sampling, e.endOfRun, e.endOfChain} {
		if s != nil && s.handler == nil {
			return errs.NewConfigurationError(component, "%s handler is nil", s.kind)
		}
	}
	for _, s := range []*Slot{e.start, e.sampling, e.endOfRun} {
		if s == nil {
			continue
		}
		if args := s.handler.Arguments(); args.EventTime != 0 || args.OutState != 1 {
			return errs.NewConfigurationError(component, "%s handler %s declares arguments %+v, want {0 1}",
				s.kind, s.name, args)
		}
	}
	if s := e.endOfChain; s != nil {
		if args := s.handler.Arguments(); args.EventTime != 1 || args.OutState != 2 {
			return errs.NewConfigurationError(component, "%s handler %s declares arguments %+v, want {1 2}",
				s.kind, s.name, args)
		}
	}
	return nil
}

// RunID returns the identifier of the run.
func (e *Engine) RunID() string {
	return e.runID
}

// Summary returns the counters of the run so far.
func (e *Engine) Summary() Summary {
	return e.summary
}

// Run executes the run until the end-of-run event.
//
// Returns nil after the end-of-run event, a RuntimeError with
// ErrCodeQuotaExceeded when the event limit is reached first, ctx.Err() on
// cancellation, or the wrapped error of a handler, the scheduler or the
// tree state. A run cannot be resumed after an error.
func (e *Engine) Run(ctx context.Context) error {
	if e.err != nil {
		return fmt.Errorf("engine already stopped: %w", e.err)
	}
	e.err = e.run(ctx)
	return e.err
}

func (e *Engine) run(ctx context.Context) error {
	e.logger.Info("engine starting",
		zap.String("run_id", e.runID),
		zap.Int("factors", len(e.factors)),
		zap.Int64("max_events", e.maxEvents))

	if e.start != nil {
		if err := e.startRun(ctx); err != nil {
			return err
		}
	}
	for _, s := range e.factors {
		if err := e.reschedule(s); err != nil {
			return err
		}
	}
	for _, s := range []*Slot{e.sampling, e.endOfRun, e.endOfChain} {
		if s == nil {
			continue
		}
		if err := e.request(s); err != nil {
			return err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			e.logger.Info("engine stopping: context cancelled", zap.Int64("events", e.summary.Events))
			return err
		}
		s, err := e.sched.GetSucceedingEvent()
		if err != nil {
			return fmt.Errorf("get succeeding event: %w", err)
		}
		started := time.Now()
		done, err := e.dispatch(ctx, s)
		dispatchDuration.WithLabelValues(s.kind.String()).Observe(time.Since(started).Seconds())
		if err != nil {
			return err
		}
		if done {
			e.logger.Info("engine stopping: end of run",
				zap.Int64("events", e.summary.Events),
				zap.Stringer("time", e.summary.FinalTime))
			return nil
		}
	}
}

func (e *Engine) dispatch(ctx context.Context, s *Slot) (bool, error) {
	e.logger.Debug("dispatching event",
		zap.Stringer("handler", s),
		zap.Stringer("kind", s.kind),
		zap.Stringer("time", s.time))
	switch s.kind {
	case KindFactor:
		return false, e.fireFactor(ctx, s)
	case KindSampling:
		return false, e.fireSampling(ctx, s)
	case KindEndOfChain:
		return false, e.fireEndOfChain(ctx, s)
	case KindEndOfRun:
		return true, e.fireEndOfRun(ctx, s)
	default:
		return false, newRuntimeError(ErrCodeArguments, s.name, "unexpected %s event in scheduler", s.kind)
	}
}

func (e *Engine) startRun(ctx context.Context) error {
	s := e.start
	et, err := s.handler.SendEventTime()
	if err != nil {
		return fmt.Errorf("%s: send event time: %w", s.name, err)
	}
	s.time, s.pending = et.Time, et.Pending
	out, err := e.sendOutState(s)
	if err != nil {
		return err
	}
	_, err = e.commit(ctx, s, out)
	return err
}

func (e *Engine) fireFactor(ctx context.Context, s *Slot) error {
	out, err := s.handler.SendOutState()
	if err != nil {
		return fmt.Errorf("%s: send out state: %w", s.name, err)
	}
	if out == nil {
		unconfirmed, ok := s.handler.(handler.UnconfirmedEventHandler)
		if !ok {
			return newRuntimeError(ErrCodeUnconfirmed, s.name, "handler returned no out-state")
		}
		e.sched.TrashEvent(s)
		et, err := unconfirmed.ResendEventTime()
		if err != nil {
			return fmt.Errorf("%s: resend event time: %w", s.name, err)
		}
		e.push(s, et)
		e.summary.Unconfirmed++
		unconfirmedTotal.Inc()
		return nil
	}
	if _, err := e.commit(ctx, s, out); err != nil {
		return err
	}
	return e.afterCommit(out)
}

func (e *Engine) fireSampling(ctx context.Context, s *Slot) error {
	out, err := e.sendOutState(s)
	if err != nil {
		return err
	}
	seq, err := e.commit(ctx, s, out)
	if err != nil {
		return err
	}
	forest := e.state.ExtractGlobalState()
	if e.sink != nil {
		if err := e.sink(s.time, forest); err != nil {
			return fmt.Errorf("sample sink: %w", err)
		}
	}
	if e.recorder != nil {
		if err := e.recorder.RecordSample(ctx, e.runID, seq, s.time, forest); err != nil {
			return fmt.Errorf("record sample %d: %w", seq, err)
		}
	}
	e.summary.Samples++
	samplesTotal.Inc()
	e.sched.TrashEvent(s)
	return e.request(s)
}

func (e *Engine) fireEndOfChain(ctx context.Context, s *Slot) error {
	out, err := e.sendOutState(s)
	if err != nil {
		return err
	}
	if _, err := e.commit(ctx, s, out); err != nil {
		return err
	}
	return e.afterCommit(out)
}

func (e *Engine) fireEndOfRun(ctx context.Context, s *Slot) error {
	out, err := e.sendOutState(s)
	if err != nil {
		return err
	}
	_, err = e.commit(ctx, s, out)
	return err
}

// sendOutState resolves the in-state arguments of a pseudo handler and
// requests its out-state.
func (e *Engine) sendOutState(s *Slot) ([]*node.Node, error) {
	want := s.handler.Arguments().OutState
	if want < len(s.pending) || want > len(s.pending)+1 {
		return nil, newRuntimeError(ErrCodeArguments, s.name,
			"%d out-state arguments cannot hold %d pending lists", want, len(s.pending))
	}
	args := make([][]*node.Node, 0, want)
	if want > len(s.pending) {
		active, err := e.state.ExtractActiveGlobalState()
		if err != nil {
			return nil, fmt.Errorf("extract active global state: %w", err)
		}
		args = append(args, active)
	}
	for _, ids := range s.pending {
		branches, err := e.extract(ids)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		args = append(args, branches)
	}
	out, err := s.handler.SendOutState(args...)
	if err != nil {
		return nil, fmt.Errorf("%s: send out state: %w", s.name, err)
	}
	return out, nil
}

// commit writes out into the tree state and stamps the event.
func (e *Engine) commit(ctx context.Context, s *Slot, out []*node.Node) (int64, error) {
	if err := e.quota.Check(); err != nil {
		e.logger.Error("max events quota exceeded",
			zap.Int64("events", e.quota.Current()),
			zap.Int64("limit", e.maxEvents))
		return 0, NewQuotaError(e.quota.Current(), e.maxEvents)
	}
	if err := e.state.InsertIntoGlobalState(out); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", s.name, err)
	}
	seq, backwards := e.clock.Stamp(s.time)
	if backwards {
		e.logger.Warn("event time precedes previous event",
			zap.String("handler", s.name),
			zap.Int64("seq", seq),
			zap.Stringer("time", s.time))
	}
	e.summary.Events = seq
	e.summary.FinalTime = s.time
	eventsTotal.WithLabelValues(s.kind.String()).Inc()
	if e.recorder != nil {
		ev := Event{Seq: seq, Time: s.time, Handler: s.name, Kind: s.kind}
		if err := e.recorder.RecordEvent(ctx, e.runID, ev); err != nil {
			return 0, fmt.Errorf("record event %d: %w", seq, err)
		}
	}
	return seq, nil
}

// afterCommit reschedules every factor sharing a root with the committed
// branches, then the end-of-chain handler.
func (e *Engine) afterCommit(out []*node.Node) error {
	touched := make(map[*Slot]bool)
	for _, root := range rootIndices(out) {
		for _, s := range e.byRoot[root] {
			touched[s] = true
		}
	}
	for _, s := range e.factors {
		if !touched[s] {
			continue
		}
		if err := e.reschedule(s); err != nil {
			return err
		}
	}
	if e.endOfChain != nil {
		e.sched.TrashEvent(e.endOfChain)
		return e.request(e.endOfChain)
	}
	return nil
}

// reschedule drops the pending event of a factor and, when its in-state
// holds exactly one active leaf, requests a new one.
func (e *Engine) reschedule(s *Slot) error {
	e.sched.TrashEvent(s)
	inState, err := e.extract(s.identifiers)
	if err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	if countActiveLeaves(inState) != 1 {
		return nil
	}
	et, err := s.handler.SendEventTime(inState)
	if err != nil {
		return fmt.Errorf("%s: send event time: %w", s.name, err)
	}
	e.push(s, et)
	return nil
}

// request asks a pseudo handler for its next event time.
func (e *Engine) request(s *Slot) error {
	var args [][]*node.Node
	if s.handler.Arguments().EventTime == 1 {
		active, err := e.state.ExtractActiveGlobalState()
		if err != nil {
			return fmt.Errorf("extract active global state: %w", err)
		}
		args = append(args, active)
	}
	et, err := s.handler.SendEventTime(args...)
	if err != nil {
		return fmt.Errorf("%s: send event time: %w", s.name, err)
	}
	e.push(s, et)
	return nil
}

func (e *Engine) push(s *Slot, et handler.EventTime) {
	s.time, s.pending = et.Time, et.Pending
	e.sched.PushEvent(et.Time, s)
}

// extract copies the branches of ids, merging branches of the same root.
func (e *Engine) extract(ids []node.StateID) ([]*node.Node, error) {
	var branches []*node.Node
	for _, id := range ids {
		branch, err := e.state.ExtractFromGlobalState(id)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", id, err)
		}
		merged := false
		for _, b := range branches {
			if b.Value.Identifier.Equal(branch.Value.Identifier) {
				mergeBranch(b, branch)
				merged = true
				break
			}
		}
		if !merged {
			branches = append(branches, branch)
		}
	}
	return branches, nil
}

func typeName(h any) string {
	t := reflect.TypeOf(h)
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

func factorName(f Factor) string {
	ids := make([]string, len(f.Identifiers))
	for i, id := range f.Identifiers {
		ids[i] = id.String()
	}
	return typeName(f.Handler) + "[" + strings.Join(ids, " ") + "]"
}

func cloneIDs(ids []node.StateID) []node.StateID {
	out := make([]node.StateID, len(ids))
	for i, id := range ids {
		out[i] = id.Clone()
	}
	return out
}
