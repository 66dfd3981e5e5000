package engine

import (
	"context"
	"math/rand/v2"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ecmc/internal/errs"
	"github.com/roach88/ecmc/internal/handler"
	"github.com/roach88/ecmc/internal/node"
	"github.com/roach88/ecmc/internal/potential"
	"github.com/roach88/ecmc/internal/scheduler"
	"github.com/roach88/ecmc/internal/setting"
	"github.com/roach88/ecmc/internal/simtime"
	"github.com/roach88/ecmc/internal/state"
	"github.com/roach88/ecmc/internal/testutil"
)

type sample struct {
	seq    int64
	time   float64
	leaves int
}

// memoryRecorder keeps the run log in memory.
type memoryRecorder struct {
	runIDs  []string
	events  []Event
	samples []sample
}

func (r *memoryRecorder) RecordEvent(_ context.Context, runID string, ev Event) error {
	r.runIDs = append(r.runIDs, runID)
	r.events = append(r.events, ev)
	return nil
}

func (r *memoryRecorder) RecordSample(_ context.Context, runID string, seq int64, t simtime.Time,
	forest []*node.Node) error {
	r.runIDs = append(r.runIDs, runID)
	r.samples = append(r.samples, sample{seq: seq, time: t.Float64(), leaves: len(node.Leaves(forest))})
	return nil
}

// twoSpheres places two point particles on the x axis of the unit square.
func twoSpheres(t *testing.T) (*setting.Setting, *state.TreeStateHandler) {
	t.Helper()
	s := testutil.Hypercuboid(t, []float64{1, 1}, 2, 1, 1)
	st := state.NewTreeStateHandler(s)
	require.NoError(t, st.Initialize([]*node.Node{
		testutil.Cnode(node.StateID{0}, []float64{0.1, 0.5}, 1),
		testutil.Cnode(node.StateID{1}, []float64{0.5, 0.5}, 1),
	}))
	return s, st
}

func hardSphereEngine(t *testing.T, s *setting.Setting, st *state.TreeStateHandler, opts ...Option) *Engine {
	t.Helper()
	hs, err := potential.NewHardSphere(0.05)
	require.NoError(t, err)
	pair, err := handler.NewTwoLeafUnitEventHandler(s, hs, nil)
	require.NoError(t, err)
	start, err := handler.NewInitialChainStartOfRunEventHandler(s, node.StateID{0}, []float64{1, 0})
	require.NoError(t, err)
	sampling, err := handler.NewFixedIntervalSamplingEventHandler(s, 0.25)
	require.NoError(t, err)
	end, err := handler.NewFinalTimeEndOfRunEventHandler(s, 0.9)
	require.NoError(t, err)

	all := append([]Option{
		WithStart(start),
		WithFactors(Factor{Handler: pair, Identifiers: []node.StateID{{0}, {1}}}),
		WithSampling(sampling, nil),
		WithEndOfRun(end),
		WithRunIDGenerator(testutil.NewFixedRunIDGenerator("run-1")),
	}, opts...)
	e, err := New(st, scheduler.NewHeapScheduler[*Slot](), all...)
	require.NoError(t, err)
	return e
}

func TestEngine_HardSphereRun(t *testing.T) {
	s, st := twoSpheres(t)
	rec := &memoryRecorder{}
	samplesBefore := promtest.ToFloat64(samplesTotal)
	e := hardSphereEngine(t, s, st, WithRecorder(rec))
	assert.Equal(t, "run-1", e.RunID())

	require.NoError(t, e.Run(context.Background()))

	kinds := make([]Kind, len(rec.events))
	for i, ev := range rec.events {
		kinds[i] = ev.Kind
		assert.Equal(t, int64(i+1), ev.Seq)
		if i > 0 {
			assert.False(t, ev.Time.Less(rec.events[i-1].Time), "event %d goes back in time", ev.Seq)
		}
	}
	assert.Equal(t, []Kind{KindStartOfRun, KindSampling, KindFactor, KindSampling, KindSampling, KindEndOfRun}, kinds)
	assert.InDelta(t, 0.3, rec.events[2].Time.Float64(), 1e-12)
	assert.Equal(t, "TwoLeafUnitEventHandler[(0) (1)]", rec.events[2].Handler)
	assert.Equal(t, "InitialChainStartOfRunEventHandler", rec.events[0].Handler)

	require.Len(t, rec.samples, 3)
	assert.Equal(t, sample{seq: 2, time: 0.25, leaves: 2}, rec.samples[0])
	assert.Equal(t, 0.75, rec.samples[2].time)
	for _, id := range rec.runIDs {
		assert.Equal(t, "run-1", id)
	}

	summary := e.Summary()
	assert.Equal(t, int64(6), summary.Events)
	assert.Equal(t, int64(3), summary.Samples)
	assert.Equal(t, 0.9, summary.FinalTime.Float64())
	assert.Equal(t, 3.0, promtest.ToFloat64(samplesTotal)-samplesBefore)

	forest := st.ExtractGlobalState()
	assert.False(t, forest[0].Value.Active())
	assert.InDeltaSlice(t, []float64{0.4, 0.5}, forest[0].Value.Position, 1e-12)
	require.True(t, forest[1].Value.Active())
	assert.InDeltaSlice(t, []float64{0.1, 0.5}, forest[1].Value.Position, 1e-12)
	assert.InDelta(t, 0.9, testutil.TimeOf(t, forest[1].Value), 1e-12)

	err := e.Run(context.Background())
	assert.Error(t, err, "a finished run cannot be restarted")
}

func TestEngine_SampleSink(t *testing.T) {
	s, st := twoSpheres(t)
	hs, err := potential.NewHardSphere(0.05)
	require.NoError(t, err)
	pair, err := handler.NewTwoLeafUnitEventHandler(s, hs, nil)
	require.NoError(t, err)
	start, err := handler.NewInitialChainStartOfRunEventHandler(s, node.StateID{1}, []float64{0, 1})
	require.NoError(t, err)
	sampling, err := handler.NewFixedIntervalSamplingEventHandler(s, 0.5, handler.WithFirstEventTimeZero())
	require.NoError(t, err)
	end, err := handler.NewFinalTimeEndOfRunEventHandler(s, 1.2)
	require.NoError(t, err)

	var times []float64
	var heights []float64
	sink := func(t simtime.Time, forest []*node.Node) error {
		times = append(times, t.Float64())
		heights = append(heights, forest[1].Value.Position[1])
		return nil
	}
	e, err := New(st, scheduler.NewListScheduler[*Slot](),
		WithStart(start),
		WithFactors(Factor{Name: "pair", Handler: pair, Identifiers: []node.StateID{{0}, {1}}}),
		WithSampling(sampling, sink),
		WithEndOfRun(end))
	require.NoError(t, err)
	require.NoError(t, e.Run(context.Background()))

	// Moving along y, the particles never touch.
	assert.Equal(t, []float64{0, 0.5, 1}, times)
	assert.InDeltaSlice(t, []float64{0.5, 0, 0.5}, heights, 1e-12)
	assert.Equal(t, int64(5), e.Summary().Events)
}

func TestEngine_MaxEvents(t *testing.T) {
	s, st := twoSpheres(t)
	e := hardSphereEngine(t, s, st, WithMaxEvents(2))
	err := e.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsQuotaError(err))
	assert.Equal(t, int64(2), e.Summary().Events)
}

func TestEngine_ContextCancelled(t *testing.T) {
	s, st := twoSpheres(t)
	e := hardSphereEngine(t, s, st)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(1), e.Summary().Events, "only the start of run is committed")
}

// springPair builds an engine of two particles bound by a harmonic spring
// and sampled by a piecewise-constant handler.
func springPair(t *testing.T, seed uint64, rec Recorder) *Engine {
	t.Helper()
	s, st := twoSpheres(t)
	spring, err := potential.NewDisplacedEvenPower(0.2, 2, 1)
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(seed, seed))
	pair, err := handler.NewTwoLeafUnitPiecewiseConstantEventHandler(s, spring, rng, 0.1, 0.05)
	require.NoError(t, err)
	start, err := handler.NewInitialChainStartOfRunEventHandler(s, node.StateID{0}, []float64{1, 0})
	require.NoError(t, err)
	end, err := handler.NewFinalTimeEndOfRunEventHandler(s, 3)
	require.NoError(t, err)
	e, err := New(st, scheduler.NewHeapScheduler[*Slot](),
		WithStart(start),
		WithFactors(Factor{Handler: pair, Identifiers: []node.StateID{{0}, {1}}}),
		WithEndOfRun(end),
		WithRecorder(rec),
		WithRunIDGenerator(testutil.NewFixedRunIDGenerator("")))
	require.NoError(t, err)
	return e
}

func TestEngine_UnconfirmedEventsAreResent(t *testing.T) {
	rec := &memoryRecorder{}
	e := springPair(t, 7, rec)
	require.NoError(t, e.Run(context.Background()))

	summary := e.Summary()
	assert.Positive(t, summary.Unconfirmed, "window ends are unconfirmed")
	assert.Equal(t, KindEndOfRun, rec.events[len(rec.events)-1].Kind)
	assert.Equal(t, 3.0, summary.FinalTime.Float64())
	for i := 1; i < len(rec.events); i++ {
		assert.False(t, rec.events[i].Time.Less(rec.events[i-1].Time))
	}
}

func TestEngine_SameSeedSameRun(t *testing.T) {
	first, second := &memoryRecorder{}, &memoryRecorder{}
	require.NoError(t, springPair(t, 11, first).Run(context.Background()))
	require.NoError(t, springPair(t, 11, second).Run(context.Background()))
	assert.Equal(t, first.events, second.events)
}

// nilFactor never confirms and cannot resend.
type nilFactor struct{}

func (nilFactor) Arguments() handler.Arguments { return handler.Arguments{EventTime: 1} }

func (nilFactor) SendEventTime(...[]*node.Node) (handler.EventTime, error) {
	return handler.EventTime{Time: simtime.FromFloat(0.1)}, nil
}

func (nilFactor) SendOutState(...[]*node.Node) ([]*node.Node, error) { return nil, nil }

func TestEngine_NilOutStateWithoutResend(t *testing.T) {
	s, st := twoSpheres(t)
	start, err := handler.NewInitialChainStartOfRunEventHandler(s, node.StateID{0}, []float64{1, 0})
	require.NoError(t, err)
	e, err := New(st, scheduler.NewHeapScheduler[*Slot](),
		WithStart(start),
		WithFactors(Factor{Handler: nilFactor{}, Identifiers: []node.StateID{{0}, {1}}}))
	require.NoError(t, err)

	err = e.Run(context.Background())
	assert.True(t, IsRuntimeError(err, ErrCodeUnconfirmed))
}

func TestEngine_EmptySchedulerIsAnError(t *testing.T) {
	_, st := twoSpheres(t)
	e, err := New(st, scheduler.NewHeapScheduler[*Slot]())
	require.NoError(t, err)
	err = e.Run(context.Background())
	assert.True(t, scheduler.IsNoEventsError(err))
}

func TestEngine_Validation(t *testing.T) {
	s, st := twoSpheres(t)
	sampling, err := handler.NewFixedIntervalSamplingEventHandler(s, 1)
	require.NoError(t, err)
	sched := scheduler.NewHeapScheduler[*Slot]()

	cases := map[string][]Option{
		"factor with pseudo arguments": {WithFactors(Factor{Handler: sampling, Identifiers: []node.StateID{{0}}})},
		"factor without identifiers":   {WithFactors(Factor{Handler: nilFactor{}})},
		"factor with empty identifier": {WithFactors(Factor{Handler: nilFactor{}, Identifiers: []node.StateID{{}}})},
		"end of run with factor args":  {WithEndOfRun(nilFactor{})},
		"end of chain with sampling":   {WithEndOfChain(sampling)},
		"nil sampling":                 {WithSampling(nil, nil)},
		"negative quota":               {WithMaxEvents(-1)},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(st, sched, opts...)
			assert.True(t, errs.IsConfigurationError(err), "got %v", err)
		})
	}
	_, err = New(nil, sched)
	assert.True(t, errs.IsConfigurationError(err))
}

func TestEngine_ExtractMergesBranchesOfOneRoot(t *testing.T) {
	s := testutil.Hypercuboid(t, []float64{1, 1}, 1, 2, 2)
	st := state.NewTreeStateHandler(s)
	require.NoError(t, st.Initialize([]*node.Node{testutil.Tree(
		testutil.Cnode(node.StateID{0}, []float64{0.5, 0.5}, 1),
		testutil.Cnode(node.StateID{0, 0}, []float64{0.4, 0.5}, 0.5),
		testutil.Cnode(node.StateID{0, 1}, []float64{0.6, 0.5}, 0.5))}))
	e, err := New(st, scheduler.NewHeapScheduler[*Slot]())
	require.NoError(t, err)

	branches, err := e.extract([]node.StateID{{0, 1}, {0, 0}})
	require.NoError(t, err)
	require.Len(t, branches, 1)
	require.Len(t, branches[0].Children, 2)
	assert.Equal(t, node.StateID{0, 1}, branches[0].Children[0].Value.Identifier)
	assert.Equal(t, node.StateID{0, 0}, branches[0].Children[1].Value.Identifier)
	assert.Same(t, branches[0], branches[0].Children[1].Parent)

	_, err = e.extract([]node.StateID{{3}})
	assert.ErrorIs(t, err, state.ErrUnknownIdentifier)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "end_of_chain", KindEndOfChain.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
