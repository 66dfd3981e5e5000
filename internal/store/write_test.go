package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ecmc/internal/engine"
	"github.com/roach88/ecmc/internal/node"
	"github.com/roach88/ecmc/internal/simtime"
	"github.com/roach88/ecmc/internal/testutil"
)

func TestBeginRun_ReadBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, Run{ID: "run-1", Seed: 42, ConfigJSON: `{"seed":42}`}, run)
	assert.False(t, run.Finished)
}

func TestBeginRun_LargeSeedSurvives(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.BeginRun(ctx, Run{ID: "big", Seed: 1<<64 - 1}))

	run, err := s.ReadRun(ctx, "big")
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<64-1), run.Seed)
	assert.Equal(t, "{}", run.ConfigJSON)
}

func TestBeginRun_Errors(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	assert.Error(t, s.BeginRun(ctx, Run{}), "empty id")

	beginTestRun(t, s, "run-1")
	assert.Error(t, s.BeginRun(ctx, Run{ID: "run-1"}), "duplicate id")
}

func TestFinishRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	require.NoError(t, s.FinishRun(ctx, engine.Summary{
		RunID:     "run-1",
		Events:    6,
		Samples:   3,
		FinalTime: simtime.FromFloat(0.9),
	}))

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, run.Finished)
	assert.Equal(t, int64(6), run.Events)
	assert.Equal(t, int64(3), run.Samples)
	assert.Equal(t, 0.9, run.FinalTime)

	err = s.FinishRun(ctx, engine.Summary{RunID: "missing"})
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRecordEvent_RequiresRun(t *testing.T) {
	s := createTestStore(t)
	err := s.RecordEvent(context.Background(), "missing", engine.Event{Seq: 1})
	assert.Error(t, err)
}

func TestRecordEvent_ExactTime(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	late := simtime.FromFloat(1e10).Add(1e-13)
	events := []engine.Event{
		{Seq: 1, Time: simtime.Zero, Handler: "InitialChainStartOfRunEventHandler", Kind: engine.KindStartOfRun},
		{Seq: 2, Time: late, Handler: "TwoLeafUnitEventHandler[(0) (1)]", Kind: engine.KindFactor},
	}
	for _, ev := range events {
		require.NoError(t, s.RecordEvent(ctx, "run-1", ev))
	}

	got, err := s.ReadEvents(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, events, got)
	assert.True(t, got[1].Time.Equal(late), "the remainder survives the round trip")
}

func TestRecordEvent_DuplicateSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	ev := engine.Event{Seq: 1, Time: simtime.Zero, Handler: "h", Kind: engine.KindSampling}
	require.NoError(t, s.RecordEvent(ctx, "run-1", ev))
	assert.Error(t, s.RecordEvent(ctx, "run-1", ev))
}

func TestReadEvents_EmptyRun(t *testing.T) {
	s := createTestStore(t)
	events, err := s.ReadEvents(context.Background(), "none")
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func compositeForest() []*node.Node {
	root := testutil.Moving(testutil.Cnode(node.StateID{0}, []float64{0.5, 0.5}, 1), []float64{0.5, 0}, 0.25)
	return []*node.Node{
		testutil.Tree(root,
			testutil.Moving(testutil.Cnode(node.StateID{0, 0}, []float64{0.4, 0.5}, 0.5), []float64{1, 0}, 0.25),
			testutil.Cnode(node.StateID{0, 1}, []float64{0.6, 0.5}, 0.5)),
	}
}

func TestRecordSample_EveryNode(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	require.NoError(t, s.RecordSample(ctx, "run-1", 2, simtime.FromFloat(0.25), compositeForest()))

	samples, err := s.ReadSamples(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, Sample{
		Seq: 2, Time: 0.25, Identifier: node.StateID{0}, Position: []float64{0.5, 0.5}, Velocity: []float64{0.5, 0},
	}, samples[0])
	assert.Equal(t, node.StateID{0, 0}, samples[1].Identifier)
	assert.Equal(t, []float64{1, 0}, samples[1].Velocity)
	assert.Equal(t, node.StateID{0, 1}, samples[2].Identifier)
	assert.Nil(t, samples[2].Velocity, "inactive units store NULL")
}

func TestRecordSample_RollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	forest := compositeForest()
	forest[0].Children[1].Value.Identifier = nil
	assert.Error(t, s.RecordSample(ctx, "run-1", 2, simtime.Zero, forest))

	samples, err := s.ReadSamples(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestReadTrajectory(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	for i, x := range []float64{0.1, 0.2, 0.3} {
		forest := []*node.Node{
			testutil.Cnode(node.StateID{0}, []float64{x, 0.5}, 1),
			testutil.Cnode(node.StateID{1}, []float64{0.9, 0.5}, 1),
		}
		require.NoError(t, s.RecordSample(ctx, "run-1", int64(i+1), simtime.FromFloat(float64(i)), forest))
	}

	trajectory, err := s.ReadTrajectory(ctx, "run-1", node.StateID{0})
	require.NoError(t, err)
	require.Len(t, trajectory, 3)
	for i, x := range []float64{0.1, 0.2, 0.3} {
		assert.Equal(t, int64(i+1), trajectory[i].Seq)
		assert.Equal(t, []float64{x, 0.5}, trajectory[i].Position)
	}

	_, err = s.ReadTrajectory(ctx, "run-1", node.StateID{})
	assert.Error(t, err)
}

func TestListRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	beginTestRun(t, s, "run-b")
	beginTestRun(t, s, "run-a")
	runs, err = s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-a", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

var _ engine.Recorder = (*Store)(nil)
