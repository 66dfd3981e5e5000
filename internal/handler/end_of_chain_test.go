package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ecmc/internal/errs"
	"github.com/roach88/ecmc/internal/node"
	"github.com/roach88/ecmc/internal/testutil"
)

func TestEndOfChain_PointMasses(t *testing.T) {
	s := testutil.Hypercuboid(t, []float64{1, 1}, 2, 1, 1)
	rng := testutil.NewScriptedRandom().WithIntN(1, 0)
	h, err := NewPeriodicDirectionEndOfChainEventHandler(s, 2, rng)
	require.NoError(t, err)
	assert.Equal(t, Arguments{EventTime: 1, OutState: 2}, h.Arguments())

	active := []*node.Node{testutil.Moving(testutil.Cnode(node.StateID{0}, []float64{0.1, 0.1}, 1), []float64{0.5, 0}, 1)}
	et, err := h.SendEventTime(active)
	require.NoError(t, err)
	assert.Equal(t, 2.0, et.Time.Float64())
	assert.Equal(t, [][]node.StateID{{{1}}}, et.Pending)

	next := []*node.Node{testutil.Cnode(node.StateID{1}, []float64{0.5, 0.5}, 1)}
	out, err := h.SendOutState(active, next)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.False(t, out[0].Value.Active())
	assert.InDeltaSlice(t, []float64{0.6, 0.1}, out[0].Value.Position, tolerance)
	require.True(t, out[1].Value.Active())
	assert.Equal(t, []float64{0, 0.5}, out[1].Value.Velocity)
	assert.Equal(t, 2.0, testutil.TimeOf(t, out[1].Value))

	// The following chain ends one chain time after the last one.
	et, err = h.SendEventTime(out[1:])
	require.NoError(t, err)
	assert.Equal(t, 4.0, et.Time.Float64())
	assert.Equal(t, [][]node.StateID{{{0}}}, et.Pending)
}

func TestEndOfChain_SameUnitRotates(t *testing.T) {
	s := testutil.Hypercuboid(t, []float64{1, 1, 1}, 2, 1, 1)
	h, err := NewPeriodicDirectionEndOfChainEventHandler(s, 1, testutil.NewScriptedRandom().WithIntN(0))
	require.NoError(t, err)

	active := []*node.Node{testutil.Moving(testutil.Cnode(node.StateID{0}, []float64{0.1, 0.1, 0.1}, 1),
		[]float64{0, 0, -2}, 0)}
	_, err = h.SendEventTime(active)
	require.NoError(t, err)
	next := []*node.Node{testutil.Moving(testutil.Cnode(node.StateID{0}, []float64{0.1, 0.1, 0.1}, 1),
		[]float64{0, 0, -2}, 0)}
	out, err := h.SendOutState(active, next)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []float64{-2, 0, 0}, out[0].Value.Velocity)
	assert.Equal(t, 1.0, testutil.TimeOf(t, out[0].Value))
}

func TestEndOfChain_CompositeWholeRoot(t *testing.T) {
	s := testutil.Hypercuboid(t, []float64{1, 1}, 2, 2, 2)
	// A fully active root draws a root identifier only.
	h, err := NewPeriodicDirectionEndOfChainEventHandler(s, 1, testutil.NewScriptedRandom().WithIntN(1))
	require.NoError(t, err)

	active := []*node.Node{testutil.Tree(
		testutil.Moving(testutil.Cnode(node.StateID{0}, []float64{0.5, 0.5}, 1), []float64{1, 0}, 0),
		testutil.Moving(testutil.Cnode(node.StateID{0, 0}, []float64{0.4, 0.5}, 0.5), []float64{1, 0}, 0),
		testutil.Moving(testutil.Cnode(node.StateID{0, 1}, []float64{0.6, 0.5}, 0.5), []float64{1, 0}, 0))}
	et, err := h.SendEventTime(active)
	require.NoError(t, err)
	assert.Equal(t, [][]node.StateID{{{1}}}, et.Pending)

	next := []*node.Node{testutil.Tree(testutil.Cnode(node.StateID{1}, []float64{0.2, 0.2}, 1),
		testutil.Cnode(node.StateID{1, 0}, []float64{0.1, 0.2}, 0.5),
		testutil.Cnode(node.StateID{1, 1}, []float64{0.3, 0.2}, 0.5))}
	out, err := h.SendOutState(active, next)
	require.NoError(t, err)
	require.Len(t, out, 2)

	out[0].Walk(func(n *node.Node) {
		assert.False(t, n.Value.Active(), "%s stays active", n.Value.Identifier)
	})
	out[1].Walk(func(n *node.Node) {
		require.True(t, n.Value.Active(), "%s inactive", n.Value.Identifier)
		assert.InDeltaSlice(t, []float64{0, 1}, n.Value.Velocity, tolerance)
		assert.Equal(t, 1.0, testutil.TimeOf(t, n.Value))
	})
}

func TestEndOfChain_GraftsLeafOntoActiveRoot(t *testing.T) {
	s := testutil.Hypercuboid(t, []float64{1, 1}, 2, 2, 2)
	h, err := NewPeriodicDirectionEndOfChainEventHandler(s, 1, testutil.NewScriptedRandom().WithIntN(0, 0))
	require.NoError(t, err)

	active := []*node.Node{testutil.Tree(
		testutil.Moving(testutil.Cnode(node.StateID{0}, []float64{0.5, 0.5}, 1), []float64{0.5, 0}, 0),
		testutil.Moving(testutil.Cnode(node.StateID{0, 1}, []float64{0.2, 0.2}, 0.5), []float64{1, 0}, 0))}
	et, err := h.SendEventTime(active)
	require.NoError(t, err)
	assert.Equal(t, [][]node.StateID{{{0, 0}}}, et.Pending)

	next := []*node.Node{testutil.Tree(
		testutil.Moving(testutil.Cnode(node.StateID{0}, []float64{0.5, 0.5}, 1), []float64{0.5, 0}, 0),
		testutil.Cnode(node.StateID{0, 0}, []float64{0.7, 0.7}, 0.5))}
	out, err := h.SendOutState(active, next)
	require.NoError(t, err)
	require.Len(t, out, 1)

	root := out[0]
	require.Len(t, root.Children, 2)
	old, grafted := root.Children[0].Value, root.Children[1].Value
	assert.Equal(t, node.StateID{0, 0}, grafted.Identifier)
	assert.Same(t, root, root.Children[1].Parent)

	assert.False(t, old.Active())
	assertPositionInDelta(t, s, []float64{0.2, 0.2}, old.Position, tolerance)
	require.True(t, grafted.Active())
	assert.Equal(t, []float64{0, 1}, grafted.Velocity)
	assert.Equal(t, 1.0, testutil.TimeOf(t, grafted))
	require.True(t, root.Value.Active())
	assert.InDeltaSlice(t, []float64{0, 0.5}, root.Value.Velocity, tolerance)
}

func TestEndOfChain_Errors(t *testing.T) {
	s := testutil.Hypercuboid(t, []float64{1, 1}, 2, 1, 1)
	_, err := NewPeriodicDirectionEndOfChainEventHandler(s, 0, nil)
	assert.True(t, errs.IsConfigurationError(err))

	h, err := NewPeriodicDirectionEndOfChainEventHandler(s, 1, testutil.NewScriptedRandom().WithIntN(1))
	require.NoError(t, err)
	_, err = h.SendEventTime([]*node.Node{testutil.Cnode(node.StateID{0}, []float64{0.1, 0.1}, 1)})
	assert.True(t, IsInStateError(err), "inactive root")

	diagonal := []*node.Node{testutil.Moving(testutil.Cnode(node.StateID{0}, []float64{0.1, 0.1}, 1), []float64{1, 1}, 0)}
	_, err = h.SendEventTime(diagonal)
	require.NoError(t, err)
	_, err = h.SendOutState(diagonal, []*node.Node{testutil.Cnode(node.StateID{1}, []float64{0.5, 0.5}, 1)})
	assert.True(t, IsInStateError(err), "velocity not along an axis")
}
