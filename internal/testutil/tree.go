package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ecmc/internal/node"
	"github.com/roach88/ecmc/internal/setting"
	"github.com/roach88/ecmc/internal/simtime"
)

// Cnode builds a detached inactive cnode.
func Cnode(id node.StateID, position []float64, weight float64) *node.Node {
	return node.New(&node.Unit{Identifier: id, Position: position}, weight)
}

// Moving activates n with velocity and a time-stamp and returns it.
func Moving(n *node.Node, velocity []float64, timeStamp float64) *node.Node {
	n.Value.SetMotion(velocity, simtime.FromFloat(timeStamp))
	return n
}

// Charged sets the charge map of n and returns it.
func Charged(n *node.Node, charge map[string]float64) *node.Node {
	n.Value.Charge = charge
	return n
}

// Tree attaches children to root and returns root.
func Tree(root *node.Node, children ...*node.Node) *node.Node {
	for _, child := range children {
		root.AddChild(child)
	}
	return root
}

// Hypercuboid builds a setting with unit beta and the given box, failing the
// test on error.
func Hypercuboid(t testing.TB, lengths []float64, roots, perRoot, levels int) *setting.Setting {
	t.Helper()
	s, err := setting.NewHypercuboid(setting.HypercuboidConfig{
		SystemLengths:            lengths,
		Beta:                     1,
		Dimension:                len(lengths),
		NumberOfRootNodes:        roots,
		NumberOfNodesPerRootNode: perRoot,
		NumberOfNodeLevels:       levels,
	})
	require.NoError(t, err)
	return s
}

// TimeOf dereferences a unit time-stamp, failing the test when it is nil.
func TimeOf(t testing.TB, u *node.Unit) float64 {
	t.Helper()
	require.NotNil(t, u.TimeStamp, "unit %s has no time-stamp", u.Identifier)
	return u.TimeStamp.Float64()
}
