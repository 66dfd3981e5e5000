package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ecmc/internal/simtime"
)

func composite() *Node {
	root := New(&Unit{Identifier: StateID{0}, Position: []float64{0.5, 0.5}}, 1)
	root.AddChild(New(&Unit{Identifier: StateID{0, 0}, Position: []float64{0.4, 0.5}}, 0.5))
	root.AddChild(New(&Unit{Identifier: StateID{0, 1}, Position: []float64{0.6, 0.5}}, 0.5))
	return root
}

func TestStateID(t *testing.T) {
	id := StateID{3, 1}
	assert.Equal(t, "(3, 1)", id.String())
	assert.Equal(t, "(3)", StateID{3}.String())
	assert.True(t, id.Root().Equal(StateID{3}))
	assert.False(t, id.Equal(StateID{3}))

	clone := id.Clone()
	clone[1] = 7
	assert.Equal(t, 1, id[1])
}

func TestUnit_Motion(t *testing.T) {
	u := &Unit{Identifier: StateID{0}, Position: []float64{0, 0}}
	assert.False(t, u.Active())

	u.SetMotion([]float64{1, 0}, simtime.FromFloat(2.5))
	assert.True(t, u.Active())
	require.NotNil(t, u.TimeStamp)
	assert.Equal(t, 2.5, u.TimeStamp.Float64())

	u.ClearMotion()
	assert.False(t, u.Active())
	assert.Nil(t, u.TimeStamp)
}

func TestUnit_CloneIsDeep(t *testing.T) {
	u := &Unit{Identifier: StateID{0, 1}, Position: []float64{0.1, 0.2}}
	u.SetMotion([]float64{1, 0}, simtime.FromFloat(1))

	c := u.Clone()
	c.Position[0] = 9
	c.Velocity[0] = 9
	c.Identifier[1] = 9
	*c.TimeStamp = simtime.FromFloat(5)

	assert.Equal(t, 0.1, u.Position[0])
	assert.Equal(t, 1.0, u.Velocity[0])
	assert.Equal(t, 1, u.Identifier[1])
	assert.Equal(t, 1.0, u.TimeStamp.Float64())
}

func TestUnit_CloneInactive(t *testing.T) {
	u := &Unit{Identifier: StateID{0}, Position: []float64{0.1}}
	c := u.Clone()
	assert.Nil(t, c.Velocity)
	assert.Nil(t, c.TimeStamp)
}

func TestNode_Tree(t *testing.T) {
	root := composite()
	assert.False(t, root.IsLeaf())
	leaves := root.Leaves()
	require.Len(t, leaves, 2)
	assert.True(t, leaves[1].Value.Identifier.Equal(StateID{0, 1}))
	assert.Same(t, root, leaves[0].Parent)
	assert.Same(t, root, leaves[1].Root())

	var visited []string
	root.Walk(func(n *Node) { visited = append(visited, n.Value.Identifier.String()) })
	assert.Equal(t, []string{"(0)", "(0, 0)", "(0, 1)"}, visited)
}

func TestNode_LeafIsItsOwnLeaf(t *testing.T) {
	n := New(&Unit{Identifier: StateID{2}}, 1)
	assert.Equal(t, []*Node{n}, n.Leaves())
	assert.Same(t, n, n.Root())
}

func TestNode_CloneDetached(t *testing.T) {
	root := composite()
	child := root.Children[0]

	c := child.Clone()
	assert.Nil(t, c.Parent)
	c.Value.Position[0] = 9
	assert.Equal(t, 0.4, child.Value.Position[0])

	full := root.Clone()
	require.Len(t, full.Children, 2)
	assert.Same(t, full, full.Children[1].Parent)
	assert.NotSame(t, root.Children[1], full.Children[1])
}

func TestLeaves_Forest(t *testing.T) {
	single := New(&Unit{Identifier: StateID{1}}, 1)
	leaves := Leaves([]*Node{composite(), single})
	require.Len(t, leaves, 3)
	assert.Same(t, single, leaves[2])
}
