package node

import (
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/ecmc/internal/simtime"
)

// StateID is the path of a node from its root: StateID{3} is the fourth root,
// StateID{3, 1} its second child.
type StateID []int

// Equal reports whether both paths are identical.
func (id StateID) Equal(other StateID) bool {
	return slices.Equal(id, other)
}

// Root returns the identifier of the root on the path.
func (id StateID) Root() StateID {
	return StateID{id[0]}
}

// Clone returns an independent copy.
func (id StateID) Clone() StateID {
	return slices.Clone(id)
}

// String renders the path as "(3, 1)".
func (id StateID) String() string {
	parts := make([]string, len(id))
	for i, v := range id {
		parts[i] = strconv.Itoa(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Unit is one particle's view inside a tree.
//
// Velocity and TimeStamp are either both set (the unit is active) or both nil.
type Unit struct {
	Identifier StateID
	Position   []float64
	Charge     map[string]float64
	Velocity   []float64
	TimeStamp  *simtime.Time
}

// Active reports whether the unit carries a velocity.
func (u *Unit) Active() bool {
	return u.Velocity != nil
}

// SetMotion activates the unit with the given velocity and time-stamp.
func (u *Unit) SetMotion(velocity []float64, timeStamp simtime.Time) {
	u.Velocity = velocity
	u.TimeStamp = &timeStamp
}

// ClearMotion makes the unit inactive.
func (u *Unit) ClearMotion() {
	u.Velocity = nil
	u.TimeStamp = nil
}

// Clone returns a deep copy of the unit. The charge map is shared; charges
// never change during a run.
func (u *Unit) Clone() *Unit {
	c := &Unit{
		Identifier: u.Identifier.Clone(),
		Position:   slices.Clone(u.Position),
		Charge:     u.Charge,
		Velocity:   slices.Clone(u.Velocity),
	}
	if u.TimeStamp != nil {
		ts := *u.TimeStamp
		c.TimeStamp = &ts
	}
	return c
}

// Node is a tree node holding a Unit.
type Node struct {
	Value    *Unit
	Weight   float64
	Children []*Node
	Parent   *Node
}

// New creates a detached node.
func New(value *Unit, weight float64) *Node {
	return &Node{Value: value, Weight: weight}
}

// AddChild appends child and sets its parent link.
func (n *Node) AddChild(child *Node) {
	child.Parent = n
	n.Children = append(n.Children, child)
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Root walks up the parent links.
func (n *Node) Root() *Node {
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

// Leaves returns the leaf nodes below n in depth-first order. A leaf returns
// itself.
func (n *Node) Leaves() []*Node {
	if n.IsLeaf() {
		return []*Node{n}
	}
	var leaves []*Node
	for _, child := range n.Children {
		leaves = append(leaves, child.Leaves()...)
	}
	return leaves
}

// Walk calls fn for n and every descendant, parents before children.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

// Clone deep-copies the subtree rooted at n. The copy is detached from n's
// parent.
func (n *Node) Clone() *Node {
	c := New(n.Value.Clone(), n.Weight)
	for _, child := range n.Children {
		c.AddChild(child.Clone())
	}
	return c
}

// Leaves collects the leaves of all given trees in order.
func Leaves(trees []*Node) []*Node {
	var leaves []*Node
	for _, tree := range trees {
		leaves = append(leaves, tree.Leaves()...)
	}
	return leaves
}
