package engine

import (
	"github.com/roach88/ecmc/internal/node"
)

// mergeBranch grafts the nodes of from that are missing in into. Both must
// carry the same root identifier.
func mergeBranch(into, from *node.Node) {
	for _, child := range from.Children {
		if existing := childWithID(into, child.Value.Identifier); existing != nil {
			mergeBranch(existing, child)
			continue
		}
		into.AddChild(child)
	}
}

func childWithID(n *node.Node, id node.StateID) *node.Node {
	for _, child := range n.Children {
		if child.Value.Identifier.Equal(id) {
			return child
		}
	}
	return nil
}

// rootIndices returns the root index of every branch in order.
func rootIndices(branches []*node.Node) []int {
	roots := make([]int, len(branches))
	for i, b := range branches {
		roots[i] = b.Value.Identifier[0]
	}
	return roots
}

func countActiveLeaves(branches []*node.Node) int {
	n := 0
	for _, leaf := range node.Leaves(branches) {
		if leaf.Value.Active() {
			n++
		}
	}
	return n
}
