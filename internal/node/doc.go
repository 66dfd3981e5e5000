// Package node defines the tree values exchanged between the state store and
// the event handlers.
//
// A tree ("cnode" tree) models one composite object: the root is the object
// itself (for example a molecule), its children are point masses. Each node
// owns a Unit, which is a transient view of one particle: identifier,
// position, charges and, if the particle is active, velocity and time-stamp.
//
// Nodes are addressed by a StateID, the path of child indices from the root.
// A StateID of length one addresses a root; length two addresses a child of
// that root.
package node
