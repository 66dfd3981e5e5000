package state

import (
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/roach88/ecmc/internal/node"
	"github.com/roach88/ecmc/internal/setting"
	"github.com/roach88/ecmc/internal/simtime"
)

// physicalNode is the stored form of one node of the forest.
type physicalNode struct {
	position []float64
	charge   map[string]float64
	weight   float64
	children []*physicalNode
}

// lift is the lifting entry of an active identifier.
type lift struct {
	velocity  []float64
	timeStamp simtime.Time
}

// Option configures a TreeStateHandler.
type Option func(*TreeStateHandler)

// WithLogger sets the logger for debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(h *TreeStateHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// TreeStateHandler stores the physical and lifting state of a forest of
// cnodes and hands out branches of it.
type TreeStateHandler struct {
	setting *setting.Setting
	roots   []*physicalNode
	lifted  map[string]lift
	logger  *zap.Logger
}

// NewTreeStateHandler creates an empty handler for the given setting.
// Initialize must be called before any other method.
func NewTreeStateHandler(s *setting.Setting, opts ...Option) *TreeStateHandler {
	h := &TreeStateHandler{
		setting: s,
		lifted:  make(map[string]lift),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Setting returns the setting the handler was built with.
func (h *TreeStateHandler) Setting() *setting.Setting {
	return h.setting
}

// Initialize loads the full global state. Units carrying a velocity and a
// time-stamp seed the lifting state.
func (h *TreeStateHandler) Initialize(roots []*node.Node) error {
	if len(roots) != h.setting.NumberOfRootNodes {
		return fmt.Errorf("initialize: expected %d root nodes, got %d", h.setting.NumberOfRootNodes, len(roots))
	}
	h.roots = make([]*physicalNode, len(roots))
	h.lifted = make(map[string]lift)
	for i, root := range roots {
		p, err := h.load(root, node.StateID{i}, 1)
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		h.roots[i] = p
	}
	h.logger.Debug("initialized global state",
		zap.Int("roots", len(h.roots)),
		zap.Int("lifted", len(h.lifted)))
	return nil
}

func (h *TreeStateHandler) load(n *node.Node, id node.StateID, level int) (*physicalNode, error) {
	if n.Value == nil {
		return nil, fmt.Errorf("node %s has no unit", id)
	}
	if !n.Value.Identifier.Equal(id) {
		return nil, fmt.Errorf("node at %s carries identifier %s", id, n.Value.Identifier)
	}
	if len(n.Value.Position) != h.setting.Dimension {
		return nil, fmt.Errorf("node %s: position has %d entries, dimension is %d",
			id, len(n.Value.Position), h.setting.Dimension)
	}
	if level == h.setting.NumberOfNodeLevels && !n.IsLeaf() {
		return nil, fmt.Errorf("node %s: expected a leaf at level %d", id, level)
	}
	if level < h.setting.NumberOfNodeLevels && len(n.Children) != h.setting.NumberOfNodesPerRootNode {
		return nil, fmt.Errorf("node %s: expected %d children, got %d",
			id, h.setting.NumberOfNodesPerRootNode, len(n.Children))
	}
	if err := h.setLift(id, n.Value); err != nil {
		return nil, err
	}
	p := &physicalNode{
		position: slices.Clone(n.Value.Position),
		charge:   maps.Clone(n.Value.Charge),
		weight:   n.Weight,
	}
	for i, child := range n.Children {
		c, err := h.load(child, append(id.Clone(), i), level+1)
		if err != nil {
			return nil, err
		}
		p.children = append(p.children, c)
	}
	return p, nil
}

func (h *TreeStateHandler) setLift(id node.StateID, u *node.Unit) error {
	switch {
	case u.Velocity == nil && u.TimeStamp == nil:
		delete(h.lifted, id.String())
	case u.Velocity != nil && u.TimeStamp != nil:
		if len(u.Velocity) != h.setting.Dimension {
			return fmt.Errorf("node %s: velocity has %d entries, dimension is %d",
				id, len(u.Velocity), h.setting.Dimension)
		}
		h.lifted[id.String()] = lift{velocity: slices.Clone(u.Velocity), timeStamp: *u.TimeStamp}
	default:
		return fmt.Errorf("node %s: %w", id, ErrInconsistentLifting)
	}
	return nil
}

func (h *TreeStateHandler) lookup(id node.StateID) (*physicalNode, error) {
	if h.roots == nil {
		return nil, ErrNotInitialized
	}
	if len(id) == 0 || id[0] < 0 || id[0] >= len(h.roots) {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownIdentifier)
	}
	n := h.roots[id[0]]
	for _, index := range id[1:] {
		if index < 0 || index >= len(n.children) {
			return nil, fmt.Errorf("%s: %w", id, ErrUnknownIdentifier)
		}
		n = n.children[index]
	}
	return n, nil
}

// IsLifted reports whether id has a lifting entry.
func (h *TreeStateHandler) IsLifted(id node.StateID) bool {
	_, ok := h.lifted[id.String()]
	return ok
}

// unit builds the unit of id. With copied set, position, velocity and
// charge are fresh; otherwise they alias the stored ones.
func (h *TreeStateHandler) unit(id node.StateID, p *physicalNode, copied bool) *node.Unit {
	u := &node.Unit{
		Identifier: id.Clone(),
		Position:   p.position,
		Charge:     p.charge,
	}
	if l, ok := h.lifted[id.String()]; ok {
		ts := l.timeStamp
		u.Velocity = l.velocity
		u.TimeStamp = &ts
	}
	if copied {
		u.Position = slices.Clone(u.Position)
		u.Velocity = slices.Clone(u.Velocity)
		u.Charge = maps.Clone(u.Charge)
	}
	return u
}

func (h *TreeStateHandler) subtree(id node.StateID, p *physicalNode, copied bool) *node.Node {
	cnode := node.New(h.unit(id, p, copied), p.weight)
	for i, child := range p.children {
		cnode.AddChild(h.subtree(append(id.Clone(), i), child, copied))
	}
	return cnode
}

// ExtractFromGlobalState returns a copied branch for id: the path from the
// root down to id, followed by every descendant of id. The returned node is
// the root of the branch.
func (h *TreeStateHandler) ExtractFromGlobalState(id node.StateID) (*node.Node, error) {
	if _, err := h.lookup(id); err != nil {
		return nil, err
	}
	p := h.roots[id[0]]
	if len(id) == 1 {
		return h.subtree(id.Clone(), p, true), nil
	}
	root := node.New(h.unit(id[:1].Clone(), p, true), p.weight)
	last := root
	for level := 1; level < len(id); level++ {
		p = p.children[id[level]]
		prefix := id[:level+1].Clone()
		if level == len(id)-1 {
			last.AddChild(h.subtree(prefix, p, true))
			break
		}
		next := node.New(h.unit(prefix, p, true), p.weight)
		last.AddChild(next)
		last = next
	}
	return root, nil
}

// InsertIntoGlobalState writes every node of every branch back into the
// global state. A unit without velocity and time-stamp clears its lifting
// entry.
func (h *TreeStateHandler) InsertIntoGlobalState(branches []*node.Node) error {
	for _, branch := range branches {
		var err error
		branch.Walk(func(cnode *node.Node) {
			if err != nil {
				return
			}
			err = h.insert(cnode.Value)
		})
		if err != nil {
			return fmt.Errorf("insert into global state: %w", err)
		}
	}
	return nil
}

func (h *TreeStateHandler) insert(u *node.Unit) error {
	p, err := h.lookup(u.Identifier)
	if err != nil {
		return err
	}
	if len(u.Position) != h.setting.Dimension {
		return fmt.Errorf("node %s: position has %d entries, dimension is %d",
			u.Identifier, len(u.Position), h.setting.Dimension)
	}
	if err := h.setLift(u.Identifier, u); err != nil {
		return err
	}
	p.position = slices.Clone(u.Position)
	if u.Charge != nil {
		p.charge = maps.Clone(u.Charge)
	}
	return nil
}

// IndependentLiftedIdentifiers lists the active identifiers without
// redundancy. A composite object whose children are all active is reported
// instead of its children; otherwise the active children are reported.
func (h *TreeStateHandler) IndependentLiftedIdentifiers() []node.StateID {
	var ids []node.StateID
	for i, root := range h.roots {
		rootID := node.StateID{i}
		var children []node.StateID
		for j := range root.children {
			childID := node.StateID{i, j}
			if h.IsLifted(childID) {
				children = append(children, childID)
			}
		}
		if h.IsLifted(rootID) && len(children) == len(root.children) {
			ids = append(ids, rootID)
			continue
		}
		ids = append(ids, children...)
	}
	return ids
}

// ExtractActiveGlobalState returns one copied branch per independent active
// identifier, in identifier order.
func (h *TreeStateHandler) ExtractActiveGlobalState() ([]*node.Node, error) {
	if h.roots == nil {
		return nil, ErrNotInitialized
	}
	ids := h.IndependentLiftedIdentifiers()
	h.logger.Debug("independent active identifiers", zap.Stringers("identifiers", ids))
	branches := make([]*node.Node, 0, len(ids))
	for _, id := range ids {
		branch, err := h.ExtractFromGlobalState(id)
		if err != nil {
			return nil, err
		}
		branches = append(branches, branch)
	}
	return branches, nil
}

// ExtractGlobalState returns the full forest. Positions and velocities alias
// the stored slices and must not be modified.
func (h *TreeStateHandler) ExtractGlobalState() []*node.Node {
	forest := make([]*node.Node, len(h.roots))
	for i, root := range h.roots {
		forest[i] = h.subtree(node.StateID{i}, root, false)
	}
	return forest
}
