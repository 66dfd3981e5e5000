package handler

import (
	"slices"

	"github.com/roach88/ecmc/internal/errs"
	"github.com/roach88/ecmc/internal/node"
	"github.com/roach88/ecmc/internal/setting"
	"github.com/roach88/ecmc/internal/simtime"
)

// PeriodicDirectionEndOfChainEventHandler ends a chain after a fixed chain
// time. The next chain starts from a randomly drawn unit on the same node
// level, moving along the next axis with the same speed.
type PeriodicDirectionEndOfChainEventHandler struct {
	leaves
	chainTime     float64
	rng           Random
	lastCommitted simtime.Time
}

// NewPeriodicDirectionEndOfChainEventHandler creates the handler.
func NewPeriodicDirectionEndOfChainEventHandler(s *setting.Setting, chainTime float64,
	rng Random) (*PeriodicDirectionEndOfChainEventHandler, error) {
	const name = "PeriodicDirectionEndOfChainEventHandler"
	if chainTime <= 0 {
		return nil, errs.NewConfigurationError(name, "chain time must be greater than 0.0, got %v", chainTime)
	}
	return &PeriodicDirectionEndOfChainEventHandler{
		leaves:    newLeaves(name, s),
		chainTime: chainTime,
		rng:       rng,
	}, nil
}

// Arguments implements EventHandler. SendEventTime takes the active global
// state; SendOutState takes it again plus the extract of the pending
// identifier.
func (h *PeriodicDirectionEndOfChainEventHandler) Arguments() Arguments {
	return Arguments{EventTime: 1, OutState: 2}
}

// SendEventTime implements EventHandler.
func (h *PeriodicDirectionEndOfChainEventHandler) SendEventTime(inState ...[]*node.Node) (EventTime, error) {
	if err := h.expectArguments("SendEventTime", len(inState), 1); err != nil {
		return EventTime{}, err
	}
	active := inState[0]
	if len(active) != 1 {
		return EventTime{}, h.errorf(ErrCodeInState, "expected a single independent active unit, got %d", len(active))
	}
	root := active[0]
	if root.Value.TimeStamp == nil {
		return EventTime{}, h.errorf(ErrCodeInState, "root %s of the active branch is not active", root.Value.Identifier)
	}
	current := *root.Value.TimeStamp
	h.eventTime = current.Add(h.lastCommitted.Sub(current) + h.chainTime)
	h.phase = PhaseTimeRequested
	return EventTime{Time: h.eventTime, Pending: [][]node.StateID{{h.nextIdentifier(root)}}}, nil
}

// nextIdentifier draws the next active identifier on the level of the
// current independent active unit.
func (h *PeriodicDirectionEndOfChainEventHandler) nextIdentifier(root *node.Node) node.StateID {
	s := h.setting
	if s.NumberOfNodeLevels == 1 || len(root.Children) == s.NumberOfNodesPerRootNode {
		return node.StateID{h.rng.IntN(s.NumberOfRootNodes)}
	}
	return node.StateID{h.rng.IntN(s.NumberOfRootNodes), h.rng.IntN(s.NumberOfNodesPerRootNode)}
}

// rotate moves the single nonzero velocity component to the next axis.
func (h *PeriodicDirectionEndOfChainEventHandler) rotate(velocity []float64) ([]float64, error) {
	direction := -1
	for d, v := range velocity {
		if v == 0 {
			continue
		}
		if direction >= 0 {
			return nil, h.errorf(ErrCodeInState, "velocity %v is not along a single axis", velocity)
		}
		direction = d
	}
	if direction < 0 {
		return nil, h.errorf(ErrCodeInState, "velocity vanishes")
	}
	rotated := make([]float64, len(velocity))
	rotated[(direction+1)%len(velocity)] = velocity[direction]
	return rotated, nil
}

type leafChange struct {
	leaf   *node.Node
	change []float64
}

// SendOutState implements EventHandler.
func (h *PeriodicDirectionEndOfChainEventHandler) SendOutState(inState ...[]*node.Node) ([]*node.Node, error) {
	if err := h.expectArguments("SendOutState", len(inState), 2); err != nil {
		return nil, err
	}
	if err := h.requirePhase("SendOutState", PhaseTimeRequested); err != nil {
		return nil, err
	}
	active, next := inState[0], inState[1]
	if len(active) != 1 || len(next) != 1 {
		return nil, h.errorf(ErrCodeInState, "expected one active and one new branch, got %d and %d",
			len(active), len(next))
	}
	h.lastCommitted = h.eventTime
	h.store(slices.Clone(active))
	h.timeSliceAll()

	oldVelocity := h.leafNodes[0].Value.Velocity
	for _, leaf := range h.leafNodes[1:] {
		if !slices.Equal(leaf.Value.Velocity, oldVelocity) {
			return nil, h.errorf(ErrCodeInState, "active leaves %s and %s move differently",
				h.leafNodes[0].Value.Identifier, leaf.Value.Identifier)
		}
	}
	newVelocity, err := h.rotate(oldVelocity)
	if err != nil {
		return nil, err
	}

	changes := make([]leafChange, len(h.leafNodes))
	old := make(map[string]int, len(h.leafNodes))
	for i, leaf := range h.leafNodes {
		change := slices.Clone(leaf.Value.Velocity)
		for d := range change {
			change[d] = -change[d]
		}
		changes[i] = leafChange{leaf: leaf, change: change}
		leaf.Value.Velocity = make([]float64, h.setting.Dimension)
		old[leaf.Value.Identifier.String()] = i
	}

	tree := next[0]
	existing := h.findRoot(tree.Value.Identifier)
	for _, leaf := range tree.Leaves() {
		if i, ok := old[leaf.Value.Identifier.String()]; ok {
			for d := range newVelocity {
				changes[i].change[d] += newVelocity[d]
			}
			h.leafNodes[i].Value.Velocity = slices.Clone(newVelocity)
			continue
		}
		if leaf.Value.Active() || leaf.Value.TimeStamp != nil {
			return nil, h.errorf(ErrCodeInState, "new active leaf %s is already active", leaf.Value.Identifier)
		}
		if existing != nil {
			parent := findNode(existing, leaf.Parent.Value.Identifier)
			if parent == nil {
				return nil, h.errorf(ErrCodeInState, "no parent for %s in the active branch", leaf.Value.Identifier)
			}
			parent.AddChild(leaf)
		}
		leaf.Value.SetMotion(slices.Clone(newVelocity), h.eventTime)
		changes = append(changes, leafChange{leaf: leaf, change: slices.Clone(newVelocity)})
	}
	if existing == nil {
		h.state = append(h.state, tree)
	}

	for _, leaf := range h.leafNodes {
		if vanished(leaf.Value.Velocity) {
			leaf.Value.ClearMotion()
		}
	}
	for _, c := range changes {
		h.registerLeafChange(c.leaf, c.change)
	}
	h.commitChanges()
	h.phase = PhaseOutStateDelivered
	return h.state, nil
}

func (h *PeriodicDirectionEndOfChainEventHandler) findRoot(id node.StateID) *node.Node {
	for _, root := range h.state {
		if root.Value.Identifier.Equal(id) {
			return root
		}
	}
	return nil
}

func findNode(root *node.Node, id node.StateID) *node.Node {
	var found *node.Node
	root.Walk(func(n *node.Node) {
		if found == nil && n.Value.Identifier.Equal(id) {
			found = n
		}
	})
	return found
}
