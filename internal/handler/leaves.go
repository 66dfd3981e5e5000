package handler

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/roach88/ecmc/internal/node"
	"github.com/roach88/ecmc/internal/setting"
	"github.com/roach88/ecmc/internal/simtime"
)

// zeroVelocity is the component threshold below which a composite velocity
// counts as vanished.
const zeroVelocity = 1e-13

// leaves is the in-state bookkeeping shared by all handlers.
type leaves struct {
	protocol
	setting     *setting.Setting
	state       []*node.Node
	leafNodes   []*node.Node
	activeIndex int
	eventTime   simtime.Time
	changes     map[string][]float64
}

func newLeaves(name string, s *setting.Setting) leaves {
	return leaves{
		protocol: protocol{name: name},
		setting:  s,
		changes:  make(map[string][]float64),
	}
}

// store keeps the in-state and collects its leaves in order.
func (l *leaves) store(inState []*node.Node) {
	l.state = inState
	l.leafNodes = node.Leaves(inState)
	l.activeIndex = -1
}

// extractActiveLeaf finds the single leaf carrying a velocity.
func (l *leaves) extractActiveLeaf() error {
	l.activeIndex = -1
	for i, leaf := range l.leafNodes {
		if !leaf.Value.Active() {
			continue
		}
		if l.activeIndex >= 0 {
			return l.errorf(ErrCodeInState, "leaves %s and %s are both active",
				l.leafNodes[l.activeIndex].Value.Identifier, leaf.Value.Identifier)
		}
		l.activeIndex = i
	}
	if l.activeIndex < 0 {
		return l.errorf(ErrCodeInState, "no active leaf among %d leaves", len(l.leafNodes))
	}
	if l.leafNodes[l.activeIndex].Value.TimeStamp == nil {
		return l.errorf(ErrCodeInState, "active leaf %s has no time-stamp", l.activeUnit().Identifier)
	}
	return nil
}

func (l *leaves) activeUnit() *node.Unit {
	return l.leafNodes[l.activeIndex].Value
}

func (l *leaves) positions() [][]float64 {
	positions := make([][]float64, len(l.leafNodes))
	for i, leaf := range l.leafNodes {
		positions[i] = leaf.Value.Position
	}
	return positions
}

// timeSliceUnit moves an active unit to the event time. Infinite event
// times leave the unit untouched.
func (l *leaves) timeSliceUnit(u *node.Unit) {
	if u.TimeStamp == nil || l.eventTime.IsInf() {
		return
	}
	dt := l.eventTime.Sub(*u.TimeStamp)
	b := l.setting.PeriodicBoundaries
	for d := range u.Position {
		u.Position[d] = b.CorrectPositionEntry(u.Position[d]+u.Velocity[d]*dt, d)
	}
	ts := l.eventTime
	u.TimeStamp = &ts
}

func (l *leaves) timeSliceAll() {
	for _, root := range l.state {
		root.Walk(func(n *node.Node) { l.timeSliceUnit(n.Value) })
	}
}

// registerLeafChange adds the velocity change of a leaf to all of its
// ancestors, weighted by the product of weights below each ancestor.
func (l *leaves) registerLeafChange(leaf *node.Node, change []float64) {
	weighted := slices.Clone(change)
	child := leaf
	for parent := leaf.Parent; parent != nil; parent = parent.Parent {
		floats.Scale(child.Weight, weighted)
		key := parent.Value.Identifier.String()
		if acc, ok := l.changes[key]; ok {
			floats.Add(acc, weighted)
		} else {
			l.changes[key] = slices.Clone(weighted)
		}
		child = parent
	}
}

// commitChanges applies the registered ancestor changes to the in-state.
func (l *leaves) commitChanges() {
	for _, root := range l.state {
		root.Walk(func(n *node.Node) {
			change, ok := l.changes[n.Value.Identifier.String()]
			if !ok {
				return
			}
			u := n.Value
			if !u.Active() {
				u.SetMotion(slices.Clone(change), l.eventTime)
				return
			}
			l.timeSliceUnit(u)
			floats.Add(u.Velocity, change)
			if vanished(u.Velocity) {
				u.ClearMotion()
			}
		})
	}
	clear(l.changes)
}

func vanished(velocity []float64) bool {
	for _, v := range velocity {
		if math.Abs(v) >= zeroVelocity {
			return false
		}
	}
	return true
}

// exchange hands the motion of the active leaf to target unchanged.
func (l *leaves) exchange(active, target *node.Node) {
	a, t := active.Value, target.Value
	velocity := a.Velocity
	negated := slices.Clone(velocity)
	floats.Scale(-1, negated)
	l.registerLeafChange(active, negated)
	l.registerLeafChange(target, velocity)
	t.Velocity = velocity
	t.TimeStamp = a.TimeStamp
	a.ClearMotion()
	l.commitChanges()
}

// chargesOf returns the charges of a two-leaf factor. Without a charge name
// every charge is 1.0.
func chargesOf(name string, count int, one, two *node.Unit) []float64 {
	charges := make([]float64, count)
	if name == "" {
		for i := range charges {
			charges[i] = 1
		}
		return charges
	}
	return []float64{one.Charge[name], two.Charge[name]}
}

func speedOf(velocity []float64) float64 {
	return floats.Norm(velocity, 2)
}
