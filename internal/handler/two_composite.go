package handler

import (
	"github.com/roach88/ecmc/internal/errs"
	"github.com/roach88/ecmc/internal/lifting"
	"github.com/roach88/ecmc/internal/node"
	"github.com/roach88/ecmc/internal/potential"
	"github.com/roach88/ecmc/internal/setting"
)

// TwoCompositeObjectPiecewiseConstantEventHandler handles the factor between
// two composite objects: the sum of the pair potential over every leaf of
// one composite and every leaf of the other. The in-state holds both full
// branches. An accepted event lifts the motion to a leaf of either
// composite chosen by the lifting.
type TwoCompositeObjectPiecewiseConstantEventHandler struct {
	piecewiseConstant
	potential potential.Potential
	lifting   lifting.Lifting
	charge    string

	// local and target are leaf indices of the composite carrying the
	// active leaf and of the other one.
	local  []int
	target []int
}

// NewTwoCompositeObjectPiecewiseConstantEventHandler creates the handler.
func NewTwoCompositeObjectPiecewiseConstantEventHandler(s *setting.Setting, p potential.Potential, l lifting.Lifting,
	rng Random, offset, maxDisplacement float64, opts ...Option) (*TwoCompositeObjectPiecewiseConstantEventHandler, error) {
	const name = "TwoCompositeObjectPiecewiseConstantEventHandler"
	o := newOptions(opts)
	base, err := newPiecewiseConstant(name, s, rng, offset, maxDisplacement, o)
	if err != nil {
		return nil, err
	}
	if p.NumberSeparationArguments() != 1 {
		return nil, errs.NewConfigurationError(name, "expects a potential which handles exactly one separation")
	}
	if o.charge != "" && p.NumberChargeArguments() != 2 {
		return nil, errs.NewConfigurationError(name,
			"charge %q given but the potential expects %d charges instead of 2", o.charge, p.NumberChargeArguments())
	}
	h := &TwoCompositeObjectPiecewiseConstantEventHandler{
		piecewiseConstant: base,
		potential:         p,
		lifting:           l,
		charge:            o.charge,
	}
	h.derivative = h.activeDerivative
	h.bound = h.windowEndBound
	return h, nil
}

// pairDerivative is the derivative of the pair potential between leaves i
// and j when leaf i moves with the active velocity.
func (h *TwoCompositeObjectPiecewiseConstantEventHandler) pairDerivative(positions [][]float64, i, j int) float64 {
	one, two := h.leafNodes[i].Value, h.leafNodes[j].Value
	separation := h.setting.PeriodicBoundaries.SeparationVector(positions[i], positions[j])
	charges := chargesOf(h.charge, h.potential.NumberChargeArguments(), one, two)
	return h.potential.Derivative(h.activeUnit().Velocity, [][]float64{separation}, charges)
}

func (h *TwoCompositeObjectPiecewiseConstantEventHandler) activeDerivative(positions [][]float64) float64 {
	sum := 0.0
	for _, j := range h.target {
		sum += h.pairDerivative(positions, h.activeIndex, j)
	}
	return sum
}

// SendEventTime implements EventHandler. The single in-state argument holds
// the two composite branches.
func (h *TwoCompositeObjectPiecewiseConstantEventHandler) SendEventTime(inState ...[]*node.Node) (EventTime, error) {
	if err := h.expectArguments("SendEventTime", len(inState), 1); err != nil {
		return EventTime{}, err
	}
	if len(inState[0]) != 2 {
		return EventTime{}, h.errorf(ErrCodeInState, "expected 2 composite branches, got %d", len(inState[0]))
	}
	h.store(inState[0])
	if err := h.extractActiveLeaf(); err != nil {
		return EventTime{}, err
	}

	activeRoot := h.leafNodes[h.activeIndex].Root()
	h.local, h.target = h.local[:0], h.target[:0]
	for i, leaf := range h.leafNodes {
		if leaf.Root() == activeRoot {
			h.local = append(h.local, i)
		} else {
			h.target = append(h.target, i)
		}
	}
	if len(h.target) == 0 {
		return EventTime{}, h.errorf(ErrCodeInState, "both branches belong to composite %s",
			activeRoot.Value.Identifier)
	}
	return h.requestTime()
}

// SendOutState implements EventHandler. It returns nil when the candidate is
// not confirmed, which includes the untested end of the bounding window.
func (h *TwoCompositeObjectPiecewiseConstantEventHandler) SendOutState(inState ...[]*node.Node) ([]*node.Node, error) {
	if err := h.expectArguments("SendOutState", len(inState), 0); err != nil {
		return nil, err
	}
	if err := h.requirePhase("SendOutState", PhaseTimeRequested); err != nil {
		return nil, err
	}
	if !h.accept() {
		h.phase = PhaseUnconfirmed
		return nil, nil
	}
	if err := h.lift(); err != nil {
		return nil, err
	}
	h.phase = PhaseOutStateDelivered
	return h.state, nil
}

// lift fills the lifting with the factor derivative of every leaf if it
// moved with the active velocity. The composite with the lower root index
// is inserted first.
func (h *TwoCompositeObjectPiecewiseConstantEventHandler) lift() error {
	positions := h.positions()
	rates := make([]float64, len(h.leafNodes))
	for _, i := range h.local {
		for _, j := range h.target {
			d := h.pairDerivative(positions, i, j)
			rates[i] += d
			rates[j] -= d
		}
	}

	h.lifting.Reset()
	first, second := h.local, h.target
	if h.leafNodes[h.target[0]].Root().Value.Identifier[0] < h.leafNodes[h.local[0]].Root().Value.Identifier[0] {
		first, second = second, first
	}
	for _, group := range [][]int{first, second} {
		for _, i := range group {
			if err := h.lifting.Insert(rates[i], i, i == h.activeIndex); err != nil {
				return err
			}
		}
	}

	chosen, err := h.lifting.GetActiveIdentifier()
	if err != nil {
		return err
	}
	index, ok := chosen.(int)
	if !ok || index < 0 || index >= len(h.leafNodes) {
		return h.errorf(ErrCodeInState, "lifting returned %v of type %T", chosen, chosen)
	}
	if index == h.activeIndex {
		return h.errorf(ErrCodeInState, "lifting kept the active leaf %s", h.activeUnit().Identifier)
	}
	h.exchange(h.leafNodes[h.activeIndex], h.leafNodes[index])
	return nil
}
