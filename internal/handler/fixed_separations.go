package handler

import (
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/roach88/ecmc/internal/errs"
	"github.com/roach88/ecmc/internal/lifting"
	"github.com/roach88/ecmc/internal/node"
	"github.com/roach88/ecmc/internal/potential"
	"github.com/roach88/ecmc/internal/setting"
)

// LiftingKey identifies a lifting candidate of the fixed-separations
// handler: the leaf index, and whether the leaf continues with the reflected
// velocity.
type LiftingKey struct {
	Index     int
	Reflected bool
}

// FixedSeparationsPiecewiseConstantEventHandler handles a factor of several
// leaves whose potential depends on fixed separations between them, such as
// the bond of a composite object. A lifting decides which leaf continues
// the motion.
type FixedSeparationsPiecewiseConstantEventHandler struct {
	piecewiseConstant
	potential   potential.Potential
	lifting     lifting.Lifting
	separations []int
	charges     []float64
	reflect     bool
}

// NewFixedSeparationsPiecewiseConstantEventHandler creates the handler.
// separations lists pairs of leaf indices (reference, target); its length
// must be twice the number of separations the potential takes.
func NewFixedSeparationsPiecewiseConstantEventHandler(s *setting.Setting, p potential.Potential, l lifting.Lifting,
	rng Random, offset, maxDisplacement float64, separations []int,
	opts ...Option) (*FixedSeparationsPiecewiseConstantEventHandler, error) {
	const name = "FixedSeparationsPiecewiseConstantEventHandler"
	o := newOptions(opts)
	base, err := newPiecewiseConstant(name, s, rng, offset, maxDisplacement, o)
	if err != nil {
		return nil, err
	}
	if len(separations) == 0 || len(separations)%2 != 0 {
		return nil, errs.NewConfigurationError(name, "separation indices %v are not divisible into pairs", separations)
	}
	if p.NumberSeparationArguments() != len(separations)/2 {
		return nil, errs.NewConfigurationError(name,
			"potential expects %d separations, indices %v describe %d",
			p.NumberSeparationArguments(), separations, len(separations)/2)
	}
	for _, index := range separations {
		if index < 0 {
			return nil, errs.NewConfigurationError(name, "negative leaf index in %v", separations)
		}
	}
	charges := make([]float64, p.NumberChargeArguments())
	for i := range charges {
		charges[i] = 1
	}
	h := &FixedSeparationsPiecewiseConstantEventHandler{
		piecewiseConstant: base,
		potential:         p,
		lifting:           l,
		separations:       slices.Clone(separations),
		charges:           charges,
		reflect:           o.reflect,
	}
	h.derivative = h.activeDerivative
	h.bound = h.windowEndBound
	return h, nil
}

// leafGradients returns the gradient of the factor potential with respect
// to every leaf position.
func (h *FixedSeparationsPiecewiseConstantEventHandler) leafGradients(positions [][]float64) [][]float64 {
	b := h.setting.PeriodicBoundaries
	seps := make([][]float64, 0, len(h.separations)/2)
	for k := 0; k < len(h.separations); k += 2 {
		seps = append(seps, b.SeparationVector(positions[h.separations[k]], positions[h.separations[k+1]]))
	}
	perSeparation := h.potential.Gradient(seps, h.charges)

	gradients := make([][]float64, len(positions))
	for i := range gradients {
		gradients[i] = make([]float64, h.setting.Dimension)
	}
	for k, g := range perSeparation {
		floats.Add(gradients[h.separations[2*k]], g)
		floats.Sub(gradients[h.separations[2*k+1]], g)
	}
	return gradients
}

func (h *FixedSeparationsPiecewiseConstantEventHandler) activeDerivative(positions [][]float64) float64 {
	return floats.Dot(h.leafGradients(positions)[h.activeIndex], h.activeUnit().Velocity)
}

// SendEventTime implements EventHandler.
func (h *FixedSeparationsPiecewiseConstantEventHandler) SendEventTime(inState ...[]*node.Node) (EventTime, error) {
	if err := h.expectArguments("SendEventTime", len(inState), 1); err != nil {
		return EventTime{}, err
	}
	h.store(inState[0])
	if largest := slices.Max(h.separations); largest >= len(h.leafNodes) {
		return EventTime{}, h.errorf(ErrCodeInState, "separation index %d out of range for %d leaves",
			largest, len(h.leafNodes))
	}
	if err := h.extractActiveLeaf(); err != nil {
		return EventTime{}, err
	}
	return h.requestTime()
}

// SendOutState implements EventHandler. It returns nil when the candidate is
// not confirmed, which includes the untested end of the bounding window.
func (h *FixedSeparationsPiecewiseConstantEventHandler) SendOutState(inState ...[]*node.Node) ([]*node.Node, error) {
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

// lift hands the motion to the leaf chosen by the lifting. Every leaf is a
// candidate moving with the active velocity; with reflection enabled each
// leaf is also a candidate moving with the velocity reflected at the total
// gradient.
func (h *FixedSeparationsPiecewiseConstantEventHandler) lift() error {
	activeLeaf := h.leafNodes[h.activeIndex]
	velocity := activeLeaf.Value.Velocity
	gradients := h.leafGradients(h.positions())

	sumGradientSquared, sumVelocityDotGradient := 0.0, 0.0
	for _, g := range gradients {
		sumGradientSquared += floats.Dot(g, g)
		sumVelocityDotGradient += floats.Dot(velocity, g)
	}
	prefactor := 0.0
	if sumGradientSquared > 0 {
		prefactor = -2 * sumVelocityDotGradient / sumGradientSquared
	}

	h.lifting.Reset()
	reflected := make([][]float64, len(gradients))
	for i, g := range gradients {
		reflected[i] = slices.Clone(velocity)
		floats.AddScaled(reflected[i], prefactor, g)
		if err := h.lifting.Insert(floats.Dot(velocity, g), LiftingKey{Index: i}, i == h.activeIndex); err != nil {
			return err
		}
		if !h.reflect {
			continue
		}
		if err := h.lifting.Insert(floats.Dot(reflected[i], g), LiftingKey{Index: i, Reflected: true}, false); err != nil {
			return err
		}
	}
	chosen, err := h.lifting.GetActiveIdentifier()
	if err != nil {
		return err
	}
	key, ok := chosen.(LiftingKey)
	if !ok {
		return h.errorf(ErrCodeInState, "lifting returned %v of type %T", chosen, chosen)
	}
	if key.Index == h.activeIndex && !key.Reflected {
		return h.errorf(ErrCodeInState, "lifting kept the active leaf %s unchanged", activeLeaf.Value.Identifier)
	}

	newVelocity := velocity
	if key.Reflected {
		newVelocity = reflected[key.Index]
	}
	timeStamp := *activeLeaf.Value.TimeStamp
	negated := slices.Clone(velocity)
	floats.Scale(-1, negated)
	h.registerLeafChange(activeLeaf, negated)
	activeLeaf.Value.ClearMotion()

	target := h.leafNodes[key.Index]
	target.Value.SetMotion(slices.Clone(newVelocity), timeStamp)
	h.registerLeafChange(target, newVelocity)
	h.commitChanges()
	return nil
}
