package handler

import (
	"slices"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/roach88/ecmc/internal/errs"
	"github.com/roach88/ecmc/internal/node"
	"github.com/roach88/ecmc/internal/potential"
	"github.com/roach88/ecmc/internal/setting"
)

// piecewiseConstant samples candidate events from a rate that is constant
// over a window of maxDisplacement along the active velocity and bounds the
// true derivative of the factor there.
type piecewiseConstant struct {
	leaves
	rng             Random
	logger          *zap.Logger
	offset          float64
	maxDisplacement float64

	// rate is the bounding rate of the current candidate; tested is false
	// when the candidate is the window end and needs no accept test.
	rate   float64
	tested bool

	// derivative returns the true derivative along the active velocity.
	derivative func(positions [][]float64) float64

	// bound returns an upper bound of the derivative over the window between
	// the current positions and the advanced ones.
	bound func(positions, advanced [][]float64) (float64, error)
}

func newPiecewiseConstant(name string, s *setting.Setting, rng Random, offset, maxDisplacement float64,
	o options) (piecewiseConstant, error) {
	if maxDisplacement <= 0 {
		return piecewiseConstant{}, errs.NewConfigurationError(name,
			"max displacement must be greater than 0.0, got %v", maxDisplacement)
	}
	return piecewiseConstant{
		leaves:          newLeaves(name, s),
		rng:             rng,
		logger:          o.logger,
		offset:          offset,
		maxDisplacement: maxDisplacement,
	}, nil
}

func (p *piecewiseConstant) windowEndBound(positions, advanced [][]float64) (float64, error) {
	return max(p.derivative(positions), p.derivative(advanced)), nil
}

// requestTime draws the next candidate from the cached in-state.
func (p *piecewiseConstant) requestTime() (EventTime, error) {
	active := p.activeUnit()
	speed := speedOf(active.Velocity)
	window := p.maxDisplacement / speed

	positions := p.positions()
	advanced := slices.Clone(positions)
	moved := make([]float64, len(active.Position))
	for d := range moved {
		moved[d] = p.setting.PeriodicBoundaries.CorrectPositionEntry(active.Position[d]+active.Velocity[d]*window, d)
	}
	advanced[p.activeIndex] = moved

	bound, err := p.bound(positions, advanced)
	if err != nil {
		return EventTime{}, err
	}
	rate := bound + p.offset*speed
	change := p.rng.ExpFloat64() / p.setting.Beta

	displacement := window
	p.tested = false
	if rate > 0 && change/rate < window {
		displacement = change / rate
		p.rate = rate
		p.tested = true
	}
	p.eventTime = active.TimeStamp.Add(displacement)
	p.timeSliceAll()
	p.phase = PhaseTimeRequested
	return EventTime{Time: p.eventTime}, nil
}

// accept runs the accept test at the candidate positions.
func (p *piecewiseConstant) accept() bool {
	if !p.tested {
		return false
	}
	derivative := p.derivative(p.positions())
	if derivative <= 0 {
		return false
	}
	if derivative > p.rate {
		p.logger.Warn("derivative exceeds the bounding rate",
			zap.String("handler", p.name),
			zap.Float64("rate", p.rate),
			zap.Float64("derivative", derivative))
	}
	return p.rng.Float64()*p.rate < derivative
}

// ResendEventTime implements UnconfirmedEventHandler.
func (p *piecewiseConstant) ResendEventTime() (EventTime, error) {
	if err := p.requirePhase("ResendEventTime", PhaseUnconfirmed); err != nil {
		return EventTime{}, err
	}
	return p.requestTime()
}

// Arguments implements EventHandler.
func (p *piecewiseConstant) Arguments() Arguments {
	return Arguments{EventTime: 1, OutState: 0}
}

// TwoLeafUnitPiecewiseConstantEventHandler handles a pair of leaves whose
// potential cannot be inverted. An accepted event hands the active velocity
// to the other leaf.
type TwoLeafUnitPiecewiseConstantEventHandler struct {
	piecewiseConstant
	potential potential.Potential
	charge    string
	estimator potential.Estimator
	charges   []float64
}

// NewTwoLeafUnitPiecewiseConstantEventHandler creates the handler.
func NewTwoLeafUnitPiecewiseConstantEventHandler(s *setting.Setting, p potential.Potential, rng Random,
	offset, maxDisplacement float64, opts ...Option) (*TwoLeafUnitPiecewiseConstantEventHandler, error) {
	const name = "TwoLeafUnitPiecewiseConstantEventHandler"
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
	h := &TwoLeafUnitPiecewiseConstantEventHandler{
		piecewiseConstant: base,
		potential:         p,
		charge:            o.charge,
		estimator:         o.estimator,
	}
	h.derivative = h.activeDerivative
	h.bound = h.windowEndBound
	if h.estimator != nil {
		h.bound = h.estimatorBound
	}
	return h, nil
}

func (h *TwoLeafUnitPiecewiseConstantEventHandler) separation(positions [][]float64) []float64 {
	return h.setting.PeriodicBoundaries.SeparationVector(positions[h.activeIndex], positions[h.activeIndex^1])
}

func (h *TwoLeafUnitPiecewiseConstantEventHandler) activeDerivative(positions [][]float64) float64 {
	return h.potential.Derivative(h.activeUnit().Velocity, [][]float64{h.separation(positions)}, h.charges)
}

// chargeCorrector is implemented by estimators whose bounds were computed
// for reference charges.
type chargeCorrector interface {
	ChargeCorrectionFactor(activeCharge, targetCharge float64) float64
}

func (h *TwoLeafUnitPiecewiseConstantEventHandler) estimatorBound(positions, _ [][]float64) (float64, error) {
	velocity := h.activeUnit().Velocity
	speed := speedOf(velocity)
	start := h.separation(positions)
	end := slices.Clone(start)
	floats.AddScaled(end, -h.maxDisplacement/speed, velocity)
	lower := make([]float64, len(start))
	upper := make([]float64, len(start))
	for i := range start {
		lower[i], upper[i] = min(start[i], end[i]), max(start[i], end[i])
	}
	direction := slices.Clone(velocity)
	floats.Scale(1/speed, direction)

	bounds, err := h.estimator.DerivativeBound(lower, upper, direction, true)
	if err != nil {
		return 0, err
	}
	factor := 1.0
	if c, ok := h.estimator.(chargeCorrector); ok && len(h.charges) == 2 {
		factor = c.ChargeCorrectionFactor(h.charges[h.activeIndex], h.charges[h.activeIndex^1])
	}
	if factor >= 0 {
		return bounds[0] * factor * speed, nil
	}
	return bounds[1] * factor * speed, nil
}

// SendEventTime implements EventHandler.
func (h *TwoLeafUnitPiecewiseConstantEventHandler) SendEventTime(inState ...[]*node.Node) (EventTime, error) {
	if err := h.expectArguments("SendEventTime", len(inState), 1); err != nil {
		return EventTime{}, err
	}
	h.store(inState[0])
	if len(h.leafNodes) != 2 {
		return EventTime{}, h.errorf(ErrCodeInState, "expected 2 leaves, got %d", len(h.leafNodes))
	}
	if err := h.extractActiveLeaf(); err != nil {
		return EventTime{}, err
	}
	h.charges = chargesOf(h.charge, h.potential.NumberChargeArguments(), h.leafNodes[0].Value, h.leafNodes[1].Value)
	return h.requestTime()
}

// SendOutState implements EventHandler. It returns nil when the candidate is
// not confirmed: a rejected accept test, and also the end of the bounding
// window, where no test is run. The engine advances the state by
// resending in both cases, so Summary.Unconfirmed counts window ends as
// well as rejections and is not a rejection rate.
func (h *TwoLeafUnitPiecewiseConstantEventHandler) SendOutState(inState ...[]*node.Node) ([]*node.Node, error) {
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
	h.exchange(h.leafNodes[h.activeIndex], h.leafNodes[h.activeIndex^1])
	h.phase = PhaseOutStateDelivered
	return h.state, nil
}
