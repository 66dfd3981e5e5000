package handler

import (
	"math"

	"go.uber.org/zap"

	"github.com/roach88/ecmc/internal/errs"
	"github.com/roach88/ecmc/internal/node"
	"github.com/roach88/ecmc/internal/potential"
	"github.com/roach88/ecmc/internal/setting"
)

// ImageMode selects how periodic images enter the closed-form displacement.
type ImageMode int

const (
	// ImageModeSimple inverts the potential once for the nearest image.
	ImageModeSimple ImageMode = iota

	// ImageModeNextImage advances the separation image by image: whenever
	// the displacement reaches past the next image crossing, the separation
	// is clipped at half a box length and the inversion is repeated.
	ImageModeNextImage
)

func (m ImageMode) String() string {
	if m == ImageModeNextImage {
		return "next_image"
	}
	return "simple"
}

// TwoLeafUnitEventHandler computes events of a pair of leaves by inverting
// an invertible potential. The target unconditionally receives the active
// velocity.
type TwoLeafUnitEventHandler struct {
	leaves
	potential potential.InvertiblePotential
	rng       Random
	charge    string
	imageMode ImageMode
	logger    *zap.Logger
}

// NewTwoLeafUnitEventHandler creates the handler. The potential must take
// one separation; a charge name requires a potential of two charges.
func NewTwoLeafUnitEventHandler(s *setting.Setting, p potential.InvertiblePotential, rng Random,
	opts ...Option) (*TwoLeafUnitEventHandler, error) {
	const name = "TwoLeafUnitEventHandler"
	o := newOptions(opts)
	if p.NumberSeparationArguments() != 1 {
		return nil, errs.NewConfigurationError(name, "expects a potential which handles exactly one separation")
	}
	if o.charge != "" && p.NumberChargeArguments() != 2 {
		return nil, errs.NewConfigurationError(name,
			"charge %q given but the potential expects %d charges instead of 2", o.charge, p.NumberChargeArguments())
	}
	return &TwoLeafUnitEventHandler{
		leaves:    newLeaves(name, s),
		potential: p,
		rng:       rng,
		charge:    o.charge,
		imageMode: o.imageMode,
		logger:    o.logger,
	}, nil
}

// Arguments implements EventHandler.
func (h *TwoLeafUnitEventHandler) Arguments() Arguments {
	return Arguments{EventTime: 1, OutState: 0}
}

// SendEventTime implements EventHandler.
func (h *TwoLeafUnitEventHandler) SendEventTime(inState ...[]*node.Node) (EventTime, error) {
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
	active := h.activeUnit()
	target := h.leafNodes[h.activeIndex^1].Value
	separation := h.setting.PeriodicBoundaries.SeparationVector(active.Position, target.Position)
	charges := chargesOf(h.charge, h.potential.NumberChargeArguments(), h.leafNodes[0].Value, h.leafNodes[1].Value)

	var displacement float64
	if h.imageMode == ImageModeNextImage {
		displacement = h.displacementNextImage(active.Velocity, separation, charges)
	} else {
		displacement = h.displacement(active.Velocity, separation, charges)
		h.warnOnImageChange(active.Velocity, separation, displacement)
	}

	h.eventTime = active.TimeStamp.Add(displacement)
	h.timeSliceAll()
	h.phase = PhaseTimeRequested
	return EventTime{Time: h.eventTime}, nil
}

func (h *TwoLeafUnitEventHandler) displacement(velocity, separation, charges []float64) float64 {
	change := 0.0
	if h.potential.PotentialChangeRequired() {
		change = h.rng.ExpFloat64() / h.setting.Beta
	}
	return h.potential.Displacement(velocity, separation, charges, change)
}

func (h *TwoLeafUnitEventHandler) displacementNextImage(velocity, separation, charges []float64) float64 {
	halves := h.setting.SystemLengthsOverTwo
	// A deterministic potential that has not fired within one traversal of
	// the box along every moving axis never fires.
	traversal := 0.0
	for i, v := range velocity {
		if v != 0 {
			traversal = math.Max(traversal, 2*halves[i]/math.Abs(v))
		}
	}
	total := 0.0
	for {
		if !h.potential.PotentialChangeRequired() && total >= traversal {
			return math.Inf(1)
		}
		untilImage, axis := math.Inf(1), -1
		for i, v := range velocity {
			if v == 0 {
				continue
			}
			if t := separation[i]/v + halves[i]/math.Abs(v); t < untilImage {
				untilImage, axis = t, i
			}
		}
		displacement := h.displacement(velocity, separation, charges)
		if displacement <= untilImage {
			return total + displacement
		}
		total += untilImage
		for i := range separation {
			separation[i] -= untilImage * velocity[i]
		}
		separation[axis] = math.Copysign(halves[axis], velocity[axis])
	}
}

func (h *TwoLeafUnitEventHandler) warnOnImageChange(velocity, separation []float64, displacement float64) {
	if math.IsInf(displacement, 1) {
		return
	}
	for i, s := range separation {
		if math.Abs(s-velocity[i]*displacement) > h.setting.SystemLengthsOverTwo[i] {
			h.logger.Warn("event beyond the nearest periodic image",
				zap.Stringer("active", h.activeUnit().Identifier),
				zap.Float64("displacement", displacement))
			return
		}
	}
}

// SendOutState implements EventHandler.
func (h *TwoLeafUnitEventHandler) SendOutState(inState ...[]*node.Node) ([]*node.Node, error) {
	if err := h.expectArguments("SendOutState", len(inState), 0); err != nil {
		return nil, err
	}
	if err := h.requirePhase("SendOutState", PhaseTimeRequested); err != nil {
		return nil, err
	}
	h.exchange(h.leafNodes[h.activeIndex], h.leafNodes[h.activeIndex^1])
	h.phase = PhaseOutStateDelivered
	return h.state, nil
}
