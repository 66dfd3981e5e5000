package potential

import (
	"fmt"
	"math"

	"github.com/roach88/ecmc/internal/errs"
	"github.com/roach88/ecmc/internal/setting"
)

// EstimatorOption configures an InnerPointEstimator.
type EstimatorOption func(*InnerPointEstimator)

// WithPrefactor sets the safety factor applied to sampled bounds. Positive
// upper bounds are multiplied by it, negative ones divided.
func WithPrefactor(prefactor float64) EstimatorOption {
	return func(e *InnerPointEstimator) { e.prefactor = prefactor }
}

// WithEmpiricalBounds clips every returned bound to [lower, upper].
func WithEmpiricalBounds(lower, upper float64) EstimatorOption {
	return func(e *InnerPointEstimator) {
		e.empiricalLower = lower
		e.empiricalUpper = upper
	}
}

// WithPointsPerSide sets the grid resolution. The grid has pointsPerSide+1
// points along every axis.
func WithPointsPerSide(n int) EstimatorOption {
	return func(e *InnerPointEstimator) { e.pointsPerSide = n }
}

// WithTargetCharge sets the charge of the target unit. The reference unit
// always carries charge 1.
func WithTargetCharge(charge float64) EstimatorOption {
	return func(e *InnerPointEstimator) { e.targetCharge = charge }
}

// WithBoundaries wraps every sampled separation into its shortest image.
func WithBoundaries(b setting.PeriodicBoundaries) EstimatorOption {
	return func(e *InnerPointEstimator) { e.boundaries = b }
}

// InnerPointEstimator samples the derivative of a potential on a regular grid
// inside the cell and scales the extreme values by a safety prefactor.
type InnerPointEstimator struct {
	potential      Potential
	prefactor      float64
	empiricalUpper float64
	empiricalLower float64
	pointsPerSide  int
	targetCharge   float64
	charges        []float64
	boundaries     setting.PeriodicBoundaries
}

// NewInnerPointEstimator creates an estimator for a potential of exactly one
// separation and zero or two charges.
func NewInnerPointEstimator(p Potential, opts ...EstimatorOption) (*InnerPointEstimator, error) {
	const component = "InnerPointEstimator"
	e := &InnerPointEstimator{
		potential:      p,
		prefactor:      1.5,
		empiricalUpper: math.Inf(1),
		empiricalLower: math.Inf(-1),
		pointsPerSide:  10,
		targetCharge:   1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if p.NumberSeparationArguments() != 1 {
		return nil, errs.NewConfigurationError(component, "expects a potential of exactly one separation")
	}
	switch p.NumberChargeArguments() {
	case 0:
		if e.targetCharge != 1 {
			return nil, errs.NewConfigurationError(component, "target charge given for a potential without charges")
		}
	case 2:
		e.charges = []float64{1, e.targetCharge}
	default:
		return nil, errs.NewConfigurationError(component, "expects a potential of zero or two charges")
	}
	if e.prefactor <= 0 {
		return nil, errs.NewConfigurationError(component, "prefactor must be greater than 0.0, got %v", e.prefactor)
	}
	if e.pointsPerSide <= 0 {
		return nil, errs.NewConfigurationError(component, "points per side must be greater than 0, got %d", e.pointsPerSide)
	}
	return e, nil
}

// DerivativeBound implements Estimator.
func (e *InnerPointEstimator) DerivativeBound(lower, upper, direction []float64, wantLower bool) ([]float64, error) {
	dim := len(lower)
	if len(upper) != dim || len(direction) != dim {
		return nil, fmt.Errorf("derivative bound: corners and direction must share dimension %d", dim)
	}
	maximum := math.Inf(-1)
	minimum := math.Inf(1)
	index := make([]int, dim)
	separation := make([]float64, dim)
	for {
		for i := range separation {
			separation[i] = lower[i] + (upper[i]-lower[i])*float64(index[i])/float64(e.pointsPerSide)
		}
		if e.boundaries != nil {
			e.boundaries.CorrectSeparation(separation)
		}
		d := e.potential.Derivative(direction, [][]float64{separation}, e.charges)
		maximum = math.Max(maximum, d)
		minimum = math.Min(minimum, d)
		if !e.advance(index) {
			break
		}
	}

	if maximum > 0 {
		maximum *= e.prefactor
	} else {
		maximum /= e.prefactor
	}
	if minimum > 0 {
		minimum /= e.prefactor
	} else {
		minimum *= e.prefactor
	}
	bounds := []float64{math.Min(e.empiricalUpper, math.Max(e.empiricalLower, maximum))}
	if wantLower {
		bounds = append(bounds, math.Max(e.empiricalLower, math.Min(e.empiricalUpper, minimum)))
	}
	return bounds, nil
}

// ChargeCorrectionFactor rescales a bound computed with the estimator's
// charges to the given pair of charges.
func (e *InnerPointEstimator) ChargeCorrectionFactor(activeCharge, targetCharge float64) float64 {
	if e.charges == nil {
		return 1
	}
	return activeCharge * targetCharge / e.targetCharge
}

// advance steps the odometer over the grid and reports whether a point is
// left.
func (e *InnerPointEstimator) advance(index []int) bool {
	for i := range index {
		if index[i] < e.pointsPerSide {
			index[i]++
			return true
		}
		index[i] = 0
	}
	return false
}
