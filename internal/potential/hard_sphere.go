package potential

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/roach88/ecmc/internal/errs"
)

// HardSphere is the infinitely repulsive interaction of two spheres of equal
// radius.
type HardSphere struct {
	diameterSquared float64
}

// NewHardSphere creates a hard-sphere potential.
func NewHardSphere(radius float64) (*HardSphere, error) {
	if radius <= 0 {
		return nil, errs.NewConfigurationError("HardSpherePotential", "radius must be greater than 0.0, got %v", radius)
	}
	return &HardSphere{diameterSquared: 4 * radius * radius}, nil
}

// NumberSeparationArguments implements Potential.
func (*HardSphere) NumberSeparationArguments() int { return 1 }

// NumberChargeArguments implements Potential.
func (*HardSphere) NumberChargeArguments() int { return 0 }

// PotentialChangeRequired implements InvertiblePotential.
func (*HardSphere) PotentialChangeRequired() bool { return false }

// Displacement returns the distance until contact, or +Inf when the spheres
// move apart or miss each other.
func (p *HardSphere) Displacement(velocity, separation []float64, _ []float64, _ float64) float64 {
	velocitySquared := floats.Dot(velocity, velocity)
	separationSquared := floats.Dot(separation, separation)
	vs := floats.Dot(velocity, separation)
	sqrtTerm := vs*vs - velocitySquared*(separationSquared-p.diameterSquared)
	if sqrtTerm < 0 || vs < 0 {
		return math.Inf(1)
	}
	return (vs - math.Sqrt(sqrtTerm)) / velocitySquared
}

// Gradient returns the separation itself. Only its direction is meaningful,
// which is all a lifting needs at contact.
func (*HardSphere) Gradient(separations [][]float64, _ []float64) [][]float64 {
	return [][]float64{append([]float64(nil), separations[0]...)}
}

// Derivative panics with ErrNotSupported.
func (*HardSphere) Derivative([]float64, [][]float64, []float64) float64 {
	panic(ErrNotSupported)
}
