package potential

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/roach88/ecmc/internal/errs"
)

// InversePower is prefactor * c1 * c2 / |s|^power.
type InversePower struct {
	power      float64
	prefactor  float64
	twoOverPow float64
	powPlusTwo float64
}

// NewInversePower creates an inverse-power potential.
func NewInversePower(power, prefactor float64) (*InversePower, error) {
	if power <= 0 {
		return nil, errs.NewConfigurationError("InversePowerPotential", "power must be greater than 0.0, got %v", power)
	}
	if prefactor == 0 {
		return nil, errs.NewConfigurationError("InversePowerPotential", "prefactor must not be 0.0")
	}
	return &InversePower{
		power:      power,
		prefactor:  prefactor,
		twoOverPow: 2 / power,
		powPlusTwo: power + 2,
	}, nil
}

// NumberSeparationArguments implements Potential.
func (*InversePower) NumberSeparationArguments() int { return 1 }

// NumberChargeArguments implements Potential.
func (*InversePower) NumberChargeArguments() int { return 2 }

// PotentialChangeRequired implements InvertiblePotential.
func (*InversePower) PotentialChangeRequired() bool { return true }

func (p *InversePower) scale(separation []float64, charges []float64) float64 {
	norm := floats.Norm(separation, 2)
	return p.power / math.Pow(norm, p.powPlusTwo) * p.prefactor * chargeProduct(charges)
}

// Gradient implements Potential.
func (p *InversePower) Gradient(separations [][]float64, charges []float64) [][]float64 {
	gradient := make([]float64, len(separations[0]))
	floats.ScaleTo(gradient, p.scale(separations[0], charges), separations[0])
	return [][]float64{gradient}
}

// Derivative implements Potential.
func (p *InversePower) Derivative(velocity []float64, separations [][]float64, charges []float64) float64 {
	return p.scale(separations[0], charges) * floats.Dot(separations[0], velocity)
}

func (p *InversePower) potential(product, norm float64) float64 {
	return product / math.Pow(norm, p.power)
}

// Displacement implements InvertiblePotential for both signs of the charge
// product.
func (p *InversePower) Displacement(velocity, separation []float64, charges []float64, potentialChange float64) float64 {
	product := p.prefactor * chargeProduct(charges)
	if product > 0 {
		return p.displacementRepulsive(product, velocity, separation, potentialChange)
	}
	return p.displacementAttractive(product, velocity, separation, potentialChange)
}

func (p *InversePower) displacementRepulsive(product float64, velocity, separation []float64, potentialChange float64) float64 {
	sv := floats.Dot(separation, velocity)
	// Moving apart is downhill.
	if sv <= 0 {
		return math.Inf(1)
	}
	velocitySquared := floats.Dot(velocity, velocity)
	separationSquared := floats.Dot(separation, separation)
	maxDisplacement := sv / velocitySquared
	minimumSeparationSquared := separationSquared - maxDisplacement*maxDisplacement*velocitySquared
	maximum := p.potential(product, math.Sqrt(minimumSeparationSquared))
	current := p.potential(product, math.Sqrt(separationSquared))
	if potentialChange >= maximum-current {
		return math.Inf(1)
	}
	newSeparationSquared := math.Pow(product/(current+potentialChange), p.twoOverPow)
	sqrtTerm := sv*sv - velocitySquared*(separationSquared-newSeparationSquared)
	return (sv - math.Sqrt(sqrtTerm)) / velocitySquared
}

func (p *InversePower) displacementAttractive(product float64, velocity, separation []float64, potentialChange float64) float64 {
	velocitySquared := floats.Dot(velocity, velocity)
	separationSquared := floats.Dot(separation, separation)
	sv := floats.Dot(separation, velocity)
	total := 0.0
	// Approaching is downhill up to the closest point.
	if sv > 0 {
		d := sv / velocitySquared
		separationSquared -= d * d * velocitySquared
		sv -= d * velocitySquared
		total += d
	}
	current := p.potential(product, math.Sqrt(separationSquared))
	if current+potentialChange >= 0 {
		return math.Inf(1)
	}
	newSeparationSquared := math.Pow(product/(current+potentialChange), p.twoOverPow)
	sqrtTerm := sv*sv - velocitySquared*(separationSquared-newSeparationSquared)
	return total + (sv+math.Sqrt(sqrtTerm))/velocitySquared
}
