package potential

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/roach88/ecmc/internal/errs"
)

// DisplacedEvenPower is prefactor * (|s| - equilibrium)^power with an even
// power. It has a minimum shell at the equilibrium separation and is used as
// a bond potential.
type DisplacedEvenPower struct {
	equilibrium        float64
	equilibriumSquared float64
	power              int
	inversePower       float64
	prefactor          float64
	minimum            float64
}

// NewDisplacedEvenPower creates a displaced even-power potential.
func NewDisplacedEvenPower(equilibrium float64, power int, prefactor float64) (*DisplacedEvenPower, error) {
	const component = "DisplacedEvenPowerPotential"
	if power <= 0 || power%2 != 0 {
		return nil, errs.NewConfigurationError(component, "power must be > 0 and divisible by 2, got %d", power)
	}
	if prefactor <= 0 {
		return nil, errs.NewConfigurationError(component, "prefactor must be greater than 0.0, got %v", prefactor)
	}
	if equilibrium <= 0 {
		return nil, errs.NewConfigurationError(component,
			"equilibrium separation must be greater than 0.0, got %v", equilibrium)
	}
	p := &DisplacedEvenPower{
		equilibrium:        equilibrium,
		equilibriumSquared: equilibrium * equilibrium,
		power:              power,
		inversePower:       1 / float64(power),
		prefactor:          prefactor,
	}
	p.minimum = p.potential(equilibrium)
	return p, nil
}

// NumberSeparationArguments implements Potential.
func (*DisplacedEvenPower) NumberSeparationArguments() int { return 1 }

// NumberChargeArguments implements Potential.
func (*DisplacedEvenPower) NumberChargeArguments() int { return 0 }

// PotentialChangeRequired implements InvertiblePotential.
func (*DisplacedEvenPower) PotentialChangeRequired() bool { return true }

func (p *DisplacedEvenPower) scale(separation []float64) float64 {
	norm := floats.Norm(separation, 2)
	return -float64(p.power) * p.prefactor * math.Pow(norm-p.equilibrium, float64(p.power-1)) / norm
}

// Gradient implements Potential.
func (p *DisplacedEvenPower) Gradient(separations [][]float64, _ []float64) [][]float64 {
	gradient := make([]float64, len(separations[0]))
	floats.ScaleTo(gradient, p.scale(separations[0]), separations[0])
	return [][]float64{gradient}
}

// Derivative implements Potential.
func (p *DisplacedEvenPower) Derivative(velocity []float64, separations [][]float64, _ []float64) float64 {
	return p.scale(separations[0]) * floats.Dot(separations[0], velocity)
}

func (p *DisplacedEvenPower) potential(norm float64) float64 {
	return p.prefactor * math.Pow(norm-p.equilibrium, float64(p.power))
}

func (p *DisplacedEvenPower) invertInside(u float64) float64 {
	return p.equilibrium - math.Pow(u/p.prefactor, p.inversePower)
}

func (p *DisplacedEvenPower) invertOutside(u float64) float64 {
	return p.equilibrium + math.Pow(u/p.prefactor, p.inversePower)
}

// Displacement implements InvertiblePotential. The reference unit may start
// inside or outside the minimum shell and may pass through it.
func (p *DisplacedEvenPower) Displacement(velocity, separation []float64, _ []float64, potentialChange float64) float64 {
	vv := floats.Dot(velocity, velocity)
	ss := floats.Dot(separation, separation)
	sv := floats.Dot(separation, velocity)
	if ss >= p.equilibriumSquared {
		if sv <= 0 {
			return p.frontOutside(vv, ss, sv, p.potential(math.Sqrt(ss)), potentialChange)
		}
		return p.behindOutside(vv, ss, sv, potentialChange)
	}
	if sv <= 0 {
		return p.frontInside(vv, ss, sv, potentialChange)
	}
	return p.behindInside(vv, ss, sv, p.potential(math.Sqrt(ss)), potentialChange)
}

// frontOutside: outside the shell and moving away from the target.
func (p *DisplacedEvenPower) frontOutside(vv, ss, sv, current, potentialChange float64) float64 {
	r := p.invertOutside(current + potentialChange)
	sqrtTerm := sv*sv - vv*(ss-r*r)
	return (sv + math.Sqrt(sqrtTerm)) / vv
}

// frontInside: inside the shell and moving away, so the shell is crossed
// downhill first.
func (p *DisplacedEvenPower) frontInside(vv, ss, sv, potentialChange float64) float64 {
	sqrtTerm := sv*sv - vv*(ss-p.equilibriumSquared)
	d := (sv + math.Sqrt(sqrtTerm)) / vv
	return d + p.frontOutside(vv, p.equilibriumSquared, sv-d*vv, p.minimum, potentialChange)
}

// behindInside: inside the shell and approaching the target.
func (p *DisplacedEvenPower) behindInside(vv, ss, sv, current, potentialChange float64) float64 {
	maxDisplacement := sv / vv
	minimumSquared := ss - maxDisplacement*maxDisplacement*vv
	difference := p.potential(math.Sqrt(minimumSquared)) - current
	if potentialChange < difference {
		r := p.invertInside(current + potentialChange)
		sqrtTerm := sv*sv - vv*(ss-r*r)
		return (sv - math.Sqrt(sqrtTerm)) / vv
	}
	return maxDisplacement + p.frontInside(vv, minimumSquared, sv-maxDisplacement*vv, potentialChange-difference)
}

// behindOutside: outside the shell and approaching the target.
func (p *DisplacedEvenPower) behindOutside(vv, ss, sv, potentialChange float64) float64 {
	sqrtTerm := sv*sv - vv*(ss-p.equilibriumSquared)
	if sqrtTerm >= 0 {
		d := (sv - math.Sqrt(sqrtTerm)) / vv
		return d + p.behindInside(vv, p.equilibriumSquared, sv-d*vv, p.minimum, potentialChange)
	}
	d := sv / vv
	minimumSquared := ss - d*d*vv
	return d + p.frontOutside(vv, minimumSquared, sv-d*vv, p.potential(math.Sqrt(minimumSquared)), potentialChange)
}
