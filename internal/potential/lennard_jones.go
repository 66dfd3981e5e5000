package potential

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/roach88/ecmc/internal/errs"
)

// LennardJones is k * ((s/|r|)^12 - (s/|r|)^6), optionally cut off to zero
// beyond a radius. Its minimum -k/4 lies at the equilibrium separation
// s * 2^(1/6).
type LennardJones struct {
	prefactor     float64
	length        float64
	powerTwelve   float64
	powerSix      float64
	equilibrium   float64
	cutoff        float64
	cutoffSquared float64
}

// NewLennardJones creates a Lennard-Jones potential. A cutoff of 0.0
// disables the cutoff; any other cutoff must exceed the equilibrium
// separation.
func NewLennardJones(prefactor, characteristicLength, cutoff float64) (*LennardJones, error) {
	const name = "LennardJonesPotential"
	if prefactor <= 0 {
		return nil, errs.NewConfigurationError(name, "prefactor must be greater than 0.0, got %v", prefactor)
	}
	if characteristicLength <= 0 {
		return nil, errs.NewConfigurationError(name,
			"characteristic length must be greater than 0.0, got %v", characteristicLength)
	}
	p := &LennardJones{
		prefactor:   prefactor,
		length:      characteristicLength,
		powerTwelve: prefactor * math.Pow(characteristicLength, 12),
		powerSix:    -prefactor * math.Pow(characteristicLength, 6),
		equilibrium: characteristicLength * math.Pow(2, 1.0/6),
		cutoff:      math.Inf(1),
	}
	if cutoff != 0 {
		if cutoff <= p.equilibrium {
			return nil, errs.NewConfigurationError(name,
				"cutoff %v must be greater than the equilibrium separation %v", cutoff, p.equilibrium)
		}
		p.cutoff = cutoff
	}
	p.cutoffSquared = p.cutoff * p.cutoff
	return p, nil
}

// NumberSeparationArguments implements Potential.
func (*LennardJones) NumberSeparationArguments() int { return 1 }

// NumberChargeArguments implements Potential.
func (*LennardJones) NumberChargeArguments() int { return 0 }

// PotentialChangeRequired implements InvertiblePotential.
func (*LennardJones) PotentialChangeRequired() bool { return true }

// EquilibriumSeparation returns the separation of the potential minimum.
func (p *LennardJones) EquilibriumSeparation() float64 { return p.equilibrium }

func (p *LennardJones) scale(separation []float64) float64 {
	normSquared := floats.Dot(separation, separation)
	if normSquared > p.cutoffSquared {
		return 0
	}
	return 6*p.powerSix/math.Pow(normSquared, 4) + 12*p.powerTwelve/math.Pow(normSquared, 7)
}

// Gradient implements Potential.
func (p *LennardJones) Gradient(separations [][]float64, _ []float64) [][]float64 {
	gradient := make([]float64, len(separations[0]))
	floats.ScaleTo(gradient, p.scale(separations[0]), separations[0])
	return [][]float64{gradient}
}

// Derivative implements Potential.
func (p *LennardJones) Derivative(velocity []float64, separations [][]float64, _ []float64) float64 {
	return p.scale(separations[0]) * floats.Dot(separations[0], velocity)
}

func (p *LennardJones) potential(norm float64) float64 {
	if norm > p.cutoff {
		return 0
	}
	if norm == 0 {
		return math.Inf(1)
	}
	return p.powerSix/math.Pow(norm, 6) + p.powerTwelve/math.Pow(norm, 12)
}

// invertInside returns the separation below the equilibrium separation at
// which the uncut potential equals u.
func (p *LennardJones) invertInside(u float64) float64 {
	sixth := (1 + math.Sqrt(max(0, 1+4*u/p.prefactor))) / 2
	return p.length / math.Pow(sixth, 1.0/6)
}

// invertOutside is invertInside above the equilibrium separation; u must be
// negative.
func (p *LennardJones) invertOutside(u float64) float64 {
	sixth := (1 - math.Sqrt(max(0, 1+4*u/p.prefactor))) / 2
	return p.length / math.Pow(sixth, 1.0/6)
}

// Displacement implements InvertiblePotential. Along a straight line the
// separation first shrinks to the closest approach and then grows; the
// potential rises while the separation shrinks inside the equilibrium
// separation, and while it grows outside of it, including the jump to zero
// at the cutoff.
func (p *LennardJones) Displacement(velocity, separation []float64, _ []float64, potentialChange float64) float64 {
	velocitySquared := floats.Dot(velocity, velocity)
	separationSquared := floats.Dot(separation, separation)
	sv := floats.Dot(separation, velocity)
	// Travel time until the separation norm reaches r; sign picks the
	// approaching (-1) or receding (+1) branch.
	travel := func(r float64, sign float64) float64 {
		root := math.Sqrt(max(0, sv*sv-velocitySquared*(separationSquared-r*r)))
		return (sv + sign*root) / velocitySquared
	}

	norm := math.Sqrt(separationSquared)
	remaining := potentialChange
	from := max(norm, p.equilibrium)
	if sv > 0 {
		closest := math.Sqrt(max(0, separationSquared-sv*sv/velocitySquared))
		if closest < p.equilibrium {
			start := min(norm, p.equilibrium)
			gain := p.potential(closest) - p.potential(start)
			if remaining < gain {
				return travel(p.invertInside(p.potential(start)+remaining), -1)
			}
			remaining -= gain
		}
		from = max(closest, p.equilibrium)
	}

	current := p.potential(from)
	if remaining >= -current {
		return math.Inf(1)
	}
	r := min(p.invertOutside(current+remaining), p.cutoff)
	return travel(r, 1)
}
