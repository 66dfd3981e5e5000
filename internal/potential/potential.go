package potential

import "errors"

// ErrNotSupported is the panic value of operations a potential does not
// provide, such as the derivative of a hard-sphere interaction.
var ErrNotSupported = errors.New("operation not supported by this potential")

// Potential is the contract shared by every interaction.
type Potential interface {
	// NumberSeparationArguments is the number of separations the potential
	// depends on.
	NumberSeparationArguments() int

	// NumberChargeArguments is the number of charges the potential expects.
	NumberChargeArguments() int

	// Derivative returns the directional derivative along velocity for the
	// reference unit of the first separation.
	Derivative(velocity []float64, separations [][]float64, charges []float64) float64

	// Gradient returns one gradient per separation, each with respect to the
	// reference position of that separation.
	Gradient(separations [][]float64, charges []float64) [][]float64
}

// InvertiblePotential can compute the displacement until a given potential
// change is exhausted.
type InvertiblePotential interface {
	Potential

	// PotentialChangeRequired reports whether Displacement consumes a sampled
	// potential change. Hard interactions ignore it.
	PotentialChangeRequired() bool

	// Displacement returns how far the reference unit travels along velocity
	// before the potential rises by potentialChange. The result is +Inf when
	// no event occurs.
	Displacement(velocity, separation []float64, charges []float64, potentialChange float64) float64
}

// Estimator bounds the directional derivative of a potential over a cell.
type Estimator interface {
	// DerivativeBound returns an upper bound of the derivative along
	// direction for separations inside the box [lower, upper]. With
	// wantLower set, a lower bound follows as the second entry.
	DerivativeBound(lower, upper, direction []float64, wantLower bool) ([]float64, error)
}

func chargeProduct(charges []float64) float64 {
	product := 1.0
	for _, c := range charges {
		product *= c
	}
	return product
}
