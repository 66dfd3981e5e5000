package setting

import (
	"slices"

	"github.com/roach88/ecmc/internal/errs"
)

// PeriodicBoundaries maps positions and separations back into the box.
type PeriodicBoundaries interface {
	// CorrectPosition wraps every entry of position in place.
	CorrectPosition(position []float64)

	// CorrectPositionEntry wraps a single coordinate along axis index.
	CorrectPositionEntry(entry float64, index int) float64

	// SeparationVector returns the shortest image of target - reference.
	SeparationVector(reference, target []float64) []float64

	// CorrectSeparation replaces every entry by its shortest image in place.
	CorrectSeparation(separation []float64)

	// CorrectSeparationEntry returns the shortest image of one separation
	// component along axis index.
	CorrectSeparationEntry(entry float64, index int) float64

	// NextImage shifts a coordinate by one box length along direction.
	NextImage(entry float64, direction int) float64
}

// Setting holds the physical parameters of a run.
type Setting struct {
	// Beta is the inverse temperature.
	Beta float64

	// Dimension is the number of spatial dimensions.
	Dimension int

	// SystemLengths are the box side lengths, one per dimension.
	SystemLengths []float64

	// SystemLengthsOverTwo caches half of each side length.
	SystemLengthsOverTwo []float64

	// NumberOfRootNodes is the number of trees in the forest.
	NumberOfRootNodes int

	// NumberOfNodesPerRootNode is the number of children per root (1 when
	// roots are point masses).
	NumberOfNodesPerRootNode int

	// NumberOfNodeLevels is 1 for point masses only, 2 for composite objects.
	NumberOfNodeLevels int

	// PeriodicBoundaries is the boundary condition of the box.
	PeriodicBoundaries PeriodicBoundaries
}

// HypercuboidConfig collects the parameters of NewHypercuboid.
type HypercuboidConfig struct {
	SystemLengths            []float64
	Beta                     float64
	Dimension                int
	NumberOfRootNodes        int
	NumberOfNodesPerRootNode int
	NumberOfNodeLevels       int
}

// NewHypercuboid builds a Setting for a box with periodic boundaries in
// every direction.
func NewHypercuboid(cfg HypercuboidConfig) (*Setting, error) {
	const component = "HypercuboidSetting"
	if cfg.Beta <= 0 {
		return nil, errs.NewConfigurationError(component, "beta must be greater than 0.0, got %v", cfg.Beta)
	}
	if cfg.Dimension <= 0 {
		return nil, errs.NewConfigurationError(component, "dimension must be greater than 0, got %d", cfg.Dimension)
	}
	if len(cfg.SystemLengths) != cfg.Dimension {
		return nil, errs.NewConfigurationError(component,
			"expected a system length for each of the %d dimensions, got %d", cfg.Dimension, len(cfg.SystemLengths))
	}
	for _, l := range cfg.SystemLengths {
		if l <= 0 {
			return nil, errs.NewConfigurationError(component, "system lengths must be greater than 0.0, got %v", l)
		}
	}
	if cfg.NumberOfRootNodes <= 0 {
		return nil, errs.NewConfigurationError(component, "number of root nodes must be greater than 0")
	}
	if cfg.NumberOfNodesPerRootNode <= 0 {
		return nil, errs.NewConfigurationError(component, "number of nodes per root node must be greater than 0")
	}
	if cfg.NumberOfNodeLevels != 1 && cfg.NumberOfNodeLevels != 2 {
		return nil, errs.NewConfigurationError(component, "number of node levels must be 1 or 2, got %d",
			cfg.NumberOfNodeLevels)
	}
	if cfg.NumberOfNodeLevels == 1 && cfg.NumberOfNodesPerRootNode != 1 {
		return nil, errs.NewConfigurationError(component,
			"a single node level requires exactly one node per root node")
	}

	lengths := slices.Clone(cfg.SystemLengths)
	halves := make([]float64, len(lengths))
	for i, l := range lengths {
		halves[i] = l / 2
	}
	return &Setting{
		Beta:                     cfg.Beta,
		Dimension:                cfg.Dimension,
		SystemLengths:            lengths,
		SystemLengthsOverTwo:     halves,
		NumberOfRootNodes:        cfg.NumberOfRootNodes,
		NumberOfNodesPerRootNode: cfg.NumberOfNodesPerRootNode,
		NumberOfNodeLevels:       cfg.NumberOfNodeLevels,
		PeriodicBoundaries:       &HypercuboidPeriodicBoundaries{lengths: lengths, halves: halves},
	}, nil
}

// RandomPosition draws a position uniformly inside the box. uniform returns
// values in [0, 1).
func (s *Setting) RandomPosition(uniform func() float64) []float64 {
	position := make([]float64, s.Dimension)
	for i := range position {
		position[i] = uniform() * s.SystemLengths[i]
	}
	return position
}
