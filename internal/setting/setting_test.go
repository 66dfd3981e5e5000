package setting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ecmc/internal/errs"
)

func unitSquare(t *testing.T) *Setting {
	t.Helper()
	s, err := NewHypercuboid(HypercuboidConfig{
		SystemLengths:            []float64{1, 1},
		Beta:                     1,
		Dimension:                2,
		NumberOfRootNodes:        4,
		NumberOfNodesPerRootNode: 1,
		NumberOfNodeLevels:       1,
	})
	require.NoError(t, err)
	return s
}

func TestNewHypercuboid_Valid(t *testing.T) {
	s := unitSquare(t)
	assert.Equal(t, []float64{0.5, 0.5}, s.SystemLengthsOverTwo)
	assert.Equal(t, 2, s.Dimension)
	assert.NotNil(t, s.PeriodicBoundaries)
}

func TestNewHypercuboid_Invalid(t *testing.T) {
	base := HypercuboidConfig{
		SystemLengths:            []float64{1, 1},
		Beta:                     1,
		Dimension:                2,
		NumberOfRootNodes:        1,
		NumberOfNodesPerRootNode: 1,
		NumberOfNodeLevels:       1,
	}
	tests := []struct {
		name   string
		mutate func(*HypercuboidConfig)
	}{
		{"zero beta", func(c *HypercuboidConfig) { c.Beta = 0 }},
		{"zero dimension", func(c *HypercuboidConfig) { c.Dimension = 0 }},
		{"length count mismatch", func(c *HypercuboidConfig) { c.SystemLengths = []float64{1} }},
		{"negative length", func(c *HypercuboidConfig) { c.SystemLengths = []float64{1, -1} }},
		{"no roots", func(c *HypercuboidConfig) { c.NumberOfRootNodes = 0 }},
		{"three levels", func(c *HypercuboidConfig) { c.NumberOfNodeLevels = 3 }},
		{"one level with children", func(c *HypercuboidConfig) { c.NumberOfNodesPerRootNode = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.SystemLengths = append([]float64(nil), base.SystemLengths...)
			tt.mutate(&cfg)
			_, err := NewHypercuboid(cfg)
			require.Error(t, err)
			assert.True(t, errs.IsConfigurationError(err))
		})
	}
}

func TestNewHypercuboid_CopiesLengths(t *testing.T) {
	lengths := []float64{2, 3}
	s, err := NewHypercuboid(HypercuboidConfig{
		SystemLengths: lengths, Beta: 1, Dimension: 2,
		NumberOfRootNodes: 1, NumberOfNodesPerRootNode: 2, NumberOfNodeLevels: 2,
	})
	require.NoError(t, err)
	lengths[0] = 100
	assert.Equal(t, 2.0, s.SystemLengths[0])
}

func TestHypercuboid_CorrectPosition(t *testing.T) {
	b := unitSquare(t).PeriodicBoundaries
	assert.InDelta(t, 0.25, b.CorrectPositionEntry(1.25, 0), 1e-15)
	assert.InDelta(t, 0.75, b.CorrectPositionEntry(-0.25, 1), 1e-15)
	assert.InDelta(t, 0.5, b.CorrectPositionEntry(0.5, 0), 1e-15)

	position := []float64{-1.5, 2.25}
	b.CorrectPosition(position)
	assert.InDeltaSlice(t, []float64{0.5, 0.25}, position, 1e-15)
}

func TestHypercuboid_SeparationVector(t *testing.T) {
	b := unitSquare(t).PeriodicBoundaries
	// (0.1, 0.3) relative to (0.5, 0.9) wraps through the boundary in y.
	sep := b.SeparationVector([]float64{0.5, 0.9}, []float64{0.1, 0.3})
	assert.InDeltaSlice(t, []float64{-0.4, 0.4}, sep, 1e-13)

	sep = b.SeparationVector([]float64{0.1, 0.1}, []float64{0.3, 0.2})
	assert.InDeltaSlice(t, []float64{0.2, 0.1}, sep, 1e-15)
}

func TestHypercuboid_CorrectSeparation(t *testing.T) {
	b := unitSquare(t).PeriodicBoundaries
	sep := []float64{0.75, -0.75}
	b.CorrectSeparation(sep)
	assert.InDeltaSlice(t, []float64{-0.25, 0.25}, sep, 1e-15)
	assert.InDelta(t, -0.5, b.CorrectSeparationEntry(0.5, 0), 1e-15)
}

func TestHypercuboid_NextImage(t *testing.T) {
	b := unitSquare(t).PeriodicBoundaries
	assert.Equal(t, 1.25, b.NextImage(0.25, 1))
}

func TestRandomPosition(t *testing.T) {
	s, err := NewHypercuboid(HypercuboidConfig{
		SystemLengths: []float64{2, 4}, Beta: 1, Dimension: 2,
		NumberOfRootNodes: 1, NumberOfNodesPerRootNode: 1, NumberOfNodeLevels: 1,
	})
	require.NoError(t, err)
	position := s.RandomPosition(func() float64 { return 0.5 })
	assert.Equal(t, []float64{1, 2}, position)
}
