package handler

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/ecmc/internal/potential"
	"github.com/roach88/ecmc/internal/setting"
)

// scriptedInvertible replays displacements and records every call. An
// exhausted script returns +Inf.
type scriptedInvertible struct {
	changeRequired bool
	displacements  []float64
	separations    [][]float64
	changes        []float64
	charges        [][]float64
}

func (p *scriptedInvertible) NumberSeparationArguments() int { return 1 }
func (p *scriptedInvertible) NumberChargeArguments() int     { return 2 }
func (p *scriptedInvertible) PotentialChangeRequired() bool  { return p.changeRequired }

func (p *scriptedInvertible) Derivative([]float64, [][]float64, []float64) float64 {
	panic(potential.ErrNotSupported)
}

func (p *scriptedInvertible) Gradient([][]float64, []float64) [][]float64 {
	panic(potential.ErrNotSupported)
}

func (p *scriptedInvertible) Displacement(_, separation []float64, charges []float64, change float64) float64 {
	p.separations = append(p.separations, slices.Clone(separation))
	p.charges = append(p.charges, slices.Clone(charges))
	p.changes = append(p.changes, change)
	if len(p.displacements) == 0 {
		return math.Inf(1)
	}
	d := p.displacements[0]
	p.displacements = p.displacements[1:]
	return d
}

// scriptedPotential replays derivatives and returns a constant gradient per
// separation.
type scriptedPotential struct {
	separations int
	derivatives []float64
	gradient    []float64
}

func (p *scriptedPotential) NumberSeparationArguments() int { return p.separations }
func (p *scriptedPotential) NumberChargeArguments() int     { return 0 }

func (p *scriptedPotential) Derivative([]float64, [][]float64, []float64) float64 {
	if len(p.derivatives) == 0 {
		panic("scriptedPotential: derivative script exhausted")
	}
	d := p.derivatives[0]
	p.derivatives = p.derivatives[1:]
	return d
}

func (p *scriptedPotential) Gradient(separations [][]float64, _ []float64) [][]float64 {
	gradients := make([][]float64, len(separations))
	for i := range gradients {
		gradients[i] = slices.Clone(p.gradient)
	}
	return gradients
}

type inserted struct {
	rate   float64
	key    any
	active bool
}

// fixedLifting records insertions and returns a preset successor.
type fixedLifting struct {
	next    any
	entries []inserted
	resets  int
}

func (l *fixedLifting) Reset() {
	l.resets++
	l.entries = nil
}

func (l *fixedLifting) Insert(rate float64, key any, isActive bool) error {
	l.entries = append(l.entries, inserted{rate: rate, key: key, active: isActive})
	return nil
}

func (l *fixedLifting) GetActiveIdentifier() (any, error) {
	return l.next, nil
}

// assertPositionInDelta compares positions up to periodic images.
func assertPositionInDelta(t *testing.T, s *setting.Setting, expected, actual []float64, delta float64) {
	t.Helper()
	for i, d := range s.PeriodicBoundaries.SeparationVector(expected, actual) {
		assert.InDelta(t, 0, d, delta, "component %d: expected %v, got %v", i, expected, actual)
	}
}
