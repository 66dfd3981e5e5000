package setting

import "math"

// HypercuboidPeriodicBoundaries wraps coordinates into [0, L) per axis and
// separations into [-L/2, L/2).
type HypercuboidPeriodicBoundaries struct {
	lengths []float64
	halves  []float64
}

// CorrectPosition implements PeriodicBoundaries.
func (b *HypercuboidPeriodicBoundaries) CorrectPosition(position []float64) {
	for i, entry := range position {
		position[i] = b.CorrectPositionEntry(entry, i)
	}
}

// CorrectPositionEntry implements PeriodicBoundaries.
func (b *HypercuboidPeriodicBoundaries) CorrectPositionEntry(entry float64, index int) float64 {
	return floorMod(entry, b.lengths[index])
}

// SeparationVector implements PeriodicBoundaries.
func (b *HypercuboidPeriodicBoundaries) SeparationVector(reference, target []float64) []float64 {
	separation := make([]float64, len(reference))
	for i := range reference {
		separation[i] = b.CorrectSeparationEntry(target[i]-reference[i], i)
	}
	return separation
}

// CorrectSeparation implements PeriodicBoundaries.
func (b *HypercuboidPeriodicBoundaries) CorrectSeparation(separation []float64) {
	for i, entry := range separation {
		separation[i] = b.CorrectSeparationEntry(entry, i)
	}
}

// CorrectSeparationEntry implements PeriodicBoundaries.
func (b *HypercuboidPeriodicBoundaries) CorrectSeparationEntry(entry float64, index int) float64 {
	return floorMod(entry+b.halves[index], b.lengths[index]) - b.halves[index]
}

// NextImage implements PeriodicBoundaries.
func (b *HypercuboidPeriodicBoundaries) NextImage(entry float64, direction int) float64 {
	return entry + b.lengths[direction]
}

// floorMod returns x mod m with the sign of m.
func floorMod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	return r
}
