package sim

import (
	"math"
)

// LatticePositions places count points on a simple cubic lattice filling a
// box of the given lengths. Every axis carries the same number of sites;
// sites are centred in their cells and filled in row-major order.
func LatticePositions(count int, lengths []float64) [][]float64 {
	dim := len(lengths)
	// The truncated root is at most one short.
	perAxis := max(1, int(math.Pow(float64(count), 1/float64(dim))))
	for pow(perAxis, dim) < count {
		perAxis++
	}
	positions := make([][]float64, count)
	index := make([]int, dim)
	for i := range positions {
		p := make([]float64, dim)
		for d := range p {
			spacing := lengths[d] / float64(perAxis)
			p[d] = (float64(index[d]) + 0.5) * spacing
		}
		positions[i] = p
		for d := dim - 1; d >= 0; d-- {
			index[d]++
			if index[d] < perAxis {
				break
			}
			index[d] = 0
		}
	}
	return positions
}

func pow(base, exp int) int {
	out := 1
	for range exp {
		out *= base
	}
	return out
}
