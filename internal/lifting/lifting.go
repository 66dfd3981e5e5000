package lifting

import "math"

// Uniform is the source of uniform random numbers in [0, 1).
type Uniform interface {
	Float64() float64
}

// Lifting is the contract of every lifting scheme.
type Lifting interface {
	// Reset forgets every inserted rate.
	Reset()

	// Insert records the rate of a candidate. The active candidate must
	// have a positive rate.
	Insert(rate float64, key any, isActive bool) error

	// GetActiveIdentifier returns the key of the successor.
	GetActiveIdentifier() (any, error)
}

// recorder holds the bookkeeping shared by all schemes.
type recorder struct {
	rng            Uniform
	negativeRates  []float64
	keys           []any
	randomPosition float64
	sumPositive    float64
	activeRecorded bool
}

func (r *recorder) Reset() {
	r.negativeRates = r.negativeRates[:0]
	r.keys = r.keys[:0]
	r.randomPosition = 0
	r.sumPositive = 0
	r.activeRecorded = false
}

func (r *recorder) Insert(rate float64, key any, isActive bool) error {
	if rate > 0 {
		r.sumPositive += rate
		if isActive {
			r.activeRecorded = true
			r.randomPosition += r.rng.Float64() * rate
		} else if !r.activeRecorded {
			r.randomPosition += rate
		}
		return nil
	}
	if isActive {
		return newLiftingSchemeError("active candidate %v has non-positive rate %v", key, rate)
	}
	r.negativeRates = append(r.negativeRates, -rate)
	r.keys = append(r.keys, key)
	return nil
}

func (r *recorder) check() error {
	if !r.activeRecorded {
		return newLiftingSchemeError("active unit has not been recorded")
	}
	if len(r.keys) == 0 {
		return newLiftingSchemeError("no candidate with a non-positive rate")
	}
	return nil
}

// pick walks the negative rates cumulatively and returns the first key whose
// running sum reaches position. Rounding may leave position just above the
// total; the last key is returned then.
func (r *recorder) pick(position float64) any {
	sum := 0.0
	for i, rate := range r.negativeRates {
		sum += rate
		if position <= sum {
			return r.keys[i]
		}
	}
	return r.keys[len(r.keys)-1]
}

// InsideFirstLifting places the active candidate inside the stack of
// positive rates and hands the motion to the negative rate at the same
// height. Candidates inserted before the active one come first.
type InsideFirstLifting struct {
	recorder
}

// NewInsideFirst creates an inside-first lifting drawing from rng.
func NewInsideFirst(rng Uniform) *InsideFirstLifting {
	return &InsideFirstLifting{recorder{rng: rng}}
}

// GetActiveIdentifier implements Lifting.
func (l *InsideFirstLifting) GetActiveIdentifier() (any, error) {
	if err := l.check(); err != nil {
		return nil, err
	}
	return l.pick(l.randomPosition), nil
}

// balanceTolerance is the largest admitted mismatch between the sums of
// positive and negative rates.
const balanceTolerance = 1e-11

// RatioLifting picks each successor with probability proportional to its
// rate.
type RatioLifting struct {
	recorder
}

// NewRatio creates a ratio lifting drawing from rng.
func NewRatio(rng Uniform) *RatioLifting {
	return &RatioLifting{recorder{rng: rng}}
}

// GetActiveIdentifier implements Lifting.
func (l *RatioLifting) GetActiveIdentifier() (any, error) {
	if err := l.check(); err != nil {
		return nil, err
	}
	sumNegative := 0.0
	for _, rate := range l.negativeRates {
		sumNegative += rate
	}
	if math.Abs(l.sumPositive-sumNegative) >= balanceTolerance {
		return nil, newLiftingSchemeError("positive rates %v and negative rates %v do not balance",
			l.sumPositive, sumNegative)
	}
	return l.pick(l.rng.Float64() * sumNegative), nil
}
