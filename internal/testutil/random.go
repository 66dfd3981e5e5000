package testutil

import "fmt"

// ScriptedRandom replays fixed values in place of a pseudo-random source.
//
// Each method consumes its own queue. Running out of scripted values panics
// so that an unexpected draw fails the test loudly.
type ScriptedRandom struct {
	uniforms     []float64
	exponentials []float64
	ints         []int
}

// NewScriptedRandom creates an empty script. Use the With methods to fill it.
func NewScriptedRandom() *ScriptedRandom {
	return &ScriptedRandom{}
}

// WithFloat64 appends values returned by Float64.
func (r *ScriptedRandom) WithFloat64(values ...float64) *ScriptedRandom {
	r.uniforms = append(r.uniforms, values...)
	return r
}

// WithExpFloat64 appends values returned by ExpFloat64.
func (r *ScriptedRandom) WithExpFloat64(values ...float64) *ScriptedRandom {
	r.exponentials = append(r.exponentials, values...)
	return r
}

// WithIntN appends values returned by IntN.
func (r *ScriptedRandom) WithIntN(values ...int) *ScriptedRandom {
	r.ints = append(r.ints, values...)
	return r
}

// Float64 returns the next scripted uniform value.
func (r *ScriptedRandom) Float64() float64 {
	if len(r.uniforms) == 0 {
		panic("testutil: Float64 script exhausted")
	}
	v := r.uniforms[0]
	r.uniforms = r.uniforms[1:]
	return v
}

// ExpFloat64 returns the next scripted exponential value.
func (r *ScriptedRandom) ExpFloat64() float64 {
	if len(r.exponentials) == 0 {
		panic("testutil: ExpFloat64 script exhausted")
	}
	v := r.exponentials[0]
	r.exponentials = r.exponentials[1:]
	return v
}

// IntN returns the next scripted integer. It panics if the value is outside
// [0, n).
func (r *ScriptedRandom) IntN(n int) int {
	if len(r.ints) == 0 {
		panic("testutil: IntN script exhausted")
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	if v < 0 || v >= n {
		panic(fmt.Sprintf("testutil: scripted IntN value %d outside [0, %d)", v, n))
	}
	return v
}

// Remaining reports how many values are left in each queue.
func (r *ScriptedRandom) Remaining() (uniforms, exponentials, ints int) {
	return len(r.uniforms), len(r.exponentials), len(r.ints)
}
