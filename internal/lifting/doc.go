// Package lifting chooses the next active unit after an event.
//
// A lifting collects one rate per candidate (the derivative of the factor
// potential along the current velocity for that candidate). The active
// candidate has a positive rate; candidates with non-positive rates are the
// possible successors. Different schemes map the recorded rates onto a
// successor differently, but all of them keep the global balance of the
// underlying Markov chain.
//
// Usage:
//
//	l.Reset()
//	for each candidate: l.Insert(rate, key, isActive)
//	next, err := l.GetActiveIdentifier()
package lifting
