package harness

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/roach88/ecmc/internal/node"
	"github.com/roach88/ecmc/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] t=%.12g %s %s\n", event.Seq, event.Time, event.Kind, event.Handler)
		}
	}

	return buf.String()
}

// assertTraceContains checks that some event matches the label and, when
// a time is given, happened at that time.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if !event.matches(assertion.Event) {
			continue
		}
		if assertion.Time == nil || within(event.Time, *assertion.Time, assertion.Tolerance) {
			return nil
		}
	}

	expected := assertion.Event
	if assertion.Time != nil {
		expected = fmt.Sprintf("%s at time %v ± %v", assertion.Event, *assertion.Time, assertion.Tolerance)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first occurrences of the labels appear
// in the given order. Other events may come in between.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		for _, label := range assertion.Events {
			if positions[label] == 0 && event.matches(label) {
				positions[label] = i + 1 // 1-indexed for readability
			}
		}
	}

	for _, label := range assertion.Events {
		if positions[label] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all events present: %v", assertion.Events),
				Actual:   fmt.Sprintf("missing event: %s", label),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Events); i++ {
		prev, curr := assertion.Events[i-1], assertion.Events[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", assertion.Events),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks how often events matching the label occur.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	var count int64
	for _, event := range trace {
		if event.matches(assertion.Event) {
			count++
		}
	}
	if ok, want := inBounds(count, assertion); !ok {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s occurrences of %s", want, assertion.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertSampleCount(result *Result, assertion Assertion) error {
	if ok, want := inBounds(result.Samples, assertion); !ok {
		return &AssertionError{
			Type:     AssertSampleCount,
			Expected: fmt.Sprintf("%s samples", want),
			Actual:   fmt.Sprintf("%d samples", result.Samples),
		}
	}
	return nil
}

func assertFinalTime(result *Result, assertion Assertion) error {
	if !within(result.FinalTime, *assertion.Time, assertion.Tolerance) {
		return &AssertionError{
			Type:     AssertFinalTime,
			Expected: fmt.Sprintf("final time %v ± %v", *assertion.Time, assertion.Tolerance),
			Actual:   fmt.Sprintf("final time %v", result.FinalTime),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFinalPosition compares the final position of a particle component by
// component.
func assertFinalPosition(result *Result, assertion Assertion) error {
	p := *assertion.Particle
	if p < 0 || p >= len(result.Positions) {
		return &AssertionError{
			Type:     AssertFinalPosition,
			Expected: fmt.Sprintf("particle %d", p),
			Actual:   fmt.Sprintf("%d particles", len(result.Positions)),
		}
	}
	actual := result.Positions[p]
	ok := len(actual) == len(assertion.Position)
	for i := 0; ok && i < len(actual); i++ {
		ok = within(actual[i], assertion.Position[i], assertion.Tolerance)
	}
	if !ok {
		return &AssertionError{
			Type:     AssertFinalPosition,
			Expected: fmt.Sprintf("particle %d at %v ± %v", p, assertion.Position, assertion.Tolerance),
			Actual:   fmt.Sprintf("particle %d at %v", p, actual),
		}
	}
	return nil
}

// assertTrajectory counts the stored samples of one particle in the run log.
func assertTrajectory(ctx context.Context, st *store.Store, runID string, assertion Assertion) error {
	id := node.StateID{*assertion.Particle}
	samples, err := st.ReadTrajectory(ctx, runID, id)
	if err != nil {
		return fmt.Errorf("read trajectory of %s: %w", id, err)
	}
	count := int64(len(samples))
	if ok, want := inBounds(count, assertion); !ok {
		return &AssertionError{
			Type:     AssertTrajectory,
			Expected: fmt.Sprintf("%s stored samples of %s", want, id),
			Actual:   fmt.Sprintf("%d stored samples", count),
		}
	}
	return nil
}

// inBounds checks n against Count, Min and Max and describes the
// expectation for error messages.
func inBounds(n int64, a Assertion) (bool, string) {
	if a.Count != nil {
		return n == *a.Count, fmt.Sprintf("exactly %d", *a.Count)
	}
	ok := true
	var parts []string
	if a.Min != nil {
		ok = ok && n >= *a.Min
		parts = append(parts, fmt.Sprintf("at least %d", *a.Min))
	}
	if a.Max != nil {
		ok = ok && n <= *a.Max
		parts = append(parts, fmt.Sprintf("at most %d", *a.Max))
	}
	return ok, strings.Join(parts, " and ")
}

func within(actual, expected, tolerance float64) bool {
	return math.Abs(actual-expected) <= tolerance
}

// AssertionContext provides the run log for assertions reading it.
type AssertionContext struct {
	Store *store.Store
	RunID string
	Ctx   context.Context
}

// EvaluateAssertions runs all assertions against the result and returns the
// error messages of the failed ones.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertSampleCount:
			err = assertSampleCount(result, assertion)
		case AssertFinalTime:
			err = assertFinalTime(result, assertion)
		case AssertFinalPosition:
			err = assertFinalPosition(result, assertion)
		case AssertTrajectory:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: trajectory requires a run log", i)
			} else {
				err = assertTrajectory(actx.Ctx, actx.Store, actx.RunID, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
