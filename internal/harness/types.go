package harness

// TraceEvent is one committed event as read back from the run log.
type TraceEvent struct {
	Seq     int64   `json:"seq"`
	Time    float64 `json:"time"`
	Handler string  `json:"handler"`
	Kind    string  `json:"kind"`
}

// matches reports whether label names the event's kind or its handler.
func (e TraceEvent) matches(label string) bool {
	return e.Kind == label || e.Handler == label
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when the run ended as expected and every assertion held.
	Pass bool `json:"pass"`

	RunID string `json:"run_id"`

	// Trace contains every committed event in sequence order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failed assertions and unexpected run errors.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	Samples     int64   `json:"samples"`
	Unconfirmed int64   `json:"unconfirmed"`
	FinalTime   float64 `json:"final_time"`

	// Positions holds the final position of every root, indexed by root.
	Positions [][]float64 `json:"positions"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
