package engine

import (
	"context"
	"fmt"

	"github.com/roach88/ecmc/internal/node"
	"github.com/roach88/ecmc/internal/simtime"
)

// Kind classifies the handlers the engine mediates.
type Kind int

const (
	KindFactor Kind = iota
	KindSampling
	KindEndOfChain
	KindEndOfRun
	KindStartOfRun
)

// String returns the label used in logs, metrics and run logs.
func (k Kind) String() string {
	switch k {
	case KindFactor:
		return "factor"
	case KindSampling:
		return "sampling"
	case KindEndOfChain:
		return "end_of_chain"
	case KindEndOfRun:
		return "end_of_run"
	case KindStartOfRun:
		return "start_of_run"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k := KindFactor; k <= KindStartOfRun; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown handler kind %q", s)
}

// Event is one committed event.
type Event struct {
	Seq     int64
	Time    simtime.Time
	Handler string
	Kind    Kind
}

// Recorder persists the run log. Implemented by store.Store.
type Recorder interface {
	RecordEvent(ctx context.Context, runID string, ev Event) error
	RecordSample(ctx context.Context, runID string, seq int64, t simtime.Time, forest []*node.Node) error
}

// SampleSink receives the full global state at every sampling time. The
// forest aliases the tree state and is only valid during the call.
type SampleSink func(t simtime.Time, forest []*node.Node) error

// Summary describes a finished or interrupted run.
type Summary struct {
	RunID  string
	Events int64

	// Unconfirmed counts candidates a handler did not confirm. Piecewise
	// handlers also report the untested end of their window this way.
	Unconfirmed int64
	Samples     int64
	FinalTime   simtime.Time
}
