package handler

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/ecmc/internal/node"
	"github.com/roach88/ecmc/internal/potential"
	"github.com/roach88/ecmc/internal/simtime"
)

// Arguments declares how many in-state arguments each protocol step takes.
type Arguments struct {
	// EventTime is the number of in-state arguments of SendEventTime: 0 for
	// none, 1 for the branches of the handler's factor or the active global
	// state.
	EventTime int

	// OutState is the number of in-state arguments of SendOutState. When it
	// exceeds the number of pending lists, the active global state comes
	// first.
	OutState int
}

// EventTime is the answer to a time request.
type EventTime struct {
	Time simtime.Time

	// Pending lists identifiers that must be extracted and passed to
	// SendOutState, one list per argument.
	Pending [][]node.StateID
}

// EventHandler is the protocol every handler implements.
type EventHandler interface {
	Arguments() Arguments
	SendEventTime(inState ...[]*node.Node) (EventTime, error)
	SendOutState(inState ...[]*node.Node) ([]*node.Node, error)
}

// UnconfirmedEventHandler can reject a candidate in SendOutState and propose
// a new one from its cached in-state.
type UnconfirmedEventHandler interface {
	EventHandler
	ResendEventTime() (EventTime, error)
}

// Random is the pseudo-random source consumed by handlers and liftings.
// *rand.Rand from math/rand/v2 satisfies it.
type Random interface {
	Float64() float64
	ExpFloat64() float64
	IntN(n int) int
}

// Phase is the protocol state of a handler.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseTimeRequested
	PhaseOutStateDelivered
	PhaseUnconfirmed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseTimeRequested:
		return "TIME_REQUESTED"
	case PhaseOutStateDelivered:
		return "OUT_STATE_DELIVERED"
	case PhaseUnconfirmed:
		return "UNCONFIRMED"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// ErrorCode classifies handler errors.
type ErrorCode string

const (
	// ErrCodeProtocol: a protocol step was called out of order or with the
	// wrong number of arguments.
	ErrCodeProtocol ErrorCode = "PROTOCOL"

	// ErrCodeInState: the in-state violates an invariant the handler relies
	// on, such as having exactly one active leaf.
	ErrCodeInState ErrorCode = "IN_STATE"
)

// ProtocolError is returned when the engine and a handler disagree.
type ProtocolError struct {
	Code    ErrorCode
	Handler string
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Handler, e.Message)
}

// IsProtocolError reports whether err is a protocol-order error.
func IsProtocolError(err error) bool {
	var e *ProtocolError
	return errors.As(err, &e) && e.Code == ErrCodeProtocol
}

// IsInStateError reports whether err is an in-state invariant violation.
func IsInStateError(err error) bool {
	var e *ProtocolError
	return errors.As(err, &e) && e.Code == ErrCodeInState
}

// protocol tracks the phase of one handler.
type protocol struct {
	name  string
	phase Phase
}

// Phase returns the current protocol phase.
func (p *protocol) Phase() Phase {
	return p.phase
}

func (p *protocol) errorf(code ErrorCode, format string, args ...any) error {
	return &ProtocolError{Code: code, Handler: p.name, Message: fmt.Sprintf(format, args...)}
}

func (p *protocol) expectArguments(op string, got, want int) error {
	if got != want {
		return p.errorf(ErrCodeProtocol, "%s expects %d in-state arguments, got %d", op, want, got)
	}
	return nil
}

func (p *protocol) requirePhase(op string, want Phase) error {
	if p.phase != want {
		return p.errorf(ErrCodeProtocol, "%s called in phase %s, expected %s", op, p.phase, want)
	}
	return nil
}

// Option configures a handler. Options that do not apply to a handler are
// ignored by it.
type Option func(*options)

type options struct {
	logger             *zap.Logger
	charge             string
	imageMode          ImageMode
	estimator          potential.Estimator
	reflect            bool
	firstEventTimeZero bool
}

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger for warnings and debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCharge makes two-leaf handlers read the named charge of both units
// instead of using 1.0.
func WithCharge(name string) Option {
	return func(o *options) { o.charge = name }
}

// WithImageMode selects how the closed-form two-leaf handler treats periodic
// images.
func WithImageMode(mode ImageMode) Option {
	return func(o *options) { o.imageMode = mode }
}

// WithEstimator makes the two-leaf piecewise-constant handler bound its rate
// with e over the candidate window instead of evaluating the derivative at
// the window ends.
func WithEstimator(e potential.Estimator) Option {
	return func(o *options) { o.estimator = e }
}

// WithVelocityReflection lets the fixed-separations handler hand the motion
// on with the velocity reflected at the total gradient.
func WithVelocityReflection() Option {
	return func(o *options) { o.reflect = true }
}

// WithFirstEventTimeZero makes the sampling handler fire at time zero before
// its first interval.
func WithFirstEventTimeZero() Option {
	return func(o *options) { o.firstEventTimeZero = true }
}
