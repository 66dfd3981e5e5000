package scheduler

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/ecmc/internal/simtime"
)

// Scheduler returns the event handler with the globally smallest valid
// candidate time.
type Scheduler[H comparable] interface {
	// PushEvent registers t as the candidate time of h, replacing any
	// pending candidate. Infinite times are never scheduled.
	PushEvent(t simtime.Time, h H)

	// GetSucceedingEvent returns the handler owning the smallest valid time
	// without removing it.
	GetSucceedingEvent() (H, error)

	// TrashEvent invalidates the pending event of h, if any.
	TrashEvent(h H)
}

// Option configures a scheduler.
type Option func(*options)

type options struct {
	logger           *zap.Logger
	warnOnEqualTimes bool
	maxGeneration    uint32
}

func defaultOptions() options {
	return options{
		logger:        zap.NewNop(),
		maxGeneration: ^uint32(0),
	}
}

// WithLogger sets the logger used for debug output and equal-time warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithWarnOnEqualEventTimes logs a warning whenever the succeeding event
// time equals the previously returned one.
func WithWarnOnEqualEventTimes() Option {
	return func(o *options) {
		o.warnOnEqualTimes = true
	}
}

// monotonicGuard enforces that returned event times never decrease.
type monotonicGuard struct {
	last        simtime.Time
	lastHandler string
	warnOnEqual bool
	logger      *zap.Logger
}

func newMonotonicGuard(o options) monotonicGuard {
	return monotonicGuard{
		last:        simtime.NegInf,
		warnOnEqual: o.warnOnEqualTimes,
		logger:      o.logger,
	}
}

func (g *monotonicGuard) check(t simtime.Time, handler string) error {
	if g.warnOnEqual && t.Equal(g.last) {
		g.logger.Warn("succeeding event time equals the last returned event time",
			zap.Stringer("time", t),
			zap.String("last_handler", g.lastHandler),
			zap.String("handler", handler))
	}
	if t.Less(g.last) {
		return newTimeDecreasedError(g.last, g.lastHandler, t, handler)
	}
	g.last = t
	g.lastHandler = handler
	return nil
}

func handlerName(h any) string {
	if s, ok := h.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", h)
}
