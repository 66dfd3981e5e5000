package scheduler

import (
	"go.uber.org/zap"

	"github.com/roach88/ecmc/internal/simtime"
)

// ListScheduler keeps pending events in a slice and scans it linearly.
//
// It is O(n) per request and exists as the reference behavior for
// HeapScheduler.
type ListScheduler[H comparable] struct {
	events []listEntry[H]
	guard  monotonicGuard
	logger *zap.Logger
}

type listEntry[H comparable] struct {
	time    simtime.Time
	handler H
}

// NewListScheduler creates an empty ListScheduler.
func NewListScheduler[H comparable](opts ...Option) *ListScheduler[H] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &ListScheduler[H]{
		guard:  newMonotonicGuard(o),
		logger: o.logger,
	}
}

// PushEvent implements Scheduler.
func (s *ListScheduler[H]) PushEvent(t simtime.Time, h H) {
	if t.IsInf() {
		return
	}
	s.TrashEvent(h)
	s.events = append(s.events, listEntry[H]{time: t, handler: h})
}

// GetSucceedingEvent implements Scheduler. Among equal times the event
// pushed first wins.
func (s *ListScheduler[H]) GetSucceedingEvent() (H, error) {
	var zero H
	if len(s.events) == 0 {
		return zero, newNoEventsError("ListScheduler")
	}
	smallest := 0
	for i := 1; i < len(s.events); i++ {
		if s.events[i].time.Less(s.events[smallest].time) {
			smallest = i
		}
	}
	entry := s.events[smallest]
	s.logger.Debug("smallest event time in the scheduler", zap.Stringer("time", entry.time))
	if err := s.guard.check(entry.time, handlerName(entry.handler)); err != nil {
		return zero, err
	}
	return entry.handler, nil
}

// TrashEvent implements Scheduler.
func (s *ListScheduler[H]) TrashEvent(h H) {
	for i := range s.events {
		if s.events[i].handler == h {
			s.events = append(s.events[:i], s.events[i+1:]...)
			return
		}
	}
}

// Len returns the number of pending events.
func (s *ListScheduler[H]) Len() int {
	return len(s.events)
}
