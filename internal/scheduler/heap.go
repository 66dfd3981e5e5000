package scheduler

import (
	"container/heap"

	"go.uber.org/zap"

	"github.com/roach88/ecmc/internal/simtime"
)

// HeapScheduler is a binary min-heap of candidate times with lazy deletion.
//
// Every handler owns a generation counter. Each heap entry records the
// counter value at insertion time; TrashEvent increments the counter, which
// turns all older entries of that handler stale without touching the heap.
// Stale entries are popped when they reach the root.
//
// Counters are bounded. When a trash would overflow a handler's counter, all
// entries of that handler are purged from the heap and the counter restarts
// at zero.
type HeapScheduler[H comparable] struct {
	entries     entryHeap[H]
	generations map[H]uint32
	pending     map[H]bool
	seq         uint64
	maxGen      uint32
	guard       monotonicGuard
	logger      *zap.Logger
}

// NewHeapScheduler creates an empty HeapScheduler.
func NewHeapScheduler[H comparable](opts ...Option) *HeapScheduler[H] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &HeapScheduler[H]{
		generations: make(map[H]uint32),
		pending:     make(map[H]bool),
		maxGen:      o.maxGeneration,
		guard:       newMonotonicGuard(o),
		logger:      o.logger,
	}
}

// PushEvent implements Scheduler. A pending event of h is replaced by
// invalidating it first.
func (s *HeapScheduler[H]) PushEvent(t simtime.Time, h H) {
	if t.IsInf() {
		return
	}
	if s.pending[h] {
		s.TrashEvent(h)
	}
	s.seq++
	heap.Push(&s.entries, heapEntry[H]{
		time:       t,
		handler:    h,
		generation: s.generations[h],
		seq:        s.seq,
	})
	s.pending[h] = true
}

// GetSucceedingEvent implements Scheduler.
func (s *HeapScheduler[H]) GetSucceedingEvent() (H, error) {
	var zero H
	for s.entries.Len() > 0 {
		root := s.entries.items[0]
		if root.generation < s.generations[root.handler] {
			heap.Pop(&s.entries)
			continue
		}
		s.logger.Debug("smallest event time in the scheduler", zap.Stringer("time", root.time))
		if err := s.guard.check(root.time, handlerName(root.handler)); err != nil {
			return zero, err
		}
		return root.handler, nil
	}
	return zero, newNoEventsError("HeapScheduler")
}

// TrashEvent implements Scheduler.
func (s *HeapScheduler[H]) TrashEvent(h H) {
	if !s.pending[h] {
		return
	}
	s.pending[h] = false
	if s.generations[h] >= s.maxGen {
		s.purge(h)
		s.generations[h] = 0
		return
	}
	s.generations[h]++
}

// Len returns the number of physically stored entries, stale ones included.
func (s *HeapScheduler[H]) Len() int {
	return s.entries.Len()
}

// purge physically removes every entry of h and restores the heap property.
func (s *HeapScheduler[H]) purge(h H) {
	kept := s.entries.items[:0]
	for _, e := range s.entries.items {
		if e.handler != h {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(s.entries.items); i++ {
		s.entries.items[i] = heapEntry[H]{}
	}
	s.entries.items = kept
	heap.Init(&s.entries)
	s.logger.Debug("purged scheduler entries after generation overflow", zap.String("handler", handlerName(h)))
}

type heapEntry[H comparable] struct {
	time       simtime.Time
	handler    H
	generation uint32
	seq        uint64
}

// entryHeap implements heap.Interface ordered by time, then insertion order.
type entryHeap[H comparable] struct {
	items []heapEntry[H]
}

func (h *entryHeap[H]) Len() int { return len(h.items) }

func (h *entryHeap[H]) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if !a.time.Equal(b.time) {
		return a.time.Less(b.time)
	}
	return a.seq < b.seq
}

func (h *entryHeap[H]) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *entryHeap[H]) Push(x any) { h.items = append(h.items, x.(heapEntry[H])) }

func (h *entryHeap[H]) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = heapEntry[H]{}
	h.items = old[:n-1]
	return item
}
