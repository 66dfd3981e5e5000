package handler

import (
	"slices"

	"go.uber.org/zap"

	"github.com/roach88/ecmc/internal/errs"
	"github.com/roach88/ecmc/internal/node"
	"github.com/roach88/ecmc/internal/setting"
	"github.com/roach88/ecmc/internal/simtime"
)

// FixedIntervalSamplingEventHandler fires at multiples of a fixed interval.
// Its out-state is the active global state time-sliced to the sampling
// time.
type FixedIntervalSamplingEventHandler struct {
	leaves
	interval  float64
	firstZero bool
	requested bool
}

// NewFixedIntervalSamplingEventHandler creates the handler.
func NewFixedIntervalSamplingEventHandler(s *setting.Setting, interval float64,
	opts ...Option) (*FixedIntervalSamplingEventHandler, error) {
	const name = "FixedIntervalSamplingEventHandler"
	if interval <= 0 {
		return nil, errs.NewConfigurationError(name, "sampling interval must be greater than 0.0, got %v", interval)
	}
	o := newOptions(opts)
	return &FixedIntervalSamplingEventHandler{
		leaves:    newLeaves(name, s),
		interval:  interval,
		firstZero: o.firstEventTimeZero,
	}, nil
}

// Arguments implements EventHandler.
func (h *FixedIntervalSamplingEventHandler) Arguments() Arguments {
	return Arguments{EventTime: 0, OutState: 1}
}

// SendEventTime implements EventHandler.
func (h *FixedIntervalSamplingEventHandler) SendEventTime(inState ...[]*node.Node) (EventTime, error) {
	if err := h.expectArguments("SendEventTime", len(inState), 0); err != nil {
		return EventTime{}, err
	}
	if h.requested || !h.firstZero {
		h.eventTime = h.eventTime.Add(h.interval)
	}
	h.requested = true
	h.phase = PhaseTimeRequested
	return EventTime{Time: h.eventTime}, nil
}

// SendOutState implements EventHandler.
func (h *FixedIntervalSamplingEventHandler) SendOutState(inState ...[]*node.Node) ([]*node.Node, error) {
	if err := h.expectArguments("SendOutState", len(inState), 1); err != nil {
		return nil, err
	}
	if err := h.requirePhase("SendOutState", PhaseTimeRequested); err != nil {
		return nil, err
	}
	h.store(inState[0])
	h.timeSliceAll()
	h.phase = PhaseOutStateDelivered
	return h.state, nil
}

// FinalTimeEndOfRunEventHandler ends the run at a fixed time.
type FinalTimeEndOfRunEventHandler struct {
	leaves
}

// NewFinalTimeEndOfRunEventHandler creates the handler. An end time of zero
// is allowed but stops the run immediately.
func NewFinalTimeEndOfRunEventHandler(s *setting.Setting, endTime float64,
	opts ...Option) (*FinalTimeEndOfRunEventHandler, error) {
	const name = "FinalTimeEndOfRunEventHandler"
	if !(endTime >= 0) {
		return nil, errs.NewConfigurationError(name, "end of run time must be >= 0.0, got %v", endTime)
	}
	o := newOptions(opts)
	if endTime == 0 {
		o.logger.Warn("end of run time is 0.0, the run stops immediately", zap.String("handler", name))
	}
	h := &FinalTimeEndOfRunEventHandler{leaves: newLeaves(name, s)}
	h.eventTime = simtime.FromFloat(endTime)
	return h, nil
}

// Arguments implements EventHandler.
func (h *FinalTimeEndOfRunEventHandler) Arguments() Arguments {
	return Arguments{EventTime: 0, OutState: 1}
}

// SendEventTime implements EventHandler.
func (h *FinalTimeEndOfRunEventHandler) SendEventTime(inState ...[]*node.Node) (EventTime, error) {
	if err := h.expectArguments("SendEventTime", len(inState), 0); err != nil {
		return EventTime{}, err
	}
	h.phase = PhaseTimeRequested
	return EventTime{Time: h.eventTime}, nil
}

// SendOutState implements EventHandler. The active global state is
// time-sliced to the end time.
func (h *FinalTimeEndOfRunEventHandler) SendOutState(inState ...[]*node.Node) ([]*node.Node, error) {
	if err := h.expectArguments("SendOutState", len(inState), 1); err != nil {
		return nil, err
	}
	if err := h.requirePhase("SendOutState", PhaseTimeRequested); err != nil {
		return nil, err
	}
	h.store(inState[0])
	h.timeSliceAll()
	h.phase = PhaseOutStateDelivered
	return h.state, nil
}

// InitialChainStartOfRunEventHandler activates one branch at time zero.
type InitialChainStartOfRunEventHandler struct {
	leaves
	identifier node.StateID
	velocity   []float64
}

// NewInitialChainStartOfRunEventHandler creates the handler. Every leaf
// below id starts moving with velocity.
func NewInitialChainStartOfRunEventHandler(s *setting.Setting, id node.StateID,
	velocity []float64) (*InitialChainStartOfRunEventHandler, error) {
	const name = "InitialChainStartOfRunEventHandler"
	if len(velocity) != s.Dimension {
		return nil, errs.NewConfigurationError(name,
			"initial velocity has %d entries, dimension is %d", len(velocity), s.Dimension)
	}
	if vanished(velocity) {
		return nil, errs.NewConfigurationError(name, "initial velocity must not vanish")
	}
	if len(id) == 0 || len(id) > s.NumberOfNodeLevels {
		return nil, errs.NewConfigurationError(name, "initial identifier %s does not fit %d node levels",
			id, s.NumberOfNodeLevels)
	}
	return &InitialChainStartOfRunEventHandler{
		leaves:     newLeaves(name, s),
		identifier: id.Clone(),
		velocity:   slices.Clone(velocity),
	}, nil
}

// Arguments implements EventHandler.
func (h *InitialChainStartOfRunEventHandler) Arguments() Arguments {
	return Arguments{EventTime: 0, OutState: 1}
}

// SendEventTime implements EventHandler. The identifier to activate is
// returned as pending.
func (h *InitialChainStartOfRunEventHandler) SendEventTime(inState ...[]*node.Node) (EventTime, error) {
	if err := h.expectArguments("SendEventTime", len(inState), 0); err != nil {
		return EventTime{}, err
	}
	h.eventTime = simtime.Zero
	h.phase = PhaseTimeRequested
	return EventTime{Time: h.eventTime, Pending: [][]node.StateID{{h.identifier.Clone()}}}, nil
}

// SendOutState implements EventHandler.
func (h *InitialChainStartOfRunEventHandler) SendOutState(inState ...[]*node.Node) ([]*node.Node, error) {
	if err := h.expectArguments("SendOutState", len(inState), 1); err != nil {
		return nil, err
	}
	if err := h.requirePhase("SendOutState", PhaseTimeRequested); err != nil {
		return nil, err
	}
	h.store(inState[0])
	for _, leaf := range h.leafNodes {
		if leaf.Value.Active() || leaf.Value.TimeStamp != nil {
			return nil, h.errorf(ErrCodeInState, "leaf %s is already active", leaf.Value.Identifier)
		}
		leaf.Value.SetMotion(slices.Clone(h.velocity), h.eventTime)
		h.registerLeafChange(leaf, h.velocity)
	}
	h.commitChanges()
	h.phase = PhaseOutStateDelivered
	return h.state, nil
}
