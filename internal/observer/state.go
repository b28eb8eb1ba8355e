package observer

import (
	"sync"

	"github.com/kubeadapt/kueue-observer/internal/observability"
	"github.com/kubeadapt/kueue-observer/internal/query"
)

// ObserverState represents the current lifecycle state of the observer.
type ObserverState string

// Observer lifecycle states.
const (
	StateStarting ObserverState = "starting"
	StateRunning  ObserverState = "running"
	StateDegraded ObserverState = "degraded"
	StateStopped  ObserverState = "stopped"
)

var allStates = []ObserverState{StateStarting, StateRunning, StateDegraded, StateStopped}

// StateMachine tracks the observer's lifecycle state. Transitions are driven
// by the state of the local queue list query.
type StateMachine struct {
	mu          sync.RWMutex
	state       ObserverState
	stateReason string
	metrics     *observability.Metrics
}

// NewStateMachine creates a StateMachine starting in StateStarting.
// metrics may be nil.
func NewStateMachine(metrics *observability.Metrics) *StateMachine {
	sm := &StateMachine{
		state:   StateStarting,
		metrics: metrics,
	}
	sm.export()
	return sm
}

// State returns the current observer state.
func (sm *StateMachine) State() ObserverState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state
}

// StateReason returns the human-readable reason for the current state.
func (sm *StateMachine) StateReason() string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.stateReason
}

// TransitionTo directly sets the observer state with a reason.
// It reports whether the state changed. StateStopped is terminal.
func (sm *StateMachine) TransitionTo(state ObserverState, reason string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.state == StateStopped {
		return false
	}
	changed := sm.state != state
	sm.state = state
	sm.stateReason = reason
	if changed {
		sm.exportLocked()
	}
	return changed
}

// HandleQueueListState moves to running when the local queue list is ready
// and to degraded otherwise. It reports whether the state changed.
func (sm *StateMachine) HandleQueueListState(s query.State) bool {
	switch s {
	case query.StateReady:
		return sm.TransitionTo(StateRunning, "")
	case query.StateError:
		return sm.TransitionTo(StateDegraded, "local queue list query failing")
	default:
		return sm.TransitionTo(StateDegraded, "local queue list not yet available")
	}
}

func (sm *StateMachine) export() {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.exportLocked()
}

func (sm *StateMachine) exportLocked() {
	if sm.metrics == nil {
		return
	}
	for _, s := range allStates {
		v := 0.0
		if s == sm.state {
			v = 1
		}
		sm.metrics.ObserverState.WithLabelValues(string(s)).Set(v)
	}
}
