package service

import "sync/atomic"

// Phase describes where the engine currently is in its lifecycle.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseDraining
	PhaseTerminating
	PhaseAggregating
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseDraining:
		return "draining"
	case PhaseTerminating:
		return "terminating"
	case PhaseAggregating:
		return "aggregating"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// phaseTracker holds the engine phase and only ever moves it forward.
// Multiple goroutines may race to advance; late arrivals lose silently.
type phaseTracker struct {
	phase atomic.Int32
}

// advance moves the tracker to next and reports whether this call
// performed the transition. Calls that would move backwards (or sideways
// onto the current phase) leave the tracker untouched.
func (t *phaseTracker) advance(next Phase) bool {
	for {
		current := t.phase.Load()
		if current >= int32(next) {
			return false
		}
		if t.phase.CompareAndSwap(current, int32(next)) {
			return true
		}
	}
}

func (t *phaseTracker) current() Phase {
	return Phase(t.phase.Load())
}
