package lifecycle

import "sync/atomic"

// Phase is the process readiness phase reported by /health.
type Phase int32

const (
	Starting Phase = iota
	Ready
	ShuttingDown
)

func (p Phase) String() string {
	switch p {
	case Starting:
		return "starting"
	case Ready:
		return "ready"
	case ShuttingDown:
		return "shutting-down"
	default:
		return "unknown"
	}
}

// State holds the current phase. The zero value is Starting.
type State struct {
	phase atomic.Int32
}

// SetReady marks the model as loaded and the server as accepting traffic.
// It has no effect once shutdown has begun.
func (s *State) SetReady() {
	s.phase.CompareAndSwap(int32(Starting), int32(Ready))
}

// SetShuttingDown marks the process as draining. Call when SIGTERM/SIGINT is received.
func (s *State) SetShuttingDown() {
	s.phase.Store(int32(ShuttingDown))
}

// Phase returns the current phase.
func (s *State) Phase() Phase {
	return Phase(s.phase.Load())
}
