package core

// State is the phase of a measurement run.
type State int

const (
	// WarmUp is the state of a session that has not started yet
	WarmUp State = iota
	// ActiveSendRecv is the state while probes are sent and echoes received
	ActiveSendRecv
	// DrainWait is the grace period after the last probe, only receiving
	DrainWait
	// Finalizing is the state while outstanding probes are reported as lost
	Finalizing
	// Done is the terminal state
	Done
)

func (s State) String() string {
	switch s {
	case WarmUp:
		return "warmup"
	case ActiveSendRecv:
		return "active"
	case DrainWait:
		return "drain-wait"
	case Finalizing:
		return "finalizing"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}
