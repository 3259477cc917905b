package transfer

// State is where a receive attempt currently is.
//
//	Idle -> Connecting -> Connected -> Transferring -> Completed
//	           |             |             |
//	           +-------------+-------------+--> Failed
type State int

const (
	// StateIdle is a fresh session waiting for a descriptor.
	StateIdle State = iota
	// StateConnecting means the handshake with the sender is in progress.
	StateConnecting
	// StateConnected means the handshake succeeded and file metadata is known.
	StateConnected
	// StateTransferring means bytes are flowing and progress is reported.
	StateTransferring
	// StateCompleted is terminal success.
	StateCompleted
	// StateFailed is terminal failure.
	StateFailed
)

// String returns a human-readable name of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateTransferring:
		return "transferring"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true for completed and failed sessions.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s State) CanTransitionTo(next State) bool {
	if s.IsTerminal() {
		return false
	}

	switch s {
	case StateIdle:
		// Idle fails directly when the descriptor cannot be decoded.
		return next == StateConnecting || next == StateFailed
	case StateConnecting:
		return next == StateConnected || next == StateFailed
	case StateConnected:
		return next == StateTransferring || next == StateFailed
	case StateTransferring:
		return next == StateTransferring || next == StateCompleted || next == StateFailed
	default:
		return false
	}
}
