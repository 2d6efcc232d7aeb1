package analysis

// State is a pipeline run state. A run only moves forward:
//
//	PENDING -> SAMPLING -> EXTRACTING -> CHECKING -> COMPLETE
//
// FAILED and CANCELLED are terminal and reachable from every non-terminal state.
type State string

const (
	StatePending    State = "PENDING"
	StateSampling   State = "SAMPLING"
	StateExtracting State = "EXTRACTING"
	StateChecking   State = "CHECKING"
	StateComplete   State = "COMPLETE"
	StateFailed     State = "FAILED"
	StateCancelled  State = "CANCELLED"
)

func (s State) String() string {
	return string(s)
}

func (s State) IsTerminal() bool {
	switch s {
	case StateComplete, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

func (s State) order() int {
	switch s {
	case StatePending:
		return 0
	case StateSampling:
		return 1
	case StateExtracting:
		return 2
	case StateChecking:
		return 3
	case StateComplete:
		return 4
	default:
		return -1
	}
}

// CanTransition reports whether a run in state s may move to next.
func (s State) CanTransition(next State) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateFailed || next == StateCancelled {
		return true
	}
	return next.order() == s.order()+1
}
