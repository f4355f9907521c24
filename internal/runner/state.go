package runner

// VUState is the lifecycle state of one virtual-user loop.
type VUState int

const (
	StateIdle VUState = iota
	StateRequesting
	StateChecking
	StateSleeping
	StateStopped
)

func (s VUState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateChecking:
		return "checking"
	case StateSleeping:
		return "sleeping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// canTransition reports whether a VU may move from s to next.
func (s VUState) canTransition(next VUState) bool {
	switch s {
	case StateIdle:
		return next == StateRequesting || next == StateStopped
	case StateRequesting:
		return next == StateChecking || next == StateStopped
	case StateChecking:
		return next == StateSleeping
	case StateSleeping:
		return next == StateRequesting || next == StateStopped
	default:
		return false
	}
}
