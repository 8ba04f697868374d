package orchestrator

// State is the per-invocation stage of a matching run. It is never stored.
type State int

const (
	StateIdle State = iota
	StateFinding
	StateScoring
	StateFiltering
	StatePersisting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFinding:
		return "finding"
	case StateScoring:
		return "scoring"
	case StateFiltering:
		return "filtering"
	case StatePersisting:
		return "persisting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

var transitions = map[State]State{
	StateIdle:       StateFinding,
	StateFinding:    StateScoring,
	StateScoring:    StateFiltering,
	StateFiltering:  StatePersisting,
	StatePersisting: StateDone,
}

// next returns the successor of s on the happy path.
func (s State) next() State {
	if n, ok := transitions[s]; ok {
		return n
	}
	return s
}
