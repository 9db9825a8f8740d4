package chat

import "fmt"

// State is the lifecycle stage of one conversation turn.
type State int

const (
	// StateIdle is the initial state before any work starts.
	StateIdle State = iota

	// StateContextBuilding covers context assembly. The model never
	// starts generating until this state completes.
	StateContextBuilding

	// StateModelStreaming covers the model call and chunk forwarding.
	StateModelStreaming

	// StateComplete means the turn finished and its exchange persisted.
	StateComplete

	// StateFailed means the turn aborted; nothing was persisted.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateContextBuilding:
		return "context_building"
	case StateModelStreaming:
		return "model_streaming"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// validTransitions encodes the turn lifecycle:
// Idle -> ContextBuilding -> ModelStreaming -> Complete, with Failed
// reachable from either working state.
var validTransitions = map[State][]State{
	StateIdle:            {StateContextBuilding},
	StateContextBuilding: {StateModelStreaming, StateFailed},
	StateModelStreaming:  {StateComplete, StateFailed},
}

// turn tracks one conversation turn through its lifecycle.
type turn struct {
	state State
}

// advance moves to next, panicking on an invalid transition. Transitions
// are fixed at compile time, so a bad one is a programming error, not a
// runtime condition.
func (t *turn) advance(next State) {
	for _, allowed := range validTransitions[t.state] {
		if allowed == next {
			t.state = next
			return
		}
	}
	panic(fmt.Sprintf("invalid turn transition %s -> %s", t.state, next))
}
