package paramsync

import "fmt"

// State is the progress of one synchronization pass.
type State int

const (
	// StateIdle: no declaration received since the last reset.
	StateIdle State = iota
	// StateCollecting: declarations are arriving, the set is incomplete.
	StateCollecting
	// StateComplete: loaded count reached the total count.
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateCollecting:
		return "COLLECTING"
	case StateComplete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "IDLE":
		*s = StateIdle
	case "COLLECTING":
		*s = StateCollecting
	case "COMPLETE":
		*s = StateComplete
	default:
		return fmt.Errorf("unknown sync state: %s", text)
	}
	return nil
}

// deriveState computes the state from the progress counters.
func deriveState(loaded int, total *int) State {
	switch {
	case total != nil && loaded >= *total:
		return StateComplete
	case total == nil && loaded == 0:
		return StateIdle
	default:
		return StateCollecting
	}
}
