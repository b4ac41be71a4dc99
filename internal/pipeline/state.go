package pipeline

import "fmt"

// State is a step of the run lifecycle.
type State int

const (
	StateInit State = iota
	StateFetching
	StateNormalizing
	StateCheckpointing
	StateEmitting
	StateDone
	StateAborted
)

var stateNames = [...]string{
	StateInit:          "INIT",
	StateFetching:      "FETCHING",
	StateNormalizing:   "NORMALIZING",
	StateCheckpointing: "CHECKPOINTING",
	StateEmitting:      "EMITTING",
	StateDone:          "DONE",
	StateAborted:       "ABORTED",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// AbortError records the state a run was in when it failed.
type AbortError struct {
	State State
	Err   error
}

func (e *AbortError) Error() string {
	return e.Err.Error()
}

func (e *AbortError) Unwrap() error { return e.Err }
