package checkout

import (
	"errors"
	"fmt"
)

// State is where a single ride purchase attempt stands.
type State int

const (
	StateCreated State = iota
	StateIntentPending
	StateCaptured
	StateRideRecorded
	StateFailed
	StateCapturedOrphan
)

var ErrInvalidTransition = errors.New("invalid checkout state transition")

var stateNames = map[State]string{
	StateCreated:        "created",
	StateIntentPending:  "intent_pending",
	StateCaptured:       "captured",
	StateRideRecorded:   "ride_recorded",
	StateFailed:         "failed",
	StateCapturedOrphan: "captured_orphan",
}

var transitions = map[State][]State{
	StateCreated:       {StateIntentPending},
	StateIntentPending: {StateCaptured, StateFailed, StateCreated},
	StateCaptured:      {StateRideRecorded, StateCapturedOrphan},
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// Transition returns next when the move from s is allowed.
func (s State) Transition(next State) (State, error) {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return next, nil
		}
	}
	return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
}
