package ledger

import "fmt"

type State int

const (
	Created State = iota
	Grace
	Queued
	Executing
	Committed
	RolledBack
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"

	case Grace:
		return "grace"

	case Queued:
		return "queued"

	case Executing:
		return "executing"

	case Committed:
		return "committed"

	case RolledBack:
		return "rolled back"

	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal returns whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Committed || s == RolledBack
}

// Cancellable returns whether the action can still be undone without a provider call.
func (s State) Cancellable() bool {
	return s == Grace || s == Queued
}

var transitions = map[State][]State{
	Created:   {Grace, RolledBack},
	Grace:     {Queued, Executing, RolledBack},
	Queued:    {Executing, RolledBack},
	Executing: {Committed, RolledBack},
}

func (s State) canTransitionTo(to State) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}

	return false
}
