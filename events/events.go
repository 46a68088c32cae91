// Package events defines the notifications emitted by the coordinator.
package events

import "github.com/inboxkit/courier/driver"

type Event interface {
	_isEvent()
}

type eventBase struct{}

func (eventBase) _isEvent() {}

// Action identifies the action an event is about.
type Action struct {
	UserID    string
	ActionID  string
	Type      string
	ThreadIDs []driver.ThreadID
}

// ActionLoading is emitted when an action starts calling the provider.
type ActionLoading struct {
	eventBase

	Action
}

// ActionSucceeded is emitted when the provider confirmed an action.
type ActionSucceeded struct {
	eventBase

	Action
}

// ActionFailed is emitted once when an action was rolled back because the provider rejected it.
type ActionFailed struct {
	eventBase

	Action

	Reason string

	// Reconnect is set when the user must re-establish the provider connection.
	Reconnect bool
}

type UndoCause string

const (
	// UndoRequested is a user undo during the grace window.
	UndoRequested UndoCause = "requested"

	// UndoCoalesced is an action cancelled by its own inverse during the grace window.
	UndoCoalesced UndoCause = "coalesced"

	// UndoNotFound is an action whose threads no longer exist at the provider.
	UndoNotFound UndoCause = "not_found"
)

// ActionUndone is emitted when an action was rolled back for a reason that is not an error.
type ActionUndone struct {
	eventBase

	Action

	Cause UndoCause
}

// ThreadsBusy is emitted when threads get an operation in flight.
type ThreadsBusy struct {
	eventBase

	UserID    string
	ThreadIDs []driver.ThreadID
}

// ThreadsIdle is emitted when the last operation in flight on threads settled.
type ThreadsIdle struct {
	eventBase

	UserID    string
	ThreadIDs []driver.ThreadID
}
