package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inboxkit/courier/driver"
	"github.com/inboxkit/courier/internal/action"
)

const userID = "user"

func newAction(params action.Params, threadIDs ...driver.ThreadID) *PendingAction {
	return &PendingAction{UserID: userID, ThreadIDs: threadIDs, Params: params}
}

func TestLedger_Lanes(t *testing.T) {
	l := New()

	star := newAction(action.StarParams{Starred: true}, "t1", "t2")
	unstar := newAction(action.StarParams{}, "t2")
	read := newAction(action.ReadParams{Read: true}, "t2")

	l.Add(star)
	l.Add(unstar)
	l.Add(read)

	require.NotEmpty(t, star.ID)
	require.Equal(t, 3, l.Len())
	require.Equal(t, 3, l.Count(userID))
	require.Zero(t, l.Count("someone else"))

	// Different types do not block each other; the same type on the same thread does.
	require.True(t, l.Ready(star))
	require.False(t, l.Ready(unstar))
	require.True(t, l.Ready(read))

	require.True(t, l.Pending(userID, "t1", action.Star))
	require.False(t, l.Pending(userID, "t1", action.Read))
	require.True(t, l.Conflicts(userID, []driver.ThreadID{"t3", "t2"}, action.Read))
	require.False(t, l.Conflicts(userID, []driver.ThreadID{"t3"}, action.Star))

	require.False(t, l.Tail(star))
	require.True(t, l.Tail(unstar))

	require.Equal(t, []*PendingAction{star, unstar}, l.Lane(userID, "t2", action.Star))
	require.Equal(t, []*PendingAction{star, unstar, read}, l.OnThread(userID, "t2"))
	require.Equal(t, []driver.ThreadID{"t1", "t2"}, l.Threads(userID))

	// Settling the head promotes the next action of the lane.
	require.Equal(t, []*PendingAction{unstar}, l.Remove(star.ID))
	require.True(t, l.Ready(unstar))
	require.False(t, l.Pending(userID, "t1", action.Star))

	// Removing a non-head action promotes nothing.
	require.Empty(t, l.Remove(read.ID))
	require.Empty(t, l.Remove("unknown"))

	require.Equal(t, []*PendingAction{unstar}, l.All())
	require.Equal(t, []*PendingAction{unstar}, l.ByType(action.Star))
	require.Empty(t, l.ByType(action.Read))
}

func TestLedger_Last(t *testing.T) {
	l := New()

	_, ok := l.Last(userID)
	require.False(t, ok)

	first := newAction(action.StarParams{Starred: true}, "t1")
	second := newAction(action.MoveParams{Destination: driver.LabelTrash}, "t2")

	l.Add(first)
	l.Add(second)

	last, ok := l.Last(userID)
	require.True(t, ok)
	require.Equal(t, second, last)

	l.Remove(second.ID)

	last, ok = l.Last(userID)
	require.True(t, ok)
	require.Equal(t, first, last)

	_, ok = l.Last("other")
	require.False(t, ok)
}

func TestLedger_Transitions(t *testing.T) {
	l := New()

	a := newAction(action.StarParams{Starred: true}, "t1")
	l.Add(a)
	require.Equal(t, Created, a.State)

	require.NoError(t, l.Transition(a, Grace))
	require.NoError(t, l.Transition(a, Queued))
	require.ErrorIs(t, l.Transition(a, Grace), ErrBadTransition)
	require.NoError(t, l.Transition(a, Executing))
	require.False(t, a.State.Cancellable())
	require.NoError(t, l.Transition(a, Committed))
	require.True(t, a.State.Terminal())
	require.ErrorIs(t, l.Transition(a, RolledBack), ErrBadTransition)
}

func TestPendingAction_Notify(t *testing.T) {
	a := newAction(action.StarParams{}, "t1")

	require.True(t, a.Notify())
	require.False(t, a.Notify())
}
