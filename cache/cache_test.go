package cache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inboxkit/courier/driver"
	"github.com/inboxkit/courier/store"
)

const userID = "user@example.com"

func TestCache_SetLabelsAdjustsCounts(t *testing.T) {
	c := New(store.NewInMemoryStore())

	c.SetCounts(userID, driver.Counts{
		driver.LabelInbox:  {Total: 10, Unread: 3},
		driver.LabelUnread: {Total: 3, Unread: 3},
	})

	c.PutThread(userID, driver.Thread{ID: "t1", Labels: []driver.LabelID{driver.LabelUnread, driver.LabelInbox}})

	// Reading the thread.
	require.True(t, c.SetLabels(userID, "t1", []driver.LabelID{driver.LabelInbox}))
	require.Equal(t, driver.Count{Total: 10, Unread: 2}, c.Counts(userID)[driver.LabelInbox])
	require.Equal(t, driver.Count{Total: 2, Unread: 2}, c.Counts(userID)[driver.LabelUnread])

	// Archiving it.
	require.True(t, c.SetLabels(userID, "t1", nil))
	require.Equal(t, driver.Count{Total: 9, Unread: 2}, c.Counts(userID)[driver.LabelInbox])

	// Restoring the original labels restores the counters exactly.
	require.True(t, c.SetLabels(userID, "t1", []driver.LabelID{driver.LabelInbox, driver.LabelUnread}))
	require.Equal(t, driver.Counts{
		driver.LabelInbox:  {Total: 10, Unread: 3},
		driver.LabelUnread: {Total: 3, Unread: 3},
	}, c.Counts(userID))

	thread, ok := c.Thread(userID, "t1")
	require.True(t, ok)
	require.Equal(t, []driver.LabelID{driver.LabelInbox, driver.LabelUnread}, thread.Labels)

	require.False(t, c.SetLabels(userID, "unknown", nil))
	require.False(t, c.SetLabels("other", "t1", nil))
}

func TestCache_UnknownCountsAreNotAdjusted(t *testing.T) {
	c := New(store.NewInMemoryStore())

	c.PutThread(userID, driver.Thread{ID: "t1", Labels: []driver.LabelID{driver.LabelInbox, driver.LabelUnread}})
	require.False(t, c.HasCounts(userID))

	require.True(t, c.SetLabels(userID, "t1", []driver.LabelID{driver.LabelInbox}))
	c.AdjustCounts(userID, []driver.LabelID{driver.LabelInbox}, []driver.LabelID{driver.LabelTrash})

	require.False(t, c.HasCounts(userID))
	require.Empty(t, c.Counts(userID))

	thread, ok := c.Thread(userID, "t1")
	require.True(t, ok)
	require.Equal(t, []driver.LabelID{driver.LabelInbox}, thread.Labels)

	c.SetCounts(userID, driver.Counts{})
	require.True(t, c.HasCounts(userID))
}

func TestCache_ReturnsCopies(t *testing.T) {
	c := New(store.NewInMemoryStore())

	c.PutThread(userID, driver.Thread{ID: "t1", Labels: []driver.LabelID{driver.LabelInbox}})

	thread, ok := c.Thread(userID, "t1")
	require.True(t, ok)

	thread.Labels[0] = driver.LabelTrash

	thread, ok = c.Thread(userID, "t1")
	require.True(t, ok)
	require.Equal(t, []driver.LabelID{driver.LabelInbox}, thread.Labels)

	counts := c.Counts(userID)
	counts[driver.LabelInbox] = driver.Count{Total: 100}
	require.Empty(t, c.Counts(userID))
}

func TestCache_Load(t *testing.T) {
	st := store.NewInMemoryStore()

	c := New(st)
	c.PutThread(userID, driver.Thread{ID: "a/b", Subject: "hello", Labels: []driver.LabelID{driver.LabelStarred}})
	c.PutThread("other/user", driver.Thread{ID: "t2"})
	c.SetCounts(userID, driver.Counts{driver.LabelStarred: {Total: 1}})

	loaded := New(st)
	require.NoError(t, loaded.Load())

	thread, ok := loaded.Thread(userID, "a/b")
	require.True(t, ok)
	require.Equal(t, "hello", thread.Subject)
	require.Equal(t, []driver.LabelID{driver.LabelStarred}, thread.Labels)

	_, ok = loaded.Thread("other/user", "t2")
	require.True(t, ok)

	require.Equal(t, driver.Counts{driver.LabelStarred: {Total: 1}}, loaded.Counts(userID))
	require.True(t, loaded.HasCounts(userID))
	require.False(t, loaded.HasCounts("other/user"))
}
