package dummy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inboxkit/courier/driver"
)

var testCreds = driver.Credentials{AccessToken: "access", RefreshToken: "refresh"}

func TestDummy_MarkAsReadIsIdempotent(t *testing.T) {
	conn := NewDummy("access")
	threadID := conn.CreateThread("hello", driver.LabelInbox, driver.LabelUnread)

	drv := conn.Driver(testCreds)

	require.NoError(t, drv.MarkAsRead(context.Background(), threadID))
	first, ok := conn.Thread(threadID)
	require.True(t, ok)
	require.False(t, first.HasLabel(driver.LabelUnread))

	require.NoError(t, drv.MarkAsRead(context.Background(), threadID))
	second, ok := conn.Thread(threadID)
	require.True(t, ok)
	require.Equal(t, first, second)
}

func TestDummy_Move(t *testing.T) {
	conn := NewDummy()
	threadID := conn.CreateThread("hello", driver.LabelInbox, driver.LabelStarred)

	drv := conn.Driver(testCreds)

	require.NoError(t, drv.Move(context.Background(), []driver.ThreadID{threadID}, driver.LabelArchive))

	thread, ok := conn.Thread(threadID)
	require.True(t, ok)
	require.Equal(t, []driver.LabelID{driver.LabelStarred}, thread.Labels)

	require.NoError(t, drv.Move(context.Background(), []driver.ThreadID{threadID}, driver.LabelTrash))

	thread, ok = conn.Thread(threadID)
	require.True(t, ok)
	require.ElementsMatch(t, []driver.LabelID{driver.LabelStarred, driver.LabelTrash}, thread.Labels)

	require.ErrorIs(t, drv.Move(context.Background(), []driver.ThreadID{threadID}, "Work"), driver.ErrPermanent)
}

func TestDummy_Errors(t *testing.T) {
	conn := NewDummy("access")
	threadID := conn.CreateThread("hello", driver.LabelInbox)

	_, err := conn.Driver(driver.Credentials{AccessToken: "other", RefreshToken: "refresh"}).Get(context.Background(), threadID)
	require.ErrorIs(t, err, driver.ErrUnauthorized)

	_, err = conn.Driver(testCreds).Get(context.Background(), "missing")
	require.ErrorIs(t, err, driver.ErrNotFound)

	conn.FailNext(OpLabel, driver.ErrTransient)
	require.ErrorIs(t, conn.Driver(testCreds).Label(context.Background(), threadID, "Work", true), driver.ErrTransient)
	require.NoError(t, conn.Driver(testCreds).Label(context.Background(), threadID, "Work", true))

	conn.SetMaxBatchSize(1)
	require.ErrorIs(t, conn.Driver(testCreds).Move(context.Background(), []driver.ThreadID{threadID, "other"}, driver.LabelTrash), driver.ErrBatchTooLarge)
}

func TestDummy_DelayHonoursContext(t *testing.T) {
	conn := NewDummy()
	threadID := conn.CreateThread("hello", driver.LabelInbox, driver.LabelUnread)

	conn.SetDelay(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := conn.Driver(testCreds).MarkAsRead(ctx, threadID)
	require.ErrorIs(t, err, driver.ErrTransient)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.True(t, driver.IsRetryable(err))

	thread, ok := conn.Thread(threadID)
	require.True(t, ok)
	require.True(t, thread.HasLabel(driver.LabelUnread))
}

func TestDummy_Count(t *testing.T) {
	conn := NewDummy()
	conn.CreateThread("a", driver.LabelInbox, driver.LabelUnread)
	conn.CreateThread("b", driver.LabelInbox)
	conn.CreateThread("c", driver.LabelTrash, driver.LabelUnread)

	counts, err := conn.Driver(testCreds).Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, driver.Count{Total: 2, Unread: 1}, counts[driver.LabelInbox])
	require.Equal(t, driver.Count{Total: 1, Unread: 1}, counts[driver.LabelTrash])
	require.Equal(t, driver.Count{Total: 2, Unread: 2}, counts[driver.LabelUnread])
}

func TestDummy_Hold(t *testing.T) {
	conn := NewDummy()
	threadID := conn.CreateThread("hello", driver.LabelInbox)

	release := conn.Hold()

	errCh := make(chan error)

	go func() {
		errCh <- conn.Driver(testCreds).Label(context.Background(), threadID, driver.LabelStarred, true)
	}()

	select {
	case <-errCh:
		t.Fatal("mutation should be held")
	case <-time.After(50 * time.Millisecond):
	}

	release()

	require.NoError(t, <-errCh)
	require.Equal(t, 1, conn.MaxConcurrentMutations())
}
