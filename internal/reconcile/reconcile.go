// Package reconcile brings the local view back in line with the provider once actions settle.
//
// The provider always wins for what it has confirmed; the effect of actions that are still unsettled
// is layered on top so that nothing the user did flickers away.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/bradenaw/juniper/parallel"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/inboxkit/courier/cache"
	"github.com/inboxkit/courier/driver"
	"github.com/inboxkit/courier/internal/action"
	"github.com/inboxkit/courier/internal/ledger"
)

const parallelism = 4

// Result is the provider's view of an account.
type Result struct {
	// Counts is nil when the counters were not fetched.
	Counts driver.Counts

	// Threads holds the threads that still exist.
	Threads []driver.Thread
}

// Fetch reads the counters and the given threads from the provider.
// Threads that no longer exist are left out of the result.
func Fetch(ctx context.Context, drv driver.Driver, threadIDs []driver.ThreadID, withCounts bool) (Result, error) {
	var res Result

	if withCounts {
		counts, err := drv.Count(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("failed to count: %w", err)
		}

		res.Counts = counts
	}

	threads := make([]driver.Thread, len(threadIDs))
	found := make([]bool, len(threadIDs))

	if err := parallel.DoContext(ctx, parallelism, len(threadIDs), func(ctx context.Context, i int) error {
		thread, err := drv.Get(ctx, threadIDs[i])
		if err != nil {
			if errors.Is(err, driver.ErrNotFound) {
				logrus.WithField("threadID", threadIDs[i]).Debug("Thread vanished, keeping local state")
				return nil
			}

			return fmt.Errorf("failed to get thread %v: %w", threadIDs[i], err)
		}

		threads[i], found[i] = thread, true

		return nil
	}); err != nil {
		return Result{}, err
	}

	for i, thread := range threads {
		if found[i] {
			res.Threads = append(res.Threads, thread)
		}
	}

	return res, nil
}

// Apply stores the provider's view of the account. The effect of every unsettled action is re-applied
// to the threads it touches, and the snapshots those actions would roll back to are moved onto the
// provider's labels.
func Apply(c *cache.Cache, l *ledger.Ledger, userID string, res Result) {
	if res.Counts != nil {
		c.SetCounts(userID, res.Counts)
	}

	var fetched []driver.ThreadID

	for _, thread := range res.Threads {
		fetched = append(fetched, thread.ID)

		labels := thread.Labels

		for _, a := range l.OnThread(userID, thread.ID) {
			if heads(l, a, thread.ID) {
				a.Snapshot[thread.ID] = action.Snapshot(a.Params, thread.Labels)
			}

			labels = action.Apply(a.Params, labels)
		}

		// Without fresh counters, the counters still describe the cached labels.
		if cached, ok := c.Thread(userID, thread.ID); ok && res.Counts == nil {
			thread.Labels = cached.Labels
		}

		c.PutThread(userID, thread)
		c.SetLabels(userID, thread.ID, labels)
	}

	if res.Counts == nil {
		return
	}

	// The provider's counters do not include the effect of unsettled actions on the other threads.
	for _, threadID := range l.Threads(userID) {
		if slices.Contains(fetched, threadID) {
			continue
		}

		cached, ok := c.Thread(userID, threadID)
		if !ok {
			continue
		}

		c.AdjustCounts(userID, provider(l, userID, threadID, cached.Labels), cached.Labels)
	}
}

// Rollback undoes the local effect of an action about to be removed from the ledger.
// Where a later action of the same type is pending on a thread, that action keeps its effect and
// takes over this action's snapshot.
func Rollback(c *cache.Cache, l *ledger.Ledger, a *ledger.PendingAction) {
	for _, threadID := range a.ThreadIDs {
		if next, ok := successor(l, a, threadID); ok {
			next.Snapshot[threadID] = a.Snapshot[threadID]
			continue
		}

		thread, ok := c.Thread(a.UserID, threadID)
		if !ok {
			continue
		}

		c.SetLabels(a.UserID, threadID, action.Restore(a.Params, thread.Labels, a.Snapshot[threadID]))
	}
}

// provider returns the labels the provider is believed to hold for a thread: the cached labels with
// the scope of every unsettled action reset to the snapshot of the oldest action sharing that scope.
func provider(l *ledger.Ledger, userID string, threadID driver.ThreadID, labels []driver.LabelID) []driver.LabelID {
	for _, a := range l.OnThread(userID, threadID) {
		if heads(l, a, threadID) {
			labels = action.Restore(a.Params, labels, a.Snapshot[threadID])
		}
	}

	return labels
}

// heads returns whether a is the oldest action touching its scope on the thread.
func heads(l *ledger.Ledger, a *ledger.PendingAction, threadID driver.ThreadID) bool {
	for _, other := range l.Lane(a.UserID, threadID, a.Type()) {
		if sameScope(a, other) {
			return other == a
		}
	}

	return false
}

// successor returns the next action touching the same scope as a on the thread.
func successor(l *ledger.Ledger, a *ledger.PendingAction, threadID driver.ThreadID) (*ledger.PendingAction, bool) {
	lane := l.Lane(a.UserID, threadID, a.Type())

	idx := slices.Index(lane, a)
	if idx < 0 {
		return nil, false
	}

	for _, other := range lane[idx+1:] {
		if sameScope(a, other) {
			return other, true
		}
	}

	return nil, false
}

func sameScope(a, b *ledger.PendingAction) bool {
	return slices.Equal(action.Scope(a.Params), action.Scope(b.Params))
}
