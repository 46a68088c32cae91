package courier

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/inboxkit/courier/driver"
	"github.com/inboxkit/courier/events"
	"github.com/inboxkit/courier/internal/action"
	"github.com/inboxkit/courier/internal/ledger"
	"github.com/inboxkit/courier/internal/reconcile"
	"github.com/inboxkit/courier/logging"
)

// Submit applies the action to the local view at once and schedules it for the provider.
// It returns the ID of the new action. If the action is the exact inverse of the user's latest action
// on the same threads and that action has not reached the provider yet, both cancel out: nothing is sent
// and the ID of the cancelled action is returned.
func (c *Coordinator) Submit(ctx context.Context, userID string, threadIDs []driver.ThreadID, params action.Params) (ledger.ID, error) {
	if err := action.Validate(params); err != nil {
		return "", err
	}

	threadIDs = dedupe(threadIDs)

	if len(threadIDs) == 0 {
		return "", ErrNoThreads
	}

	if err := c.limits.CheckThreadCount(len(threadIDs)); err != nil {
		return "", err
	}

	if c.isClosed() {
		return "", ErrClosed
	}

	drv, err := c.newDriver(ctx, userID)
	if err != nil {
		return "", err
	}

	if err := c.load(ctx, userID, drv, threadIDs); err != nil {
		return "", err
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return "", ErrClosed
	}

	if prev, ok := c.inverseOf(userID, threadIDs, params); ok {
		c.cancel(prev, events.UndoCoalesced)
		return prev.ID, nil
	}

	if err := c.limits.CheckPendingCount(c.ledger.Count(userID), 1); err != nil {
		return "", err
	}

	// Several threads cannot wait on each other's lanes without blocking the whole batch.
	if len(threadIDs) > 1 && c.ledger.Conflicts(userID, threadIDs, params.Type()) {
		return "", ErrConflict
	}

	a := &ledger.PendingAction{
		UserID:    userID,
		ThreadIDs: threadIDs,
		Params:    params,
		CreatedAt: time.Now(),
		Snapshot:  make(map[driver.ThreadID][]driver.LabelID, len(threadIDs)),
	}

	for _, threadID := range threadIDs {
		thread, ok := c.cache.Thread(userID, threadID)
		if !ok {
			return "", fmt.Errorf("thread %v vanished from the cache", threadID)
		}

		a.Snapshot[threadID] = action.Snapshot(params, thread.Labels)
	}

	for _, threadID := range threadIDs {
		thread, _ := c.cache.Thread(userID, threadID)
		c.cache.SetLabels(userID, threadID, action.Apply(params, thread.Labels))
	}

	c.ledger.Add(a)

	if err := c.ledger.Transition(a, ledger.Grace); err != nil {
		panic(err)
	}

	c.logger(a).WithField("grace", c.grace[a.Type()]).Debug("Action submitted")

	c.schedule(a, c.grace[a.Type()])

	return a.ID, nil
}

// Undo cancels an action that has not reached the provider yet and restores the local view.
func (c *Coordinator) Undo(id ledger.ID) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	a, ok := c.ledger.Get(id)
	if !ok {
		return ErrNoSuchAction
	}

	return c.undo(a)
}

// UndoFor cancels an action of the given user. Actions of other users are reported as unknown.
func (c *Coordinator) UndoFor(userID string, id ledger.ID) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	a, ok := c.ledger.Get(id)
	if !ok || a.UserID != userID {
		return ErrNoSuchAction
	}

	return c.undo(a)
}

// UndoLast cancels the user's most recent unsettled action. It returns the ID of the cancelled action.
func (c *Coordinator) UndoLast(userID string) (ledger.ID, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	a, ok := c.ledger.Last(userID)
	if !ok {
		return "", ErrNoSuchAction
	}

	if err := c.undo(a); err != nil {
		return "", err
	}

	return a.ID, nil
}

func (c *Coordinator) undo(a *ledger.PendingAction) error {
	if !a.State.Cancellable() {
		return ErrNotCancellable
	}

	c.cancel(a, events.UndoRequested)

	return nil
}

// load fetches the threads missing from the local view, and the account's counters if they were
// never fetched.
func (c *Coordinator) load(ctx context.Context, userID string, drv driver.Driver, threadIDs []driver.ThreadID) error {
	var missing []driver.ThreadID

	for _, threadID := range threadIDs {
		if _, ok := c.cache.Thread(userID, threadID); !ok {
			missing = append(missing, threadID)
		}
	}

	var counts driver.Counts

	if !c.cache.HasCounts(userID) {
		res, err := drv.Count(ctx)
		if err != nil {
			logrus.WithError(err).WithField(logging.UserIDKey, userID).Warn("Failed to load counts")
		} else {
			counts = res
		}
	}

	if len(missing) == 0 && counts == nil {
		return nil
	}

	res, err := reconcile.Fetch(ctx, drv, missing, false)
	if err != nil {
		return err
	}

	if len(res.Threads) != len(missing) {
		return fmt.Errorf("failed to load threads: %w", driver.ErrNotFound)
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	for _, thread := range res.Threads {
		if _, ok := c.cache.Thread(userID, thread.ID); !ok {
			c.cache.PutThread(userID, thread)
		}
	}

	// Counters fetched concurrently with a commit may already be outdated; a later refresh replaces them.
	if counts != nil && !c.cache.HasCounts(userID) {
		reconcile.Apply(c.cache, c.ledger, userID, reconcile.Result{Counts: counts})
	}

	return nil
}

// inverseOf returns the user's action that params cancels out, if any.
func (c *Coordinator) inverseOf(userID string, threadIDs []driver.ThreadID, params action.Params) (*ledger.PendingAction, bool) {
	lane := c.ledger.Lane(userID, threadIDs[0], params.Type())
	if len(lane) == 0 {
		return nil, false
	}

	prev := lane[len(lane)-1]

	if prev.State != ledger.Grace || !sameThreads(prev.ThreadIDs, threadIDs) || !c.ledger.Tail(prev) {
		return nil, false
	}

	for _, threadID := range threadIDs {
		if !action.Inverts(prev.Params, params, prev.Snapshot[threadID]) {
			return nil, false
		}
	}

	return prev, true
}

// schedule starts the grace window of the action.
func (c *Coordinator) schedule(a *ledger.PendingAction, grace time.Duration) {
	if grace <= 0 {
		c.promote(a)
		return
	}

	c.timers[a.ID] = time.AfterFunc(grace, func() {
		c.lock.Lock()
		defer c.lock.Unlock()

		delete(c.timers, a.ID)

		c.promote(a)
	})
}

// promote ends the grace window of the action.
func (c *Coordinator) promote(a *ledger.PendingAction) {
	if a.State != ledger.Grace {
		return
	}

	if !c.ledger.Ready(a) {
		if err := c.ledger.Transition(a, ledger.Queued); err != nil {
			panic(err)
		}

		c.logger(a).Debug("Action queued behind earlier actions")

		return
	}

	c.start(a)
}

// advance starts the queued actions that now head all their lanes.
func (c *Coordinator) advance(heads []*ledger.PendingAction) {
	for _, a := range heads {
		if a.State == ledger.Queued && c.ledger.Ready(a) {
			c.start(a)
		}
	}
}

// cancel rolls back an action that never reached the provider.
func (c *Coordinator) cancel(a *ledger.PendingAction, cause events.UndoCause) {
	if timer, ok := c.timers[a.ID]; ok {
		timer.Stop()
		delete(c.timers, a.ID)
	}

	c.rollback(a)

	if a.Notify() {
		c.publish(events.ActionUndone{Action: toEvent(a), Cause: cause})
	}

	c.logger(a).WithField("cause", cause).Debug("Action undone")

	c.advance(c.remove(a))
}

// rollback restores the local view the action changed. It must run before the action leaves the ledger.
func (c *Coordinator) rollback(a *ledger.PendingAction) {
	reconcile.Rollback(c.cache, c.ledger, a)

	if err := c.ledger.Transition(a, ledger.RolledBack); err != nil {
		panic(err)
	}
}

// remove drops a settled action from the ledger and returns the actions that became lane heads.
func (c *Coordinator) remove(a *ledger.PendingAction) []*ledger.PendingAction {
	heads := c.ledger.Remove(a.ID)

	c.settled.Broadcast()

	return heads
}

func (c *Coordinator) isClosed() bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.closed
}

func (c *Coordinator) logger(a *ledger.PendingAction) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		logging.UserIDKey:   a.UserID,
		logging.ActionIDKey: a.ID,
		logging.TypeKey:     a.Type(),
		"threads":           len(a.ThreadIDs),
	})
}

func dedupe(threadIDs []driver.ThreadID) []driver.ThreadID {
	res := make([]driver.ThreadID, 0, len(threadIDs))

	for _, threadID := range threadIDs {
		if threadID != "" && !slices.Contains(res, threadID) {
			res = append(res, threadID)
		}
	}

	return res
}

func sameThreads(a, b []driver.ThreadID) bool {
	if len(a) != len(b) {
		return false
	}

	for _, threadID := range b {
		if !slices.Contains(a, threadID) {
			return false
		}
	}

	return true
}
