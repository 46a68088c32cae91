package courier

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inboxkit/courier/driver"
	"github.com/inboxkit/courier/internal/action"
	"github.com/inboxkit/courier/internal/reconcile"
	"github.com/inboxkit/courier/logging"
	"github.com/inboxkit/courier/observability"
	"github.com/inboxkit/courier/observability/metrics"
)

// FetchThread reads the thread from the provider and returns it with the effect of unsettled actions applied.
func (c *Coordinator) FetchThread(ctx context.Context, userID string, threadID driver.ThreadID) (driver.Thread, error) {
	if c.isClosed() {
		return driver.Thread{}, ErrClosed
	}

	drv, err := c.newDriver(ctx, userID)
	if err != nil {
		return driver.Thread{}, err
	}

	thread, err := drv.Get(ctx, threadID)
	if err != nil {
		return driver.Thread{}, err
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	reconcile.Apply(c.cache, c.ledger, userID, reconcile.Result{Threads: []driver.Thread{thread}})

	res, ok := c.cache.Thread(userID, threadID)
	if !ok {
		return driver.Thread{}, fmt.Errorf("thread %v: %w", threadID, driver.ErrNotFound)
	}

	return res, nil
}

// MarkAsRead marks the thread as read at the provider right away. It bypasses the ledger and is idempotent.
func (c *Coordinator) MarkAsRead(ctx context.Context, userID string, threadID driver.ThreadID) error {
	if c.isClosed() {
		return ErrClosed
	}

	if c.Pending(userID, threadID, action.Read) {
		return fmt.Errorf("thread %v has an unsettled read action: %w", threadID, ErrConflict)
	}

	drv, err := c.newDriver(ctx, userID)
	if err != nil {
		return err
	}

	if err := drv.MarkAsRead(ctx, threadID); err != nil {
		return err
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	// A READ action submitted during the call decides the local state until it settles.
	if c.ledger.Pending(userID, threadID, action.Read) {
		return nil
	}

	if thread, ok := c.cache.Thread(userID, threadID); ok {
		c.cache.SetLabels(userID, threadID, action.Apply(action.ReadParams{Read: true}, thread.Labels))
	}

	return nil
}

// RefreshCounts reads the counters from the provider and returns them with the effect of unsettled
// actions applied.
func (c *Coordinator) RefreshCounts(ctx context.Context, userID string) (driver.Counts, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}

	drv, err := c.newDriver(ctx, userID)
	if err != nil {
		return nil, err
	}

	counts, err := drv.Count(ctx)
	if err != nil {
		logrus.WithField(logging.UserIDKey, userID).WithError(err).Warn("Failed to refresh counts")
		observability.AddSyncMetric(ctx, metrics.GenerateCountRefreshFailedMetric())

		return nil, err
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	reconcile.Apply(c.cache, c.ledger, userID, reconcile.Result{Counts: counts})

	return c.cache.Counts(userID), nil
}
