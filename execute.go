package courier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inboxkit/courier/driver"
	"github.com/inboxkit/courier/events"
	"github.com/inboxkit/courier/internal/action"
	"github.com/inboxkit/courier/internal/ledger"
	"github.com/inboxkit/courier/internal/reconcile"
	"github.com/inboxkit/courier/logging"
	"github.com/inboxkit/courier/observability"
	"github.com/inboxkit/courier/observability/metrics"
	"github.com/inboxkit/courier/profiling"
	"github.com/inboxkit/courier/reporter"
)

const (
	interruptedReason = "interrupted by shutdown"
	refreshAttempts   = 3
)

var errOutdatedView = errors.New("provider view outdated by a concurrent commit")

// start sends the action to the provider in the background.
func (c *Coordinator) start(a *ledger.PendingAction) {
	if err := c.ledger.Transition(a, ledger.Executing); err != nil {
		panic(err)
	}

	c.busy.AddMany(a.Entities())

	c.publish(events.ActionLoading{Action: toEvent(a)})

	c.execWG.Go(func() {
		logging.DoAnnotate(c.execCtx, func(ctx context.Context) {
			c.run(ctx, a)
		}, logging.Labels{
			logging.UserIDKey:   a.UserID,
			logging.ActionIDKey: a.ID,
			logging.TypeKey:     a.Type(),
		})
	})
}

func (c *Coordinator) run(ctx context.Context, a *ledger.PendingAction) {
	if err := c.execute(ctx, a); err != nil {
		c.lock.Lock()
		defer c.lock.Unlock()

		// The action was rolled back by an interrupted shutdown.
		if a.State == ledger.Executing {
			c.fail(ctx, a, err)
		}

		return
	}

	for attempt := 1; ; attempt++ {
		commits := c.commitCount()

		res, err := c.refresh(ctx, a)

		if c.tryCommit(ctx, a, commits, res, err, attempt >= refreshAttempts) {
			return
		}
	}
}

// tryCommit returns false if another action committed while the provider was read, in which case the
// provider's answer may predate that action and must be read again.
func (c *Coordinator) tryCommit(ctx context.Context, a *ledger.PendingAction, commits uint64, res reconcile.Result, recErr error, last bool) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	if a.State != ledger.Executing {
		return true
	}

	if recErr == nil && commits != c.commits {
		if !last {
			return false
		}

		recErr = errOutdatedView
	}

	c.commit(ctx, a, res, recErr)

	return true
}

func (c *Coordinator) commitCount() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.commits
}

// execute calls the provider, retrying transient failures with exponential backoff.
func (c *Coordinator) execute(ctx context.Context, a *ledger.PendingAction) error {
	backoff := c.retryBackoff

	for attempt := 1; ; attempt++ {
		err := c.attempt(ctx, a)
		if err == nil {
			return nil
		}

		if !driver.IsRetryable(err) || attempt >= c.retryAttempts {
			return err
		}

		c.logger(a).WithError(err).WithField("attempt", attempt).Warn("Action failed, retrying")

		timer := time.NewTimer(backoff)

		select {
		case <-timer.C:
			backoff *= 2

		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", driver.ErrTransient, ctx.Err())
		}
	}
}

// attempt builds a fresh driver so that renewed tokens are picked up between attempts.
func (c *Coordinator) attempt(ctx context.Context, a *ledger.PendingAction) error {
	drv, err := c.newDriver(ctx, a.UserID)
	if err != nil {
		return err
	}

	return action.Execute(ctx, drv, a.ThreadIDs, a.Params)
}

// refresh reads back the threads and counters the action changed.
func (c *Coordinator) refresh(ctx context.Context, a *ledger.PendingAction) (reconcile.Result, error) {
	drv, err := c.newDriver(ctx, a.UserID)
	if err != nil {
		return reconcile.Result{}, err
	}

	return reconcile.Fetch(ctx, drv, a.ThreadIDs, true)
}

func (c *Coordinator) commit(ctx context.Context, a *ledger.PendingAction, res reconcile.Result, recErr error) {
	if err := c.ledger.Transition(a, ledger.Committed); err != nil {
		panic(err)
	}

	c.commits++

	heads := c.remove(a)

	if recErr != nil {
		// The optimistic state already is what the provider confirmed; it is corrected by the next sync.
		c.logger(a).WithError(recErr).Warn("Failed to reconcile after action")
		observability.AddSyncMetric(ctx, metrics.GenerateReconcileFailedMetric())

		if errors.Is(recErr, errOutdatedView) {
			reporter.MessageWithContext(ctx, "Local view kept changing during reconciliation", reporter.Context{
				"type":    string(a.Type()),
				"threads": len(a.ThreadIDs),
			})
		}
	} else {
		reconcile.Apply(c.cache, c.ledger, a.UserID, res)
	}

	c.busy.RemoveMany(a.Entities())

	if a.Notify() {
		c.publish(events.ActionSucceeded{Action: toEvent(a)})
	}

	c.logger(a).Debug("Action committed")

	c.advance(heads)
}

func (c *Coordinator) fail(ctx context.Context, a *ledger.PendingAction, err error) {
	c.rollback(a)

	heads := c.remove(a)

	c.busy.RemoveMany(a.Entities())

	kind := driver.Kind(err)

	if errors.Is(err, ErrNoConnection) {
		kind = driver.ErrUnauthorized
	}

	switch {
	case errors.Is(err, driver.ErrNotFound):
		c.logger(a).WithError(err).Info("Threads vanished at the provider, action undone")

		if a.Notify() {
			c.publish(events.ActionUndone{Action: toEvent(a), Cause: events.UndoNotFound})
		}

	default:
		reconnect := kind == driver.ErrUnauthorized

		c.logger(a).WithError(err).WithField("reconnect", reconnect).Error("Action failed, rolled back")

		if a.Notify() {
			c.publish(events.ActionFailed{Action: toEvent(a), Reason: err.Error(), Reconnect: reconnect})
		}

		observability.AddActionMetric(ctx, metrics.GenerateActionFailedMetric(string(a.Type()), kindName(kind)))

		if kind == driver.ErrPermanent {
			reporter.ExceptionWithContext(ctx, "Action rejected by provider", reporter.Context{
				"type":    string(a.Type()),
				"threads": len(a.ThreadIDs),
				"error":   err.Error(),
			})
		}
	}

	c.advance(heads)
}

// interrupt rolls back every unsettled action. Executing actions may still reach the provider; their
// outcome is dropped and corrected by the next sync.
func (c *Coordinator) interrupt() {
	for _, a := range c.ledger.All() {
		if timer, ok := c.timers[a.ID]; ok {
			timer.Stop()
			delete(c.timers, a.ID)
		}

		wasExecuting := a.State == ledger.Executing

		c.rollback(a)
		c.remove(a)

		if wasExecuting {
			c.busy.RemoveMany(a.Entities())
		}

		if a.Notify() {
			c.publish(events.ActionFailed{Action: toEvent(a), Reason: interruptedReason})
		}

		observability.AddActionMetric(c.execCtx, metrics.GenerateActionInterruptedMetric(string(a.Type())))

		c.logger(a).Warn("Action interrupted by shutdown, rolled back")
	}
}

// newDriver builds a driver for the user's current connection. Its calls are bounded by the driver timeout.
func (c *Coordinator) newDriver(ctx context.Context, userID string) (driver.Driver, error) {
	conn, ok, err := c.conns.FindConnection(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find connection: %w", err)
	}

	if !ok {
		return nil, ErrNoConnection
	}

	if !conn.Usable() {
		return nil, fmt.Errorf("%w: %w", driver.ErrUnauthorized, ErrMissingTokens)
	}

	drv, err := c.factory.New(ctx, conn.ProviderID, conn.Credentials())
	if err != nil {
		return nil, err
	}

	return driver.WithTimeout(profiling.WrapDriver(drv, c.profiler), c.driverTimeout), nil
}

func kindName(kind error) string {
	switch kind {
	case driver.ErrTransient:
		return "transient"

	case driver.ErrUnauthorized:
		return "unauthorized"

	case driver.ErrNotFound:
		return "not_found"

	default:
		return "permanent"
	}
}

