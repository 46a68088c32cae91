package courier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/inboxkit/courier/async"
	"github.com/inboxkit/courier/busy"
	"github.com/inboxkit/courier/cache"
	"github.com/inboxkit/courier/connection"
	"github.com/inboxkit/courier/driver"
	"github.com/inboxkit/courier/events"
	"github.com/inboxkit/courier/internal/action"
	"github.com/inboxkit/courier/internal/ledger"
	"github.com/inboxkit/courier/limits"
	"github.com/inboxkit/courier/observability"
	"github.com/inboxkit/courier/profiling"
	"github.com/inboxkit/courier/reporter"
	"github.com/inboxkit/courier/store"
	"github.com/inboxkit/courier/wait"
	"github.com/inboxkit/courier/watcher"
)

// Factory builds the driver of a provider for a set of credentials.
type Factory interface {
	New(ctx context.Context, providerID string, creds driver.Credentials) (driver.Driver, error)
}

// Coordinator applies mail actions optimistically to the local view and settles them with the provider
// in the background.
type Coordinator struct {
	conns   connection.Finder
	factory Factory
	store   store.Store
	cache   *cache.Cache
	ledger  *ledger.Ledger
	busy    *busy.Set[ledger.Entity]

	// grace holds the grace window of every action type.
	grace map[action.Type]time.Duration

	retryAttempts int
	retryBackoff  time.Duration
	driverTimeout time.Duration
	limits        limits.Actions

	// profiler is told about every provider call.
	profiler profiling.DriverProfiler

	// timers holds the grace timers of actions in the grace window.
	timers map[ledger.ID]*time.Timer

	// lock guards the ledger, the timers and every cache update that must stay consistent with it.
	lock sync.Mutex

	// settled is signalled whenever an action leaves the ledger.
	settled *sync.Cond
	closed  bool

	// commits counts committed actions. A provider read is outdated if it changed while the read was in flight.
	commits uint64

	// watchers holds streams of events.
	watchers     []*watcher.Watcher[events.Event]
	watchersLock sync.RWMutex

	// execCtx is the context actions are executed in. It is cancelled when a shutdown runs out of time.
	execCtx    context.Context
	execCancel context.CancelFunc

	// execWG tracks executing actions.
	execWG wait.Group

	panicHandler async.PanicHandler
}

// New creates a new coordinator. The local view is loaded from the configured store.
func New(withOpt ...Option) (*Coordinator, error) {
	builder := newBuilder()

	for _, opt := range withOpt {
		opt.config(builder)
	}

	if err := builder.validate(); err != nil {
		return nil, err
	}

	c := cache.New(builder.store)

	if err := c.Load(); err != nil {
		return nil, fmt.Errorf("failed to load cache: %w", err)
	}

	ctx := reporter.NewContextWithReporter(context.Background(), builder.reporter)

	if builder.sender != nil {
		ctx = observability.NewContextWithObservabilitySender(ctx, builder.sender)
	}

	ctx, cancel := context.WithCancel(ctx)

	coordinator := &Coordinator{
		conns:         builder.conns,
		factory:       builder.factory,
		store:         builder.store,
		cache:         c,
		ledger:        ledger.New(),
		grace:         builder.grace,
		retryAttempts: builder.retryAttempts,
		retryBackoff:  builder.retryBackoff,
		driverTimeout: builder.driverTimeout,
		limits:        builder.limits,
		profiler:      builder.profiler,
		timers:        make(map[ledger.ID]*time.Timer),
		execCtx:       ctx,
		execCancel:    cancel,
		execWG:        wait.Group{PanicHandler: builder.panicHandler},
		panicHandler:  builder.panicHandler,
	}

	coordinator.settled = sync.NewCond(&coordinator.lock)
	coordinator.busy = busy.New(coordinator.onBusyChange)

	return coordinator, nil
}

// AddWatcher adds a new watcher which watches events of the given types.
// If no types are specified, the watcher watches all events.
func (c *Coordinator) AddWatcher(ofType ...events.Event) <-chan events.Event {
	c.watchersLock.Lock()
	defer c.watchersLock.Unlock()

	return c.addWatcher(watcher.New(c.panicHandler, ofType...))
}

// AddWatcherFunc adds a new watcher which watches the events accepted by the given function.
// The function is called while events are published and must not block.
func (c *Coordinator) AddWatcherFunc(accept func(events.Event) bool) <-chan events.Event {
	c.watchersLock.Lock()
	defer c.watchersLock.Unlock()

	return c.addWatcher(watcher.NewFunc(c.panicHandler, accept))
}

func (c *Coordinator) addWatcher(w *watcher.Watcher[events.Event]) <-chan events.Event {
	c.watchers = append(c.watchers, w)

	return w.GetChannel()
}

// RemoveWatcher stops the watcher of the given channel. Undelivered events are dropped.
func (c *Coordinator) RemoveWatcher(ch <-chan events.Event) {
	c.watchersLock.Lock()
	defer c.watchersLock.Unlock()

	idx := slices.IndexFunc(c.watchers, func(w *watcher.Watcher[events.Event]) bool {
		return w.GetChannel() == ch
	})

	if idx < 0 {
		return
	}

	c.watchers[idx].Close()
	c.watchers = slices.Delete(c.watchers, idx, idx+1)
}

// SetGraceWindow changes the grace window of an action type. Actions already in their grace window
// keep the window they started with.
func (c *Coordinator) SetGraceWindow(typ action.Type, d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.grace[typ] = d
}

// Pending returns whether an unsettled action of the given type exists on the thread.
func (c *Coordinator) Pending(userID string, threadID driver.ThreadID, typ action.Type) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.ledger.Pending(userID, threadID, typ)
}

// PendingByType returns the number of unsettled actions of every type, across all users.
// Types without unsettled actions are left out.
func (c *Coordinator) PendingByType() map[action.Type]int {
	c.lock.Lock()
	defer c.lock.Unlock()

	res := make(map[action.Type]int)

	for _, typ := range action.Types {
		if n := len(c.ledger.ByType(typ)); n > 0 {
			res[typ] = n
		}
	}

	return res
}

// Busy returns whether a provider call is in flight on the thread.
func (c *Coordinator) Busy(userID string, threadID driver.ThreadID) bool {
	return c.busy.Contains(ledger.Entity{UserID: userID, ThreadID: threadID})
}

// BusyThreads returns the threads of the user with a provider call in flight.
func (c *Coordinator) BusyThreads(userID string) []driver.ThreadID {
	var threadIDs []driver.ThreadID

	for _, entity := range c.busy.Filter(func(entity ledger.Entity) bool { return entity.UserID == userID }) {
		threadIDs = append(threadIDs, entity.ThreadID)
	}

	slices.Sort(threadIDs)

	return threadIDs
}

// Thread returns the local view of the thread.
func (c *Coordinator) Thread(userID string, threadID driver.ThreadID) (driver.Thread, bool) {
	return c.cache.Thread(userID, threadID)
}

// Counts returns the local view of the user's counters.
func (c *Coordinator) Counts(userID string) driver.Counts {
	return c.cache.Counts(userID)
}

// Close flushes every unsettled action to the provider and waits for them to settle.
// If ctx expires first, the remaining actions are rolled back locally and reported as failed.
func (c *Coordinator) Close(ctx context.Context) error {
	c.lock.Lock()

	if c.closed {
		c.lock.Unlock()
		return nil
	}

	c.closed = true

	for id, timer := range c.timers {
		timer.Stop()
		delete(c.timers, id)
	}

	for _, a := range c.ledger.All() {
		if a.State == ledger.Grace {
			c.promote(a)
		}
	}

	c.lock.Unlock()

	var forced bool

	stop := make(chan struct{})
	defer close(stop)

	go func() {
		select {
		case <-ctx.Done():
			c.lock.Lock()
			defer c.lock.Unlock()

			if c.ledger.Len() > 0 {
				forced = true
				c.interrupt()
			}

		case <-stop:
		}
	}()

	c.lock.Lock()

	for c.ledger.Len() > 0 {
		c.settled.Wait()
	}

	wasForced := forced

	c.lock.Unlock()

	c.execCancel()
	c.execWG.Wait()
	c.busy.Clear()

	c.watchersLock.Lock()

	for _, w := range c.watchers {
		w.Close()
	}

	c.watchers = nil

	c.watchersLock.Unlock()

	if err := c.store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}

	logrus.Debug("Coordinator was closed")

	if wasForced {
		return fmt.Errorf("unsettled actions were rolled back: %w", ctx.Err())
	}

	return nil
}

func (c *Coordinator) publish(event events.Event) {
	c.watchersLock.RLock()
	defer c.watchersLock.RUnlock()

	for _, w := range c.watchers {
		if w.IsWatching(event) {
			if !w.Send(event) {
				logrus.WithField("event", fmt.Sprintf("%T", event)).Warn("Failed to send event to watcher")
			}
		}
	}
}

func (c *Coordinator) onBusyChange(added, removed []ledger.Entity) {
	for userID, threadIDs := range groupByUser(added) {
		c.publish(events.ThreadsBusy{UserID: userID, ThreadIDs: threadIDs})
	}

	for userID, threadIDs := range groupByUser(removed) {
		c.publish(events.ThreadsIdle{UserID: userID, ThreadIDs: threadIDs})
	}
}

func groupByUser(entities []ledger.Entity) map[string][]driver.ThreadID {
	res := make(map[string][]driver.ThreadID)

	for _, entity := range entities {
		res[entity.UserID] = append(res[entity.UserID], entity.ThreadID)
	}

	return res
}

func toEvent(a *ledger.PendingAction) events.Action {
	return events.Action{
		UserID:    a.UserID,
		ActionID:  string(a.ID),
		Type:      string(a.Type()),
		ThreadIDs: slices.Clone(a.ThreadIDs),
	}
}
