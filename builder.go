package courier

import (
	"errors"
	"time"

	"github.com/inboxkit/courier/async"
	"github.com/inboxkit/courier/connection"
	"github.com/inboxkit/courier/internal/action"
	"github.com/inboxkit/courier/limits"
	"github.com/inboxkit/courier/observability"
	"github.com/inboxkit/courier/profiling"
	"github.com/inboxkit/courier/reporter"
	"github.com/inboxkit/courier/store"
)

const (
	defaultMoveGrace     = 5 * time.Second
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 200 * time.Millisecond
	defaultDriverTimeout = 30 * time.Second
)

type coordinatorBuilder struct {
	conns         connection.Finder
	factory       Factory
	store         store.Store
	grace         map[action.Type]time.Duration
	retryAttempts int
	retryBackoff  time.Duration
	driverTimeout time.Duration
	limits        limits.Actions
	profiler      profiling.DriverProfiler
	panicHandler  async.PanicHandler
	reporter      reporter.Reporter
	sender        observability.Sender
}

func newBuilder() *coordinatorBuilder {
	return &coordinatorBuilder{
		grace: map[action.Type]time.Duration{
			action.Move: defaultMoveGrace,
		},
		retryAttempts: defaultRetryAttempts,
		retryBackoff:  defaultRetryBackoff,
		driverTimeout: defaultDriverTimeout,
		limits:        limits.DefaultLimits(),
		panicHandler:  async.NoopPanicHandler{},
		reporter:      &reporter.NullReporter{},
	}
}

func (builder *coordinatorBuilder) validate() error {
	if builder.conns == nil {
		return errors.New("a connection store is required")
	}

	if builder.factory == nil {
		return errors.New("a driver factory is required")
	}

	if builder.retryAttempts < 1 {
		return errors.New("at least one attempt is required")
	}

	if builder.store == nil {
		builder.store = store.NewInMemoryStore()
	}

	return nil
}
