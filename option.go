package courier

import (
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

// Option represents a type that can be used to configure the coordinator.
type Option interface {
	config(*coordinatorBuilder)
}

// WithGraceWindow sets how long actions of the given type wait before reaching the provider.
// A zero duration sends them immediately.
func WithGraceWindow(typ action.Type, d time.Duration) Option {
	return &withGraceWindow{typ: typ, d: d}
}

type withGraceWindow struct {
	typ action.Type
	d   time.Duration
}

func (opt withGraceWindow) config(builder *coordinatorBuilder) {
	builder.grace[opt.typ] = opt.d
}

// WithRetryPolicy sets how many times a transient failure is attempted and the initial backoff,
// which doubles after each attempt.
func WithRetryPolicy(attempts int, backoff time.Duration) Option {
	return &withRetryPolicy{attempts: attempts, backoff: backoff}
}

type withRetryPolicy struct {
	attempts int
	backoff  time.Duration
}

func (opt withRetryPolicy) config(builder *coordinatorBuilder) {
	builder.retryAttempts = opt.attempts
	builder.retryBackoff = opt.backoff
}

// WithDriverTimeout bounds each provider call.
func WithDriverTimeout(d time.Duration) Option {
	return &withDriverTimeout{d: d}
}

type withDriverTimeout struct {
	d time.Duration
}

func (opt withDriverTimeout) config(builder *coordinatorBuilder) {
	builder.driverTimeout = opt.d
}

// WithLimits sets upper limits on the actions users can submit.
func WithLimits(limits limits.Actions) Option {
	return &withLimits{limits: limits}
}

type withLimits struct {
	limits limits.Actions
}

func (opt withLimits) config(builder *coordinatorBuilder) {
	builder.limits = opt.limits
}

// WithConnectionStore sets where the provider connections of users are looked up.
func WithConnectionStore(conns connection.Finder) Option {
	return &withConnectionStore{conns: conns}
}

type withConnectionStore struct {
	conns connection.Finder
}

func (opt withConnectionStore) config(builder *coordinatorBuilder) {
	builder.conns = opt.conns
}

// WithFactory sets the factory drivers are built with.
func WithFactory(factory Factory) Option {
	return &withFactory{factory: factory}
}

type withFactory struct {
	factory Factory
}

func (opt withFactory) config(builder *coordinatorBuilder) {
	builder.factory = opt.factory
}

// WithStore sets the store the local view of accounts is persisted in.
func WithStore(st store.Store) Option {
	return &withStore{st: st}
}

type withStore struct {
	st store.Store
}

func (opt withStore) config(builder *coordinatorBuilder) {
	builder.store = opt.st
}

// WithReporter instructs the coordinator to report unexpected failures to the given reporter.
func WithReporter(reporter reporter.Reporter) Option {
	return &withReporter{reporter: reporter}
}

type withReporter struct {
	reporter reporter.Reporter
}

func (opt withReporter) config(builder *coordinatorBuilder) {
	builder.reporter = opt.reporter
}

// WithPanicHandler sets the handler of panics in background goroutines.
func WithPanicHandler(panicHandler async.PanicHandler) Option {
	return &withPanicHandler{panicHandler: panicHandler}
}

type withPanicHandler struct {
	panicHandler async.PanicHandler
}

func (opt withPanicHandler) config(builder *coordinatorBuilder) {
	builder.panicHandler = opt.panicHandler
}

// WithObservabilitySender sets where failure metrics are sent.
func WithObservabilitySender(sender observability.Sender) Option {
	return &withObservabilitySender{sender: sender}
}

type withObservabilitySender struct {
	sender observability.Sender
}

func (opt withObservabilitySender) config(builder *coordinatorBuilder) {
	builder.sender = opt.sender
}

// WithDriverProfiler sets the profiler told about every call made to a provider.
func WithDriverProfiler(profiler profiling.DriverProfiler) Option {
	return &withDriverProfiler{profiler: profiler}
}

type withDriverProfiler struct {
	profiler profiling.DriverProfiler
}

func (opt withDriverProfiler) config(builder *coordinatorBuilder) {
	builder.profiler = opt.profiler
}
