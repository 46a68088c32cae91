// Package dummy implements an in-memory mail provider used for development and tests.
package dummy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bradenaw/juniper/xslices"
	"golang.org/x/exp/slices"

	"github.com/inboxkit/courier/driver"
)

// Op identifies a driver operation.
type Op string

const (
	OpGet         Op = "get"
	OpMarkAsRead  Op = "markAsRead"
	OpCount       Op = "count"
	OpLabel       Op = "label"
	OpMove        Op = "move"
	OpBatchModify Op = "batchModify"
)

// IsMutation returns whether the operation changes provider state.
func (op Op) IsMutation() bool {
	return op != OpGet && op != OpCount
}

// Call records a driver operation received by the provider.
type Call struct {
	Op        Op
	ThreadIDs []driver.ThreadID
	Changes   driver.Changes
}

// Dummy is a fake provider. All drivers built from it share its state.
type Dummy struct {
	// state holds the fake mailbox.
	state *dummyState

	// tokens holds the access tokens accepted by the provider; any token is accepted if empty.
	tokens     map[string]struct{}
	revoked    bool
	tokensLock sync.RWMutex

	// maxBatch is the batch size reported by the drivers.
	maxBatch int

	// calls records every operation received.
	calls     []Call
	callsLock sync.Mutex

	// faults holds errors to return, in order, from the next calls of an operation.
	faults     map[Op][]error
	faultsLock sync.Mutex

	// delay is applied to every call before it is handled.
	delay     time.Duration
	delayLock sync.RWMutex

	// gate, when set, blocks mutations until it is closed.
	gate     chan struct{}
	gateLock sync.Mutex

	// inflight tracks the number of concurrent mutations per thread and the observed maximum.
	inflight     map[driver.ThreadID]int
	maxInflight  int
	inflightLock sync.Mutex
}

func NewDummy(accessTokens ...string) *Dummy {
	tokens := make(map[string]struct{}, len(accessTokens))

	for _, token := range accessTokens {
		tokens[token] = struct{}{}
	}

	return &Dummy{
		state:    newDummyState(),
		tokens:   tokens,
		maxBatch: 100,
		faults:   make(map[Op][]error),
		inflight: make(map[driver.ThreadID]int),
	}
}

// Driver returns a driver bound to the given credentials. It performs no I/O.
func (conn *Dummy) Driver(creds driver.Credentials) driver.Driver {
	return &dummyDriver{conn: conn, creds: creds}
}

// CreateThread adds a new thread with the given labels to the mailbox.
func (conn *Dummy) CreateThread(subject string, labels ...driver.LabelID) driver.ThreadID {
	return conn.state.createThread(subject, labels...)
}

// DeleteThread removes the thread from the mailbox, as if it was deleted by another client.
func (conn *Dummy) DeleteThread(threadID driver.ThreadID) {
	conn.state.deleteThread(threadID)
}

// Thread returns the provider's view of the thread.
func (conn *Dummy) Thread(threadID driver.ThreadID) (driver.Thread, bool) {
	return conn.state.getThread(threadID)
}

// SetMaxBatchSize changes the batch size reported by drivers.
func (conn *Dummy) SetMaxBatchSize(max int) {
	conn.maxBatch = max
}

// RevokeTokens makes the provider reject every access token until new ones are accepted.
func (conn *Dummy) RevokeTokens() {
	conn.tokensLock.Lock()
	defer conn.tokensLock.Unlock()

	conn.revoked = true
}

// AcceptTokens makes the provider accept the given access tokens.
func (conn *Dummy) AcceptTokens(accessTokens ...string) {
	conn.tokensLock.Lock()
	defer conn.tokensLock.Unlock()

	conn.tokens = make(map[string]struct{}, len(accessTokens))
	conn.revoked = false

	for _, token := range accessTokens {
		conn.tokens[token] = struct{}{}
	}
}

// FailNext makes the next calls of the operation fail with the given errors, in order.
func (conn *Dummy) FailNext(op Op, errs ...error) {
	conn.faultsLock.Lock()
	defer conn.faultsLock.Unlock()

	conn.faults[op] = append(conn.faults[op], errs...)
}

// SetDelay makes every call take at least the given time.
func (conn *Dummy) SetDelay(delay time.Duration) {
	conn.delayLock.Lock()
	defer conn.delayLock.Unlock()

	conn.delay = delay
}

// Hold blocks all mutations until the returned function is called.
func (conn *Dummy) Hold() func() {
	conn.gateLock.Lock()
	defer conn.gateLock.Unlock()

	gate := make(chan struct{})
	conn.gate = gate

	var once sync.Once

	return func() {
		once.Do(func() {
			conn.gateLock.Lock()
			defer conn.gateLock.Unlock()

			close(gate)

			if conn.gate == gate {
				conn.gate = nil
			}
		})
	}
}

// Calls returns every call received so far.
func (conn *Dummy) Calls() []Call {
	conn.callsLock.Lock()
	defer conn.callsLock.Unlock()

	return slices.Clone(conn.calls)
}

// CallCount returns the number of calls received for the given operations (all if none given).
func (conn *Dummy) CallCount(ops ...Op) int {
	conn.callsLock.Lock()
	defer conn.callsLock.Unlock()

	return len(xslices.Filter(conn.calls, func(call Call) bool {
		return len(ops) == 0 || slices.Contains(ops, call.Op)
	}))
}

// MutationCount returns the number of state changing calls received.
func (conn *Dummy) MutationCount() int {
	conn.callsLock.Lock()
	defer conn.callsLock.Unlock()

	return len(xslices.Filter(conn.calls, func(call Call) bool {
		return call.Op.IsMutation()
	}))
}

// MaxConcurrentMutations returns the highest number of mutations observed in flight on a single thread.
func (conn *Dummy) MaxConcurrentMutations() int {
	conn.inflightLock.Lock()
	defer conn.inflightLock.Unlock()

	return conn.maxInflight
}

func (conn *Dummy) record(call Call) {
	conn.callsLock.Lock()
	defer conn.callsLock.Unlock()

	conn.calls = append(conn.calls, call)
}

func (conn *Dummy) authorize(creds driver.Credentials) error {
	conn.tokensLock.RLock()
	defer conn.tokensLock.RUnlock()

	if conn.revoked {
		return fmt.Errorf("access token revoked: %w", driver.ErrUnauthorized)
	}

	if len(conn.tokens) == 0 {
		return nil
	}

	if _, ok := conn.tokens[creds.AccessToken]; !ok {
		return fmt.Errorf("access token refused: %w", driver.ErrUnauthorized)
	}

	return nil
}

func (conn *Dummy) popFault(op Op) error {
	conn.faultsLock.Lock()
	defer conn.faultsLock.Unlock()

	if len(conn.faults[op]) == 0 {
		return nil
	}

	var err error

	err, conn.faults[op] = conn.faults[op][0], conn.faults[op][1:]

	return err
}

func (conn *Dummy) wait(ctx context.Context, op Op) error {
	conn.delayLock.RLock()
	delay := conn.delay
	conn.delayLock.RUnlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", driver.ErrTransient, ctx.Err())
		}
	}

	if !op.IsMutation() {
		return nil
	}

	conn.gateLock.Lock()
	gate := conn.gate
	conn.gateLock.Unlock()

	if gate == nil {
		return nil
	}

	select {
	case <-gate:
		return nil

	case <-ctx.Done():
		return fmt.Errorf("%w: %w", driver.ErrTransient, ctx.Err())
	}
}

func (conn *Dummy) enter(threadIDs []driver.ThreadID) {
	conn.inflightLock.Lock()
	defer conn.inflightLock.Unlock()

	for _, threadID := range threadIDs {
		conn.inflight[threadID]++

		if conn.inflight[threadID] > conn.maxInflight {
			conn.maxInflight = conn.inflight[threadID]
		}
	}
}

func (conn *Dummy) leave(threadIDs []driver.ThreadID) {
	conn.inflightLock.Lock()
	defer conn.inflightLock.Unlock()

	for _, threadID := range threadIDs {
		if conn.inflight[threadID]--; conn.inflight[threadID] <= 0 {
			delete(conn.inflight, threadID)
		}
	}
}
