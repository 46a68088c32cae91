package async

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/inboxkit/courier/logging"
)

// QueuedChannel represents a channel on which queued items can be published without having to worry if the reader
// has actually consumed existing items first or if there's no way of knowing ahead of time what the ideal channel
// buffer size should be.
type QueuedChannel[T any] struct {
	ch     chan T
	stopCh chan struct{}
	items  []T
	cond   *sync.Cond
	closed atomic.Bool
	stop   sync.Once
	wg     sync.WaitGroup
}

func NewQueuedChannel[T any](chanBufferSize, queueCapacity int, panicHandler PanicHandler, name string) *QueuedChannel[T] {
	queue := &QueuedChannel[T]{
		ch:     make(chan T, chanBufferSize),
		stopCh: make(chan struct{}),
		items:  make([]T, 0, queueCapacity),
		cond:   sync.NewCond(&sync.Mutex{}),
	}

	queue.wg.Add(1)

	logging.GoAnnotate(context.Background(), func(ctx context.Context) {
		defer HandlePanic(panicHandler)
		defer queue.wg.Done()
		defer close(queue.ch)

		for {
			item, ok := queue.pop()
			if !ok {
				return
			}

			select {
			case queue.ch <- item:

			case <-queue.stopCh:
				return
			}
		}
	}, logging.Labels{"Name": name})

	return queue
}

func (q *QueuedChannel[T]) Enqueue(items ...T) bool {
	if q.closed.Load() {
		return false
	}

	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	q.items = append(q.items, items...)

	q.cond.Broadcast()

	return true
}

func (q *QueuedChannel[T]) GetChannel() <-chan T {
	return q.ch
}

// Close stops accepting items. Items already queued are still delivered.
func (q *QueuedChannel[T]) Close() {
	q.closed.Store(true)

	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	q.cond.Broadcast()
}

// CloseAndDiscardQueued stops accepting items and drops those not yet read.
func (q *QueuedChannel[T]) CloseAndDiscardQueued() {
	q.closed.Store(true)

	q.stop.Do(func() { close(q.stopCh) })

	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	q.items = nil

	q.cond.Broadcast()
}

// Wait blocks until the channel has been closed by the publishing goroutine.
func (q *QueuedChannel[T]) Wait() {
	q.wg.Wait()
}

func (q *QueuedChannel[T]) pop() (T, bool) {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	var item T

	// Wait until there are items to pop, returning false immediately if the queue is closed.
	// This allows the queue to continue popping elements if it's closed,
	// but will prevent it from hanging indefinitely once it runs out of items.
	for len(q.items) == 0 {
		if q.closed.Load() {
			return item, false
		}

		q.cond.Wait()
	}

	item, q.items = q.items[0], q.items[1:]

	return item, true
}
