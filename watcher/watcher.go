// Package watcher delivers a filtered stream of values to a single reader.
package watcher

import (
	"reflect"

	"github.com/inboxkit/courier/async"
)

type Watcher[T any] struct {
	accept  func(T) bool
	eventCh *async.QueuedChannel[T]
}

// New returns a watcher of values of the given types, or of every value if none is given.
func New[T any](panicHandler async.PanicHandler, ofType ...T) *Watcher[T] {
	if len(ofType) == 0 {
		return NewFunc(panicHandler, func(T) bool { return true })
	}

	types := make(map[reflect.Type]struct{}, len(ofType))

	for _, t := range ofType {
		types[reflect.TypeOf(t)] = struct{}{}
	}

	return NewFunc(panicHandler, func(event T) bool {
		_, ok := types[reflect.TypeOf(event)]
		return ok
	})
}

// NewFunc returns a watcher of the values accepted by the given function.
// The function is called by senders and must not block.
func NewFunc[T any](panicHandler async.PanicHandler, accept func(T) bool) *Watcher[T] {
	return &Watcher[T]{
		accept:  accept,
		eventCh: async.NewQueuedChannel[T](1, 1, panicHandler, "Courier Watcher"),
	}
}

func (w *Watcher[T]) IsWatching(event T) bool {
	return w.accept(event)
}

func (w *Watcher[T]) GetChannel() <-chan T {
	return w.eventCh.GetChannel()
}

func (w *Watcher[T]) Send(event T) bool {
	return w.eventCh.Enqueue(event)
}

func (w *Watcher[T]) Close() {
	w.eventCh.CloseAndDiscardQueued()
	w.eventCh.Wait()
}
