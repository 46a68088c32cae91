package wait

import (
	"sync"

	"github.com/inboxkit/courier/async"
)

// Group is a sync.WaitGroup whose goroutines pass panics to a handler.
type Group struct {
	wg           sync.WaitGroup
	PanicHandler async.PanicHandler
}

func (wg *Group) Go(f func()) {
	wg.wg.Add(1)

	go func() {
		defer wg.wg.Done()
		defer async.HandlePanic(wg.PanicHandler)

		f()
	}()
}

func (wg *Group) Wait() {
	wg.wg.Wait()
}
