// Package ticker runs a callback at a fixed period, or on demand.
package ticker

import (
	"context"
	"time"
)

type Ticker struct {
	period time.Duration
	pollCh chan chan struct{}
}

func New(period time.Duration) *Ticker {
	return &Ticker{
		period: period,
		pollCh: make(chan chan struct{}),
	}
}

// Poll runs the callback now. It blocks until the callback has returned or the context is done.
func (ticker *Ticker) Poll(ctx context.Context) error {
	doneCh := make(chan struct{})

	select {
	case ticker.pollCh <- doneCh:

	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-doneCh:
		return nil

	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run calls the given callback every period, or when the ticker is polled, until the context is done.
func (ticker *Ticker) Run(ctx context.Context, fn func(time.Time)) {
	t := time.NewTicker(ticker.period)
	defer t.Stop()

	for {
		select {
		case tick := <-t.C:
			fn(tick)

		case doneCh := <-ticker.pollCh:
			fn(time.Now())
			close(doneCh)

		case <-ctx.Done():
			return
		}
	}
}
