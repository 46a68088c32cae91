package driver

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout bounds every call made through the driver by the given duration.
// A call that runs out of time fails with ErrTransient.
func WithTimeout(drv Driver, timeout time.Duration) Driver {
	if timeout <= 0 {
		return drv
	}

	return &timeoutDriver{drv: drv, timeout: timeout}
}

type timeoutDriver struct {
	drv     Driver
	timeout time.Duration
}

func (d *timeoutDriver) Get(ctx context.Context, id ThreadID) (Thread, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	thread, err := d.drv.Get(ctx, id)

	return thread, d.wrap(ctx, err)
}

func (d *timeoutDriver) MarkAsRead(ctx context.Context, id ThreadID) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	return d.wrap(ctx, d.drv.MarkAsRead(ctx, id))
}

func (d *timeoutDriver) Count(ctx context.Context) (Counts, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	counts, err := d.drv.Count(ctx)

	return counts, d.wrap(ctx, err)
}

func (d *timeoutDriver) Label(ctx context.Context, id ThreadID, labelID LabelID, add bool) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	return d.wrap(ctx, d.drv.Label(ctx, id, labelID, add))
}

func (d *timeoutDriver) Move(ctx context.Context, ids []ThreadID, destination LabelID) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	return d.wrap(ctx, d.drv.Move(ctx, ids, destination))
}

func (d *timeoutDriver) BatchModify(ctx context.Context, ids []ThreadID, changes Changes) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	return d.wrap(ctx, d.drv.BatchModify(ctx, ids, changes))
}

func (d *timeoutDriver) MaxBatchSize() int {
	return d.drv.MaxBatchSize()
}

func (d *timeoutDriver) wrap(ctx context.Context, err error) error {
	if err == nil || Kind(err) == ErrTransient || ctx.Err() == nil {
		return err
	}

	return fmt.Errorf("%w: %w", ErrTransient, err)
}
