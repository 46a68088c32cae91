package profiling

import (
	"context"

	"github.com/inboxkit/courier/driver"
)

var _ driver.Driver = (*profiledDriver)(nil)

type profiledDriver struct {
	drv      driver.Driver
	profiler DriverProfiler
}

// WrapDriver reports every call of drv to the profiler.
func WrapDriver(drv driver.Driver, profiler DriverProfiler) driver.Driver {
	if profiler == nil {
		return drv
	}

	return &profiledDriver{drv: drv, profiler: profiler}
}

func (d *profiledDriver) Get(ctx context.Context, id driver.ThreadID) (driver.Thread, error) {
	d.profiler.Start(OpGet)
	defer d.profiler.Stop(OpGet)

	return d.drv.Get(ctx, id)
}

func (d *profiledDriver) MarkAsRead(ctx context.Context, id driver.ThreadID) error {
	d.profiler.Start(OpMarkAsRead)
	defer d.profiler.Stop(OpMarkAsRead)

	return d.drv.MarkAsRead(ctx, id)
}

func (d *profiledDriver) Count(ctx context.Context) (driver.Counts, error) {
	d.profiler.Start(OpCount)
	defer d.profiler.Stop(OpCount)

	return d.drv.Count(ctx)
}

func (d *profiledDriver) Label(ctx context.Context, id driver.ThreadID, labelID driver.LabelID, add bool) error {
	d.profiler.Start(OpLabel)
	defer d.profiler.Stop(OpLabel)

	return d.drv.Label(ctx, id, labelID, add)
}

func (d *profiledDriver) Move(ctx context.Context, ids []driver.ThreadID, destination driver.LabelID) error {
	d.profiler.Start(OpMove)
	defer d.profiler.Stop(OpMove)

	return d.drv.Move(ctx, ids, destination)
}

func (d *profiledDriver) BatchModify(ctx context.Context, ids []driver.ThreadID, changes driver.Changes) error {
	d.profiler.Start(OpBatchModify)
	defer d.profiler.Stop(OpBatchModify)

	return d.drv.BatchModify(ctx, ids, changes)
}

func (d *profiledDriver) MaxBatchSize() int {
	return d.drv.MaxBatchSize()
}
