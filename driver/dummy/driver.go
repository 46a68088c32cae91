package dummy

import (
	"context"
	"fmt"

	"github.com/inboxkit/courier/driver"
)

type dummyDriver struct {
	conn  *Dummy
	creds driver.Credentials
}

func (d *dummyDriver) Get(ctx context.Context, id driver.ThreadID) (driver.Thread, error) {
	if err := d.handle(ctx, Call{Op: OpGet, ThreadIDs: []driver.ThreadID{id}}); err != nil {
		return driver.Thread{}, err
	}

	thread, ok := d.conn.state.getThread(id)
	if !ok {
		return driver.Thread{}, fmt.Errorf("thread %v: %w", id, driver.ErrNotFound)
	}

	return thread, nil
}

func (d *dummyDriver) MarkAsRead(ctx context.Context, id driver.ThreadID) error {
	return d.modify(ctx, OpMarkAsRead, []driver.ThreadID{id}, driver.Changes{Remove: []driver.LabelID{driver.LabelUnread}})
}

func (d *dummyDriver) Count(ctx context.Context) (driver.Counts, error) {
	if err := d.handle(ctx, Call{Op: OpCount}); err != nil {
		return nil, err
	}

	return d.conn.state.count(), nil
}

func (d *dummyDriver) Label(ctx context.Context, id driver.ThreadID, labelID driver.LabelID, add bool) error {
	var changes driver.Changes

	if add {
		changes.Add = []driver.LabelID{labelID}
	} else {
		changes.Remove = []driver.LabelID{labelID}
	}

	return d.modify(ctx, OpLabel, []driver.ThreadID{id}, changes)
}

func (d *dummyDriver) Move(ctx context.Context, ids []driver.ThreadID, destination driver.LabelID) error {
	if !driver.IsFolder(destination) {
		return fmt.Errorf("cannot move to %v: %w", destination, driver.ErrPermanent)
	}

	changes := driver.Changes{Remove: driver.FolderLabels}

	if destination != driver.LabelArchive {
		changes.Add = []driver.LabelID{destination}
	}

	return d.modify(ctx, OpMove, ids, changes)
}

func (d *dummyDriver) BatchModify(ctx context.Context, ids []driver.ThreadID, changes driver.Changes) error {
	return d.modify(ctx, OpBatchModify, ids, changes)
}

func (d *dummyDriver) MaxBatchSize() int {
	return d.conn.maxBatch
}

func (d *dummyDriver) modify(ctx context.Context, op Op, ids []driver.ThreadID, changes driver.Changes) error {
	if len(ids) > d.conn.maxBatch {
		return fmt.Errorf("%v ids: %w", len(ids), driver.ErrBatchTooLarge)
	}

	d.conn.enter(ids)
	defer d.conn.leave(ids)

	if err := d.handle(ctx, Call{Op: op, ThreadIDs: ids, Changes: changes}); err != nil {
		return err
	}

	if !d.conn.state.modify(ids, changes) {
		return fmt.Errorf("threads %v: %w", ids, driver.ErrNotFound)
	}

	return nil
}

// handle records the call then applies authorization, simulated latency and injected faults.
func (d *dummyDriver) handle(ctx context.Context, call Call) error {
	d.conn.record(call)

	if err := d.conn.authorize(d.creds); err != nil {
		return err
	}

	if err := d.conn.wait(ctx, call.Op); err != nil {
		return err
	}

	return d.conn.popFault(call.Op)
}
