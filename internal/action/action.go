// Package action describes the mutations a user can submit: their optimistic effect on a thread's
// labels and the provider calls that carry them out.
package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/bradenaw/juniper/xslices"
	"golang.org/x/exp/slices"

	"github.com/inboxkit/courier/driver"
)

var ErrInvalidParams = errors.New("invalid action parameters")

type Type string

const (
	Move      Type = "MOVE"
	Star      Type = "STAR"
	Read      Type = "READ"
	Label     Type = "LABEL"
	Important Type = "IMPORTANT"
)

// Types lists every action type.
var Types = []Type{Move, Star, Read, Label, Important}

// Params are the parameters of one action type.
type Params interface {
	Type() Type

	_isParams()
}

type MoveParams struct {
	Destination driver.LabelID
}

type StarParams struct {
	Starred bool
}

type ReadParams struct {
	Read bool
}

type LabelParams struct {
	LabelID driver.LabelID
	Add     bool
}

type ImportantParams struct {
	Important bool
}

func (MoveParams) Type() Type      { return Move }
func (StarParams) Type() Type      { return Star }
func (ReadParams) Type() Type      { return Read }
func (LabelParams) Type() Type     { return Label }
func (ImportantParams) Type() Type { return Important }

func (MoveParams) _isParams()      {}
func (StarParams) _isParams()      {}
func (ReadParams) _isParams()      {}
func (LabelParams) _isParams()     {}
func (ImportantParams) _isParams() {}

// handler implements one action type.
type handler struct {
	// validate checks the parameters before anything is applied.
	validate func(Params) error

	// scope returns the labels the action may add or remove.
	scope func(Params) []driver.LabelID

	// changes returns the label changes the action makes on every thread.
	changes func(Params) driver.Changes

	// execute performs the provider calls. ids never exceed the driver's batch size.
	execute func(context.Context, driver.Driver, []driver.ThreadID, Params) error
}

// handlers is filled in init: batchModify reaches back into the table through Changes.
var handlers map[Type]handler

func init() {
	handlers = map[Type]handler{
		Move: {
			validate: func(p Params) error {
				if dest := p.(MoveParams).Destination; !driver.IsFolder(dest) {
					return fmt.Errorf("%w: %q is not a folder", ErrInvalidParams, dest)
				}

				return nil
			},
			scope: func(Params) []driver.LabelID {
				return driver.FolderLabels
			},
			changes: func(p Params) driver.Changes {
				dest := p.(MoveParams).Destination

				if dest == driver.LabelArchive {
					return driver.Changes{Remove: slices.Clone(driver.FolderLabels)}
				}

				return driver.Changes{
					Add: []driver.LabelID{dest},
					Remove: xslices.Filter(driver.FolderLabels, func(label driver.LabelID) bool {
						return label != dest
					}),
				}
			},
			execute: func(ctx context.Context, drv driver.Driver, ids []driver.ThreadID, p Params) error {
				return drv.Move(ctx, ids, p.(MoveParams).Destination)
			},
		},

		Star: {
			scope: func(Params) []driver.LabelID {
				return []driver.LabelID{driver.LabelStarred}
			},
			changes: func(p Params) driver.Changes {
				return toggle(driver.LabelStarred, p.(StarParams).Starred)
			},
			execute: batchModify,
		},

		Read: {
			scope: func(Params) []driver.LabelID {
				return []driver.LabelID{driver.LabelUnread}
			},
			changes: func(p Params) driver.Changes {
				return toggle(driver.LabelUnread, !p.(ReadParams).Read)
			},
			execute: func(ctx context.Context, drv driver.Driver, ids []driver.ThreadID, p Params) error {
				if len(ids) == 1 && p.(ReadParams).Read {
					return drv.MarkAsRead(ctx, ids[0])
				}

				return batchModify(ctx, drv, ids, p)
			},
		},

		Label: {
			validate: func(p Params) error {
				switch label := p.(LabelParams).LabelID; {
				case label == "":
					return fmt.Errorf("%w: missing label", ErrInvalidParams)

				case driver.IsFolder(label), label == driver.LabelUnread, label == driver.LabelStarred, label == driver.LabelImportant:
					return fmt.Errorf("%w: %q cannot be set as a label", ErrInvalidParams, label)

				default:
					return nil
				}
			},
			scope: func(p Params) []driver.LabelID {
				return []driver.LabelID{p.(LabelParams).LabelID}
			},
			changes: func(p Params) driver.Changes {
				return toggle(p.(LabelParams).LabelID, p.(LabelParams).Add)
			},
			execute: func(ctx context.Context, drv driver.Driver, ids []driver.ThreadID, p Params) error {
				if len(ids) == 1 {
					return drv.Label(ctx, ids[0], p.(LabelParams).LabelID, p.(LabelParams).Add)
				}

				return batchModify(ctx, drv, ids, p)
			},
		},

		Important: {
			scope: func(Params) []driver.LabelID {
				return []driver.LabelID{driver.LabelImportant}
			},
			changes: func(p Params) driver.Changes {
				return toggle(driver.LabelImportant, p.(ImportantParams).Important)
			},
			execute: batchModify,
		},
	}
}

func handlerOf(p Params) handler {
	h, ok := handlers[p.Type()]
	if !ok {
		panic(fmt.Sprintf("bad action type: %v", p.Type()))
	}

	return h
}

// Validate checks the parameters.
func Validate(p Params) error {
	if p == nil {
		return fmt.Errorf("%w: missing parameters", ErrInvalidParams)
	}

	if h := handlerOf(p); h.validate != nil {
		return h.validate(p)
	}

	return nil
}

// Scope returns the labels the action may add or remove.
func Scope(p Params) []driver.LabelID {
	return handlerOf(p).scope(p)
}

// Changes returns the label changes the action makes.
func Changes(p Params) driver.Changes {
	return handlerOf(p).changes(p)
}

// Apply returns the labels of a thread once the action has been applied to it.
func Apply(p Params, labels []driver.LabelID) []driver.LabelID {
	changes := Changes(p)

	res := make([]driver.LabelID, 0, len(labels)+len(changes.Add))

	for _, label := range labels {
		if !slices.Contains(changes.Remove, label) && !slices.Contains(res, label) {
			res = append(res, label)
		}
	}

	for _, label := range changes.Add {
		if !slices.Contains(res, label) {
			res = append(res, label)
		}
	}

	slices.Sort(res)

	return res
}

// Snapshot returns the labels within the action's scope that are present.
func Snapshot(p Params, labels []driver.LabelID) []driver.LabelID {
	scope := Scope(p)

	var res []driver.LabelID

	for _, label := range labels {
		if slices.Contains(scope, label) && !slices.Contains(res, label) {
			res = append(res, label)
		}
	}

	slices.Sort(res)

	return res
}

// Restore returns the labels with the action's scope reset to the given snapshot.
func Restore(p Params, labels, snapshot []driver.LabelID) []driver.LabelID {
	scope := Scope(p)

	res := make([]driver.LabelID, 0, len(labels)+len(snapshot))

	for _, label := range labels {
		if !slices.Contains(scope, label) && !slices.Contains(res, label) {
			res = append(res, label)
		}
	}

	for _, label := range snapshot {
		if !slices.Contains(res, label) {
			res = append(res, label)
		}
	}

	slices.Sort(res)

	return res
}

// Inverts returns whether applying next right after prev leaves the labels within their scope
// exactly as they were before prev, given the snapshot taken before prev.
func Inverts(prev, next Params, snapshot []driver.LabelID) bool {
	if prev.Type() != next.Type() || !slices.Equal(Scope(prev), Scope(next)) {
		return false
	}

	return slices.Equal(Snapshot(prev, Apply(next, Apply(prev, snapshot))), Snapshot(prev, snapshot))
}

// Execute performs the provider calls of the action, splitting ids into batches the driver accepts.
func Execute(ctx context.Context, drv driver.Driver, ids []driver.ThreadID, p Params) error {
	if len(ids) == 0 {
		return nil
	}

	h := handlerOf(p)

	size := drv.MaxBatchSize()
	if size <= 0 {
		size = len(ids)
	}

	for _, chunk := range xslices.Chunk(ids, size) {
		if err := h.execute(ctx, drv, chunk, p); err != nil {
			return err
		}
	}

	return nil
}

func batchModify(ctx context.Context, drv driver.Driver, ids []driver.ThreadID, p Params) error {
	return drv.BatchModify(ctx, ids, Changes(p))
}

func toggle(label driver.LabelID, add bool) driver.Changes {
	if add {
		return driver.Changes{Add: []driver.LabelID{label}}
	}

	return driver.Changes{Remove: []driver.LabelID{label}}
}
