// Package ledger records the actions that have been applied optimistically but not yet settled.
//
// Actions are ordered in lanes, one per (user, thread, action type), in creation order. An action may
// only run once it heads every lane it belongs to, so at most one action per thread and type is ever
// in flight. The ledger is not safe for concurrent use.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/bradenaw/juniper/sets"
	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/inboxkit/courier/driver"
	"github.com/inboxkit/courier/internal/action"
)

var (
	ErrConflict       = errors.New("an action of the same type is already pending on these threads")
	ErrNoSuchAction   = errors.New("no such action")
	ErrNotCancellable = errors.New("action is already executing")
	ErrBadTransition  = errors.New("invalid action state transition")
)

type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

// Entity identifies one thread of one user.
type Entity struct {
	UserID   string
	ThreadID driver.ThreadID
}

type laneKey struct {
	Entity

	Type action.Type
}

// PendingAction is an action applied locally and waiting for the provider to confirm it.
type PendingAction struct {
	ID        ID
	UserID    string
	ThreadIDs []driver.ThreadID
	Params    action.Params
	State     State
	CreatedAt time.Time

	// Snapshot holds, for every thread, the labels within the action's scope before it was applied.
	Snapshot map[driver.ThreadID][]driver.LabelID

	seq      uint64
	notified bool
}

func (a *PendingAction) Type() action.Type {
	return a.Params.Type()
}

// Entities returns the threads of the action as entities.
func (a *PendingAction) Entities() []Entity {
	entities := make([]Entity, 0, len(a.ThreadIDs))

	for _, threadID := range a.ThreadIDs {
		entities = append(entities, Entity{UserID: a.UserID, ThreadID: threadID})
	}

	return entities
}

// Notify returns true the first time it is called. It guards the single outcome notification of
// an action.
func (a *PendingAction) Notify() bool {
	if a.notified {
		return false
	}

	a.notified = true

	return true
}

func (a *PendingAction) lanes() []laneKey {
	keys := make([]laneKey, 0, len(a.ThreadIDs))

	for _, entity := range a.Entities() {
		keys = append(keys, laneKey{Entity: entity, Type: a.Type()})
	}

	return keys
}

type Ledger struct {
	byID   map[ID]*PendingAction
	byType map[action.Type]sets.Map[ID]
	byUser map[string][]ID
	lanes  map[laneKey][]ID
	seq    uint64
}

func New() *Ledger {
	return &Ledger{
		byID:   make(map[ID]*PendingAction),
		byType: make(map[action.Type]sets.Map[ID]),
		byUser: make(map[string][]ID),
		lanes:  make(map[laneKey][]ID),
	}
}

// Add registers a new action in the Created state at the tail of its lanes.
func (l *Ledger) Add(a *PendingAction) {
	if a.ID == "" {
		a.ID = NewID()
	}

	a.State = Created

	l.seq++
	a.seq = l.seq

	l.byID[a.ID] = a

	if _, ok := l.byType[a.Type()]; !ok {
		l.byType[a.Type()] = make(sets.Map[ID])
	}

	l.byType[a.Type()].Add(a.ID)
	l.byUser[a.UserID] = append(l.byUser[a.UserID], a.ID)

	for _, key := range a.lanes() {
		l.lanes[key] = append(l.lanes[key], a.ID)
	}
}

// Remove drops a settled action from every index. It returns the actions that became the head of
// a lane as a result.
func (l *Ledger) Remove(id ID) []*PendingAction {
	a, ok := l.byID[id]
	if !ok {
		return nil
	}

	delete(l.byID, id)

	if set, ok := l.byType[a.Type()]; ok {
		set.Remove(id)

		if set.Len() == 0 {
			delete(l.byType, a.Type())
		}
	}

	l.byUser[a.UserID] = remove(l.byUser[a.UserID], id)

	if len(l.byUser[a.UserID]) == 0 {
		delete(l.byUser, a.UserID)
	}

	var heads []*PendingAction

	for _, key := range a.lanes() {
		wasHead := len(l.lanes[key]) > 0 && l.lanes[key][0] == id

		l.lanes[key] = remove(l.lanes[key], id)

		if len(l.lanes[key]) == 0 {
			delete(l.lanes, key)
			continue
		}

		if head := l.byID[l.lanes[key][0]]; wasHead && !slices.Contains(heads, head) {
			heads = append(heads, head)
		}
	}

	return heads
}

// Transition moves the action to the given state.
func (l *Ledger) Transition(a *PendingAction, to State) error {
	if !a.State.canTransitionTo(to) {
		return fmt.Errorf("%w: %v -> %v", ErrBadTransition, a.State, to)
	}

	a.State = to

	return nil
}

func (l *Ledger) Get(id ID) (*PendingAction, bool) {
	a, ok := l.byID[id]

	return a, ok
}

// Ready returns whether the action heads every lane it belongs to.
func (l *Ledger) Ready(a *PendingAction) bool {
	for _, key := range a.lanes() {
		if lane := l.lanes[key]; len(lane) == 0 || lane[0] != a.ID {
			return false
		}
	}

	return true
}

// Conflicts returns whether any of the threads has an unsettled action of the given type.
func (l *Ledger) Conflicts(userID string, threadIDs []driver.ThreadID, typ action.Type) bool {
	for _, threadID := range threadIDs {
		if l.Pending(userID, threadID, typ) {
			return true
		}
	}

	return false
}

// Pending returns whether the thread has an unsettled action of the given type.
func (l *Ledger) Pending(userID string, threadID driver.ThreadID, typ action.Type) bool {
	return len(l.lanes[laneKey{Entity: Entity{UserID: userID, ThreadID: threadID}, Type: typ}]) > 0
}

// Lane returns the unsettled actions of the given type on the thread, oldest first.
func (l *Ledger) Lane(userID string, threadID driver.ThreadID, typ action.Type) []*PendingAction {
	return l.resolve(l.lanes[laneKey{Entity: Entity{UserID: userID, ThreadID: threadID}, Type: typ}])
}

// Tail returns whether a is the most recent action of its lane on every thread.
func (l *Ledger) Tail(a *PendingAction) bool {
	for _, key := range a.lanes() {
		if lane := l.lanes[key]; len(lane) == 0 || lane[len(lane)-1] != a.ID {
			return false
		}
	}

	return true
}

// OnThread returns every unsettled action touching the thread, oldest first.
func (l *Ledger) OnThread(userID string, threadID driver.ThreadID) []*PendingAction {
	var res []*PendingAction

	for _, id := range l.byUser[userID] {
		if a := l.byID[id]; slices.Contains(a.ThreadIDs, threadID) {
			res = append(res, a)
		}
	}

	return res
}

// Threads returns the threads of the user that have unsettled actions.
func (l *Ledger) Threads(userID string) []driver.ThreadID {
	var res []driver.ThreadID

	for _, id := range l.byUser[userID] {
		for _, threadID := range l.byID[id].ThreadIDs {
			if !slices.Contains(res, threadID) {
				res = append(res, threadID)
			}
		}
	}

	return res
}

// Last returns the most recent unsettled action of the user.
func (l *Ledger) Last(userID string) (*PendingAction, bool) {
	ids := l.byUser[userID]
	if len(ids) == 0 {
		return nil, false
	}

	return l.byID[ids[len(ids)-1]], true
}

// ByType returns the unsettled actions of the given type.
func (l *Ledger) ByType(typ action.Type) []*PendingAction {
	var ids []ID

	if set, ok := l.byType[typ]; ok {
		for id := range set {
			ids = append(ids, id)
		}
	}

	return l.sorted(l.resolve(ids))
}

// All returns every unsettled action, oldest first.
func (l *Ledger) All() []*PendingAction {
	res := make([]*PendingAction, 0, len(l.byID))

	for _, a := range l.byID {
		res = append(res, a)
	}

	return l.sorted(res)
}

// Count returns the number of unsettled actions of the user.
func (l *Ledger) Count(userID string) int {
	return len(l.byUser[userID])
}

func (l *Ledger) Len() int {
	return len(l.byID)
}

func (l *Ledger) resolve(ids []ID) []*PendingAction {
	res := make([]*PendingAction, 0, len(ids))

	for _, id := range ids {
		res = append(res, l.byID[id])
	}

	return res
}

func (l *Ledger) sorted(actions []*PendingAction) []*PendingAction {
	slices.SortFunc(actions, func(a, b *PendingAction) bool {
		return a.seq < b.seq
	})

	return actions
}

func remove(ids []ID, id ID) []ID {
	if idx := slices.Index(ids, id); idx >= 0 {
		return slices.Delete(ids, idx, idx+1)
	}

	return ids
}
