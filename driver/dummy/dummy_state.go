package dummy

import (
	"sync"

	"github.com/bradenaw/juniper/xslices"
	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/inboxkit/courier/driver"
)

type dummyState struct {
	threads map[driver.ThreadID]*dummyThread
	order   []driver.ThreadID

	lock sync.RWMutex
}

type dummyThread struct {
	subject string
	labels  map[driver.LabelID]struct{}
}

func newDummyState() *dummyState {
	return &dummyState{
		threads: make(map[driver.ThreadID]*dummyThread),
	}
}

func (state *dummyState) createThread(subject string, labels ...driver.LabelID) driver.ThreadID {
	state.lock.Lock()
	defer state.lock.Unlock()

	threadID := driver.ThreadID(uuid.NewString())

	thread := &dummyThread{
		subject: subject,
		labels:  make(map[driver.LabelID]struct{}),
	}

	for _, label := range labels {
		thread.labels[label] = struct{}{}
	}

	state.threads[threadID] = thread
	state.order = append(state.order, threadID)

	return threadID
}

func (state *dummyState) hasThread(threadID driver.ThreadID) bool {
	state.lock.RLock()
	defer state.lock.RUnlock()

	_, ok := state.threads[threadID]

	return ok
}

func (state *dummyState) getThread(threadID driver.ThreadID) (driver.Thread, bool) {
	state.lock.RLock()
	defer state.lock.RUnlock()

	if _, ok := state.threads[threadID]; !ok {
		return driver.Thread{}, false
	}

	return state.toThread(threadID), true
}

func (state *dummyState) deleteThread(threadID driver.ThreadID) {
	state.lock.Lock()
	defer state.lock.Unlock()

	delete(state.threads, threadID)

	state.order = xslices.Filter(state.order, func(id driver.ThreadID) bool {
		return id != threadID
	})
}

// modify applies the changes to all threads, failing without touching anything if one is missing.
func (state *dummyState) modify(threadIDs []driver.ThreadID, changes driver.Changes) bool {
	state.lock.Lock()
	defer state.lock.Unlock()

	for _, threadID := range threadIDs {
		if _, ok := state.threads[threadID]; !ok {
			return false
		}
	}

	for _, threadID := range threadIDs {
		thread := state.threads[threadID]

		for _, label := range changes.Remove {
			delete(thread.labels, label)
		}

		for _, label := range changes.Add {
			thread.labels[label] = struct{}{}
		}
	}

	return true
}

func (state *dummyState) count() driver.Counts {
	state.lock.RLock()
	defer state.lock.RUnlock()

	counts := make(driver.Counts)

	for _, thread := range state.threads {
		_, unread := thread.labels[driver.LabelUnread]

		for label := range thread.labels {
			count := counts[label]
			count.Total++

			if unread {
				count.Unread++
			}

			counts[label] = count
		}
	}

	return counts
}

func (state *dummyState) toThread(threadID driver.ThreadID) driver.Thread {
	thread := state.threads[threadID]

	labels := make([]driver.LabelID, 0, len(thread.labels))

	for label := range thread.labels {
		labels = append(labels, label)
	}

	slices.Sort(labels)

	return driver.Thread{
		ID:      threadID,
		Subject: thread.subject,
		Labels:  labels,
	}
}
