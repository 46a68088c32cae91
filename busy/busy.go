// Package busy tracks the entities that currently have a provider operation in flight.
//
// Membership is reference counted: an entity added by two operations stays busy until both have
// removed it. Observers only see the set; the set never triggers work by itself.
package busy

import (
	"sync"

	"github.com/bradenaw/juniper/xslices"
)

// Set is a reference counted set of keys.
type Set[K comparable] struct {
	refs map[K]int
	lock sync.RWMutex

	// onChange is called, outside of the lock, with the keys that entered and left the set.
	onChange func(added, removed []K)
}

func New[K comparable](onChange func(added, removed []K)) *Set[K] {
	return &Set[K]{
		refs:     make(map[K]int),
		onChange: onChange,
	}
}

func (s *Set[K]) Add(key K) {
	s.AddMany([]K{key})
}

func (s *Set[K]) Remove(key K) {
	s.RemoveMany([]K{key})
}

// AddMany adds a reference to every key.
func (s *Set[K]) AddMany(keys []K) {
	var added []K

	func() {
		s.lock.Lock()
		defer s.lock.Unlock()

		for _, key := range keys {
			if s.refs[key]++; s.refs[key] == 1 {
				added = append(added, key)
			}
		}
	}()

	s.notify(added, nil)
}

// RemoveMany drops a reference to every key. Keys that are not in the set are ignored.
func (s *Set[K]) RemoveMany(keys []K) {
	var removed []K

	func() {
		s.lock.Lock()
		defer s.lock.Unlock()

		for _, key := range keys {
			n, ok := s.refs[key]
			if !ok {
				continue
			}

			if n <= 1 {
				delete(s.refs, key)
				removed = append(removed, key)
			} else {
				s.refs[key] = n - 1
			}
		}
	}()

	s.notify(nil, removed)
}

// Clear empties the set regardless of reference counts.
func (s *Set[K]) Clear() {
	var removed []K

	func() {
		s.lock.Lock()
		defer s.lock.Unlock()

		for key := range s.refs {
			removed = append(removed, key)
		}

		s.refs = make(map[K]int)
	}()

	s.notify(nil, removed)
}

func (s *Set[K]) Contains(key K) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()

	_, ok := s.refs[key]

	return ok
}

// IDs returns the keys in the set, in no particular order.
func (s *Set[K]) IDs() []K {
	s.lock.RLock()
	defer s.lock.RUnlock()

	keys := make([]K, 0, len(s.refs))

	for key := range s.refs {
		keys = append(keys, key)
	}

	return keys
}

// Filter returns the keys in the set matching fn.
func (s *Set[K]) Filter(fn func(K) bool) []K {
	return xslices.Filter(s.IDs(), fn)
}

func (s *Set[K]) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return len(s.refs)
}

func (s *Set[K]) notify(added, removed []K) {
	if s.onChange == nil || (len(added) == 0 && len(removed) == 0) {
		return
	}

	s.onChange(added, removed)
}
