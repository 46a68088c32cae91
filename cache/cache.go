// Package cache holds the local view of every account: threads and label counters.
//
// Every change is written through to a store.Store so that the view survives restarts.
package cache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/inboxkit/courier/driver"
	"github.com/inboxkit/courier/store"
)

const (
	threadPrefix = "thread/"
	countsPrefix = "counts/"
)

type Cache struct {
	store store.Store

	accounts map[string]*account
	lock     sync.RWMutex
}

type account struct {
	threads map[driver.ThreadID]driver.Thread

	// counts is nil until the provider's counters have been stored once.
	counts driver.Counts
}

func New(st store.Store) *Cache {
	return &Cache{
		store:    st,
		accounts: make(map[string]*account),
	}
}

// Load reads the persisted state of all accounts.
func (c *Cache) Load() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	threadKeys, err := c.store.Keys(threadPrefix)
	if err != nil {
		return fmt.Errorf("listing threads: %w", err)
	}

	for _, key := range threadKeys {
		userID, _, ok := splitKey(strings.TrimPrefix(key, threadPrefix))
		if !ok {
			continue
		}

		var thread driver.Thread

		if err := c.read(key, &thread); err != nil {
			return err
		}

		c.account(userID).threads[thread.ID] = thread
	}

	countKeys, err := c.store.Keys(countsPrefix)
	if err != nil {
		return fmt.Errorf("listing counts: %w", err)
	}

	for _, key := range countKeys {
		userID, err := url.PathUnescape(strings.TrimPrefix(key, countsPrefix))
		if err != nil {
			continue
		}

		var counts driver.Counts

		if err := c.read(key, &counts); err != nil {
			return err
		}

		if counts == nil {
			counts = make(driver.Counts)
		}

		c.account(userID).counts = counts
	}

	return nil
}

// Thread returns a copy of the cached thread.
func (c *Cache) Thread(userID string, threadID driver.ThreadID) (driver.Thread, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	acc, ok := c.accounts[userID]
	if !ok {
		return driver.Thread{}, false
	}

	thread, ok := acc.threads[threadID]
	if !ok {
		return driver.Thread{}, false
	}

	return cloneThread(thread), true
}

// Counts returns a copy of the account's counters.
func (c *Cache) Counts(userID string) driver.Counts {
	c.lock.RLock()
	defer c.lock.RUnlock()

	counts := make(driver.Counts)

	if acc, ok := c.accounts[userID]; ok {
		for label, count := range acc.counts {
			counts[label] = count
		}
	}

	return counts
}

// HasCounts returns whether the provider's counters of the account are known.
func (c *Cache) HasCounts(userID string) bool {
	c.lock.RLock()
	defer c.lock.RUnlock()

	acc, ok := c.accounts[userID]

	return ok && acc.counts != nil
}

// PutThread stores the thread as the provider returned it. Counters are left untouched since the
// provider's counters already include it.
func (c *Cache) PutThread(userID string, thread driver.Thread) {
	c.lock.Lock()
	defer c.lock.Unlock()

	thread = cloneThread(thread)
	thread.Labels = normalize(thread.Labels)

	c.account(userID).threads[thread.ID] = thread

	c.persistThread(userID, thread)
}

// SetLabels replaces the labels of a cached thread and moves the counters by the difference.
// Applying the previous labels again restores the counters exactly. Unknown counters are left unknown.
func (c *Cache) SetLabels(userID string, threadID driver.ThreadID, labels []driver.LabelID) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	acc := c.account(userID)

	thread, ok := acc.threads[threadID]
	if !ok {
		return false
	}

	before := thread.Labels

	thread.Labels = normalize(labels)
	acc.threads[threadID] = thread

	c.persistThread(userID, thread)

	if acc.counts != nil {
		adjustCounts(acc.counts, before, -1)
		adjustCounts(acc.counts, thread.Labels, +1)

		c.persistCounts(userID, acc.counts)
	}

	return true
}

// AdjustCounts moves the counters as if a thread changed from one set of labels to another.
func (c *Cache) AdjustCounts(userID string, from, to []driver.LabelID) {
	c.lock.Lock()
	defer c.lock.Unlock()

	acc := c.account(userID)
	if acc.counts == nil {
		return
	}

	adjustCounts(acc.counts, normalize(from), -1)
	adjustCounts(acc.counts, normalize(to), +1)

	c.persistCounts(userID, acc.counts)
}

// SetCounts replaces the account's counters.
func (c *Cache) SetCounts(userID string, counts driver.Counts) {
	c.lock.Lock()
	defer c.lock.Unlock()

	acc := c.account(userID)

	acc.counts = make(driver.Counts, len(counts))

	for label, count := range counts {
		acc.counts[label] = count
	}

	c.persistCounts(userID, acc.counts)
}

func (c *Cache) account(userID string) *account {
	acc, ok := c.accounts[userID]
	if !ok {
		acc = &account{
			threads: make(map[driver.ThreadID]driver.Thread),
		}

		c.accounts[userID] = acc
	}

	return acc
}

func (c *Cache) persistThread(userID string, thread driver.Thread) {
	c.write(threadPrefix+url.PathEscape(userID)+"/"+string(thread.ID), thread)
}

func (c *Cache) persistCounts(userID string, counts driver.Counts) {
	c.write(countsPrefix+url.PathEscape(userID), counts)
}

// write persists the value. Failures are logged: the in-memory view stays authoritative.
func (c *Cache) write(key string, value any) {
	buf := new(bytes.Buffer)

	if err := gob.NewEncoder(buf).Encode(value); err != nil {
		logrus.WithError(err).WithField("key", key).Error("Failed to encode cache entry")
		return
	}

	if err := store.Tx(c.store, func(tx store.Transaction) error {
		return tx.Set(key, buf.Bytes())
	}); err != nil {
		logrus.WithError(err).WithField("key", key).Error("Failed to persist cache entry")
	}
}

func (c *Cache) read(key string, value any) error {
	data, err := c.store.Get(key)
	if err != nil {
		return fmt.Errorf("reading %v: %w", key, err)
	}

	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(value); err != nil {
		return fmt.Errorf("decoding %v: %w", key, err)
	}

	return nil
}

func splitKey(key string) (string, driver.ThreadID, bool) {
	escaped, threadID, ok := strings.Cut(key, "/")
	if !ok {
		return "", "", false
	}

	userID, err := url.PathUnescape(escaped)
	if err != nil {
		return "", "", false
	}

	return userID, driver.ThreadID(threadID), true
}

// adjustCounts adds (sign = +1) or removes (sign = -1) a thread with the given labels to the counters.
func adjustCounts(counts driver.Counts, labels []driver.LabelID, sign int) {
	unread := slices.Contains(labels, driver.LabelUnread)

	for _, label := range labels {
		count := counts[label]

		count.Total += sign

		if unread {
			count.Unread += sign
		}

		if count == (driver.Count{}) {
			delete(counts, label)
		} else {
			counts[label] = count
		}
	}
}

func normalize(labels []driver.LabelID) []driver.LabelID {
	labels = slices.Clone(labels)

	slices.Sort(labels)

	return slices.Compact(labels)
}

func cloneThread(thread driver.Thread) driver.Thread {
	thread.Labels = slices.Clone(thread.Labels)
	thread.Messages = slices.Clone(thread.Messages)

	return thread
}
