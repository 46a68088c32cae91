package store

import (
	"strings"
	"sync"

	"golang.org/x/exp/slices"
)

type inMemoryStore struct {
	data map[string][]byte
	lock sync.RWMutex
}

func NewInMemoryStore() Store {
	return &inMemoryStore{
		data: make(map[string][]byte),
	}
}

func (c *inMemoryStore) Get(key string) ([]byte, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	value, ok := c.data[key]
	if !ok {
		return nil, ErrNotFound
	}

	return slices.Clone(value), nil
}

func (c *inMemoryStore) Keys(prefix string) ([]string, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	var keys []string

	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	slices.Sort(keys)

	return keys, nil
}

func (c *inMemoryStore) NewTransaction() Transaction {
	return &inMemoryTransaction{store: c, set: make(map[string][]byte), deleted: make(map[string]struct{})}
}

func (c *inMemoryStore) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.data = make(map[string][]byte)

	return nil
}

// inMemoryTransaction buffers writes until it is committed.
type inMemoryTransaction struct {
	store   *inMemoryStore
	set     map[string][]byte
	deleted map[string]struct{}
}

func (tx *inMemoryTransaction) Set(key string, value []byte) error {
	delete(tx.deleted, key)
	tx.set[key] = slices.Clone(value)

	return nil
}

func (tx *inMemoryTransaction) Delete(keys ...string) error {
	for _, key := range keys {
		delete(tx.set, key)
		tx.deleted[key] = struct{}{}
	}

	return nil
}

func (tx *inMemoryTransaction) Commit() error {
	tx.store.lock.Lock()
	defer tx.store.lock.Unlock()

	for key := range tx.deleted {
		delete(tx.store.data, key)
	}

	for key, value := range tx.set {
		tx.store.data[key] = value
	}

	tx.set, tx.deleted = make(map[string][]byte), make(map[string]struct{})

	return nil
}

func (tx *inMemoryTransaction) Rollback() error {
	tx.set, tx.deleted = make(map[string][]byte), make(map[string]struct{})

	return nil
}

type InMemoryBuilder struct{}

func (*InMemoryBuilder) New(_, _ string, _ []byte) (Store, error) {
	return NewInMemoryStore(), nil
}

func (*InMemoryBuilder) Delete(_, _ string) error {
	return nil
}
