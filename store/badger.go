package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/sirupsen/logrus"
)

type BadgerStore struct {
	db       *badger.DB
	gcExitCh chan struct{}
	wg       sync.WaitGroup
}

type badgerTransaction struct {
	tx *badger.Txn
}

func NewBadgerStore(path string, userID string, passphrase []byte) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(filepath.Join(path, hashString(userID))).
		WithLogger(logrus.StandardLogger()).
		WithLoggingLevel(badger.ERROR).
		WithEncryptionKey(hash(passphrase)).
		WithIndexCacheSize(16 * 1024 * 1024),
	)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		db:       db,
		gcExitCh: make(chan struct{}),
	}

	store.wg.Add(1)

	go store.startGCCollector()

	return store, nil
}

func (b *BadgerStore) startGCCollector() {
	// Garbage collection needs to be run manually by us at some point.
	// See https://dgraph.io/docs/badger/get-started/#garbage-collection for more details.
	defer b.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for b.db.RunValueLogGC(0.5) == nil {
			}

		case <-b.gcExitCh:
			return
		}
	}
}

func (b *BadgerStore) Get(key string) ([]byte, error) {
	var data []byte

	if err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		data, err = item.ValueCopy(nil)

		return err
	}); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return data, nil
}

func (b *BadgerStore) Keys(prefix string) ([]string, error) {
	var keys []string

	if err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}

		return nil
	}); err != nil {
		return nil, err
	}

	return keys, nil
}

func (b *BadgerStore) NewTransaction() Transaction {
	return &badgerTransaction{tx: b.db.NewTransaction(true)}
}

func (b *badgerTransaction) Set(key string, value []byte) error {
	return b.tx.Set([]byte(key), value)
}

func (b *badgerTransaction) Delete(keys ...string) error {
	for _, key := range keys {
		if err := b.tx.Delete([]byte(key)); err != nil {
			return err
		}
	}

	return nil
}

func (b *badgerTransaction) Commit() error {
	return b.tx.Commit()
}

func (b *badgerTransaction) Rollback() error {
	b.tx.Discard()

	return nil
}

func (b *BadgerStore) Close() error {
	close(b.gcExitCh)
	b.wg.Wait()

	return b.db.Close()
}

type BadgerStoreBuilder struct{}

func (*BadgerStoreBuilder) New(directory, userID string, encryptionPassphrase []byte) (Store, error) {
	return NewBadgerStore(directory, userID, encryptionPassphrase)
}

func (*BadgerStoreBuilder) Delete(directory, userID string) error {
	return os.RemoveAll(filepath.Join(directory, hashString(userID)))
}
