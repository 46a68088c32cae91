package store_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inboxkit/courier/store"
)

func TestStores(t *testing.T) {
	builders := map[string]store.Builder{
		"memory": &store.InMemoryBuilder{},
		"badger": &store.BadgerStoreBuilder{},
	}

	for name, builder := range builders {
		builder := builder

		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()

			st, err := builder.New(dir, "user@example.com", []byte("pass"))
			require.NoError(t, err)
			defer func() { require.NoError(t, st.Close()) }()

			_, err = st.Get("thread/1")
			require.ErrorIs(t, err, store.ErrNotFound)

			require.NoError(t, store.Tx(st, func(tx store.Transaction) error {
				require.NoError(t, tx.Set("thread/1", []byte("one")))
				require.NoError(t, tx.Set("thread/2", []byte("two")))
				require.NoError(t, tx.Set("counts", []byte("{}")))

				return nil
			}))

			value, err := st.Get("thread/1")
			require.NoError(t, err)
			require.Equal(t, []byte("one"), value)

			keys, err := st.Keys("thread/")
			require.NoError(t, err)
			require.Equal(t, []string{"thread/1", "thread/2"}, keys)

			require.NoError(t, store.Tx(st, func(tx store.Transaction) error {
				return tx.Delete("thread/1")
			}))

			_, err = st.Get("thread/1")
			require.ErrorIs(t, err, store.ErrNotFound)
		})
	}
}

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	st := store.NewInMemoryStore()

	err := store.Tx(st, func(tx store.Transaction) error {
		require.NoError(t, tx.Set("thread/1", []byte("one")))

		return store.ErrNotFound
	})
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.Get("thread/1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestBadgerStore_Reopen(t *testing.T) {
	dir := t.TempDir()

	st, err := store.NewBadgerStore(dir, "user", []byte("pass"))
	require.NoError(t, err)
	require.NoError(t, store.Tx(st, func(tx store.Transaction) error {
		return tx.Set("counts", []byte("42"))
	}))
	require.NoError(t, st.Close())

	st, err = store.NewBadgerStore(dir, "user", []byte("pass"))
	require.NoError(t, err)

	value, err := st.Get("counts")
	require.NoError(t, err)
	require.Equal(t, []byte("42"), value)
	require.NoError(t, st.Close())

	require.NoError(t, (&store.BadgerStoreBuilder{}).Delete(dir, "user"))
}
