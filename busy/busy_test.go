package busy

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type change struct {
	added, removed []string
}

func newRecordingSet() (*Set[string], func() []change) {
	var (
		changes []change
		lock    sync.Mutex
	)

	set := New(func(added, removed []string) {
		lock.Lock()
		defer lock.Unlock()

		changes = append(changes, change{added: added, removed: removed})
	})

	return set, func() []change {
		lock.Lock()
		defer lock.Unlock()

		return changes
	}
}

func TestSet_ReferenceCounting(t *testing.T) {
	set, changes := newRecordingSet()

	set.Add("a")
	set.AddMany([]string{"a", "b"})
	require.True(t, set.Contains("a"))
	require.True(t, set.Contains("b"))
	require.Equal(t, 2, set.Len())

	set.Remove("a")
	require.True(t, set.Contains("a"))

	set.RemoveMany([]string{"a", "b", "c"})
	require.False(t, set.Contains("a"))
	require.False(t, set.Contains("b"))
	require.Zero(t, set.Len())

	require.Equal(t, []change{
		{added: []string{"a"}},
		{added: []string{"b"}},
		{removed: []string{"a", "b"}},
	}, changes())
}

func TestSet_Clear(t *testing.T) {
	set, changes := newRecordingSet()

	set.AddMany([]string{"a", "a", "b"})
	set.Clear()

	require.Zero(t, set.Len())
	require.Empty(t, set.IDs())
	require.ElementsMatch(t, []string{"a", "b"}, changes()[1].removed)

	// Clearing an empty set notifies nobody.
	set.Clear()
	require.Len(t, changes(), 2)
}

func TestSet_Filter(t *testing.T) {
	set := New[string](nil)

	set.AddMany([]string{"user1/a", "user1/b", "user2/a"})

	require.ElementsMatch(t, []string{"user1/a", "user1/b"}, set.Filter(func(key string) bool {
		return key[:5] == "user1"
	}))
}

func TestSet_Concurrent(t *testing.T) {
	set := New[int](nil)

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				set.AddMany([]int{j, j + 1})
				set.RemoveMany([]int{j, j + 1})
			}
		}()
	}

	wg.Wait()

	require.Zero(t, set.Len())
}
