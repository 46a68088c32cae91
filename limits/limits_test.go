package limits

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActions(t *testing.T) {
	limits := NewActionLimits(2, 3)

	require.NoError(t, limits.CheckThreadCount(2))
	require.ErrorIs(t, limits.CheckThreadCount(3), ErrMaxThreadsPerActionReached)

	require.NoError(t, limits.CheckPendingCount(2, 1))
	require.ErrorIs(t, limits.CheckPendingCount(3, 1), ErrMaxPendingActionsReached)

	require.True(t, IsLimitErr(limits.CheckThreadCount(10)))
}

func TestActions_ZeroIsUnbounded(t *testing.T) {
	limits := NewActionLimits(0, 0)

	require.NoError(t, limits.CheckThreadCount(1_000_000))
	require.NoError(t, limits.CheckPendingCount(1_000_000, 1))
}
