package driver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	require.Nil(t, Kind(nil))
	require.Equal(t, ErrUnauthorized, Kind(fmt.Errorf("get: %w", ErrUnauthorized)))
	require.Equal(t, ErrNotFound, Kind(fmt.Errorf("get: %w", ErrNotFound)))
	require.Equal(t, ErrTransient, Kind(fmt.Errorf("%w: %w", ErrTransient, errors.New("503"))))
	require.Equal(t, ErrTransient, Kind(context.DeadlineExceeded))
	require.Equal(t, ErrTransient, Kind(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	require.Equal(t, ErrUnsupportedProvider, Kind(ErrUnsupportedProvider))
	require.Equal(t, ErrPermanent, Kind(errors.New("bad request")))
}

func TestIsFolder(t *testing.T) {
	require.True(t, IsFolder(LabelInbox))
	require.True(t, IsFolder(LabelArchive))
	require.True(t, IsFolder(LabelTrash))
	require.False(t, IsFolder(LabelStarred))
	require.False(t, IsFolder("Work"))
}
