package driver_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/inboxkit/courier/driver"
	"github.com/inboxkit/courier/driver/mock_driver"
)

func TestWithTimeout(t *testing.T) {
	ctl := gomock.NewController(t)
	mock := mock_driver.NewMockDriver(ctl)

	drv := driver.WithTimeout(mock, 10*time.Millisecond)

	mock.EXPECT().MarkAsRead(gomock.Any(), driver.ThreadID("t1")).DoAndReturn(func(ctx context.Context, _ driver.ThreadID) error {
		<-ctx.Done()

		return driver.ErrPermanent
	})

	require.ErrorIs(t, drv.MarkAsRead(context.Background(), "t1"), driver.ErrTransient)

	mock.EXPECT().Count(gomock.Any()).Return(driver.Counts{driver.LabelInbox: {Total: 1}}, nil)

	counts, err := drv.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, counts[driver.LabelInbox].Total)

	mock.EXPECT().Get(gomock.Any(), driver.ThreadID("t2")).Return(driver.Thread{}, driver.ErrNotFound)

	_, err = drv.Get(context.Background(), "t2")
	require.ErrorIs(t, err, driver.ErrNotFound)
	require.NotErrorIs(t, err, driver.ErrTransient)

	require.Equal(t, mock, driver.WithTimeout(mock, 0))
}
