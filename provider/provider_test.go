package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inboxkit/courier/driver"
	"github.com/inboxkit/courier/driver/dummy"
	"github.com/inboxkit/courier/driver/gmail"
	"github.com/inboxkit/courier/driver/imap"
)

var creds = driver.Credentials{Username: "user@example.com", AccessToken: "access", RefreshToken: "refresh"}

func TestFactory_Variants(t *testing.T) {
	conn := dummy.NewDummy()
	threadID := conn.CreateThread("hello", driver.LabelInbox)

	factory := NewFactory(
		WithGmail(gmail.Config{ClientID: "client"}),
		WithIMAP(imap.Config{Addr: "localhost:1143"}),
		WithDummy(conn),
	)

	drv, err := factory.New(context.Background(), string(Google), creds)
	require.NoError(t, err)
	require.IsType(t, &gmail.Driver{}, drv)

	drv, err = factory.New(context.Background(), string(IMAP), creds)
	require.NoError(t, err)
	require.IsType(t, &imap.Driver{}, drv)

	drv, err = factory.New(context.Background(), string(Dummy), creds)
	require.NoError(t, err)

	thread, err := drv.Get(context.Background(), threadID)
	require.NoError(t, err)
	require.Equal(t, "hello", thread.Subject)
}

func TestFactory_Unsupported(t *testing.T) {
	factory := NewFactory()

	for _, id := range []string{"", "outlook", string(IMAP), string(Dummy)} {
		_, err := factory.New(context.Background(), id, creds)
		require.ErrorIs(t, err, driver.ErrUnsupportedProvider, "provider %q", id)
	}
}

func TestFactory_MissingTokens(t *testing.T) {
	factory := NewFactory(WithDummy(dummy.NewDummy()))

	_, err := factory.New(context.Background(), string(Dummy), driver.Credentials{AccessToken: "access"})
	require.ErrorIs(t, err, driver.ErrUnauthorized)

	_, err = factory.New(context.Background(), string(Google), driver.Credentials{RefreshToken: "refresh"})
	require.ErrorIs(t, err, driver.ErrUnauthorized)

	// Unknown providers are reported before missing tokens.
	_, err = factory.New(context.Background(), "outlook", driver.Credentials{})
	require.ErrorIs(t, err, driver.ErrUnsupportedProvider)
}
