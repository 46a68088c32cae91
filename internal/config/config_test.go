package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	courier "github.com/inboxkit/courier"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader(filepath.Join(t.TempDir(), "missing.yaml")).Load()
	require.NoError(t, err)

	require.Equal(t, "localhost:8025", cfg.ListenAddr)
	require.Equal(t, "memory://", cfg.ConnectionDSN)
	require.Equal(t, 3, cfg.RetryAttempts)
	require.Equal(t, logrus.InfoLevel, cfg.Level())
	require.Equal(t, LimitsConfig{MaxThreadsPerAction: 1000}, cfg.Limits)
	require.False(t, cfg.ProfileDrivers)

	grace, err := cfg.GraceWindows()
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, grace[courier.Move])
	require.Zero(t, grace[courier.Star])
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courier.yaml")

	writeConfig(t, path, `
listen_addr: ":9000"
log_level: debug
connection_dsn: sqlite:///tmp/connections.db
retry_attempts: 5
retry_backoff: 1s
grace:
  move: 10s
  star: 2s
api_keys:
  secret: alice
imap:
  addr: imap.example.com:993
  tls: true
limits:
  max_threads_per_action: 50
  max_pending_per_user: 10
profile_drivers: true
counts_interval: 30s
`)

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	require.Equal(t, ":9000", cfg.ListenAddr)
	require.Equal(t, logrus.DebugLevel, cfg.Level())
	require.Equal(t, 5, cfg.RetryAttempts)
	require.Equal(t, time.Second, cfg.RetryBackoff)
	require.Equal(t, map[string]string{"secret": "alice"}, cfg.APIKeys)
	require.Equal(t, IMAPConfig{Addr: "imap.example.com:993", TLS: true}, cfg.IMAP)
	require.Equal(t, LimitsConfig{MaxThreadsPerAction: 50, MaxPendingPerUser: 10}, cfg.Limits)
	require.True(t, cfg.ProfileDrivers)
	require.Equal(t, 30*time.Second, cfg.CountsInterval)

	grace, err := cfg.GraceWindows()
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, grace[courier.Move])
	require.Equal(t, 2*time.Second, grace[courier.Star])
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("COURIER_LISTEN_ADDR", ":7000")
	t.Setenv("COURIER_GRACE_MOVE", "1s")

	cfg, err := NewLoader("").Load()
	require.NoError(t, err)

	require.Equal(t, ":7000", cfg.ListenAddr)

	grace, err := cfg.GraceWindows()
	require.NoError(t, err)
	require.Equal(t, time.Second, grace[courier.Move])
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courier.yaml")

	writeConfig(t, path, "grace:\n  snooze: 1s\n")

	_, err := NewLoader(path).Load()
	require.Error(t, err)

	writeConfig(t, path, "retry_attempts: 0\n")

	_, err = NewLoader(path).Load()
	require.Error(t, err)
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courier.yaml")

	writeConfig(t, path, "grace:\n  move: 1s\n")

	loader := NewLoader(path)

	_, err := loader.Load()
	require.NoError(t, err)

	changes := make(chan Config, 16)

	loader.Watch(func(cfg Config) { changes <- cfg })

	writeConfig(t, path, "grace:\n  move: 3s\n")

	require.Eventually(t, func() bool {
		select {
		case cfg := <-changes:
			grace, err := cfg.GraceWindows()
			return err == nil && grace[courier.Move] == 3*time.Second

		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}
