// Package config loads the process configuration from a YAML file and COURIER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	courier "github.com/inboxkit/courier"
)

const envPrefix = "COURIER"

type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`
	LogLevel   string `mapstructure:"log_level"`

	// ConnectionDSN selects the connection store, e.g. sqlite:///var/lib/courier/connections.db.
	ConnectionDSN        string `mapstructure:"connection_dsn"`
	ConnectionPassphrase string `mapstructure:"connection_passphrase"`

	// StoreDir is where the local view is persisted. It is kept in memory if empty.
	StoreDir        string `mapstructure:"store_dir"`
	StorePassphrase string `mapstructure:"store_passphrase"`

	DriverTimeout time.Duration `mapstructure:"driver_timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`

	Limits LimitsConfig `mapstructure:"limits"`

	// ProfileDrivers counts provider calls and logs them on shutdown.
	ProfileDrivers bool `mapstructure:"profile_drivers"`

	// Grace holds the grace window of action types, keyed by type name.
	Grace map[string]time.Duration `mapstructure:"grace"`

	// APIKeys maps API keys to the user they authenticate.
	APIKeys map[string]string `mapstructure:"api_keys"`

	// CountsInterval is how often event streams are pushed fresh counters. Disabled if zero.
	CountsInterval time.Duration `mapstructure:"counts_interval"`

	Gmail GmailConfig `mapstructure:"gmail"`
	IMAP  IMAPConfig  `mapstructure:"imap"`

	// Dummy enables the in-memory provider.
	Dummy bool `mapstructure:"dummy"`
}

// LimitsConfig caps the actions users can submit. Zero means unbounded.
type LimitsConfig struct {
	MaxThreadsPerAction uint32 `mapstructure:"max_threads_per_action"`
	MaxPendingPerUser   uint32 `mapstructure:"max_pending_per_user"`
}

type GmailConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Endpoint     string `mapstructure:"endpoint"`
}

type IMAPConfig struct {
	Addr string `mapstructure:"addr"`
	TLS  bool   `mapstructure:"tls"`
}

// Level returns the configured log level, defaulting to info.
func (cfg Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}

	return level
}

// GraceWindows returns the grace window of every action type named in the config.
func (cfg Config) GraceWindows() (map[courier.ActionType]time.Duration, error) {
	res := make(map[courier.ActionType]time.Duration, len(cfg.Grace))

	for name, d := range cfg.Grace {
		typ := courier.ActionType(strings.ToUpper(name))

		if !isActionType(typ) {
			return nil, fmt.Errorf("unknown action type %q in grace windows", name)
		}

		if d < 0 {
			return nil, fmt.Errorf("negative grace window for %v", typ)
		}

		res[typ] = d
	}

	return res, nil
}

func isActionType(typ courier.ActionType) bool {
	for _, known := range courier.ActionTypes {
		if typ == known {
			return true
		}
	}

	return false
}

// Loader reads the configuration and watches it for changes.
type Loader struct {
	v *viper.Viper
}

// NewLoader returns a loader of the given file. The file is optional; the environment and defaults
// apply on their own if it is missing.
func NewLoader(path string) *Loader {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_addr", "localhost:8025")
	v.SetDefault("log_level", "info")
	v.SetDefault("connection_dsn", "memory://")
	v.SetDefault("driver_timeout", 30*time.Second)
	v.SetDefault("retry_attempts", 3)
	v.SetDefault("retry_backoff", 200*time.Millisecond)
	v.SetDefault("limits.max_threads_per_action", 1000)
	v.SetDefault("limits.max_pending_per_user", 0)
	v.SetDefault("grace.move", 5*time.Second)
	v.SetDefault("grace.star", 0)
	v.SetDefault("grace.read", 0)
	v.SetDefault("grace.label", 0)
	v.SetDefault("grace.important", 0)

	return &Loader{v: v}
}

func (l *Loader) Load() (Config, error) {
	if l.v.ConfigFileUsed() != "" {
		if err := l.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError

			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("reading config %s: %w", l.v.ConfigFileUsed(), err)
			}
		}
	}

	return l.decode()
}

// Watch calls onChange with the new configuration every time the file is written.
// Invalid configurations are logged and skipped.
func (l *Loader) Watch(onChange func(Config)) {
	l.v.OnConfigChange(func(event fsnotify.Event) {
		if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
			return
		}

		cfg, err := l.decode()
		if err != nil {
			logrus.WithError(err).WithField("file", event.Name).Warn("Ignoring invalid config change")
			return
		}

		logrus.WithField("file", event.Name).Info("Config reloaded")

		onChange(cfg)
	})

	l.v.WatchConfig()
}

func (l *Loader) decode() (Config, error) {
	var cfg Config

	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.CountsInterval < 0 {
		return Config{}, fmt.Errorf("counts_interval must not be negative, got %v", cfg.CountsInterval)
	}

	if cfg.RetryAttempts < 1 {
		return Config{}, fmt.Errorf("retry_attempts must be at least 1, got %d", cfg.RetryAttempts)
	}

	if _, err := cfg.GraceWindows(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
