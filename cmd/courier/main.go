package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	courier "github.com/inboxkit/courier"
	"github.com/inboxkit/courier/connection"
	"github.com/inboxkit/courier/driver/dummy"
	"github.com/inboxkit/courier/driver/gmail"
	"github.com/inboxkit/courier/driver/imap"
	"github.com/inboxkit/courier/internal/config"
	"github.com/inboxkit/courier/internal/httpapi"
	"github.com/inboxkit/courier/limits"
	"github.com/inboxkit/courier/observability"
	"github.com/inboxkit/courier/profiling"
	"github.com/inboxkit/courier/provider"
	"github.com/inboxkit/courier/reporter"
	"github.com/inboxkit/courier/store"
	"github.com/inboxkit/courier/version"
)

// storeNamespace is the name the local view is stored under in the store directory.
const storeNamespace = "courier"

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("COURIER_CONFIG"), "path to the YAML config file")
	flag.Parse()

	loader := config.NewLoader(*configPath)

	cfg, err := loader.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}

	logrus.SetLevel(cfg.Level())

	logrus.WithField("version", version.Current.Version.String()).Infof("Starting %v", version.Current.Name)

	conns, err := connection.Open(cfg.ConnectionDSN, []byte(cfg.ConnectionPassphrase))
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open connection store")
	}

	defer func() {
		if err := conns.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close connection store")
		}
	}()

	st, err := openStore(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open store")
	}

	var profiler *profiling.CountingProfiler

	opts := options(cfg, conns, st)

	if cfg.ProfileDrivers {
		profiler = &profiling.CountingProfiler{}
		opts = append(opts, courier.WithDriverProfiler(profiler))
	}

	coordinator, err := courier.New(opts...)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create coordinator")
	}

	server, err := httpapi.NewServer(coordinator, httpapi.ServerConfig{
		APIKeys:        cfg.APIKeys,
		CountsInterval: cfg.CountsInterval,
	})
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create HTTP server")
	}

	if *configPath != "" {
		loader.Watch(func(cfg config.Config) {
			logrus.SetLevel(cfg.Level())

			grace, err := cfg.GraceWindows()
			if err != nil {
				return
			}

			for typ, d := range grace {
				coordinator.SetGraceWindow(typ, d)
			}

			server.SetAPIKeys(cfg.APIKeys)
		})
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to serve")
		}
	}()

	logrus.Infof("Courier is listening on %v", cfg.ListenAddr)

	<-ctx.Done()

	logrus.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Failed to shut down HTTP server")
	}

	if err := coordinator.Close(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Failed to close coordinator")
	}

	if profiler != nil {
		logrus.WithField("calls", profiler.Summary()).Info("Provider calls")
	}
}

func openStore(cfg config.Config) (store.Store, error) {
	var builder store.Builder = &store.InMemoryBuilder{}

	if cfg.StoreDir != "" {
		builder = &store.BadgerStoreBuilder{}
	}

	return builder.New(cfg.StoreDir, storeNamespace, []byte(cfg.StorePassphrase))
}

func options(cfg config.Config, conns connection.Finder, st store.Store) []courier.Option {
	opts := []courier.Option{
		courier.WithConnectionStore(conns),
		courier.WithFactory(newFactory(cfg)),
		courier.WithStore(st),
		courier.WithDriverTimeout(cfg.DriverTimeout),
		courier.WithRetryPolicy(cfg.RetryAttempts, cfg.RetryBackoff),
		courier.WithLimits(limits.NewActionLimits(cfg.Limits.MaxThreadsPerAction, cfg.Limits.MaxPendingPerUser)),
		courier.WithReporter(reporter.NewLogReporter(logrus.StandardLogger())),
		courier.WithObservabilitySender(observability.NewLogSender(logrus.StandardLogger())),
	}

	// Already validated by the loader.
	grace, _ := cfg.GraceWindows()

	for typ, d := range grace {
		opts = append(opts, courier.WithGraceWindow(typ, d))
	}

	return opts
}

func newFactory(cfg config.Config) *provider.Factory {
	opts := []provider.Option{
		provider.WithGmail(gmail.Config{
			ClientID:     cfg.Gmail.ClientID,
			ClientSecret: cfg.Gmail.ClientSecret,
			Endpoint:     cfg.Gmail.Endpoint,
		}),
	}

	if cfg.IMAP.Addr != "" {
		imapCfg := imap.Config{Addr: cfg.IMAP.Addr}

		if cfg.IMAP.TLS {
			imapCfg.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}

		opts = append(opts, provider.WithIMAP(imapCfg))
	}

	if cfg.Dummy {
		logrus.Warn("The dummy provider is enabled")
		opts = append(opts, provider.WithDummy(dummy.NewDummy()))
	}

	return provider.NewFactory(opts...)
}
