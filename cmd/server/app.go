package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/example/yinsee/internal/activity"
	"github.com/example/yinsee/internal/config"
	"github.com/example/yinsee/internal/events"
	"github.com/example/yinsee/internal/geo"
	httpapi "github.com/example/yinsee/internal/http"
	"github.com/example/yinsee/internal/kv"
	"github.com/example/yinsee/internal/logging"
	"github.com/example/yinsee/internal/marketplace"
	"github.com/example/yinsee/internal/storage"
	"github.com/example/yinsee/internal/stream"
)

type app struct {
	cfg      config.ServerConfig
	logger   *slog.Logger
	store    *kv.Store
	producer *events.Producer
	svc      *marketplace.Service
}

func newApp(ctx context.Context, configFile string) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	backend, err := kv.Open(ctx, cfg.KVOptions())
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.KVBackend, err)
	}
	store := kv.New(backend, cfg.Profile, logger)

	a := &app{cfg: cfg, logger: logger, store: store}
	var pub activity.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		a.producer = events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		pub = a.producer
	}
	a.svc = marketplace.New(store, pub, logger)
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if a.producer != nil {
		errs = append(errs, a.producer.Close())
	}
	errs = append(errs, a.store.Backend().Close())
	return errors.Join(errs...)
}

func withService(ctx context.Context, configFile string, fn func(*app) error) error {
	a, err := newApp(ctx, configFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}()
	return fn(a)
}

func runServe(parent context.Context, configFile string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return withService(ctx, configFile, func(a *app) error {
		cfg, logger := a.cfg, a.logger
		a.svc.Seed(ctx)

		go func() {
			if err := a.store.Watch(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("kv watch stopped", "error", err)
			}
		}()

		hub := stream.NewHub(a.svc.Stats, logger)
		unwatch := hub.Watch(a.store, storage.KeyProvider, storage.KeyRequests, storage.KeyActivity, storage.KeyTesterReports, storage.KeyTaxiRequests)
		defer unwatch()
		go hub.Run(ctx)

		var locator httpapi.Locator
		if cfg.GeoIPEndpoint != "" {
			locator = geo.NewCachedLocator(geo.NewHTTPSource(cfg.GeoIPEndpoint), cfg.GeoCacheTTL, cfg.GeoTimeout, logger)
		}

		srv := &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      httpapi.NewServer(a.svc, locator, hub, logger),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("yinsee listening", "addr", cfg.HTTPAddr, "profile", cfg.Profile, "backend", cfg.KVBackend)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case <-ctx.Done():
			logger.Info("shutting down")
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
