package main

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/go-authgate/catalog-admin/api"
	"github.com/go-authgate/catalog-admin/catalog"
	"github.com/go-authgate/catalog-admin/session"
	"github.com/go-authgate/catalog-admin/tui"
)

// app holds everything a command needs. One app is built per process, so
// all requests share one session store and one refresh coordinator.
type app struct {
	cfg       *config
	store     session.Store
	storeName string
	client    *api.Client
	products  *catalog.Service
	d         tui.Displayer
	log       *zap.SugaredLogger
	closers   []func() error
}

func newApp(cfg *config, transport api.Transport, d tui.Displayer, log *zap.SugaredLogger) (*app, error) {
	a := &app{cfg: cfg, d: d, log: log}

	if err := a.openStore(); err != nil {
		return nil, err
	}

	coord := api.NewCoordinator(
		a.store,
		api.NewRefresher(cfg.ServerURL, transport),
		api.WithObserver(d),
		api.WithPendingTimeout(cfg.PendingTimeout),
		api.WithCoordinatorLogger(log),
	)

	client, err := api.NewClient(
		cfg.ServerURL,
		a.store,
		api.WithTransport(transport),
		api.WithCoordinator(coord),
		api.WithLogger(log),
		api.WithRequestTimeout(cfg.RequestTimeout),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	a.client = client
	a.products = catalog.NewService(client)
	return a, nil
}

func (a *app) openStore() error {
	switch a.cfg.SessionBackend {
	case backendRedis:
		opts, err := redis.ParseURL(a.cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		a.closers = append(a.closers, rdb.Close)
		a.store = session.NewRedisStore(rdb, a.cfg.RedisPrefix)
		a.storeName = fmt.Sprintf("redis %s (prefix %q)", opts.Addr, a.cfg.RedisPrefix)
	default:
		a.store = session.NewFileStore(a.cfg.SessionFile, a.log)
		a.storeName = "file " + a.cfg.SessionFile
	}
	a.log.Debugw("session store ready", "store", a.storeName)
	return nil
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Warnw("failed to close resource", "error", err)
		}
	}
}

// newTransport wraps a tuned http.Client with retry logic for transient
// network errors and 5xx responses.
func newTransport() (*retry.Client, error) {
	baseHTTPClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}

	client, err := retry.NewBackgroundClient(
		retry.WithHTTPClient(baseHTTPClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry client: %w", err)
	}
	return client, nil
}
