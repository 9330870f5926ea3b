// Package run wires configuration into runnable service processes. Each
// function blocks until ctx is cancelled; the four services share this
// startup shape but own separate listeners, stores, and broker handles.
package run

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/minisocial/minisocial/internal/auth"
	"github.com/minisocial/minisocial/internal/broker"
	cfgpkg "github.com/minisocial/minisocial/internal/config"
	"github.com/minisocial/minisocial/internal/event"
	"github.com/minisocial/minisocial/internal/feed"
	"github.com/minisocial/minisocial/internal/gateway"
	"github.com/minisocial/minisocial/internal/hub"
	"github.com/minisocial/minisocial/internal/notifications"
	"github.com/minisocial/minisocial/internal/posts"
	"github.com/minisocial/minisocial/internal/publisher"
	httpserver "github.com/minisocial/minisocial/internal/server/http"
	pebblestore "github.com/minisocial/minisocial/internal/store/pebble"
	"github.com/minisocial/minisocial/internal/worker"
	logpkg "github.com/minisocial/minisocial/pkg/log"
)

// ErrNoSecret is returned when a service that verifies credentials starts
// without a signing secret.
var ErrNoSecret = errors.New("jwt secret is required (set MSW_JWT_SECRET)")

// Logger builds the process logger from config.
func Logger(cfg cfgpkg.Config) logpkg.Logger {
	level, err := logpkg.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logpkg.InfoLevel
	}
	var f logpkg.Formatter = &logpkg.TextFormatter{}
	if cfg.LogFormat == "json" {
		f = &logpkg.JSONFormatter{}
	}
	return logpkg.NewLogger(
		logpkg.WithLevel(level),
		logpkg.WithFormatter(f),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
}

// openBroker returns a connected broker client. Both ends of each queue
// declare it, plus its dead-letter companion, so startup order never
// matters.
func openBroker(ctx context.Context, cfg cfgpkg.Config, queues []string, logger logpkg.Logger) (broker.Broker, error) {
	if cfg.BrokerKind == "memory" {
		return broker.NewMemory(), nil
	}
	withDLQs := make([]string, 0, len(queues)*2)
	for _, q := range queues {
		withDLQs = append(withDLQs, q, event.DeadLetterQueue(q))
	}
	c := broker.NewAMQP(broker.AMQPOptions{
		URL:    cfg.BrokerURL,
		Queues: withDLQs,
		Logger: logger,
	})
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func openDB(cfg cfgpkg.Config, service string) (*pebblestore.DB, error) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = cfgpkg.DefaultDataDir()
	}
	return pebblestore.Open(pebblestore.Options{DataDir: filepath.Join(dataDir, service)})
}

// signalCtx layers interrupt handling over the caller's context.
func signalCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// Gateway runs the authenticated reverse proxy.
func Gateway(ctx context.Context, cfg cfgpkg.Config) error {
	sctx, stop := signalCtx(ctx)
	defer stop()

	if cfg.JWTSecret == "" {
		return ErrNoSecret
	}
	logger := Logger(cfg)
	gw, err := gateway.New(cfg.Gateway, auth.NewVerifier([]byte(cfg.JWTSecret)), logger)
	if err != nil {
		return err
	}
	logger.Info("starting gateway", logpkg.Str("addr", cfg.Gateway.Addr))
	return httpserver.New(gw.Handler(), logger).ListenAndServe(sctx, cfg.Gateway.Addr)
}

// Notify runs the notification service: the queue consumer, the derived
// store, the real-time hub, and the HTTP/websocket surface in one process.
func Notify(ctx context.Context, cfg cfgpkg.Config) error {
	sctx, stop := signalCtx(ctx)
	defer stop()

	if cfg.JWTSecret == "" {
		return ErrNoSecret
	}
	logger := Logger(cfg)

	db, err := openDB(cfg, "notify")
	if err != nil {
		return err
	}
	defer db.Close()

	b, err := openBroker(sctx, cfg, []string{event.NotificationQueue}, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	store := notifications.NewStore(db)
	h := hub.New(logger)
	ws := hub.NewHandler(h, auth.NewVerifier([]byte(cfg.JWTSecret)), logger)
	srv := httpserver.New(httpserver.NewNotifyMux(store, ws), logger)
	runner := worker.NewNotify(b, store, h, logger)

	logger.Info("starting notification service", logpkg.Str("addr", cfg.Notify.Addr))
	return serveAll(sctx, logger,
		func(c context.Context) error { return runner.Run(c) },
		func(c context.Context) error { return srv.ListenAndServe(c, cfg.Notify.Addr) },
	)
}

// Feed runs the feed service: the post-event consumer plus the read API.
func Feed(ctx context.Context, cfg cfgpkg.Config) error {
	sctx, stop := signalCtx(ctx)
	defer stop()
	logger := Logger(cfg)

	db, err := openDB(cfg, "feed")
	if err != nil {
		return err
	}
	defer db.Close()

	b, err := openBroker(sctx, cfg, []string{event.PostQueue}, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	store := feed.NewStore(db)
	srv := httpserver.New(httpserver.NewFeedMux(store), logger)
	runner := worker.NewFeed(b, store, logger)

	logger.Info("starting feed service", logpkg.Str("addr", cfg.Feed.Addr))
	return serveAll(sctx, logger,
		func(c context.Context) error { return runner.Run(c) },
		func(c context.Context) error { return srv.ListenAndServe(c, cfg.Feed.Addr) },
	)
}

// Posts runs the post service: the write path that publishes into the
// pipeline.
func Posts(ctx context.Context, cfg cfgpkg.Config) error {
	sctx, stop := signalCtx(ctx)
	defer stop()
	logger := Logger(cfg)

	db, err := openDB(cfg, "posts")
	if err != nil {
		return err
	}
	defer db.Close()

	b, err := openBroker(sctx, cfg, []string{event.PostQueue, event.NotificationQueue}, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	svc := posts.NewService(db, publisher.New(b, logger), logger)
	srv := httpserver.New(httpserver.NewPostsMux(svc), logger)

	logger.Info("starting post service", logpkg.Str("addr", cfg.Posts.Addr))
	return srv.ListenAndServe(sctx, cfg.Posts.Addr)
}

// serveAll runs each task until ctx cancels, logging non-shutdown failures,
// and waits for all of them to drain.
func serveAll(ctx context.Context, logger logpkg.Logger, tasks ...func(context.Context) error) error {
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(task func(context.Context) error) {
			defer wg.Done()
			if err := task(ctx); err != nil && ctx.Err() == nil {
				logger.Error("task failed", logpkg.Err(err))
			}
		}(task)
	}
	<-ctx.Done()
	wg.Wait()
	return nil
}
