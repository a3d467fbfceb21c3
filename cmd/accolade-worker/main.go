// Package main runs the Accolade worker, which drains the Redis event queue
// and evaluates each event against the badge catalog.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rafaeljc/accolade/internal/app"
	"github.com/rafaeljc/accolade/internal/config"
	"github.com/rafaeljc/accolade/internal/logger"
	"github.com/rafaeljc/accolade/internal/observability"
	"github.com/rafaeljc/accolade/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(&cfg.App).With(slog.String("component", "worker"))
	slog.SetDefault(log)
	cfg.LogConfig(log)

	if !cfg.Redis.IsConfigured() {
		return fmt.Errorf("the worker needs redis: set ACCOLADE_REDIS_URL or ACCOLADE_REDIS_HOST and ACCOLADE_REDIS_PORT")
	}
	if !cfg.Worker.Enabled {
		log.Info("worker disabled by configuration, exiting")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	rt, err := app.Bootstrap(ctx, cfg, log, app.Options{Queue: true})
	if err != nil {
		return err
	}
	defer rt.Close()
	rt.StartBackground(ctx)

	obs := observability.NewServer(log, &cfg.Observability, rt.Checkers()...)
	obs.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			log.Error("observability shutdown failed", slog.String("error", err.Error()))
		}
	}()

	// Messages left in the processing list by a previous crash go back first.
	n, err := rt.Queue.RequeueOrphans(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Warn("requeued orphaned events", slog.Int("count", n))
	}

	w := cfg.Worker
	svc := worker.New(log, worker.Config{
		Concurrency:    w.Concurrency,
		PopTimeout:     w.PopTimeout,
		MaxRetries:     w.MaxRetries,
		BaseRetryDelay: w.BaseRetryDelay,
		MaxRetryDelay:  w.MaxRetryDelay,
	}, rt.Queue, rt.Engine)

	return svc.Run(ctx)
}
