// Package main runs the Accolade Control Plane: the REST API used to ingest
// events, trigger evaluations and manage awards.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rafaeljc/accolade/internal/app"
	"github.com/rafaeljc/accolade/internal/config"
	"github.com/rafaeljc/accolade/internal/controlapi"
	"github.com/rafaeljc/accolade/internal/logger"
	"github.com/rafaeljc/accolade/internal/observability"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// -------------------------------------------------------------------------
	// 1. Configuration & logging
	// -------------------------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(&cfg.App).With(slog.String("component", "control-plane"))
	slog.SetDefault(log)
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	// -------------------------------------------------------------------------
	// 2. Wiring
	// -------------------------------------------------------------------------
	rt, err := app.Bootstrap(ctx, cfg, log, app.Options{})
	if err != nil {
		return err
	}
	defer rt.Close()
	rt.StartBackground(ctx)

	obs := observability.NewServer(log, &cfg.Observability, rt.Checkers()...)
	obs.Start()

	// Config validation demands a key in production; elsewhere it is optional.
	keyHash := cfg.Server.Control.APIKeyHash
	if keyHash == "" {
		log.Warn("control plane authentication disabled: no API key hash configured")
	}
	api := controlapi.NewAPIWithConfig(controlapi.Deps{
		Logger:       log,
		Engine:       rt.Engine,
		Badges:       rt.Badges,
		Dispatcher:   rt.Dispatcher(),
		MaxBodyBytes: cfg.Server.Control.MaxBodyBytes,
	}, keyHash, keyHash == "")

	// -------------------------------------------------------------------------
	// 3. HTTP server
	// -------------------------------------------------------------------------
	c := cfg.Server.Control
	srv := &http.Server{
		Addr:              net.JoinHostPort(c.Host, c.Port),
		Handler:           api.Router,
		ReadTimeout:       c.ReadTimeout,
		WriteTimeout:      c.WriteTimeout,
		ReadHeaderTimeout: c.ReadHeaderTimeout,
		IdleTimeout:       c.IdleTimeout,
		MaxHeaderBytes:    c.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("control plane listening",
			slog.String("addr", srv.Addr),
			slog.Bool("tls", c.TLSEnabled),
			slog.String("dispatch_mode", cfg.Engine.DispatchMode),
		)
		var err error
		if c.TLSEnabled {
			err = srv.ListenAndServeTLS(c.TLSCert, c.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("control plane server failed: %w", err)
		}
	}()

	// -------------------------------------------------------------------------
	// 4. Graceful shutdown
	// -------------------------------------------------------------------------
	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("control plane shutdown failed", slog.String("error", err.Error()))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Error("observability shutdown failed", slog.String("error", err.Error()))
	}

	log.Info("service exited")
	return serveErr
}
