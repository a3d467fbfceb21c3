// Package main runs the Accolade Data Plane: the gRPC API host services call
// when a user does something that may earn a badge.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/rafaeljc/accolade/internal/app"
	"github.com/rafaeljc/accolade/internal/config"
	"github.com/rafaeljc/accolade/internal/dataapi"
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
	log := logger.New(&cfg.App).With(slog.String("component", "data-plane"))
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

	api := dataapi.NewAPI(rt.Engine, rt.Dispatcher())

	// -------------------------------------------------------------------------
	// 3. gRPC server
	// -------------------------------------------------------------------------
	d := cfg.Server.Data
	addr := net.JoinHostPort(d.Host, d.Port)

	// Bind first so a busy port fails fast.
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			dataapi.RequestLoggerInterceptor(log),
			dataapi.TimeoutInterceptor(d.RequestTimeout),
		),
		grpc.MaxRecvMsgSize(d.MaxRecvMsgBytes),
		grpc.MaxConcurrentStreams(d.MaxConcurrentStreams),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:             d.KeepaliveTime,
			Timeout:          d.KeepaliveTimeout,
			MaxConnectionAge: d.MaxConnectionAge,
		}),
	)
	api.Register(grpcServer)

	errCh := make(chan error, 1)
	go func() {
		log.Info("data plane listening",
			slog.String("addr", addr),
			slog.String("dispatch_mode", cfg.Engine.DispatchMode),
		)
		if err := grpcServer.Serve(listener); err != nil {
			errCh <- fmt.Errorf("data plane server failed: %w", err)
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

	// GracefulStop has no deadline of its own; fall back to Stop when the
	// shutdown timeout elapses.
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		log.Warn("graceful stop timed out, closing open connections")
		grpcServer.Stop()
	}

	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Error("observability shutdown failed", slog.String("error", err.Error()))
	}

	log.Info("service exited")
	return serveErr
}
