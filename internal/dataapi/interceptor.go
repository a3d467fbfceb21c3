package dataapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/rafaeljc/accolade/internal/logger"
	"github.com/rafaeljc/accolade/internal/observability"
)

// RequestLoggerInterceptor returns a UnaryServerInterceptor that:
//  1. Resolves the request ID from "x-request-id" metadata, generating one if absent.
//  2. Injects a request-scoped logger into the context.
//  3. Logs and records metrics for the outcome of the RPC.
func RequestLoggerInterceptor(base *slog.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		reqID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			// metadata keys are normalized to lowercase
			if ids := md.Get("x-request-id"); len(ids) > 0 {
				reqID = ids[0]
			}
		}
		if reqID == "" {
			reqID = uuid.NewString()
		}

		rpcLogger := base.With(
			slog.String("request_id", reqID),
			slog.String("rpc_method", info.FullMethod),
		)
		newCtx := logger.WithContext(ctx, rpcLogger)

		resp, err := handler(newCtx, req)

		duration := time.Since(start)
		code := status.Code(err)

		observability.DataPlaneGrpcTotal.WithLabelValues(info.FullMethod, code.String()).Inc()
		observability.DataPlaneGrpcDuration.WithLabelValues(info.FullMethod, code.String()).Observe(duration.Seconds())

		// OK/NotFound/InvalidArgument are expected client outcomes.
		level := slog.LevelInfo
		switch code {
		case codes.Internal, codes.Unavailable, codes.DataLoss, codes.Unknown:
			level = slog.LevelError
		case codes.DeadlineExceeded, codes.Unimplemented:
			level = slog.LevelWarn
		}

		rpcLogger.Log(newCtx, level, "grpc request completed",
			slog.String("code", code.String()),
			slog.Duration("duration", duration),
			slog.String("peer_addr", peerAddr(ctx)),
		)

		return resp, err
	}
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return "unknown"
}

// TimeoutInterceptor bounds each RPC by d unless the caller already set an
// earlier deadline. A non-positive d disables it.
func TimeoutInterceptor(d time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if d <= 0 {
			return handler(ctx, req)
		}
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= d {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return handler(ctx, req)
	}
}
