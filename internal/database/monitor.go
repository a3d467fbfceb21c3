package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/accolade/internal/observability"
)

// RunPoolMonitor samples pool statistics into Prometheus until ctx is cancelled.
func RunPoolMonitor(ctx context.Context, pool *pgxpool.Pool, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastAcquire, lastWait int64
	for {
		stat := pool.Stat()
		observability.DatabasePoolConnections.WithLabelValues("total").Set(float64(stat.TotalConns()))
		observability.DatabasePoolConnections.WithLabelValues("idle").Set(float64(stat.IdleConns()))
		observability.DatabasePoolConnections.WithLabelValues("in_use").Set(float64(stat.AcquiredConns()))
		observability.DatabasePoolConnections.WithLabelValues("max").Set(float64(stat.MaxConns()))

		// The pool exposes cumulative counters; export the increments.
		if d := stat.AcquireCount() - lastAcquire; d > 0 {
			observability.DatabasePoolAcquireCount.Add(float64(d))
		}
		if d := stat.EmptyAcquireCount() - lastWait; d > 0 {
			observability.DatabasePoolWaitCount.Add(float64(d))
		}
		lastAcquire, lastWait = stat.AcquireCount(), stat.EmptyAcquireCount()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
