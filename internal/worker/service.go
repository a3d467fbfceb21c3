// Package worker implements the background consumer that evaluates queued
// events. Events of one user are always handled by the same goroutine, in
// queue order; different users are processed in parallel.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spaolacci/murmur3"

	"github.com/rafaeljc/accolade/internal/badge"
	"github.com/rafaeljc/accolade/internal/engine"
	"github.com/rafaeljc/accolade/internal/logger"
	"github.com/rafaeljc/accolade/internal/observability"
	"github.com/rafaeljc/accolade/internal/queue"
)

// errTransientResults marks an evaluation whose batch completed with at least
// one transient per-badge failure.
var errTransientResults = errors.New("evaluation left transient badge failures")

// Config holds the configuration for the worker service.
type Config struct {
	Concurrency    int
	PopTimeout     time.Duration
	MaxRetries     int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
}

// Source is the queue the worker consumes.
type Source interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Message, error)
	Ack(ctx context.Context, msg *queue.Message) error
}

// Evaluator is the engine operation the worker drives.
type Evaluator interface {
	Evaluate(ctx context.Context, ev badge.Event) ([]badge.AwardResult, error)
}

// Service orchestrates consumption and evaluation.
type Service struct {
	logger *slog.Logger
	config Config
	source Source
	engine Evaluator
}

// New creates a new worker service.
func New(logger *slog.Logger, cfg Config, source Source, eval Evaluator) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	if source == nil {
		panic("worker: queue source cannot be nil")
	}
	if eval == nil {
		panic("worker: evaluator cannot be nil")
	}

	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = 5 * time.Second
	}
	if cfg.BaseRetryDelay <= 0 {
		cfg.BaseRetryDelay = time.Second
	}
	if cfg.MaxRetryDelay < cfg.BaseRetryDelay {
		cfg.MaxRetryDelay = cfg.BaseRetryDelay
	}

	return &Service{
		logger: logger,
		config: cfg,
		source: source,
		engine: eval,
	}
}

// Shard maps a user to one of n consumers.
func Shard(userID string, n int) int {
	if n <= 1 {
		return 0
	}
	return int(murmur3.Sum32([]byte(userID)) % uint32(n))
}

// Run consumes the queue until the context is cancelled. Messages in flight at
// shutdown stay in the processing list and are requeued on the next start.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting worker service",
		slog.Int("concurrency", s.config.Concurrency),
		slog.String("pop_timeout", s.config.PopTimeout.String()),
	)

	shards := make([]chan *queue.Message, s.config.Concurrency)
	var wg sync.WaitGroup
	for i := range shards {
		shards[i] = make(chan *queue.Message, 1)
		wg.Add(1)
		go func(ch <-chan *queue.Message) {
			defer wg.Done()
			for msg := range ch {
				s.process(ctx, msg)
			}
		}(shards[i])
	}
	defer func() {
		for _, ch := range shards {
			close(ch)
		}
		wg.Wait()
		s.logger.Info("worker service stopped")
	}()

	for {
		if ctx.Err() != nil {
			s.logger.Info("worker service stopping...")
			return nil
		}

		msg, err := s.source.Dequeue(ctx, s.config.PopTimeout)
		switch {
		case err != nil && errors.Is(err, queue.ErrMalformedMessage):
			s.drop(ctx, msg, err)
			continue
		case err != nil:
			if ctx.Err() != nil {
				continue
			}
			// Redis unavailable; wait before polling again.
			s.logger.Error("dequeue failed", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
			case <-time.After(s.config.BaseRetryDelay):
			}
			continue
		case msg == nil:
			continue
		}

		select {
		case shards[Shard(msg.Event.UserID, len(shards))] <- msg:
		case <-ctx.Done():
		}
	}
}

// process evaluates one message, retrying transient failures with exponential
// backoff, and acknowledges it unless shutdown interrupted it.
func (s *Service) process(ctx context.Context, msg *queue.Message) {
	log := s.logger.With(
		slog.String("event_id", msg.Event.ID),
		slog.String("event_type", string(msg.Event.Type)),
		slog.String("user_id", msg.Event.UserID),
	)

	// Evaluation itself is not cut short by shutdown; only waiting between retries is.
	evalCtx := logger.WithContext(context.WithoutCancel(ctx), log)

	var results []badge.AwardResult
	op := func() error {
		var err error
		results, err = s.engine.Evaluate(evalCtx, msg.Event)
		if err != nil {
			if errors.Is(err, engine.ErrInvalidArgument) || errors.Is(err, badge.ErrNotFound) {
				return backoff.Permanent(err)
			}
			return err
		}
		if hasTransient(results) {
			return errTransientResults
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		observability.WorkerRetriesTotal.Inc()
		log.Warn("evaluation failed, retrying",
			slog.String("error", err.Error()),
			slog.String("wait", wait.String()),
		)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(s.policy(), ctx), notify)

	status := "success"
	switch {
	case err != nil && ctx.Err() != nil:
		log.Info("evaluation interrupted by shutdown, leaving event for requeue")
		return
	case errors.Is(err, errTransientResults):
		status = "partial"
		log.Error("evaluation completed with failed badges", slog.Int("retries", s.config.MaxRetries))
	case err != nil:
		status = "fail"
		log.Error("evaluation failed", slog.String("error", err.Error()))
	}

	if ackErr := s.source.Ack(evalCtx, msg); ackErr != nil {
		log.Error("failed to ack event", slog.String("error", ackErr.Error()))
	}

	observability.WorkerJobsTotal.WithLabelValues(status).Inc()
	if !msg.Event.OccurredAt.IsZero() {
		observability.WorkerJobDuration.Observe(time.Since(msg.Event.OccurredAt).Seconds())
	}
	log.Debug("event processed", slog.String("status", status), slog.Int("results", len(results)))
}

// drop acknowledges a message that can never be processed.
func (s *Service) drop(ctx context.Context, msg *queue.Message, cause error) {
	observability.WorkerJobsTotal.WithLabelValues("poison").Inc()
	s.logger.Error("dropping malformed event", slog.String("error", cause.Error()))
	if msg == nil {
		return
	}
	if err := s.source.Ack(context.WithoutCancel(ctx), msg); err != nil {
		s.logger.Error("failed to ack malformed event", slog.String("error", err.Error()))
	}
}

func (s *Service) policy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.config.BaseRetryDelay
	b.MaxInterval = s.config.MaxRetryDelay
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, uint64(max(s.config.MaxRetries, 0)))
}

func hasTransient(results []badge.AwardResult) bool {
	for _, r := range results {
		if r.Error == badge.KindTransientStore {
			return true
		}
	}
	return false
}
