// Package engine decides, for a domain event, which badges a user has become
// eligible for and records each award exactly once.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rafaeljc/accolade/internal/badge"
	"github.com/rafaeljc/accolade/internal/catalog"
	"github.com/rafaeljc/accolade/internal/condition"
	"github.com/rafaeljc/accolade/internal/logger"
	"github.com/rafaeljc/accolade/internal/metrics"
	"github.com/rafaeljc/accolade/internal/observability"
	"github.com/rafaeljc/accolade/internal/store"
)

// ErrInvalidArgument is returned when the caller's input is unusable.
var ErrInvalidArgument = errors.New("invalid argument")

const defaultManualReason = "awarded manually"

// Config holds the engine tunables.
type Config struct {
	// OperationTimeout bounds each store call and the snapshot fetch. Zero disables it.
	OperationTimeout time.Duration

	// Now is the clock used for award and revocation timestamps. Date windows use
	// the event's OccurredAt instead. Defaults to UTC wall time.
	Now func() time.Time
}

// Engine orchestrates candidate selection, eligibility and the conditional insert.
// It holds no mutable state and is safe for concurrent use; the award store's
// uniqueness guarantee is the only serialization point.
type Engine struct {
	logger  *slog.Logger
	cfg     Config
	catalog catalog.Catalog
	awards  store.AwardStore
	metrics metrics.Provider
}

// New creates a new Engine. If logger is nil, it defaults to slog.Default().
func New(logger *slog.Logger, cfg Config, cat catalog.Catalog, awards store.AwardStore, provider metrics.Provider) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cat == nil {
		panic("engine: catalog cannot be nil")
	}
	if awards == nil {
		panic("engine: award store cannot be nil")
	}
	if provider == nil {
		panic("engine: metrics provider cannot be nil")
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Engine{
		logger:  logger,
		cfg:     cfg,
		catalog: cat,
		awards:  awards,
		metrics: provider,
	}
}

// Evaluate runs every candidate badge of the event against the user's snapshot.
//
// Per-badge failures (configuration, store) are reported in that badge's result
// and never stop the batch. A failure to load the candidates or the snapshot
// aborts the whole call and is returned as the error.
func (e *Engine) Evaluate(ctx context.Context, ev badge.Event) ([]badge.AwardResult, error) {
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	start := time.Now()
	log := logger.FromContextOr(ctx, e.logger).With(
		slog.String("user_id", ev.UserID),
		slog.String("event_type", string(ev.Type)),
	)
	if ev.ID != "" {
		log = log.With(slog.String("event_id", ev.ID))
	}

	results, err := e.evaluate(ctx, log, ev)

	outcome := "completed"
	if err != nil {
		outcome = "aborted"
		log.Error("badge evaluation aborted", slog.String("error", err.Error()))
	}
	observability.EngineEvaluationsTotal.WithLabelValues(string(ev.Type), outcome).Inc()
	observability.EngineEvaluationDuration.WithLabelValues(string(ev.Type)).Observe(time.Since(start).Seconds())

	return results, err
}

func (e *Engine) evaluate(ctx context.Context, log *slog.Logger, ev badge.Event) ([]badge.AwardResult, error) {
	candidates, err := e.catalog.ActiveBadges(ctx, ev.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate badges: %w", err)
	}

	// Fetched on the first candidate that needs it, then reused.
	var snapshot *condition.UserContextData

	results := make([]badge.AwardResult, 0, len(candidates))
	for _, def := range candidates {
		held, err := e.exists(ctx, ev.UserID, def.ID)
		if err != nil {
			results = append(results, e.fail(log, def.ID, err))
			continue
		}
		if held {
			results = append(results, e.done(badge.AwardResult{BadgeID: def.ID, AlreadyHad: true}))
			continue
		}

		cond, err := def.ResolveCondition()
		if err != nil {
			results = append(results, e.fail(log, def.ID, fmt.Errorf("%w: %w", badge.ErrConfiguration, err)))
			continue
		}

		if snapshot == nil {
			snapshot, err = e.snapshot(ctx, ev.UserID)
			if err != nil {
				return nil, fmt.Errorf("failed to load user snapshot: %w", err)
			}
		}

		// Windows are measured from when the event happened, so replays and
		// queued events are judged the same as inline ones.
		eligible, err := condition.Evaluate(cond, condition.Input{Data: snapshot, Now: ev.OccurredAt})
		if err != nil {
			if condition.IsConfigError(err) {
				err = fmt.Errorf("%w: %w", badge.ErrConfiguration, err)
			}
			results = append(results, e.fail(log, def.ID, err))
			continue
		}
		if !eligible {
			results = append(results, e.done(badge.AwardResult{BadgeID: def.ID}))
			continue
		}

		results = append(results, e.award(ctx, log, ev.UserID, def.ID, ev.Reason()))
	}

	log.Debug("badge evaluation completed",
		slog.Int("candidates", len(candidates)),
		slog.Int("awarded", countAwarded(results)),
	)
	return results, nil
}

// AwardManually grants a badge without evaluating its condition. The badge must
// exist and be active; the user must exist when the metrics provider can tell.
// An already held badge is a successful no-op (AlreadyHad).
func (e *Engine) AwardManually(ctx context.Context, userID, badgeID, reason string) (badge.AwardResult, error) {
	if userID == "" || badgeID == "" {
		return badge.AwardResult{BadgeID: badgeID}, fmt.Errorf("%w: user_id and badge_id are required", ErrInvalidArgument)
	}
	log := logger.FromContextOr(ctx, e.logger).With(slog.String("user_id", userID), slog.String("badge_id", badgeID))

	def, err := e.catalog.Badge(ctx, badgeID)
	if err != nil {
		return e.fail(log, badgeID, err), err
	}
	if !def.Active {
		err := fmt.Errorf("badge %q is inactive: %w", badgeID, badge.ErrNotFound)
		return e.fail(log, badgeID, err), err
	}

	if checker, ok := e.metrics.(metrics.UserChecker); ok {
		known, err := checker.UserExists(ctx, userID)
		if err != nil {
			err = fmt.Errorf("failed to check user: %w: %w", badge.ErrTransientStore, err)
			return e.fail(log, badgeID, err), err
		}
		if !known {
			err := fmt.Errorf("user %q: %w", userID, badge.ErrNotFound)
			return e.fail(log, badgeID, err), err
		}
	}

	if strings.TrimSpace(reason) == "" {
		reason = defaultManualReason
	}
	res := e.award(ctx, log, userID, badgeID, reason)
	return res, res.Err
}

// Revoke marks the user's live award of the badge as revoked. The row is kept;
// a later evaluation or manual award can earn the badge again.
func (e *Engine) Revoke(ctx context.Context, userID, badgeID string) error {
	if userID == "" || badgeID == "" {
		return fmt.Errorf("%w: user_id and badge_id are required", ErrInvalidArgument)
	}

	opCtx, cancel := e.opContext(ctx)
	defer cancel()

	log := logger.FromContextOr(ctx, e.logger)
	err := e.awards.Revoke(opCtx, userID, badgeID, e.cfg.Now())
	switch {
	case err == nil:
		observability.EngineRevocationsTotal.WithLabelValues("revoked").Inc()
		log.Info("badge revoked", slog.String("user_id", userID), slog.String("badge_id", badgeID))
		return nil
	case errors.Is(err, badge.ErrNotFound):
		observability.EngineRevocationsTotal.WithLabelValues("not_found").Inc()
	default:
		observability.EngineRevocationsTotal.WithLabelValues("error").Inc()
		log.Error("failed to revoke badge",
			slog.String("user_id", userID),
			slog.String("badge_id", badgeID),
			slog.String("error", err.Error()),
		)
	}
	return err
}

// ListAwards returns the user's award history, revoked awards included.
func (e *Engine) ListAwards(ctx context.Context, userID string) ([]*badge.Award, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidArgument)
	}

	opCtx, cancel := e.opContext(ctx)
	defer cancel()
	return e.awards.ListByUser(opCtx, userID)
}

// award performs the conditional insert and classifies its outcome.
func (e *Engine) award(ctx context.Context, log *slog.Logger, userID, badgeID, reason string) badge.AwardResult {
	a := &badge.Award{
		UserID:   userID,
		BadgeID:  badgeID,
		EarnedAt: e.cfg.Now(),
		Reason:   reason,
		Visible:  true,
	}

	opCtx, cancel := e.opContext(ctx)
	defer cancel()

	outcome, err := e.awards.TryInsert(opCtx, a)
	if err != nil {
		return e.fail(log, badgeID, err)
	}

	switch outcome {
	case store.Created:
		log.Info("badge awarded",
			slog.String("badge_id", badgeID),
			slog.Int64("award_id", a.ID),
			slog.String("reason", reason),
		)
		return e.done(badge.AwardResult{BadgeID: badgeID, Awarded: true})
	case store.AlreadyExists:
		return e.done(badge.AwardResult{BadgeID: badgeID, AlreadyHad: true})
	default:
		return e.fail(log, badgeID, fmt.Errorf("%w: unexpected insert outcome %d", badge.ErrTransientStore, outcome))
	}
}

func (e *Engine) exists(ctx context.Context, userID, badgeID string) (bool, error) {
	opCtx, cancel := e.opContext(ctx)
	defer cancel()
	return e.awards.Exists(opCtx, userID, badgeID)
}

func (e *Engine) snapshot(ctx context.Context, userID string) (*condition.UserContextData, error) {
	opCtx, cancel := e.opContext(ctx)
	defer cancel()
	return e.metrics.Snapshot(opCtx, userID)
}

func (e *Engine) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.OperationTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.cfg.OperationTimeout)
}

// fail builds a failed result, logs it and counts it.
func (e *Engine) fail(log *slog.Logger, badgeID string, err error) badge.AwardResult {
	res := badge.FailedResult(badgeID, err)

	level := slog.LevelError
	if res.Error == badge.KindNotFound {
		level = slog.LevelWarn
	}
	log.Log(context.Background(), level, "badge award failed",
		slog.String("badge_id", badgeID),
		slog.String("kind", string(res.Error)),
		slog.String("error", err.Error()),
	)
	return e.done(res)
}

// done counts a result by outcome.
func (e *Engine) done(res badge.AwardResult) badge.AwardResult {
	observability.EngineAwardResultsTotal.WithLabelValues(outcomeLabel(res)).Inc()
	return res
}

func outcomeLabel(res badge.AwardResult) string {
	switch {
	case res.Failed():
		return strings.ToLower(string(res.Error))
	case res.Awarded:
		return "awarded"
	case res.AlreadyHad:
		return "already_had"
	default:
		return "not_eligible"
	}
}

func countAwarded(results []badge.AwardResult) int {
	n := 0
	for _, r := range results {
		if r.Awarded {
			n++
		}
	}
	return n
}
