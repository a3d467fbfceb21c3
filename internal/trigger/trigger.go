// Package trigger turns application-level happenings (a user registered, a
// review was submitted) into engine events and hands them to a dispatcher.
// Host code calls the Adapter; it never builds badge.Event values itself.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rafaeljc/accolade/internal/badge"
	"github.com/rafaeljc/accolade/internal/logger"
)

// ErrInvalidEvent is returned when the event cannot be built from the arguments.
var ErrInvalidEvent = errors.New("invalid event")

// Dispatcher delivers an event for evaluation. Synchronous dispatchers return
// the per-badge results; asynchronous ones return nil results once the event
// has been accepted.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev badge.Event) ([]badge.AwardResult, error)
}

// Evaluator is the engine operation a direct dispatcher calls.
type Evaluator interface {
	Evaluate(ctx context.Context, ev badge.Event) ([]badge.AwardResult, error)
}

// DirectDispatcher evaluates events inline, in the caller's goroutine.
type DirectDispatcher struct {
	engine Evaluator
}

var _ Dispatcher = (*DirectDispatcher)(nil)

// Direct returns a dispatcher that evaluates events synchronously.
func Direct(engine Evaluator) *DirectDispatcher {
	if engine == nil {
		panic("trigger: evaluator cannot be nil")
	}
	return &DirectDispatcher{engine: engine}
}

// Dispatch evaluates ev and returns the engine's results.
func (d *DirectDispatcher) Dispatch(ctx context.Context, ev badge.Event) ([]badge.AwardResult, error) {
	return d.engine.Evaluate(ctx, ev)
}

// Adapter exposes one method per domain happening.
type Adapter struct {
	logger     *slog.Logger
	dispatcher Dispatcher
	now        func() time.Time
}

// NewAdapter creates an Adapter. If logger is nil, it defaults to slog.Default().
func NewAdapter(logger *slog.Logger, dispatcher Dispatcher) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if dispatcher == nil {
		panic("trigger: dispatcher cannot be nil")
	}
	return &Adapter{
		logger:     logger,
		dispatcher: dispatcher,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// UserRegistered fires when an account is created.
func (a *Adapter) UserRegistered(ctx context.Context, userID string) ([]badge.AwardResult, error) {
	return a.fire(ctx, badge.EventUserRegistered, userID, time.Time{}, nil)
}

// ProfileUpdated fires when the user edits profile fields or verifies their email.
func (a *Adapter) ProfileUpdated(ctx context.Context, userID string) ([]badge.AwardResult, error) {
	return a.fire(ctx, badge.EventProfileUpdated, userID, time.Time{}, nil)
}

// ContentPublished records the kind ("post", "guide", ...) and ID of the content.
func (a *Adapter) ContentPublished(ctx context.Context, userID, kind, contentID string) ([]badge.AwardResult, error) {
	return a.fire(ctx, badge.EventContentPublished, userID, time.Time{}, map[string]any{
		"content_kind": kind,
		"content_id":   contentID,
	})
}

// PlaceClaimed fires when the user takes ownership of a place listing.
func (a *Adapter) PlaceClaimed(ctx context.Context, userID, placeID string) ([]badge.AwardResult, error) {
	return a.fire(ctx, badge.EventPlaceClaimed, userID, time.Time{}, map[string]any{"place_id": placeID})
}

// ReviewSubmitted fires when the user publishes a review.
func (a *Adapter) ReviewSubmitted(ctx context.Context, userID, reviewID string) ([]badge.AwardResult, error) {
	return a.fire(ctx, badge.EventReviewSubmitted, userID, time.Time{}, map[string]any{"review_id": reviewID})
}

// EventAttended fires when the user's attendance to a community event is confirmed.
func (a *Adapter) EventAttended(ctx context.Context, userID, eventID string) ([]badge.AwardResult, error) {
	return a.fire(ctx, badge.EventEventAttended, userID, time.Time{}, map[string]any{"event_id": eventID})
}

// NewsletterSubscribed fires when the user opts in to the newsletter.
func (a *Adapter) NewsletterSubscribed(ctx context.Context, userID string) ([]badge.AwardResult, error) {
	return a.fire(ctx, badge.EventNewsletterSubscribed, userID, time.Time{}, nil)
}

// Reconcile evaluates the whole active catalog for the user.
func (a *Adapter) Reconcile(ctx context.Context, userID string) ([]badge.AwardResult, error) {
	return a.fire(ctx, badge.EventFullReconciliation, userID, time.Time{}, nil)
}

// Manual evaluates the whole active catalog on behalf of an operator.
func (a *Adapter) Manual(ctx context.Context, userID, operator string) ([]badge.AwardResult, error) {
	var payload map[string]any
	if operator != "" {
		payload = map[string]any{"operator": operator}
	}
	return a.fire(ctx, badge.EventManual, userID, time.Time{}, payload)
}

// Fire dispatches an event of an arbitrary type that happens now.
func (a *Adapter) Fire(ctx context.Context, t badge.EventType, userID string, payload map[string]any) ([]badge.AwardResult, error) {
	return a.fire(ctx, t, userID, time.Time{}, payload)
}

// FireAt dispatches an event the host already observed, for callers that
// receive typed events over HTTP or gRPC. A zero occurredAt means now.
// Date windows are measured from occurredAt.
func (a *Adapter) FireAt(ctx context.Context, t badge.EventType, userID string, occurredAt time.Time, payload map[string]any) ([]badge.AwardResult, error) {
	return a.fire(ctx, t, userID, occurredAt, payload)
}

func (a *Adapter) fire(ctx context.Context, t badge.EventType, userID string, occurredAt time.Time, payload map[string]any) ([]badge.AwardResult, error) {
	if occurredAt.IsZero() {
		occurredAt = a.now()
	}
	ev := badge.Event{
		Type:       t,
		UserID:     userID,
		OccurredAt: occurredAt.UTC(),
		Payload:    payload,
	}
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidEvent, t, err)
	}

	results, err := a.dispatcher.Dispatch(ctx, ev)
	if err != nil {
		logger.FromContextOr(ctx, a.logger).Error("badge trigger failed",
			slog.String("event_type", string(t)),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to dispatch %s event: %w", t, err)
	}
	return results, nil
}
