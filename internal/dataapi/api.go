// Package dataapi implements the gRPC data plane: event evaluation and award
// listing for host services on the hot path.
package dataapi

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rafaeljc/accolade/internal/badge"
	"github.com/rafaeljc/accolade/internal/engine"
	"github.com/rafaeljc/accolade/internal/logger"
	"github.com/rafaeljc/accolade/internal/trigger"
	"github.com/rafaeljc/accolade/internal/validation"
)

// AwardLister reads a user's award history.
type AwardLister interface {
	ListAwards(ctx context.Context, userID string) ([]*badge.Award, error)
}

// API implements BadgeEngineServer.
type API struct {
	awards  AwardLister
	trigger *trigger.Adapter
}

var _ BadgeEngineServer = (*API)(nil)

// NewAPI creates a new data plane API instance.
func NewAPI(awards AwardLister, dispatcher trigger.Dispatcher) *API {
	validation.AssertDependency(awards, "dataapi: award lister")
	validation.AssertDependency(dispatcher, "dataapi: dispatcher")
	return &API{awards: awards, trigger: trigger.NewAdapter(nil, dispatcher)}
}

// Register connects this implementation to the grpc.Server engine.
func (a *API) Register(grpcServer *grpc.Server) {
	grpcServer.RegisterService(&ServiceDesc, a)
}

// Evaluate dispatches a domain event. Request fields: event_type, user_id,
// optional occurred_at (RFC 3339) and payload. The response carries the
// per-badge results, or status "queued" when evaluation is asynchronous.
//
// It returns:
//   - INVALID_ARGUMENT for a missing user or unknown event type.
//   - NOT_FOUND if the user has no metrics snapshot.
//   - UNAVAILABLE if the catalog or the stores cannot be reached.
func (a *API) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := logger.FromContext(ctx)
	fields := req.GetFields()

	eventType := badge.EventType(strings.ToUpper(fields["event_type"].GetStringValue()))
	userID := fields["user_id"].GetStringValue()

	var occurredAt time.Time
	if raw := fields["occurred_at"].GetStringValue(); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "occurred_at must be RFC 3339: %v", err)
		}
		occurredAt = at
	}
	var payload map[string]any
	if p := fields["payload"].GetStructValue(); p != nil {
		payload = p.AsMap()
	}

	results, err := a.trigger.FireAt(ctx, eventType, userID, occurredAt, payload)
	if err != nil {
		if errors.Is(err, trigger.ErrInvalidEvent) {
			log.Warn("bad request", slog.String("error", err.Error()))
		}
		return nil, toStatus(log, err)
	}

	if results == nil {
		return structpb.NewStruct(map[string]any{"status": "queued"})
	}

	items := make([]any, 0, len(results))
	for _, r := range results {
		item := map[string]any{
			"badge_id":    r.BadgeID,
			"awarded":     r.Awarded,
			"already_had": r.AlreadyHad,
		}
		if r.Failed() {
			item["error"] = string(r.Error)
		}
		items = append(items, item)
	}
	return structpb.NewStruct(map[string]any{
		"user_id":    userID,
		"event_type": string(eventType),
		"results":    items,
	})
}

// ListAwards returns the award history of user_id, revoked awards included.
func (a *API) ListAwards(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := logger.FromContext(ctx)

	userID := req.GetFields()["user_id"].GetStringValue()
	if userID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}

	awards, err := a.awards.ListAwards(ctx, userID)
	if err != nil {
		return nil, toStatus(log, err)
	}

	items := make([]any, 0, len(awards))
	for _, aw := range awards {
		item := map[string]any{
			"id":         aw.ID,
			"badge_id":   aw.BadgeID,
			"earned_at":  aw.EarnedAt.UTC().Format(time.RFC3339),
			"reason":     aw.Reason,
			"is_visible": aw.Visible,
		}
		if aw.RevokedAt != nil {
			item["revoked_at"] = aw.RevokedAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	return structpb.NewStruct(map[string]any{"user_id": userID, "awards": items})
}

// toStatus maps domain errors to gRPC codes without leaking internals.
func toStatus(log *slog.Logger, err error) error {
	switch {
	case errors.Is(err, engine.ErrInvalidArgument), errors.Is(err, trigger.ErrInvalidEvent):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, badge.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, badge.ErrTransientStore):
		log.Error("store unavailable", slog.String("error", err.Error()))
		return status.Error(codes.Unavailable, "badge store unavailable")
	default:
		log.Error("evaluation failed", slog.String("error", err.Error()))
		return status.Error(codes.Internal, "evaluation failed")
	}
}
