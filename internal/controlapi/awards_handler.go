package controlapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/rafaeljc/accolade/internal/badge"
	"github.com/rafaeljc/accolade/internal/engine"
	"github.com/rafaeljc/accolade/internal/logger"
	"github.com/rafaeljc/accolade/internal/trigger"
)

// handleIngestEvent processes POST /api/v1/events: a domain event from the host.
// It answers 200 with the per-badge results when evaluation is synchronous and
// 202 when the event was queued.
func (a *API) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	req.Sanitize()
	if errResp := req.Validate(); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	var occurredAt time.Time
	if req.OccurredAt != nil {
		occurredAt = *req.OccurredAt
	}

	results, err := a.trigger.FireAt(r.Context(), req.EventType, req.UserID, occurredAt, req.Payload)
	a.respondEvaluation(w, r, req.UserID, req.EventType, results, err)
}

// handleEvaluate processes POST /api/v1/users/{userID}/evaluate.
func (a *API) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req EvaluateRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	req.EventType = badge.EventType(strings.ToUpper(strings.TrimSpace(string(req.EventType))))
	if !req.EventType.Valid() {
		writeError(w, r, http.StatusBadRequest, "ERR_INVALID_INPUT", "event_type is not a known event type")
		return
	}

	results, err := a.trigger.Fire(r.Context(), req.EventType, userID, req.Payload)
	a.respondEvaluation(w, r, userID, req.EventType, results, err)
}

// handleReconcile processes POST /api/v1/users/{userID}/reconcile: a full sweep
// of the active catalog for the user.
func (a *API) handleReconcile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	results, err := a.trigger.Reconcile(r.Context(), userID)
	a.respondEvaluation(w, r, userID, badge.EventFullReconciliation, results, err)
}

// handleListAwards processes GET /api/v1/users/{userID}/badges.
// Revoked awards are included; ?active=true hides them.
func (a *API) handleListAwards(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	awards, err := a.engine.ListAwards(r.Context(), userID)
	if err != nil {
		a.writeEngineError(w, r, err, "Failed to list awards")
		return
	}

	if r.URL.Query().Get("active") == "true" {
		live := awards[:0]
		for _, aw := range awards {
			if !aw.Revoked() {
				live = append(live, aw)
			}
		}
		awards = live
	}
	if awards == nil {
		awards = []*badge.Award{}
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]any{"user_id": userID, "awards": awards})
}

// handleAwardManually processes POST /api/v1/users/{userID}/badges/{badgeID}.
// 201 when the award was created, 200 when the user already held the badge.
func (a *API) handleAwardManually(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	badgeID := chi.URLParam(r, "badgeID")

	var req ManualAwardRequest
	if !decodeBody(w, r, &req, true) {
		return
	}

	res, err := a.engine.AwardManually(r.Context(), userID, badgeID, strings.TrimSpace(req.Reason))
	if err != nil {
		a.writeEngineError(w, r, err, "Failed to award badge")
		return
	}

	status := http.StatusOK
	if res.Awarded {
		status = http.StatusCreated
	}
	render.Status(r, status)
	render.JSON(w, r, res)
}

// handleRevoke processes DELETE /api/v1/users/{userID}/badges/{badgeID}.
func (a *API) handleRevoke(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	badgeID := chi.URLParam(r, "badgeID")

	if err := a.engine.Revoke(r.Context(), userID, badgeID); err != nil {
		a.writeEngineError(w, r, err, "Failed to revoke badge")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) respondEvaluation(w http.ResponseWriter, r *http.Request, userID string, t badge.EventType, results []badge.AwardResult, err error) {
	if err != nil {
		a.writeEngineError(w, r, err, "Failed to evaluate badges")
		return
	}

	// Asynchronous dispatchers accept the event without results.
	if results == nil {
		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, AcceptedResponse{Status: "queued"})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, EvaluationResponse{UserID: userID, EventType: t, Results: results})
}

// writeEngineError maps engine errors to HTTP statuses.
func (a *API) writeEngineError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, engine.ErrInvalidArgument), errors.Is(err, trigger.ErrInvalidEvent):
		writeError(w, r, http.StatusBadRequest, "ERR_INVALID_INPUT", err.Error())
	case errors.Is(err, badge.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
	case errors.Is(err, badge.ErrTransientStore):
		logger.FromContext(r.Context()).Error(msg, slog.String("error", err.Error()))
		writeError(w, r, http.StatusServiceUnavailable, "ERR_UNAVAILABLE", msg)
	default:
		logger.FromContext(r.Context()).Error(msg, slog.String("error", err.Error()))
		writeError(w, r, http.StatusInternalServerError, "ERR_INTERNAL", msg)
	}
}
