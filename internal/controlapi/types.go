package controlapi

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rafaeljc/accolade/internal/badge"
	"github.com/rafaeljc/accolade/internal/condition"
)

// Badge is the catalog resource as returned by GET /badges.
type Badge struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    badge.Category    `json:"category"`
	Rarity      badge.Rarity      `json:"rarity"`
	Color       string            `json:"color"`
	Icon        string            `json:"icon"`
	Active      bool              `json:"is_active"`
	Triggers    []badge.EventType `json:"triggers"`
	Condition   json.RawMessage   `json:"condition"`
}

func toBadge(d *badge.Definition) Badge {
	raw := d.RawCondition
	if len(raw) == 0 && d.Condition != nil {
		raw, _ = condition.Marshal(d.Condition)
	}
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	triggers := d.Triggers
	if triggers == nil {
		triggers = []badge.EventType{}
	}
	return Badge{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		Rarity:      d.Rarity,
		Color:       d.Color,
		Icon:        d.Icon,
		Active:      d.Active,
		Triggers:    triggers,
		Condition:   raw,
	}
}

// EventRequest is the payload of POST /events, a domain event emitted by the host.
type EventRequest struct {
	EventType  badge.EventType `json:"event_type"`
	UserID     string          `json:"user_id"`
	OccurredAt *time.Time      `json:"occurred_at,omitempty"`
	Payload    map[string]any  `json:"payload,omitempty"`
}

// Sanitize trims identifiers and normalizes the event type.
func (r *EventRequest) Sanitize() {
	r.UserID = strings.TrimSpace(r.UserID)
	r.EventType = badge.EventType(strings.ToUpper(strings.TrimSpace(string(r.EventType))))
}

// Validate checks the request carries a known event type and a user.
func (r *EventRequest) Validate() *ErrorResponse {
	var details []ErrorDetail
	if r.UserID == "" {
		details = append(details, ErrorDetail{Field: "user_id", Issue: "is required"})
	}
	if !r.EventType.Valid() {
		details = append(details, ErrorDetail{Field: "event_type", Issue: "is not a known event type"})
	}
	if len(details) > 0 {
		return &ErrorResponse{Code: "ERR_INVALID_INPUT", Message: "Invalid event", Details: details}
	}
	return nil
}

// EvaluateRequest is the payload of POST /users/{userID}/evaluate.
type EvaluateRequest struct {
	EventType badge.EventType `json:"event_type"`
	Payload   map[string]any  `json:"payload,omitempty"`
}

// ManualAwardRequest is the optional payload of POST /users/{userID}/badges/{badgeID}.
type ManualAwardRequest struct {
	Reason string `json:"reason,omitempty"`
}

// EvaluationResponse lists the per-badge results of a synchronous evaluation.
type EvaluationResponse struct {
	UserID    string              `json:"user_id"`
	EventType badge.EventType     `json:"event_type"`
	Results   []badge.AwardResult `json:"results"`
}

// AcceptedResponse is returned when the event was queued for asynchronous evaluation.
type AcceptedResponse struct {
	Status string `json:"status"`
}

// PaginatedResponse is a standard wrapper for list endpoints to support offset pagination.
type PaginatedResponse struct {
	Data       any        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination metadata for the frontend pager.
type Pagination struct {
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
}

// ErrorResponse represents a standard structured API error.
type ErrorResponse struct {
	// Code is a machine-readable error code (e.g., "ERR_INVALID_INPUT").
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`

	// Details provides optional granular validation errors.
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail provides context about specific field validation failures.
type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}
