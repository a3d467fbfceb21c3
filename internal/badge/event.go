package badge

import (
	"fmt"
	"time"
)

// EventType identifies the domain event that triggered an evaluation.
type EventType string

const (
	EventUserRegistered       EventType = "USER_REGISTERED"
	EventProfileUpdated       EventType = "PROFILE_UPDATED"
	EventContentPublished     EventType = "CONTENT_PUBLISHED"
	EventPlaceClaimed         EventType = "PLACE_CLAIMED"
	EventReviewSubmitted      EventType = "REVIEW_SUBMITTED"
	EventEventAttended        EventType = "EVENT_ATTENDED"
	EventNewsletterSubscribed EventType = "NEWSLETTER_SUBSCRIBED"

	// EventManual evaluates the whole active catalog on behalf of an operator.
	EventManual EventType = "MANUAL"

	// EventFullReconciliation evaluates the whole active catalog as a periodic sweep.
	EventFullReconciliation EventType = "FULL_RECONCILIATION"
)

var knownEventTypes = map[EventType]struct{}{
	EventUserRegistered:       {},
	EventProfileUpdated:       {},
	EventContentPublished:     {},
	EventPlaceClaimed:         {},
	EventReviewSubmitted:      {},
	EventEventAttended:        {},
	EventNewsletterSubscribed: {},
	EventManual:               {},
	EventFullReconciliation:   {},
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	_, ok := knownEventTypes[t]
	return ok
}

// FullSweep reports whether events of this type evaluate the entire active catalog
// instead of the badges declaring an affinity for the type.
func (t EventType) FullSweep() bool {
	return t == EventManual || t == EventFullReconciliation
}

// Event is the engine's input contract. It is ephemeral and never persisted by the engine.
type Event struct {
	// ID is optional; it is assigned when the event is enqueued and used for tracing.
	ID         string         `json:"id,omitempty"`
	Type       EventType      `json:"event_type"`
	UserID     string         `json:"user_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Validate checks the event carries the fields the engine relies on.
func (e *Event) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("event user_id is required")
	}
	if !e.Type.Valid() {
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("event occurred_at is required")
	}
	return nil
}

// Reason renders a human-readable description of the event, stored on the award.
func (e *Event) Reason() string {
	if e.Type.FullSweep() {
		return fmt.Sprintf("earned during %s evaluation", e.Type)
	}
	return fmt.Sprintf("earned on %s", e.Type)
}
