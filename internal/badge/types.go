// Package badge defines the domain model shared by the Accolade components:
// badge definitions, domain events, awards and the per-badge evaluation result.
package badge

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/rafaeljc/accolade/internal/condition"
)

// Category groups badges for display purposes.
type Category string

const (
	CategoryAchievement Category = "ACHIEVEMENT"
	CategoryCommunity   Category = "COMMUNITY"
	CategorySpecial     Category = "SPECIAL"
	CategoryTime        Category = "TIME"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryAchievement, CategoryCommunity, CategorySpecial, CategoryTime:
		return true
	}
	return false
}

// Rarity is the display tier of a badge.
type Rarity string

const (
	RarityCommon    Rarity = "COMMON"
	RarityUncommon  Rarity = "UNCOMMON"
	RarityRare      Rarity = "RARE"
	RarityEpic      Rarity = "EPIC"
	RarityLegendary Rarity = "LEGENDARY"
)

// Valid reports whether r is one of the known rarities.
func (r Rarity) Valid() bool {
	switch r {
	case RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	}
	return false
}

// Definition is a badge as published by the catalog.
// It is immutable per version; the engine only reads active definitions.
type Definition struct {
	ID          string      `json:"id" yaml:"id"`
	Title       string      `json:"title" yaml:"title"`
	Description string      `json:"description" yaml:"description"`
	Category    Category    `json:"category" yaml:"category"`
	Rarity      Rarity      `json:"rarity" yaml:"rarity"`
	Color       string      `json:"color" yaml:"color"`
	Icon        string      `json:"icon" yaml:"icon"`
	Active      bool        `json:"is_active" yaml:"active"`
	Triggers    []EventType `json:"triggers" yaml:"triggers"`

	// RawCondition is the stored wire form of the condition tree.
	RawCondition json.RawMessage `json:"condition" yaml:"-"`

	// Condition is the compiled tree. Catalogs fill it when the raw form compiles;
	// a nil Condition is compiled lazily (and fails) at evaluation time.
	Condition condition.Node `json:"-" yaml:"-"`
}

// InterestedIn reports whether the badge declares an affinity for the event type.
func (d *Definition) InterestedIn(t EventType) bool {
	return slices.Contains(d.Triggers, t)
}

// Compile parses RawCondition into Condition.
func (d *Definition) Compile() error {
	node, err := condition.Parse(d.RawCondition)
	if err != nil {
		return fmt.Errorf("badge %s: %w", d.ID, err)
	}
	d.Condition = node
	return nil
}

// ResolveCondition returns a validated condition tree for the badge,
// compiling the raw form when no compiled tree is attached.
func (d *Definition) ResolveCondition() (condition.Node, error) {
	if d.Condition != nil {
		if err := condition.Validate(d.Condition); err != nil {
			return nil, err
		}
		return d.Condition, nil
	}
	if len(d.RawCondition) == 0 {
		return nil, fmt.Errorf("%w: badge has no condition", condition.ErrMalformed)
	}
	return condition.Parse(d.RawCondition)
}

// Award is the durable record of a user having earned a badge.
// At most one non-revoked award exists per (UserID, BadgeID).
type Award struct {
	ID        int64      `json:"id"`
	UserID    string     `json:"user_id"`
	BadgeID   string     `json:"badge_id"`
	EarnedAt  time.Time  `json:"earned_at"`
	Reason    string     `json:"reason"`
	Visible   bool       `json:"is_visible"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Revoked reports whether the award has been revoked.
func (a *Award) Revoked() bool {
	return a.RevokedAt != nil
}

// AwardResult is the outcome of evaluating (or manually awarding) one badge.
type AwardResult struct {
	BadgeID    string    `json:"badge_id"`
	Awarded    bool      `json:"awarded"`
	AlreadyHad bool      `json:"already_had"`
	Error      ErrorKind `json:"error,omitempty"`

	// Err carries the underlying cause for logging. It is never serialized.
	Err error `json:"-"`
}

// Failed reports whether the result carries an error.
func (r AwardResult) Failed() bool {
	return r.Error != ""
}

// FailedResult builds an AwardResult for err, classifying it with KindOf.
func FailedResult(badgeID string, err error) AwardResult {
	return AwardResult{
		BadgeID: badgeID,
		Error:   KindOf(err),
		Err:     err,
	}
}
