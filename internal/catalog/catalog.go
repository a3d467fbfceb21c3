// Package catalog serves badge definitions to the engine. The engine only
// reads from it; definitions are written by operators through Upsert.
package catalog

import (
	"context"
	"log/slog"

	"github.com/rafaeljc/accolade/internal/badge"
)

// Catalog is the read contract the engine depends on.
type Catalog interface {
	// ActiveBadges returns the active badges relevant to the event type.
	// An empty type or a full-sweep type (MANUAL, FULL_RECONCILIATION)
	// returns the whole active catalog.
	ActiveBadges(ctx context.Context, eventType badge.EventType) ([]*badge.Definition, error)

	// Badge returns one definition, active or not. Unknown IDs yield badge.ErrNotFound.
	Badge(ctx context.Context, id string) (*badge.Definition, error)
}

// selectsAll reports whether the event type asks for the whole active catalog.
func selectsAll(t badge.EventType) bool {
	return t == "" || t.FullSweep()
}

// compileAll compiles every definition in place. A definition whose condition
// does not compile is kept with a nil tree so the engine reports it as a
// configuration error for that badge only.
func compileAll(log *slog.Logger, defs []*badge.Definition) {
	for _, d := range defs {
		if err := d.Compile(); err != nil {
			log.Warn("badge condition does not compile",
				slog.String("badge_id", d.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
