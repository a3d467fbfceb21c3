package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/rafaeljc/accolade/internal/badge"
)

var _ Catalog = (*Static)(nil)

// Static serves a fixed set of definitions held in memory.
type Static struct {
	byID map[string]*badge.Definition
	ids  []string
}

// NewStatic builds a catalog from definitions. Definitions whose condition is
// not compiled yet are compiled; failures are logged and left to the engine.
func NewStatic(logger *slog.Logger, defs ...*badge.Definition) *Static {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Static{byID: make(map[string]*badge.Definition, len(defs))}
	for _, d := range defs {
		if d.Condition == nil && len(d.RawCondition) > 0 {
			compileAll(logger, []*badge.Definition{d})
		}
		if _, dup := s.byID[d.ID]; !dup {
			s.ids = append(s.ids, d.ID)
		}
		s.byID[d.ID] = d
	}
	sort.Strings(s.ids)
	return s
}

// ActiveBadges filters the fixed set like the Postgres catalog does.
func (s *Static) ActiveBadges(_ context.Context, eventType badge.EventType) ([]*badge.Definition, error) {
	all := selectsAll(eventType)
	out := make([]*badge.Definition, 0, len(s.ids))
	for _, id := range s.ids {
		d := s.byID[id]
		if d.Active && (all || d.InterestedIn(eventType)) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Badge returns the definition with the given ID.
func (s *Static) Badge(_ context.Context, id string) (*badge.Definition, error) {
	d, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("badge %q: %w", id, badge.ErrNotFound)
	}
	return d, nil
}

// List returns every definition ordered by ID.
func (s *Static) List(_ context.Context) ([]*badge.Definition, error) {
	out := make([]*badge.Definition, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.byID[id])
	}
	return out, nil
}
