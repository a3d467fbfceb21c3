package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rafaeljc/accolade/internal/badge"
)

var _ AwardStore = (*MemoryStore)(nil)

// MemoryStore is an in-process AwardStore. A single mutex provides the
// uniqueness guarantee the Postgres index provides in production.
// Used by tests and by single-node deployments without a database.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	awards []*badge.Award
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) active(userID, badgeID string) *badge.Award {
	for _, a := range s.awards {
		if a.UserID == userID && a.BadgeID == badgeID && !a.Revoked() {
			return a
		}
	}
	return nil
}

func (s *MemoryStore) TryInsert(ctx context.Context, a *badge.Award) (InsertOutcome, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", badge.ErrTransientStore, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active(a.UserID, a.BadgeID) != nil {
		return AlreadyExists, nil
	}

	s.nextID++
	a.ID = s.nextID
	stored := *a
	s.awards = append(s.awards, &stored)
	return Created, nil
}

func (s *MemoryStore) Exists(ctx context.Context, userID, badgeID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: %w", badge.ErrTransientStore, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active(userID, badgeID) != nil, nil
}

func (s *MemoryStore) Revoke(ctx context.Context, userID, badgeID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", badge.ErrTransientStore, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.active(userID, badgeID)
	if a == nil {
		return fmt.Errorf("award %s/%s: %w", userID, badgeID, badge.ErrNotFound)
	}
	a.RevokedAt = &at
	return nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID string) ([]*badge.Award, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", badge.ErrTransientStore, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*badge.Award, 0)
	for _, a := range s.awards {
		if a.UserID == userID {
			c := *a
			out = append(out, &c)
		}
	}
	slices.SortStableFunc(out, func(x, y *badge.Award) int {
		if c := y.EarnedAt.Compare(x.EarnedAt); c != 0 {
			return c
		}
		return cmp.Compare(y.ID, x.ID)
	})
	return out, nil
}
