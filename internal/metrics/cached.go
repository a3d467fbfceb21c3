package metrics

import (
	"context"

	"github.com/rafaeljc/accolade/internal/cache"
	"github.com/rafaeljc/accolade/internal/condition"
)

var _ Provider = (*Cached)(nil)

// Cached keeps snapshots for a short TTL. Snapshots are shared between callers
// and must be treated as read-only.
type Cached struct {
	next  Provider
	cache *cache.MemoryCache[*condition.UserContextData]
}

// NewCached wraps next with the given cache.
func NewCached(next Provider, c *cache.MemoryCache[*condition.UserContextData]) *Cached {
	if next == nil {
		panic("metrics: wrapped provider cannot be nil")
	}
	if c == nil {
		panic("metrics: cache cannot be nil")
	}
	return &Cached{next: next, cache: c}
}

func (c *Cached) Snapshot(ctx context.Context, userID string) (*condition.UserContextData, error) {
	if data, ok := c.cache.Get(userID); ok {
		return data, nil
	}
	data, err := c.next.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.cache.Set(userID, data)
	return data, nil
}

// UserExists delegates to the wrapped provider when it can answer.
// It returns true when it cannot, leaving the decision to the award store.
func (c *Cached) UserExists(ctx context.Context, userID string) (bool, error) {
	if uc, ok := c.next.(UserChecker); ok {
		return uc.UserExists(ctx, userID)
	}
	return true, nil
}

// Invalidate drops the cached snapshot of the user.
func (c *Cached) Invalidate(userID string) {
	c.cache.Del(userID)
}
