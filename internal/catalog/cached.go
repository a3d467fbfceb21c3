package catalog

import (
	"context"

	"github.com/rafaeljc/accolade/internal/badge"
	"github.com/rafaeljc/accolade/internal/cache"
)

var _ Catalog = (*Cached)(nil)

// Cached is a read-through decorator keeping catalog answers in an L1 cache.
// Only successful lookups are cached; errors always reach the caller.
type Cached struct {
	next   Catalog
	active *cache.MemoryCache[[]*badge.Definition]
	byID   *cache.MemoryCache[*badge.Definition]
}

// NewCached wraps next. Both caches share the same TTL and capacity.
func NewCached(next Catalog, active *cache.MemoryCache[[]*badge.Definition], byID *cache.MemoryCache[*badge.Definition]) *Cached {
	if next == nil {
		panic("catalog: wrapped catalog cannot be nil")
	}
	if active == nil || byID == nil {
		panic("catalog: caches cannot be nil")
	}
	return &Cached{next: next, active: active, byID: byID}
}

func (c *Cached) ActiveBadges(ctx context.Context, eventType badge.EventType) ([]*badge.Definition, error) {
	key := string(eventType)
	if selectsAll(eventType) {
		key = "*"
	}
	if defs, ok := c.active.Get(key); ok {
		return defs, nil
	}

	defs, err := c.next.ActiveBadges(ctx, eventType)
	if err != nil {
		return nil, err
	}
	c.active.Set(key, defs)
	return defs, nil
}

func (c *Cached) Badge(ctx context.Context, id string) (*badge.Definition, error) {
	if d, ok := c.byID.Get(id); ok {
		return d, nil
	}

	d, err := c.next.Badge(ctx, id)
	if err != nil {
		return nil, err
	}
	c.byID.Set(id, d)
	return d, nil
}

// Invalidate drops every cached answer, e.g. after an Upsert.
func (c *Cached) Invalidate() {
	c.active.Clear()
	c.byID.Clear()
}
