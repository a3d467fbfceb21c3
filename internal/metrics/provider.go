// Package metrics supplies the per-user snapshot (counters, flags and dates)
// the condition evaluator runs against. The engine never computes metrics itself.
package metrics

import (
	"context"

	"github.com/rafaeljc/accolade/internal/condition"
)

// Provider assembles a fresh snapshot for one user.
type Provider interface {
	Snapshot(ctx context.Context, userID string) (*condition.UserContextData, error)
}

// UserChecker is implemented by providers that can tell whether a user exists.
type UserChecker interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}
