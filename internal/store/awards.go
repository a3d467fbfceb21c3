// Package store provides the award store: the durable, uniqueness-constrained
// record of which user holds which badge.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/accolade/internal/badge"
)

// Compile-time check to verify that PostgresStore implements AwardStore.
var _ AwardStore = (*PostgresStore)(nil)

// PostgreSQL error codes the store distinguishes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// InsertOutcome is the result of a conditional insert.
type InsertOutcome int

const (
	// Created means this call wrote the award row.
	Created InsertOutcome = iota + 1
	// AlreadyExists means a non-revoked award for the pair was already present.
	AlreadyExists
)

func (o InsertOutcome) String() string {
	switch o {
	case Created:
		return "created"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// AwardStore defines the persistence operations of awards.
// Implementations must guarantee at most one non-revoked award per (user, badge).
type AwardStore interface {
	// TryInsert writes the award unless a non-revoked one exists for the pair.
	// On Created, the award's ID is populated.
	TryInsert(ctx context.Context, a *badge.Award) (InsertOutcome, error)

	// Exists reports whether a non-revoked award exists for the pair.
	Exists(ctx context.Context, userID, badgeID string) (bool, error)

	// Revoke marks the non-revoked award of the pair as revoked at the given time.
	// Returns badge.ErrNotFound when there is none.
	Revoke(ctx context.Context, userID, badgeID string, at time.Time) error

	// ListByUser returns every award of the user, revoked ones included, newest first.
	ListByUser(ctx context.Context, userID string) ([]*badge.Award, error)
}

// PostgresStore is the implementation of AwardStore backed by PostgreSQL.
// The partial unique index uq_user_badges_active is the serialization point.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new store instance with the given connection pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	if db == nil {
		panic("store: database pool cannot be nil")
	}
	return &PostgresStore{db: db}
}

// TryInsert inserts the award, relying on ON CONFLICT against the partial unique
// index so concurrent callers never both see Created.
func (s *PostgresStore) TryInsert(ctx context.Context, a *badge.Award) (InsertOutcome, error) {
	query := `
		INSERT INTO user_badges (user_id, badge_id, earned_at, reason, is_visible)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, badge_id) WHERE revoked_at IS NULL DO NOTHING
		RETURNING id
	`

	err := s.db.QueryRow(ctx, query,
		a.UserID,
		a.BadgeID,
		a.EarnedAt,
		a.Reason,
		a.Visible,
	).Scan(&a.ID)

	if err != nil {
		// DO NOTHING returns no row when the conflict target matched.
		if errors.Is(err, pgx.ErrNoRows) {
			return AlreadyExists, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return AlreadyExists, nil
			case pgForeignKeyViolation:
				return 0, fmt.Errorf("badge %q: %w", a.BadgeID, badge.ErrNotFound)
			}
		}
		return 0, fmt.Errorf("failed to insert award: %w: %w", badge.ErrTransientStore, err)
	}

	return Created, nil
}

// Exists reports whether the pair holds a live award.
func (s *PostgresStore) Exists(ctx context.Context, userID, badgeID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM user_badges
			WHERE user_id = $1 AND badge_id = $2 AND revoked_at IS NULL
		)
	`

	var exists bool
	if err := s.db.QueryRow(ctx, query, userID, badgeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check award: %w: %w", badge.ErrTransientStore, err)
	}
	return exists, nil
}

// Revoke sets revoked_at on the live award. The row is kept as history.
func (s *PostgresStore) Revoke(ctx context.Context, userID, badgeID string, at time.Time) error {
	query := `
		UPDATE user_badges
		SET revoked_at = $3
		WHERE user_id = $1 AND badge_id = $2 AND revoked_at IS NULL
	`

	tag, err := s.db.Exec(ctx, query, userID, badgeID, at)
	if err != nil {
		return fmt.Errorf("failed to revoke award: %w: %w", badge.ErrTransientStore, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("award %s/%s: %w", userID, badgeID, badge.ErrNotFound)
	}
	return nil
}

// ListByUser returns the award history of the user.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]*badge.Award, error) {
	query := `
		SELECT id, user_id, badge_id, earned_at, reason, is_visible, revoked_at
		FROM user_badges
		WHERE user_id = $1
		ORDER BY earned_at DESC, id DESC
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list awards: %w: %w", badge.ErrTransientStore, err)
	}
	// Ensure rows are closed to prevent connection leaks in the pool.
	defer rows.Close()

	awards := make([]*badge.Award, 0)
	for rows.Next() {
		var a badge.Award
		if err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.BadgeID,
			&a.EarnedAt,
			&a.Reason,
			&a.Visible,
			&a.RevokedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan award row: %w", err)
		}
		awards = append(awards, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating award rows: %w: %w", badge.ErrTransientStore, err)
	}
	return awards, nil
}
