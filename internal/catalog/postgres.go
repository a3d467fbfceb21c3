package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/accolade/internal/badge"
)

var _ Catalog = (*PostgresCatalog)(nil)

const badgeColumns = `id, title, description, category, rarity, color, icon, is_active, triggers, condition`

// PostgresCatalog reads badge definitions from the badges table.
type PostgresCatalog struct {
	logger *slog.Logger
	db     *pgxpool.Pool
}

// NewPostgresCatalog creates a catalog over the given pool.
func NewPostgresCatalog(logger *slog.Logger, db *pgxpool.Pool) *PostgresCatalog {
	if logger == nil {
		logger = slog.Default()
	}
	if db == nil {
		panic("catalog: database pool cannot be nil")
	}
	return &PostgresCatalog{logger: logger, db: db}
}

// ActiveBadges queries active badges, filtered by trigger affinity unless the
// event type selects the whole catalog.
func (c *PostgresCatalog) ActiveBadges(ctx context.Context, eventType badge.EventType) ([]*badge.Definition, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if selectsAll(eventType) {
		rows, err = c.db.Query(ctx, `SELECT `+badgeColumns+` FROM badges WHERE is_active ORDER BY id`)
	} else {
		rows, err = c.db.Query(ctx,
			`SELECT `+badgeColumns+` FROM badges WHERE is_active AND $1 = ANY(triggers) ORDER BY id`,
			string(eventType))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query active badges: %w", err)
	}

	defs, err := scanDefinitions(rows)
	if err != nil {
		return nil, err
	}
	compileAll(c.logger, defs)
	return defs, nil
}

// Badge returns a single definition by ID.
func (c *PostgresCatalog) Badge(ctx context.Context, id string) (*badge.Definition, error) {
	rows, err := c.db.Query(ctx, `SELECT `+badgeColumns+` FROM badges WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query badge: %w", err)
	}

	defs, err := scanDefinitions(rows)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("badge %q: %w", id, badge.ErrNotFound)
	}
	compileAll(c.logger, defs)
	return defs[0], nil
}

// List returns every definition, inactive ones included.
func (c *PostgresCatalog) List(ctx context.Context) ([]*badge.Definition, error) {
	rows, err := c.db.Query(ctx, `SELECT `+badgeColumns+` FROM badges ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	return scanDefinitions(rows)
}

// Upsert inserts or updates the definitions in one transaction. The version
// column is bumped only when a stored definition actually changes.
func (c *PostgresCatalog) Upsert(ctx context.Context, defs []*badge.Definition) error {
	query := `
		INSERT INTO badges (` + badgeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			title       = EXCLUDED.title,
			description = EXCLUDED.description,
			category    = EXCLUDED.category,
			rarity      = EXCLUDED.rarity,
			color       = EXCLUDED.color,
			icon        = EXCLUDED.icon,
			is_active   = EXCLUDED.is_active,
			triggers    = EXCLUDED.triggers,
			condition   = EXCLUDED.condition,
			version     = badges.version + 1,
			updated_at  = now()
		WHERE (badges.title, badges.description, badges.category, badges.rarity, badges.color,
		       badges.icon, badges.is_active, badges.triggers, badges.condition)
		  IS DISTINCT FROM
		      (EXCLUDED.title, EXCLUDED.description, EXCLUDED.category, EXCLUDED.rarity, EXCLUDED.color,
		       EXCLUDED.icon, EXCLUDED.is_active, EXCLUDED.triggers, EXCLUDED.condition)
	`

	batch := &pgx.Batch{}
	for _, d := range defs {
		batch.Queue(query,
			d.ID,
			d.Title,
			d.Description,
			string(d.Category),
			string(d.Rarity),
			d.Color,
			d.Icon,
			d.Active,
			triggerStrings(d.Triggers),
			[]byte(d.RawCondition),
		)
	}

	err := pgx.BeginFunc(ctx, c.db, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("failed to upsert badges: %w", err)
	}

	c.logger.Info("badge catalog upserted", slog.Int("count", len(defs)))
	return nil
}

func scanDefinitions(rows pgx.Rows) ([]*badge.Definition, error) {
	// Ensure rows are closed to prevent connection leaks in the pool.
	defer rows.Close()

	defs := make([]*badge.Definition, 0)
	for rows.Next() {
		var (
			d        badge.Definition
			category string
			rarity   string
			triggers []string
			raw      []byte
		)
		if err := rows.Scan(
			&d.ID,
			&d.Title,
			&d.Description,
			&category,
			&rarity,
			&d.Color,
			&d.Icon,
			&d.Active,
			&triggers,
			&raw,
		); err != nil {
			return nil, fmt.Errorf("failed to scan badge row: %w", err)
		}

		d.Category = badge.Category(category)
		d.Rarity = badge.Rarity(rarity)
		d.RawCondition = raw
		d.Triggers = make([]badge.EventType, len(triggers))
		for i, t := range triggers {
			d.Triggers[i] = badge.EventType(t)
		}
		defs = append(defs, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating badge rows: %w", err)
	}
	return defs, nil
}

func triggerStrings(ts []badge.EventType) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = string(t)
	}
	return out
}
