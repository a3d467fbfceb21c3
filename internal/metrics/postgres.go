package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/accolade/internal/badge"
	"github.com/rafaeljc/accolade/internal/condition"
)

var (
	_ Provider    = (*PostgresProvider)(nil)
	_ UserChecker = (*PostgresProvider)(nil)
)

// DefaultView is the relation the host application maintains with one row per
// user. Columns other than user_id become snapshot entries:
//   - integer columns are integer metrics, float columns float metrics
//   - numeric columns with scale 0 (SUM(bigint), COUNT casts) are integer
//     metrics, numerics with a fractional scale are float metrics
//   - boolean columns are profile flags
//   - timestamp/date columns are profile dates (NULL allowed)
//
// Column names are exposed in lowerCamelCase (posts_published -> postsPublished).
const DefaultView = "user_badge_metrics"

// PostgresProvider reads snapshots from a host-owned view.
type PostgresProvider struct {
	db   *pgxpool.Pool
	view string
}

// NewPostgresProvider creates a provider reading from view (DefaultView when empty).
func NewPostgresProvider(db *pgxpool.Pool, view string) *PostgresProvider {
	if db == nil {
		panic("metrics: database pool cannot be nil")
	}
	if view == "" {
		view = DefaultView
	}
	return &PostgresProvider{db: db, view: view}
}

// Snapshot loads the user's row. A user without a row yields badge.ErrNotFound.
func (p *PostgresProvider) Snapshot(ctx context.Context, userID string) (*condition.UserContextData, error) {
	query := fmt.Sprintf(`SELECT * FROM %s WHERE user_id = $1`, p.relation())

	rows, err := p.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to read metrics: %w", err)
		}
		return nil, fmt.Errorf("user %q: %w", userID, badge.ErrNotFound)
	}

	values, err := rows.Values()
	if err != nil {
		return nil, fmt.Errorf("failed to decode metrics row: %w", err)
	}

	data := condition.NewUserContextData(userID)
	for i, fd := range rows.FieldDescriptions() {
		if fd.Name == "user_id" {
			continue
		}
		if err := assign(data, lowerCamel(fd.Name), fd.DataTypeOID, values[i]); err != nil {
			return nil, err
		}
	}
	return data, rows.Err()
}

// UserExists reports whether the view holds a row for the user.
func (p *PostgresProvider) UserExists(ctx context.Context, userID string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE user_id = $1)`, p.relation())

	var exists bool
	if err := p.db.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return exists, nil
}

// relation quotes the view name, honouring an optional schema prefix.
func (p *PostgresProvider) relation() string {
	return pgx.Identifier(strings.Split(p.view, ".")).Sanitize()
}

func assign(data *condition.UserContextData, name string, oid uint32, v any) error {
	switch x := v.(type) {
	case nil:
		// Only dates are meaningful when NULL; other NULL columns are left out
		// so conditions referencing them fail as unknown.
		if isDateOID(oid) {
			data.Profile.Dates[name] = nil
		}
	case int16:
		data.Metrics[name] = condition.Int(int64(x))
	case int32:
		data.Metrics[name] = condition.Int(int64(x))
	case int64:
		data.Metrics[name] = condition.Int(x)
	case float32:
		data.Metrics[name] = condition.Float(float64(x))
	case float64:
		data.Metrics[name] = condition.Float(x)
	case pgtype.Numeric:
		if x.Exp >= 0 && !x.NaN && x.InfinityModifier == pgtype.Finite {
			n, err := x.Int64Value()
			if err != nil {
				return fmt.Errorf("metric %q: %w", name, err)
			}
			data.Metrics[name] = condition.Int(n.Int64)
			break
		}
		f, err := x.Float64Value()
		if err != nil {
			return fmt.Errorf("metric %q: %w", name, err)
		}
		data.Metrics[name] = condition.Float(f.Float64)
	case bool:
		data.Profile.Flags[name] = x
	case time.Time:
		t := x
		data.Profile.Dates[name] = &t
	default:
		// Other column types (text, json, ...) are not part of the snapshot.
	}
	return nil
}

func isDateOID(oid uint32) bool {
	return oid == pgtype.TimestamptzOID || oid == pgtype.TimestampOID || oid == pgtype.DateOID
}

// lowerCamel converts snake_case to lowerCamelCase.
func lowerCamel(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	b.Grow(len(s))
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 || b.Len() == 0 {
			b.WriteString(p)
			continue
		}
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}
