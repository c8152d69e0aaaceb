package salon

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the pool subset the repository needs; satisfied by
// *pgxpool.Pool and by pgxmock in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores salon configuration in the relational database.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository initializes a repo backed by a pgx pool.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("salon: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

// WeeklyHours returns the configured weekly schedule ordered by weekday.
func (r *PostgresRepository) WeeklyHours(ctx context.Context) ([]BusinessHours, error) {
	query := `
		SELECT day_of_week, start_time, end_time, closed
		FROM business_hours
		ORDER BY day_of_week
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("salon: list hours: %w", err)
	}
	defer rows.Close()

	var out []BusinessHours
	for rows.Next() {
		var (
			h   BusinessHours
			dow int
		)
		if err := rows.Scan(&dow, &h.Start, &h.End, &h.Closed); err != nil {
			return nil, fmt.Errorf("salon: scan hours: %w", err)
		}
		h.DayOfWeek = time.Weekday(dow)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("salon: list hours: %w", err)
	}
	return out, nil
}

// HoursFor returns the window for one weekday; missing rows count as closed.
func (r *PostgresRepository) HoursFor(ctx context.Context, day time.Weekday) (*BusinessHours, error) {
	query := `
		SELECT day_of_week, start_time, end_time, closed
		FROM business_hours
		WHERE day_of_week = $1
	`
	var (
		h   BusinessHours
		dow int
	)
	if err := r.pool.QueryRow(ctx, query, int(day)).Scan(&dow, &h.Start, &h.End, &h.Closed); err != nil {
		if err == pgx.ErrNoRows {
			return &BusinessHours{DayOfWeek: day, Closed: true}, nil
		}
		return nil, fmt.Errorf("salon: select hours: %w", err)
	}
	h.DayOfWeek = time.Weekday(dow)
	return &h, nil
}

// IsHoliday reports whether the calendar day is a configured closure.
func (r *PostgresRepository) IsHoliday(ctx context.Context, day time.Time) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM holidays WHERE day = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, day.Format("2006-01-02")).Scan(&exists); err != nil {
		return false, fmt.Errorf("salon: holiday lookup: %w", err)
	}
	return exists, nil
}

// Holidays lists closures inside [from, to].
func (r *PostgresRepository) Holidays(ctx context.Context, from, to time.Time) ([]Holiday, error) {
	query := `
		SELECT day, name
		FROM holidays
		WHERE day BETWEEN $1 AND $2
		ORDER BY day
	`
	rows, err := r.pool.Query(ctx, query, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("salon: list holidays: %w", err)
	}
	defer rows.Close()

	var out []Holiday
	for rows.Next() {
		var h Holiday
		if err := rows.Scan(&h.Day, &h.Name); err != nil {
			return nil, fmt.Errorf("salon: scan holiday: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("salon: list holidays: %w", err)
	}
	return out, nil
}

// Policy returns one policy value by key.
func (r *PostgresRepository) Policy(ctx context.Context, key string) (string, error) {
	query := `SELECT value FROM policies WHERE key = $1`
	var value string
	if err := r.pool.QueryRow(ctx, query, key).Scan(&value); err != nil {
		if err == pgx.ErrNoRows {
			return "", ErrPolicyNotFound
		}
		return "", fmt.Errorf("salon: select policy: %w", err)
	}
	return value, nil
}

// PoliciesByPrefix returns every policy whose key starts with prefix.
func (r *PostgresRepository) PoliciesByPrefix(ctx context.Context, prefix string) ([]Policy, error) {
	query := `
		SELECT key, value
		FROM policies
		WHERE key LIKE $1 || '%'
		ORDER BY key
	`
	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("salon: list policies: %w", err)
	}
	defer rows.Close()

	var out []Policy
	for rows.Next() {
		var p Policy
		if err := rows.Scan(&p.Key, &p.Value); err != nil {
			return nil, fmt.Errorf("salon: scan policy: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("salon: list policies: %w", err)
	}
	return out, nil
}

var _ Repository = (*PostgresRepository)(nil)
var _ Repository = (*InMemoryRepository)(nil)
