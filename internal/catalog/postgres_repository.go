package catalog

import (
	"context"
	"fmt"

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

// PostgresRepository stores the catalog in the relational database.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository initializes a repo backed by a pgx pool.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("catalog: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

// ListActiveServices returns active services ordered by name.
func (r *PostgresRepository) ListActiveServices(ctx context.Context) ([]Service, error) {
	query := `
		SELECT id, name, duration_minutes, category, active
		FROM services
		WHERE active = TRUE
		ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("catalog: list services: %w", err)
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.Category, &s.Active); err != nil {
			return nil, fmt.Errorf("catalog: scan service: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list services: %w", err)
	}
	return out, nil
}

// GetService returns one service by id.
func (r *PostgresRepository) GetService(ctx context.Context, id string) (*Service, error) {
	query := `
		SELECT id, name, duration_minutes, category, active
		FROM services
		WHERE id = $1
	`
	var s Service
	if err := r.pool.QueryRow(ctx, query, id).Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.Category, &s.Active); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("catalog: select service: %w", err)
	}
	return &s, nil
}

// ListActiveStylists returns active stylists covering a category; an
// empty category returns all active stylists.
func (r *PostgresRepository) ListActiveStylists(ctx context.Context, category string) ([]Stylist, error) {
	query := `
		SELECT id, name, categories, calendar_id, active
		FROM stylists
		WHERE active = TRUE AND ($1 = '' OR $1 = ANY(categories))
		ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("catalog: list stylists: %w", err)
	}
	defer rows.Close()

	var out []Stylist
	for rows.Next() {
		var st Stylist
		if err := rows.Scan(&st.ID, &st.Name, &st.Categories, &st.CalendarID, &st.Active); err != nil {
			return nil, fmt.Errorf("catalog: scan stylist: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list stylists: %w", err)
	}
	return out, nil
}

// GetStylist returns one stylist by id.
func (r *PostgresRepository) GetStylist(ctx context.Context, id string) (*Stylist, error) {
	query := `
		SELECT id, name, categories, calendar_id, active
		FROM stylists
		WHERE id = $1
	`
	var st Stylist
	if err := r.pool.QueryRow(ctx, query, id).Scan(&st.ID, &st.Name, &st.Categories, &st.CalendarID, &st.Active); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrStylistNotFound
		}
		return nil, fmt.Errorf("catalog: select stylist: %w", err)
	}
	return &st, nil
}

var _ Repository = (*PostgresRepository)(nil)
var _ Repository = (*InMemoryRepository)(nil)
