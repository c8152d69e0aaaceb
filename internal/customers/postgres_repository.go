package customers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
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

// PostgresRepository stores customers in the relational database.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository initializes a repo backed by a pgx pool.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("customers: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

// GetByID fetches a customer by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Customer, error) {
	query := `
		SELECT id, phone, first_name, last_name, created_at
		FROM customers
		WHERE id = $1
	`
	return scanCustomer(r.pool.QueryRow(ctx, query, id))
}

// GetByPhone fetches a customer by E.164 phone.
func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*Customer, error) {
	query := `
		SELECT id, phone, first_name, last_name, created_at
		FROM customers
		WHERE phone = $1
	`
	return scanCustomer(r.pool.QueryRow(ctx, query, phone))
}

// Upsert inserts the customer for a phone or refreshes its name fields.
// Empty name parts never clobber stored values.
func (r *PostgresRepository) Upsert(ctx context.Context, req *UpsertRequest) (*Customer, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	query := `
		INSERT INTO customers (id, phone, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (phone) DO UPDATE SET
			first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), customers.first_name),
			last_name  = COALESCE(NULLIF(EXCLUDED.last_name, ''), customers.last_name)
		RETURNING id, phone, first_name, last_name, created_at
	`
	c, err := scanCustomer(r.pool.QueryRow(ctx, query, id, req.Phone, req.FirstName, req.LastName))
	if err != nil {
		return nil, fmt.Errorf("customers: upsert failed: %w", err)
	}
	return c, nil
}

// UpdateName overwrites the name fields for an existing customer.
func (r *PostgresRepository) UpdateName(ctx context.Context, id, firstName, lastName string) (*Customer, error) {
	query := `
		UPDATE customers
		SET first_name = $2, last_name = $3
		WHERE id = $1
		RETURNING id, phone, first_name, last_name, created_at
	`
	return scanCustomer(r.pool.QueryRow(ctx, query, id, firstName, lastName))
}

func scanCustomer(row pgx.Row) (*Customer, error) {
	var (
		c         Customer
		createdAt time.Time
	)
	if err := row.Scan(&c.ID, &c.Phone, &c.FirstName, &c.LastName, &createdAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("customers: select failed: %w", err)
	}
	c.CreatedAt = createdAt
	return &c, nil
}

var _ Repository = (*PostgresRepository)(nil)
var _ Repository = (*InMemoryRepository)(nil)
