package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository defines the interface for notification storage
type Repository interface {
	Create(ctx context.Context, n *Notification) error
}

// PgxPool is the pool subset the repository needs; satisfied by
// *pgxpool.Pool and by pgxmock in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores notifications in the relational database.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository initializes a repo backed by a pgx pool.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("notify: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

// Create inserts a notification row.
func (r *PostgresRepository) Create(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	query := `
		INSERT INTO notifications (id, type, title, message, entity_type, entity_id)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
	`
	if _, err := r.pool.Exec(ctx, query, n.ID, n.Type, n.Title, n.Message, n.EntityType, n.EntityID); err != nil {
		return fmt.Errorf("notify: insert notification: %w", err)
	}
	return nil
}

// InMemoryRepository is a stub implementation collecting rows in memory.
type InMemoryRepository struct {
	mu   sync.Mutex
	rows []Notification
}

// NewInMemoryRepository creates an in-memory notification store.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Create appends a notification.
func (r *InMemoryRepository) Create(ctx context.Context, n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	r.rows = append(r.rows, *n)
	return nil
}

// All returns a copy of the collected notifications.
func (r *InMemoryRepository) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.rows))
	copy(out, r.rows)
	return out
}

var _ Repository = (*PostgresRepository)(nil)
var _ Repository = (*InMemoryRepository)(nil)
