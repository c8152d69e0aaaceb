package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the pool subset the repository needs; satisfied by
// *pgxpool.Pool and by pgxmock in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointments in the relational database.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository initializes a repo backed by a pgx pool.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

// Create commits a booking transactionally. A per-stylist advisory
// lock serializes concurrent bookings so the overlap check and the
// insert are atomic even though no existing row may cover the interval.
func (r *PostgresRepository) Create(ctx context.Context, req *CreateRequest) (*Appointment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointments: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, req.StylistID); err != nil {
		return nil, fmt.Errorf("appointments: stylist lock: %w", err)
	}

	end := req.StartTime.Add(time.Duration(req.DurationMinutes) * time.Minute)
	var taken bool
	overlapQuery := `
		SELECT EXISTS(
			SELECT 1 FROM appointments
			WHERE stylist_id = $1
			  AND status IN ('PENDING', 'CONFIRMED')
			  AND start_time < $3
			  AND start_time + make_interval(mins => duration_minutes) > $2
		)
	`
	if err := tx.QueryRow(ctx, overlapQuery, req.StylistID, req.StartTime, end).Scan(&taken); err != nil {
		return nil, fmt.Errorf("appointments: overlap check: %w", err)
	}
	if taken {
		return nil, ErrSlotTaken
	}

	id := uuid.New()
	insert := `
		INSERT INTO appointments (id, customer_id, stylist_id, service_ids, start_time, duration_minutes, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'PENDING')
		RETURNING created_at
	`
	var createdAt time.Time
	if err := tx.QueryRow(ctx, insert,
		id,
		req.CustomerID,
		req.StylistID,
		req.ServiceIDs,
		req.StartTime,
		req.DurationMinutes,
	).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("appointments: insert failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointments: commit: %w", err)
	}

	return &Appointment{
		ID:              id.String(),
		CustomerID:      req.CustomerID,
		StylistID:       req.StylistID,
		ServiceIDs:      req.ServiceIDs,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Status:          StatusPending,
		CreatedAt:       createdAt,
	}, nil
}

// GetByID fetches one appointment.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	query := `
		SELECT id, customer_id, stylist_id, service_ids, start_time, duration_minutes,
		       status, confirmation_sent_at, reminder_sent_at, cancelled_at,
		       COALESCE(calendar_event_id, ''), created_at
		FROM appointments
		WHERE id = $1
	`
	var a Appointment
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.CustomerID,
		&a.StylistID,
		&a.ServiceIDs,
		&a.StartTime,
		&a.DurationMinutes,
		&a.Status,
		&a.ConfirmationSentAt,
		&a.ReminderSentAt,
		&a.CancelledAt,
		&a.CalendarEventID,
		&a.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("appointments: select failed: %w", err)
	}
	return &a, nil
}

// SetCalendarEventID records the calendar event backing an appointment.
func (r *PostgresRepository) SetCalendarEventID(ctx context.Context, id, eventID string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE appointments SET calendar_event_id = $2 WHERE id = $1`, id, eventID)
	if err != nil {
		return fmt.Errorf("appointments: set calendar event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

const dueSelect = `
	SELECT a.id, a.customer_id, a.stylist_id, a.service_ids, a.start_time, a.duration_minutes,
	       a.status, a.confirmation_sent_at, a.reminder_sent_at, a.cancelled_at,
	       COALESCE(a.calendar_event_id, ''), a.created_at,
	       c.phone, c.first_name, s.name
	FROM appointments a
	JOIN customers c ON c.id = a.customer_id
	JOIN stylists s ON s.id = a.stylist_id
`

// DueForConfirmation lists PENDING appointments starting inside
// [from, to] that have not been sent a confirmation yet.
func (r *PostgresRepository) DueForConfirmation(ctx context.Context, from, to time.Time) ([]DueAppointment, error) {
	query := dueSelect + `
	WHERE a.status = 'PENDING'
	  AND a.start_time >= $1 AND a.start_time <= $2
	  AND a.confirmation_sent_at IS NULL
	ORDER BY a.start_time
	`
	return r.queryDue(ctx, query, from, to)
}

// DueForAutoCancel lists PENDING appointments starting before
// startBefore whose confirmation went out before sentBefore with no
// reply recorded since.
func (r *PostgresRepository) DueForAutoCancel(ctx context.Context, now, sentBefore, startBefore time.Time) ([]DueAppointment, error) {
	query := dueSelect + `
	WHERE a.status = 'PENDING'
	  AND a.start_time >= $1 AND a.start_time <= $3
	  AND a.confirmation_sent_at IS NOT NULL
	  AND a.confirmation_sent_at <= $2
	ORDER BY a.start_time
	`
	return r.queryDue(ctx, query, now, sentBefore, startBefore)
}

// DueForReminder lists CONFIRMED appointments starting inside
// [from, to] with no reminder recorded yet.
func (r *PostgresRepository) DueForReminder(ctx context.Context, from, to time.Time) ([]DueAppointment, error) {
	query := dueSelect + `
	WHERE a.status = 'CONFIRMED'
	  AND a.start_time >= $1 AND a.start_time <= $2
	  AND a.reminder_sent_at IS NULL
	ORDER BY a.start_time
	`
	return r.queryDue(ctx, query, from, to)
}

// PendingAwaitingReply finds the next PENDING appointment for a phone
// whose confirmation has been sent, i.e. the one a "sí"/"no" reply
// refers to.
func (r *PostgresRepository) PendingAwaitingReply(ctx context.Context, phone string) (*DueAppointment, error) {
	query := dueSelect + `
	WHERE c.phone = $1
	  AND a.status = 'PENDING'
	  AND a.confirmation_sent_at IS NOT NULL
	ORDER BY a.start_time
	LIMIT 1
	`
	due, err := r.queryDue(ctx, query, phone)
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, ErrAppointmentNotFound
	}
	return &due[0], nil
}

// MarkConfirmationSent stamps confirmation_sent_at.
func (r *PostgresRepository) MarkConfirmationSent(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE appointments SET confirmation_sent_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("appointments: mark confirmation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// MarkReminderSent stamps reminder_sent_at.
func (r *PostgresRepository) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE appointments SET reminder_sent_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("appointments: mark reminder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// UpdateStatus moves an appointment to a new status, stamping
// cancelled_at when the target status is CANCELLED.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id, status string, at time.Time) error {
	query := `
		UPDATE appointments
		SET status = $2,
		    cancelled_at = CASE WHEN $2 = 'CANCELLED' THEN $3 ELSE cancelled_at END
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, status, at)
	if err != nil {
		return fmt.Errorf("appointments: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PostgresRepository) queryDue(ctx context.Context, query string, args ...any) ([]DueAppointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: due query: %w", err)
	}
	defer rows.Close()

	var out []DueAppointment
	for rows.Next() {
		var d DueAppointment
		if err := rows.Scan(
			&d.ID,
			&d.CustomerID,
			&d.StylistID,
			&d.ServiceIDs,
			&d.StartTime,
			&d.DurationMinutes,
			&d.Status,
			&d.ConfirmationSentAt,
			&d.ReminderSentAt,
			&d.CancelledAt,
			&d.CalendarEventID,
			&d.CreatedAt,
			&d.CustomerPhone,
			&d.CustomerFirstName,
			&d.StylistName,
		); err != nil {
			return nil, fmt.Errorf("appointments: scan due row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: due query: %w", err)
	}
	return out, nil
}

var _ Repository = (*PostgresRepository)(nil)
