package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/salonware/booking-assistant/internal/appointments"
	"github.com/salonware/booking-assistant/internal/catalog"
	"github.com/salonware/booking-assistant/pkg/logging"
)

type lifecycleCalendar interface {
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

type lifecycleStylists interface {
	GetStylist(ctx context.Context, id string) (*catalog.Stylist, error)
}

type lifecycleNotifier interface {
	BookingConfirmed(ctx context.Context, appointmentID, customerName string)
	BookingCancelled(ctx context.Context, appointmentID, reason string)
}

// AppointmentLifecycle resolves "sí"/"no" replies to the 48h
// confirmation template against the customer's pending appointment.
// Calendar and notifier are optional; status updates are not.
type AppointmentLifecycle struct {
	appointments appointments.Repository
	stylists     lifecycleStylists
	calendar     lifecycleCalendar
	notifier     lifecycleNotifier
	logger       *logging.Logger
	now          func() time.Time
}

func NewAppointmentLifecycle(repo appointments.Repository, stylists lifecycleStylists, cal lifecycleCalendar, notifier lifecycleNotifier, logger *logging.Logger) *AppointmentLifecycle {
	if repo == nil {
		panic("conversation: appointment repository is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentLifecycle{
		appointments: repo,
		stylists:     stylists,
		calendar:     cal,
		notifier:     notifier,
		logger:       logger.WithComponent("conversation.lifecycle"),
		now:          time.Now,
	}
}

// Confirm marks the customer's awaiting appointment CONFIRMED. It
// returns nil without error when no appointment is awaiting a reply,
// so the caller can answer accordingly.
func (l *AppointmentLifecycle) Confirm(ctx context.Context, phone string) (*appointments.DueAppointment, error) {
	due, err := l.pending(ctx, phone)
	if due == nil || err != nil {
		return nil, err
	}
	if err := l.appointments.UpdateStatus(ctx, due.ID, appointments.StatusConfirmed, l.now()); err != nil {
		return nil, fmt.Errorf("conversation: confirm appointment %s: %w", due.ID, err)
	}
	l.logger.Info("appointment confirmed by customer", "appointment_id", due.ID)
	if l.notifier != nil {
		l.notifier.BookingConfirmed(ctx, due.ID, due.CustomerFirstName)
	}
	return due, nil
}

// Decline cancels the awaiting appointment and removes its calendar
// event. Calendar failures are logged, not surfaced: the cancellation
// itself must not depend on Google being up.
func (l *AppointmentLifecycle) Decline(ctx context.Context, phone string) (*appointments.DueAppointment, error) {
	due, err := l.pending(ctx, phone)
	if due == nil || err != nil {
		return nil, err
	}
	if err := l.appointments.UpdateStatus(ctx, due.ID, appointments.StatusCancelled, l.now()); err != nil {
		return nil, fmt.Errorf("conversation: cancel appointment %s: %w", due.ID, err)
	}
	l.logger.Info("appointment declined by customer", "appointment_id", due.ID)
	l.removeCalendarEvent(ctx, due)
	if l.notifier != nil {
		l.notifier.BookingCancelled(ctx, due.ID, "la clienta rechazó la confirmación de 48h")
	}
	return due, nil
}

func (l *AppointmentLifecycle) pending(ctx context.Context, phone string) (*appointments.DueAppointment, error) {
	due, err := l.appointments.PendingAwaitingReply(ctx, phone)
	if errors.Is(err, appointments.ErrAppointmentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: lookup pending appointment: %w", err)
	}
	return due, nil
}

func (l *AppointmentLifecycle) removeCalendarEvent(ctx context.Context, due *appointments.DueAppointment) {
	if l.calendar == nil || l.stylists == nil || due.CalendarEventID == "" {
		return
	}
	stylist, err := l.stylists.GetStylist(ctx, due.StylistID)
	if err != nil {
		l.logger.Warn("stylist lookup failed, calendar event left in place",
			"appointment_id", due.ID, "stylist_id", due.StylistID, "error", err)
		return
	}
	if stylist.CalendarID == "" {
		return
	}
	if err := l.calendar.DeleteEvent(ctx, stylist.CalendarID, due.CalendarEventID); err != nil {
		l.logger.Warn("calendar event not removed",
			"appointment_id", due.ID, "event_id", due.CalendarEventID, "error", err)
	}
}
