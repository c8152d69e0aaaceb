package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/salonware/booking-assistant/pkg/logging"
)

// Service fans out operational notifications: every event becomes an
// admin panel row, and escalations additionally email the configured
// operators.
type Service struct {
	repo       Repository
	email      EmailSender
	recipients []string
	logger     *logging.Logger
}

// NewService creates a notification service. Email may be nil when
// operator alerts are disabled.
func NewService(repo Repository, email EmailSender, recipients []string, logger *logging.Logger) *Service {
	if repo == nil {
		panic("notify: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:       repo,
		email:      email,
		recipients: recipients,
		logger:     logger,
	}
}

// BookingCreated records a new appointment for the admin panel.
func (s *Service) BookingCreated(ctx context.Context, appointmentID, customerName, stylistName string, start time.Time, services []string) {
	s.create(ctx, &Notification{
		Type:  TypeBookingCreated,
		Title: "Nueva cita",
		Message: fmt.Sprintf("%s con %s el %s (%s)",
			customerName, stylistName, start.Format("02/01/2006 15:04"), strings.Join(services, ", ")),
		EntityType: "appointment",
		EntityID:   appointmentID,
	})
}

// BookingCancelled records a cancellation (customer decline or the
// auto-cancel sweep).
func (s *Service) BookingCancelled(ctx context.Context, appointmentID, reason string) {
	s.create(ctx, &Notification{
		Type:       TypeBookingCancelled,
		Title:      "Cita cancelada",
		Message:    reason,
		EntityType: "appointment",
		EntityID:   appointmentID,
	})
}

// BookingConfirmed records a customer confirming their appointment.
func (s *Service) BookingConfirmed(ctx context.Context, appointmentID, customerName string) {
	s.create(ctx, &Notification{
		Type:       TypeBookingConfirmed,
		Title:      "Cita confirmada",
		Message:    fmt.Sprintf("%s ha confirmado su cita", customerName),
		EntityType: "appointment",
		EntityID:   appointmentID,
	})
}

// ConfirmationSent records that the 48h confirmation went out.
func (s *Service) ConfirmationSent(ctx context.Context, appointmentID, phone string) {
	s.create(ctx, &Notification{
		Type:       TypeConfirmationSent,
		Title:      "Confirmación enviada",
		Message:    fmt.Sprintf("Solicitud de confirmación enviada a %s", phone),
		EntityType: "appointment",
		EntityID:   appointmentID,
	})
}

// Escalation records a hand-off to staff and emails the operators.
func (s *Service) Escalation(ctx context.Context, conversationID, phone, reason string) {
	s.create(ctx, &Notification{
		Type:       TypeEscalation,
		Title:      "Conversación escalada",
		Message:    fmt.Sprintf("Conversación %s (%s): %s", conversationID, phone, reason),
		EntityType: "conversation",
		EntityID:   conversationID,
	})

	if s.email == nil || len(s.recipients) == 0 {
		return
	}
	subject := fmt.Sprintf("⚠️ Conversación escalada (%s)", phone)
	body := fmt.Sprintf(`Una conversación ha pasado a atención manual.

Conversación: %s
Teléfono: %s
Motivo: %s

Revisa Chatwoot para continuar la conversación.`, conversationID, phone, reason)

	for _, to := range s.recipients {
		if err := s.email.Send(ctx, EmailMessage{To: to, Subject: subject, Body: body}); err != nil {
			s.logger.Error("notify: escalation email failed", "error", err, "to", to)
		}
	}
}

// create inserts the admin row. Notification writes never fail the
// calling flow; a lost row is logged and dropped.
func (s *Service) create(ctx context.Context, n *Notification) {
	if err := s.repo.Create(ctx, n); err != nil {
		s.logger.Error("notify: create notification failed", "error", err, "type", n.Type)
	}
}
