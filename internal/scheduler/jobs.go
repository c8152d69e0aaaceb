package scheduler

import (
	"context"

	"github.com/salonware/booking-assistant/internal/appointments"
	"github.com/salonware/booking-assistant/internal/chatwoot"
	"github.com/salonware/booking-assistant/internal/scheduling"
)

// JobReport is one pass's tally. Processed counts appointments fully
// handled; Errors counts appointments skipped or half-handled.
type JobReport struct {
	Processed int
	Errors    int
}

// sendConfirmations asks customers to confirm appointments starting in
// the hour that ends ConfirmationLead from now. Rows already carrying
// confirmation_sent_at never come back from the query, so re-running a
// pass sends nothing twice.
func (s *Scheduler) sendConfirmations(ctx context.Context) JobReport {
	var report JobReport
	now := s.now().In(s.cfg.Timezone)

	due, err := s.store.DueForConfirmation(ctx, now.Add(s.cfg.ConfirmationLead-dueWindow), now.Add(s.cfg.ConfirmationLead))
	if err != nil {
		s.logger.Error("confirmation query failed", "error", err)
		report.Errors++
		return report
	}
	for _, appt := range due {
		if ctx.Err() != nil {
			break
		}
		tpl := chatwoot.Template{
			Name:     s.cfg.ConfirmationTemplate,
			Language: templateLanguage,
			Category: templateCategory,
			BodyParams: []string{
				appt.CustomerFirstName,
				scheduling.FriendlyTime(appt.StartTime, s.cfg.Timezone),
				appt.StylistName,
			},
		}
		if err := s.gateway.SendTemplateToPhone(ctx, appt.CustomerPhone, tpl); err != nil {
			s.logger.Error("confirmation not sent", "appointment_id", appt.ID, "error", err)
			report.Errors++
			continue
		}
		if err := s.store.MarkConfirmationSent(ctx, appt.ID, s.now()); err != nil {
			// The template went out; an unmarked row would be sent
			// again by a manual re-run.
			s.logger.Error("confirmation mark failed", "appointment_id", appt.ID, "error", err)
			report.Errors++
			continue
		}
		if s.notify != nil {
			s.notify.ConfirmationSent(ctx, appt.ID, appt.CustomerPhone)
		}
		report.Processed++
	}
	return report
}

// autoCancel releases slots held by appointments whose confirmation
// request aged out without a reply. Cancelling first and notifying
// after means a failed notice can never keep the slot blocked.
func (s *Scheduler) autoCancel(ctx context.Context) JobReport {
	var report JobReport
	now := s.now().In(s.cfg.Timezone)

	due, err := s.store.DueForAutoCancel(ctx, now, now.Add(-s.cfg.AutoCancelWindow), now.Add(s.cfg.AutoCancelWindow))
	if err != nil {
		s.logger.Error("auto-cancel query failed", "error", err)
		report.Errors++
		return report
	}
	for _, appt := range due {
		if ctx.Err() != nil {
			break
		}
		if err := s.store.UpdateStatus(ctx, appt.ID, appointments.StatusCancelled, s.now()); err != nil {
			s.logger.Error("auto-cancel failed", "appointment_id", appt.ID, "error", err)
			report.Errors++
			continue
		}
		s.dropCalendarEvent(ctx, appt)

		tpl := chatwoot.Template{
			Name:     s.cfg.CancellationTemplate,
			Language: templateLanguage,
			Category: templateCategory,
			BodyParams: []string{
				appt.CustomerFirstName,
				scheduling.FriendlyTime(appt.StartTime, s.cfg.Timezone),
			},
		}
		if err := s.gateway.SendTemplateToPhone(ctx, appt.CustomerPhone, tpl); err != nil {
			// The appointment is already cancelled; the notice failing
			// must not undo that.
			s.logger.Error("cancellation notice not sent", "appointment_id", appt.ID, "error", err)
			report.Errors++
		}
		if s.notify != nil {
			s.notify.BookingCancelled(ctx, appt.ID, "sin confirmación de la clienta")
		}
		report.Processed++
	}
	return report
}

// sendReminders nudges confirmed customers in the hour that ends
// ReminderLead from now. reminder_sent_at gates repeats the same way
// confirmation_sent_at does.
func (s *Scheduler) sendReminders(ctx context.Context) JobReport {
	var report JobReport
	now := s.now().In(s.cfg.Timezone)

	due, err := s.store.DueForReminder(ctx, now.Add(s.cfg.ReminderLead-dueWindow), now.Add(s.cfg.ReminderLead))
	if err != nil {
		s.logger.Error("reminder query failed", "error", err)
		report.Errors++
		return report
	}
	for _, appt := range due {
		if ctx.Err() != nil {
			break
		}
		tpl := chatwoot.Template{
			Name:     s.cfg.ReminderTemplate,
			Language: templateLanguage,
			Category: templateCategory,
			BodyParams: []string{
				appt.CustomerFirstName,
				scheduling.FriendlyTime(appt.StartTime, s.cfg.Timezone),
				appt.StylistName,
			},
		}
		if err := s.gateway.SendTemplateToPhone(ctx, appt.CustomerPhone, tpl); err != nil {
			s.logger.Error("reminder not sent", "appointment_id", appt.ID, "error", err)
			report.Errors++
			continue
		}
		if err := s.store.MarkReminderSent(ctx, appt.ID, s.now()); err != nil {
			s.logger.Error("reminder mark failed", "appointment_id", appt.ID, "error", err)
			report.Errors++
			continue
		}
		report.Processed++
	}
	return report
}

// dropCalendarEvent removes the mirror of a cancelled appointment. Best
// effort: the appointment row is the source of truth and a leftover
// calendar block only costs the stylist a gap.
func (s *Scheduler) dropCalendarEvent(ctx context.Context, appt appointments.DueAppointment) {
	if s.calendar == nil || s.stylists == nil || appt.CalendarEventID == "" {
		return
	}
	st, err := s.stylists.GetStylist(ctx, appt.StylistID)
	if err != nil {
		s.logger.Error("calendar owner lookup failed", "appointment_id", appt.ID, "stylist_id", appt.StylistID, "error", err)
		return
	}
	if st.CalendarID == "" {
		return
	}
	if err := s.calendar.DeleteEvent(ctx, st.CalendarID, appt.CalendarEventID); err != nil {
		s.logger.Error("calendar event not removed", "appointment_id", appt.ID, "event_id", appt.CalendarEventID, "error", err)
	}
}
