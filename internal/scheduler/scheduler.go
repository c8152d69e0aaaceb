// Package scheduler runs the periodic appointment jobs: 48-hour
// confirmation requests, the auto-cancellation sweep for unconfirmed
// appointments, and 2-hour reminders. Jobs are gated so that restarts
// and overlapping ticks never run the same pass twice.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/salonware/booking-assistant/internal/appointments"
	"github.com/salonware/booking-assistant/internal/catalog"
	"github.com/salonware/booking-assistant/internal/chatwoot"
	"github.com/salonware/booking-assistant/pkg/logging"
)

var schedulerTracer = otel.Tracer("salon.internal.scheduler")

// Job names as reported to logs, metrics and the health file.
const (
	JobConfirmations = "confirmations"
	JobAutoCancel    = "auto_cancel"
	JobReminders     = "reminders"
)

const (
	defaultDailyHour        = 10
	defaultCheckInterval    = time.Minute
	defaultConfirmationLead = 48 * time.Hour
	defaultAutoCancelWindow = 24 * time.Hour
	defaultReminderLead     = 2 * time.Hour

	defaultConfirmationTemplate = "appointment_confirmation_48h"
	defaultCancellationTemplate = "appointment_auto_cancelled"
	defaultReminderTemplate     = "appointment_reminder_2h"

	templateLanguage = "es"
	templateCategory = "UTILITY"

	// Due queries cover the hour that ends at the configured lead:
	// confirmations catch starts in [lead-1h, lead] ahead, reminders
	// likewise.
	dueWindow = time.Hour
)

// Config carries the schedule and the template names. Zero values fall
// back to the production defaults.
type Config struct {
	// Timezone anchors the daily 10:00 run and the friendly dates
	// rendered into templates.
	Timezone *time.Location

	// DailyHour is the local hour at which confirmations and the
	// auto-cancel sweep run.
	DailyHour int

	// CheckInterval is how often the loop wakes to look at the clock.
	CheckInterval time.Duration

	// ConfirmationLead is how far ahead of the appointment the
	// confirmation template goes out. The query window is the hour
	// ending at the lead, so a daily run never asks twice.
	ConfirmationLead time.Duration

	// AutoCancelWindow bounds both sides of the sweep: appointments
	// starting within the window whose confirmation went out more than
	// the window ago without a reply.
	AutoCancelWindow time.Duration

	// ReminderLead is how far ahead the reminder goes out; the hourly
	// query covers the hour ending at the lead.
	ReminderLead time.Duration

	ConfirmationTemplate string
	CancellationTemplate string
	ReminderTemplate     string
}

func (c Config) withDefaults() Config {
	if c.Timezone == nil {
		c.Timezone = time.Local
	}
	if c.DailyHour == 0 {
		c.DailyHour = defaultDailyHour
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = defaultCheckInterval
	}
	if c.ConfirmationLead <= 0 {
		c.ConfirmationLead = defaultConfirmationLead
	}
	if c.AutoCancelWindow <= 0 {
		c.AutoCancelWindow = defaultAutoCancelWindow
	}
	if c.ReminderLead <= 0 {
		c.ReminderLead = defaultReminderLead
	}
	if c.ConfirmationTemplate == "" {
		c.ConfirmationTemplate = defaultConfirmationTemplate
	}
	if c.CancellationTemplate == "" {
		c.CancellationTemplate = defaultCancellationTemplate
	}
	if c.ReminderTemplate == "" {
		c.ReminderTemplate = defaultReminderTemplate
	}
	return c
}

type appointmentStore interface {
	DueForConfirmation(ctx context.Context, from, to time.Time) ([]appointments.DueAppointment, error)
	DueForAutoCancel(ctx context.Context, now, sentBefore, startBefore time.Time) ([]appointments.DueAppointment, error)
	DueForReminder(ctx context.Context, from, to time.Time) ([]appointments.DueAppointment, error)
	MarkConfirmationSent(ctx context.Context, id string, at time.Time) error
	MarkReminderSent(ctx context.Context, id string, at time.Time) error
	UpdateStatus(ctx context.Context, id, status string, at time.Time) error
}

type templateSender interface {
	SendTemplateToPhone(ctx context.Context, phone string, tpl chatwoot.Template) error
}

type eventDeleter interface {
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

type stylistDirectory interface {
	GetStylist(ctx context.Context, id string) (*catalog.Stylist, error)
}

type alertService interface {
	ConfirmationSent(ctx context.Context, appointmentID, phone string)
	BookingCancelled(ctx context.Context, appointmentID, reason string)
}

// ObserveFunc reports a finished job run to metrics. status is
// StatusHealthy or StatusUnhealthy.
type ObserveFunc func(job, status string)

// Scheduler owns the periodic jobs. Construct with New and drive with
// Run; RunNow forces a full pass outside the schedule.
type Scheduler struct {
	store    appointmentStore
	gateway  templateSender
	calendar eventDeleter
	stylists stylistDirectory
	notify   alertService
	health   *HealthFile
	observe  ObserveFunc
	cfg      Config
	logger   *logging.Logger

	now func() time.Time

	mu            sync.Mutex
	lastDailyRun  string
	lastHourlyRun string
}

// Option adjusts optional collaborators on the Scheduler.
type Option func(*Scheduler)

// WithCalendar enables calendar-event cleanup on auto-cancel. The
// directory resolves which stylist calendar owns the event.
func WithCalendar(cal eventDeleter, stylists stylistDirectory) Option {
	return func(s *Scheduler) {
		s.calendar = cal
		s.stylists = stylists
	}
}

// WithNotifier records admin notifications for sent confirmations and
// auto-cancellations.
func WithNotifier(n alertService) Option {
	return func(s *Scheduler) { s.notify = n }
}

// WithHealthFile persists each job's outcome for external liveness
// checks.
func WithHealthFile(h *HealthFile) Option {
	return func(s *Scheduler) { s.health = h }
}

// WithObserver reports job outcomes to metrics.
func WithObserver(fn ObserveFunc) Option {
	return func(s *Scheduler) { s.observe = fn }
}

// New builds a Scheduler over the appointment store and the messaging
// gateway. Both are required; calendar cleanup, notifications and the
// health file are optional.
func New(store appointmentStore, gateway templateSender, cfg Config, logger *logging.Logger, opts ...Option) *Scheduler {
	if store == nil {
		panic("scheduler: nil appointment store")
	}
	if gateway == nil {
		panic("scheduler: nil template gateway")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Scheduler{
		store:   store,
		gateway: gateway,
		cfg:     cfg.withDefaults(),
		logger:  logger.WithComponent("scheduler"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run wakes every CheckInterval and executes whatever the clock says is
// due. The first check happens immediately so a restart inside the
// daily hour still runs that day's pass. Returns when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started",
		"daily_hour", s.cfg.DailyHour,
		"timezone", s.cfg.Timezone.String(),
		"check_interval", s.cfg.CheckInterval.String())

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs at most one daily pass per local date and one reminder pass
// per local hour. The date and hour gates, not the tick cadence, decide
// what runs, so a slow tick or a restart cannot double-send.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now().In(s.cfg.Timezone)
	day := now.Format("2006-01-02")
	hour := now.Format("2006-01-02T15")

	s.mu.Lock()
	runDaily := now.Hour() == s.cfg.DailyHour && s.lastDailyRun != day
	runHourly := s.lastHourlyRun != hour
	if runDaily {
		s.lastDailyRun = day
	}
	if runHourly {
		s.lastHourlyRun = hour
	}
	s.mu.Unlock()

	if runDaily {
		s.runJob(ctx, JobConfirmations, s.sendConfirmations)
		s.runJob(ctx, JobAutoCancel, s.autoCancel)
	}
	if runHourly {
		s.runJob(ctx, JobReminders, s.sendReminders)
	}
}

// RunNow executes every job immediately regardless of schedule. Meant
// for operators catching up after downtime; the sent-at columns keep
// the pass idempotent.
func (s *Scheduler) RunNow(ctx context.Context) {
	s.runJob(ctx, JobConfirmations, s.sendConfirmations)
	s.runJob(ctx, JobAutoCancel, s.autoCancel)
	s.runJob(ctx, JobReminders, s.sendReminders)
}

func (s *Scheduler) runJob(ctx context.Context, job string, fn func(context.Context) JobReport) {
	ctx, span := schedulerTracer.Start(ctx, "scheduler."+job)
	defer span.End()

	started := s.now()
	report := fn(ctx)
	elapsed := s.now().Sub(started)

	status := StatusHealthy
	if report.Errors > 0 {
		status = StatusUnhealthy
	}
	span.SetAttributes(
		attribute.String("salon.job", job),
		attribute.Int("salon.processed", report.Processed),
		attribute.Int("salon.errors", report.Errors),
	)
	s.logger.Info("job finished",
		"job", job,
		"status", status,
		"processed", report.Processed,
		"errors", report.Errors,
		"duration_ms", elapsed.Milliseconds())

	if s.observe != nil {
		s.observe(job, status)
	}
	if s.health != nil {
		rec := Record{LastRun: started, Status: status, Processed: report.Processed, Errors: report.Errors}
		if err := s.health.Record(job, rec); err != nil {
			s.logger.Warn("health record not written", "job", job, "error", err)
		}
	}
}
