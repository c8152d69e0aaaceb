package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/salonware/booking-assistant/internal/app/bootstrap"
	"github.com/salonware/booking-assistant/internal/appointments"
	"github.com/salonware/booking-assistant/internal/catalog"
	appconfig "github.com/salonware/booking-assistant/internal/config"
	"github.com/salonware/booking-assistant/internal/observability/metrics"
	"github.com/salonware/booking-assistant/internal/scheduler"
	"github.com/salonware/booking-assistant/pkg/logging"
)

func main() {
	once := flag.Bool("once", false, "run every job immediately and exit")
	flag.Parse()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		logger.Error("postgres unavailable", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	gateway, err := bootstrap.BuildChatwootClient(cfg, logger)
	if err != nil {
		logger.Error("chatwoot client not built", "error", err)
		os.Exit(1)
	}

	loc := cfg.Location()
	cal, err := bootstrap.BuildCalendarClient(ctx, cfg, loc, logger)
	if err != nil {
		logger.Error("calendar client not built", "error", err)
		os.Exit(1)
	}

	opts := []scheduler.Option{
		scheduler.WithNotifier(bootstrap.BuildNotifier(pool, cfg, logger)),
		scheduler.WithHealthFile(scheduler.NewHealthFile(cfg.SchedulerHealthFile)),
		scheduler.WithObserver(metrics.NewSchedulerMetrics(nil).ObserveRun),
	}
	if cal != nil {
		opts = append(opts, scheduler.WithCalendar(cal, catalog.NewPostgresRepository(pool)))
	}

	sched := scheduler.New(
		appointments.NewPostgresRepository(pool),
		gateway,
		scheduler.Config{
			Timezone:             loc,
			DailyHour:            cfg.DailyJobHour,
			CheckInterval:        cfg.SchedulerCheckInterval,
			ConfirmationLead:     time.Duration(cfg.ConfirmationHoursBefore) * time.Hour,
			AutoCancelWindow:     time.Duration(cfg.AutoCancelHoursBefore) * time.Hour,
			ReminderLead:         time.Duration(cfg.ReminderHoursBefore) * time.Hour,
			ConfirmationTemplate: cfg.ConfirmationTemplate,
			CancellationTemplate: cfg.CancellationTemplate,
			ReminderTemplate:     cfg.ReminderTemplate,
		},
		logger,
		opts...,
	)

	if *once {
		sched.RunNow(ctx)
		return
	}
	sched.Run(ctx)
}
