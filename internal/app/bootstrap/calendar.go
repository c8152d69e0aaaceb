package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/salonware/booking-assistant/internal/calendar"
	appconfig "github.com/salonware/booking-assistant/internal/config"
	"github.com/salonware/booking-assistant/pkg/logging"
)

// BuildCalendarClient creates the Google Calendar client from the
// service-account JSON in config. Missing credentials are not an
// error here: the scheduler then skips event cleanup, while the
// conversation worker refuses to start because availability reads
// busy intervals from the calendar.
func BuildCalendarClient(ctx context.Context, cfg *appconfig.Config, loc *time.Location, logger *logging.Logger) (*calendar.Client, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || strings.TrimSpace(cfg.GoogleServiceAccountJSON) == "" {
		logger.Warn("google calendar not configured")
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := calendar.New(ctx, []byte(cfg.GoogleServiceAccountJSON), loc, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: calendar client: %w", err)
	}
	return client, nil
}
