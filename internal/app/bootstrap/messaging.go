package bootstrap

import (
	"errors"
	"fmt"
	"time"

	"github.com/salonware/booking-assistant/internal/chatwoot"
	appconfig "github.com/salonware/booking-assistant/internal/config"
	"github.com/salonware/booking-assistant/internal/notify"
	"github.com/salonware/booking-assistant/pkg/logging"
)

// gatewayTimeout bounds each Chatwoot API call.
const gatewayTimeout = 10 * time.Second

// BuildChatwootClient creates the messaging gateway from config.
func BuildChatwootClient(cfg *appconfig.Config, logger *logging.Logger) (*chatwoot.Client, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	client, err := chatwoot.New(chatwoot.Config{
		BaseURL:   cfg.ChatwootAPIURL,
		APIToken:  cfg.ChatwootAPIToken,
		AccountID: cfg.ChatwootAccountID,
		InboxID:   cfg.ChatwootInboxID,
		Timeout:   gatewayTimeout,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: chatwoot client: %w", err)
	}
	return client, nil
}

// BuildNotifier wires salon alerts: a notification row per event plus
// operator email through SendGrid when an API key is configured. A nil
// pool falls back to the in-memory repository, which only makes sense
// in tests.
func BuildNotifier(pool notify.PgxPool, cfg *appconfig.Config, logger *logging.Logger) *notify.Service {
	if cfg == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	var repo notify.Repository
	if pool != nil {
		repo = notify.NewPostgresRepository(pool)
	} else {
		repo = notify.NewInMemoryRepository()
	}

	var email notify.EmailSender
	if sender := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sender != nil {
		email = sender
	} else {
		logger.Info("sendgrid not configured; alert emails will only be logged")
		email = notify.NewStubEmailSender(logger)
	}

	return notify.NewService(repo, email, cfg.AlertEmailRecipients, logger)
}
