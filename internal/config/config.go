package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL string
	RedisURL    string

	ChatwootAPIURL       string
	ChatwootAPIToken     string
	ChatwootAccountID    string
	ChatwootInboxID      string
	ChatwootWebhookToken string

	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	LLMModel          string
	GeminiAPIKey      string
	GeminiModel       string

	GoogleServiceAccountJSON string
	GoogleCalendarIDs        []string

	Timezone string
	SiteURL  string
	SiteName string

	// Scheduler tunables. Hours are offsets relative to appointment start.
	ConfirmationHoursBefore int
	AutoCancelHoursBefore   int
	ReminderHoursBefore     int
	ConfirmationTemplate    string
	CancellationTemplate    string
	ReminderTemplate        string
	DailyJobHour            int
	SchedulerCheckInterval  time.Duration
	SchedulerHealthFile     string

	MessageWindow       int
	ConfidenceThreshold float64
	EscalationThreshold int
	StateTTL            time.Duration
	MaxSearchDays       int

	WorkerCount        int
	RateLimitPerMinute int

	SendGridAPIKey       string
	SendGridFromEmail    string
	SendGridFromName     string
	AlertEmailRecipients []string
}

// Load reads configuration from environment variables. A .env file is
// honoured when present so local runs match deployed behaviour.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),

		ChatwootAPIURL:       getEnv("CHATWOOT_API_URL", ""),
		ChatwootAPIToken:     getEnv("CHATWOOT_API_TOKEN", ""),
		ChatwootAccountID:    getEnv("CHATWOOT_ACCOUNT_ID", ""),
		ChatwootInboxID:      getEnv("CHATWOOT_INBOX_ID", ""),
		ChatwootWebhookToken: getEnv("CHATWOOT_WEBHOOK_TOKEN", ""),

		OpenRouterAPIKey:  getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		LLMModel:          getEnv("LLM_MODEL", "openai/gpt-4o-mini"),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleCalendarIDs:        getEnvAsSlice("GOOGLE_CALENDAR_IDS", nil),

		Timezone: getEnv("TIMEZONE", "Europe/Madrid"),
		SiteURL:  getEnv("SITE_URL", ""),
		SiteName: getEnv("SITE_NAME", "Salón"),

		ConfirmationHoursBefore: getEnvAsInt("CONFIRMATION_HOURS_BEFORE", 48),
		AutoCancelHoursBefore:   getEnvAsInt("AUTO_CANCEL_HOURS_BEFORE", 24),
		ReminderHoursBefore:     getEnvAsInt("REMINDER_HOURS_BEFORE", 2),
		ConfirmationTemplate:    getEnv("CONFIRMATION_TEMPLATE", "appointment_confirmation_48h"),
		CancellationTemplate:    getEnv("CANCELLATION_TEMPLATE", "appointment_auto_cancelled"),
		ReminderTemplate:        getEnv("REMINDER_TEMPLATE", "appointment_reminder_2h"),
		DailyJobHour:            getEnvAsInt("SCHEDULER_DAILY_HOUR", 10),
		SchedulerCheckInterval:  getEnvAsDuration("SCHEDULER_CHECK_INTERVAL", time.Minute),
		SchedulerHealthFile:     getEnv("SCHEDULER_HEALTH_FILE", "/tmp/scheduler-health.json"),

		MessageWindow:       getEnvAsInt("MESSAGE_WINDOW", 10),
		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.7),
		EscalationThreshold: getEnvAsInt("ESCALATION_THRESHOLD", 3),
		StateTTL:            getEnvAsDuration("STATE_TTL", time.Hour),
		MaxSearchDays:       getEnvAsInt("MAX_SEARCH_DAYS", 14),

		WorkerCount:        getEnvAsInt("WORKER_COUNT", 2),
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 10),

		SendGridAPIKey:       getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:    getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:     getEnv("SENDGRID_FROM_NAME", "Salón AI"),
		AlertEmailRecipients: getEnvAsSlice("ALERT_EMAIL_RECIPIENTS", nil),
	}
}

// Validate reports the required settings that are missing, joined into
// a single error so startup logs show everything at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required"))
	}
	if c.ChatwootAPIURL == "" {
		errs = append(errs, errors.New("CHATWOOT_API_URL is required"))
	}
	if c.ChatwootAPIToken == "" {
		errs = append(errs, errors.New("CHATWOOT_API_TOKEN is required"))
	}
	if c.OpenRouterAPIKey == "" {
		errs = append(errs, errors.New("OPENROUTER_API_KEY is required"))
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("CONFIDENCE_THRESHOLD must be in [0,1], got %v", c.ConfidenceThreshold))
	}
	if c.MessageWindow < 1 {
		errs = append(errs, fmt.Errorf("MESSAGE_WINDOW must be positive, got %d", c.MessageWindow))
	}
	return errors.Join(errs...)
}

// Location resolves the configured timezone, falling back to UTC when
// the name is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsSlice splits a comma-separated environment variable, trimming
// whitespace and dropping empty entries.
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
