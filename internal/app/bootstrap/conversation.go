package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"

	"github.com/salonware/booking-assistant/internal/appointments"
	"github.com/salonware/booking-assistant/internal/calendar"
	"github.com/salonware/booking-assistant/internal/catalog"
	"github.com/salonware/booking-assistant/internal/chatwoot"
	appconfig "github.com/salonware/booking-assistant/internal/config"
	"github.com/salonware/booking-assistant/internal/conversation"
	"github.com/salonware/booking-assistant/internal/customers"
	"github.com/salonware/booking-assistant/internal/notify"
	"github.com/salonware/booking-assistant/internal/resilience"
	"github.com/salonware/booking-assistant/internal/salon"
	"github.com/salonware/booking-assistant/internal/scheduling"
	"github.com/salonware/booking-assistant/internal/tools"
	"github.com/salonware/booking-assistant/pkg/logging"
)

// Hooks carries the optional metric callbacks threaded through the
// engine. Any field may be nil.
type Hooks struct {
	OnIntent  func(intent string)
	OnTool    tools.ObserveFunc
	OnBreaker resilience.StateChangeHook
}

// Engine bundles what the conversation worker runs: the checkpoint
// store, which doubles as the per-conversation locker, and the
// orchestrator that processes turns.
type Engine struct {
	Store        *conversation.Store
	Orchestrator *conversation.Orchestrator
}

// BuildEngine assembles the conversational pipeline from config:
// repositories, LLM clients, the tool registry, both handlers and the
// orchestrator on top.
func BuildEngine(
	ctx context.Context,
	cfg *appconfig.Config,
	pool *pgxpool.Pool,
	rdb *redis.Client,
	gateway *chatwoot.Client,
	cal *calendar.Client,
	notifier *notify.Service,
	hooks Hooks,
	logger *logging.Logger,
) (*Engine, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("bootstrap: config is required")
	case pool == nil:
		return nil, errors.New("bootstrap: postgres pool is required")
	case rdb == nil:
		return nil, errors.New("bootstrap: redis client is required")
	case gateway == nil:
		return nil, errors.New("bootstrap: chatwoot client is required")
	case cal == nil:
		return nil, errors.New("bootstrap: calendar client is required; availability reads busy intervals from it")
	case notifier == nil:
		return nil, errors.New("bootstrap: notifier is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	loc := cfg.Location()

	apptRepo := appointments.NewPostgresRepository(pool)
	custRepo := customers.NewPostgresRepository(pool)
	catalogRepo := catalog.NewPostgresRepository(pool)
	salonRepo := salon.NewPostgresRepository(pool)
	stylists := catalog.NewStylistCache(catalogRepo)
	resolver := catalog.NewResolver(catalogRepo, logger)

	llm, chat, err := buildLLMClients(ctx, cfg, hooks, logger)
	if err != nil {
		return nil, err
	}

	validator := scheduling.NewValidator(salonRepo, loc, logger)
	finder := scheduling.NewAvailability(salonRepo, stylists, cal, loc, logger)

	booker := tools.NewBooker(apptRepo, custRepo, resolver, catalogRepo, validator, cal, notifier, loc, logger)
	escalation := tools.NewEscalationService(gateway, notifier, logger)

	registry := tools.NewRegistry(
		tools.CheckAvailability(finder, loc),
		tools.FindNextAvailable(finder),
		tools.SearchServices(resolver),
		tools.ListStylists(stylists),
		tools.ManageCustomer(custRepo),
		tools.QueryInfo(salonRepo, loc),
		booker.Tool(),
		escalation.Tool(),
	)
	executor := tools.NewExecutor(registry, hooks.OnTool, logger)

	formatter := conversation.NewFormatter(llm, cfg.SiteName, loc, logger)
	lifecycle := conversation.NewAppointmentLifecycle(apptRepo, catalogRepo, cal, notifier, logger)

	bookingHandler := conversation.NewBookingHandler(executor, resolver, stylists, custRepo, formatter, logger)
	nonBookingHandler := conversation.NewNonBookingHandler(chat, executor, registry, lifecycle, cfg.SiteName, logger)

	store := conversation.NewStore(rdb, cfg.StateTTL)
	classifier := conversation.NewClassifier(llm, cfg.ConfidenceThreshold, logger)
	orchestrator := conversation.NewOrchestrator(
		store,
		classifier,
		conversation.NewRouter(bookingHandler, nonBookingHandler),
		validator,
		escalation,
		conversation.OrchestratorConfig{
			MessageWindow:       cfg.MessageWindow,
			EscalationThreshold: cfg.EscalationThreshold,
			ObserveIntent:       hooks.OnIntent,
		},
		logger,
	)

	return &Engine{Store: store, Orchestrator: orchestrator}, nil
}

// buildLLMClients returns the completion client the classifier and
// formatter share, plus the raw chat client the FAQ loop drives tool
// calls through. When a Gemini key is configured the completion client
// falls back to it on OpenRouter failures.
func buildLLMClients(ctx context.Context, cfg *appconfig.Config, hooks Hooks, logger *logging.Logger) (conversation.LLMClient, *conversation.OpenRouterClient, error) {
	if strings.TrimSpace(cfg.OpenRouterAPIKey) == "" {
		return nil, nil, errors.New("bootstrap: OPENROUTER_API_KEY is required")
	}

	clientCfg := openai.DefaultConfig(cfg.OpenRouterAPIKey)
	if strings.TrimSpace(cfg.OpenRouterBaseURL) != "" {
		clientCfg.BaseURL = cfg.OpenRouterBaseURL
	}
	clientCfg.HTTPClient = &http.Client{
		Transport: &attributionTransport{referer: cfg.SiteURL, title: cfg.SiteName},
	}

	var stateHooks []resilience.StateChangeHook
	if hooks.OnBreaker != nil {
		stateHooks = append(stateHooks, hooks.OnBreaker)
	}
	breaker := resilience.NewBreaker(resilience.BreakerOpenRouter, logger, stateHooks...)

	primary := conversation.NewOpenRouterClient(openai.NewClientWithConfig(clientCfg), cfg.LLMModel, breaker, logger)

	var llm conversation.LLMClient = primary
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gemini, err := conversation.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("gemini fallback unavailable", "error", err)
		} else {
			llm = conversation.NewFallbackLLMClient(primary, gemini, logger)
			logger.Info("gemini fallback enabled", "model", cfg.GeminiModel)
		}
	}
	return llm, primary, nil
}

// attributionTransport adds the optional headers OpenRouter uses to
// attribute traffic to an app.
type attributionTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

func (t *attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.referer != "" || t.title != "" {
		req = req.Clone(req.Context())
		if t.referer != "" {
			req.Header.Set("HTTP-Referer", t.referer)
		}
		if t.title != "" {
			req.Header.Set("X-Title", t.title)
		}
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
