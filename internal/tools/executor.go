package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/salonware/booking-assistant/pkg/logging"
)

var toolsTracer = otel.Tracer("salon.internal.tools")

// ErrUnknownTool reports a call to a name the registry does not hold.
var ErrUnknownTool = errors.New("tools: unknown tool")

const defaultToolTimeout = 10 * time.Second

// ObserveFunc receives one measurement per execution. Outcome is
// "ok" or "error".
type ObserveFunc func(tool, outcome string, elapsed time.Duration)

// Executor runs registered tools with a per-call timeout and span.
type Executor struct {
	registry *Registry
	observe  ObserveFunc
	logger   *logging.Logger
}

// NewExecutor wraps a registry. observe may be nil.
func NewExecutor(registry *Registry, observe ObserveFunc, logger *logging.Logger) *Executor {
	if registry == nil {
		panic("tools: registry required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Executor{registry: registry, observe: observe, logger: logger.WithComponent("tools")}
}

// Execute runs one tool by name. Argument values never reach the log,
// only their keys.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	tool, ok := e.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	ctx, span := toolsTracer.Start(ctx, "tools."+name)
	defer span.End()
	span.SetAttributes(attribute.String("salon.tool", name))

	timeout := tool.Timeout
	if timeout <= 0 {
		timeout = defaultToolTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	result, err := tool.Run(ctx, Args(args))
	elapsed := time.Since(started)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		e.logger.Warn("tool failed",
			"tool", name,
			"args", argKeys(args),
			"elapsed_ms", elapsed.Milliseconds(),
			"error", err,
		)
	} else {
		e.logger.Debug("tool completed",
			"tool", name,
			"args", argKeys(args),
			"elapsed_ms", elapsed.Milliseconds(),
		)
	}
	if e.observe != nil {
		e.observe(name, outcome, elapsed)
	}
	return result, err
}

func argKeys(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}
