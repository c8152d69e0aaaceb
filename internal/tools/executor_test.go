package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopTool(name string) *Tool {
	return &Tool{
		Name:        name,
		Description: name,
		Parameters:  map[string]any{"type": "object"},
		Run: func(ctx context.Context, args Args) (map[string]any, error) {
			return map[string]any{"ok": true}, nil
		},
	}
}

func TestRegistryDefinitionsKeepRegistrationOrder(t *testing.T) {
	reg := NewRegistry(noopTool("b"), noopTool("a"), noopTool("c"))

	defs := reg.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "b", defs[0].Function.Name)
	assert.Equal(t, "a", defs[1].Function.Name)
	assert.Equal(t, "c", defs[2].Function.Name)
}

func TestRegistryDefinitionsFiltersByName(t *testing.T) {
	reg := NewRegistry(noopTool("query_info"), noopTool("search_services"), noopTool("book"))

	defs := reg.Definitions("search_services", "missing")
	require.Len(t, defs, 1)
	assert.Equal(t, "search_services", defs[0].Function.Name)
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	assert.Panics(t, func() { NewRegistry(noopTool("x"), noopTool("x")) })
}

func TestExecutorUnknownTool(t *testing.T) {
	exec := NewExecutor(NewRegistry(noopTool("a")), nil, nil)

	_, err := exec.Execute(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestExecutorAppliesToolTimeout(t *testing.T) {
	slow := &Tool{
		Name:    "slow",
		Timeout: 20 * time.Millisecond,
		Run: func(ctx context.Context, args Args) (map[string]any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
				return map[string]any{}, nil
			}
		},
	}
	exec := NewExecutor(NewRegistry(slow), nil, nil)

	_, err := exec.Execute(context.Background(), "slow", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecutorReportsOutcomeToObserver(t *testing.T) {
	boom := &Tool{
		Name: "boom",
		Run: func(ctx context.Context, args Args) (map[string]any, error) {
			return nil, errors.New("kaput")
		},
	}
	var gotTool, gotOutcome string
	observe := func(tool, outcome string, elapsed time.Duration) {
		gotTool, gotOutcome = tool, outcome
	}
	exec := NewExecutor(NewRegistry(noopTool("fine"), boom), observe, nil)

	_, err := exec.Execute(context.Background(), "fine", map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "fine", gotTool)
	assert.Equal(t, "ok", gotOutcome)

	_, err = exec.Execute(context.Background(), "boom", nil)
	require.Error(t, err)
	assert.Equal(t, "boom", gotTool)
	assert.Equal(t, "error", gotOutcome)
}

func TestArgsAccessorsTolerateDecodedJSON(t *testing.T) {
	args := Args{
		"s":    "hola",
		"f":    float64(45),
		"b":    true,
		"list": []any{"corte", "peinado", 7},
	}

	assert.Equal(t, "hola", args.String("s"))
	assert.Equal(t, 45, args.Int("f"))
	assert.True(t, args.Bool("b"))
	assert.Equal(t, []string{"corte", "peinado"}, args.StringSlice("list"))
	assert.Empty(t, args.String("missing"))
	assert.Zero(t, args.Int("missing"))
	assert.Nil(t, args.StringSlice("missing"))
}
