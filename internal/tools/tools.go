// Package tools hosts the callable units the conversation layer
// invokes: catalog lookups, availability searches, the booking commit
// and the human handoff. Each tool carries its function-calling
// definition so the chat loop can expose it to the model.
package tools

import (
	"context"
	"encoding/json"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Args is the decoded argument map of one tool call. Accessors are
// tolerant of the types JSON decoding produces.
type Args map[string]any

func (a Args) String(key string) string {
	v, _ := a[key].(string)
	return v
}

func (a Args) Int(key string) int {
	switch v := a[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		i, _ := v.Int64()
		return int(i)
	}
	return 0
}

func (a Args) Bool(key string) bool {
	v, _ := a[key].(bool)
	return v
}

func (a Args) StringSlice(key string) []string {
	switch v := a[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Tool pairs one function-calling definition with its implementation.
type Tool struct {
	Name        string
	Description string
	// Parameters is the JSON schema of the arguments object.
	Parameters map[string]any
	// Timeout bounds one execution; zero means the executor default.
	Timeout time.Duration
	Run     func(ctx context.Context, args Args) (map[string]any, error)
}

// Registry holds the registered tools in registration order.
type Registry struct {
	tools map[string]*Tool
	order []string
}

func NewRegistry(tools ...*Tool) *Registry {
	r := &Registry{tools: make(map[string]*Tool, len(tools))}
	for _, t := range tools {
		if t == nil {
			continue
		}
		if _, exists := r.tools[t.Name]; exists {
			panic("tools: duplicate tool " + t.Name)
		}
		r.tools[t.Name] = t
		r.order = append(r.order, t.Name)
	}
	return r
}

// Get returns one tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names lists the registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Definitions returns the openai function definitions for the named
// tools, or for every registered tool when no names are given. Unknown
// names are skipped.
func (r *Registry) Definitions(names ...string) []openai.Tool {
	if len(names) == 0 {
		names = r.order
	}
	defs := make([]openai.Tool, 0, len(names))
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok {
			continue
		}
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return defs
}
