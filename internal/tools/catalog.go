package tools

import (
	"context"
	"errors"

	"github.com/salonware/booking-assistant/internal/catalog"
)

type serviceSearcher interface {
	Search(ctx context.Context, query string, max int) ([]catalog.Service, int, error)
}

type stylistLister interface {
	Get(ctx context.Context, category string) ([]catalog.Stylist, error)
}

// SearchServices builds the catalog search tool. An unmatched query is
// a normal outcome, not an error: the model gets an empty options list
// and asks the customer to rephrase.
func SearchServices(searcher serviceSearcher) *Tool {
	if searcher == nil {
		panic("tools: service searcher required")
	}
	return &Tool{
		Name:        "search_services",
		Description: "Search the salon catalog by keywords. Returns up to five matching services with id, name, duration and category, plus the total match count.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Keywords from the customer's request, e.g. \"corte y peinado\".",
				},
				"max": map[string]any{
					"type":        "integer",
					"description": "Maximum number of options to return. Defaults to 5.",
				},
			},
			"required": []string{"query"},
		},
		Run: func(ctx context.Context, args Args) (map[string]any, error) {
			options := []map[string]any{}
			services, total, err := searcher.Search(ctx, args.String("query"), args.Int("max"))
			if err != nil {
				if errors.Is(err, catalog.ErrServiceNotFound) {
					return map[string]any{"options": options, "count_total": 0}, nil
				}
				return nil, err
			}
			for _, s := range services {
				options = append(options, map[string]any{
					"id":               s.ID,
					"name":             s.Name,
					"duration_minutes": s.DurationMinutes,
					"category":         s.Category,
				})
			}
			return map[string]any{"options": options, "count_total": total}, nil
		},
	}
}

// ListStylists builds the stylist listing tool backed by the cached
// roster.
func ListStylists(stylists stylistLister) *Tool {
	if stylists == nil {
		panic("tools: stylist lister required")
	}
	return &Tool{
		Name:        "list_stylists",
		Description: "List the active stylists that can perform services of the given category.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"category": map[string]any{
					"type":        "string",
					"description": "Service category, HAIRDRESSING or AESTHETICS.",
					"enum":        []string{catalog.CategoryHairdressing, catalog.CategoryAesthetics},
				},
			},
			"required": []string{"category"},
		},
		Run: func(ctx context.Context, args Args) (map[string]any, error) {
			roster, err := stylists.Get(ctx, args.String("category"))
			if err != nil {
				return nil, err
			}
			out := make([]map[string]any, 0, len(roster))
			for _, st := range roster {
				out = append(out, map[string]any{"id": st.ID, "name": st.Name})
			}
			return map[string]any{"stylists": out}, nil
		},
	}
}
