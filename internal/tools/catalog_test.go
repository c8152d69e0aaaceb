package tools

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonware/booking-assistant/internal/catalog"
)

type stubSearcher struct {
	services []catalog.Service
	total    int
	err      error
	query    string
	max      int
}

func (s *stubSearcher) Search(ctx context.Context, query string, max int) ([]catalog.Service, int, error) {
	s.query, s.max = query, max
	if s.err != nil {
		return nil, 0, s.err
	}
	return s.services, s.total, nil
}

type stubRoster struct {
	list     []catalog.Stylist
	err      error
	category string
}

func (s *stubRoster) Get(ctx context.Context, category string) ([]catalog.Stylist, error) {
	s.category = category
	return s.list, s.err
}

func TestSearchServicesReturnsOptions(t *testing.T) {
	searcher := &stubSearcher{
		services: []catalog.Service{
			{ID: "svc-1", Name: "Corte de Pelo", DurationMinutes: 45, Category: catalog.CategoryHairdressing},
			{ID: "svc-2", Name: "Corte y Peinado", DurationMinutes: 60, Category: catalog.CategoryHairdressing},
		},
		total: 7,
	}
	tool := SearchServices(searcher)

	out, err := tool.Run(context.Background(), Args{"query": "corte", "max": float64(2)})
	require.NoError(t, err)

	assert.Equal(t, "corte", searcher.query)
	assert.Equal(t, 2, searcher.max)
	assert.Equal(t, 7, out["count_total"])
	options, ok := out["options"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, options, 2)
	assert.Equal(t, "svc-1", options[0]["id"])
	assert.Equal(t, 45, options[0]["duration_minutes"])
}

func TestSearchServicesNoMatchIsEmptyAnswer(t *testing.T) {
	searcher := &stubSearcher{err: fmt.Errorf("catalog: %q: %w", "tarot", catalog.ErrServiceNotFound)}
	tool := SearchServices(searcher)

	out, err := tool.Run(context.Background(), Args{"query": "tarot"})
	require.NoError(t, err)

	assert.Equal(t, 0, out["count_total"])
	options, ok := out["options"].([]map[string]any)
	require.True(t, ok)
	assert.Empty(t, options)
}

func TestListStylistsReturnsRoster(t *testing.T) {
	roster := &stubRoster{list: []catalog.Stylist{
		{ID: "sty-1", Name: "Ana"},
		{ID: "sty-2", Name: "María"},
	}}
	tool := ListStylists(roster)

	out, err := tool.Run(context.Background(), Args{"category": catalog.CategoryHairdressing})
	require.NoError(t, err)

	assert.Equal(t, catalog.CategoryHairdressing, roster.category)
	stylists, ok := out["stylists"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, stylists, 2)
	assert.Equal(t, "Ana", stylists[0]["name"])
}
