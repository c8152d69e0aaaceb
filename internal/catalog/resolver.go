package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/salonware/booking-assistant/pkg/logging"
)

// maxAmbiguityOptions caps how many candidates an ambiguous query
// reports back to the user.
const maxAmbiguityOptions = 5

// Resolver fuzzy-matches free-text service names against the active
// catalog. It never guesses silently: a query either resolves to one
// service, raises an ambiguity carrying the candidates, or fails as
// not found.
type Resolver struct {
	repo   Repository
	logger *logging.Logger
}

// NewResolver creates a resolver over the catalog repository.
func NewResolver(repo Repository, logger *logging.Logger) *Resolver {
	if repo == nil {
		panic("catalog: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{repo: repo, logger: logger}
}

type scoredService struct {
	service Service
	score   int
}

// Resolve maps a query to exactly one service. An exact
// case-insensitive name match wins outright; otherwise a unique fuzzy
// match wins; several fuzzy matches raise *AmbiguousServiceError.
func (r *Resolver) Resolve(ctx context.Context, query string) (*Service, error) {
	matches, err := r.rank(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("catalog: %q: %w", query, ErrServiceNotFound)
	}
	if matches[0].score == scoreExact {
		s := matches[0].service
		return &s, nil
	}
	if len(matches) == 1 {
		s := matches[0].service
		return &s, nil
	}

	options := make([]ServiceOption, 0, maxAmbiguityOptions)
	for _, m := range matches {
		options = append(options, ServiceOption{
			ID:              m.service.ID,
			Name:            m.service.Name,
			DurationMinutes: m.service.DurationMinutes,
			Category:        m.service.Category,
		})
		if len(options) == maxAmbiguityOptions {
			break
		}
	}
	return nil, &AmbiguousServiceError{Query: query, Options: options}
}

// Search returns the best max matches for a query plus the total match
// count, for presenting a short list to the user.
func (r *Resolver) Search(ctx context.Context, query string, max int) ([]Service, int, error) {
	matches, err := r.rank(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	if max <= 0 {
		max = maxAmbiguityOptions
	}
	out := make([]Service, 0, max)
	for _, m := range matches {
		out = append(out, m.service)
		if len(out) == max {
			break
		}
	}
	return out, len(matches), nil
}

// Durations resolves each collected service name and returns the
// per-service details. Ambiguity here picks the first candidate with a
// logged warning; the booking flow has already shown options upstream,
// so this is a conservative fallback rather than a decision point.
func (r *Resolver) Durations(ctx context.Context, names []string) ([]ServiceDetail, int, error) {
	details := make([]ServiceDetail, 0, len(names))
	total := 0
	for _, name := range names {
		svc, err := r.Resolve(ctx, name)
		if err != nil {
			var ambiguous *AmbiguousServiceError
			if errors.As(err, &ambiguous) && len(ambiguous.Options) > 0 {
				opt := ambiguous.Options[0]
				r.logger.Warn("catalog: ambiguous service name, using first option",
					"query", name, "picked", opt.Name, "options", len(ambiguous.Options))
				details = append(details, ServiceDetail{Name: opt.Name, DurationMinutes: opt.DurationMinutes, Category: opt.Category})
				total += opt.DurationMinutes
				continue
			}
			return nil, 0, err
		}
		details = append(details, ServiceDetail{Name: svc.Name, DurationMinutes: svc.DurationMinutes, Category: svc.Category})
		total += svc.DurationMinutes
	}
	return details, total, nil
}

const (
	scoreExact     = 100
	scorePrefix    = 80
	scoreSubstring = 60
	scoreTokens    = 40
)

// rank scores every active service against the query and returns the
// matches ordered best-first, name as tie break.
func (r *Resolver) rank(ctx context.Context, query string) ([]scoredService, error) {
	q := normalize(query)
	if q == "" {
		return nil, fmt.Errorf("catalog: empty query: %w", ErrServiceNotFound)
	}

	services, err := r.repo.ListActiveServices(ctx)
	if err != nil {
		return nil, err
	}

	var matches []scoredService
	for _, s := range services {
		score := match(q, normalize(s.Name))
		if score > 0 {
			matches = append(matches, scoredService{service: s, score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].service.Name < matches[j].service.Name
	})
	return matches, nil
}

func match(query, name string) int {
	if query == name {
		return scoreExact
	}
	if strings.HasPrefix(name, query) {
		return scorePrefix
	}
	if strings.Contains(name, query) || strings.Contains(query, name) {
		return scoreSubstring
	}

	nameTokens := strings.Fields(name)
	overlap := 0
	for _, qt := range strings.Fields(query) {
		for _, nt := range nameTokens {
			if qt == nt || strings.HasPrefix(nt, qt) {
				overlap++
				break
			}
		}
	}
	if overlap > 0 {
		return scoreTokens + overlap
	}
	return 0
}

var accentReplacer = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u",
	"Á", "a", "É", "e", "Í", "i", "Ó", "o", "Ú", "u", "Ü", "u",
)

// normalize lowercases, strips Spanish accents and collapses spaces so
// "Coloración" and "coloracion" compare equal.
func normalize(s string) string {
	s = accentReplacer.Replace(strings.TrimSpace(s))
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

