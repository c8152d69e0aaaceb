package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/salonware/booking-assistant/internal/salon"
	"github.com/salonware/booking-assistant/internal/scheduling"
)

// closureLookahead bounds how far ahead upcoming closures are listed.
const closureLookahead = 30 * 24 * time.Hour

// QueryInfo builds the read-only salon information tool: opening
// hours, upcoming closures and the FAQ policy entries. A topic narrows
// the FAQ list; when nothing matches, the full list comes back so the
// model can still answer.
func QueryInfo(repo salon.Repository, loc *time.Location) *Tool {
	if repo == nil {
		panic("tools: salon repository required")
	}
	if loc == nil {
		loc = time.Local
	}
	return &Tool{
		Name:        "query_info",
		Description: "Look up salon facts: opening hours, upcoming closures and policies such as address, prices, parking or cancellations.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"topic": map[string]any{
					"type":        "string",
					"description": "Optional keyword to narrow the answer, e.g. \"horario\", \"direccion\", \"cancelacion\".",
				},
			},
		},
		Run: func(ctx context.Context, args Args) (map[string]any, error) {
			weekly, err := repo.WeeklyHours(ctx)
			if err != nil {
				return nil, fmt.Errorf("tools: query_info: weekly hours: %w", err)
			}
			sort.Slice(weekly, func(i, j int) bool { return weekly[i].DayOfWeek < weekly[j].DayOfWeek })
			hours := make([]string, 0, len(weekly))
			for _, h := range weekly {
				if h.Closed {
					hours = append(hours, fmt.Sprintf("%s: cerrado", scheduling.WeekdayName(h.DayOfWeek)))
					continue
				}
				hours = append(hours, fmt.Sprintf("%s: %s a %s", scheduling.WeekdayName(h.DayOfWeek), h.Start, h.End))
			}

			now := time.Now().In(loc)
			closures := []string{}
			if holidays, err := repo.Holidays(ctx, now, now.Add(closureLookahead)); err == nil {
				for _, h := range holidays {
					closures = append(closures, fmt.Sprintf("%s (%s)", scheduling.FriendlyDate(h.Day, loc), h.Name))
				}
			}

			policies, err := repo.PoliciesByPrefix(ctx, salon.FAQPrefix)
			if err != nil {
				return nil, fmt.Errorf("tools: query_info: policies: %w", err)
			}
			faq := filterPolicies(policies, args.String("topic"))

			return map[string]any{
				"hours":             hours,
				"upcoming_closures": closures,
				"faq":               faq,
			}, nil
		},
	}
}

func filterPolicies(policies []salon.Policy, topic string) map[string]string {
	topic = strings.ToLower(strings.TrimSpace(topic))
	all := make(map[string]string, len(policies))
	matched := make(map[string]string)
	for _, p := range policies {
		key := strings.TrimPrefix(p.Key, salon.FAQPrefix)
		all[key] = p.Value
		if topic != "" && strings.Contains(strings.ToLower(key), topic) {
			matched[key] = p.Value
		}
	}
	if len(matched) > 0 {
		return matched
	}
	return all
}
