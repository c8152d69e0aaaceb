package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/salonware/booking-assistant/internal/catalog"
	"github.com/salonware/booking-assistant/internal/scheduling"
)

// maxDaySlots bounds how many same-day options one answer carries, so
// the customer reads a short list instead of the whole agenda.
const maxDaySlots = 4

type dayChecker interface {
	CheckDay(ctx context.Context, category string, day time.Time, durationMin int, tr *scheduling.TimeRange, stylistID string) (scheduling.DayAvailability, error)
}

type nextFinder interface {
	FindNext(ctx context.Context, req scheduling.NextRequest) (scheduling.NextResult, error)
}

// CheckAvailability builds the single-day availability tool. Dates are
// interpreted in the salon's timezone.
func CheckAvailability(checker dayChecker, loc *time.Location) *Tool {
	if checker == nil {
		panic("tools: day checker required")
	}
	if loc == nil {
		loc = time.Local
	}
	return &Tool{
		Name:        "check_availability",
		Description: "List free appointment starts on one concrete date. Use when the customer names a day; use find_next_available when they ask for the soonest option.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"date": map[string]any{
					"type":        "string",
					"description": "Requested day, YYYY-MM-DD.",
				},
				"service_category": map[string]any{
					"type": "string",
					"enum": []string{catalog.CategoryHairdressing, catalog.CategoryAesthetics},
				},
				"duration_minutes": map[string]any{
					"type":        "integer",
					"description": "Total duration of the requested services.",
				},
				"stylist_id": map[string]any{
					"type":        "string",
					"description": "Restrict to one stylist. Omit for any stylist.",
				},
				"time_after": map[string]any{
					"type":        "string",
					"description": "Only starts at or after this local clock time, HH:MM.",
				},
				"time_before": map[string]any{
					"type":        "string",
					"description": "Only starts before this local clock time, HH:MM.",
				},
			},
			"required": []string{"date", "service_category", "duration_minutes"},
		},
		Run: func(ctx context.Context, args Args) (map[string]any, error) {
			day, err := time.ParseInLocation("2006-01-02", args.String("date"), loc)
			if err != nil {
				return nil, fmt.Errorf("tools: check_availability: bad date %q: %w", args.String("date"), err)
			}
			var tr *scheduling.TimeRange
			if after, before := args.String("time_after"), args.String("time_before"); after != "" || before != "" {
				tr = &scheduling.TimeRange{After: after, Before: before}
			}
			res, err := checker.CheckDay(ctx, args.String("service_category"), day, args.Int("duration_minutes"), tr, args.String("stylist_id"))
			if err != nil {
				return nil, err
			}
			slots := res.Slots
			if len(slots) > maxDaySlots {
				slots = slots[:maxDaySlots]
			}
			return map[string]any{
				"available_slots":  slots,
				"is_same_day":      res.IsSameDay,
				"holiday_detected": res.HolidayDetected,
			}, nil
		},
	}
}

// FindNextAvailable builds the soonest-slot search tool.
func FindNextAvailable(finder nextFinder) *Tool {
	if finder == nil {
		panic("tools: next finder required")
	}
	return &Tool{
		Name:        "find_next_available",
		Description: "Find the soonest free appointment starts over the coming days, optionally for one stylist. Also surfaces an earlier start with a different stylist when the chosen one has nothing sooner.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"service_category": map[string]any{
					"type": "string",
					"enum": []string{catalog.CategoryHairdressing, catalog.CategoryAesthetics},
				},
				"duration_minutes": map[string]any{
					"type":        "integer",
					"description": "Total duration of the requested services.",
				},
				"stylist_id": map[string]any{
					"type":        "string",
					"description": "Restrict to one stylist. Omit for any stylist.",
				},
				"start_date": map[string]any{
					"type":        "string",
					"description": "First day to consider, YYYY-MM-DD. Defaults to today.",
				},
				"max_days": map[string]any{
					"type":        "integer",
					"description": "How many days ahead to search. Defaults to 14.",
				},
			},
			"required": []string{"service_category", "duration_minutes"},
		},
		Run: func(ctx context.Context, args Args) (map[string]any, error) {
			res, err := finder.FindNext(ctx, scheduling.NextRequest{
				Category:        args.String("service_category"),
				StylistID:       args.String("stylist_id"),
				DurationMinutes: args.Int("duration_minutes"),
				MaxDays:         args.Int("max_days"),
				StartDate:       args.String("start_date"),
			})
			if err != nil {
				return nil, err
			}
			out := map[string]any{"selected_stylist_slots": res.StylistSlots}
			if res.SoonestAny != nil {
				out["soonest_any"] = res.SoonestAny
			}
			return out, nil
		},
	}
}
