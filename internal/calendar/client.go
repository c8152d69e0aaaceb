// Package calendar wraps the Google Calendar API for stylist
// schedules: busy lookups for availability math and event lifecycle
// for booked appointments.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/salonware/booking-assistant/pkg/logging"
)

// ErrNotConfigured is returned by New when no credentials are set.
var ErrNotConfigured = errors.New("calendar: no service account credentials configured")

// BusyInterval is one occupied span on a stylist's calendar.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// Event is the subset of a calendar event the assistant manages.
type Event struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	ColorID     string
}

// Client talks to the Google Calendar API with service-account
// credentials. Calendar ids are per stylist.
type Client struct {
	svc    *gcal.Service
	loc    *time.Location
	logger *logging.Logger
}

// New builds a client from service-account JSON credentials.
func New(ctx context.Context, credentialsJSON []byte, loc *time.Location, logger *logging.Logger) (*Client, error) {
	if len(credentialsJSON) == 0 {
		return nil, ErrNotConfigured
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	svc, err := gcal.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(gcal.CalendarScope),
	)
	if err != nil {
		return nil, fmt.Errorf("calendar: create service: %w", err)
	}
	return &Client{svc: svc, loc: loc, logger: logger.WithComponent("calendar")}, nil
}

// ListBusy returns the occupied intervals on one calendar between from
// and to, expanded from recurring events and sorted by start.
func (c *Client) ListBusy(ctx context.Context, calendarID string, from, to time.Time) ([]BusyInterval, error) {
	call := c.svc.Events.List(calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250)

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: list events for %s: %w", calendarID, err)
	}
	return busyFromEvents(resp.Items, c.loc), nil
}

// CreateEvent inserts an appointment event and returns its id.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, ev Event) (string, error) {
	created, err := c.svc.Events.Insert(calendarID, toAPIEvent(ev)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("calendar: create event on %s: %w", calendarID, err)
	}
	c.logger.Info("calendar event created", "calendar_id", calendarID, "event_id", created.Id)
	return created.Id, nil
}

// PatchEvent updates the non-zero fields of an existing event.
func (c *Client) PatchEvent(ctx context.Context, calendarID, eventID string, patch Event) error {
	apiPatch := &gcal.Event{}
	if patch.Summary != "" {
		apiPatch.Summary = patch.Summary
	}
	if patch.Description != "" {
		apiPatch.Description = patch.Description
	}
	if patch.ColorID != "" {
		apiPatch.ColorId = patch.ColorID
	}
	if !patch.Start.IsZero() {
		apiPatch.Start = &gcal.EventDateTime{DateTime: patch.Start.Format(time.RFC3339)}
	}
	if !patch.End.IsZero() {
		apiPatch.End = &gcal.EventDateTime{DateTime: patch.End.Format(time.RFC3339)}
	}
	if _, err := c.svc.Events.Patch(calendarID, eventID, apiPatch).Context(ctx).Do(); err != nil {
		return fmt.Errorf("calendar: patch event %s on %s: %w", eventID, calendarID, err)
	}
	return nil
}

// DeleteEvent removes an event. An event already gone is not an error.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	err := c.svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		c.logger.Warn("calendar event already deleted", "calendar_id", calendarID, "event_id", eventID)
		return nil
	}
	return fmt.Errorf("calendar: delete event %s on %s: %w", eventID, calendarID, err)
}

func toAPIEvent(ev Event) *gcal.Event {
	return &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		ColorId:     ev.ColorID,
		Start:       &gcal.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: ev.End.Format(time.RFC3339)},
	}
}

// busyFromEvents converts raw API events to busy intervals. Cancelled
// and transparent events are skipped; all-day events block the whole
// local day.
func busyFromEvents(items []*gcal.Event, loc *time.Location) []BusyInterval {
	busy := make([]BusyInterval, 0, len(items))
	for _, item := range items {
		if item == nil || item.Status == "cancelled" || item.Transparency == "transparent" {
			continue
		}
		interval, ok := eventInterval(item, loc)
		if !ok {
			continue
		}
		busy = append(busy, interval)
	}
	return busy
}

func eventInterval(item *gcal.Event, loc *time.Location) (BusyInterval, bool) {
	start, startOK := parseEventTime(item.Start, loc)
	end, endOK := parseEventTime(item.End, loc)
	if !startOK || !endOK || !end.After(start) {
		return BusyInterval{}, false
	}
	return BusyInterval{Start: start, End: end}, true
}

func parseEventTime(edt *gcal.EventDateTime, loc *time.Location) (time.Time, bool) {
	if edt == nil {
		return time.Time{}, false
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	if edt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", edt.Date, loc)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}
