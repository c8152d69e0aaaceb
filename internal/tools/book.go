package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/salonware/booking-assistant/internal/appointments"
	"github.com/salonware/booking-assistant/internal/booking"
	"github.com/salonware/booking-assistant/internal/calendar"
	"github.com/salonware/booking-assistant/internal/catalog"
	"github.com/salonware/booking-assistant/internal/customers"
	"github.com/salonware/booking-assistant/internal/scheduling"
	"github.com/salonware/booking-assistant/pkg/logging"
)

type appointmentWriter interface {
	Create(ctx context.Context, req *appointments.CreateRequest) (*appointments.Appointment, error)
	SetCalendarEventID(ctx context.Context, id, eventID string) error
}

type customerUpserter interface {
	Upsert(ctx context.Context, req *customers.UpsertRequest) (*customers.Customer, error)
}

type serviceResolver interface {
	Resolve(ctx context.Context, query string) (*catalog.Service, error)
}

type stylistGetter interface {
	GetStylist(ctx context.Context, id string) (*catalog.Stylist, error)
}

type slotValidator interface {
	ValidateSlot(ctx context.Context, slot booking.Slot) error
}

type eventCreator interface {
	CreateEvent(ctx context.Context, calendarID string, ev calendar.Event) (string, error)
}

type bookingNotifier interface {
	BookingCreated(ctx context.Context, appointmentID, customerName, stylistName string, start time.Time, services []string)
}

// Booker commits appointments. It revalidates the slot, upserts the
// customer, writes the appointment row, then mirrors the event to the
// stylist's calendar and alerts the salon. The last two steps never
// fail the booking.
type Booker struct {
	appointments appointmentWriter
	customers    customerUpserter
	resolver     serviceResolver
	stylists     stylistGetter
	validator    slotValidator
	calendar     eventCreator
	notify       bookingNotifier
	loc          *time.Location
	logger       *logging.Logger
}

// NewBooker wires the commit path. calendar and notify may be nil.
func NewBooker(
	appts appointmentWriter,
	custs customerUpserter,
	resolver serviceResolver,
	stylists stylistGetter,
	validator slotValidator,
	cal eventCreator,
	notify bookingNotifier,
	loc *time.Location,
	logger *logging.Logger,
) *Booker {
	switch {
	case appts == nil:
		panic("tools: appointments repository required")
	case custs == nil:
		panic("tools: customers repository required")
	case resolver == nil:
		panic("tools: service resolver required")
	case stylists == nil:
		panic("tools: stylist getter required")
	case validator == nil:
		panic("tools: slot validator required")
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Booker{
		appointments: appts,
		customers:    custs,
		resolver:     resolver,
		stylists:     stylists,
		validator:    validator,
		calendar:     cal,
		notify:       notify,
		loc:          loc,
		logger:       logger.WithComponent("tools.book"),
	}
}

// Tool exposes the commit as the book tool.
func (b *Booker) Tool() *Tool {
	return &Tool{
		Name:        "book",
		Description: "Commit the booking: create the customer record, the appointment and the calendar event. Only called once every field is confirmed.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"first_name": map[string]any{"type": "string"},
				"last_name":  map[string]any{"type": "string"},
				"phone":      map[string]any{"type": "string"},
				"services": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Confirmed service names.",
				},
				"stylist_id": map[string]any{"type": "string"},
				"start_time": map[string]any{
					"type":        "string",
					"description": "Appointment start, ISO-8601 with offset.",
				},
				"notes": map[string]any{"type": "string"},
			},
			"required": []string{"first_name", "phone", "services", "stylist_id", "start_time"},
		},
		Timeout: 15 * time.Second,
		Run:     b.run,
	}
}

func (b *Booker) run(ctx context.Context, args Args) (map[string]any, error) {
	firstName := strings.TrimSpace(args.String("first_name"))
	stylistID := args.String("stylist_id")
	startRaw := args.String("start_time")
	services := args.StringSlice("services")
	phone := args.String("phone")
	switch {
	case firstName == "":
		return nil, errors.New("tools: book: first_name is required")
	case phone == "":
		return nil, errors.New("tools: book: phone is required")
	case len(services) == 0:
		return nil, errors.New("tools: book: services are required")
	case stylistID == "" || stylistID == booking.StylistAny:
		return nil, errors.New("tools: book: a concrete stylist_id is required")
	case startRaw == "":
		return nil, errors.New("tools: book: start_time is required")
	}

	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		return nil, fmt.Errorf("tools: book: bad start_time %q: %w", startRaw, err)
	}

	ids, names, totalMin, err := b.resolveServices(ctx, services)
	if err != nil {
		return nil, err
	}

	slot := booking.Slot{StartTime: startRaw, DurationMinutes: totalMin, StylistID: stylistID}
	if err := b.validator.ValidateSlot(ctx, slot); err != nil {
		// A slot that fails revalidation at commit behaves like a lost
		// race, so the flow re-offers times instead of erroring out.
		return nil, fmt.Errorf("tools: book: slot no longer bookable (%s): %w", err, appointments.ErrSlotTaken)
	}

	cust, err := b.customers.Upsert(ctx, &customers.UpsertRequest{
		Phone:     phone,
		FirstName: firstName,
		LastName:  strings.TrimSpace(args.String("last_name")),
	})
	if err != nil {
		return nil, fmt.Errorf("tools: book: upsert customer: %w", err)
	}

	appt, err := b.appointments.Create(ctx, &appointments.CreateRequest{
		CustomerID:      cust.ID,
		StylistID:       stylistID,
		ServiceIDs:      ids,
		StartTime:       start,
		DurationMinutes: totalMin,
	})
	if err != nil {
		// ErrSlotTaken passes through untouched for the caller.
		return nil, fmt.Errorf("tools: book: %w", err)
	}

	stylistName := b.mirrorToCalendar(ctx, appt, cust, names, args.String("notes"))

	if b.notify != nil {
		b.notify.BookingCreated(ctx, appt.ID, cust.FullName(), stylistName, start, names)
	}

	b.logger.Info("booking committed",
		"appointment_id", appt.ID,
		"conversation_id", args.String("conversation_id"),
		"stylist_id", stylistID,
		"start", startRaw,
	)

	return map[string]any{
		"success":        true,
		"appointment_id": appt.ID,
		"customer_id":    cust.ID,
		"first_name":     cust.FirstName,
		"stylist_name":   stylistName,
		"service_names":  names,
		"friendly_date":  scheduling.FriendlyTime(start, b.loc),
	}, nil
}

// resolveServices maps the confirmed names back to catalog rows. By
// this point the names came from earlier tool answers, so an ambiguous
// match takes the top candidate rather than stalling the commit.
func (b *Booker) resolveServices(ctx context.Context, queries []string) (ids, names []string, totalMin int, err error) {
	for _, q := range queries {
		svc, rerr := b.resolver.Resolve(ctx, q)
		if rerr != nil {
			var ambiguous *catalog.AmbiguousServiceError
			if errors.As(rerr, &ambiguous) && len(ambiguous.Options) > 0 {
				opt := ambiguous.Options[0]
				b.logger.Warn("ambiguous service at commit, taking top match",
					"query", q, "picked", opt.Name)
				ids = append(ids, opt.ID)
				names = append(names, opt.Name)
				totalMin += opt.DurationMinutes
				continue
			}
			return nil, nil, 0, fmt.Errorf("tools: book: resolve service %q: %w", q, rerr)
		}
		ids = append(ids, svc.ID)
		names = append(names, svc.Name)
		totalMin += svc.DurationMinutes
	}
	return ids, names, totalMin, nil
}

// mirrorToCalendar writes the event to the stylist's calendar and
// records its id; it returns the stylist's display name. Calendar
// failures are logged and swallowed because the appointment row is the
// source of truth.
func (b *Booker) mirrorToCalendar(ctx context.Context, appt *appointments.Appointment, cust *customers.Customer, services []string, notes string) string {
	st, err := b.stylists.GetStylist(ctx, appt.StylistID)
	if err != nil {
		b.logger.Error("stylist lookup for calendar failed",
			"appointment_id", appt.ID, "stylist_id", appt.StylistID, "error", err)
		return ""
	}
	if b.calendar == nil || st.CalendarID == "" {
		return st.Name
	}

	desc := "Tel: " + cust.Phone
	if notes != "" {
		desc += "\nNotas: " + notes
	}
	eventID, err := b.calendar.CreateEvent(ctx, st.CalendarID, calendar.Event{
		Summary:     strings.Join(services, " + ") + " - " + cust.FullName(),
		Description: desc,
		Start:       appt.StartTime,
		End:         appt.EndTime(),
	})
	if err != nil {
		b.logger.Error("calendar event creation failed, appointment kept",
			"appointment_id", appt.ID, "calendar_id", st.CalendarID, "error", err)
		return st.Name
	}
	if err := b.appointments.SetCalendarEventID(ctx, appt.ID, eventID); err != nil {
		b.logger.Error("calendar event id not recorded",
			"appointment_id", appt.ID, "event_id", eventID, "error", err)
	}
	return st.Name
}
