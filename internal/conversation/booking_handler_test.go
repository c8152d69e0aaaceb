package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonware/booking-assistant/internal/appointments"
	"github.com/salonware/booking-assistant/internal/booking"
	"github.com/salonware/booking-assistant/internal/catalog"
	"github.com/salonware/booking-assistant/internal/customers"
)

type stubExecutor struct {
	results map[string]map[string]any
	errs    map[string]error
	calls   []string
	args    map[string]map[string]any
}

func (s *stubExecutor) Execute(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	s.calls = append(s.calls, name)
	if s.args == nil {
		s.args = make(map[string]map[string]any)
	}
	s.args[name] = args
	if err := s.errs[name]; err != nil {
		return nil, err
	}
	return s.results[name], nil
}

type stubDurations struct {
	details []catalog.ServiceDetail
	total   int
	err     error
}

func (s *stubDurations) Durations(ctx context.Context, names []string) ([]catalog.ServiceDetail, int, error) {
	return s.details, s.total, s.err
}

type stubStylists struct {
	list []catalog.Stylist
	err  error
}

func (s *stubStylists) Get(ctx context.Context, category string) ([]catalog.Stylist, error) {
	return s.list, s.err
}

type stubCustomerLookup struct {
	customer *customers.Customer
	err      error
}

func (s *stubCustomerLookup) GetByPhone(ctx context.Context, phone string) (*customers.Customer, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.customer == nil {
		return nil, customers.ErrCustomerNotFound
	}
	return s.customer, nil
}

func newTestBookingHandler(t *testing.T, exec *stubExecutor, durations *stubDurations, stylists *stubStylists) *BookingHandler {
	t.Helper()
	if durations == nil {
		durations = &stubDurations{}
	}
	if stylists == nil {
		stylists = &stubStylists{}
	}
	return NewBookingHandler(exec, durations, stylists, &stubCustomerLookup{}, testFormatter(t, nil), nil)
}

func fsmAt(state booking.State, data booking.CollectedData) *booking.FSM {
	f := booking.New(nil, nil)
	f.Restore(booking.Snapshot{State: state, CollectedData: data})
	return f
}

func turnWith(fsm *booking.FSM, intent booking.Intent) *Turn {
	return &Turn{
		ConversationID: "conv-1",
		CustomerPhone:  "+34600111222",
		Intent:         intent,
		FSM:            fsm,
	}
}

func TestBookingHandlerStartWithoutQueryAsksForServices(t *testing.T) {
	exec := &stubExecutor{}
	h := newTestBookingHandler(t, exec, nil, nil)
	fsm := booking.New(nil, nil)

	reply, err := h.Handle(context.Background(), turnWith(fsm, booking.Intent{Type: booking.IntentStartBooking}))
	require.NoError(t, err)

	assert.Equal(t, booking.StateServiceSelection, fsm.State())
	assert.Contains(t, reply.Text, "¿Qué servicio te gustaría reservar?")
	assert.Empty(t, exec.calls)
}

func TestBookingHandlerStartWithQuerySearchesCatalog(t *testing.T) {
	exec := &stubExecutor{results: map[string]map[string]any{
		"search_services": {
			"options": []map[string]any{
				{"id": "svc-1", "name": "Corte de Pelo", "duration_minutes": 45},
				{"id": "svc-2", "name": "Corte y Peinado", "duration_minutes": 60},
			},
			"count_total": 2,
		},
	}}
	h := newTestBookingHandler(t, exec, nil, nil)
	fsm := booking.New(nil, nil)

	intent := booking.Intent{Type: booking.IntentStartBooking, ServiceQuery: "corte"}
	reply, err := h.Handle(context.Background(), turnWith(fsm, intent))
	require.NoError(t, err)

	assert.Equal(t, []string{"search_services"}, reply.ToolsCalled)
	assert.Contains(t, reply.Text, "1. Corte de Pelo (45 min)")
	assert.Contains(t, reply.Text, "2. Corte y Peinado (60 min)")
	assert.Equal(t, "corte", exec.args["search_services"]["query"])
}

func TestBookingHandlerRejectedTransitionRedirects(t *testing.T) {
	exec := &stubExecutor{}
	h := newTestBookingHandler(t, exec, nil, nil)
	fsm := fsmAt(booking.StateConfirmation, booking.CollectedData{})

	intent := booking.Intent{Type: booking.IntentSelectService, Entities: booking.Entities{Services: []string{"Tinte"}}}
	reply, err := h.Handle(context.Background(), turnWith(fsm, intent))
	require.NoError(t, err)

	assert.Equal(t, booking.StateConfirmation, fsm.State())
	assert.Contains(t, reply.Text, "¿Te confirmo la cita")
	assert.Empty(t, exec.calls)
}

func TestBookingHandlerConfirmServicesListsStylists(t *testing.T) {
	exec := &stubExecutor{results: map[string]map[string]any{
		"list_stylists": {
			"stylists": []map[string]any{
				{"id": "sty-1", "name": "Carmen"},
				{"id": "sty-2", "name": "Marta"},
			},
		},
	}}
	durations := &stubDurations{
		details: []catalog.ServiceDetail{{Name: "Corte de Pelo", Category: catalog.CategoryHairdressing, DurationMinutes: 45}},
		total:   45,
	}
	h := newTestBookingHandler(t, exec, durations, nil)
	fsm := fsmAt(booking.StateServiceSelection, booking.CollectedData{Services: []string{"Corte de Pelo"}})

	reply, err := h.Handle(context.Background(), turnWith(fsm, booking.Intent{Type: booking.IntentConfirmServices}))
	require.NoError(t, err)

	assert.Equal(t, booking.StateStylistSelection, fsm.State())
	assert.Equal(t, 45, fsm.Data().TotalDurationMinutes)
	assert.Contains(t, reply.Text, "1. Carmen")
	assert.Contains(t, reply.Text, "2. Marta")
	assert.Equal(t, catalog.CategoryHairdressing, exec.args["list_stylists"]["category"])
}

func TestBookingHandlerMixedCategoriesAskWhichFirst(t *testing.T) {
	exec := &stubExecutor{}
	durations := &stubDurations{
		details: []catalog.ServiceDetail{
			{Name: "Corte de Pelo", Category: catalog.CategoryHairdressing, DurationMinutes: 45},
			{Name: "Manicura", Category: catalog.CategoryAesthetics, DurationMinutes: 30},
		},
		total: 75,
	}
	h := newTestBookingHandler(t, exec, durations, nil)
	fsm := fsmAt(booking.StateServiceSelection, booking.CollectedData{})

	intent := booking.Intent{
		Type:     booking.IntentSelectService,
		Entities: booking.Entities{Services: []string{"Corte de Pelo", "Manicura"}},
	}
	reply, err := h.Handle(context.Background(), turnWith(fsm, intent))
	require.NoError(t, err)

	assert.True(t, fsm.Data().AwaitingCategoryChoice)
	assert.Contains(t, reply.Text, "por separado")
	assert.Contains(t, reply.Text, "Corte de Pelo, Manicura")
	assert.Empty(t, exec.calls)
}

func TestBookingHandlerCategoryChoiceNarrowsServices(t *testing.T) {
	exec := &stubExecutor{results: map[string]map[string]any{
		"list_stylists": {"stylists": []map[string]any{{"id": "sty-1", "name": "Carmen"}}},
	}}
	durations := &stubDurations{
		details: []catalog.ServiceDetail{{Name: "Corte de Pelo", Category: catalog.CategoryHairdressing, DurationMinutes: 45}},
		total:   45,
	}
	h := newTestBookingHandler(t, exec, durations, nil)
	fsm := fsmAt(booking.StateServiceSelection, booking.CollectedData{
		Services:               []string{"Corte de Pelo", "Manicura"},
		AwaitingCategoryChoice: true,
	})

	intent := booking.Intent{
		Type:     booking.IntentConfirmServices,
		Entities: booking.Entities{Services: []string{"Corte de Pelo"}},
	}
	_, err := h.Handle(context.Background(), turnWith(fsm, intent))
	require.NoError(t, err)

	assert.Equal(t, booking.StateStylistSelection, fsm.State())
	assert.Equal(t, []string{"Corte de Pelo"}, fsm.Data().Services)
	assert.False(t, fsm.Data().AwaitingCategoryChoice)
}

func TestBookingHandlerResolvesStylistByName(t *testing.T) {
	slots := []booking.Slot{
		{StartTime: "2025-09-05T08:00:00Z", StylistID: "sty-2", StylistName: "Marta"},
		{StartTime: "2025-09-05T10:00:00Z", StylistID: "sty-2", StylistName: "Marta"},
	}
	soonest := &booking.Slot{StartTime: "2025-09-04T15:00:00Z", StylistID: "sty-1", StylistName: "Carmen"}
	exec := &stubExecutor{results: map[string]map[string]any{
		"find_next_available": {"selected_stylist_slots": slots, "soonest_any": soonest},
	}}
	stylists := &stubStylists{list: []catalog.Stylist{
		{ID: "sty-1", Name: "Carmen", Active: true},
		{ID: "sty-2", Name: "Marta", Active: true},
	}}
	durations := &stubDurations{
		details: []catalog.ServiceDetail{{Name: "Corte de Pelo", Category: catalog.CategoryHairdressing, DurationMinutes: 45}},
		total:   45,
	}
	h := newTestBookingHandler(t, exec, durations, stylists)
	fsm := fsmAt(booking.StateStylistSelection, booking.CollectedData{
		Services:             []string{"Corte de Pelo"},
		ServiceDetails:       []booking.ServiceDetail{{Name: "Corte de Pelo", Category: catalog.CategoryHairdressing, DurationMinutes: 45}},
		TotalDurationMinutes: 45,
	})

	intent := booking.Intent{Type: booking.IntentSelectStylist, Entities: booking.Entities{StylistName: "marta"}}
	reply, err := h.Handle(context.Background(), turnWith(fsm, intent))
	require.NoError(t, err)

	assert.Equal(t, booking.StateSlotSelection, fsm.State())
	assert.Equal(t, "sty-2", fsm.Data().StylistID)

	// Shown list: selected stylist's slots first, soonest-any last.
	shown := fsm.Data().SlotsShown
	require.Len(t, shown, 3)
	assert.Equal(t, "sty-2", shown[0].StylistID)
	assert.True(t, shown[2].IsSoonestAny)
	assert.Contains(t, reply.Text, "1. viernes 5 de septiembre a las 10:00 con Marta")
	assert.Contains(t, reply.Text, "3. jueves 4 de septiembre a las 17:00 con Carmen (el hueco más temprano)")
}

func TestBookingHandlerUseCustomerNameKnownPhone(t *testing.T) {
	exec := &stubExecutor{}
	durations := &stubDurations{}
	stylists := &stubStylists{}
	custs := &stubCustomerLookup{customer: &customers.Customer{ID: "cus-7", Phone: "+34600111222", FirstName: "Marta", LastName: "Ruiz"}}
	h := NewBookingHandler(exec, durations, stylists, custs, testFormatter(t, nil), nil)
	fsm := fsmAt(booking.StateCustomerData, booking.CollectedData{
		Services:  []string{"Corte de Pelo"},
		StylistID: "sty-1",
		Slot:      &booking.Slot{StartTime: "2025-09-05T08:00:00Z", StylistID: "sty-1"},
	})

	reply, err := h.Handle(context.Background(), turnWith(fsm, booking.Intent{Type: booking.IntentUseCustomerName}))
	require.NoError(t, err)

	assert.Equal(t, "Marta", fsm.Data().FirstName)
	assert.Equal(t, "cus-7", fsm.Data().CustomerID)
	assert.True(t, fsm.Data().NameConfirmationPending)
	assert.Contains(t, reply.Text, "¿La cita es para ti, Marta?")
}

func TestBookingHandlerUseCustomerNameUnknownPhone(t *testing.T) {
	exec := &stubExecutor{}
	h := newTestBookingHandler(t, exec, nil, nil)
	fsm := fsmAt(booking.StateCustomerData, booking.CollectedData{
		Services:  []string{"Corte de Pelo"},
		StylistID: "sty-1",
		Slot:      &booking.Slot{StartTime: "2025-09-05T08:00:00Z", StylistID: "sty-1"},
	})

	reply, err := h.Handle(context.Background(), turnWith(fsm, booking.Intent{Type: booking.IntentUseCustomerName}))
	require.NoError(t, err)

	assert.Empty(t, fsm.Data().FirstName)
	assert.False(t, fsm.Data().NameConfirmationPending)
	assert.Contains(t, reply.Text, "¿A nombre de quién pongo la cita?")
}

func TestBookingHandlerBookInjectsIdentity(t *testing.T) {
	exec := &stubExecutor{results: map[string]map[string]any{
		"book": {
			"appointment_id": "apt-1",
			"friendly_date":  "viernes 5 de septiembre a las 10:00",
			"stylist_name":   "Carmen",
			"service_names":  []string{"Corte de Pelo"},
			"first_name":     "María",
			"success":        true,
		},
	}}
	h := newTestBookingHandler(t, exec, nil, nil)
	fsm := fsmAt(booking.StateConfirmation, booking.CollectedData{
		Services:   []string{"Corte de Pelo"},
		StylistID:  "sty-1",
		Slot:       &booking.Slot{StartTime: "2025-09-05T08:00:00Z", StylistID: "sty-1"},
		FirstName:  "María",
		CustomerID: "cus-1",
	})

	reply, err := h.Handle(context.Background(), turnWith(fsm, booking.Intent{Type: booking.IntentConfirmBooking}))
	require.NoError(t, err)

	assert.True(t, reply.AppointmentCreated)
	assert.Equal(t, []string{"book"}, reply.ToolsCalled)
	assert.Contains(t, reply.Text, "Cita reservada")
	assert.Contains(t, reply.Text, "viernes 5 de septiembre a las 10:00")

	args := exec.args["book"]
	assert.Equal(t, "conv-1", args["conversation_id"])
	assert.Equal(t, "+34600111222", args["phone"])
	assert.Equal(t, "cus-1", args["customer_id"])
}

func TestBookingHandlerSlotTakenReopensSelection(t *testing.T) {
	exec := &stubExecutor{errs: map[string]error{"book": appointments.ErrSlotTaken}}
	h := newTestBookingHandler(t, exec, nil, nil)
	fsm := fsmAt(booking.StateConfirmation, booking.CollectedData{
		Services:  []string{"Corte de Pelo"},
		StylistID: "sty-1",
		Slot:      &booking.Slot{StartTime: "2025-09-05T08:00:00Z", StylistID: "sty-1"},
		FirstName: "María",
	})

	reply, err := h.Handle(context.Background(), turnWith(fsm, booking.Intent{Type: booking.IntentConfirmBooking}))
	require.NoError(t, err)

	assert.Equal(t, booking.StateSlotSelection, fsm.State())
	assert.Nil(t, fsm.Data().Slot)
	assert.False(t, reply.AppointmentCreated)
	assert.Contains(t, reply.Text, "lo acaban de reservar")
}

func TestBookingHandlerRequiredToolFailurePropagates(t *testing.T) {
	exec := &stubExecutor{errs: map[string]error{"search_services": errors.New("catalog down")}}
	h := newTestBookingHandler(t, exec, nil, nil)
	fsm := booking.New(nil, nil)

	intent := booking.Intent{Type: booking.IntentStartBooking, ServiceQuery: "corte"}
	_, err := h.Handle(context.Background(), turnWith(fsm, intent))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search_services")
}

func TestBookingHandlerHolidayShortCircuits(t *testing.T) {
	exec := &stubExecutor{results: map[string]map[string]any{
		"check_availability": {
			"available_slots":  []booking.Slot{},
			"is_same_day":      false,
			"holiday_detected": true,
		},
	}}
	durations := &stubDurations{
		details: []catalog.ServiceDetail{{Name: "Corte de Pelo", Category: catalog.CategoryHairdressing, DurationMinutes: 45}},
		total:   45,
	}
	h := newTestBookingHandler(t, exec, durations, nil)
	fsm := fsmAt(booking.StateSlotSelection, booking.CollectedData{
		Services:             []string{"Corte de Pelo"},
		ServiceDetails:       []booking.ServiceDetail{{Name: "Corte de Pelo", Category: catalog.CategoryHairdressing, DurationMinutes: 45}},
		TotalDurationMinutes: 45,
		StylistID:            "sty-1",
	})

	// A concrete date prescribes the single-day check instead of the
	// forward search.
	intent := booking.Intent{Type: booking.IntentCheckAvailability, Entities: booking.Entities{Date: "2025-12-25"}}
	reply, err := h.Handle(context.Background(), turnWith(fsm, intent))
	require.NoError(t, err)

	assert.Contains(t, reply.Text, "cerrado")
}
