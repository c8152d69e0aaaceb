package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonware/booking-assistant/internal/booking"
	"github.com/salonware/booking-assistant/internal/resilience"
)

type stubSlotPolicy struct {
	validateErr error
	freshErr    error
}

func (s *stubSlotPolicy) ValidateSlot(ctx context.Context, slot booking.Slot) error {
	return s.validateErr
}

func (s *stubSlotPolicy) CheckFreshness(slot booking.Slot) error {
	return s.freshErr
}

type stubEscalator struct {
	mu      sync.Mutex
	fired   chan struct{}
	reason  string
	history []string
}

func newStubEscalator() *stubEscalator {
	return &stubEscalator{fired: make(chan struct{}, 1)}
}

func (s *stubEscalator) Escalate(ctx context.Context, conversationID, phone, reason string, history []string) error {
	s.mu.Lock()
	s.reason = reason
	s.history = append([]string(nil), history...)
	s.mu.Unlock()
	select {
	case s.fired <- struct{}{}:
	default:
	}
	return nil
}

// wait blocks until the background handoff ran and returns its reason.
func (s *stubEscalator) wait(t *testing.T) string {
	t.Helper()
	select {
	case <-s.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("escalation side effects never ran")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

type orchestratorFixture struct {
	orch  *Orchestrator
	store *Store
	llm   *stubLLM
	exec  *stubExecutor
	chat  *stubChat
	esc   *stubEscalator
	slots *stubSlotPolicy
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	_, store := setupTestStore(t)

	f := &orchestratorFixture{
		store: store,
		llm:   &stubLLM{},
		exec:  &stubExecutor{},
		chat: &stubChat{resps: []openai.ChatCompletionResponse{
			assistantText("¡Hola! ¿En qué puedo ayudarte?"),
		}},
		esc:   newStubEscalator(),
		slots: &stubSlotPolicy{},
	}

	classifier := NewClassifier(f.llm, 0.7, nil)
	bookingH := NewBookingHandler(f.exec, &stubDurations{}, &stubStylists{}, &stubCustomerLookup{}, testFormatter(t, nil), nil)
	nonBookingH := NewNonBookingHandler(f.chat, f.exec, stubDefs{}, nil, "Salón Ana", nil)
	router := NewRouter(bookingH, nonBookingH)

	f.orch = NewOrchestrator(store, classifier, router, f.slots, f.esc, OrchestratorConfig{}, nil)
	return f
}

func classifierJSON(intent string, confidence float64) LLMResponse {
	return LLMResponse{Text: fmt.Sprintf(`{"intent_type": %q, "entities": {}, "confidence": %.2f}`, intent, confidence)}
}

func TestProcessMessageFirstContactBooking(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.llm.resp = classifierJSON("START_BOOKING", 0.95)
	ctx := context.Background()

	reply, err := f.orch.ProcessMessage(ctx, "wa-1", "+34600111222", "quiero pedir cita")
	require.NoError(t, err)
	assert.Contains(t, reply, "¿Qué servicio te gustaría reservar?")

	state, err := f.store.Get(ctx, "wa-1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, booking.StateServiceSelection, state.FSM.State)
	require.Len(t, state.Messages, 2)
	assert.Equal(t, RoleCustomer, state.Messages[0].Role)
	assert.Equal(t, "quiero pedir cita", state.Messages[0].Content)
	assert.Equal(t, RoleAssistant, state.Messages[1].Role)
	assert.Zero(t, state.ErrorCount)
}

func TestProcessMessageNonBookingChat(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.llm.resp = classifierJSON("FAQ", 0.9)
	ctx := context.Background()

	reply, err := f.orch.ProcessMessage(ctx, "wa-2", "+34600111222", "¿qué horario tenéis?")
	require.NoError(t, err)
	assert.Equal(t, "¡Hola! ¿En qué puedo ayudarte?", reply)

	state, err := f.store.Get(ctx, "wa-2")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, booking.StateIdle, state.FSM.State)
}

func TestProcessMessageReportsIntentToObserver(t *testing.T) {
	f := newOrchestratorFixture(t)
	var seen []string
	f.orch.observeIntent = func(intent string) { seen = append(seen, intent) }
	f.llm.resp = classifierJSON("FAQ", 0.9)

	_, err := f.orch.ProcessMessage(context.Background(), "wa-2", "+34600111222", "¿dónde estáis?")
	require.NoError(t, err)
	assert.Equal(t, []string{"FAQ"}, seen)
}

func TestProcessMessageEscalatedConversationStaysQuiet(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	seed := NewState("wa-3", "+34600111222")
	seed.Escalated = true
	require.NoError(t, f.store.Put(ctx, "wa-3", seed))

	reply, err := f.orch.ProcessMessage(ctx, "wa-3", "+34600111222", "¿hola?")
	require.NoError(t, err)
	assert.Empty(t, reply)
	assert.Zero(t, f.llm.calls, "a handed-off conversation must not reach the model")

	state, err := f.store.Get(ctx, "wa-3")
	require.NoError(t, err)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, RoleCustomer, state.Messages[0].Role)
}

func TestProcessMessageErrorThresholdHandsOff(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	seed := NewState("wa-4", "+34600111222")
	seed.ErrorCount = DefaultEscalationThreshold
	require.NoError(t, f.store.Put(ctx, "wa-4", seed))

	reply, err := f.orch.ProcessMessage(ctx, "wa-4", "+34600111222", "sigue sin funcionar")
	require.NoError(t, err)
	assert.Equal(t, replyEscalated, reply)
	assert.Zero(t, f.llm.calls)

	reason := f.esc.wait(t)
	assert.Contains(t, reason, "errores")

	state, err := f.store.Get(ctx, "wa-4")
	require.NoError(t, err)
	assert.True(t, state.Escalated)
	assert.Zero(t, state.ErrorCount)
	assert.Len(t, state.Messages, 2)
}

func TestProcessMessageBreakerOpenDegrades(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.llm.err = fmt.Errorf("resilience: openrouter: %w", resilience.ErrBreakerOpen)
	ctx := context.Background()

	reply, err := f.orch.ProcessMessage(ctx, "wa-5", "+34600111222", "hola")
	require.NoError(t, err)
	assert.Equal(t, replyDegraded, reply)

	state, err := f.store.Get(ctx, "wa-5")
	require.NoError(t, err)
	assert.Equal(t, 1, state.ErrorCount)
	assert.False(t, state.Escalated)
}

func TestProcessMessageRepeatedFailuresHandOff(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.llm.err = fmt.Errorf("resilience: openrouter: %w", resilience.ErrBreakerOpen)
	ctx := context.Background()

	for i := 0; i < DefaultEscalationThreshold; i++ {
		reply, err := f.orch.ProcessMessage(ctx, "wa-6", "+34600111222", "hola")
		require.NoError(t, err)
		assert.Equal(t, replyDegraded, reply)
	}

	reply, err := f.orch.ProcessMessage(ctx, "wa-6", "+34600111222", "¿sigues ahí?")
	require.NoError(t, err)
	assert.Equal(t, replyEscalated, reply)

	f.esc.wait(t)
	state, err := f.store.Get(ctx, "wa-6")
	require.NoError(t, err)
	assert.True(t, state.Escalated)
}

func TestProcessMessageDispatchErrorRollsBackFSM(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.llm.resp = LLMResponse{Text: `{"intent_type": "START_BOOKING", "entities": {}, "confidence": 0.95, "service_query": "corte"}`}
	f.exec.errs = map[string]error{"search_services": errors.New("catalog down")}
	ctx := context.Background()

	reply, err := f.orch.ProcessMessage(ctx, "wa-7", "+34600111222", "quiero un corte")
	require.NoError(t, err)
	assert.Equal(t, replyDegraded, reply)

	state, err := f.store.Get(ctx, "wa-7")
	require.NoError(t, err)
	assert.Equal(t, 1, state.ErrorCount)
	assert.NotEqual(t, booking.StateServiceSelection, state.FSM.State,
		"a failed turn must not checkpoint its transition")
}

func TestProcessMessageAuditOverridesFalseClaim(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.llm.resp = classifierJSON("FAQ", 0.9)
	f.chat.resps = []openai.ChatCompletionResponse{
		assistantText("¡Listo! Ya he creado tu cita para mañana."),
	}
	ctx := context.Background()

	reply, err := f.orch.ProcessMessage(ctx, "wa-8", "+34600111222", "¿me la apuntas?")
	require.NoError(t, err)
	assert.Equal(t, replyAuditOverride, reply)

	reason := f.esc.wait(t)
	assert.NotEmpty(t, reason)

	state, err := f.store.Get(ctx, "wa-8")
	require.NoError(t, err)
	assert.True(t, state.Escalated)
	assert.False(t, state.AppointmentCreated)
}

func seedNameConfirmation(t *testing.T, f *orchestratorFixture, conversationID string) {
	t.Helper()
	seed := NewState(conversationID, "+34600111222")
	seed.FSM = booking.Snapshot{
		State: booking.StateCustomerData,
		CollectedData: booking.CollectedData{
			Services:                []string{"Corte de Pelo"},
			StylistID:               "sty-1",
			Slot:                    &booking.Slot{StartTime: "2099-09-05T08:00:00Z", StylistID: "sty-1"},
			FirstName:               "Marta",
			UseCustomerName:         true,
			NameConfirmationPending: true,
		},
	}
	require.NoError(t, f.store.Put(context.Background(), conversationID, seed))
}

func TestProcessMessageNameConfirmationYes(t *testing.T) {
	f := newOrchestratorFixture(t)
	// The model misreads the bare yes as the final booking confirmation;
	// the pending-name guard must pin it back.
	f.llm.resp = classifierJSON("CONFIRM_BOOKING", 0.95)
	seedNameConfirmation(t, f, "wa-9")
	ctx := context.Background()

	reply, err := f.orch.ProcessMessage(ctx, "wa-9", "+34600111222", "¡sí!")
	require.NoError(t, err)
	assert.Contains(t, reply, "Gracias, Marta")

	state, err := f.store.Get(ctx, "wa-9")
	require.NoError(t, err)
	assert.Equal(t, booking.StateCustomerData, state.FSM.State)
	assert.False(t, state.FSM.CollectedData.NameConfirmationPending)
	assert.Equal(t, "Marta", state.FSM.CollectedData.FirstName)
}

func TestProcessMessageNameConfirmationNo(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.llm.resp = classifierJSON("UNKNOWN", 0.3)
	seedNameConfirmation(t, f, "wa-10")
	ctx := context.Background()

	reply, err := f.orch.ProcessMessage(ctx, "wa-10", "+34600111222", "no")
	require.NoError(t, err)
	assert.Contains(t, reply, "¿A nombre de quién pongo la cita?")

	state, err := f.store.Get(ctx, "wa-10")
	require.NoError(t, err)
	assert.Empty(t, state.FSM.CollectedData.FirstName)
	assert.False(t, state.FSM.CollectedData.NameConfirmationPending)
}

func TestProcessMessageNameConfirmationReplacement(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.llm.resp = LLMResponse{Text: `{"intent_type": "PROVIDE_CUSTOMER_DATA", "entities": {"first_name": "Lucía"}, "confidence": 0.9}`}
	seedNameConfirmation(t, f, "wa-11")
	ctx := context.Background()

	reply, err := f.orch.ProcessMessage(ctx, "wa-11", "+34600111222", "no, soy Lucía")
	require.NoError(t, err)
	assert.Contains(t, reply, "Gracias, Lucía")

	state, err := f.store.Get(ctx, "wa-11")
	require.NoError(t, err)
	assert.Equal(t, "Lucía", state.FSM.CollectedData.FirstName)
	assert.False(t, state.FSM.CollectedData.NameConfirmationPending)
}

func TestProcessMessageStaleSlotReturnsToSelection(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.llm.resp = classifierJSON("UNKNOWN", 0.2)
	f.slots.freshErr = errors.New("needs 3 days of advance notice")
	ctx := context.Background()

	seed := NewState("wa-12", "+34600111222")
	seed.FSM = booking.Snapshot{
		State: booking.StateConfirmation,
		CollectedData: booking.CollectedData{
			Services:  []string{"Corte de Pelo"},
			StylistID: "sty-1",
			Slot:      &booking.Slot{StartTime: "2025-09-05T08:00:00Z", StylistID: "sty-1"},
			FirstName: "Marta",
		},
	}
	require.NoError(t, f.store.Put(ctx, "wa-12", seed))

	_, err := f.orch.ProcessMessage(ctx, "wa-12", "+34600111222", "mmm")
	require.NoError(t, err)

	state, err := f.store.Get(ctx, "wa-12")
	require.NoError(t, err)
	assert.Equal(t, booking.StateSlotSelection, state.FSM.State)
	assert.Nil(t, state.FSM.CollectedData.Slot)
}

func TestProcessMessageInjectsKnownCustomerID(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.llm.resp = classifierJSON("UNKNOWN", 0.2)
	ctx := context.Background()

	seed := NewState("wa-13", "+34600111222")
	seed.CustomerID = "cus-9"
	seed.FSM = booking.Snapshot{
		State:         booking.StateServiceSelection,
		CollectedData: booking.CollectedData{Services: []string{"Corte de Pelo"}},
	}
	require.NoError(t, f.store.Put(ctx, "wa-13", seed))

	_, err := f.orch.ProcessMessage(ctx, "wa-13", "+34600111222", "mmm")
	require.NoError(t, err)

	state, err := f.store.Get(ctx, "wa-13")
	require.NoError(t, err)
	assert.Equal(t, "cus-9", state.CustomerID)
	assert.Equal(t, "cus-9", state.FSM.CollectedData.CustomerID)
}

func TestProcessMessageWindowTrimsButCounts(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.llm.resp = classifierJSON("FAQ", 0.9)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := f.orch.ProcessMessage(ctx, "wa-14", "+34600111222", fmt.Sprintf("pregunta %d", i))
		require.NoError(t, err)
	}

	state, err := f.store.Get(ctx, "wa-14")
	require.NoError(t, err)
	assert.Len(t, state.Messages, DefaultMessageWindow)
	assert.Equal(t, 14, state.TotalMessageCount)
}
