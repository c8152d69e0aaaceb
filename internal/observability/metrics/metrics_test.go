package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestConversationMetricsCount(t *testing.T) {
	m := NewConversationMetrics(prometheus.NewRegistry())

	m.ObserveTurn("ok")
	m.ObserveTurn("ok")
	m.ObserveTurn("error")
	m.ObserveIntent("START_BOOKING")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.turnsTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.turnsTotal.WithLabelValues("error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.intentsTotal.WithLabelValues("START_BOOKING")))
}

func TestToolMetricsTrackLatency(t *testing.T) {
	m := NewToolMetrics(prometheus.NewRegistry())

	m.ObserveInvocation("book", "ok", 120*time.Millisecond)
	m.ObserveInvocation("book", "error", 5*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.invocationsTotal.WithLabelValues("book", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.invocationsTotal.WithLabelValues("book", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestBreakerSchedulerAndDeliveryCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	b := NewBreakerMetrics(reg)
	s := NewSchedulerMetrics(reg)
	d := NewDeliveryMetrics(reg)

	b.ObserveTransition("chatwoot", "closed", "open")
	s.ObserveRun("confirmations", "healthy")
	d.ObserveDelivery("ok")
	d.ObserveDelivery("ok")

	assert.Equal(t, float64(1), testutil.ToFloat64(b.transitionsTotal.WithLabelValues("chatwoot", "closed", "open")))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.runsTotal.WithLabelValues("confirmations", "healthy")))
	assert.Equal(t, float64(2), testutil.ToFloat64(d.deliveriesTotal.WithLabelValues("ok")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var (
		conv       *ConversationMetrics
		tools      *ToolMetrics
		breakers   *BreakerMetrics
		sched      *SchedulerMetrics
		deliveries *DeliveryMetrics
	)

	assert.NotPanics(t, func() {
		conv.ObserveTurn("ok")
		conv.ObserveIntent("UNKNOWN")
		tools.ObserveInvocation("book", "ok", time.Second)
		breakers.ObserveTransition("openrouter", "closed", "open")
		sched.ObserveRun("reminders", "healthy")
		deliveries.ObserveDelivery("ok")
	})
}
