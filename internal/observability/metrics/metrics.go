// Package metrics holds the Prometheus instrumentation for the hot
// paths: conversation turns, tool calls, breaker transitions, scheduler
// passes and outbound deliveries. Each struct's Observe methods are
// nil-receiver safe so callers never guard their metric calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "salon"

// ConversationMetrics counts processed turns and classified intents.
type ConversationMetrics struct {
	turnsTotal   *prometheus.CounterVec
	intentsTotal *prometheus.CounterVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Inbound turns by outcome",
		}, []string{"outcome"}),
		intentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "intents_total",
			Help:      "Classified intents by type",
		}, []string{"intent"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.intentsTotal)
	return m
}

// ObserveTurn matches the inbound worker's observer signature.
func (m *ConversationMetrics) ObserveTurn(outcome string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
}

// ObserveIntent matches the orchestrator's intent hook.
func (m *ConversationMetrics) ObserveIntent(intent string) {
	if m == nil {
		return
	}
	m.intentsTotal.WithLabelValues(intent).Inc()
}

// ToolMetrics tracks tool executions and their latency.
type ToolMetrics struct {
	invocationsTotal *prometheus.CounterVec
	duration         *prometheus.HistogramVec
}

func NewToolMetrics(reg prometheus.Registerer) *ToolMetrics {
	m := &ToolMetrics{
		invocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tools",
			Name:      "invocations_total",
			Help:      "Tool executions by tool and outcome",
		}, []string{"tool", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tools",
			Name:      "duration_seconds",
			Help:      "Tool execution latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.invocationsTotal, m.duration)
	return m
}

// ObserveInvocation matches the tool executor's observer signature.
func (m *ToolMetrics) ObserveInvocation(tool, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.invocationsTotal.WithLabelValues(tool, outcome).Inc()
	m.duration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// BreakerMetrics counts circuit-breaker state transitions.
type BreakerMetrics struct {
	transitionsTotal *prometheus.CounterVec
}

func NewBreakerMetrics(reg prometheus.Registerer) *BreakerMetrics {
	m := &BreakerMetrics{
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state changes",
		}, []string{"breaker", "from", "to"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitionsTotal)
	return m
}

// ObserveTransition matches resilience.StateChangeHook.
func (m *BreakerMetrics) ObserveTransition(breaker, from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(breaker, from, to).Inc()
}

// SchedulerMetrics counts periodic job passes.
type SchedulerMetrics struct {
	runsTotal *prometheus.CounterVec
}

func NewSchedulerMetrics(reg prometheus.Registerer) *SchedulerMetrics {
	m := &SchedulerMetrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduler passes by job and health status",
		}, []string{"job", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runsTotal)
	return m
}

// ObserveRun matches the scheduler's observer signature.
func (m *SchedulerMetrics) ObserveRun(job, status string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(job, status).Inc()
}

// DeliveryMetrics counts outbound sends to the messaging gateway.
type DeliveryMetrics struct {
	deliveriesTotal *prometheus.CounterVec
}

func NewDeliveryMetrics(reg prometheus.Registerer) *DeliveryMetrics {
	m := &DeliveryMetrics{
		deliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "deliveries_total",
			Help:      "Outbound deliveries by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.deliveriesTotal)
	return m
}

// ObserveDelivery matches the outbound sender's observer signature.
func (m *DeliveryMetrics) ObserveDelivery(outcome string) {
	if m == nil {
		return
	}
	m.deliveriesTotal.WithLabelValues(outcome).Inc()
}
