package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the retry controller and daemon.
type Metrics struct {
	registry       *prometheus.Registry
	Turns          *prometheus.CounterVec
	TurnDuration   *prometheus.HistogramVec
	Attempts       *prometheus.CounterVec
	Generations    *prometheus.CounterVec
	GenerationTime *prometheus.HistogramVec
	ActiveSession  *prometheus.GaugeVec
	TransportErrs  *prometheus.CounterVec
}

// NewMetrics constructs a metrics registry with turn collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	turns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tta_turns_total",
		Help: "Finished turns by terminal status",
	}, []string{"status"})

	turnDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tta_turn_duration_seconds",
		Help:    "Turn duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tta_attempts_total",
		Help: "Generate+execute attempts by execution outcome",
	}, []string{"outcome"})

	gens := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tta_generation_requests_total",
		Help: "Generation service calls by model and result",
	}, []string{"model", "result"})

	genDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tta_generation_duration_seconds",
		Help:    "Generation service latency in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"model"})

	active := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tta_transport_active_sessions",
		Help: "Active streaming sessions by transport",
	}, []string{"transport"})

	trErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tta_transport_errors_total",
		Help: "Transport-level errors (handler/streaming) by transport and reason",
	}, []string{"transport", "reason"})

	reg.MustRegister(turns, turnDur, attempts, gens, genDur, active, trErrors)

	return &Metrics{
		registry:       reg,
		Turns:          turns,
		TurnDuration:   turnDur,
		Attempts:       attempts,
		Generations:    gens,
		GenerationTime: genDur,
		ActiveSession:  active,
		TransportErrs:  trErrors,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordTurn records a finished turn.
func (m *Metrics) RecordTurn(status string, duration time.Duration) {
	if m == nil {
		return
	}
	status = orUnknown(status)
	m.Turns.WithLabelValues(status).Inc()
	m.TurnDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordAttempt counts one attempt by its execution outcome.
func (m *Metrics) RecordAttempt(outcome string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(orUnknown(outcome)).Inc()
}

// RecordGeneration records one generation call.
func (m *Metrics) RecordGeneration(model string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	model = orUnknown(model)
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Generations.WithLabelValues(model, result).Inc()
	m.GenerationTime.WithLabelValues(model).Observe(duration.Seconds())
}

// IncActiveSessions increments the active session gauge.
func (m *Metrics) IncActiveSessions(transport string) {
	if m == nil {
		return
	}
	m.ActiveSession.WithLabelValues(transport).Inc()
}

// DecActiveSessions decrements the active session gauge.
func (m *Metrics) DecActiveSessions(transport string) {
	if m == nil {
		return
	}
	m.ActiveSession.WithLabelValues(transport).Dec()
}

// RecordTransportError records a transport-level error.
func (m *Metrics) RecordTransportError(transport, reason string) {
	if m == nil {
		return
	}
	m.TransportErrs.WithLabelValues(orUnknown(transport), orUnknown(reason)).Inc()
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
