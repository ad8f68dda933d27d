package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Dispatch metrics
	DispatchRequestsTotal *prometheus.CounterVec
	DispatchDuration      *prometheus.HistogramVec
	DispatchOutcomesTotal *prometheus.CounterVec

	// Run metrics
	RunStepsExecuted    *prometheus.HistogramVec
	RunDecisionsTotal   *prometheus.CounterVec
	GuardrailTripsTotal *prometheus.CounterVec
	ToolCallsTotal      *prometheus.CounterVec
	TradesPlacedTotal   *prometheus.CounterVec

	// Health-check metrics
	HealthCyclesTotal     prometheus.Counter
	HealthyAgents         prometheus.Gauge
	ListenerRestartsTotal *prometheus.CounterVec
	FallbackRunsTotal     *prometheus.CounterVec

	// Run tracker metrics
	TrackedRuns       prometheus.Gauge
	TrackerSweptTotal prometheus.Counter

	// External API metrics
	ExternalAPIRequestsTotal *prometheus.CounterVec
	ExternalAPIErrorsTotal   *prometheus.CounterVec
	ExternalAPIDuration      *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryTotal    *prometheus.CounterVec
	DBErrorsTotal   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// defaultBuckets are the default histogram buckets for duration metrics (in seconds)
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120}

// stepBuckets are histogram buckets for tool-loop step counts
var stepBuckets = []float64{0, 1, 2, 3, 5, 8, 10, 15, 20}

// globalMetrics is the global metrics instance
var globalMetrics *Metrics

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	m := &Metrics{
		DispatchRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "prediction_fleet",
				Subsystem: "dispatch",
				Name:      "requests_total",
				Help:      "Total number of dispatch triggers",
			},
			[]string{"trigger_kind", "mode"},
		),
		DispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "prediction_fleet",
				Subsystem: "dispatch",
				Name:      "duration_seconds",
				Help:      "Duration of one full dispatch fan-out in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"trigger_kind"},
		),
		DispatchOutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "prediction_fleet",
				Subsystem: "dispatch",
				Name:      "outcomes_total",
				Help:      "Per-agent dispatch outcomes by status",
			},
			[]string{"model_id", "status"},
		),
		RunStepsExecuted: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "prediction_fleet",
				Subsystem: "run",
				Name:      "steps_executed",
				Help:      "Tool-loop steps executed per agent run",
				Buckets:   stepBuckets,
			},
			[]string{"model_id"},
		),
		RunDecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "prediction_fleet",
				Subsystem: "run",
				Name:      "decisions_total",
				Help:      "Run decisions by classification",
			},
			[]string{"model_id", "decision"},
		),
		GuardrailTripsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "prediction_fleet",
				Subsystem: "run",
				Name:      "guardrail_trips_total",
				Help:      "Guardrail violations by kind",
			},
			[]string{"model_id", "kind"},
		),
		ToolCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "prediction_fleet",
				Subsystem: "run",
				Name:      "tool_calls_total",
				Help:      "Tool invocations by tool name and result",
			},
			[]string{"tool", "status"},
		),
		TradesPlacedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "prediction_fleet",
				Subsystem: "run",
				Name:      "trades_placed_total",
				Help:      "Confirmed trades by model and action",
			},
			[]string{"model_id", "action"},
		),
		HealthCyclesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "prediction_fleet",
				Subsystem: "health",
				Name:      "cycles_total",
				Help:      "Total health-check cycles executed",
			},
		),
		HealthyAgents: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "prediction_fleet",
				Subsystem: "health",
				Name:      "healthy_agents",
				Help:      "Agents with a live listener as of the last cycle",
			},
		),
		ListenerRestartsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "prediction_fleet",
				Subsystem: "health",
				Name:      "listener_restarts_total",
				Help:      "Listener workflows restarted by the health check",
			},
			[]string{"model_id"},
		),
		FallbackRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "prediction_fleet",
				Subsystem: "health",
				Name:      "fallback_runs_total",
				Help:      "Fallback deliveries for unhealthy agents by path (wake or inline)",
			},
			[]string{"model_id", "path"},
		),
		TrackedRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "prediction_fleet",
				Subsystem: "tracker",
				Name:      "runs",
				Help:      "Durable runs currently tracked as in flight",
			},
		),
		TrackerSweptTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "prediction_fleet",
				Subsystem: "tracker",
				Name:      "swept_total",
				Help:      "Run records evicted by the TTL sweep",
			},
		),
		ExternalAPIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "prediction_fleet",
				Subsystem: "external_api",
				Name:      "requests_total",
				Help:      "Total number of external API requests",
			},
			[]string{"service", "operation"},
		),
		ExternalAPIErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "prediction_fleet",
				Subsystem: "external_api",
				Name:      "errors_total",
				Help:      "Total number of external API errors",
			},
			[]string{"service", "operation", "error_type"},
		),
		ExternalAPIDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "prediction_fleet",
				Subsystem: "external_api",
				Name:      "duration_seconds",
				Help:      "Duration of external API calls in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"service", "operation"},
		),
		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "prediction_fleet",
				Subsystem: "database",
				Name:      "query_duration_seconds",
				Help:      "Duration of database queries in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"operation", "table"},
		),
		DBQueryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "prediction_fleet",
				Subsystem: "database",
				Name:      "queries_total",
				Help:      "Total number of database queries",
			},
			[]string{"operation", "table"},
		),
		DBErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "prediction_fleet",
				Subsystem: "database",
				Name:      "errors_total",
				Help:      "Total number of database errors",
			},
			[]string{"operation", "table"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "prediction_fleet",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "prediction_fleet",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"method", "path"},
		),
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "prediction_fleet",
				Subsystem: "circuit_breaker",
				Name:      "state",
				Help:      "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
			},
			[]string{"service"},
		),
		CircuitBreakerTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "prediction_fleet",
				Subsystem: "circuit_breaker",
				Name:      "trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"service"},
		),
	}

	return m
}

// InitMetrics initializes the global metrics instance
func InitMetrics() *Metrics {
	globalMetrics = NewMetrics(nil)
	return globalMetrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	if globalMetrics == nil {
		return InitMetrics()
	}
	return globalMetrics
}

// SetMetrics overrides the global metrics instance. Tests use this with a
// private registry to avoid duplicate registration.
func SetMetrics(m *Metrics) {
	globalMetrics = m
}

// RecordDispatchRequest records one dispatch trigger
func (m *Metrics) RecordDispatchRequest(triggerKind, mode string) {
	m.DispatchRequestsTotal.WithLabelValues(triggerKind, mode).Inc()
}

// RecordDispatchOutcome records one per-agent dispatch outcome
func (m *Metrics) RecordDispatchOutcome(modelID, status string) {
	m.DispatchOutcomesTotal.WithLabelValues(modelID, status).Inc()
}

// RecordRunResult records the step count and decision of a completed run
func (m *Metrics) RecordRunResult(modelID, decision string, steps int) {
	m.RunStepsExecuted.WithLabelValues(modelID).Observe(float64(steps))
	m.RunDecisionsTotal.WithLabelValues(modelID, decision).Inc()
}

// RecordGuardrailTrip records a guardrail violation
func (m *Metrics) RecordGuardrailTrip(modelID, kind string) {
	m.GuardrailTripsTotal.WithLabelValues(modelID, kind).Inc()
}

// RecordToolCall records a tool invocation
func (m *Metrics) RecordToolCall(tool, status string) {
	m.ToolCallsTotal.WithLabelValues(tool, status).Inc()
}

// RecordTradePlaced records a confirmed trade
func (m *Metrics) RecordTradePlaced(modelID, action string) {
	m.TradesPlacedTotal.WithLabelValues(modelID, action).Inc()
}

// RecordHealthCycle records the outcome of one health-check cycle
func (m *Metrics) RecordHealthCycle(healthy int) {
	m.HealthCyclesTotal.Inc()
	m.HealthyAgents.Set(float64(healthy))
}

// RecordListenerRestart records a listener restart
func (m *Metrics) RecordListenerRestart(modelID string) {
	m.ListenerRestartsTotal.WithLabelValues(modelID).Inc()
}

// RecordFallbackRun records a fallback delivery for an unhealthy agent
func (m *Metrics) RecordFallbackRun(modelID, path string) {
	m.FallbackRunsTotal.WithLabelValues(modelID, path).Inc()
}

// SetTrackedRuns sets the current tracker size
func (m *Metrics) SetTrackedRuns(n int) {
	m.TrackedRuns.Set(float64(n))
}

// RecordTrackerSweep records TTL evictions
func (m *Metrics) RecordTrackerSweep(n int) {
	m.TrackerSweptTotal.Add(float64(n))
}

// RecordExternalAPIRequest records an external API request
func (m *Metrics) RecordExternalAPIRequest(service, operation string) {
	m.ExternalAPIRequestsTotal.WithLabelValues(service, operation).Inc()
}

// RecordExternalAPIError records an external API error
func (m *Metrics) RecordExternalAPIError(service, operation, errorType string) {
	m.ExternalAPIErrorsTotal.WithLabelValues(service, operation, errorType).Inc()
}

// RecordExternalAPIDuration records the duration of an external API call
func (m *Metrics) RecordExternalAPIDuration(service, operation string, duration time.Duration) {
	m.ExternalAPIDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordDBQuery records a database query
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration) {
	m.DBQueryTotal.WithLabelValues(operation, table).Inc()
	m.DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordDBError records a database error
func (m *Metrics) RecordDBError(operation, table string) {
	m.DBErrorsTotal.WithLabelValues(operation, table).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetCircuitBreakerState sets the current state of a circuit breaker
func (m *Metrics) SetCircuitBreakerState(service string, state int) {
	m.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(service string) {
	m.CircuitBreakerTrips.WithLabelValues(service).Inc()
}

// Timer is a helper for timing operations
type Timer struct {
	start   time.Time
	metrics *Metrics
}

// NewTimer creates a new timer
func (m *Metrics) NewTimer() *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: m,
	}
}

// ObserveDispatch records the dispatch fan-out duration
func (t *Timer) ObserveDispatch(triggerKind string) {
	t.metrics.DispatchDuration.WithLabelValues(triggerKind).Observe(time.Since(t.start).Seconds())
}

// ObserveExternalAPI records the external API duration
func (t *Timer) ObserveExternalAPI(service, operation string) {
	t.metrics.RecordExternalAPIDuration(service, operation, time.Since(t.start))
}

// ObserveDB records the database query duration
func (t *Timer) ObserveDB(operation, table string) {
	t.metrics.RecordDBQuery(operation, table, time.Since(t.start))
}

// Duration returns the elapsed time
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
