package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus metric the engine exposes.
type Metrics struct {
	// Executor metrics
	StepsExecutedTotal    *prometheus.CounterVec
	StepRetryTotal        *prometheus.CounterVec
	StepDuration          *prometheus.HistogramVec
	CheckpointWritesTotal *prometheus.CounterVec
	ActivePlans           prometheus.Gauge

	// Safety engine metrics
	SafetyCheckOutcomesTotal *prometheus.CounterVec

	// Rollback metrics
	RollbackDuration      *prometheus.HistogramVec
	RollbackOutcomesTotal *prometheus.CounterVec

	// Drift metrics
	DriftedResources        *prometheus.GaugeVec
	DriftRunDuration        *prometheus.HistogramVec
	RemediationActionsTotal *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers every engine metric.
func NewMetrics() *Metrics {
	return &Metrics{
		StepsExecutedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_steps_executed_total",
				Help: "Total number of plan steps executed, by action and terminal status",
			},
			[]string{"action", "status"},
		),

		StepRetryTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_step_retries_total",
				Help: "Total number of step retry attempts, by action",
			},
			[]string{"action"},
		),

		StepDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "engine_step_duration_seconds",
				Help:    "Duration of a single step attempt in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"action"},
		),

		CheckpointWritesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_checkpoint_writes_total",
				Help: "Total number of checkpoint write attempts, by outcome",
			},
			[]string{"outcome"},
		),

		ActivePlans: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "engine_active_plans",
				Help: "Number of plans currently executing",
			},
		),

		SafetyCheckOutcomesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_safety_check_outcomes_total",
				Help: "Total number of safety check evaluations, by phase and outcome",
			},
			[]string{"phase", "outcome"},
		),

		RollbackDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "engine_rollback_duration_seconds",
				Help:    "Duration of rollback invocations in seconds, by provider",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"provider"},
		),

		RollbackOutcomesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_rollback_outcomes_total",
				Help: "Total number of rollback invocations, by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),

		DriftedResources: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "engine_drifted_resources",
				Help: "Number of drifted resources in the most recent drift report, by provider and severity",
			},
			[]string{"provider", "severity"},
		),

		DriftRunDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "engine_drift_detection_duration_seconds",
				Help:    "Duration of drift detection runs in seconds, by provider",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),

		RemediationActionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_remediation_actions_total",
				Help: "Total number of drift remediation actions, by verb and outcome",
			},
			[]string{"verb", "outcome"},
		),

		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "endpoint"},
		),
	}
}

// RecordStepExecuted records a step's terminal outcome.
func (m *Metrics) RecordStepExecuted(action, status string) {
	m.StepsExecutedTotal.WithLabelValues(action, status).Inc()
}

// RecordStepRetry records one retry attempt for an action.
func (m *Metrics) RecordStepRetry(action string) {
	m.StepRetryTotal.WithLabelValues(action).Inc()
}

// RecordStepDuration records a step attempt's wall-clock duration.
func (m *Metrics) RecordStepDuration(action string, seconds float64) {
	m.StepDuration.WithLabelValues(action).Observe(seconds)
}

// RecordCheckpointWrite records a checkpoint write attempt's outcome.
func (m *Metrics) RecordCheckpointWrite(outcome string) {
	m.CheckpointWritesTotal.WithLabelValues(outcome).Inc()
}

// UpdateActivePlans sets the gauge of currently executing plans.
func (m *Metrics) UpdateActivePlans(count float64) {
	m.ActivePlans.Set(count)
}

// RecordSafetyCheckOutcome records one safety check evaluation.
func (m *Metrics) RecordSafetyCheckOutcome(phase, outcome string) {
	m.SafetyCheckOutcomesTotal.WithLabelValues(phase, outcome).Inc()
}

// RecordRollback records a rollback invocation's duration and outcome.
func (m *Metrics) RecordRollback(provider, outcome string, seconds float64) {
	m.RollbackDuration.WithLabelValues(provider).Observe(seconds)
	m.RollbackOutcomesTotal.WithLabelValues(provider, outcome).Inc()
}

// UpdateDriftedResources sets the drifted-resource gauge for a provider
// and severity bucket.
func (m *Metrics) UpdateDriftedResources(provider, severity string, count float64) {
	m.DriftedResources.WithLabelValues(provider, severity).Set(count)
}

// RecordDriftRun records a drift detection run's duration.
func (m *Metrics) RecordDriftRun(provider string, seconds float64) {
	m.DriftRunDuration.WithLabelValues(provider).Observe(seconds)
}

// RecordRemediationAction records one drift remediation action's outcome.
func (m *Metrics) RecordRemediationAction(verb, outcome string) {
	m.RemediationActionsTotal.WithLabelValues(verb, outcome).Inc()
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, status string, duration float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}
