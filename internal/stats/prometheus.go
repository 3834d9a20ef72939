package stats

import (
	"errors"

	"github.com/biodoia/multiorch/internal/orchestrator"
	"github.com/biodoia/multiorch/internal/providers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics espone le metriche di provider e orchestrazione in formato Prometheus
type Metrics struct {
	attemptsTotal         *prometheus.CounterVec
	attemptDuration       *prometheus.HistogramVec
	orchestrationsTotal   *prometheus.CounterVec
	orchestrationDuration *prometheus.HistogramVec
	roleCalls             *prometheus.CounterVec
}

// NewMetrics registra le metriche su reg
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "multiorch"
	}
	factory := promauto.With(reg)

	return &Metrics{
		attemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_attempts_total",
				Help:      "Upstream model attempts by provider, model and outcome",
			},
			[]string{"provider", "model", "outcome"},
		),
		attemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_attempt_duration_milliseconds",
				Help:      "Upstream attempt duration in milliseconds",
				Buckets:   []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
			},
			[]string{"provider", "model"},
		),
		orchestrationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orchestrations_total",
				Help:      "Orchestration runs by mode and result",
			},
			[]string{"mode", "result"},
		),
		orchestrationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "orchestration_duration_milliseconds",
				Help:      "End-to-end orchestration duration in milliseconds",
				Buckets:   []float64{500, 1000, 2500, 5000, 10000, 30000, 60000, 120000},
			},
			[]string{"mode"},
		),
		roleCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "role_calls_total",
				Help:      "Role calls by stage, role and provider",
			},
			[]string{"stage", "role", "provider"},
		),
	}
}

// ObserveAttempt implementa providers.AttemptObserver
func (m *Metrics) ObserveAttempt(a providers.Attempt) {
	m.attemptsTotal.WithLabelValues(string(a.Provider), a.Model, attemptOutcome(a.Err)).Inc()
	m.attemptDuration.WithLabelValues(string(a.Provider), a.Model).Observe(float64(a.Duration.Milliseconds()))
}

// ObserveRun implementa orchestrator.RunObserver
func (m *Metrics) ObserveRun(r orchestrator.Report) {
	m.orchestrationsTotal.WithLabelValues(string(r.Mode), runResult(r.Err)).Inc()
	m.orchestrationDuration.WithLabelValues(string(r.Mode)).Observe(float64(r.Duration.Milliseconds()))

	for _, c := range r.Calls {
		m.roleCalls.WithLabelValues(string(c.Stage), string(c.Role), string(c.Provider)).Inc()
	}
}

func attemptOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case providers.IsTransient(err):
		return "transient"
	default:
		return "terminal"
	}
}

func runResult(err error) string {
	if err == nil {
		return "success"
	}
	var oe *orchestrator.Error
	if errors.As(err, &oe) {
		return string(oe.Kind)
	}
	return "error"
}
