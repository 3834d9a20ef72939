package stats

import (
	"errors"
	"testing"
	"time"

	"github.com/biodoia/multiorch/internal/orchestrator"
	"github.com/biodoia/multiorch/internal/providers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_ObserveAttempt(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry(), "test")

	m.ObserveAttempt(providers.Attempt{Provider: providers.Gemini, Model: "pro", Duration: time.Second,
		Err: providers.Transient(providers.Gemini, "pro", 503, "overloaded", nil)})
	m.ObserveAttempt(providers.Attempt{Provider: providers.Gemini, Model: "flash", Duration: time.Second})
	m.ObserveAttempt(providers.Attempt{Provider: providers.ChatGPT, Model: "gpt", Duration: time.Second,
		Err: providers.Terminal(providers.ChatGPT, "gpt", 401, "invalid key", nil)})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.attemptsTotal.WithLabelValues("gemini", "pro", "transient")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attemptsTotal.WithLabelValues("gemini", "flash", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attemptsTotal.WithLabelValues("chatgpt", "gpt", "terminal")))
}

func TestMetrics_ObserveRun(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry(), "test")

	m.ObserveRun(orchestrator.Report{
		Mode:     orchestrator.ModeMulti,
		Duration: 3 * time.Second,
		Calls: []orchestrator.Call{
			{Stage: orchestrator.StageDecomposition, Role: orchestrator.RoleManager, Provider: providers.ChatGPT},
			{Stage: orchestrator.StageDispatch, Role: orchestrator.RoleFrontend, Provider: providers.Gemini},
		},
	})
	m.ObserveRun(orchestrator.Report{
		Mode: orchestrator.ModeSingle,
		Err:  &orchestrator.Error{Kind: orchestrator.KindCandidatesExhausted},
	})
	m.ObserveRun(orchestrator.Report{Mode: orchestrator.ModeSingle, Err: errors.New("boom")})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.orchestrationsTotal.WithLabelValues("multi", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orchestrationsTotal.WithLabelValues("single", "all_candidates_exhausted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orchestrationsTotal.WithLabelValues("single", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.roleCalls.WithLabelValues("dispatch", "frontend", "gemini")))
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry(), "")
		NewMetrics(prometheus.NewRegistry(), "")
	})
}
