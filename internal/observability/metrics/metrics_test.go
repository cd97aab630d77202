package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestNewCrisisMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCrisisMetrics(reg)

	m.ObserveAssessment("critical", true)
	m.ObserveSuppressed("filter")
	m.ObserveEscalation("escalated", "emergency")
	m.ObserveStepFailure("assign", true)
	m.ObserveMatchLatency(0.02)
	m.ObserveChannelMessage("sent")
	m.ObserveSafetyAlert("high_risk_users", false)

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *CrisisMetrics

	assert.NotPanics(t, func() {
		m.ObserveAssessment("low", false)
		m.ObserveSuppressed("fusion")
		m.ObserveEscalation("failed", "routine")
		m.ObserveStepFailure("notify", false)
		m.ObserveMatchLatency(0.5)
		m.ObserveChannelMessage("denied")
		m.ObserveSafetyAlert("low_safety_score", true)
	})
}
