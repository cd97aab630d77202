package metrics

import "github.com/prometheus/client_golang/prometheus"

// CrisisMetrics exposes counters/histograms for the crisis pipeline.
type CrisisMetrics struct {
	assessmentsTotal  *prometheus.CounterVec
	suppressedTotal   *prometheus.CounterVec
	escalationsTotal  *prometheus.CounterVec
	stepFailures      *prometheus.CounterVec
	matchLatency      prometheus.Histogram
	channelMessages   *prometheus.CounterVec
	safetyAlertsTotal *prometheus.CounterVec
}

func NewCrisisMetrics(reg prometheus.Registerer) *CrisisMetrics {
	m := &CrisisMetrics{
		assessmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "haven",
			Subsystem: "risk",
			Name:      "assessments_total",
			Help:      "Total crisis assessments produced, by severity",
		}, []string{"severity", "immediate"}),
		suppressedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "haven",
			Subsystem: "risk",
			Name:      "assessments_suppressed_total",
			Help:      "Assessments suppressed below the confidence floor",
		}, []string{"stage"}),
		escalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "haven",
			Subsystem: "escalation",
			Name:      "records_total",
			Help:      "Escalation records by terminal status",
		}, []string{"status", "priority"}),
		stepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "haven",
			Subsystem: "escalation",
			Name:      "step_failures_total",
			Help:      "Escalation step failures, by action",
		}, []string{"action", "fallback_used"}),
		matchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "haven",
			Subsystem: "responders",
			Name:      "match_latency_seconds",
			Help:      "Latency of professional matching",
			Buckets:   prometheus.DefBuckets,
		}),
		channelMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "haven",
			Subsystem: "comms",
			Name:      "channel_messages_total",
			Help:      "Messages sent over secure channels",
		}, []string{"status"}),
		safetyAlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "haven",
			Subsystem: "safety",
			Name:      "alerts_total",
			Help:      "Safety alerts raised, by type",
		}, []string{"type", "suppressed"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.assessmentsTotal, m.suppressedTotal, m.escalationsTotal,
		m.stepFailures, m.matchLatency, m.channelMessages, m.safetyAlertsTotal,
	)
	return m
}

func (m *CrisisMetrics) ObserveAssessment(severity string, immediate bool) {
	if m == nil {
		return
	}
	m.assessmentsTotal.WithLabelValues(severity, boolLabel(immediate)).Inc()
}

func (m *CrisisMetrics) ObserveSuppressed(stage string) {
	if m == nil {
		return
	}
	m.suppressedTotal.WithLabelValues(stage).Inc()
}

func (m *CrisisMetrics) ObserveEscalation(status, priority string) {
	if m == nil {
		return
	}
	m.escalationsTotal.WithLabelValues(status, priority).Inc()
}

func (m *CrisisMetrics) ObserveStepFailure(action string, fallbackUsed bool) {
	if m == nil {
		return
	}
	m.stepFailures.WithLabelValues(action, boolLabel(fallbackUsed)).Inc()
}

func (m *CrisisMetrics) ObserveMatchLatency(seconds float64) {
	if m == nil {
		return
	}
	m.matchLatency.Observe(seconds)
}

func (m *CrisisMetrics) ObserveChannelMessage(status string) {
	if m == nil {
		return
	}
	m.channelMessages.WithLabelValues(status).Inc()
}

func (m *CrisisMetrics) ObserveSafetyAlert(alertType string, suppressed bool) {
	if m == nil {
		return
	}
	m.safetyAlertsTotal.WithLabelValues(alertType, boolLabel(suppressed)).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
