package safety

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/haven-crisis-platform/internal/escalation"
	"github.com/wolfman30/haven-crisis-platform/internal/risk"
	"github.com/wolfman30/haven-crisis-platform/pkg/logging"
)

// Stats is one computed snapshot of system safety.
type Stats struct {
	ActiveUsers          int           `json:"active_users"`
	HighRiskUsers        int           `json:"high_risk_users"`
	CriticalRiskUsers    int           `json:"critical_risk_users"`
	EscalationsActive    int           `json:"escalations_active"`
	EscalationsPending   int           `json:"escalations_pending"`
	EscalationsResolved  int           `json:"escalations_resolved"`
	MeanResponseTime     time.Duration `json:"mean_response_time"`
	UnacknowledgedAlerts int           `json:"unacknowledged_alerts"`
	SafetyScore          float64       `json:"safety_score"`
	ComputedAt           time.Time     `json:"computed_at"`
}

// MonitorConfig carries the thresholds the monitor alerts on.
type MonitorConfig struct {
	Interval              time.Duration
	Window                time.Duration
	HighRiskFractionLimit float64
	EscalationCapacity    int
	ResponseTimeSLA       time.Duration
	SafetyScoreFloor      float64
}

// Monitor recomputes safety statistics on a fixed interval and raises
// threshold alerts through the engine. It runs on its own timer and never
// participates in the assessment or escalation paths.
type Monitor struct {
	engine  *Engine
	records escalation.RecordStore
	cfg     MonitorConfig
	logger  *logging.Logger
	now     func() time.Time
}

// NewMonitor wires the monitor over the safety engine and escalation store.
func NewMonitor(engine *Engine, records escalation.RecordStore, cfg MonitorConfig, logger *logging.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	if cfg.HighRiskFractionLimit <= 0 {
		cfg.HighRiskFractionLimit = 0.10
	}
	if cfg.EscalationCapacity <= 0 {
		cfg.EscalationCapacity = 50
	}
	if cfg.ResponseTimeSLA <= 0 {
		cfg.ResponseTimeSLA = 5 * time.Minute
	}
	if cfg.SafetyScoreFloor <= 0 {
		cfg.SafetyScoreFloor = 60
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Monitor{
		engine:  engine,
		records: records,
		cfg:     cfg,
		logger:  logger.WithComponent("safety"),
		now:     time.Now,
	}
}

// Run ticks until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	m.logger.Info("safety monitor started", "interval", m.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("safety monitor stopped")
			return
		case <-ticker.C:
			if _, err := m.Tick(ctx); err != nil {
				m.logger.Error("safety tick failed", "error", err)
			}
		}
	}
}

// Tick computes a snapshot and evaluates thresholds once.
func (m *Monitor) Tick(ctx context.Context) (*Stats, error) {
	stats, err := m.Compute(ctx)
	if err != nil {
		return nil, err
	}
	m.evaluate(ctx, stats)
	return stats, nil
}

// Compute aggregates real event and escalation records into a snapshot.
func (m *Monitor) Compute(ctx context.Context) (*Stats, error) {
	stats := &Stats{ComputedAt: m.now().UTC()}

	events, err := m.engine.events.Recent(ctx, m.cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("safety: recent events: %w", err)
	}
	userSeverity := make(map[string]risk.Severity)
	var responseTotal time.Duration
	responseCount := 0
	for _, evt := range events {
		switch evt.Type {
		case EventAssessmentCreated:
			if severityRank(evt.Severity) > severityRank(userSeverity[evt.UserID]) {
				userSeverity[evt.UserID] = evt.Severity
			}
		case EventResponderAssigned:
			if evt.ResponseTime > 0 {
				responseTotal += evt.ResponseTime
				responseCount++
			}
		}
	}
	stats.ActiveUsers = len(userSeverity)
	for _, sev := range userSeverity {
		switch sev {
		case risk.SeverityHigh:
			stats.HighRiskUsers++
		case risk.SeverityCritical:
			stats.CriticalRiskUsers++
		}
	}
	if responseCount > 0 {
		stats.MeanResponseTime = responseTotal / time.Duration(responseCount)
	}

	records, err := m.records.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("safety: list escalations: %w", err)
	}
	for _, rec := range records {
		switch rec.Status {
		case escalation.StatusInitiated:
			stats.EscalationsPending++
		case escalation.StatusInProgress, escalation.StatusEscalated:
			stats.EscalationsActive++
		case escalation.StatusResolved:
			stats.EscalationsResolved++
		}
	}

	unacked, err := m.engine.alerts.CountUnacknowledged(ctx)
	if err != nil {
		return nil, fmt.Errorf("safety: count alerts: %w", err)
	}
	stats.UnacknowledgedAlerts = unacked

	stats.SafetyScore = m.score(stats)
	return stats, nil
}

// score computes 100 − 30·riskFraction − 20·escalationLoad −
// 20·responseTimePenalty − 10·unackedAlerts, each term normalized to [0,1],
// clamped to [0,100].
func (m *Monitor) score(s *Stats) float64 {
	var riskFraction float64
	if s.ActiveUsers > 0 {
		riskFraction = float64(s.HighRiskUsers+s.CriticalRiskUsers) / float64(s.ActiveUsers)
	}

	escalationLoad := clamp01(float64(s.EscalationsActive+s.EscalationsPending) / float64(m.cfg.EscalationCapacity))

	var responsePenalty float64
	if s.MeanResponseTime > m.cfg.ResponseTimeSLA {
		over := s.MeanResponseTime - m.cfg.ResponseTimeSLA
		responsePenalty = clamp01(float64(over) / float64(m.cfg.ResponseTimeSLA))
	}

	unacked := clamp01(float64(s.UnacknowledgedAlerts) / 5.0)

	score := 100 - 30*riskFraction - 20*escalationLoad - 20*responsePenalty - 10*unacked
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func (m *Monitor) evaluate(ctx context.Context, s *Stats) {
	highRiskUsers := m.usersAtOrAbove(ctx, risk.SeverityHigh)

	if s.ActiveUsers > 0 {
		fraction := float64(s.HighRiskUsers+s.CriticalRiskUsers) / float64(s.ActiveUsers)
		if fraction > m.cfg.HighRiskFractionLimit {
			m.raise(ctx, AlertHighRiskUsers,
				fmt.Sprintf("%.0f%% of active users are high or critical risk", fraction*100),
				highRiskUsers)
		}
	}
	if s.CriticalRiskUsers > 0 {
		m.raise(ctx, AlertCriticalRiskUsers,
			fmt.Sprintf("%d user(s) at critical risk", s.CriticalRiskUsers),
			m.usersAtOrAbove(ctx, risk.SeverityCritical))
	}
	if s.EscalationsActive+s.EscalationsPending > m.cfg.EscalationCapacity {
		m.raise(ctx, AlertEscalationCapacity,
			fmt.Sprintf("%d escalations in flight, capacity %d", s.EscalationsActive+s.EscalationsPending, m.cfg.EscalationCapacity),
			nil)
	}
	if s.MeanResponseTime > m.cfg.ResponseTimeSLA {
		m.raise(ctx, AlertResponseTimeSLA,
			fmt.Sprintf("mean response time %s exceeds SLA %s", s.MeanResponseTime, m.cfg.ResponseTimeSLA),
			nil)
	}
	if s.SafetyScore < m.cfg.SafetyScoreFloor {
		m.raise(ctx, AlertLowSafetyScore,
			fmt.Sprintf("safety score %.1f below floor %.1f", s.SafetyScore, m.cfg.SafetyScoreFloor),
			nil)
	}
}

func (m *Monitor) raise(ctx context.Context, typ AlertType, message string, users []string) {
	if _, err := m.engine.Raise(ctx, typ, message, users); err != nil {
		m.logger.Error("safety alert emission failed", "error", err, "type", typ)
	}
}

func (m *Monitor) usersAtOrAbove(ctx context.Context, min risk.Severity) []string {
	events, err := m.engine.events.Recent(ctx, m.cfg.Window)
	if err != nil {
		return nil
	}
	userSeverity := make(map[string]risk.Severity)
	for _, evt := range events {
		if evt.Type != EventAssessmentCreated {
			continue
		}
		if severityRank(evt.Severity) > severityRank(userSeverity[evt.UserID]) {
			userSeverity[evt.UserID] = evt.Severity
		}
	}
	var out []string
	for userID, sev := range userSeverity {
		if severityRank(sev) >= severityRank(min) {
			out = append(out, userID)
		}
	}
	return out
}

func severityRank(s risk.Severity) int {
	switch s {
	case risk.SeverityLow:
		return 1
	case risk.SeverityMedium:
		return 2
	case risk.SeverityHigh:
		return 3
	case risk.SeverityCritical:
		return 4
	default:
		return 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
