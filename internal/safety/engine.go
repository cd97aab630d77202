package safety

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"

	"github.com/wolfman30/haven-crisis-platform/internal/escalation"
	"github.com/wolfman30/haven-crisis-platform/internal/observability/metrics"
	"github.com/wolfman30/haven-crisis-platform/internal/risk"
	"github.com/wolfman30/haven-crisis-platform/pkg/logging"
)

// Engine records safety events and owns alert emission with de-duplication:
// an alert of the same type with overlapping affected users inside the
// cooldown window is suppressed.
type Engine struct {
	events   EventStore
	alerts   AlertStore
	gate     CooldownGate
	cooldown time.Duration
	metrics  *metrics.CrisisMetrics
	logger   *logging.Logger
	now      func() time.Time
}

// NewEngine wires the safety engine. gate may be nil (local fallback).
func NewEngine(events EventStore, alerts AlertStore, gate CooldownGate, cooldown time.Duration, m *metrics.CrisisMetrics, logger *logging.Logger) *Engine {
	if gate == nil {
		gate = NewLocalGate()
	}
	if cooldown <= 0 {
		cooldown = 15 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		events:   events,
		alerts:   alerts,
		gate:     gate,
		cooldown: cooldown,
		metrics:  m,
		logger:   logger.WithComponent("safety"),
		now:      time.Now,
	}
}

// RecordAssessment feeds a produced assessment into the stream.
func (e *Engine) RecordAssessment(ctx context.Context, a *risk.Assessment) {
	e.append(ctx, Event{Type: EventAssessmentCreated, UserID: a.UserID, Severity: a.Severity})
}

// RecordEscalationStarted feeds an escalation start into the stream.
func (e *Engine) RecordEscalationStarted(ctx context.Context, rec *escalation.Record, severity risk.Severity) {
	e.append(ctx, Event{Type: EventEscalationStarted, UserID: rec.UserID, Severity: severity})
}

// RecordEscalationResolved feeds an escalation terminal state into the stream.
func (e *Engine) RecordEscalationResolved(ctx context.Context, rec *escalation.Record) {
	e.append(ctx, Event{Type: EventEscalationResolved, UserID: rec.UserID})
}

// RecordAssignment feeds a responder assignment with its response estimate.
func (e *Engine) RecordAssignment(ctx context.Context, userID string, responseTime time.Duration) {
	e.append(ctx, Event{Type: EventResponderAssigned, UserID: userID, ResponseTime: responseTime})
}

func (e *Engine) append(ctx context.Context, evt Event) {
	if err := e.events.Append(ctx, evt); err != nil {
		e.logger.Error("safety event append failed", "error", err, "type", evt.Type)
	}
}

// RaiseManual lets escalation steps raise operator alerts directly.
func (e *Engine) RaiseManual(ctx context.Context, alertType, message string, userIDs []string) error {
	_, err := e.Raise(ctx, AlertType(alertType), message, userIDs)
	return err
}

// Raise emits an alert unless a matching one fired within the cooldown.
// Returns the created alert, or nil when suppressed.
func (e *Engine) Raise(ctx context.Context, typ AlertType, message string, users []string) (*Alert, error) {
	since := e.now().UTC().Add(-e.cooldown)
	recent, err := e.alerts.ListSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("safety: list recent alerts: %w", err)
	}
	for _, prior := range recent {
		if prior.Type == typ && usersOverlap(prior.AffectedUsers, users) {
			e.metrics.ObserveSafetyAlert(string(typ), true)
			e.logger.Info("safety alert suppressed by cooldown",
				"type", typ,
				"overlapping_alert", prior.ID,
			)
			return nil, nil
		}
	}

	// Cross-node throttle; keyed so disjoint user sets stay independent.
	allowed, err := e.gate.Allow(ctx, gateKey(typ, users), e.cooldown)
	if err != nil {
		e.logger.Warn("cooldown gate degraded", "error", err)
	}
	if !allowed {
		e.metrics.ObserveSafetyAlert(string(typ), true)
		return nil, nil
	}

	alert := &Alert{
		Type:          typ,
		Message:       message,
		AffectedUsers: append([]string(nil), users...),
	}
	if err := e.alerts.Create(ctx, alert); err != nil {
		return nil, fmt.Errorf("safety: create alert: %w", err)
	}
	e.metrics.ObserveSafetyAlert(string(typ), false)
	e.logger.Warn("safety alert raised",
		"alert_id", alert.ID,
		"type", typ,
		"affected_users", len(users),
		"message", message,
	)
	return alert, nil
}

// Acknowledge marks an alert acknowledged.
func (e *Engine) Acknowledge(ctx context.Context, id, by string) (*Alert, error) {
	return e.alerts.Acknowledge(ctx, id, by)
}

// ResolveAlert marks an alert resolved.
func (e *Engine) ResolveAlert(ctx context.Context, id, by string) (*Alert, error) {
	return e.alerts.Resolve(ctx, id, by)
}

func usersOverlap(a, b []string) bool {
	// Alerts with no affected users are system-wide; same type alone dedupes.
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(a))
	for _, u := range a {
		set[u] = struct{}{}
	}
	for _, u := range b {
		if _, ok := set[u]; ok {
			return true
		}
	}
	return false
}

func gateKey(typ AlertType, users []string) string {
	if len(users) == 0 {
		return string(typ)
	}
	sorted := append([]string(nil), users...)
	sort.Strings(sorted)
	h := fnv.New64a()
	h.Write([]byte(strings.Join(sorted, ",")))
	return fmt.Sprintf("%s:%x", typ, h.Sum64())
}

var _ escalation.AlertSink = (*Engine)(nil)
