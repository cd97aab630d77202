package safety

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AlertType names the condition an alert reports.
type AlertType string

const (
	AlertHighRiskUsers      AlertType = "high_risk_users"
	AlertCriticalRiskUsers  AlertType = "critical_risk_users"
	AlertEscalationCapacity AlertType = "escalation_capacity"
	AlertResponseTimeSLA    AlertType = "response_time_sla"
	AlertLowSafetyScore     AlertType = "low_safety_score"
	AlertEscalationManual   AlertType = "escalation_attention"
)

// ErrAlertNotFound is returned when an alert does not exist.
var ErrAlertNotFound = errors.New("safety alert not found")

// Alert is one operator-facing safety alert.
type Alert struct {
	ID             string     `json:"id"`
	Type           AlertType  `json:"type"`
	Message        string     `json:"message"`
	AffectedUsers  []string   `json:"affected_users,omitempty"`
	RaisedAt       time.Time  `json:"raised_at"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	Resolved       bool       `json:"resolved"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// AlertStore persists safety alerts.
type AlertStore interface {
	Create(ctx context.Context, alert *Alert) error
	Get(ctx context.Context, id string) (*Alert, error)
	ListSince(ctx context.Context, since time.Time) ([]*Alert, error)
	CountUnacknowledged(ctx context.Context) (int, error)
	Acknowledge(ctx context.Context, id, by string) (*Alert, error)
	Resolve(ctx context.Context, id, by string) (*Alert, error)
}

// InMemoryAlertStore keeps alerts in memory.
type InMemoryAlertStore struct {
	mu     sync.RWMutex
	alerts map[string]*Alert
	order  []string
	now    func() time.Time
}

// NewInMemoryAlertStore creates an empty alert store.
func NewInMemoryAlertStore() *InMemoryAlertStore {
	return &InMemoryAlertStore{
		alerts: make(map[string]*Alert),
		now:    time.Now,
	}
}

// Create inserts an alert, assigning id and timestamp when unset.
func (s *InMemoryAlertStore) Create(ctx context.Context, alert *Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.RaisedAt.IsZero() {
		alert.RaisedAt = s.now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *alert
	s.alerts[alert.ID] = &cp
	s.order = append(s.order, alert.ID)
	return nil
}

// Get fetches an alert by id.
func (s *InMemoryAlertStore) Get(ctx context.Context, id string) (*Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, ErrAlertNotFound
	}
	cp := *a
	return &cp, nil
}

// ListSince returns alerts raised at or after the cutoff, oldest first.
func (s *InMemoryAlertStore) ListSince(ctx context.Context, since time.Time) ([]*Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Alert
	for _, id := range s.order {
		a := s.alerts[id]
		if !a.RaisedAt.Before(since) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// CountUnacknowledged counts alerts not yet acknowledged or resolved.
func (s *InMemoryAlertStore) CountUnacknowledged(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.alerts {
		if !a.Acknowledged && !a.Resolved {
			n++
		}
	}
	return n, nil
}

// Acknowledge marks the alert acknowledged by an operator.
func (s *InMemoryAlertStore) Acknowledge(ctx context.Context, id, by string) (*Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, ErrAlertNotFound
	}
	now := s.now().UTC()
	a.Acknowledged = true
	a.AcknowledgedBy = by
	a.AcknowledgedAt = &now
	cp := *a
	return &cp, nil
}

// Resolve marks the alert resolved by an operator.
func (s *InMemoryAlertStore) Resolve(ctx context.Context, id, by string) (*Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, ErrAlertNotFound
	}
	now := s.now().UTC()
	a.Resolved = true
	a.ResolvedBy = by
	a.ResolvedAt = &now
	if !a.Acknowledged {
		a.Acknowledged = true
		a.AcknowledgedBy = by
		a.AcknowledgedAt = &now
	}
	cp := *a
	return &cp, nil
}
