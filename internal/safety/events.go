// Package safety aggregates assessment and escalation activity into rolling
// safety statistics and raises throttled operational alerts.
package safety

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/haven-crisis-platform/internal/risk"
)

// EventType names a safety-relevant occurrence.
type EventType string

const (
	EventAssessmentCreated  EventType = "assessment_created"
	EventEscalationStarted  EventType = "escalation_started"
	EventEscalationResolved EventType = "escalation_resolved"
	EventResponderAssigned  EventType = "responder_assigned"
)

// Event is one append-only entry in the safety stream.
type Event struct {
	ID           string        `json:"id"`
	Type         EventType     `json:"type"`
	UserID       string        `json:"user_id"`
	Severity     risk.Severity `json:"severity,omitempty"`
	ResponseTime time.Duration `json:"response_time,omitempty"`
	At           time.Time     `json:"at"`
}

// UserProfile is the per-user rolling risk view derived from the stream.
type UserProfile struct {
	UserID          string        `json:"user_id"`
	LastSeverity    risk.Severity `json:"last_severity"`
	AssessmentCount int           `json:"assessment_count"`
	LastEventAt     time.Time     `json:"last_event_at"`
}

// EventStore persists the safety event stream.
type EventStore interface {
	Append(ctx context.Context, evt Event) error
	Recent(ctx context.Context, window time.Duration) ([]Event, error)
	Profile(ctx context.Context, userID string) (*UserProfile, bool)
}

// InMemoryEventStore keeps a bounded window of events in memory.
type InMemoryEventStore struct {
	mu        sync.RWMutex
	events    []Event
	profiles  map[string]*UserProfile
	retention time.Duration
	now       func() time.Time
}

// NewInMemoryEventStore creates a store that retains events for the given
// window (24h when zero).
func NewInMemoryEventStore(retention time.Duration) *InMemoryEventStore {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &InMemoryEventStore{
		profiles:  make(map[string]*UserProfile),
		retention: retention,
		now:       time.Now,
	}
}

// Append records an event and updates the user's rolling profile.
func (s *InMemoryEventStore) Append(ctx context.Context, evt Event) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.At.IsZero() {
		evt.At = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune(evt.At)
	s.events = append(s.events, evt)

	if evt.UserID != "" {
		p, ok := s.profiles[evt.UserID]
		if !ok {
			p = &UserProfile{UserID: evt.UserID}
			s.profiles[evt.UserID] = p
		}
		if evt.Type == EventAssessmentCreated {
			p.AssessmentCount++
			p.LastSeverity = evt.Severity
		}
		p.LastEventAt = evt.At
	}
	return nil
}

// Recent returns events from the last window, oldest first.
func (s *InMemoryEventStore) Recent(ctx context.Context, window time.Duration) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().UTC().Add(-window)
	var out []Event
	for _, evt := range s.events {
		if evt.At.After(cutoff) {
			out = append(out, evt)
		}
	}
	return out, nil
}

// Profile returns the rolling profile for a user.
func (s *InMemoryEventStore) Profile(ctx context.Context, userID string) (*UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

func (s *InMemoryEventStore) prune(now time.Time) {
	cutoff := now.Add(-s.retention)
	idx := 0
	for idx < len(s.events) && !s.events[idx].At.After(cutoff) {
		idx++
	}
	if idx > 0 {
		s.events = append([]Event(nil), s.events[idx:]...)
	}
}
