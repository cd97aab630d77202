package escalation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Status is the escalation record lifecycle state.
type Status string

const (
	StatusInitiated  Status = "initiated"
	StatusInProgress Status = "in_progress"
	StatusEscalated  Status = "escalated"
	StatusResolved   Status = "resolved"
	StatusFailed     Status = "failed"
)

var (
	// ErrRecordNotFound is returned when an escalation record does not exist.
	ErrRecordNotFound = errors.New("escalation record not found")

	// ErrTerminal is returned when resolving a record already in a terminal
	// state.
	ErrTerminal = errors.New("escalation already in terminal state")
)

// StepResult is one entry in a record's step-execution log, covering the
// primary attempt and any fallback.
type StepResult struct {
	StepID       string        `json:"step_id"`
	Action       Action        `json:"action"`
	Target       Target        `json:"target"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  time.Time     `json:"completed_at"`
	Success      bool          `json:"success"`
	FallbackUsed bool          `json:"fallback_used"`
	Error        string        `json:"error,omitempty"`
}

// Record is the run-time instance of an executing protocol. Owned by the
// orchestrator until it reaches a terminal status; read-only afterwards
// except for Resolve.
type Record struct {
	ID                     string        `json:"id"`
	UserID                 string        `json:"user_id"`
	SessionID              string        `json:"session_id"`
	AssessmentID           string        `json:"assessment_id"`
	ProtocolID             string        `json:"protocol_id"`
	Status                 Status        `json:"status"`
	Priority               Priority      `json:"priority"`
	CreatedAt              time.Time     `json:"created_at"`
	StartedAt              *time.Time    `json:"started_at,omitempty"`
	ResolvedAt             *time.Time    `json:"resolved_at,omitempty"`
	StepLog                []StepResult  `json:"step_log"`
	Outcome                string        `json:"outcome,omitempty"`
	Compliance             []string      `json:"compliance,omitempty"`
	AssignedProfessionalID string        `json:"assigned_professional_id,omitempty"`
	ChannelID              string        `json:"channel_id,omitempty"`
	EstimatedResponse      time.Duration `json:"estimated_response,omitempty"`
}

// Terminal reports whether the record has reached a final state.
func (r *Record) Terminal() bool {
	switch r.Status {
	case StatusEscalated, StatusResolved, StatusFailed:
		return true
	}
	return false
}

// RecordStore persists escalation records.
type RecordStore interface {
	Create(ctx context.Context, rec *Record) error
	Update(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context) ([]*Record, error)
}

// InMemoryRecordStore keeps records in memory. Safe for concurrent use.
type InMemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewInMemoryRecordStore creates an empty store.
func NewInMemoryRecordStore() *InMemoryRecordStore {
	return &InMemoryRecordStore{records: make(map[string]*Record)}
}

// Create inserts a record.
func (s *InMemoryRecordStore) Create(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

// Update replaces a record. A record that has reached a terminal status is
// immutable; overwriting it returns ErrTerminal, which is what stops an
// in-flight protocol run from resurrecting an operator resolution.
func (s *InMemoryRecordStore) Update(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[rec.ID]
	if !ok {
		return ErrRecordNotFound
	}
	if cur.Terminal() {
		return ErrTerminal
	}
	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

// Get fetches a record copy by id.
func (s *InMemoryRecordStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

// List returns copies of all records.
func (s *InMemoryRecordStore) List(ctx context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}
