// Package compliance provides the immutable audit trail required for crisis
// intervention record keeping.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEventType represents the type of audited action.
type AuditEventType string

const (
	// EventAssessmentSuppressed is logged when the false-positive filter
	// suppresses an assessment below the reporting threshold.
	EventAssessmentSuppressed AuditEventType = "crisis.assessment_suppressed"
	// EventEscalationCreated is logged when an escalation record is opened.
	EventEscalationCreated AuditEventType = "crisis.escalation_created"
	// EventEscalationResolved is logged when an escalation reaches a terminal state.
	EventEscalationResolved AuditEventType = "crisis.escalation_resolved"
	// EventProfessionalAssigned is logged when a responder takes a case.
	EventProfessionalAssigned AuditEventType = "crisis.professional_assigned"
	// EventEmergencyAccess is logged when a supervisor is granted emergency
	// access to a secure channel.
	EventEmergencyAccess AuditEventType = "security.emergency_access"
	// EventKeyRotated is logged when channel encryption keys are rotated.
	EventKeyRotated AuditEventType = "security.key_rotated"
	// EventResourcesSent is logged when crisis resource information is
	// delivered to a user.
	EventResourcesSent AuditEventType = "crisis.resources_sent"
)

// AuditEvent represents an immutable audit record.
type AuditEvent struct {
	ID           string          `json:"id"`
	EventType    AuditEventType  `json:"event_type"`
	UserID       string          `json:"user_id"`
	EscalationID string          `json:"escalation_id,omitempty"`
	ChannelID    string          `json:"channel_id,omitempty"`
	ActorID      string          `json:"actor_id,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// AuditDetails contains event-specific details.
type AuditDetails struct {
	// For assessment suppressed
	SuppressionReasons []string `json:"suppression_reasons,omitempty"`
	OriginalConfidence float64  `json:"original_confidence,omitempty"`
	FinalConfidence    float64  `json:"final_confidence,omitempty"`

	// For escalation lifecycle
	ProtocolID string `json:"protocol_id,omitempty"`
	Outcome    string `json:"outcome,omitempty"`

	// For professional assignment
	ProfessionalID string `json:"professional_id,omitempty"`

	// For emergency access
	AccessReason string `json:"access_reason,omitempty"`

	// For key rotation
	KeyID string `json:"key_id,omitempty"`

	// For resources sent
	ResourceLevel string `json:"resource_level,omitempty"`
}

// AuditService handles audit logging.
type AuditService struct {
	db *sql.DB
}

// NewAuditService creates a new audit service.
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

// LogEvent records an audit event.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO crisis_audit_events (
			id, event_type, user_id, escalation_id, channel_id,
			actor_id, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.UserID,
		nullString(event.EscalationID),
		nullString(event.ChannelID),
		nullString(event.ActorID),
		event.Details,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: failed to log audit event: %w", err)
	}

	return nil
}

// LogAssessmentSuppressed logs a filter suppression with the reasons that
// drove it. The message text itself is never stored.
func (s *AuditService) LogAssessmentSuppressed(ctx context.Context, userID string, reasons []string, original, final float64) error {
	details := AuditDetails{
		SuppressionReasons: reasons,
		OriginalConfidence: original,
		FinalConfidence:    final,
	}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType: EventAssessmentSuppressed,
		UserID:    userID,
		Details:   detailsJSON,
	})
}

// LogEscalationCreated logs the opening of an escalation record.
func (s *AuditService) LogEscalationCreated(ctx context.Context, userID, escalationID, protocolID string) error {
	details := AuditDetails{ProtocolID: protocolID}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType:    EventEscalationCreated,
		UserID:       userID,
		EscalationID: escalationID,
		Details:      detailsJSON,
	})
}

// LogEscalationResolved logs an escalation reaching a terminal state.
func (s *AuditService) LogEscalationResolved(ctx context.Context, userID, escalationID, outcome, actorID string) error {
	details := AuditDetails{Outcome: outcome}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType:    EventEscalationResolved,
		UserID:       userID,
		EscalationID: escalationID,
		ActorID:      actorID,
		Details:      detailsJSON,
	})
}

// LogProfessionalAssigned logs a responder taking a case.
func (s *AuditService) LogProfessionalAssigned(ctx context.Context, userID, escalationID, professionalID string) error {
	details := AuditDetails{ProfessionalID: professionalID}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType:    EventProfessionalAssigned,
		UserID:       userID,
		EscalationID: escalationID,
		Details:      detailsJSON,
	})
}

// LogEmergencyAccess logs a supervisor being granted access to a channel.
func (s *AuditService) LogEmergencyAccess(ctx context.Context, userID, channelID, actorID, reason string) error {
	details := AuditDetails{AccessReason: reason}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType: EventEmergencyAccess,
		UserID:    userID,
		ChannelID: channelID,
		ActorID:   actorID,
		Details:   detailsJSON,
	})
}

// LogKeyRotated logs a channel encryption key rotation.
func (s *AuditService) LogKeyRotated(ctx context.Context, actorID, keyID string) error {
	details := AuditDetails{KeyID: keyID}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType: EventKeyRotated,
		UserID:    "system",
		ActorID:   actorID,
		Details:   detailsJSON,
	})
}

// LogResourcesSent logs crisis resource information being delivered.
func (s *AuditService) LogResourcesSent(ctx context.Context, userID, level string) error {
	details := AuditDetails{ResourceLevel: level}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType: EventResourcesSent,
		UserID:    userID,
		Details:   detailsJSON,
	})
}

// QueryEvents retrieves audit events with filters.
func (s *AuditService) QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	query := `
		SELECT id, event_type, user_id, escalation_id, channel_id,
			   actor_id, details, created_at
		FROM crisis_audit_events
		WHERE user_id = $1
	`
	args := []interface{}{filter.UserID}
	argIdx := 2

	if filter.EscalationID != "" {
		query += fmt.Sprintf(" AND escalation_id = $%d", argIdx)
		args = append(args, filter.EscalationID)
		argIdx++
	}
	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, filter.EventType)
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var escalationID, channelID, actorID sql.NullString
		err := rows.Scan(
			&e.ID, &e.EventType, &e.UserID, &escalationID, &channelID,
			&actorID, &e.Details, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("compliance: failed to scan audit event: %w", err)
		}
		e.EscalationID = escalationID.String
		e.ChannelID = channelID.String
		e.ActorID = actorID.String
		events = append(events, e)
	}

	return events, nil
}

// AuditFilter specifies criteria for querying audit events.
type AuditFilter struct {
	UserID       string
	EscalationID string
	EventType    AuditEventType
	StartTime    time.Time
	EndTime      time.Time
	Limit        int
	Offset       int
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
