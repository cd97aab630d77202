// Package crisis ties the assessment pipeline, protocol matching and
// escalation together into the single entry point the message path calls.
package crisis

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/haven-crisis-platform/internal/compliance"
	"github.com/wolfman30/haven-crisis-platform/internal/escalation"
	"github.com/wolfman30/haven-crisis-platform/internal/risk"
	"github.com/wolfman30/haven-crisis-platform/internal/safety"
	"github.com/wolfman30/haven-crisis-platform/pkg/logging"
)

var tracer = otel.Tracer("haven/crisis")

// Service runs one inbound message through assessment, protocol matching and
// escalation. Escalation itself proceeds asynchronously; HandleMessage
// returns as soon as the escalation record exists.
type Service struct {
	pipeline  *risk.Pipeline
	protocols *escalation.Matcher
	orch      *escalation.Orchestrator
	safety    *safety.Engine
	audit     *compliance.AuditService
	resources *compliance.ResourceService
	logger    *logging.Logger
}

// Config carries the collaborators for a crisis Service. Safety, audit and
// resources may be nil.
type Config struct {
	Pipeline     *risk.Pipeline
	Protocols    *escalation.Matcher
	Orchestrator *escalation.Orchestrator
	Safety       *safety.Engine
	Audit        *compliance.AuditService
	Resources    *compliance.ResourceService
	Logger       *logging.Logger
}

// NewService wires the crisis service.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		pipeline:  cfg.Pipeline,
		protocols: cfg.Protocols,
		orch:      cfg.Orchestrator,
		safety:    cfg.Safety,
		audit:     cfg.Audit,
		resources: cfg.Resources,
		logger:    logger.WithComponent("crisis"),
	}
}

// MessageRequest is one inbound user message with its conversational context.
type MessageRequest struct {
	UserID    string               `json:"user_id"`
	SessionID string               `json:"session_id"`
	Message   string               `json:"message"`
	History   []string             `json:"history,omitempty"`
	Session   risk.SessionMetadata `json:"session,omitempty"`
}

// MessageResult reports what the crisis path did with one message.
type MessageResult struct {
	Assessment *risk.Assessment   `json:"assessment,omitempty"`
	Escalation *escalation.Record `json:"escalation,omitempty"`
	ProtocolID string             `json:"protocol_id,omitempty"`
	MatchScore float64            `json:"match_score,omitempty"`
	// Guidance is user-facing crisis resource text, set whenever an
	// assessment was produced.
	Guidance string `json:"guidance,omitempty"`
}

// HandleMessage assesses one message and, when a protocol matches, begins the
// escalation. A result with a nil Assessment means no crisis was detected.
func (s *Service) HandleMessage(ctx context.Context, req MessageRequest) (*MessageResult, error) {
	ctx, span := tracer.Start(ctx, "crisis.handle_message")
	defer span.End()
	span.SetAttributes(attribute.String("crisis.user_id", req.UserID))

	if req.UserID == "" || req.Message == "" {
		return nil, fmt.Errorf("crisis: user_id and message are required")
	}

	assessment, err := s.pipeline.Analyze(ctx, risk.AnalysisInput{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Message:   req.Message,
		History:   req.History,
		Session:   req.Session,
	})
	if err != nil {
		return nil, fmt.Errorf("crisis: analyze message: %w", err)
	}
	if assessment == nil {
		return &MessageResult{}, nil
	}

	if s.safety != nil {
		s.safety.RecordAssessment(ctx, assessment)
	}

	result := &MessageResult{Assessment: assessment}
	if s.resources != nil {
		result.Guidance = s.resources.Apply(ctx, req.UserID, "")
	}

	protocol, score, ok := s.protocols.Match(assessment)
	if !ok {
		s.logger.Info("assessment below protocol thresholds",
			"assessment_id", assessment.ID,
			"user_id", req.UserID,
			"severity", assessment.Severity,
		)
		return result, nil
	}
	result.ProtocolID = protocol.ID
	result.MatchScore = score

	rec, err := s.orch.Begin(ctx, assessment, protocol)
	if err != nil {
		return nil, fmt.Errorf("crisis: begin escalation: %w", err)
	}
	result.Escalation = rec

	if s.safety != nil {
		s.safety.RecordEscalationStarted(ctx, rec, assessment.Severity)
	}
	if s.audit != nil {
		if err := s.audit.LogEscalationCreated(ctx, req.UserID, rec.ID, protocol.ID); err != nil {
			s.logger.Error("escalation audit write failed", "error", err, "escalation_id", rec.ID)
		}
	}
	return result, nil
}

// Resolve closes an escalation on operator authority and records the outcome.
func (s *Service) Resolve(ctx context.Context, escalationID, outcome, actorID string) (*escalation.Record, error) {
	rec, err := s.orch.Resolve(ctx, escalationID, outcome)
	if err != nil {
		return nil, err
	}
	if s.safety != nil {
		s.safety.RecordEscalationResolved(ctx, rec)
	}
	if s.audit != nil {
		if err := s.audit.LogEscalationResolved(ctx, rec.UserID, rec.ID, outcome, actorID); err != nil {
			s.logger.Error("resolution audit write failed", "error", err, "escalation_id", rec.ID)
		}
	}
	return rec, nil
}
