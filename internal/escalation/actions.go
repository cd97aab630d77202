package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/haven-crisis-platform/internal/comms"
	"github.com/wolfman30/haven-crisis-platform/internal/notify"
	"github.com/wolfman30/haven-crisis-platform/internal/responders"
	"github.com/wolfman30/haven-crisis-platform/internal/risk"
	"github.com/wolfman30/haven-crisis-platform/pkg/logging"
)

// Notifier delivers a crisis alert to one recipient.
type Notifier interface {
	Send(ctx context.Context, rcpt notify.Recipient, alert notify.Alert) error
}

// ResponderMatcher ranks available responders for a crisis.
type ResponderMatcher interface {
	Match(ctx context.Context, criteria responders.Criteria) ([]responders.Match, error)
}

// ChannelEstablisher opens a secure channel between a user and a responder.
type ChannelEstablisher interface {
	Establish(ctx context.Context, userID, responderID string) (*comms.Channel, error)
}

// AlertSink accepts operator-facing safety alerts raised by escalation steps.
type AlertSink interface {
	RaiseManual(ctx context.Context, alertType, message string, userIDs []string) error
}

// EventRecorder receives responder assignment events for safety monitoring.
type EventRecorder interface {
	RecordAssignment(ctx context.Context, userID string, responseTime time.Duration)
}

// AssignmentAuditor writes the assignment to the compliance audit trail.
type AssignmentAuditor interface {
	LogProfessionalAssigned(ctx context.Context, userID, escalationID, professionalID string) error
}

// indicatorSpecialties maps crisis indicators to the responder specialties
// an assignment should prefer.
var indicatorSpecialties = map[string]string{
	"suicide_ideation":  "suicide_prevention",
	"self_harm":         "self_harm",
	"severe_depression": "depression",
	"acute_anxiety":     "anxiety",
	"substance_abuse":   "substance_abuse",
	"eating_disorder":   "eating_disorders",
	"domestic_violence": "domestic_violence",
}

// ActionExecutor performs individual escalation step actions. It is
// stateless; all outcome is written onto the Record by the caller's step
// loop via the mutations Execute applies.
type ActionExecutor struct {
	notifier Notifier
	matcher  ResponderMatcher
	repo     responders.Repository
	channels ChannelEstablisher
	alerts   AlertSink
	events   EventRecorder
	audit    AssignmentAuditor
	staff    notify.Recipient
	logger   *logging.Logger
}

// NewActionExecutor wires the executor. alerts, events and audit may be nil;
// staff is the crisis team / supervisor contact for notify, escalate and
// alert targets.
func NewActionExecutor(
	notifier Notifier,
	matcher ResponderMatcher,
	repo responders.Repository,
	channels ChannelEstablisher,
	alerts AlertSink,
	events EventRecorder,
	audit AssignmentAuditor,
	staff notify.Recipient,
	logger *logging.Logger,
) *ActionExecutor {
	if logger == nil {
		logger = logging.Default()
	}
	return &ActionExecutor{
		notifier: notifier,
		matcher:  matcher,
		repo:     repo,
		channels: channels,
		alerts:   alerts,
		events:   events,
		audit:    audit,
		staff:    staff,
		logger:   logger.WithComponent("escalation"),
	}
}

// Execute runs one step action. Assignment success mutates the record with
// the responder, channel and response estimate.
func (e *ActionExecutor) Execute(ctx context.Context, rec *Record, step Step, a *risk.Assessment) error {
	switch step.Action {
	case ActionNotify:
		return e.doNotify(ctx, rec, step, a)
	case ActionAssign:
		return e.doAssign(ctx, rec, step, a)
	case ActionEscalate:
		return e.doEscalate(ctx, rec, step, a)
	case ActionIntervene:
		return e.doIntervene(ctx, rec, step, a)
	case ActionAlert:
		return e.doAlert(ctx, rec, step, a)
	default:
		return fmt.Errorf("escalation: unknown step action %q", step.Action)
	}
}

// ReleaseAssignment frees the assigned professional's caseload slot once the
// escalation is closed.
func (e *ActionExecutor) ReleaseAssignment(ctx context.Context, professionalID string) error {
	if e.repo == nil || professionalID == "" {
		return nil
	}
	return e.repo.Release(ctx, professionalID)
}

func (e *ActionExecutor) alertFor(rec *Record, a *risk.Assessment, summary string) notify.Alert {
	return notify.Alert{
		EscalationID: rec.ID,
		UserID:       rec.UserID,
		Severity:     string(a.Severity),
		Priority:     string(rec.Priority),
		Summary:      summary,
	}
}

func (e *ActionExecutor) doNotify(ctx context.Context, rec *Record, step Step, a *risk.Assessment) error {
	rcpt := e.staff
	if step.Target == TargetProfessional && rec.AssignedProfessionalID != "" {
		p, err := e.repo.GetByID(ctx, rec.AssignedProfessionalID)
		if err != nil {
			return fmt.Errorf("escalation: notify assigned responder: %w", err)
		}
		rcpt = notify.Recipient{Name: p.Name, Phone: p.Phone, Email: p.Email}
	}
	summary := fmt.Sprintf("crisis support needed for user session %s", rec.SessionID)
	if err := e.notifier.Send(ctx, rcpt, e.alertFor(rec, a, summary)); err != nil {
		return fmt.Errorf("escalation: notify %s: %w", step.Target, err)
	}
	return nil
}

func (e *ActionExecutor) doAssign(ctx context.Context, rec *Record, step Step, a *risk.Assessment) error {
	criteria := responders.Criteria{Severity: a.Severity}
	for name, specialty := range indicatorSpecialties {
		if a.Indicators.Has(name) {
			criteria.Specialties = append(criteria.Specialties, specialty)
		}
	}
	if specialty := step.Metadata["specialty"]; specialty != "" {
		criteria.Specialties = append(criteria.Specialties, specialty)
	}

	matches, err := e.matcher.Match(ctx, criteria)
	if err != nil {
		return fmt.Errorf("escalation: match responder: %w", err)
	}

	for _, match := range matches {
		if err := e.repo.Assign(ctx, match.Professional.ID); err != nil {
			// Raced to capacity since ranking; try the next candidate.
			e.logger.Warn("assignment rejected, trying next candidate",
				"responder_id", match.Professional.ID,
				"error", err,
			)
			continue
		}

		rec.AssignedProfessionalID = match.Professional.ID
		rec.EstimatedResponse = match.EstimatedResponse

		ch, err := e.channels.Establish(ctx, rec.UserID, match.Professional.ID)
		if err != nil {
			// The assignment is void without a channel; give the slot back.
			if relErr := e.repo.Release(ctx, match.Professional.ID); relErr != nil {
				e.logger.Error("caseload release after failed channel",
					"responder_id", match.Professional.ID,
					"error", relErr,
				)
			}
			rec.AssignedProfessionalID = ""
			rec.EstimatedResponse = 0
			return fmt.Errorf("escalation: establish channel: %w", err)
		}
		rec.ChannelID = ch.ID

		rcpt := notify.Recipient{Name: match.Professional.Name, Phone: match.Professional.Phone, Email: match.Professional.Email}
		summary := fmt.Sprintf("you have been assigned crisis case %s, secure channel %s", rec.ID, ch.ID)
		if err := e.notifier.Send(ctx, rcpt, e.alertFor(rec, a, summary)); err != nil {
			// Assignment stands; the responder console still shows the case.
			e.logger.Error("assigned responder notification failed",
				"responder_id", match.Professional.ID,
				"error", err,
			)
		}
		if e.events != nil {
			e.events.RecordAssignment(ctx, rec.UserID, match.EstimatedResponse)
		}
		if e.audit != nil {
			if err := e.audit.LogProfessionalAssigned(ctx, rec.UserID, rec.ID, match.Professional.ID); err != nil {
				e.logger.Error("assignment audit write failed", "error", err, "escalation_id", rec.ID)
			}
		}
		e.logger.Info("responder assigned",
			"escalation_id", rec.ID,
			"responder_id", match.Professional.ID,
			"channel_id", ch.ID,
			"estimated_response", match.EstimatedResponse,
		)
		return nil
	}
	return responders.ErrNoCandidates
}

func (e *ActionExecutor) doEscalate(ctx context.Context, rec *Record, step Step, a *risk.Assessment) error {
	summary := fmt.Sprintf("escalating to %s: no responder assigned for %s severity crisis", step.Target, a.Severity)
	e.logger.Warn("escalating beyond responder pool",
		"escalation_id", rec.ID,
		"target", step.Target,
		"severity", a.Severity,
	)
	if err := e.notifier.Send(ctx, e.staff, e.alertFor(rec, a, summary)); err != nil {
		return fmt.Errorf("escalation: escalate to %s: %w", step.Target, err)
	}
	return nil
}

func (e *ActionExecutor) doIntervene(ctx context.Context, rec *Record, step Step, a *risk.Assessment) error {
	dispatch := step.Metadata["dispatch"]
	if dispatch == "" {
		dispatch = "welfare_check"
	}
	e.logger.Warn("intervention requested",
		"escalation_id", rec.ID,
		"user_id", rec.UserID,
		"dispatch", dispatch,
	)
	summary := fmt.Sprintf("INTERVENTION: dispatch %s for user in %s severity crisis, escalation %s", dispatch, a.Severity, rec.ID)
	if err := e.notifier.Send(ctx, e.staff, e.alertFor(rec, a, summary)); err != nil {
		return fmt.Errorf("escalation: intervene via %s: %w", step.Target, err)
	}
	return nil
}

func (e *ActionExecutor) doAlert(ctx context.Context, rec *Record, step Step, a *risk.Assessment) error {
	message := fmt.Sprintf("escalation %s requires %s attention (%s severity)", rec.ID, step.Target, a.Severity)
	if e.alerts != nil {
		if err := e.alerts.RaiseManual(ctx, "escalation_attention", message, []string{rec.UserID}); err != nil {
			return fmt.Errorf("escalation: raise alert: %w", err)
		}
	}
	if err := e.notifier.Send(ctx, e.staff, e.alertFor(rec, a, message)); err != nil {
		return fmt.Errorf("escalation: alert %s: %w", step.Target, err)
	}
	return nil
}
