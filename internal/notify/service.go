package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/haven-crisis-platform/pkg/logging"
)

// SMSSender sends SMS messages to responders and staff.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Alert is one crisis notification to be delivered.
type Alert struct {
	EscalationID string
	UserID       string
	Severity     string
	Priority     string
	Summary      string
}

// Recipient is where an Alert should go. Either field may be empty; the
// service sends over whichever transports are addressable.
type Recipient struct {
	Name  string
	Phone string
	Email string
}

// Service delivers crisis alerts over SMS and email. Both transports are
// attempted independently; a partial delivery still reports the failures.
type Service struct {
	email  EmailSender
	sms    SMSSender
	logger *logging.Logger
}

// NewService creates a notification service. Either sender may be nil.
func NewService(email EmailSender, sms SMSSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:  email,
		sms:    sms,
		logger: logger.WithComponent("notify"),
	}
}

// Send delivers the alert to one recipient over every addressable transport.
func (s *Service) Send(ctx context.Context, rcpt Recipient, alert Alert) error {
	var errs []error

	if s.sms != nil && rcpt.Phone != "" {
		body := fmt.Sprintf("CRISIS ALERT [%s/%s]: %s. Escalation %s. Respond immediately.",
			strings.ToUpper(alert.Severity), alert.Priority, alert.Summary, alert.EscalationID)
		if err := s.sms.SendSMS(ctx, rcpt.Phone, body); err != nil {
			s.logger.Error("crisis SMS failed", "error", err, "to", rcpt.Phone, "escalation_id", alert.EscalationID)
			errs = append(errs, err)
		} else {
			s.logger.Info("crisis SMS sent", "to", rcpt.Phone, "escalation_id", alert.EscalationID)
		}
	}

	if s.email != nil && rcpt.Email != "" {
		msg := EmailMessage{
			To:      rcpt.Email,
			ToName:  rcpt.Name,
			Subject: fmt.Sprintf("Crisis alert: %s severity escalation %s", alert.Severity, alert.EscalationID),
			Body: fmt.Sprintf(`A crisis escalation requires your attention.

Escalation: %s
Severity: %s
Priority: %s
Summary: %s

Open the responder console to acknowledge and respond.`,
				alert.EscalationID, alert.Severity, alert.Priority, alert.Summary),
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("crisis email failed", "error", err, "to", rcpt.Email, "escalation_id", alert.EscalationID)
			errs = append(errs, err)
		} else {
			s.logger.Info("crisis email sent", "to", rcpt.Email, "escalation_id", alert.EscalationID)
		}
	}

	if s.sms == nil && s.email == nil {
		s.logger.Warn("no notification transport configured", "escalation_id", alert.EscalationID)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d delivery failure(s)", len(errs))
	}
	return nil
}

// SimpleSMSSender adapts a raw send function into an SMSSender.
type SimpleSMSSender struct {
	sendFunc func(ctx context.Context, to, from, body string) error
	from     string
	logger   *logging.Logger
}

// NewSimpleSMSSender creates an SMS sender with a custom send function.
func NewSimpleSMSSender(from string, sendFunc func(ctx context.Context, to, from, body string) error, logger *logging.Logger) *SimpleSMSSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &SimpleSMSSender{
		sendFunc: sendFunc,
		from:     from,
		logger:   logger,
	}
}

// SendSMS sends an SMS message.
func (s *SimpleSMSSender) SendSMS(ctx context.Context, to, body string) error {
	if s.sendFunc == nil {
		s.logger.Warn("notify: SMS sender not configured")
		return nil
	}
	return s.sendFunc(ctx, to, s.from, body)
}

// StubSMSSender is a no-op sender for testing.
type StubSMSSender struct {
	logger *logging.Logger
}

// NewStubSMSSender creates a stub SMS sender.
func NewStubSMSSender(logger *logging.Logger) *StubSMSSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubSMSSender{logger: logger}
}

// SendSMS logs but doesn't send.
func (s *StubSMSSender) SendSMS(ctx context.Context, to, body string) error {
	s.logger.Info("stub SMS sender: would send", "to", to, "body_preview", truncate(body, 50))
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Ensure interface compliance
var _ SMSSender = (*SimpleSMSSender)(nil)
var _ SMSSender = (*StubSMSSender)(nil)
