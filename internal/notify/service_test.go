package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSMS struct {
	to   []string
	body []string
	err  error
}

func (r *recordingSMS) SendSMS(_ context.Context, to, body string) error {
	r.to = append(r.to, to)
	r.body = append(r.body, body)
	return r.err
}

type recordingEmail struct {
	sent []EmailMessage
	err  error
}

func (r *recordingEmail) Send(_ context.Context, msg EmailMessage) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func TestSendUsesBothTransports(t *testing.T) {
	sms := &recordingSMS{}
	email := &recordingEmail{}
	svc := NewService(email, sms, nil)

	err := svc.Send(context.Background(), Recipient{Name: "Dr. Chen", Phone: "+15551234567", Email: "chen@example.org"}, Alert{
		EscalationID: "esc-1",
		UserID:       "u1",
		Severity:     "critical",
		Priority:     "emergency",
		Summary:      "immediate crisis response required",
	})
	require.NoError(t, err)

	require.Len(t, sms.to, 1)
	assert.Equal(t, "+15551234567", sms.to[0])
	assert.Contains(t, sms.body[0], "CRITICAL")
	assert.Contains(t, sms.body[0], "esc-1")

	require.Len(t, email.sent, 1)
	assert.Equal(t, "chen@example.org", email.sent[0].To)
	assert.Contains(t, email.sent[0].Subject, "critical")
}

func TestSendSkipsUnaddressableTransports(t *testing.T) {
	sms := &recordingSMS{}
	email := &recordingEmail{}
	svc := NewService(email, sms, nil)

	err := svc.Send(context.Background(), Recipient{Phone: "+15550000000"}, Alert{EscalationID: "esc-2", Severity: "high"})
	require.NoError(t, err)

	assert.Len(t, sms.to, 1)
	assert.Empty(t, email.sent)
}

func TestSendReportsPartialFailure(t *testing.T) {
	sms := &recordingSMS{err: errors.New("carrier rejected")}
	email := &recordingEmail{}
	svc := NewService(email, sms, nil)

	err := svc.Send(context.Background(), Recipient{Phone: "+15550000000", Email: "a@b.c"}, Alert{EscalationID: "esc-3", Severity: "high"})
	assert.Error(t, err)
	assert.Len(t, email.sent, 1, "email still attempted when SMS fails")
}

func TestSendWithNoTransportsIsNoop(t *testing.T) {
	svc := NewService(nil, nil, nil)
	err := svc.Send(context.Background(), Recipient{Phone: "+15550000000"}, Alert{EscalationID: "esc-4"})
	assert.NoError(t, err)
}
