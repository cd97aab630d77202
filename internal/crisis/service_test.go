package crisis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/haven-crisis-platform/internal/comms"
	"github.com/wolfman30/haven-crisis-platform/internal/escalation"
	"github.com/wolfman30/haven-crisis-platform/internal/notify"
	"github.com/wolfman30/haven-crisis-platform/internal/responders"
	"github.com/wolfman30/haven-crisis-platform/internal/risk"
	"github.com/wolfman30/haven-crisis-platform/internal/safety"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Alert
}

func (n *recordingNotifier) Send(ctx context.Context, rcpt notify.Recipient, alert notify.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, alert)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fixture struct {
	svc      *Service
	records  *escalation.InMemoryRecordStore
	repo     *responders.InMemoryRepository
	orch     *escalation.Orchestrator
	notifier *recordingNotifier
	safety   *safety.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	pipeline := risk.NewPipeline(risk.PipelineConfig{}, nil, nil, nil, nil)

	catalog := escalation.DefaultCatalog()
	protoMatcher := escalation.NewMatcher(catalog, nil)

	repo := responders.NewInMemoryRepository()
	require.NoError(t, repo.Upsert(context.Background(), &responders.Professional{
		ID:           "p1",
		Name:         "On-call Counselor",
		Specialties:  []string{"suicide_prevention", "self_harm"},
		Languages:    []string{"en"},
		MaxCases:     5,
		CrisisRating: 9,
		Status:       responders.StatusActive,
		Availability: responders.AvailabilityAvailable,
		Phone:        "+15550002222",
		Email:        "oncall@example.org",
	}))
	matcher := responders.NewMatcher(repo, nil, nil)

	keyring, err := comms.NewKeyring()
	require.NoError(t, err)
	channels := comms.NewService(keyring, time.Hour, nil, nil)

	engine := safety.NewEngine(safety.NewInMemoryEventStore(0), safety.NewInMemoryAlertStore(), nil, 15*time.Minute, nil, nil)

	notifier := &recordingNotifier{}
	exec := escalation.NewActionExecutor(notifier, matcher, repo, channels, engine, engine, nil,
		notify.Recipient{Name: "Crisis Team", Phone: "+15550001111", Email: "team@example.org"}, nil)
	records := escalation.NewInMemoryRecordStore()
	orch := escalation.NewOrchestrator(records, exec, escalation.OrchestratorConfig{}, nil, nil)

	svc := NewService(Config{
		Pipeline:     pipeline,
		Protocols:    protoMatcher,
		Orchestrator: orch,
		Safety:       engine,
	})
	return &fixture{
		svc:      svc,
		records:  records,
		repo:     repo,
		orch:     orch,
		notifier: notifier,
		safety:   engine,
	}
}

func TestHandleMessageCriticalEscalates(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.HandleMessage(context.Background(), MessageRequest{
		UserID:    "u1",
		SessionID: "s1",
		Message:   "I want to kill myself tonight",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Assessment)
	assert.Equal(t, risk.SeverityCritical, result.Assessment.Severity)
	assert.Equal(t, "emergency-critical", result.ProtocolID)
	require.NotNil(t, result.Escalation)

	f.orch.Wait()

	rec, err := f.records.Get(context.Background(), result.Escalation.ID)
	require.NoError(t, err)
	assert.True(t, rec.Terminal())
	assert.Positive(t, f.notifier.count())
}

func TestHandleMessageBenignDoesNothing(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.HandleMessage(context.Background(), MessageRequest{
		UserID:    "u1",
		SessionID: "s1",
		Message:   "what time does the pharmacy close",
	})
	require.NoError(t, err)
	assert.Nil(t, result.Assessment)
	assert.Nil(t, result.Escalation)

	records, err := f.records.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHandleMessageBelowThresholdNoEscalation(t *testing.T) {
	f := newFixture(t)

	// Anxious but not matching any protocol's conditions strongly enough.
	result, err := f.svc.HandleMessage(context.Background(), MessageRequest{
		UserID:    "u2",
		SessionID: "s2",
		Message:   "I feel so hopeless and empty lately, everything is pointless",
	})
	require.NoError(t, err)
	if result.Assessment == nil {
		t.Skip("message suppressed before protocol matching")
	}
	if result.Escalation == nil {
		assert.Empty(t, result.ProtocolID)
	}
}

func TestHandleMessageRequiresUserAndMessage(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.HandleMessage(context.Background(), MessageRequest{UserID: "u1"})
	assert.Error(t, err)

	_, err = f.svc.HandleMessage(context.Background(), MessageRequest{Message: "hello"})
	assert.Error(t, err)
}

func TestResolveRecordsOutcome(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.HandleMessage(context.Background(), MessageRequest{
		UserID:    "u1",
		SessionID: "s1",
		Message:   "I want to kill myself",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Escalation)
	f.orch.Wait()

	rec, err := f.svc.Resolve(context.Background(), result.Escalation.ID, "user safe, case closed", "op-1")
	if err != nil {
		// The run already reached a terminal state; resolving again must
		// report that rather than silently rewriting history.
		assert.ErrorIs(t, err, escalation.ErrTerminal)
		return
	}
	assert.Equal(t, escalation.StatusResolved, rec.Status)
}
