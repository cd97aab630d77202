package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/haven-crisis-platform/internal/comms"
	"github.com/wolfman30/haven-crisis-platform/internal/crisis"
	"github.com/wolfman30/haven-crisis-platform/internal/escalation"
	"github.com/wolfman30/haven-crisis-platform/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/haven-crisis-platform/internal/http/middleware"
	"github.com/wolfman30/haven-crisis-platform/internal/notify"
	"github.com/wolfman30/haven-crisis-platform/internal/responders"
	"github.com/wolfman30/haven-crisis-platform/internal/risk"
	"github.com/wolfman30/haven-crisis-platform/internal/safety"
)

const testSecret = "router-test-secret"

type routerFixture struct {
	handler http.Handler
	records *escalation.InMemoryRecordStore
	orch    *escalation.Orchestrator
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	pipeline := risk.NewPipeline(risk.PipelineConfig{}, nil, nil, nil, nil)
	catalog := escalation.DefaultCatalog()

	repo := responders.NewInMemoryRepository()
	require.NoError(t, repo.Upsert(context.Background(), &responders.Professional{
		ID:           "p1",
		Name:         "On-call Counselor",
		Specialties:  []string{"suicide_prevention"},
		MaxCases:     5,
		Status:       responders.StatusActive,
		Availability: responders.AvailabilityAvailable,
		Email:        "oncall@example.org",
	}))
	matcher := responders.NewMatcher(repo, nil, nil)

	keyring, err := comms.NewKeyring()
	require.NoError(t, err)
	channels := comms.NewService(keyring, time.Hour, nil, nil)

	events := safety.NewInMemoryEventStore(0)
	alerts := safety.NewInMemoryAlertStore()
	engine := safety.NewEngine(events, alerts, nil, 15*time.Minute, nil, nil)
	records := escalation.NewInMemoryRecordStore()
	monitor := safety.NewMonitor(engine, records, safety.MonitorConfig{}, nil)

	notifier := notify.NewService(notify.NewStubEmailSender(nil), notify.NewStubSMSSender(nil), nil)
	exec := escalation.NewActionExecutor(notifier, matcher, repo, channels, engine, engine, nil,
		notify.Recipient{Name: "Crisis Team", Email: "team@example.org"}, nil)
	orch := escalation.NewOrchestrator(records, exec, escalation.OrchestratorConfig{}, nil, nil)

	svc := crisis.NewService(crisis.Config{
		Pipeline:     pipeline,
		Protocols:    escalation.NewMatcher(catalog, nil),
		Orchestrator: orch,
		Safety:       engine,
	})

	handler := New(&Config{
		Messages:           handlers.NewMessageHandler(svc, nil),
		Channels:           handlers.NewChannelHandler(channels, nil),
		Protocols:          handlers.NewProtocolHandler(catalog, nil),
		Safety:             handlers.NewSafetyHandler(engine, monitor, alerts, nil),
		Escalations:        handlers.NewEscalationHandler(records, svc, nil),
		Security:           handlers.NewSecurityHandler(channels, nil, nil),
		Responders:         handlers.NewResponderHandler(repo, nil),
		OperatorAuthSecret: testSecret,
	})
	return &routerFixture{handler: handler, records: records, orch: orch}
}

func token(t *testing.T, role string) string {
	t.Helper()
	claims := httpmiddleware.OperatorClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "op-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestHealthEndpoint(t *testing.T) {
	f := newRouterFixture(t)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMessageEndpointEscalatesCritical(t *testing.T) {
	f := newRouterFixture(t)

	body := strings.NewReader(`{"user_id":"u1","session_id":"s1","message":"I want to kill myself"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", body)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result crisis.MessageResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotNil(t, result.Assessment)
	assert.Equal(t, risk.SeverityCritical, result.Assessment.Severity)
	assert.Equal(t, "emergency-critical", result.ProtocolID)
	require.NotNil(t, result.Escalation)

	f.orch.Wait()
	stored, err := f.records.Get(context.Background(), result.Escalation.ID)
	require.NoError(t, err)
	assert.True(t, stored.Terminal())
}

func TestMessageEndpointRejectsMissingFields(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(`{"user_id":"u1"}`))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRequiresToken(t *testing.T) {
	f := newRouterFixture(t)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/escalations", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOperatorCanListButNotMutateProtocols(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/protocols", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, httpmiddleware.RoleOperator))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPut, "/admin/protocols", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+token(t, httpmiddleware.RoleOperator))
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSupervisorCanRotateKeys(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/keys/rotate", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, httpmiddleware.RoleSupervisor))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["key_id"])
}

func TestChannelTranscriptRequiresReader(t *testing.T) {
	f := newRouterFixture(t)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/channels/nope/transcript", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
