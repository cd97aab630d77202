package safety

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/haven-crisis-platform/internal/risk"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(NewInMemoryEventStore(0), NewInMemoryAlertStore(), nil, 15*time.Minute, nil, nil)
}

func TestRaiseCreatesAlert(t *testing.T) {
	e := newTestEngine(t)

	alert, err := e.Raise(context.Background(), AlertCriticalRiskUsers, "1 user at critical risk", []string{"u1"})
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, AlertCriticalRiskUsers, alert.Type)
	assert.Equal(t, []string{"u1"}, alert.AffectedUsers)
	assert.False(t, alert.Acknowledged)
}

func TestRaiseSuppressesOverlappingUsersWithinCooldown(t *testing.T) {
	e := newTestEngine(t)

	first, err := e.Raise(context.Background(), AlertCriticalRiskUsers, "first", []string{"u1", "u2"})
	require.NoError(t, err)
	require.NotNil(t, first)

	// Overlapping user set, same type: suppressed.
	dup, err := e.Raise(context.Background(), AlertCriticalRiskUsers, "dup", []string{"u2", "u3"})
	require.NoError(t, err)
	assert.Nil(t, dup)

	// Disjoint user set, same type: raised.
	other, err := e.Raise(context.Background(), AlertCriticalRiskUsers, "other", []string{"u9"})
	require.NoError(t, err)
	assert.NotNil(t, other)

	// Same users, different type: raised.
	diffType, err := e.Raise(context.Background(), AlertHighRiskUsers, "different type", []string{"u1"})
	require.NoError(t, err)
	assert.NotNil(t, diffType)
}

func TestSystemWideAlertsDedupeByTypeAlone(t *testing.T) {
	e := newTestEngine(t)

	first, err := e.Raise(context.Background(), AlertLowSafetyScore, "score 55", nil)
	require.NoError(t, err)
	require.NotNil(t, first)

	dup, err := e.Raise(context.Background(), AlertLowSafetyScore, "score 54", nil)
	require.NoError(t, err)
	assert.Nil(t, dup)
}

func TestRaiseAfterCooldownExpires(t *testing.T) {
	events := NewInMemoryEventStore(0)
	alerts := NewInMemoryAlertStore()
	gate := NewLocalGate()
	e := NewEngine(events, alerts, gate, 15*time.Minute, nil, nil)

	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return base }
	alerts.now = func() time.Time { return base }
	gate.now = func() time.Time { return base }

	first, err := e.Raise(context.Background(), AlertResponseTimeSLA, "slow", nil)
	require.NoError(t, err)
	require.NotNil(t, first)

	later := base.Add(16 * time.Minute)
	e.now = func() time.Time { return later }
	alerts.now = func() time.Time { return later }
	gate.now = func() time.Time { return later }

	second, err := e.Raise(context.Background(), AlertResponseTimeSLA, "still slow", nil)
	require.NoError(t, err)
	assert.NotNil(t, second)
}

func TestAcknowledgeAndResolve(t *testing.T) {
	e := newTestEngine(t)

	alert, err := e.Raise(context.Background(), AlertEscalationCapacity, "over capacity", nil)
	require.NoError(t, err)
	require.NotNil(t, alert)

	acked, err := e.Acknowledge(context.Background(), alert.ID, "op-1")
	require.NoError(t, err)
	assert.True(t, acked.Acknowledged)
	assert.Equal(t, "op-1", acked.AcknowledgedBy)

	resolved, err := e.ResolveAlert(context.Background(), alert.ID, "op-1")
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)

	_, err = e.Acknowledge(context.Background(), "missing", "op-1")
	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestRedisGateSharesCooldownWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	gate := NewRedisGate(client, nil)

	ok, err := gate.Allow(context.Background(), "response_time_sla", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gate.Allow(context.Background(), "response_time_sla", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second firing within TTL must be gated")

	mr.FastForward(2 * time.Minute)
	ok, err = gate.Allow(context.Background(), "response_time_sla", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "cooldown expires with the TTL")
}

func TestRedisGateFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	gate := NewRedisGate(client, nil)
	ok, err := gate.Allow(context.Background(), "high_risk_users", time.Minute)
	assert.Error(t, err)
	assert.True(t, ok, "a broken gate must not swallow safety alerts")
}

func TestEventStoreProfiles(t *testing.T) {
	store := NewInMemoryEventStore(0)
	e := NewEngine(store, NewInMemoryAlertStore(), nil, time.Minute, nil, nil)

	e.RecordAssessment(context.Background(), &risk.Assessment{UserID: "u1", Severity: risk.SeverityHigh})
	e.RecordAssessment(context.Background(), &risk.Assessment{UserID: "u1", Severity: risk.SeverityCritical})
	e.RecordAssignment(context.Background(), "u1", 4*time.Minute)

	profile, ok := store.Profile(context.Background(), "u1")
	require.True(t, ok)
	assert.Equal(t, 2, profile.AssessmentCount)
	assert.Equal(t, risk.SeverityCritical, profile.LastSeverity)

	events, err := store.Recent(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}
