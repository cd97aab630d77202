package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.InDelta(t, 0.4, cfg.FusionLexicalWeight, 0.001)
	assert.InDelta(t, 0.3, cfg.MinAssessmentConfidence, 0.001)
	assert.Equal(t, 24*time.Hour, cfg.ChannelTTL)
	assert.Equal(t, time.Minute, cfg.MonitorInterval)
	assert.Equal(t, 15*time.Minute, cfg.AlertCooldown)
	assert.InDelta(t, 0.10, cfg.HighRiskFractionLimit, 0.001)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("FUSION_LEXICAL_WEIGHT", "0.5")
	t.Setenv("MONITOR_INTERVAL", "30s")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("ESCALATION_CAPACITY", "75")

	cfg := Load()

	assert.Equal(t, "9999", cfg.Port)
	assert.InDelta(t, 0.5, cfg.FusionLexicalWeight, 0.001)
	assert.Equal(t, 30*time.Second, cfg.MonitorInterval)
	assert.True(t, cfg.RedisTLS)
	assert.Equal(t, 75, cfg.EscalationCapacity)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("FUSION_LEXICAL_WEIGHT", "not-a-number")
	t.Setenv("MONITOR_INTERVAL", "soon")
	t.Setenv("ESCALATION_CAPACITY", "many")

	cfg := Load()

	assert.InDelta(t, 0.4, cfg.FusionLexicalWeight, 0.001)
	assert.Equal(t, time.Minute, cfg.MonitorInterval)
	assert.Equal(t, 50, cfg.EscalationCapacity)
}
