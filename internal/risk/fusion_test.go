package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFusionBelowFloorProducesNoAssessment(t *testing.T) {
	engine := NewFusionEngine(DefaultFusionWeights(), 0.3)

	weak := analysis{confidence: 0.2}
	a := engine.Fuse("u1", "s1", weak, analysis{}, analysis{}, analysis{})
	assert.Nil(t, a)
}

func TestFusionCombinesWithWeights(t *testing.T) {
	engine := NewFusionEngine(DefaultFusionWeights(), 0.3)

	lexical := analysis{confidence: 0.9, riskFactors: []string{"lexical:suicide"}}
	structural := analysis{confidence: 0.3, riskFactors: []string{"pattern:end my life"}}
	a := engine.Fuse("u1", "s1", lexical, structural, analysis{}, analysis{})
	require.NotNil(t, a)

	// 0.9*0.4 + 0.3*0.2 = 0.42
	assert.InDelta(t, 0.42, a.Confidence, 0.001)
	assert.Equal(t, "u1", a.UserID)
	assert.Equal(t, "s1", a.SessionID)
	assert.NotEmpty(t, a.ID)
	assert.False(t, a.DetectedAt.IsZero())
}

func TestFusionORCombinesIndicators(t *testing.T) {
	engine := NewFusionEngine(DefaultFusionWeights(), 0.3)

	lexical := analysis{confidence: 0.9, indicators: CrisisIndicators{SevereDepression: true}}
	behavioral := analysis{confidence: 0.2, indicators: CrisisIndicators{AcuteAnxiety: true}}
	a := engine.Fuse("u1", "s1", lexical, analysis{}, analysis{}, behavioral)
	require.NotNil(t, a)

	assert.True(t, a.Indicators.SevereDepression)
	assert.True(t, a.Indicators.AcuteAnxiety)
}

func TestFusionDeduplicatesRiskFactors(t *testing.T) {
	engine := NewFusionEngine(DefaultFusionWeights(), 0.3)

	lexical := analysis{confidence: 0.9, riskFactors: []string{"lexical:crisis", "lexical:crisis"}}
	contextual := analysis{confidence: 0.5, riskFactors: []string{"lexical:crisis"}}
	a := engine.Fuse("u1", "s1", lexical, analysis{}, contextual, analysis{})
	require.NotNil(t, a)

	assert.Equal(t, []string{"lexical:crisis"}, a.RiskFactors)
}

func TestSeverityMapping(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		indicators CrisisIndicators
		want       Severity
	}{
		{
			name:       "suicide ideation is always critical",
			confidence: 0.31,
			indicators: CrisisIndicators{SuicideIdeation: true},
			want:       SeverityCritical,
		},
		{
			name:       "self harm is always critical",
			confidence: 0.31,
			indicators: CrisisIndicators{SelfHarm: true},
			want:       SeverityCritical,
		},
		{
			name:       "high confidence is high severity",
			confidence: 0.85,
			indicators: CrisisIndicators{},
			want:       SeverityHigh,
		},
		{
			name:       "three indicators are high severity",
			confidence: 0.35,
			indicators: CrisisIndicators{SevereDepression: true, AcuteAnxiety: true, SubstanceAbuse: true},
			want:       SeverityHigh,
		},
		{
			name:       "two indicators are medium severity",
			confidence: 0.35,
			indicators: CrisisIndicators{SevereDepression: true, AcuteAnxiety: true},
			want:       SeverityMedium,
		},
		{
			name:       "moderate confidence is medium severity",
			confidence: 0.65,
			indicators: CrisisIndicators{},
			want:       SeverityMedium,
		},
		{
			name:       "weak single signal is low severity",
			confidence: 0.35,
			indicators: CrisisIndicators{SevereDepression: true},
			want:       SeverityLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, computeSeverity(tt.confidence, tt.indicators))
		})
	}
}

func TestImmediateFlag(t *testing.T) {
	a := &Assessment{Confidence: 0.85}
	a.RecomputeSeverity()
	assert.True(t, a.Immediate, "confidence above 0.8 is immediate")

	a = &Assessment{Confidence: 0.4, Indicators: CrisisIndicators{SuicideIdeation: true}}
	a.RecomputeSeverity()
	assert.True(t, a.Immediate, "critical severity is immediate")

	a = &Assessment{Confidence: 0.5}
	a.RecomputeSeverity()
	assert.False(t, a.Immediate)
}

func TestIndicatorMerge(t *testing.T) {
	var ind CrisisIndicators
	ind.Merge(CrisisIndicators{SuicideIdeation: true, Other: []string{"rapid_messaging"}})
	ind.Merge(CrisisIndicators{AcuteAnxiety: true, Other: []string{"rapid_messaging"}})

	assert.True(t, ind.SuicideIdeation)
	assert.True(t, ind.AcuteAnxiety)
	assert.Equal(t, []string{"rapid_messaging"}, ind.Other)
	assert.Equal(t, 3, ind.Count())
}
