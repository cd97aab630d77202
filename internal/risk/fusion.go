package risk

import (
	"time"

	"github.com/google/uuid"
)

// FusionWeights are the per-extractor weights used when combining analyses.
// The defaults are empirical; deployments tune them through configuration.
type FusionWeights struct {
	Lexical    float64
	Structural float64
	Contextual float64
	Behavioral float64
}

// DefaultFusionWeights returns the tuned production weights.
func DefaultFusionWeights() FusionWeights {
	return FusionWeights{
		Lexical:    0.4,
		Structural: 0.2,
		Contextual: 0.2,
		Behavioral: 0.2,
	}
}

// FusionEngine combines extractor analyses into a single Assessment.
// It is the only component that creates Assessments.
type FusionEngine struct {
	weights       FusionWeights
	minConfidence float64
}

// NewFusionEngine creates a fusion engine. minConfidence below which no
// assessment is produced; zero means the 0.3 default.
func NewFusionEngine(weights FusionWeights, minConfidence float64) *FusionEngine {
	if weights == (FusionWeights{}) {
		weights = DefaultFusionWeights()
	}
	if minConfidence <= 0 {
		minConfidence = 0.3
	}
	return &FusionEngine{weights: weights, minConfidence: minConfidence}
}

// Fuse combines the four analyses. Returns nil when the combined confidence
// stays under the floor, meaning no crisis was detected.
func (e *FusionEngine) Fuse(userID, sessionID string, lexical, structural, contextual, behavioral analysis) *Assessment {
	confidence := lexical.confidence*e.weights.Lexical +
		structural.confidence*e.weights.Structural +
		contextual.confidence*e.weights.Contextual +
		behavioral.confidence*e.weights.Behavioral
	if confidence > 1 {
		confidence = 1
	}
	if confidence < e.minConfidence {
		return nil
	}

	var indicators CrisisIndicators
	indicators.Merge(lexical.indicators)
	indicators.Merge(structural.indicators)
	indicators.Merge(contextual.indicators)
	indicators.Merge(behavioral.indicators)

	var factors []string
	factors = append(factors, lexical.riskFactors...)
	factors = append(factors, structural.riskFactors...)
	factors = append(factors, contextual.riskFactors...)
	factors = append(factors, behavioral.riskFactors...)

	assessment := &Assessment{
		ID:          uuid.NewString(),
		UserID:      userID,
		SessionID:   sessionID,
		Indicators:  indicators,
		Confidence:  confidence,
		DetectedAt:  time.Now().UTC(),
		RiskFactors: dedupeStrings(factors),
	}
	assessment.RecomputeSeverity()
	assessment.RecommendedActions = recommendedActions(assessment)
	return assessment
}

// recommendedActions derives the support actions collaborators should surface.
func recommendedActions(a *Assessment) []string {
	var actions []string
	switch a.Severity {
	case SeverityCritical:
		actions = append(actions,
			"provide_crisis_resources",
			"connect_crisis_professional",
			"display_emergency_contacts",
		)
	case SeverityHigh:
		actions = append(actions,
			"provide_crisis_resources",
			"offer_professional_support",
		)
	case SeverityMedium:
		actions = append(actions, "provide_crisis_resources")
	default:
		actions = append(actions, "continue_monitoring")
	}
	if a.Indicators.AcuteAnxiety {
		actions = append(actions, "offer_grounding_exercise")
	}
	if a.Indicators.DomesticViolence {
		actions = append(actions, "provide_domestic_violence_hotline")
	}
	return actions
}
