// Package risk implements crisis risk assessment over inbound user messages:
// independent signal extractors, a weighted fusion engine, and a
// false-positive filter that together produce calibrated Assessments.
package risk

import (
	"time"
)

// Severity represents the assessed crisis severity level.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// CrisisIndicators is the fixed set of named crisis flags plus open-ended tags.
// Flags are OR-combined across extractors and never reset within an assessment.
type CrisisIndicators struct {
	SuicideIdeation  bool     `json:"suicide_ideation"`
	SelfHarm         bool     `json:"self_harm"`
	SevereDepression bool     `json:"severe_depression"`
	AcuteAnxiety     bool     `json:"acute_anxiety"`
	SubstanceAbuse   bool     `json:"substance_abuse"`
	EatingDisorder   bool     `json:"eating_disorder"`
	DomesticViolence bool     `json:"domestic_violence"`
	Other            []string `json:"other,omitempty"`
}

// Merge ORs the flags of other into the receiver and appends unseen tags.
func (c *CrisisIndicators) Merge(other CrisisIndicators) {
	c.SuicideIdeation = c.SuicideIdeation || other.SuicideIdeation
	c.SelfHarm = c.SelfHarm || other.SelfHarm
	c.SevereDepression = c.SevereDepression || other.SevereDepression
	c.AcuteAnxiety = c.AcuteAnxiety || other.AcuteAnxiety
	c.SubstanceAbuse = c.SubstanceAbuse || other.SubstanceAbuse
	c.EatingDisorder = c.EatingDisorder || other.EatingDisorder
	c.DomesticViolence = c.DomesticViolence || other.DomesticViolence
	for _, tag := range other.Other {
		if !containsString(c.Other, tag) {
			c.Other = append(c.Other, tag)
		}
	}
}

// Count returns the number of distinct indicators: named flags plus
// open-ended tags. Tags count because corroborating secondary signals are
// exactly what pushes a borderline assessment past low severity.
func (c CrisisIndicators) Count() int {
	n := len(c.Other)
	for _, set := range []bool{
		c.SuicideIdeation, c.SelfHarm, c.SevereDepression, c.AcuteAnxiety,
		c.SubstanceAbuse, c.EatingDisorder, c.DomesticViolence,
	} {
		if set {
			n++
		}
	}
	return n
}

// Has reports whether the named indicator flag is set. Names match the
// trigger-condition vocabulary used by escalation protocols.
func (c CrisisIndicators) Has(name string) bool {
	switch name {
	case "suicide_ideation":
		return c.SuicideIdeation
	case "self_harm":
		return c.SelfHarm
	case "severe_depression":
		return c.SevereDepression
	case "acute_anxiety":
		return c.AcuteAnxiety
	case "substance_abuse":
		return c.SubstanceAbuse
	case "eating_disorder":
		return c.EatingDisorder
	case "domestic_violence":
		return c.DomesticViolence
	default:
		return containsString(c.Other, name)
	}
}

// Assessment is the fused, filtered output of the risk pipeline.
// Created only by the FusionEngine; the FalsePositiveFilter may lower
// Confidence (never raise it) and must recompute Severity when it does.
type Assessment struct {
	ID                 string           `json:"id"`
	UserID             string           `json:"user_id"`
	SessionID          string           `json:"session_id"`
	Indicators         CrisisIndicators `json:"indicators"`
	Severity           Severity         `json:"severity"`
	Confidence         float64          `json:"confidence"`
	DetectedAt         time.Time        `json:"detected_at"`
	RiskFactors        []string         `json:"risk_factors,omitempty"`
	RecommendedActions []string         `json:"recommended_actions,omitempty"`
	Immediate          bool             `json:"immediate"`
}

// RecomputeSeverity refreshes Severity and Immediate from the current
// confidence and indicators. Must be called after any confidence change.
func (a *Assessment) RecomputeSeverity() {
	a.Severity = computeSeverity(a.Confidence, a.Indicators)
	a.Immediate = a.Confidence > 0.8 || a.Severity == SeverityCritical
}

// computeSeverity maps confidence and indicators to a severity level.
// Suicide ideation or self-harm always yields critical regardless of
// confidence: a missed critical is far more costly than a spurious one.
func computeSeverity(confidence float64, ind CrisisIndicators) Severity {
	if ind.SuicideIdeation || ind.SelfHarm {
		return SeverityCritical
	}
	if confidence > 0.8 || ind.Count() >= 3 {
		return SeverityHigh
	}
	if confidence > 0.6 || ind.Count() >= 2 {
		return SeverityMedium
	}
	return SeverityLow
}

// SessionMetadata carries behavioral context for one conversation session.
type SessionMetadata struct {
	Hour              int           `json:"hour"`
	MessagesPerMinute float64       `json:"messages_per_minute"`
	SessionDuration   time.Duration `json:"session_duration"`
}

// AnalysisInput is everything the pipeline consumes for one message.
type AnalysisInput struct {
	UserID    string
	SessionID string
	Message   string
	// History holds recent conversation turns, most-recent-last.
	History []string
	Session SessionMetadata
}

// analysis is a single extractor's partial contribution.
type analysis struct {
	confidence  float64
	indicators  CrisisIndicators
	riskFactors []string
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func dedupeStrings(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, v := range list {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
