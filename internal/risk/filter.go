package risk

import (
	"context"
	"regexp"

	"github.com/wolfman30/haven-crisis-platform/pkg/logging"
)

// Discount factors applied by the false-positive filter. They compound, in
// the fixed order negation → history → professional → hypothetical.
const (
	negationDiscount     = 0.3
	historyDiscount      = 0.7
	professionalDiscount = 0.5
	hypotheticalDiscount = 0.4

	// historyEvalThreshold: historical risk is only consulted for
	// high-confidence assessments, where a false positive is most costly.
	historyEvalThreshold = 0.7
	lowHistoricalRisk    = 0.3
)

// HistoryProvider reports a user's historical risk level in [0,1].
type HistoryProvider interface {
	HistoricalRisk(ctx context.Context, userID string) (float64, error)
}

// NeutralHistoryProvider always reports 0.5. It stands in until real
// longitudinal risk history is wired up, and deliberately never triggers the
// low-history discount.
type NeutralHistoryProvider struct{}

// HistoricalRisk returns the neutral midpoint.
func (NeutralHistoryProvider) HistoricalRisk(context.Context, string) (float64, error) {
	return 0.5, nil
}

var (
	negationPattern     = regexp.MustCompile(`(?i)\b(don'?t|do\s+not|never|wouldn'?t|would\s+not|no\s+longer|not\s+going\s+to)\s+(want\s+to\s+)?(hurt|kill|harm|cut)\b`)
	professionalPattern = regexp.MustCompile(`(?i)\b(my\s+)?(therapist|psychiatrist|psychologist|counselor|doctor)\b|\b(diagnos(is|ed)|treatment\s+plan|medication|therapy\s+session|prevention\s+strateg)`)
	hypotheticalPattern = regexp.MustCompile(`(?i)\b(what\s+if|if\s+(someone|a\s+person|somebody))\b|\b(story|movie|book|article|song)\s+about\b|\bsomeone\s+who\b|\bhypothetical(ly)?\b`)
)

// FalsePositiveFilter post-processes assessments with suppression heuristics.
// It may only lower confidence, never raise it.
type FalsePositiveFilter struct {
	history       HistoryProvider
	minConfidence float64
	logger        *logging.Logger
}

// NewFalsePositiveFilter creates a filter. history may be nil (neutral).
func NewFalsePositiveFilter(history HistoryProvider, minConfidence float64, logger *logging.Logger) *FalsePositiveFilter {
	if history == nil {
		history = NeutralHistoryProvider{}
	}
	if minConfidence <= 0 {
		minConfidence = 0.3
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FalsePositiveFilter{
		history:       history,
		minConfidence: minConfidence,
		logger:        logger,
	}
}

// Apply runs the discounts against the raw message and mutates the
// assessment in place. Returns false when the discounted confidence falls
// under the floor and the assessment should be discarded. Every applied
// discount is appended to RiskFactors for the audit trail.
func (f *FalsePositiveFilter) Apply(ctx context.Context, a *Assessment, message string) bool {
	if a == nil {
		return false
	}

	if negationPattern.MatchString(message) {
		a.Confidence *= negationDiscount
		a.RiskFactors = append(a.RiskFactors, "filter:negation_detected")
	}

	if a.Confidence > historyEvalThreshold {
		risk, err := f.history.HistoricalRisk(ctx, a.UserID)
		if err != nil {
			f.logger.Error("historical risk lookup failed", "error", err, "user_id", a.UserID)
		} else if risk < lowHistoricalRisk {
			a.Confidence *= historyDiscount
			a.RiskFactors = append(a.RiskFactors, "filter:low_historical_risk")
		}
	}

	if professionalPattern.MatchString(message) {
		a.Confidence *= professionalDiscount
		a.RiskFactors = append(a.RiskFactors, "filter:professional_context")
	}

	if hypotheticalPattern.MatchString(message) {
		a.Confidence *= hypotheticalDiscount
		a.RiskFactors = append(a.RiskFactors, "filter:hypothetical_content")
	}

	a.RecomputeSeverity()
	return a.Confidence >= f.minConfidence
}
