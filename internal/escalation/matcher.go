package escalation

import (
	"github.com/wolfman30/haven-crisis-platform/internal/risk"
	"github.com/wolfman30/haven-crisis-platform/pkg/logging"
)

// matchThreshold is the minimum fraction of condition weight an assessment
// must satisfy before a protocol is selected.
const matchThreshold = 0.5

// Matcher selects the best protocol for an assessment. Selection is
// deterministic: highest score wins, ties go to the earliest-registered
// protocol. The tie-break is arbitrary but stable.
type Matcher struct {
	catalog *Catalog
	logger  *logging.Logger
}

// NewMatcher creates a protocol matcher over the catalog.
func NewMatcher(catalog *Catalog, logger *logging.Logger) *Matcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Matcher{catalog: catalog, logger: logger.WithComponent("escalation")}
}

// Match returns the selected protocol and its score, or ok=false when no
// active protocol reaches the threshold (no escalation).
func (m *Matcher) Match(a *risk.Assessment) (*Protocol, float64, bool) {
	var (
		best      *Protocol
		bestScore float64
	)
	for _, p := range m.catalog.ListActive() {
		score := p.MatchScore(a)
		if score < matchThreshold {
			continue
		}
		// Strict > keeps the earliest-registered protocol on ties.
		if score > bestScore {
			best = p
			bestScore = score
		}
	}
	if best == nil {
		m.logger.Info("no protocol matched assessment",
			"assessment_id", a.ID,
			"severity", a.Severity,
			"confidence", a.Confidence,
		)
		return nil, 0, false
	}
	m.logger.Info("protocol selected",
		"assessment_id", a.ID,
		"protocol_id", best.ID,
		"score", bestScore,
		"priority", best.Priority,
	)
	return best, bestScore, true
}
