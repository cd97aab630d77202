package risk

// Behavioral heuristics are intentionally small increments: session metadata
// corroborates text signals but is too weak to stand alone.
const (
	lateNightIncrement    = 0.15
	rapidFireIncrement    = 0.2
	shortSessionIncrement = 0.1

	rapidFireRate      = 5.0
	shortSessionSecs   = 60
	lateNightStartHour = 2
	lateNightEndHour   = 6
)

// BehavioralAnalyzer scores session metadata heuristics.
type BehavioralAnalyzer struct{}

// NewBehavioralAnalyzer creates a behavioral analyzer.
func NewBehavioralAnalyzer() *BehavioralAnalyzer {
	return &BehavioralAnalyzer{}
}

// Analyze inspects the session metadata. Rapid messaging additionally sets
// the acute-anxiety flag.
func (a *BehavioralAnalyzer) Analyze(meta SessionMetadata) analysis {
	var result analysis

	if meta.Hour >= lateNightStartHour && meta.Hour <= lateNightEndHour {
		result.confidence += lateNightIncrement
		result.riskFactors = append(result.riskFactors, "behavior:late_night_session")
	}
	if meta.MessagesPerMinute > rapidFireRate {
		result.confidence += rapidFireIncrement
		result.riskFactors = append(result.riskFactors, "behavior:rapid_messaging")
		result.indicators.AcuteAnxiety = true
		result.indicators.Other = append(result.indicators.Other, "rapid_messaging")
	}
	if meta.SessionDuration > 0 && meta.SessionDuration.Seconds() < shortSessionSecs {
		result.confidence += shortSessionIncrement
		result.riskFactors = append(result.riskFactors, "behavior:short_session")
	}

	return result
}
