package risk

import (
	"regexp"
)

// structuralPattern pairs a compiled risk pattern with its audit keyword.
type structuralPattern struct {
	regex     *regexp.Regexp
	keyword   string
	indicator string
}

// structuralIncrement is the fixed confidence contribution per matched
// pattern; structuralCap bounds the total so structure alone never dominates.
const (
	structuralIncrement = 0.3
	structuralCap       = 0.9
)

// StructuralAnalyzer matches messages against fixed regex risk patterns,
// catching phrasings the substring table misses.
type StructuralAnalyzer struct {
	patterns []*structuralPattern
}

// NewStructuralAnalyzer creates a structural analyzer with the built-in
// pattern list.
func NewStructuralAnalyzer() *StructuralAnalyzer {
	return &StructuralAnalyzer{
		patterns: []*structuralPattern{
			{regex: regexp.MustCompile(`(?i)\bend(ing)?\s+(my|this)\s+life\b`), keyword: "end my life", indicator: "suicide_ideation"},
			{regex: regexp.MustCompile(`(?i)\bsuicid(e|al)\s+(thought|plan|idea)`), keyword: "suicidal thoughts", indicator: "suicide_ideation"},
			{regex: regexp.MustCompile(`(?i)\b(no|any)\s+point\s+(in\s+)?(living|going\s+on)\b`), keyword: "no point living", indicator: "suicide_ideation"},
			{regex: regexp.MustCompile(`(?i)\bwrote\s+(a\s+)?(goodbye|suicide)\s+(note|letter)\b`), keyword: "goodbye note", indicator: "suicide_ideation"},
			{regex: regexp.MustCompile(`(?i)\bgiving\s+away\s+(my|all\s+my)\s+(things|stuff|belongings)\b`), keyword: "giving away belongings", indicator: "suicide_ideation"},
			{regex: regexp.MustCompile(`(?i)\bhurt(ing)?\s+myself\s+(again|tonight|now)\b`), keyword: "imminent self-harm", indicator: "self_harm"},
			{regex: regexp.MustCompile(`(?i)\bnobody\s+(would|will)\s+(care|notice|miss\s+me)\b`), keyword: "nobody would miss me", indicator: "severe_depression"},
			{regex: regexp.MustCompile(`(?i)\bcan'?t\s+(see|imagine)\s+(a|any|the)\s+future\b`), keyword: "no future", indicator: "severe_depression"},
		},
	}
}

// Analyze matches each pattern once; every match contributes a fixed
// increment, capped at structuralCap.
func (a *StructuralAnalyzer) Analyze(text string) analysis {
	var result analysis
	for _, p := range a.patterns {
		if !p.regex.MatchString(text) {
			continue
		}
		result.confidence += structuralIncrement
		result.riskFactors = append(result.riskFactors, "pattern:"+p.keyword)
		setIndicator(&result.indicators, p.indicator)
	}
	if result.confidence > structuralCap {
		result.confidence = structuralCap
	}
	return result
}
