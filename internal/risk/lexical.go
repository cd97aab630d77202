package risk

import (
	"strings"
)

// lexicalTerm is a weighted crisis phrase. Weights reflect severity of the
// phrase itself, not certainty of crisis; the fusion weights handle the rest.
type lexicalTerm struct {
	phrase    string
	weight    float64
	indicator string
}

// lexicalTable is the weighted term table consulted by the lexical analyzer.
// Phrases are matched as lowercase substrings. Weights are empirical and were
// tuned against the moderation backlog; adjust with care.
var lexicalTable = []lexicalTerm{
	// Explicit suicide ideation
	{phrase: "kill myself", weight: 0.95, indicator: "suicide_ideation"},
	{phrase: "want to die", weight: 0.9, indicator: "suicide_ideation"},
	{phrase: "end my life", weight: 0.95, indicator: "suicide_ideation"},
	{phrase: "suicide", weight: 0.9, indicator: "suicide_ideation"},
	{phrase: "suicidal", weight: 0.9, indicator: "suicide_ideation"},
	{phrase: "better off dead", weight: 0.85, indicator: "suicide_ideation"},
	{phrase: "no reason to live", weight: 0.85, indicator: "suicide_ideation"},
	{phrase: "don't want to be here anymore", weight: 0.8, indicator: "suicide_ideation"},

	// Self-harm
	{phrase: "hurt myself", weight: 0.9, indicator: "self_harm"},
	{phrase: "cut myself", weight: 0.9, indicator: "self_harm"},
	{phrase: "cutting myself", weight: 0.9, indicator: "self_harm"},
	{phrase: "self harm", weight: 0.85, indicator: "self_harm"},
	{phrase: "self-harm", weight: 0.85, indicator: "self_harm"},
	{phrase: "burn myself", weight: 0.85, indicator: "self_harm"},

	// Severe depression
	{phrase: "hopeless", weight: 0.6, indicator: "severe_depression"},
	{phrase: "worthless", weight: 0.6, indicator: "severe_depression"},
	{phrase: "can't go on", weight: 0.7, indicator: "severe_depression"},
	{phrase: "nothing matters", weight: 0.6, indicator: "severe_depression"},
	{phrase: "empty inside", weight: 0.55, indicator: "severe_depression"},
	{phrase: "give up", weight: 0.5, indicator: "severe_depression"},

	// Acute anxiety
	{phrase: "panic attack", weight: 0.8, indicator: "acute_anxiety"},
	{phrase: "can't breathe", weight: 0.75, indicator: "acute_anxiety"},
	{phrase: "heart racing", weight: 0.5, indicator: "acute_anxiety"},
	{phrase: "so anxious", weight: 0.55, indicator: "acute_anxiety"},
	{phrase: "losing control", weight: 0.55, indicator: "acute_anxiety"},

	// Substance abuse
	{phrase: "overdose", weight: 0.85, indicator: "substance_abuse"},
	{phrase: "too many pills", weight: 0.8, indicator: "substance_abuse"},
	{phrase: "drinking to forget", weight: 0.6, indicator: "substance_abuse"},
	{phrase: "relapsed", weight: 0.6, indicator: "substance_abuse"},

	// Eating disorder
	{phrase: "starving myself", weight: 0.8, indicator: "eating_disorder"},
	{phrase: "purging", weight: 0.75, indicator: "eating_disorder"},
	{phrase: "haven't eaten in days", weight: 0.7, indicator: "eating_disorder"},

	// Domestic violence
	{phrase: "he hits me", weight: 0.85, indicator: "domestic_violence"},
	{phrase: "she hits me", weight: 0.85, indicator: "domestic_violence"},
	{phrase: "afraid to go home", weight: 0.7, indicator: "domestic_violence"},
	{phrase: "threatens me", weight: 0.65, indicator: "domestic_violence"},

	// Generic distress
	{phrase: "crisis", weight: 0.5, indicator: ""},
	{phrase: "desperate", weight: 0.5, indicator: ""},
	{phrase: "can't take it anymore", weight: 0.65, indicator: ""},
	{phrase: "falling apart", weight: 0.5, indicator: ""},
}

// LexicalAnalyzer scores messages against the weighted crisis term table.
type LexicalAnalyzer struct {
	table []lexicalTerm
}

// NewLexicalAnalyzer creates a lexical analyzer using the built-in term table.
func NewLexicalAnalyzer() *LexicalAnalyzer {
	return &LexicalAnalyzer{table: lexicalTable}
}

// Analyze matches the message against the term table. Confidence is the mean
// weight of matched terms, capped at 1.
func (a *LexicalAnalyzer) Analyze(text string) analysis {
	lowered := strings.ToLower(text)

	var result analysis
	var sum float64
	var matched int
	for _, term := range a.table {
		if !strings.Contains(lowered, term.phrase) {
			continue
		}
		matched++
		sum += term.weight
		result.riskFactors = append(result.riskFactors, "lexical:"+term.phrase)
		setIndicator(&result.indicators, term.indicator)
	}
	if matched == 0 {
		return result
	}

	result.confidence = sum / float64(matched)
	if result.confidence > 1 {
		result.confidence = 1
	}
	return result
}

// Score returns only the lexical confidence for a message. The contextual
// analyzer uses this to score prior conversation turns cheaply.
func (a *LexicalAnalyzer) Score(text string) float64 {
	return a.Analyze(text).confidence
}

func setIndicator(ind *CrisisIndicators, name string) {
	switch name {
	case "suicide_ideation":
		ind.SuicideIdeation = true
	case "self_harm":
		ind.SelfHarm = true
	case "severe_depression":
		ind.SevereDepression = true
	case "acute_anxiety":
		ind.AcuteAnxiety = true
	case "substance_abuse":
		ind.SubstanceAbuse = true
	case "eating_disorder":
		ind.EatingDisorder = true
	case "domestic_violence":
		ind.DomesticViolence = true
	}
}
