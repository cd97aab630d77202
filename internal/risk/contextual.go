package risk

import (
	"context"

	"github.com/wolfman30/haven-crisis-platform/internal/knowledge"
	"github.com/wolfman30/haven-crisis-platform/pkg/logging"
)

// KnowledgeSearcher is the read interface over the support-content corpus.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]knowledge.Match, error)
}

const (
	// contextualSimilarityFloor is the similarity below which a corpus hit
	// is considered noise.
	contextualSimilarityFloor = 0.45

	// repetitionWindow and repetitionThreshold define the repeated-crisis
	// signal: at least repetitionThreshold of the last repetitionWindow
	// turns independently scoring above 0.5 lexically.
	repetitionWindow     = 5
	repetitionThreshold  = 2
	repetitionTurnScore  = 0.5
	repetitionConfidence = 0.25
)

// ContextualAnalyzer correlates the message with the support corpus and with
// the recent conversation history.
type ContextualAnalyzer struct {
	searcher KnowledgeSearcher
	lexical  *LexicalAnalyzer
	topK     int
	logger   *logging.Logger
}

// NewContextualAnalyzer creates a contextual analyzer. searcher may be nil,
// in which case only the repetition signal is evaluated.
func NewContextualAnalyzer(searcher KnowledgeSearcher, lexical *LexicalAnalyzer, topK int, logger *logging.Logger) *ContextualAnalyzer {
	if lexical == nil {
		lexical = NewLexicalAnalyzer()
	}
	if topK <= 0 {
		topK = 3
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ContextualAnalyzer{
		searcher: searcher,
		lexical:  lexical,
		topK:     topK,
		logger:   logger,
	}
}

// Analyze queries the corpus for crisis-adjacent passages and counts how many
// recent turns independently carried lexical risk. A corpus failure degrades
// to the repetition signal alone; losing a secondary signal must never take
// the pipeline down.
func (a *ContextualAnalyzer) Analyze(ctx context.Context, text string, history []string) analysis {
	var result analysis

	if a.searcher != nil {
		matches, err := a.searcher.Search(ctx, text, a.topK)
		if err != nil {
			a.logger.Error("knowledge search failed", "error", err)
		} else {
			var best float64
			for _, m := range matches {
				if m.Similarity > best {
					best = m.Similarity
				}
			}
			if best >= contextualSimilarityFloor {
				result.confidence = best * 0.6
				result.riskFactors = append(result.riskFactors, "context:crisis_content_similarity")
			}
		}
	}

	turns := history
	if len(turns) > repetitionWindow {
		turns = turns[len(turns)-repetitionWindow:]
	}
	elevated := 0
	for _, turn := range turns {
		if a.lexical.Score(turn) > repetitionTurnScore {
			elevated++
		}
	}
	if elevated >= repetitionThreshold {
		result.confidence += repetitionConfidence
		result.riskFactors = append(result.riskFactors, "context:repeated_crisis_indicators")
		result.indicators.SevereDepression = true
	}

	if result.confidence > 1 {
		result.confidence = 1
	}
	return result
}
