package risk

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/haven-crisis-platform/internal/knowledge"
)

type stubSearcher struct {
	matches []knowledge.Match
	err     error
}

func (s stubSearcher) Search(context.Context, string, int) ([]knowledge.Match, error) {
	return s.matches, s.err
}

type panickingSearcher struct{}

func (panickingSearcher) Search(context.Context, string, int) ([]knowledge.Match, error) {
	panic("corpus index corrupted")
}

func newTestPipeline(searcher KnowledgeSearcher, history HistoryProvider) *Pipeline {
	return NewPipeline(PipelineConfig{
		Weights:       DefaultFusionWeights(),
		MinConfidence: 0.3,
		KnowledgeTopK: 3,
	}, searcher, history, nil, nil)
}

func TestPipelineExplicitIdeationIsCriticalAndImmediate(t *testing.T) {
	p := newTestPipeline(nil, nil)

	a, err := p.Analyze(context.Background(), AnalysisInput{
		UserID:    "u1",
		SessionID: "s1",
		Message:   "I want to kill myself",
	})
	require.NoError(t, err)
	require.NotNil(t, a)

	assert.Equal(t, SeverityCritical, a.Severity)
	assert.True(t, a.Immediate)
	assert.True(t, a.Indicators.SuicideIdeation)
	assert.Contains(t, a.RecommendedActions, "provide_crisis_resources")
	assert.Contains(t, a.RecommendedActions, "connect_crisis_professional")
	assert.Contains(t, a.RecommendedActions, "display_emergency_contacts")
}

func TestPipelineNegationSuppressesAssessment(t *testing.T) {
	p := newTestPipeline(nil, nil)

	a, err := p.Analyze(context.Background(), AnalysisInput{
		UserID:    "u1",
		SessionID: "s1",
		Message:   "I would never kill myself, things are looking up",
	})
	require.NoError(t, err)
	assert.Nil(t, a, "negated phrasing must not produce an assessment")
}

func TestPipelineProfessionalContextSuppressed(t *testing.T) {
	p := newTestPipeline(nil, nil)

	a, err := p.Analyze(context.Background(), AnalysisInput{
		UserID:    "u1",
		SessionID: "s1",
		Message:   "my therapist and I talked about suicide prevention strategies today",
	})
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestPipelineBenignMessageProducesNothing(t *testing.T) {
	p := newTestPipeline(nil, nil)

	a, err := p.Analyze(context.Background(), AnalysisInput{
		UserID:    "u1",
		SessionID: "s1",
		Message:   "can you recommend a good book on gardening?",
	})
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestPipelinePanicAttackWithRapidMessagingIsAtLeastMedium(t *testing.T) {
	p := newTestPipeline(nil, nil)

	a, err := p.Analyze(context.Background(), AnalysisInput{
		UserID:    "u1",
		SessionID: "s1",
		Message:   "I'm so anxious I can't breathe, this is a panic attack",
		Session:   SessionMetadata{Hour: 14, MessagesPerMinute: 6},
	})
	require.NoError(t, err)
	require.NotNil(t, a)

	assert.True(t, a.Indicators.AcuteAnxiety)
	assert.NotEqual(t, SeverityLow, a.Severity)
	assert.NotEqual(t, SeverityCritical, a.Severity)
	assert.Contains(t, a.RecommendedActions, "offer_grounding_exercise")
}

func TestPipelineContextualSignalRaisesConfidence(t *testing.T) {
	withCorpus := newTestPipeline(stubSearcher{matches: []knowledge.Match{{Content: "crisis support", Similarity: 0.9}}}, nil)
	without := newTestPipeline(nil, nil)

	input := AnalysisInput{
		UserID:    "u1",
		SessionID: "s1",
		Message:   "I feel completely hopeless",
	}

	a1, err := withCorpus.Analyze(context.Background(), input)
	require.NoError(t, err)
	require.NotNil(t, a1)
	assert.Contains(t, a1.RiskFactors, "context:crisis_content_similarity")

	a2, err := without.Analyze(context.Background(), input)
	require.NoError(t, err)
	if a2 != nil {
		assert.Greater(t, a1.Confidence, a2.Confidence)
	}
}

func TestPipelineKnowledgeErrorDegradesGracefully(t *testing.T) {
	p := newTestPipeline(stubSearcher{err: errors.New("index offline")}, nil)

	a, err := p.Analyze(context.Background(), AnalysisInput{
		UserID:    "u1",
		SessionID: "s1",
		Message:   "I want to kill myself",
	})
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, SeverityCritical, a.Severity)
}

func TestPipelinePanicFailsSafe(t *testing.T) {
	p := newTestPipeline(panickingSearcher{}, nil)

	a, err := p.Analyze(context.Background(), AnalysisInput{
		UserID:    "u1",
		SessionID: "s1",
		Message:   "hello",
	})
	require.NoError(t, err)
	require.NotNil(t, a, "a broken extractor must still yield a monitorable assessment")

	assert.Equal(t, SeverityLow, a.Severity)
	assert.InDelta(t, 0.1, a.Confidence, 0.001)
	assert.Contains(t, a.RiskFactors, "analysis_failure:panic")
	assert.Equal(t, []string{"continue_monitoring"}, a.RecommendedActions)
}

func TestPipelineIsDeterministic(t *testing.T) {
	p := newTestPipeline(nil, nil)

	input := AnalysisInput{
		UserID:    "u1",
		SessionID: "s1",
		Message:   "I have been cutting myself and I feel hopeless",
		Session:   SessionMetadata{Hour: 3},
	}

	a1, err := p.Analyze(context.Background(), input)
	require.NoError(t, err)
	require.NotNil(t, a1)

	a2, err := p.Analyze(context.Background(), input)
	require.NoError(t, err)
	require.NotNil(t, a2)

	assert.Equal(t, a1.Severity, a2.Severity)
	assert.Equal(t, a1.Confidence, a2.Confidence)
	assert.Equal(t, a1.Indicators, a2.Indicators)
	assert.Equal(t, a1.RiskFactors, a2.RiskFactors)
	assert.Equal(t, a1.RecommendedActions, a2.RecommendedActions)
	assert.NotEqual(t, a1.ID, a2.ID)
}
