package risk

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/haven-crisis-platform/internal/observability/metrics"
	"github.com/wolfman30/haven-crisis-platform/pkg/logging"
)

var pipelineTracer = otel.Tracer("haven/risk-pipeline")

// Pipeline runs the full assessment flow: extractors → fusion → filter.
// Analyze never returns an error for analysis failures; it fails safe to a
// minimal low-confidence assessment so a broken extractor cannot take the
// message path down. A false negative is preferred over a crash, but every
// failure is logged for the compliance audit.
type Pipeline struct {
	lexical    *LexicalAnalyzer
	structural *StructuralAnalyzer
	contextual *ContextualAnalyzer
	behavioral *BehavioralAnalyzer
	fusion     *FusionEngine
	filter     *FalsePositiveFilter
	audit      SuppressionAuditor
	metrics    *metrics.CrisisMetrics
	logger     *logging.Logger
}

// SuppressionAuditor records filter suppressions in the compliance audit trail.
type SuppressionAuditor interface {
	LogAssessmentSuppressed(ctx context.Context, userID string, reasons []string, original, final float64) error
}

// PipelineConfig carries the tunables for constructing a Pipeline.
type PipelineConfig struct {
	Weights       FusionWeights
	MinConfidence float64
	KnowledgeTopK int
}

// NewPipeline wires the pipeline. searcher and history may be nil; m may be
// nil when metrics are disabled.
func NewPipeline(cfg PipelineConfig, searcher KnowledgeSearcher, history HistoryProvider, m *metrics.CrisisMetrics, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithComponent("risk")

	lexical := NewLexicalAnalyzer()
	return &Pipeline{
		lexical:    lexical,
		structural: NewStructuralAnalyzer(),
		contextual: NewContextualAnalyzer(searcher, lexical, cfg.KnowledgeTopK, logger),
		behavioral: NewBehavioralAnalyzer(),
		fusion:     NewFusionEngine(cfg.Weights, cfg.MinConfidence),
		filter:     NewFalsePositiveFilter(history, cfg.MinConfidence, logger),
		metrics:    m,
		logger:     logger,
	}
}

// SetAudit attaches a compliance auditor for filter suppressions.
func (p *Pipeline) SetAudit(audit SuppressionAuditor) {
	p.audit = audit
}

// Analyze assesses one inbound message. A nil assessment with a nil error
// means "no crisis detected". Identical input with no state change in
// between yields an identical assessment apart from ID and timestamp.
func (p *Pipeline) Analyze(ctx context.Context, input AnalysisInput) (a *Assessment, err error) {
	ctx, span := pipelineTracer.Start(ctx, "risk.analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("risk.user_id", input.UserID),
		attribute.String("risk.session_id", input.SessionID),
	)

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("risk analysis panicked, failing safe",
				"panic", r,
				"user_id", input.UserID,
				"session_id", input.SessionID,
			)
			a = p.failSafe(input, "analysis_failure:panic")
			err = nil
		}
	}()

	lexical := p.lexical.Analyze(input.Message)
	structural := p.structural.Analyze(input.Message)
	contextual := p.contextual.Analyze(ctx, input.Message, input.History)
	behavioral := p.behavioral.Analyze(input.Session)

	assessment := p.fusion.Fuse(input.UserID, input.SessionID, lexical, structural, contextual, behavioral)
	if assessment == nil {
		p.metrics.ObserveSuppressed("fusion")
		return nil, nil
	}

	preFilter := assessment.Confidence
	if !p.filter.Apply(ctx, assessment, input.Message) {
		p.metrics.ObserveSuppressed("filter")
		p.logger.Info("assessment suppressed by false-positive filter",
			"user_id", input.UserID,
			"session_id", input.SessionID,
			"confidence", assessment.Confidence,
			"risk_factors", assessment.RiskFactors,
		)
		if p.audit != nil {
			reasons := filterReasons(assessment.RiskFactors)
			if auditErr := p.audit.LogAssessmentSuppressed(ctx, input.UserID, reasons, preFilter, assessment.Confidence); auditErr != nil {
				p.logger.Error("suppression audit write failed", "error", auditErr, "user_id", input.UserID)
			}
		}
		return nil, nil
	}

	span.SetAttributes(
		attribute.String("risk.severity", string(assessment.Severity)),
		attribute.Float64("risk.confidence", assessment.Confidence),
		attribute.Bool("risk.immediate", assessment.Immediate),
	)
	p.metrics.ObserveAssessment(string(assessment.Severity), assessment.Immediate)
	p.logger.Info("crisis assessment produced",
		"assessment_id", assessment.ID,
		"user_id", input.UserID,
		"session_id", input.SessionID,
		"severity", assessment.Severity,
		"confidence", assessment.Confidence,
		"immediate", assessment.Immediate,
	)
	return assessment, nil
}

// failSafe builds the minimal assessment recorded when analysis itself
// breaks: low everything, but visible to the audit trail.
func (p *Pipeline) failSafe(input AnalysisInput, tag string) *Assessment {
	a := &Assessment{
		ID:                 uuid.NewString(),
		UserID:             input.UserID,
		SessionID:          input.SessionID,
		Confidence:         0.1,
		Severity:           SeverityLow,
		DetectedAt:         time.Now().UTC(),
		RiskFactors:        []string{tag},
		RecommendedActions: []string{"continue_monitoring"},
	}
	return a
}

// filterReasons extracts the discount tags the filter appended.
func filterReasons(riskFactors []string) []string {
	var reasons []string
	for _, f := range riskFactors {
		if strings.HasPrefix(f, "filter:") {
			reasons = append(reasons, strings.TrimPrefix(f, "filter:"))
		}
	}
	return reasons
}
