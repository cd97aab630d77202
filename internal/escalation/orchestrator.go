package escalation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/haven-crisis-platform/internal/observability/metrics"
	"github.com/wolfman30/haven-crisis-platform/internal/risk"
	"github.com/wolfman30/haven-crisis-platform/pkg/logging"
)

var orchestratorTracer = otel.Tracer("haven/escalation-orchestrator")

// Orchestrator runs matched protocols as per-record state machines:
// initiated → in_progress → escalated | resolved | failed. Each record runs
// on its own goroutine; records never block one another up to the
// configured parallelism cap.
type Orchestrator struct {
	store       RecordStore
	exec        *ActionExecutor
	stepTimeout time.Duration
	slots       chan struct{}
	metrics     *metrics.CrisisMetrics
	logger      *logging.Logger
	wg          sync.WaitGroup
	now         func() time.Time
}

// OrchestratorConfig bounds protocol execution.
type OrchestratorConfig struct {
	// DefaultStepTimeout applies to steps that declare no timeout of
	// their own.
	DefaultStepTimeout time.Duration
	// MaxParallel caps how many records execute concurrently; further
	// escalations queue in Begin order.
	MaxParallel int
}

// NewOrchestrator wires the orchestrator.
func NewOrchestrator(store RecordStore, exec *ActionExecutor, cfg OrchestratorConfig, m *metrics.CrisisMetrics, logger *logging.Logger) *Orchestrator {
	if cfg.DefaultStepTimeout <= 0 {
		cfg.DefaultStepTimeout = 30 * time.Second
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 64
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{
		store:       store,
		exec:        exec,
		stepTimeout: cfg.DefaultStepTimeout,
		slots:       make(chan struct{}, cfg.MaxParallel),
		metrics:     m,
		logger:      logger.WithComponent("escalation"),
		now:         time.Now,
	}
}

// Begin creates the escalation record and starts protocol execution
// asynchronously. The returned record is the initiated snapshot; execution
// continues detached from the caller's context cancellation.
func (o *Orchestrator) Begin(ctx context.Context, a *risk.Assessment, protocol *Protocol) (*Record, error) {
	now := o.now().UTC()
	rec := &Record{
		ID:           uuid.NewString(),
		UserID:       a.UserID,
		SessionID:    a.SessionID,
		AssessmentID: a.ID,
		ProtocolID:   protocol.ID,
		Status:       StatusInitiated,
		Priority:     protocol.Priority,
		CreatedAt:    now,
		Compliance:   append([]string(nil), protocol.Compliance...),
	}
	if err := o.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("escalation: create record: %w", err)
	}

	runCtx := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.slots <- struct{}{}
		defer func() { <-o.slots }()
		o.run(runCtx, rec, protocol, a)
	}()

	snapshot := *rec
	return &snapshot, nil
}

// Wait blocks until all in-flight escalations finish. For shutdown.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Resolve terminally resolves a record from initiated or in_progress. Used
// by operators to close an escalation with an outcome.
func (o *Orchestrator) Resolve(ctx context.Context, id, outcome string) (*Record, error) {
	rec, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Terminal() {
		return nil, ErrTerminal
	}
	now := o.now().UTC()
	rec.Status = StatusResolved
	rec.Outcome = outcome
	rec.ResolvedAt = &now
	if err := o.store.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("escalation: resolve record: %w", err)
	}
	if err := o.exec.ReleaseAssignment(ctx, rec.AssignedProfessionalID); err != nil {
		o.logger.Error("caseload release failed",
			"escalation_id", id,
			"professional_id", rec.AssignedProfessionalID,
			"error", err,
		)
	}
	o.metrics.ObserveEscalation(string(StatusResolved), string(rec.Priority))
	o.logger.Info("escalation resolved by operator", "escalation_id", id, "outcome", outcome)
	return rec, nil
}

func (o *Orchestrator) run(ctx context.Context, rec *Record, protocol *Protocol, a *risk.Assessment) {
	ctx, span := orchestratorTracer.Start(ctx, "escalation.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("escalation.id", rec.ID),
		attribute.String("escalation.protocol_id", protocol.ID),
		attribute.String("escalation.priority", string(protocol.Priority)),
	)

	started := o.now().UTC()
	rec.Status = StatusInProgress
	rec.StartedAt = &started
	if !o.persist(ctx, rec) {
		return
	}

	anySuccess := false
	for _, step := range protocol.Path {
		if o.externallyResolved(ctx, rec.ID) {
			o.logger.Info("escalation resolved externally, stopping execution", "escalation_id", rec.ID)
			return
		}
		primaryOK, stepOK := o.runStep(ctx, rec, step, a)
		if stepOK {
			anySuccess = true
		}
		if !o.persist(ctx, rec) {
			return
		}

		// For emergency protocols the first responsive channel is enough.
		if protocol.Priority == PriorityEmergency && primaryOK {
			o.logger.Info("emergency protocol satisfied, exiting early",
				"escalation_id", rec.ID,
				"step_id", step.ID,
			)
			break
		}
	}
	o.finalize(ctx, rec, anySuccess)
}

// runStep executes one step with its own timeout, attempting the fallback
// synchronously on failure. Returns whether the primary action succeeded and
// whether the step as a whole (primary or fallback) succeeded.
func (o *Orchestrator) runStep(ctx context.Context, rec *Record, step Step, a *risk.Assessment) (primaryOK, stepOK bool) {
	result := StepResult{
		StepID:    step.ID,
		Action:    step.Action,
		Target:    step.Target,
		StartedAt: o.now().UTC(),
	}

	err := o.execBounded(ctx, rec, step, a)
	if err == nil {
		result.Success = true
		result.CompletedAt = o.now().UTC()
		rec.StepLog = append(rec.StepLog, result)
		return true, true
	}

	result.Error = err.Error()
	o.logger.Error("escalation step failed",
		"escalation_id", rec.ID,
		"step_id", step.ID,
		"action", step.Action,
		"error", err,
	)

	fallbackUsed := false
	if step.Fallback != nil {
		fallbackUsed = true
		result.FallbackUsed = true
		if fbErr := o.execBounded(ctx, rec, *step.Fallback, a); fbErr != nil {
			result.Error = fmt.Sprintf("%s; fallback %s: %s", result.Error, step.Fallback.ID, fbErr.Error())
			o.logger.Error("escalation fallback failed",
				"escalation_id", rec.ID,
				"step_id", step.Fallback.ID,
				"error", fbErr,
			)
		} else {
			result.Success = true
		}
	}
	o.metrics.ObserveStepFailure(string(step.Action), fallbackUsed)
	result.CompletedAt = o.now().UTC()
	rec.StepLog = append(rec.StepLog, result)
	return false, result.Success
}

// execBounded runs the action against a record copy under the step timeout.
// On timeout the abandoned attempt keeps only its copy, so a late completion
// cannot corrupt the live record.
func (o *Orchestrator) execBounded(ctx context.Context, rec *Record, step Step, a *risk.Assessment) error {
	timeout := step.Timeout
	if timeout <= 0 {
		timeout = o.stepTimeout
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	work := *rec
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("escalation: step %s panicked: %v", step.ID, r)
			}
		}()
		done <- o.exec.Execute(stepCtx, &work, step, a)
	}()

	select {
	case err := <-done:
		if err != nil {
			// A panic after a successful assignment abandons the work
			// copy; the consumed caseload slot must not go with it.
			if work.AssignedProfessionalID != "" && work.AssignedProfessionalID != rec.AssignedProfessionalID {
				if relErr := o.exec.ReleaseAssignment(ctx, work.AssignedProfessionalID); relErr != nil {
					o.logger.Error("caseload release after failed step",
						"escalation_id", rec.ID,
						"professional_id", work.AssignedProfessionalID,
						"error", relErr,
					)
				}
			}
			return err
		}
		rec.AssignedProfessionalID = work.AssignedProfessionalID
		rec.ChannelID = work.ChannelID
		rec.EstimatedResponse = work.EstimatedResponse
		return nil
	case <-stepCtx.Done():
		return fmt.Errorf("escalation: step %s timed out after %s", step.ID, timeout)
	}
}

func (o *Orchestrator) finalize(ctx context.Context, rec *Record, anySuccess bool) {
	if o.externallyResolved(ctx, rec.ID) {
		return
	}
	now := o.now().UTC()
	rec.ResolvedAt = &now
	if anySuccess {
		rec.Status = StatusEscalated
		rec.Outcome = "protocol_executed"
	} else {
		rec.Status = StatusFailed
		rec.Outcome = "protocol_failed"
	}
	o.persist(ctx, rec)
	o.metrics.ObserveEscalation(string(rec.Status), string(rec.Priority))
	o.logger.Info("escalation finished",
		"escalation_id", rec.ID,
		"status", rec.Status,
		"steps", len(rec.StepLog),
		"assigned_professional", rec.AssignedProfessionalID,
	)
}

// externallyResolved reports whether an operator resolved the record while
// the orchestrator was executing it.
func (o *Orchestrator) externallyResolved(ctx context.Context, id string) bool {
	latest, err := o.store.Get(ctx, id)
	if err != nil {
		return false
	}
	return latest.Terminal()
}

// persist writes the record. The store refuses to overwrite a terminal
// record, so an operator resolution landing mid-run always wins; ErrTerminal
// here just means stop executing. Returns false when the caller should stop.
func (o *Orchestrator) persist(ctx context.Context, rec *Record) bool {
	if err := o.store.Update(ctx, rec); err != nil {
		if errors.Is(err, ErrTerminal) {
			return false
		}
		o.logger.Error("escalation record update failed", "escalation_id", rec.ID, "error", err)
		return false
	}
	return true
}
