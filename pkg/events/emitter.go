package events

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/crmforge/dedupe/internal/tracing"
	"github.com/crmforge/dedupe/pkg/models"
)

// Emitter publishes typed engine events through a Publisher.
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

// EmitDuplicateDetected emits an event for a newly detected duplicate
func (e *Emitter) EmitDuplicateDetected(ctx context.Context, dup *models.DuplicateRecord) {
	e.emit(ctx, TypeDuplicateDetected, dup.ID, dup)
}

// EmitDuplicateReviewed emits an event after a manual review decision
func (e *Emitter) EmitDuplicateReviewed(ctx context.Context, dup *models.DuplicateRecord) {
	e.emit(ctx, TypeDuplicateReviewed, dup.ID, dup)
}

// EmitDuplicatesMerged emits an event after a successful merge
func (e *Emitter) EmitDuplicatesMerged(ctx context.Context, receipt *models.MergeReceipt) {
	e.emit(ctx, TypeDuplicatesMerged, receipt.DuplicateID, receipt)
}

// EmitDetectionError emits an event describing a failed detection run
func (e *Emitter) EmitDetectionError(ctx context.Context, recordID string, recordType models.RecordType, sourceSystem string, detectErr error) {
	e.emit(ctx, TypeDetectionError, recordID, map[string]any{
		"record_id":     recordID,
		"record_type":   recordType,
		"source_system": sourceSystem,
		"error":         detectErr.Error(),
	})
}

// EmitMergeError emits an event describing a failed merge
func (e *Emitter) EmitMergeError(ctx context.Context, duplicateID string, mergeErr error) {
	e.emit(ctx, TypeMergeError, duplicateID, map[string]any{
		"duplicate_id": duplicateID,
		"error":        mergeErr.Error(),
	})
}

// EmitWorkflowCreated emits an event for a new resolution workflow
func (e *Emitter) EmitWorkflowCreated(ctx context.Context, wf *models.ResolutionWorkflow) {
	e.emit(ctx, TypeWorkflowCreated, wf.ID, wf)
}

// EmitWorkflowAdvanced emits an event after a workflow step completes
func (e *Emitter) EmitWorkflowAdvanced(ctx context.Context, wf *models.ResolutionWorkflow) {
	e.emit(ctx, TypeWorkflowAdvanced, wf.ID, wf)
}

// EmitWorkflowCompleted emits an event when a workflow finishes all steps
func (e *Emitter) EmitWorkflowCompleted(ctx context.Context, wf *models.ResolutionWorkflow) {
	e.emit(ctx, TypeWorkflowCompleted, wf.ID, wf)
}

// EmitWorkflowCancelled emits an event when a workflow is cancelled
func (e *Emitter) EmitWorkflowCancelled(ctx context.Context, wf *models.ResolutionWorkflow) {
	e.emit(ctx, TypeWorkflowCancelled, wf.ID, wf)
}

// EmitBatchStarted emits an event when a batch job begins running
func (e *Emitter) EmitBatchStarted(ctx context.Context, job *models.BatchDetectionJob) {
	e.emit(ctx, TypeBatchStarted, job.ID, job)
}

// EmitBatchProgress emits a progress update for a running batch job
func (e *Emitter) EmitBatchProgress(ctx context.Context, job *models.BatchDetectionJob) {
	e.emit(ctx, TypeBatchProgress, job.ID, job.Progress)
}

// EmitBatchCompleted emits an event when a batch job completes
func (e *Emitter) EmitBatchCompleted(ctx context.Context, job *models.BatchDetectionJob) {
	e.emit(ctx, TypeBatchCompleted, job.ID, job)
}

// EmitBatchFailed emits an event when a batch job fails
func (e *Emitter) EmitBatchFailed(ctx context.Context, job *models.BatchDetectionJob) {
	e.emit(ctx, TypeBatchFailed, job.ID, job)
}

// EmitMetricsUpdated emits the latest metrics snapshot
func (e *Emitter) EmitMetricsUpdated(ctx context.Context, metrics *models.DuplicateMetrics) {
	e.emit(ctx, TypeMetricsUpdated, "metrics", metrics)
}

// EmitRuleUpdated emits an event when a matching rule is created, changed or
// removed
func (e *Emitter) EmitRuleUpdated(ctx context.Context, rule *models.MatchingRule) {
	e.emit(ctx, TypeRuleUpdated, rule.ID, rule)
}

func (e *Emitter) emit(ctx context.Context, eventType Type, key string, payload any) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.emit")
	defer span.End()

	event := &Event{
		Type:      eventType,
		Key:       key,
		Payload:   payload,
		Version:   SchemaVersion,
		Timestamp: time.Now().UTC(),
	}

	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": string(eventType),
			"key":        key,
		}).Error("Failed to publish event")
	}
}
