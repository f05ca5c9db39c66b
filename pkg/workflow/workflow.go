// Package workflow runs the structured resolution process for detected
// duplicates as a sequential step state machine.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"

	workflowrepo "github.com/crmforge/dedupe/internal/repositories/workflow"
	"github.com/crmforge/dedupe/internal/tracing"
	"github.com/crmforge/dedupe/pkg/events"
	"github.com/crmforge/dedupe/pkg/merging"
	"github.com/crmforge/dedupe/pkg/models"
)

// stepPlan returns the ordered steps for a workflow kind. Automatic workflows
// skip the human steps entirely.
func stepPlan(kind models.WorkflowKind) []models.WorkflowStep {
	var kinds []models.StepKind
	switch kind {
	case models.WorkflowAutomatic:
		kinds = []models.StepKind{models.StepMerge, models.StepNotification}
	default: // manual and hybrid
		kinds = []models.StepKind{models.StepValidation, models.StepApproval, models.StepMerge, models.StepNotification}
	}

	steps := make([]models.WorkflowStep, len(kinds))
	for i, k := range kinds {
		steps[i] = models.WorkflowStep{Kind: k, Status: models.StepStatusPending}
	}
	return steps
}

// Service drives resolution workflows.
type Service struct {
	logger    ectologger.Logger
	workflows *workflowrepo.Repository
	merger    *merging.Engine
	emitter   *events.Emitter
}

// NewService creates a new workflow service
func NewService(
	logger ectologger.Logger,
	workflows *workflowrepo.Repository,
	merger *merging.Engine,
	emitter *events.Emitter,
) *Service {
	return &Service{
		logger:    logger,
		workflows: workflows,
		merger:    merger,
		emitter:   emitter,
	}
}

// Create starts a new resolution workflow for a duplicate
func (s *Service) Create(ctx context.Context, req models.CreateWorkflowRequest) (*models.ResolutionWorkflow, error) {
	ctx, span := tracing.StartSpan(ctx, "workflow.Service.Create")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"method":       "Create",
		"duplicate_id": req.DuplicateID,
		"kind":         req.Kind,
	})

	wf := &models.ResolutionWorkflow{
		DuplicateID: req.DuplicateID,
		Kind:        req.Kind,
		Steps:       stepPlan(req.Kind),
		CurrentStep: 0,
		Status:      models.WorkflowStatusPending,
		Assignee:    req.Assignee,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
		FailFast:    req.FailFast,
	}

	created, err := s.workflows.Create(ctx, wf)
	if err != nil {
		log.WithError(err).Error("Failed to create workflow")
		return nil, err
	}

	s.emitter.EmitWorkflowCreated(ctx, created)
	log.WithField("id", created.ID).Info("Created resolution workflow")
	return created, nil
}

// Get retrieves a workflow by ID
func (s *Service) Get(ctx context.Context, id string) (*models.ResolutionWorkflow, error) {
	return s.workflows.Get(ctx, id)
}

// List retrieves workflows matching the filter
func (s *Service) List(ctx context.Context, filter workflowrepo.ListFilter) ([]*models.ResolutionWorkflow, error) {
	return s.workflows.List(ctx, filter)
}

// Advance applies the result of the current step and moves the cursor. The
// first advance moves the workflow into in_progress; advancing past the last
// step completes it. A failed step fails the workflow only when FailFast is
// set, otherwise the workflow stays in progress for another attempt.
func (s *Service) Advance(ctx context.Context, id string, result models.StepResult) (*models.ResolutionWorkflow, error) {
	ctx, span := tracing.StartSpan(ctx, "workflow.Service.Advance")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"method":      "Advance",
		"workflow_id": id,
		"step_status": result.Status,
	})

	wf, err := s.workflows.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if wf.IsTerminal() {
		return nil, models.ErrWorkflowTerminal
	}

	updated := *wf
	updated.Steps = append([]models.WorkflowStep(nil), wf.Steps...)

	if updated.Status == models.WorkflowStatusPending {
		updated.Status = models.WorkflowStatusInProgress
	}

	step := &updated.Steps[updated.CurrentStep]

	// the merge step actually merges; everything else just records the outcome
	if step.Kind == models.StepMerge && result.Status == models.StepStatusCompleted {
		if _, err := s.merger.MergeDuplicate(ctx, updated.DuplicateID); err != nil && !errors.Is(err, models.ErrAlreadyMerged) {
			log.WithError(err).Error("Merge step failed")
			result = models.StepResult{
				Status: models.StepStatusFailed,
				Data:   map[string]any{"error": err.Error()},
			}
		}
	}

	now := time.Now().UTC()
	step.Status = result.Status
	step.Result = result.Data
	step.CompletedAt = &now

	switch result.Status {
	case models.StepStatusFailed:
		if updated.FailFast {
			updated.Status = models.WorkflowStatusFailed
		}
	case models.StepStatusCompleted, models.StepStatusSkipped:
		updated.CurrentStep++
		if updated.CurrentStep >= len(updated.Steps) {
			updated.Status = models.WorkflowStatusCompleted
		}
	}

	if err := s.workflows.Update(ctx, &updated); err != nil {
		log.WithError(err).Error("Failed to persist workflow advance")
		return nil, err
	}

	if updated.Status == models.WorkflowStatusCompleted {
		s.emitter.EmitWorkflowCompleted(ctx, &updated)
	} else {
		s.emitter.EmitWorkflowAdvanced(ctx, &updated)
	}

	log.WithFields(map[string]any{
		"current_step": updated.CurrentStep,
		"status":       updated.Status,
	}).Info("Advanced workflow")

	return &updated, nil
}

// Cancel moves a non-terminal workflow to cancelled
func (s *Service) Cancel(ctx context.Context, id string) (*models.ResolutionWorkflow, error) {
	ctx, span := tracing.StartSpan(ctx, "workflow.Service.Cancel")
	defer span.End()

	wf, err := s.workflows.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if wf.IsTerminal() {
		return nil, models.ErrWorkflowTerminal
	}

	updated := *wf
	updated.Status = models.WorkflowStatusCancelled

	if err := s.workflows.Update(ctx, &updated); err != nil {
		return nil, err
	}

	s.emitter.EmitWorkflowCancelled(ctx, &updated)
	s.logger.WithContext(ctx).WithField("workflow_id", id).Info("Cancelled workflow")
	return &updated, nil
}
