package models

import "time"

// WorkflowKind determines the step plan for a resolution workflow.
type WorkflowKind string

const (
	WorkflowAutomatic WorkflowKind = "automatic"
	WorkflowManual    WorkflowKind = "manual"
	WorkflowHybrid    WorkflowKind = "hybrid"
)

// StepKind identifies a workflow step.
type StepKind string

const (
	StepValidation   StepKind = "validation"
	StepApproval     StepKind = "approval"
	StepMerge        StepKind = "merge"
	StepNotification StepKind = "notification"
	StepCustom       StepKind = "custom"
)

// StepStatus is the status of a single workflow step.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusCompleted StepStatus = "completed"
	StepStatusSkipped   StepStatus = "skipped"
	StepStatusFailed    StepStatus = "failed"
)

// WorkflowStatus is the overall workflow lifecycle state.
type WorkflowStatus string

const (
	WorkflowStatusPending    WorkflowStatus = "pending"
	WorkflowStatusInProgress WorkflowStatus = "in_progress"
	WorkflowStatusCompleted  WorkflowStatus = "completed"
	WorkflowStatusFailed     WorkflowStatus = "failed"
	WorkflowStatusCancelled  WorkflowStatus = "cancelled"
)

// WorkflowStep is one sequential step of a resolution workflow.
type WorkflowStep struct {
	Kind        StepKind       `json:"kind"`
	Status      StepStatus     `json:"status"`
	Assignee    string         `json:"assignee,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// ResolutionWorkflow tracks the structured resolution of a detected duplicate.
// Steps advance strictly sequentially; the workflow is frozen once terminal.
type ResolutionWorkflow struct {
	ID          string         `json:"id"`
	DuplicateID string         `json:"duplicate_id"`
	Kind        WorkflowKind   `json:"kind"`
	Steps       []WorkflowStep `json:"steps"`
	CurrentStep int            `json:"current_step"`
	Status      WorkflowStatus `json:"status"`
	Assignee    string         `json:"assignee,omitempty"`
	DueDate     *time.Time     `json:"due_date,omitempty"`
	Priority    string         `json:"priority,omitempty"` // low, normal, high

	// FailFast makes a failed step fail the whole workflow. Default false:
	// a failed step leaves the workflow in progress for manual intervention.
	FailFast bool `json:"fail_fast"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTerminal reports whether the workflow can no longer advance.
func (w *ResolutionWorkflow) IsTerminal() bool {
	switch w.Status {
	case WorkflowStatusCompleted, WorkflowStatusFailed, WorkflowStatusCancelled:
		return true
	}
	return false
}

// CreateWorkflowRequest starts a resolution workflow for a detected duplicate.
type CreateWorkflowRequest struct {
	DuplicateID string       `json:"duplicate_id" validate:"required"`
	Kind        WorkflowKind `json:"kind" validate:"required,oneof=automatic manual hybrid"`
	Assignee    string       `json:"assignee,omitempty"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	Priority    string       `json:"priority,omitempty" validate:"omitempty,oneof=low normal high"`
	FailFast    bool         `json:"fail_fast"`
}

// StepResult reports the outcome of the current step when advancing a workflow.
type StepResult struct {
	Status StepStatus     `json:"status" validate:"required,oneof=completed skipped failed"`
	Data   map[string]any `json:"data,omitempty"`
}
