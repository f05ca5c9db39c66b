package models

import "time"

// JobStatus is the batch detection job lifecycle state.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// BatchOptions configure a batch detection run.
type BatchOptions struct {
	BatchSize      int `json:"batch_size"`      // records per chunk (default 100)
	MaxConcurrency int `json:"max_concurrency"` // bounded worker pool size (default 5)

	// AutoMergeThreshold enables auto-merge during the run when set; pairs at or
	// above it are merged immediately.
	AutoMergeThreshold *float64 `json:"auto_merge_threshold,omitempty"`

	SkipRecentlyProcessed bool   `json:"skip_recently_processed"`
	RuleID                string `json:"rule_id,omitempty"`

	// MaxRuntime cancels the job cooperatively once exceeded. Zero means no
	// deadline.
	MaxRuntime time.Duration `json:"max_runtime,omitempty"`
}

// BatchProgress tracks a running job's counters.
type BatchProgress struct {
	TotalRecords     int        `json:"total_records"`
	ProcessedRecords int        `json:"processed_records"`
	DuplicatesFound  int        `json:"duplicates_found"`
	Errors           int        `json:"errors"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// BatchErrorSeverity classifies a per-record failure.
type BatchErrorSeverity string

const (
	BatchErrorWarning  BatchErrorSeverity = "warning"
	BatchErrorCritical BatchErrorSeverity = "critical"
)

// BatchError records a single record's failure during a batch run. Per-record
// failures never abort the job.
type BatchError struct {
	RecordID   string             `json:"record_id"`
	Message    string             `json:"message"`
	Severity   BatchErrorSeverity `json:"severity"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// BatchPerformance summarizes throughput once a job is terminal.
type BatchPerformance struct {
	TotalTimeMs        int64   `json:"total_time_ms"`
	AvgTimePerRecordMs float64 `json:"avg_time_per_record_ms"`
	RecordsPerSecond   float64 `json:"records_per_second"`
}

// BatchDetectionResult is the final aggregate of a terminal job.
type BatchDetectionResult struct {
	RecordsProcessed int              `json:"records_processed"`
	DuplicatesFound  int              `json:"duplicates_found"`
	AutoMerged       int              `json:"auto_merged"`
	Errors           []BatchError     `json:"errors,omitempty"`
	Performance      BatchPerformance `json:"performance"`
}

// BatchDetectionJob runs the detection pipeline over a bounded record set.
type BatchDetectionJob struct {
	ID           string                `json:"id"`
	RecordType   RecordType            `json:"record_type"`
	SourceSystem string                `json:"source_system,omitempty"`
	Status       JobStatus             `json:"status"`
	Options      BatchOptions          `json:"options"`
	Progress     BatchProgress         `json:"progress"`
	Result       *BatchDetectionResult `json:"result,omitempty"`
	Error        string                `json:"error,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// IsTerminal reports whether the job has finished, failed or been cancelled.
func (j *BatchDetectionJob) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// StartBatchRequest starts a batch detection job.
type StartBatchRequest struct {
	RecordType   RecordType   `json:"record_type" validate:"required"`
	SourceSystem string       `json:"source_system,omitempty"`
	Options      BatchOptions `json:"options"`
}
