package models

import "time"

// PerformanceTier is a coarse grade derived from detection latency and the
// false-positive rate.
type PerformanceTier string

const (
	TierExcellent PerformanceTier = "excellent"
	TierGood      PerformanceTier = "good"
	TierFair      PerformanceTier = "fair"
	TierPoor      PerformanceTier = "poor"
)

// DuplicateMetrics is a periodically recomputed snapshot over all duplicates,
// workflows and jobs. It is derived data: never authoritative, always
// recomputable, stale by at most one recompute interval.
type DuplicateMetrics struct {
	TotalDuplicates int                     `json:"total_duplicates"`
	ByStatus        map[DuplicateStatus]int `json:"by_status"`
	ByRecordType    map[RecordType]int      `json:"by_record_type"`
	BySourceSystem  map[string]int          `json:"by_source_system"`

	AverageConfidence  float64 `json:"average_confidence"`
	DetectionAccuracy  float64 `json:"detection_accuracy"`   // (reviewed - falsePositives) / reviewed
	FalsePositiveRate  float64 `json:"false_positive_rate"`
	AutoMergeRate      float64 `json:"auto_merge_rate"`
	ManualReviewRate   float64 `json:"manual_review_rate"`
	DetectedToday      int     `json:"detected_today"`
	AvgDetectionTimeMs float64 `json:"avg_detection_time_ms"`

	PendingWorkflows int `json:"pending_workflows"`
	ActiveJobs       int `json:"active_jobs"`

	Performance PerformanceTier `json:"performance"`
	ComputedAt  time.Time       `json:"computed_at"`
}

// HealthVerdict is the monitor's coarse operational assessment.
type HealthVerdict string

const (
	HealthHealthy   HealthVerdict = "healthy"
	HealthDegraded  HealthVerdict = "degraded"
	HealthUnhealthy HealthVerdict = "unhealthy"
)

// HealthStatus is the health check result derived from the latest metrics.
type HealthStatus struct {
	Status           HealthVerdict `json:"status"`
	PendingWorkflows int           `json:"pending_workflows"`
	ActiveJobs       int           `json:"active_jobs"`
	AvgDetectionMs   float64       `json:"avg_detection_ms"`
	FalsePositivePct float64       `json:"false_positive_pct"`
	CheckedAt        time.Time     `json:"checked_at"`
}
