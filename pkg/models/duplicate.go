package models

import "time"

// DuplicateStatus is the lifecycle status of a detected duplicate pair.
// Duplicates are never deleted, only status-transitioned (audit trail).
type DuplicateStatus string

const (
	DuplicateStatusPending       DuplicateStatus = "pending"
	DuplicateStatusReviewed      DuplicateStatus = "reviewed"
	DuplicateStatusMerged        DuplicateStatus = "merged"
	DuplicateStatusIgnored       DuplicateStatus = "ignored"
	DuplicateStatusFalsePositive DuplicateStatus = "false_positive"
)

// Recommendation is the scoring engine's decision for a candidate pair.
type Recommendation string

const (
	RecommendationAutoMerge Recommendation = "auto_merge"
	RecommendationReview    Recommendation = "review"
	RecommendationIgnore    Recommendation = "ignore"
)

// ConfidenceBucket is a coarse label derived from the 0-100 confidence score.
type ConfidenceBucket string

const (
	ConfidenceVeryHigh ConfidenceBucket = "very_high" // >= 90
	ConfidenceHigh     ConfidenceBucket = "high"      // >= 75
	ConfidenceMedium   ConfidenceBucket = "medium"    // >= 50
	ConfidenceLow      ConfidenceBucket = "low"
)

// MatchedField records how a single field compared between source and candidate.
type MatchedField struct {
	Field          string  `json:"field"`
	SourceValue    any     `json:"source_value"`
	CandidateValue any     `json:"candidate_value"`
	Similarity     float64 `json:"similarity"` // normalized 0-1
	Algorithm      string  `json:"algorithm"`  // algorithm that produced the best similarity
	Weight         float64 `json:"weight"`
	ExactMatch     bool    `json:"exact_match"`
}

// DuplicateMetadata carries detection context on a duplicate record.
type DuplicateMetadata struct {
	RuleID          string         `json:"rule_id"`
	Recommendation  Recommendation `json:"recommendation"`
	DetectionTimeMs int64          `json:"detection_time_ms"`
}

// DuplicateRecord is a detected (source, candidate) pair with its confidence score.
type DuplicateRecord struct {
	ID                string            `json:"id"`
	SourceRecordID    string            `json:"source_record_id"`
	SourceSystem      string            `json:"source_system"`
	CandidateRecordID string            `json:"candidate_record_id"`
	CandidateSystem   string            `json:"candidate_system"`
	RecordType        RecordType        `json:"record_type"`
	ConfidenceScore   float64           `json:"confidence_score"` // 0-100
	MatchedFields     []MatchedField    `json:"matched_fields"`
	DetectionMethod   string            `json:"detection_method"` // realtime, batch
	Status            DuplicateStatus   `json:"status"`
	ReviewedBy        *string           `json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time        `json:"reviewed_at,omitempty"`
	Metadata          DuplicateMetadata `json:"metadata"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// IsTerminal reports whether the duplicate has left the review pipeline.
func (d *DuplicateRecord) IsTerminal() bool {
	switch d.Status {
	case DuplicateStatusMerged, DuplicateStatusIgnored, DuplicateStatusFalsePositive:
		return true
	}
	return false
}

// ReviewDuplicateRequest resolves a pending duplicate manually.
type ReviewDuplicateRequest struct {
	Status     DuplicateStatus `json:"status" validate:"required,oneof=reviewed merged ignored false_positive"`
	ReviewedBy string          `json:"reviewed_by" validate:"required"`
}
