package models

import (
	"fmt"
	"time"
)

// MergeStrategyKind selects how a single field is resolved when two records collapse.
type MergeStrategyKind string

const (
	MergeKeepSource MergeStrategyKind = "keep_source"
	MergeKeepTarget MergeStrategyKind = "keep_target"
	MergeNewest     MergeStrategyKind = "newest" // by record updated_at timestamp
	MergeOldest     MergeStrategyKind = "oldest"
	MergeLongest    MergeStrategyKind = "longest" // by string length
	MergeCombine    MergeStrategyKind = "merge"   // concatenation / union semantics
	MergeCustom     MergeStrategyKind = "custom"  // named registered merger function
)

// MergeRule resolves one field during a merge. Rules apply in ascending Priority.
type MergeRule struct {
	Field        string            `json:"field" validate:"required"`
	Strategy     MergeStrategyKind `json:"strategy" validate:"required"`
	CustomMerger string            `json:"custom_merger,omitempty"` // required when Strategy == custom
	Priority     int               `json:"priority"`
}

// ConflictResolutionMode declares whether a field conflict is resolved by a person
// or by policy.
type ConflictResolutionMode string

const (
	ConflictModeManual    ConflictResolutionMode = "manual"
	ConflictModeAutomatic ConflictResolutionMode = "automatic"
)

// ConflictResolution declares per-field conflict handling. A field with
// RequiresApproval set is never merged automatically, even when a MergeRule
// reaches it; it is deferred to manual resolution.
type ConflictResolution struct {
	Field            string                 `json:"field"`
	Mode             ConflictResolutionMode `json:"mode"`
	AutomaticPolicy  MergeStrategyKind      `json:"automatic_policy,omitempty"`
	RequiresApproval bool                   `json:"requires_approval"`
}

// DeduplicationStrategy is the declarative recipe for collapsing two records.
// Exactly one strategy may be the default per record type; RecordTypeAny acts as
// the universal fallback when no type-specific default exists.
type DeduplicationStrategy struct {
	ID                  string               `json:"id"`
	Name                string               `json:"name" validate:"required"`
	RecordType          RecordType           `json:"record_type" validate:"required"`
	IsDefault           bool                 `json:"is_default"`
	MergeRules          []MergeRule          `json:"merge_rules" validate:"required,min=1,dive"`
	ConflictResolutions []ConflictResolution `json:"conflict_resolutions,omitempty"`
	PreserveAuditTrail  bool                 `json:"preserve_audit_trail"`
	BackupBeforeMerge   bool                 `json:"backup_before_merge"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// Validate checks the strategy invariants before it can be activated.
func (s *DeduplicationStrategy) Validate() error {
	if len(s.MergeRules) == 0 {
		return fmt.Errorf("strategy %q: at least one merge rule must be configured", s.Name)
	}
	for _, r := range s.MergeRules {
		if r.Field == "" {
			return fmt.Errorf("strategy %q: merge rule field is required", s.Name)
		}
		if r.Strategy == MergeCustom && r.CustomMerger == "" {
			return fmt.Errorf("strategy %q: custom merge rule for %q names no merger", s.Name, r.Field)
		}
	}
	return nil
}

// MergeReceipt is the result of collapsing a duplicate pair.
type MergeReceipt struct {
	DuplicateID     string    `json:"duplicate_id"`
	MergedRecordID  string    `json:"merged_record_id"`  // surviving record
	RemovedRecordID string    `json:"removed_record_id"` // collapsed record
	MergedData      Record    `json:"merged_data"`
	FieldsMerged    []string  `json:"fields_merged"`
	DeferredFields  []string  `json:"deferred_fields,omitempty"` // awaiting manual approval
	Strategy        string    `json:"strategy"`
	BackupKey       string    `json:"backup_key,omitempty"`
	MergedAt        time.Time `json:"merged_at"`
}

// CreateStrategyRequest is the request to create a deduplication strategy.
type CreateStrategyRequest struct {
	Name                string               `json:"name" validate:"required"`
	RecordType          RecordType           `json:"record_type" validate:"required"`
	IsDefault           bool                 `json:"is_default"`
	MergeRules          []MergeRule          `json:"merge_rules" validate:"required,min=1"`
	ConflictResolutions []ConflictResolution `json:"conflict_resolutions,omitempty"`
	PreserveAuditTrail  bool                 `json:"preserve_audit_trail"`
	BackupBeforeMerge   bool                 `json:"backup_before_merge"`
}
