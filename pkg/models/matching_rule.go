package models

import (
	"fmt"
	"time"
)

// FieldDataType declares how a field's values should be interpreted before matching.
type FieldDataType string

const (
	FieldTypeString  FieldDataType = "string"
	FieldTypeEmail   FieldDataType = "email"
	FieldTypePhone   FieldDataType = "phone"
	FieldTypeNumber  FieldDataType = "number"
	FieldTypeDate    FieldDataType = "date"
	FieldTypeBoolean FieldDataType = "boolean"
)

// FieldMatchingConfig configures how a single field is compared between two records.
type FieldMatchingConfig struct {
	Field                string        `json:"field" validate:"required"`
	DataType             FieldDataType `json:"data_type"`
	Weight               float64       `json:"weight" validate:"gte=0"`
	Algorithms           []string      `json:"algorithms" validate:"required,min=1"` // tried in order, best similarity wins
	NormalizeBeforeMatch bool          `json:"normalize_before_match"`
	CaseSensitive        bool          `json:"case_sensitive"`
	IgnoreSpecialChars   bool          `json:"ignore_special_chars"`
	MinimumSimilarity    float64       `json:"minimum_similarity"` // below this the field is skipped entirely
}

// MatchingThresholds are the three decision cutoffs on the 0-100 confidence scale.
// Invariant: AutoMerge >= HumanReview >= Ignore. All comparisons are inclusive (>=).
type MatchingThresholds struct {
	AutoMerge   float64 `json:"auto_merge"`
	HumanReview float64 `json:"human_review"`
	Ignore      float64 `json:"ignore"`
}

// AlgorithmDescriptor describes an algorithm available to a rule.
type AlgorithmDescriptor struct {
	Name      string          `json:"name"`
	Kind      string          `json:"kind"` // exact, fuzzy, phonetic, domain-specific
	DataTypes []FieldDataType `json:"data_types,omitempty"`
}

// ExclusionRule removes otherwise-matching pairs when the condition holds for
// either record. Conditions are operator expressions over named fields, evaluated
// by pkg/exclusions; arbitrary code is never executed.
type ExclusionRule struct {
	Field     string `json:"field"`
	Condition string `json:"condition"` // $eq, $ne, $in, $contains, $gt, $gte, $lt, $lte, $exists
	Value     any    `json:"value"`
}

// MatchingRule is the declarative per-record-type matching configuration.
// It is read-only during scoring; edits go through the configuration surface.
type MatchingRule struct {
	ID          string                `json:"id"`
	Name        string                `json:"name" validate:"required"`
	Description *string               `json:"description,omitempty"`
	RecordType  RecordType            `json:"record_type" validate:"required"`
	IsActive    bool                  `json:"is_active"`
	Fields      []FieldMatchingConfig `json:"fields" validate:"required,min=1,dive"`
	Thresholds  MatchingThresholds    `json:"thresholds"`
	Algorithms  []AlgorithmDescriptor `json:"algorithms,omitempty"`
	Exclusions  []ExclusionRule       `json:"exclusions,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// Validate checks the rule invariants before it can be activated.
func (r *MatchingRule) Validate() error {
	if len(r.Fields) == 0 {
		return fmt.Errorf("matching rule %q: at least one field must be configured", r.Name)
	}
	for _, f := range r.Fields {
		if f.Field == "" {
			return fmt.Errorf("matching rule %q: field name is required", r.Name)
		}
		if f.Weight < 0 {
			return fmt.Errorf("matching rule %q: field %q has negative weight", r.Name, f.Field)
		}
		if len(f.Algorithms) == 0 {
			return fmt.Errorf("matching rule %q: field %q has no algorithms", r.Name, f.Field)
		}
		if f.MinimumSimilarity < 0 || f.MinimumSimilarity > 1 {
			return fmt.Errorf("matching rule %q: field %q minimum similarity must be in [0,1]", r.Name, f.Field)
		}
	}
	t := r.Thresholds
	if t.AutoMerge < 0 || t.AutoMerge > 100 || t.HumanReview < 0 || t.HumanReview > 100 || t.Ignore < 0 || t.Ignore > 100 {
		return fmt.Errorf("matching rule %q: thresholds must be in [0,100]", r.Name)
	}
	if t.AutoMerge < t.HumanReview || t.HumanReview < t.Ignore {
		return fmt.Errorf("matching rule %q: thresholds must satisfy autoMerge >= humanReview >= ignore", r.Name)
	}
	return nil
}

// CreateMatchingRuleRequest is the request to create a matching rule.
type CreateMatchingRuleRequest struct {
	Name        string                `json:"name" validate:"required"`
	Description *string               `json:"description,omitempty"`
	RecordType  RecordType            `json:"record_type" validate:"required"`
	IsActive    bool                  `json:"is_active"`
	Fields      []FieldMatchingConfig `json:"fields" validate:"required,min=1"`
	Thresholds  MatchingThresholds    `json:"thresholds"`
	Algorithms  []AlgorithmDescriptor `json:"algorithms,omitempty"`
	Exclusions  []ExclusionRule       `json:"exclusions,omitempty"`
}

// UpdateMatchingRuleRequest is the request to update a matching rule.
type UpdateMatchingRuleRequest struct {
	Name        *string               `json:"name,omitempty"`
	Description *string               `json:"description,omitempty"`
	IsActive    *bool                 `json:"is_active,omitempty"`
	Fields      []FieldMatchingConfig `json:"fields,omitempty"`
	Thresholds  *MatchingThresholds   `json:"thresholds,omitempty"`
	Exclusions  []ExclusionRule       `json:"exclusions,omitempty"`
}
