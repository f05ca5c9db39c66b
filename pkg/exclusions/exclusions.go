// Package exclusions evaluates operator-based exclusion rules that remove
// otherwise-matching record pairs. Conditions are declarative data, never code.
package exclusions

import (
	"reflect"

	"github.com/spf13/cast"

	"github.com/crmforge/dedupe/pkg/extractor"
	"github.com/crmforge/dedupe/pkg/models"
)

// Supported condition operators
const (
	OpEquals   = "$eq"
	OpNe       = "$ne"
	OpIn       = "$in"
	OpContains = "$contains"
	OpGt       = "$gt"
	OpGte      = "$gte"
	OpLt       = "$lt"
	OpLte      = "$lte"
	OpExists   = "$exists"
)

// Excluded reports whether a (source, candidate) pair is removed by any of the
// rules. A rule fires when either record satisfies its condition.
func Excluded(source, candidate models.Record, rules []models.ExclusionRule) bool {
	for _, rule := range rules {
		if Matches(source, rule) || Matches(candidate, rule) {
			return true
		}
	}
	return false
}

// Matches evaluates a single exclusion rule against a record. Rule fields use
// extractor path syntax, so nested and array fields work.
func Matches(record models.Record, rule models.ExclusionRule) bool {
	value, exists := extractor.Extract(map[string]any(record), rule.Field)

	switch rule.Condition {
	case OpEquals, "":
		if !exists {
			return false
		}
		return valuesEqual(value, rule.Value)

	case OpNe:
		if !exists {
			return true // missing field never equals a concrete value
		}
		return !valuesEqual(value, rule.Value)

	case OpExists:
		expectExists := cast.ToBool(rule.Value)
		return exists == expectExists

	case OpContains:
		if !exists {
			return false
		}
		arr, ok := toSlice(value)
		if !ok {
			return false
		}
		for _, item := range arr {
			if valuesEqual(item, rule.Value) {
				return true
			}
		}
		return false

	case OpIn:
		if !exists {
			return false
		}
		options, ok := toSlice(rule.Value)
		if !ok {
			return false
		}
		for _, opt := range options {
			if valuesEqual(value, opt) {
				return true
			}
		}
		return false

	case OpGt, OpGte, OpLt, OpLte:
		if !exists {
			return false
		}
		return compareNumeric(value, rule.Condition, rule.Value)

	default:
		// Unknown operator
		return false
	}
}

// valuesEqual compares two values with type coercion
func valuesEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	if reflect.DeepEqual(a, b) {
		return true
	}

	// String comparison absorbs type mismatches like float64 vs int
	return cast.ToString(a) == cast.ToString(b)
}

// toSlice converts an interface to []any
func toSlice(v any) ([]any, bool) {
	if arr, ok := v.([]any); ok {
		return arr, true
	}

	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Slice {
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			result[i] = val.Index(i).Interface()
		}
		return result, true
	}
	return nil, false
}

// compareNumeric performs numeric comparison
func compareNumeric(actual any, op string, expected any) bool {
	actualNum, err := cast.ToFloat64E(actual)
	if err != nil {
		return false
	}

	expectedNum, err := cast.ToFloat64E(expected)
	if err != nil {
		return false
	}

	switch op {
	case OpGte:
		return actualNum >= expectedNum
	case OpGt:
		return actualNum > expectedNum
	case OpLte:
		return actualNum <= expectedNum
	case OpLt:
		return actualNum < expectedNum
	default:
		return false
	}
}
