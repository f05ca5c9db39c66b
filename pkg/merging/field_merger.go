package merging

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/spf13/cast"

	"github.com/crmforge/dedupe/pkg/models"
)

// CustomMerger resolves one field from a (source, target) value pair.
type CustomMerger func(field string, sourceVal, targetVal any) any

var (
	customMu      sync.RWMutex
	customMergers = make(map[string]CustomMerger)
)

// RegisterCustomMerger registers a named merger usable from merge rules with
// the custom strategy.
func RegisterCustomMerger(name string, fn CustomMerger) {
	customMu.Lock()
	defer customMu.Unlock()
	customMergers[name] = fn
}

func customMerger(name string) (CustomMerger, bool) {
	customMu.RLock()
	defer customMu.RUnlock()
	fn, ok := customMergers[name]
	return fn, ok
}

// FieldMerger resolves single fields between a surviving source record and the
// candidate record being collapsed into it.
type FieldMerger struct{}

// NewFieldMerger creates a new FieldMerger
func NewFieldMerger() *FieldMerger {
	return &FieldMerger{}
}

// MergeField resolves one field per the rule's strategy. The source record is
// the survivor; target is the record being collapsed. keep_source and
// keep_target are unconditional; for every other strategy an empty value loses
// to a non-empty one.
func (m *FieldMerger) MergeField(rule models.MergeRule, source, target models.Record) any {
	sourceVal := source[rule.Field]
	targetVal := target[rule.Field]

	switch rule.Strategy {
	case models.MergeKeepSource:
		return sourceVal
	case models.MergeKeepTarget:
		return targetVal
	}

	if isEmpty(sourceVal) && isEmpty(targetVal) {
		return nil
	}
	if isEmpty(targetVal) {
		return sourceVal
	}
	if isEmpty(sourceVal) {
		return targetVal
	}

	switch rule.Strategy {
	case models.MergeNewest:
		if recordTime(target).After(recordTime(source)) {
			return targetVal
		}
		return sourceVal
	case models.MergeOldest:
		if !recordTime(target).IsZero() && recordTime(target).Before(recordTime(source)) {
			return targetVal
		}
		return sourceVal
	case models.MergeLongest:
		return longest(sourceVal, targetVal)
	case models.MergeCombine:
		return combine(sourceVal, targetVal)
	case models.MergeCustom:
		if fn, ok := customMerger(rule.CustomMerger); ok {
			return fn(rule.Field, sourceVal, targetVal)
		}
		return sourceVal
	default:
		return sourceVal
	}
}

// recordTime reads the record's updated_at timestamp, zero when absent or
// unparseable.
func recordTime(record models.Record) time.Time {
	raw, ok := record["updated_at"]
	if !ok {
		return time.Time{}
	}
	parsed, err := cast.ToTimeE(raw)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// longest returns whichever value has the longer string form; ties keep source
func longest(sourceVal, targetVal any) any {
	if len(fmt.Sprintf("%v", targetVal)) > len(fmt.Sprintf("%v", sourceVal)) {
		return targetVal
	}
	return sourceVal
}

// combine unions slices and concatenates scalars
func combine(sourceVal, targetVal any) any {
	sourceSlice, sourceIsSlice := toSlice(sourceVal)
	targetSlice, targetIsSlice := toSlice(targetVal)

	if sourceIsSlice || targetIsSlice {
		if !sourceIsSlice {
			sourceSlice = []any{sourceVal}
		}
		if !targetIsSlice {
			targetSlice = []any{targetVal}
		}

		seen := make(map[string]bool)
		result := make([]any, 0, len(sourceSlice)+len(targetSlice))
		for _, v := range append(sourceSlice, targetSlice...) {
			key := fmt.Sprintf("%v", v)
			if seen[key] {
				continue
			}
			seen[key] = true
			result = append(result, v)
		}
		return result
	}

	sourceStr := cast.ToString(sourceVal)
	targetStr := cast.ToString(targetVal)
	if sourceStr == targetStr {
		return sourceVal
	}
	return sourceStr + "; " + targetStr
}

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

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch val := v.(type) {
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}
