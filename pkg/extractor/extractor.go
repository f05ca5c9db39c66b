// Package extractor resolves field paths inside nested record data. Matching
// configs and exclusion rules reference fields by dot notation with optional
// array access: "address.city", "emails[0]", "phones[*].number".
package extractor

import (
	"strconv"
	"strings"
)

// Extract resolves a path against nested data. The second return reports
// whether the path resolved to a value. A [*] segment selects the first
// element of the array.
func Extract(data any, path string) (any, bool) {
	if path == "" {
		return data, true
	}

	current := data
	for _, part := range parsePath(path) {
		var ok bool
		current, ok = extractPart(current, part)
		if !ok {
			return nil, false
		}
	}
	return current, true
}

type pathPart struct {
	key        string
	isArray    bool
	arrayIndex int
	isWildcard bool
}

func parsePath(path string) []pathPart {
	var parts []pathPart
	for _, seg := range strings.Split(path, ".") {
		part := pathPart{key: seg}

		if idx := strings.Index(seg, "["); idx != -1 && strings.HasSuffix(seg, "]") {
			part.key = seg[:idx]
			index := seg[idx+1 : len(seg)-1]
			if index == "*" {
				part.isArray = true
				part.isWildcard = true
			} else if i, err := strconv.Atoi(index); err == nil {
				part.isArray = true
				part.arrayIndex = i
			}
		}

		parts = append(parts, part)
	}
	return parts
}

func extractPart(data any, part pathPart) (any, bool) {
	value := data

	if part.key != "" {
		m, ok := data.(map[string]any)
		if !ok {
			return nil, false
		}
		value, ok = m[part.key]
		if !ok {
			return nil, false
		}
	}

	if !part.isArray {
		return value, true
	}

	arr, ok := toSlice(value)
	if !ok {
		return nil, false
	}

	if part.isWildcard {
		if len(arr) == 0 {
			return nil, false
		}
		return arr[0], true
	}

	if part.arrayIndex < 0 || part.arrayIndex >= len(arr) {
		return nil, false
	}
	return arr[part.arrayIndex], true
}

func toSlice(v any) ([]any, bool) {
	switch arr := v.(type) {
	case []any:
		return arr, true
	case []string:
		out := make([]any, len(arr))
		for i, s := range arr {
			out[i] = s
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(arr))
		for i, m := range arr {
			out[i] = m
		}
		return out, true
	default:
		return nil, false
	}
}
