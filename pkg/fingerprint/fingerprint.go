// Package fingerprint produces deterministic content hashes for CRM records.
// Two records with the same field values always hash the same, regardless of
// key order.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/crmforge/dedupe/pkg/models"
)

// volatile fields that change on every sync without the record content changing
var defaultExclusions = map[string]bool{
	"updated_at":     true,
	"last_synced_at": true,
}

// Record hashes a record's canonical form, skipping volatile bookkeeping
// fields and any extra dot-notation paths given.
func Record(rec models.Record, exclude ...string) string {
	exclusions := make(map[string]bool, len(defaultExclusions)+len(exclude))
	for field := range defaultExclusions {
		exclusions[field] = true
	}
	for _, field := range exclude {
		exclusions[field] = true
	}

	hash := sha256.Sum256([]byte(canonicalize(map[string]any(rec), exclusions, "")))
	return hex.EncodeToString(hash[:])
}

// Changed reports whether two fingerprints differ
func Changed(a, b string) bool {
	return a != b
}

func canonicalize(data any, exclusions map[string]bool, path string) string {
	switch v := data.(type) {
	case map[string]any:
		return canonicalizeMap(v, exclusions, path)
	case []any:
		return canonicalizeSlice(v, exclusions, path)
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

func canonicalizeMap(m map[string]any, exclusions map[string]bool, path string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("{")
	first := true
	for _, k := range keys {
		fieldPath := k
		if path != "" {
			fieldPath = path + "." + k
		}
		if excluded(fieldPath, exclusions) {
			continue
		}

		if !first {
			sb.WriteString(",")
		}
		first = false

		keyJSON, _ := json.Marshal(k)
		sb.Write(keyJSON)
		sb.WriteString(":")
		sb.WriteString(canonicalize(m[k], exclusions, fieldPath))
	}
	sb.WriteString("}")
	return sb.String()
}

func canonicalizeSlice(arr []any, exclusions map[string]bool, path string) string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, v := range arr {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(canonicalize(v, exclusions, path))
	}
	sb.WriteString("]")
	return sb.String()
}

// excluded matches exact paths and parents of nested paths
func excluded(fieldPath string, exclusions map[string]bool) bool {
	if exclusions[fieldPath] {
		return true
	}
	for path := range exclusions {
		if strings.HasPrefix(fieldPath, path+".") {
			return true
		}
	}
	return false
}
