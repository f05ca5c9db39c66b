package models

import (
	"github.com/spf13/cast"
)

// Record is a schema-agnostic CRM record (contact, lead, account, opportunity).
// Field names are source-system defined; the engine only requires an "id".
type Record map[string]any

// ID returns the record identifier, coerced to string.
func (r Record) ID() string {
	if v, ok := r["id"]; ok {
		return cast.ToString(v)
	}
	return ""
}

// Has reports whether the record carries a non-nil value for the field.
func (r Record) Has(field string) bool {
	v, ok := r[field]
	return ok && v != nil
}

// StringField returns the field value coerced to a string.
func (r Record) StringField(field string) (string, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", false
	}
	return cast.ToString(v), true
}

// RecordType identifies the kind of CRM entity a rule or strategy applies to.
type RecordType string

const (
	RecordTypeContact     RecordType = "contact"
	RecordTypeLead        RecordType = "lead"
	RecordTypeAccount     RecordType = "account"
	RecordTypeOpportunity RecordType = "opportunity"

	// RecordTypeAny is the universal fallback used by deduplication strategies.
	RecordTypeAny RecordType = "*"
)
