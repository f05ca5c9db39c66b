package models

import "errors"

// Engine error taxonomy. Lookup failures abort only the operation that required
// them; field-level and per-record batch failures are absorbed by their callers.
var (
	ErrRuleNotFound      = errors.New("no active matching rule for record type")
	ErrDuplicateNotFound = errors.New("duplicate record not found")
	ErrStrategyNotFound  = errors.New("no deduplication strategy for record type")
	ErrWorkflowNotFound  = errors.New("resolution workflow not found")
	ErrJobNotFound       = errors.New("batch detection job not found")

	// ErrAlreadyMerged is returned when a merge loses the pending -> merged
	// race; exactly one caller observes success.
	ErrAlreadyMerged = errors.New("duplicate is no longer pending")

	ErrWorkflowTerminal = errors.New("workflow is in a terminal state")
	ErrJobTerminal      = errors.New("batch job is in a terminal state")

	// ErrStatusConflict is returned when a status transition finds the record
	// in an unexpected state.
	ErrStatusConflict = errors.New("record status changed concurrently")
)
