// Package events defines the engine's typed event stream and the emitter that
// publishes it. Emission is fire-and-forget: failures are logged, never
// propagated into the operation that triggered them.
package events

import (
	"context"
	"time"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Type identifies an event on the stream.
type Type string

const (
	TypeDuplicateDetected Type = "duplicate.detected"
	TypeDuplicateReviewed Type = "duplicate.reviewed"
	TypeDuplicatesMerged  Type = "duplicate.merged"
	TypeDetectionError    Type = "detection.error"
	TypeMergeError        Type = "merge.error"
	TypeWorkflowCreated   Type = "workflow.created"
	TypeWorkflowAdvanced  Type = "workflow.advanced"
	TypeWorkflowCompleted Type = "workflow.completed"
	TypeWorkflowCancelled Type = "workflow.cancelled"
	TypeBatchStarted      Type = "batch.started"
	TypeBatchProgress     Type = "batch.progress"
	TypeBatchCompleted    Type = "batch.completed"
	TypeBatchFailed       Type = "batch.failed"
	TypeMetricsUpdated    Type = "metrics.updated"
	TypeRuleUpdated       Type = "rule.updated"
)

// Event is one message on the stream. Key determines partition affinity so all
// events for one duplicate, workflow or job stay ordered.
type Event struct {
	Type      Type      `json:"type"`
	Key       string    `json:"key"`
	Payload   any       `json:"payload,omitempty"`
	Version   string    `json:"schema_version"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers events to the outside world.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}
