package kafka

import (
	"encoding/json"
	"time"

	"github.com/crmforge/dedupe/pkg/models"
)

// RecordEnvelope is the wire format for CRM records arriving on the ingestion
// topic. Upstream connectors publish one envelope per created or updated
// record.
type RecordEnvelope struct {
	RecordType   models.RecordType `json:"record_type"`
	SourceSystem string            `json:"source_system"`
	Record       models.Record     `json:"record"`
	EmittedAt    time.Time         `json:"emitted_at"`
}

// IncomingMessage is a fetched Kafka message plus its parsed envelope.
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	Envelope *RecordEnvelope
}

// ParseEnvelope decodes the message value into a record envelope. Envelopes
// without a record ID are rejected so detection never runs on anonymous
// records.
func (m *IncomingMessage) ParseEnvelope() error {
	var envelope RecordEnvelope
	if err := json.Unmarshal(m.Value, &envelope); err != nil {
		return err
	}
	if envelope.Record.ID() == "" {
		return ErrMissingRecordID
	}
	if envelope.RecordType == "" {
		envelope.RecordType = models.RecordType(m.Headers["record_type"])
	}
	if envelope.SourceSystem == "" {
		envelope.SourceSystem = m.Headers["source_system"]
	}

	m.Envelope = &envelope
	return nil
}
