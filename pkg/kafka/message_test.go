package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmforge/dedupe/pkg/models"
)

func TestParseEnvelope(t *testing.T) {
	msg := &IncomingMessage{
		Value: []byte(`{"record_type":"contact","source_system":"salesforce","record":{"id":"rec-1","email":"john@example.com"}}`),
	}

	require.NoError(t, msg.ParseEnvelope())
	assert.Equal(t, models.RecordTypeContact, msg.Envelope.RecordType)
	assert.Equal(t, "salesforce", msg.Envelope.SourceSystem)
	assert.Equal(t, "rec-1", msg.Envelope.Record.ID())
}

func TestParseEnvelopeHeaderFallback(t *testing.T) {
	msg := &IncomingMessage{
		Value:   []byte(`{"record":{"id":"rec-1"}}`),
		Headers: map[string]string{"record_type": "account", "source_system": "hubspot"},
	}

	require.NoError(t, msg.ParseEnvelope())
	assert.Equal(t, models.RecordTypeAccount, msg.Envelope.RecordType)
	assert.Equal(t, "hubspot", msg.Envelope.SourceSystem)
}

func TestParseEnvelopeRejectsMissingID(t *testing.T) {
	msg := &IncomingMessage{Value: []byte(`{"record":{"email":"john@example.com"}}`)}
	assert.ErrorIs(t, msg.ParseEnvelope(), ErrMissingRecordID)

	malformed := &IncomingMessage{Value: []byte(`not json`)}
	assert.Error(t, malformed.ParseEnvelope())
}
