package events

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmforge/dedupe/pkg/models"
)

func newTestEmitter() (*Emitter, *MemoryPublisher) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	publisher := NewMemoryPublisher()
	return NewEmitter(publisher, logger), publisher
}

func TestEmitRuleUpdated(t *testing.T) {
	emitter, publisher := newTestEmitter()

	rule := &models.MatchingRule{ID: "rule-1", Name: "contacts"}
	emitter.EmitRuleUpdated(context.Background(), rule)

	published := publisher.ByType(TypeRuleUpdated)
	require.Len(t, published, 1)
	assert.Equal(t, "rule-1", published[0].Key)
	assert.Equal(t, SchemaVersion, published[0].Version)
	assert.Equal(t, rule, published[0].Payload)
}
