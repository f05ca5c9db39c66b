package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crmforge/dedupe/pkg/models"
)

func TestRecordDeterministic(t *testing.T) {
	a := models.Record{"id": "rec-1", "email": "john@example.com", "name": "John"}
	b := models.Record{"name": "John", "id": "rec-1", "email": "john@example.com"}

	assert.Equal(t, Record(a), Record(b))
}

func TestRecordIgnoresVolatileFields(t *testing.T) {
	a := models.Record{"id": "rec-1", "name": "John", "updated_at": "2026-08-01T00:00:00Z"}
	b := models.Record{"id": "rec-1", "name": "John", "updated_at": "2026-08-29T00:00:00Z"}

	assert.Equal(t, Record(a), Record(b))
}

func TestRecordDetectsContentChange(t *testing.T) {
	a := models.Record{"id": "rec-1", "name": "John"}
	b := models.Record{"id": "rec-1", "name": "Johnny"}

	assert.True(t, Changed(Record(a), Record(b)))
}

func TestRecordCustomExclusions(t *testing.T) {
	a := models.Record{"id": "rec-1", "metadata": map[string]any{"version": 1, "source": "crm"}}
	b := models.Record{"id": "rec-1", "metadata": map[string]any{"version": 2, "source": "crm"}}

	assert.NotEqual(t, Record(a), Record(b))
	assert.Equal(t, Record(a, "metadata.version"), Record(b, "metadata.version"))
}

func TestRecordNestedStructures(t *testing.T) {
	a := models.Record{"id": "rec-1", "tags": []any{"vip", "eu"}, "address": map[string]any{"city": "Berlin"}}
	b := models.Record{"id": "rec-1", "tags": []any{"eu", "vip"}, "address": map[string]any{"city": "Berlin"}}

	// element order in arrays is significant
	assert.NotEqual(t, Record(a), Record(b))
}
