package merging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/crmforge/dedupe/pkg/models"
)

func TestMergeFieldNewestOldest(t *testing.T) {
	m := NewFieldMerger()

	older := models.Record{"city": "Austin", "updated_at": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := models.Record{"city": "Dallas", "updated_at": time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}

	got := m.MergeField(models.MergeRule{Field: "city", Strategy: models.MergeNewest}, older, newer)
	assert.Equal(t, "Dallas", got)

	got = m.MergeField(models.MergeRule{Field: "city", Strategy: models.MergeOldest}, newer, older)
	assert.Equal(t, "Austin", got)
}

func TestMergeFieldKeepSourceUnconditional(t *testing.T) {
	m := NewFieldMerger()

	source := models.Record{"phone": ""}
	target := models.Record{"phone": "555-1234"}

	// keep_source yields the source value even when it is empty
	got := m.MergeField(models.MergeRule{Field: "phone", Strategy: models.MergeKeepSource}, source, target)
	assert.Equal(t, "", got)

	got = m.MergeField(models.MergeRule{Field: "phone", Strategy: models.MergeKeepTarget}, target, source)
	assert.Equal(t, "", got)

	got = m.MergeField(models.MergeRule{Field: "missing", Strategy: models.MergeKeepSource}, source, target)
	assert.Nil(t, got)
}

func TestMergeFieldEmptyLoses(t *testing.T) {
	m := NewFieldMerger()

	source := models.Record{"phone": ""}
	target := models.Record{"phone": "555-1234"}

	got := m.MergeField(models.MergeRule{Field: "phone", Strategy: models.MergeLongest}, source, target)
	assert.Equal(t, "555-1234", got)

	got = m.MergeField(models.MergeRule{Field: "phone", Strategy: models.MergeNewest}, target, source)
	assert.Equal(t, "555-1234", got)
}

func TestMergeFieldLongest(t *testing.T) {
	m := NewFieldMerger()

	source := models.Record{"name": "Jo"}
	target := models.Record{"name": "Joanna"}

	got := m.MergeField(models.MergeRule{Field: "name", Strategy: models.MergeLongest}, source, target)
	assert.Equal(t, "Joanna", got)

	// ties keep the source value
	got = m.MergeField(models.MergeRule{Field: "name", Strategy: models.MergeLongest},
		models.Record{"name": "abc"}, models.Record{"name": "xyz"})
	assert.Equal(t, "abc", got)
}

func TestMergeFieldCombine(t *testing.T) {
	m := NewFieldMerger()

	source := models.Record{"tags": []any{"vip", "west"}}
	target := models.Record{"tags": []any{"west", "priority"}}

	got := m.MergeField(models.MergeRule{Field: "tags", Strategy: models.MergeCombine}, source, target)
	assert.Equal(t, []any{"vip", "west", "priority"}, got)

	// scalar concatenation
	got = m.MergeField(models.MergeRule{Field: "notes", Strategy: models.MergeCombine},
		models.Record{"notes": "from import"}, models.Record{"notes": "manual entry"})
	assert.Equal(t, "from import; manual entry", got)

	// identical scalars stay single
	got = m.MergeField(models.MergeRule{Field: "notes", Strategy: models.MergeCombine},
		models.Record{"notes": "same"}, models.Record{"notes": "same"})
	assert.Equal(t, "same", got)
}

func TestMergeFieldUnknownCustomMergerKeepsSource(t *testing.T) {
	m := NewFieldMerger()

	got := m.MergeField(models.MergeRule{Field: "name", Strategy: models.MergeCustom, CustomMerger: "nope"},
		models.Record{"name": "a"}, models.Record{"name": "b"})
	assert.Equal(t, "a", got)
}
