package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRecord() map[string]any {
	return map[string]any{
		"id":   "rec-1",
		"name": "John Smith",
		"address": map[string]any{
			"city":    "Berlin",
			"country": "DE",
		},
		"emails": []any{"john@example.com", "j.smith@work.example"},
		"phones": []any{
			map[string]any{"type": "mobile", "number": "+49 151 1234567"},
			map[string]any{"type": "office", "number": "+49 30 7654321"},
		},
		"tags": []string{"vip", "eu"},
	}
}

func TestExtractTopLevel(t *testing.T) {
	v, ok := Extract(testRecord(), "name")
	assert.True(t, ok)
	assert.Equal(t, "John Smith", v)
}

func TestExtractNested(t *testing.T) {
	v, ok := Extract(testRecord(), "address.city")
	assert.True(t, ok)
	assert.Equal(t, "Berlin", v)
}

func TestExtractArrayIndex(t *testing.T) {
	v, ok := Extract(testRecord(), "emails[1]")
	assert.True(t, ok)
	assert.Equal(t, "j.smith@work.example", v)

	v, ok = Extract(testRecord(), "phones[1].number")
	assert.True(t, ok)
	assert.Equal(t, "+49 30 7654321", v)
}

func TestExtractWildcardPicksFirst(t *testing.T) {
	v, ok := Extract(testRecord(), "phones[*].number")
	assert.True(t, ok)
	assert.Equal(t, "+49 151 1234567", v)
}

func TestExtractTypedSlices(t *testing.T) {
	v, ok := Extract(testRecord(), "tags[0]")
	assert.True(t, ok)
	assert.Equal(t, "vip", v)
}

func TestExtractMissing(t *testing.T) {
	cases := []string{
		"missing",
		"address.zip",
		"emails[5]",
		"name.city",       // scalar treated as map
		"address[0]",      // map treated as array
		"phones[*].label", // element exists but key does not
	}
	for _, path := range cases {
		_, ok := Extract(testRecord(), path)
		assert.False(t, ok, "path %q should not resolve", path)
	}
}

func TestExtractEmptyPathReturnsInput(t *testing.T) {
	data := testRecord()
	v, ok := Extract(data, "")
	assert.True(t, ok)
	assert.Equal(t, data, v)
}
