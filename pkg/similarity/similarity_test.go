package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crmforge/dedupe/pkg/models"
)

func TestExactMatch(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 1.0, s.ExactMatch("john", "john", true))
	assert.Equal(t, 0.0, s.ExactMatch("john", "John", true))
	assert.Equal(t, 1.0, s.ExactMatch("john", "John", false))
}

func TestLevenshtein(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 1.0, s.Levenshtein("smith", "smith"))
	assert.Equal(t, 1.0, s.Levenshtein("", ""))
	assert.Equal(t, 0.0, s.Levenshtein("abc", "xyz"))

	// one substitution in a five letter word
	assert.InDelta(t, 0.8, s.Levenshtein("smith", "smyth"), 0.001)
}

func TestLevenshteinDistance(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 0, s.LevenshteinDistance("kitten", "kitten"))
	assert.Equal(t, 3, s.LevenshteinDistance("kitten", "sitting"))
	assert.Equal(t, 5, s.LevenshteinDistance("", "hello"))
}

func TestJaroWinkler(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 1.0, s.JaroWinkler("martha", "martha"))
	assert.Equal(t, 0.0, s.JaroWinkler("abc", "xyz"))

	// classic reference pair
	assert.InDelta(t, 0.961, s.JaroWinkler("martha", "marhta"), 0.005)

	// prefix boost puts jaroWinkler at or above jaro
	assert.GreaterOrEqual(t, s.JaroWinkler("dwayne", "duane"), s.Jaro("dwayne", "duane"))

	// no boost below the 0.7 gate, even with a shared prefix
	jaro := s.Jaro("aXXXXX", "aYYYYY")
	assert.Less(t, jaro, 0.7)
	assert.Equal(t, jaro, s.JaroWinkler("aXXXXX", "aYYYYY"))
}

func TestSoundex(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, "R163", s.Soundex("Robert"))
	assert.Equal(t, "R163", s.Soundex("Rupert"))
	assert.Equal(t, 1.0, s.SoundexMatch("Robert", "Rupert"))
	assert.Equal(t, 0.0, s.SoundexMatch("Robert", "Smith"))
	assert.Equal(t, 0.0, s.SoundexMatch("", "Smith"))
}

func TestFuzzy(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 1.0, s.Fuzzy("abc", "abc"))
	assert.Equal(t, 0.0, s.Fuzzy("", "abc"))

	// anagrams share every character
	assert.Equal(t, 1.0, s.Fuzzy("listen", "silent"))

	// half the characters overlap
	assert.InDelta(t, 0.5, s.Fuzzy("ab", "ax"), 0.001)
}

func TestEmailSimilarity(t *testing.T) {
	s := NewScorer()

	// cross-domain is never a match
	assert.Equal(t, 0.0, s.EmailSimilarity("a@x.com", "a@y.com"))

	assert.Equal(t, 1.0, s.EmailSimilarity("john@example.com", "john@EXAMPLE.com"))

	sim := s.EmailSimilarity("john.smith@example.com", "jon.smith@example.com")
	assert.Greater(t, sim, 0.8)
	assert.Less(t, sim, 1.0)
}

func TestPhoneSimilarity(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 1.0, s.PhoneSimilarity("(555) 123-4567", "555.123.4567"))

	// local versus international form
	assert.Equal(t, 0.9, s.PhoneSimilarity("+1 555 123 4567", "555-123-4567"))

	assert.Equal(t, 0.0, s.PhoneSimilarity("", "5551234567"))
}

func TestScoreDispatch(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 1.0, s.Score("exact", "a", "a"))
	assert.Equal(t, s.Levenshtein("smith", "smyth"), s.Score("levenshtein", "smith", "smyth"))
	assert.Equal(t, s.JaroWinkler("martha", "marhta"), s.Score("jaroWinkler", "martha", "marhta"))
	assert.Equal(t, 1.0, s.Score("phone", "5551234567", "555-123-4567"))

	// unknown algorithm falls back to exact
	assert.Equal(t, 0.0, s.Score("bogus", "a", "b"))
	assert.Equal(t, 1.0, s.Score("bogus", "a", "a"))
}

func TestNormalize(t *testing.T) {
	cfg := models.FieldMatchingConfig{
		Field:    "name",
		DataType: models.FieldTypeString,
	}
	assert.Equal(t, "john smith", Normalize("  John Smith ", cfg))

	cfg.CaseSensitive = true
	assert.Equal(t, "John Smith", Normalize("  John Smith ", cfg))

	cfg = models.FieldMatchingConfig{
		Field:              "name",
		DataType:           models.FieldTypeString,
		IgnoreSpecialChars: true,
	}
	assert.Equal(t, "obrien co", Normalize("O'Brien & Co.", cfg))

	cfg = models.FieldMatchingConfig{
		Field:                "phone",
		DataType:             models.FieldTypePhone,
		NormalizeBeforeMatch: true,
	}
	assert.Equal(t, "15551234567", Normalize("+1 (555) 123-4567", cfg))
}
