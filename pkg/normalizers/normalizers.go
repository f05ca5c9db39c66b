// Package normalizers provides named field normalization functions applied
// before similarity comparison.
package normalizers

import (
	"regexp"
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	Register("lowercase", Lowercase)
	Register("uppercase", Uppercase)
	Register("trim", Trim)
	Register("phone", Phone)
	Register("email", Email)
	Register("name", PersonName)
	Register("company", CompanyName)
	Register("address", Address)
	Register("digits_only", DigitsOnly)
	Register("alphanumeric", Alphanumeric)
	Register("strip_special", StripSpecialChars)
	Register("remove_whitespace", RemoveWhitespace)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value. Unknown names pass the value
// through unchanged.
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// Built-in normalizers

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Uppercase converts string to uppercase
func Uppercase(s string) string {
	return strings.ToUpper(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// Phone reduces a phone number to its digits
func Phone(s string) string {
	return DigitsOnly(s)
}

// Email normalizes an email address (lowercase, trim)
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// RemoveWhitespace removes all whitespace characters
func RemoveWhitespace(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsSpace(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// StripSpecialChars keeps letters, digits and single spaces
func StripSpecialChars(s string) string {
	var result strings.Builder
	prevSpace := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			result.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r):
			if !prevSpace && result.Len() > 0 {
				result.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	return strings.TrimSpace(result.String())
}

// PersonName normalizes a person's name for matching
// - Lowercase
// - Remove common suffixes (Jr., Sr., III, etc.)
// - Strip punctuation, collapse whitespace
func PersonName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	suffixes := []string{" jr.", " jr", " sr.", " sr", " iii", " ii", " iv", " phd", " md"}
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			s = s[:len(s)-len(suffix)]
		}
	}

	return StripSpecialChars(s)
}

// CompanyName normalizes a company name for matching by dropping common
// legal-entity suffixes
func CompanyName(s string) string {
	s = StripSpecialChars(strings.ToLower(s))

	suffixes := []string{" incorporated", " corporation", " company", " limited", " inc", " corp", " llc", " ltd", " co", " gmbh"}
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			s = s[:len(s)-len(suffix)]
			break
		}
	}

	return strings.TrimSpace(s)
}

// DigitsOnly keeps only digit characters
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Alphanumeric keeps only alphanumeric characters
func Alphanumeric(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

var spaceRe = regexp.MustCompile(`\s+`)

// Address normalizes a postal address string
func Address(s string) string {
	s = strings.ToLower(s)

	replacements := map[string]string{
		" street":    " st",
		" avenue":    " ave",
		" boulevard": " blvd",
		" drive":     " dr",
		" road":      " rd",
		" lane":      " ln",
		" court":     " ct",
		" place":     " pl",
		" suite":     " ste",
		" apartment": " apt",
		" north":     " n",
		" south":     " s",
		" east":      " e",
		" west":      " w",
	}

	for full, abbr := range replacements {
		s = strings.ReplaceAll(s, full, abbr)
	}

	s = spaceRe.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}
