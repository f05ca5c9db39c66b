package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhone(t *testing.T) {
	assert.Equal(t, "15551234567", Phone("+1 (555) 123-4567"))
	assert.Equal(t, "5551234567", Phone("555.123.4567"))
	assert.Equal(t, "", Phone("no digits here"))
}

func TestEmail(t *testing.T) {
	assert.Equal(t, "john.doe@example.com", Email("  John.Doe@Example.COM "))
}

func TestPersonName(t *testing.T) {
	assert.Equal(t, "john smith", PersonName("John Smith Jr."))
	assert.Equal(t, "mary obrien", PersonName("  Mary   O'Brien  "))
	assert.Equal(t, "robert jones", PersonName("Robert Jones III"))
}

func TestCompanyName(t *testing.T) {
	assert.Equal(t, "acme", CompanyName("Acme Inc."))
	assert.Equal(t, "acme", CompanyName("ACME Corporation"))
	assert.Equal(t, "globex", CompanyName("Globex, LLC"))
}

func TestStripSpecialChars(t *testing.T) {
	assert.Equal(t, "abc 123", StripSpecialChars("a.b,c! 1-2-3"))
	assert.Equal(t, "hello world", StripSpecialChars("  hello   world  "))
}

func TestAddress(t *testing.T) {
	assert.Equal(t, "123 main st", Address("123 Main Street"))
	assert.Equal(t, "42 n oak ave ste 5", Address("42 North Oak Avenue Suite 5"))
}

func TestApplyChain(t *testing.T) {
	got := ApplyChain("  John@Example.COM  ", "trim", "lowercase")
	assert.Equal(t, "john@example.com", got)

	// unknown normalizers pass through
	assert.Equal(t, "x", ApplyChain("x", "does_not_exist"))
}

func TestRegisterCustom(t *testing.T) {
	Register("reverse_test", func(s string) string {
		runes := []rune(s)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return string(runes)
	})

	fn, ok := Get("reverse_test")
	assert.True(t, ok)
	assert.Equal(t, "cba", fn("abc"))
}
