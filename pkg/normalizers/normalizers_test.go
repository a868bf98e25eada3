package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"acme.com", "acme.com"},
		{"www.acme.com", "acme.com"},
		{"https://www.Acme.com/about?x=1", "acme.com"},
		{"http://acme.com:8080/", "acme.com"},
		{"ACME.COM.", "acme.com"},
		{"//cdn.acme.com/path", "cdn.acme.com"},
		{"ftp://user:pw@acme.com", "acme.com"},
		{"  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDomain(tt.input))
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "john@example.com", NormalizeEmail("  John@Example.COM "))
	assert.Equal(t, "a@b.io", NormalizeEmail("mailto:A@B.io"))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "john smith", NormalizeName("John  Smith Jr."))
	assert.Equal(t, "obrien patrick", NormalizeName("O'Brien,  Patrick"))
	assert.Equal(t, "acme inc", NormalizeOrganizationName("ACME, Inc."))
}

func TestSortTokens(t *testing.T) {
	assert.Equal(t, "john smith", SortTokens("smith john"))
	assert.Equal(t, SortTokens("john smith"), SortTokens("smith   john"))
	assert.Equal(t, "", SortTokens(""))
}

func TestApplyChain(t *testing.T) {
	assert.Equal(t, "john smith", ApplyChain("Smith, JOHN", PersonName, Tokens))
	assert.Equal(t, "acme.com", ApplyChain("https://www.ACME.com/about", Domain))
	assert.Equal(t, "As Is", ApplyChain("As Is", "missing"))
	assert.Equal(t, "As Is", ApplyChain("As Is"))
}
