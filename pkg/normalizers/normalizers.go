// Package normalizers canonicalizes attribute values before comparison.
package normalizers

import (
	"sort"
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// Names usable in a chain.
const (
	Email            = "nemail"
	Domain           = "ndomain"
	PersonName       = "nname"
	OrganizationName = "norgname"
	Tokens           = "sort_tokens"
)

var registry = map[string]Normalizer{
	Email:            NormalizeEmail,
	Domain:           NormalizeDomain,
	PersonName:       NormalizeName,
	OrganizationName: NormalizeOrganizationName,
	Tokens:           SortTokens,
}

// ApplyChain applies the named normalizers in sequence. Unknown names leave the value untouched.
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		if fn, ok := registry[name]; ok {
			result = fn(result)
		}
	}
	return result
}

// NormalizeEmail compares addresses case-insensitively.
func NormalizeEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimPrefix(s, "mailto:")
}

// NormalizeDomain reduces a domain or website URL to its bare host:
// scheme, credentials, "www." prefix, port, path, query and trailing dot are removed.
func NormalizeDomain(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimPrefix(s, "//")
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, ".")
	return strings.TrimPrefix(s, "www.")
}

var personSuffixes = []string{" jr.", " jr", " sr.", " sr", " iii", " ii", " iv", " phd", " md", " dds"}

// NormalizeName normalizes a person's name: lowercase, generational and
// academic suffixes removed, punctuation dropped, whitespace collapsed.
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, suffix := range personSuffixes {
		if strings.HasSuffix(s, suffix) {
			s = s[:len(s)-len(suffix)]
		}
	}
	return collapse(s)
}

// NormalizeOrganizationName lowercases, drops punctuation and collapses whitespace.
func NormalizeOrganizationName(s string) string {
	return collapse(strings.ToLower(s))
}

func collapse(s string) string {
	var result strings.Builder
	prevSpace := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			result.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r):
			if !prevSpace {
				result.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	return strings.TrimSpace(result.String())
}

// SortTokens orders whitespace separated tokens so word order does not matter.
func SortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
