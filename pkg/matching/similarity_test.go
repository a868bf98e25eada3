package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func attrs(name, identifier string) models.AttributeSet {
	var a models.AttributeSet
	if name != "" {
		a.Name = models.StringPtr(name)
	}
	if identifier != "" {
		a.Identifier = models.StringPtr(identifier)
	}
	return a
}

func mustWeights(t *testing.T, kind models.EntityKind) KindWeights {
	t.Helper()
	w, err := WeightsFor(kind)
	require.NoError(t, err)
	return w
}

func TestScorer_Score(t *testing.T) {
	scorer := NewScorer(AlgorithmLevenshtein)
	person := mustWeights(t, models.EntityKindPerson)
	org := mustWeights(t, models.EntityKindOrganization)

	tests := []struct {
		name      string
		weights   KindWeights
		source    models.AttributeSet
		candidate models.AttributeSet
		want      int
	}{
		{"BothEmpty", person, attrs("", ""), attrs("", ""), 0},
		{"SourceEmpty", person, attrs("", ""), attrs("John Smith", "john@example.com"), 0},
		{"BlankStringsCountAsMissing", person, attrs("   ", " "), attrs("John Smith", "john@example.com"), 0},
		{"IdenticalPerson", person, attrs("John Smith", "john@example.com"), attrs("John Smith", "john@example.com"), 100},
		{"EmailCaseInsensitive", person, attrs("", "John@Example.com"), attrs("", "john@example.com"), 100},
		{"NameOnlyRedistributesWeight", person, attrs("John Smith", ""), attrs("John Smith", "john@example.com"), 100},
		{"OneTypoInName", person, attrs("John Smith", "john@example.com"), attrs("Jon Smith", "JOHN@example.com"), 95},
		{"NoOverlappingFields", person, attrs("John Smith", ""), attrs("", "john@example.com"), 0},
		{"AcmeDomainCanonicalized", org, attrs("Acme Inc", "acme.com"), attrs("ACME, Inc.", "www.acme.com"), 100},
		{"WebsiteUrlAsDomain", org, attrs("", "https://acme.com/contact"), attrs("", "acme.com"), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scorer.Score(tt.weights, tt.source, tt.candidate))
		})
	}
}

func TestScorer_DifferentOrganizationsScoreLow(t *testing.T) {
	scorer := NewScorer(AlgorithmLevenshtein)
	got := scorer.Score(mustWeights(t, models.EntityKindOrganization), attrs("Acme Inc", "acme.com"), attrs("Globex", "globex.io"))
	assert.Less(t, got, 40)
}

func TestScorer_TokenOrderInsensitive(t *testing.T) {
	scorer := NewScorer(AlgorithmLevenshtein)
	person := mustWeights(t, models.EntityKindPerson)

	reordered := scorer.Score(person, attrs("John Smith", ""), attrs("Smith John", ""))
	ordered := scorer.Score(person, attrs("John Smith", ""), attrs("John Smith", ""))
	assert.Equal(t, ordered, reordered)
	assert.Equal(t, 100, reordered)
}

func TestScorer_IdentifierIsCharacterLiteral(t *testing.T) {
	scorer := NewScorer(AlgorithmLevenshtein)
	person := mustWeights(t, models.EntityKindPerson)

	// token sorting would make these identical; identifiers must not be token sorted
	got := scorer.Score(person, attrs("", "a b@x.com"), attrs("", "b a@x.com"))
	assert.Less(t, got, 100)
}

func TestScorer_Symmetric(t *testing.T) {
	pairs := [][2]models.AttributeSet{
		{attrs("John Smith", "john@example.com"), attrs("Jonathan Smyth", "jsmyth@example.com")},
		{attrs("Acme Incorporated", ""), attrs("Acme Inc", "acme.com")},
		{attrs("Zoë Ångström", "zoe@uni.se"), attrs("Zoe Angstrom", "zoe@uni.se")},
		{attrs("", "x@y.z"), attrs("Someone", "")},
		{attrs("martha", ""), attrs("marhta", "")},
	}

	for _, algorithm := range []Algorithm{AlgorithmLevenshtein, AlgorithmJaroWinkler} {
		scorer := NewScorer(algorithm)
		for _, kind := range models.EntityKinds {
			w := mustWeights(t, kind)
			for _, p := range pairs {
				assert.Equal(t, scorer.Score(w, p[0], p[1]), scorer.Score(w, p[1], p[0]), "%s %s", algorithm, kind)
			}
		}
	}
}

func TestScorer_Explain(t *testing.T) {
	scorer := NewScorer("")
	b := scorer.Explain(mustWeights(t, models.EntityKindOrganization), attrs("Acme", ""), attrs("Acme", "acme.com"))
	require.NotNil(t, b.NameRatio)
	assert.Nil(t, b.IdentifierRatio)
	assert.Equal(t, 1.0, *b.NameRatio)
	assert.Equal(t, 100, b.Score)
}

func TestKindWeights_Validate(t *testing.T) {
	for _, kind := range models.EntityKinds {
		assert.NoError(t, mustWeights(t, kind).Validate())
	}
	assert.Error(t, KindWeights{Kind: "x", Name: 0.7, Identifier: 0.7}.Validate())
	assert.Error(t, KindWeights{Kind: "x", Name: 1.5, Identifier: -0.5}.Validate())

	_, err := WeightsFor("deal")
	assert.Error(t, err)
}

func TestRatios(t *testing.T) {
	assert.InDelta(t, 1-3.0/7.0, LevenshteinRatio("kitten", "sitting"), 1e-9)
	assert.Equal(t, 1.0, LevenshteinRatio("", ""))
	assert.Equal(t, 3, LevenshteinDistance("kitten", "sitting"))
	assert.Equal(t, 1, LevenshteinDistance("café", "cafe"))

	assert.Equal(t, 1.0, JaroWinkler("martha", "martha"))
	assert.InDelta(t, 0.961, JaroWinkler("martha", "marhta"), 0.001)
	assert.Equal(t, 0.0, Jaro("abc", ""))
}

func TestTrigramSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, TrigramSimilarity("word", "WORD"))
	assert.Equal(t, 0.0, TrigramSimilarity("abc", "xyz"))
	assert.Equal(t, 0.0, TrigramSimilarity("", "xyz"))
	assert.Equal(t, TrigramSimilarity("john smith", "jon smith"), TrigramSimilarity("jon smith", "john smith"))
	assert.Greater(t, TrigramSimilarity("john smith", "jon smith"), 0.35)
}

func TestCanonicalAttributes(t *testing.T) {
	name, id := CanonicalAttributes(models.EntityKindOrganization, attrs("ACME, Inc.", "https://www.acme.com/"))
	assert.Equal(t, "acme inc", name)
	assert.Equal(t, "acme.com", id)

	name, id = CanonicalAttributes(models.EntityKindPerson, attrs("", " Jane@Doe.io"))
	assert.Equal(t, "", name)
	assert.Equal(t, "jane@doe.io", id)
}

func TestScorer_ScorePreparedMatchesScore(t *testing.T) {
	scorer := NewScorer(AlgorithmJaroWinkler)
	w := mustWeights(t, models.EntityKindPerson)
	a, b := attrs("John Smith", "John@Example.com"), attrs("Smith, Jon", "john@example.com")

	assert.Equal(t, scorer.Score(w, a, b), scorer.ScorePrepared(w, Prepare(w.Kind, a), Prepare(w.Kind, b)))
	assert.True(t, Prepare(w.Kind, attrs(" ", "")).IsEmpty())
}
