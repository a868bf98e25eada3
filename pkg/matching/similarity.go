package matching

import (
	"fmt"
	"math"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// KindWeights are the per-field weights of one entity kind. They sum to 1.0.
type KindWeights struct {
	Kind       models.EntityKind `json:"kind"`
	Name       float64           `json:"name"`
	Identifier float64           `json:"identifier"`
}

var defaultWeights = map[models.EntityKind]KindWeights{
	models.EntityKindPerson:       {Kind: models.EntityKindPerson, Name: 0.5, Identifier: 0.5},
	models.EntityKindOrganization: {Kind: models.EntityKindOrganization, Name: 0.6, Identifier: 0.4},
}

// WeightsFor returns the built-in weights for kind.
func WeightsFor(kind models.EntityKind) (KindWeights, error) {
	w, ok := defaultWeights[kind]
	if !ok {
		return KindWeights{}, fmt.Errorf("no weights defined for entity kind %q", kind)
	}
	return w, nil
}

func (w KindWeights) Validate() error {
	if w.Name < 0 || w.Identifier < 0 {
		return fmt.Errorf("weights for %s must not be negative", w.Kind)
	}
	if math.Abs(w.Name+w.Identifier-1.0) > 1e-9 {
		return fmt.Errorf("weights for %s must sum to 1.0, got %.4f", w.Kind, w.Name+w.Identifier)
	}
	return nil
}

// Breakdown explains a score: the ratio of each field that took part.
type Breakdown struct {
	NameRatio       *float64 `json:"name_ratio,omitempty"`
	IdentifierRatio *float64 `json:"identifier_ratio,omitempty"`
	Score           int      `json:"score"`
}

// Scorer computes deterministic 0-100 similarity scores between attribute sets.
type Scorer struct {
	algorithm Algorithm
}

// NewScorer creates a new Scorer
func NewScorer(algorithm Algorithm) *Scorer {
	if algorithm == "" {
		algorithm = AlgorithmLevenshtein
	}
	return &Scorer{algorithm: algorithm}
}

// Prepared holds the comparison form of an attribute set so a record scored
// against many others is normalized once.
type Prepared struct {
	name       string
	identifier string
}

// Prepare canonicalizes attrs for kind.
func Prepare(kind models.EntityKind, attrs models.AttributeSet) Prepared {
	return Prepared{
		name:       canonicalName(kind, attrs.Name),
		identifier: canonicalIdentifier(kind, attrs.Identifier),
	}
}

// IsEmpty reports whether nothing in p can be compared.
func (p Prepared) IsEmpty() bool {
	return p.name == "" && p.identifier == ""
}

// Score returns round(weighted ratio * 100). Fields missing on either side
// drop out and the remaining weight is rescaled; with nothing to compare the score is 0.
func (s *Scorer) Score(weights KindWeights, source, candidate models.AttributeSet) int {
	return s.Explain(weights, source, candidate).Score
}

// ScorePrepared is Score over already canonicalized attribute sets.
func (s *Scorer) ScorePrepared(weights KindWeights, source, candidate Prepared) int {
	return s.explain(weights, source, candidate).Score
}

// Explain scores the pair and reports the per-field ratios used.
func (s *Scorer) Explain(weights KindWeights, source, candidate models.AttributeSet) Breakdown {
	return s.explain(weights, Prepare(weights.Kind, source), Prepare(weights.Kind, candidate))
}

func (s *Scorer) explain(weights KindWeights, source, candidate Prepared) Breakdown {
	var b Breakdown
	var sum, total float64

	if r, ok := s.compare(source.name, candidate.name); ok {
		b.NameRatio = &r
		sum += r * weights.Name
		total += weights.Name
	}

	if r, ok := s.compare(source.identifier, candidate.identifier); ok {
		b.IdentifierRatio = &r
		sum += r * weights.Identifier
		total += weights.Identifier
	}

	if total == 0 {
		return b
	}

	b.Score = int(math.Round(sum / total * 100))
	return b
}

func (s *Scorer) compare(a, b string) (float64, bool) {
	if a == "" || b == "" {
		return 0, false
	}
	if a == b {
		return 1.0, true
	}
	return s.algorithm.Ratio(a, b), true
}

// Normalizer chains per kind. Names are compared with token order ignored.
var (
	nameChains = map[models.EntityKind][]string{
		models.EntityKindPerson:       {normalizers.PersonName},
		models.EntityKindOrganization: {normalizers.OrganizationName},
	}
	identifierChains = map[models.EntityKind][]string{
		models.EntityKindPerson:       {normalizers.Email},
		models.EntityKindOrganization: {normalizers.Domain},
	}
)

func canonicalName(kind models.EntityKind, v *string) string {
	if v == nil {
		return ""
	}
	return normalizers.ApplyChain(*v, append(nameChains[kind], normalizers.Tokens)...)
}

// canonicalIdentifier strips formatting noise; comparison stays character-literal.
func canonicalIdentifier(kind models.EntityKind, v *string) string {
	if v == nil {
		return ""
	}
	return normalizers.ApplyChain(*v, identifierChains[kind]...)
}

// CanonicalAttributes returns the comparison form of attrs, used to build prefilter predicates.
func CanonicalAttributes(kind models.EntityKind, attrs models.AttributeSet) (name, identifier string) {
	if attrs.Name != nil {
		name = normalizers.ApplyChain(*attrs.Name, nameChains[kind]...)
	}
	return name, canonicalIdentifier(kind, attrs.Identifier)
}
