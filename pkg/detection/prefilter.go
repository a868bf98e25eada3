package detection

import (
	"context"

	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/store"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Prefilter narrows a tenant's records to likely matches with the store's
// index-backed trigram predicate. It favours recall; the Scorer decides.
type Prefilter struct {
	reader        store.Reader
	maxCandidates int
}

func NewPrefilter(reader store.Reader, maxCandidates int) *Prefilter {
	if maxCandidates <= 0 {
		maxCandidates = store.DefaultMaxCandidates
	}
	return &Prefilter{reader: reader, maxCandidates: maxCandidates}
}

// RelaxedRatio converts a 0-100 threshold to the prefilter's similarity floor: half of it, as a ratio.
func RelaxedRatio(threshold int) float64 {
	return float64(threshold) / 100 / 2
}

// FindCandidates returns at most maxCandidates live records of kind, excluding excludeID.
// Only attributes present on the source take part; with none, no query runs.
func (p *Prefilter) FindCandidates(ctx context.Context, tenantID string, kind models.EntityKind, attrs models.AttributeSet, excludeID string, threshold int) ([]models.Candidate, error) {
	ctx, span := tracing.StartSpan(ctx, "detection.Prefilter.FindCandidates")
	defer span.End()

	name, identifier := matching.CanonicalAttributes(kind, attrs)
	if name == "" && identifier == "" {
		return nil, nil
	}

	return p.reader.FindCandidates(ctx, store.CandidateQuery{
		TenantID:      tenantID,
		Kind:          kind,
		Name:          name,
		Identifier:    identifier,
		ExcludeID:     excludeID,
		MinSimilarity: RelaxedRatio(threshold),
		Limit:         p.maxCandidates,
	})
}
