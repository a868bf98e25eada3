// Package detection finds probable duplicate records, either for one record
// being edited or for a whole tenant in a batch sweep.
package detection

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/cache"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/store"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Config bounds detection work.
type Config struct {
	MaxCandidates int
	MaxResults    int
	// MaxScanRecords is the largest live record set a batch scan accepts.
	// A scan costs n*(n-1)/2 comparisons and holds every record in memory.
	MaxScanRecords int
	ScanWorkers    int
}

func DefaultConfig() Config {
	return Config{
		MaxCandidates:  store.DefaultMaxCandidates,
		MaxResults:     10,
		MaxScanRecords: 5000,
		ScanWorkers:    runtime.NumCPU(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = d.MaxCandidates
	}
	if c.MaxResults <= 0 {
		c.MaxResults = d.MaxResults
	}
	if c.MaxScanRecords <= 0 {
		c.MaxScanRecords = d.MaxScanRecords
	}
	if c.ScanWorkers <= 0 {
		c.ScanWorkers = d.ScanWorkers
	}
	return c
}

type Detector struct {
	reader    store.Reader
	prefilter *Prefilter
	scorer    *matching.Scorer
	cache     cache.ScanCache
	cfg       Config
	logger    ectologger.Logger
}

// NewDetector creates a detector. scanCache may be nil.
func NewDetector(reader store.Reader, scorer *matching.Scorer, scanCache cache.ScanCache, cfg Config, logger ectologger.Logger) *Detector {
	cfg = cfg.withDefaults()
	return &Detector{
		reader:    reader,
		prefilter: NewPrefilter(reader, cfg.MaxCandidates),
		scorer:    scorer,
		cache:     scanCache,
		cfg:       cfg,
		logger:    logger,
	}
}

func validate(kind models.EntityKind, threshold int) (matching.KindWeights, error) {
	weights, err := matching.WeightsFor(kind)
	if err != nil {
		return weights, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if threshold < 0 || threshold > 100 {
		return weights, httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("threshold must be between 0 and 100, got %d", threshold))
	}
	return weights, nil
}

// reportable keeps scores at or above threshold. A zero score had nothing to compare and is never reported.
func reportable(score, threshold int) bool {
	return score > 0 && score >= threshold
}

// FindDuplicatesFor ranks the records most similar to attrs, best first, at most MaxResults.
// Empty attrs yield an empty list.
func (d *Detector) FindDuplicatesFor(ctx context.Context, tenantID string, kind models.EntityKind, attrs models.AttributeSet, threshold int, excludeID string) ([]models.DuplicateMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "detection.Detector.FindDuplicatesFor")
	defer span.End()

	weights, err := validate(kind, threshold)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		metrics.DetectionDuration.WithLabelValues(string(kind), "single").Observe(time.Since(start).Seconds())
	}()

	if attrs.IsEmpty() {
		return []models.DuplicateMatch{}, nil
	}

	candidates, err := d.prefilter.FindCandidates(ctx, tenantID, kind, attrs, excludeID, threshold)
	if err != nil {
		d.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":   tenantID,
			"entity_kind": kind,
		}).Error("Failed to load duplicate candidates")
		tracing.RecordError(span, err)
		return nil, err
	}

	source := matching.Prepare(kind, attrs)
	matches := make([]models.DuplicateMatch, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == excludeID {
			continue
		}
		score := d.scorer.ScorePrepared(weights, source, matching.Prepare(kind, c.Attributes))
		if !reportable(score, threshold) {
			continue
		}
		matches = append(matches, toMatch(c, score))
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.LastUpdatedAt.Equal(b.LastUpdatedAt) {
			return a.LastUpdatedAt.After(b.LastUpdatedAt)
		}
		return a.CandidateID < b.CandidateID
	})

	if len(matches) > d.cfg.MaxResults {
		matches = matches[:d.cfg.MaxResults]
	}
	return matches, nil
}

func toMatch(c models.Candidate, score int) models.DuplicateMatch {
	return models.DuplicateMatch{
		CandidateID:           c.ID,
		DisplayName:           c.DisplayName,
		DisplaySecondaryField: c.DisplaySecondary,
		Score:                 score,
		LastUpdatedAt:         c.UpdatedAt,
	}
}

// InvalidateScans drops cached scans of tenant and kind. Called after every merge.
func (d *Detector) InvalidateScans(ctx context.Context, tenantID string, kind models.EntityKind) error {
	if d.cache == nil {
		return nil
	}
	return d.cache.Invalidate(ctx, tenantID, kind)
}
