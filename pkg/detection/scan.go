package detection

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"golang.org/x/sync/errgroup"

	"github.com/Ramsey-B/clover/pkg/cache"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 200
)

// ScanAllDuplicates compares every pair of live records of kind and returns one
// page of the pairs at or above threshold, best first. Cost is quadratic in the
// record count; sets larger than MaxScanRecords are rejected.
func (d *Detector) ScanAllDuplicates(ctx context.Context, tenantID string, kind models.EntityKind, threshold, page, pageSize int) (*models.DuplicatePairPage, error) {
	ctx, span := tracing.StartSpan(ctx, "detection.Detector.ScanAllDuplicates")
	defer span.End()

	weights, err := validate(kind, threshold)
	if err != nil {
		return nil, err
	}
	page, pageSize = normalizePage(page, pageSize)

	log := d.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":   tenantID,
		"entity_kind": kind,
		"threshold":   threshold,
	})

	key := cache.ScanKey{TenantID: tenantID, Kind: kind, Threshold: threshold}
	// The generation is taken before records are read so a merge that commits
	// mid-scan keeps this result out of the cache.
	var gen cache.Generation
	cacheable := d.cache != nil
	if d.cache != nil {
		entry, g, err := d.cache.Get(ctx, key)
		if err != nil {
			log.WithError(err).Warn("Failed to read scan cache")
			cacheable = false
		}
		gen = g
		if entry != nil {
			metrics.ScanCacheLookups.WithLabelValues("hit").Inc()
			result := paginate(entry.Pairs, page, pageSize)
			result.ScannedRecords = entry.ScannedRecords
			result.Cached = true
			return result, nil
		}
		metrics.ScanCacheLookups.WithLabelValues("miss").Inc()
	}

	start := time.Now()
	defer func() {
		metrics.DetectionDuration.WithLabelValues(string(kind), "scan").Observe(time.Since(start).Seconds())
	}()

	records, err := d.reader.ListLiveRecords(ctx, tenantID, kind, d.cfg.MaxScanRecords+1)
	if err != nil {
		log.WithError(err).Error("Failed to load records for scan")
		tracing.RecordError(span, err)
		return nil, err
	}
	if len(records) > d.cfg.MaxScanRecords {
		return nil, httperror.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("%s scan exceeds the limit of %d live records", kind, d.cfg.MaxScanRecords))
	}
	metrics.ScanRecords.Observe(float64(len(records)))

	pairs, err := d.comparePairs(ctx, weights, records, threshold)
	if err != nil {
		log.WithError(err).Error("Scan aborted")
		return nil, err
	}

	log.WithFields(map[string]any{
		"records": len(records),
		"pairs":   len(pairs),
	}).Info("Completed duplicate scan")

	if cacheable {
		if err := d.cache.Set(ctx, key, gen, &cache.Entry{Pairs: pairs, ScannedRecords: len(records)}); err != nil {
			log.WithError(err).Warn("Failed to write scan cache")
		}
	}

	result := paginate(pairs, page, pageSize)
	result.ScannedRecords = len(records)
	return result, nil
}

type scanned struct {
	match    models.DuplicateMatch
	prepared matching.Prepared
}

// comparePairs scores all n*(n-1)/2 pairs. Rows of the comparison triangle are
// striped across workers so each gets a similar share of the work.
func (d *Detector) comparePairs(ctx context.Context, weights matching.KindWeights, records []models.Record, threshold int) ([]models.DuplicatePair, error) {
	items := make([]scanned, len(records))
	for i, r := range records {
		items[i] = scanned{
			match:    toMatch(models.CandidateFromRecord(r), 0),
			prepared: matching.Prepare(weights.Kind, r.Attributes()),
		}
	}

	workers := min(d.cfg.ScanWorkers, max(len(items), 1))
	results := make([][]models.DuplicatePair, workers)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			var local []models.DuplicatePair
			for i := w; i < len(items); i += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				if items[i].prepared.IsEmpty() {
					continue
				}
				for j := i + 1; j < len(items); j++ {
					score := d.scorer.ScorePrepared(weights, items[i].prepared, items[j].prepared)
					if !reportable(score, threshold) {
						continue
					}
					a, b := items[i].match, items[j].match
					a.Score, b.Score = score, score
					local = append(local, models.DuplicatePair{MatchA: a, MatchB: b, Score: score})
				}
			}
			results[w] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var pairs []models.DuplicatePair
	for _, r := range results {
		pairs = append(pairs, r...)
	}
	sortPairs(pairs)
	return pairs, nil
}

func sortPairs(pairs []models.DuplicatePair) {
	sort.Slice(pairs, func(i, j int) bool {
		a, b := pairs[i], pairs[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.MatchA.CandidateID != b.MatchA.CandidateID {
			return a.MatchA.CandidateID < b.MatchA.CandidateID
		}
		return a.MatchB.CandidateID < b.MatchB.CandidateID
	})
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func paginate(pairs []models.DuplicatePair, page, pageSize int) *models.DuplicatePairPage {
	result := &models.DuplicatePairPage{
		Pairs:    []models.DuplicatePair{},
		Page:     page,
		PageSize: pageSize,
		Total:    len(pairs),
	}

	// Compare page counts before multiplying; page comes straight from the caller.
	if page-1 >= (len(pairs)+pageSize-1)/pageSize {
		return result
	}
	start := (page - 1) * pageSize
	end := min(start+pageSize, len(pairs))
	result.Pairs = pairs[start:end]
	return result
}
