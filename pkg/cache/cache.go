// Package cache keeps batch-scan results so repeated administrative sweeps of
// an unchanged tenant do not redo the quadratic comparison.
package cache

import (
	"context"
	"fmt"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Entry is a completed scan: every pair at or above the threshold, sorted.
type Entry struct {
	Pairs          []models.DuplicatePair `json:"pairs"`
	ScannedRecords int                    `json:"scanned_records"`
}

// Generation identifies the state of a tenant/kind between invalidations.
type Generation int64

// ScanCache stores completed scans.
type ScanCache interface {
	// Get returns the cached scan (nil on a miss) and the current generation.
	// Read it before loading records and hand it back to Set.
	Get(ctx context.Context, key ScanKey) (*Entry, Generation, error)
	// Set stores entry under gen. A write whose gen was superseded by an
	// Invalidate is never visible to later reads.
	Set(ctx context.Context, key ScanKey, gen Generation, entry *Entry) error
	// Invalidate drops every cached scan of a tenant and kind, whatever the threshold.
	Invalidate(ctx context.Context, tenantID string, kind models.EntityKind) error
}

type ScanKey struct {
	TenantID  string
	Kind      models.EntityKind
	Threshold int
}

func (k ScanKey) prefix() string {
	return fmt.Sprintf("clover:scan:%s:%s", k.TenantID, k.Kind)
}

func (k ScanKey) String() string {
	return fmt.Sprintf("%s:%d", k.prefix(), k.Threshold)
}

func generationKey(tenantID string, kind models.EntityKind) string {
	return ScanKey{TenantID: tenantID, Kind: kind}.prefix() + ":gen"
}

func entryKey(key ScanKey, gen Generation) string {
	return fmt.Sprintf("%s:%d:%d", key.prefix(), gen, key.Threshold)
}
