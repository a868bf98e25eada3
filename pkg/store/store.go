// Package store declares the record-store access the detector and the merge
// orchestrator depend on. Tenant ids are always explicit parameters.
package store

import (
	"context"
	"time"

	"github.com/Ramsey-B/clover/pkg/manifest"
	"github.com/Ramsey-B/clover/pkg/models"
)

// DefaultMaxCandidates bounds a prefilter query when the caller gives no limit.
const DefaultMaxCandidates = 50

// CandidateQuery is a prefilter request. Name and Identifier are already in
// comparison form; an empty value takes no part in the predicate.
type CandidateQuery struct {
	TenantID      string
	Kind          models.EntityKind
	Name          string
	Identifier    string
	ExcludeID     string
	MinSimilarity float64
	Limit         int
}

// Reader is the read side shared by the store and its transactions.
type Reader interface {
	// FindRecord loads a record of any kind by id, merged or not, ignoring tenant.
	// It returns nil, nil when no record has the id. lock row-locks the record
	// inside a transaction.
	FindRecord(ctx context.Context, id string, lock bool) (models.Record, error)
	// ListLiveRecords returns at most limit unmerged records ordered by creation time.
	ListLiveRecords(ctx context.Context, tenantID string, kind models.EntityKind, limit int) ([]models.Record, error)
	FindCandidates(ctx context.Context, q CandidateQuery) ([]models.Candidate, error)
	// ListReferences returns the rows of entry that point at ownerID.
	ListReferences(ctx context.Context, tenantID string, entry manifest.Entry, ownerID string) ([]models.Reference, error)
	// ListMergeAudits returns audits where recordID was the survivor or the loser, newest first.
	ListMergeAudits(ctx context.Context, tenantID, recordID string) ([]models.MergeAuditLog, error)
	// GetMergeAudit returns nil, nil when the audit does not exist.
	GetMergeAudit(ctx context.Context, tenantID, id string) (*models.MergeAuditLog, error)
}

// Tx is a unit of work. Nothing it writes is visible until the surrounding
// RunInTransaction returns nil.
type Tx interface {
	Reader
	SaveRecord(ctx context.Context, record models.Record) error
	MarkMerged(ctx context.Context, loser models.Record, survivorID, userID string, at time.Time) error
	// RepointReferences bulk-moves every row of entry from fromID to toID and returns the row count.
	RepointReferences(ctx context.Context, tenantID string, entry manifest.Entry, fromID, toID string) (int, error)
	RepointReference(ctx context.Context, tenantID string, entry manifest.Entry, refID, toID string) error
	DeleteReference(ctx context.Context, tenantID string, entry manifest.Entry, refID string) error
	InsertMergeAudit(ctx context.Context, audit *models.MergeAuditLog) error
}

// Store is implemented by the Postgres store and the in-memory store.
type Store interface {
	Reader
	// RunInTransaction commits when fn returns nil and rolls back otherwise.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
