// Package memstore is an in-memory store.Store. Transactions run one at a
// time against a cloned state that replaces the live state on commit.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/manifest"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu    sync.RWMutex
	txMu  sync.Mutex
	state *state

	// failures makes every write to a table fail, keyed by table name.
	failures map[string]error
}

func New() *Store {
	return &Store{state: newState(), failures: map[string]error{}}
}

// Put inserts or replaces a record outside any transaction. Missing ids and
// timestamps are filled in.
func (s *Store) Put(record models.Record) error {
	meta := record.Meta()
	if meta.TenantID == "" {
		return fmt.Errorf("record tenant is required")
	}
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	if meta.UpdatedAt.IsZero() {
		meta.UpdatedAt = meta.CreatedAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.putRecord(record)
}

// InsertRow adds a referencing row to table and returns its id.
func (s *Store) InsertRow(table string, columns map[string]string) string {
	r := row(maps.Clone(columns))
	if r["id"] == "" {
		r["id"] = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.tables[table] = append(s.state.tables[table], r)
	return r["id"]
}

// FailWrites makes every later write to table return err. A nil err clears it.
func (s *Store) FailWrites(table string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, table)
		return
	}
	s.failures[table] = err
}

func (s *Store) failure(table string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failures[table]
}

func (s *Store) FindRecord(ctx context.Context, id string, _ bool) (models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.findRecord(id), ctx.Err()
}

func (s *Store) ListLiveRecords(ctx context.Context, tenantID string, kind models.EntityKind, limit int) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.listLive(tenantID, kind, limit), ctx.Err()
}

func (s *Store) FindCandidates(ctx context.Context, q store.CandidateQuery) ([]models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.findCandidates(q), ctx.Err()
}

func (s *Store) ListReferences(ctx context.Context, tenantID string, entry manifest.Entry, ownerID string) ([]models.Reference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.listReferences(tenantID, entry, ownerID), ctx.Err()
}

func (s *Store) ListMergeAudits(ctx context.Context, tenantID, recordID string) ([]models.MergeAuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.listAudits(tenantID, recordID), ctx.Err()
}

func (s *Store) GetMergeAudit(ctx context.Context, tenantID, id string) (*models.MergeAuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.getAudit(tenantID, id), ctx.Err()
}

// RunInTransaction serializes transactions and swaps in the working state only when fn succeeds.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	working := s.state.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &transaction{store: s, state: working}); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = working
	s.mu.Unlock()
	return nil
}

type transaction struct {
	store *Store
	state *state
}

func (t *transaction) FindRecord(_ context.Context, id string, _ bool) (models.Record, error) {
	return t.state.findRecord(id), nil
}

func (t *transaction) ListLiveRecords(_ context.Context, tenantID string, kind models.EntityKind, limit int) ([]models.Record, error) {
	return t.state.listLive(tenantID, kind, limit), nil
}

func (t *transaction) FindCandidates(_ context.Context, q store.CandidateQuery) ([]models.Candidate, error) {
	return t.state.findCandidates(q), nil
}

func (t *transaction) ListReferences(_ context.Context, tenantID string, entry manifest.Entry, ownerID string) ([]models.Reference, error) {
	return t.state.listReferences(tenantID, entry, ownerID), nil
}

func (t *transaction) ListMergeAudits(_ context.Context, tenantID, recordID string) ([]models.MergeAuditLog, error) {
	return t.state.listAudits(tenantID, recordID), nil
}

func (t *transaction) GetMergeAudit(_ context.Context, tenantID, id string) (*models.MergeAuditLog, error) {
	return t.state.getAudit(tenantID, id), nil
}

func (t *transaction) SaveRecord(_ context.Context, record models.Record) error {
	if err := t.store.failure(record.Kind().Table()); err != nil {
		return err
	}
	return t.state.putRecord(record)
}

func (t *transaction) MarkMerged(_ context.Context, loser models.Record, survivorID, userID string, at time.Time) error {
	if err := t.store.failure(loser.Kind().Table()); err != nil {
		return err
	}

	current := t.state.findRecord(loser.Meta().ID)
	if current == nil {
		return fmt.Errorf("record %s not found", loser.Meta().ID)
	}
	meta := current.Meta()
	meta.MergedIntoID = models.StringPtr(survivorID)
	meta.MergedAt = &at
	meta.MergedByUserID = models.StringPtr(userID)
	meta.UpdatedAt = at
	return t.state.putRecord(current)
}

func (t *transaction) RepointReferences(_ context.Context, tenantID string, entry manifest.Entry, fromID, toID string) (int, error) {
	if err := t.store.failure(entry.Table); err != nil {
		return 0, err
	}

	count := 0
	for _, ref := range t.state.listReferences(tenantID, entry, fromID) {
		if err := t.state.setColumn(entry.Table, entry.Key(), ref.ID, entry.Column, toID); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (t *transaction) RepointReference(_ context.Context, tenantID string, entry manifest.Entry, refID, toID string) error {
	if err := t.store.failure(entry.Table); err != nil {
		return err
	}

	r := t.state.findRow(entry.Table, entry.Key(), refID)
	if r == nil {
		return fmt.Errorf("%s row %s not found", entry.Table, refID)
	}
	if t.state.violatesUnique(tenantID, entry, r, toID) {
		return fmt.Errorf("duplicate key on %s (%s, %s)", entry.Table, entry.OtherColumn, entry.Column)
	}
	return t.state.setColumn(entry.Table, entry.Key(), refID, entry.Column, toID)
}

func (t *transaction) DeleteReference(_ context.Context, _ string, entry manifest.Entry, refID string) error {
	if err := t.store.failure(entry.Table); err != nil {
		return err
	}
	return t.state.deleteRow(entry.Table, entry.Key(), refID)
}

func (t *transaction) InsertMergeAudit(_ context.Context, audit *models.MergeAuditLog) error {
	if err := t.store.failure("merge_audit_logs"); err != nil {
		return err
	}
	t.state.audits = append(t.state.audits, *audit)
	return nil
}
