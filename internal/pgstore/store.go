// Package pgstore implements store.Store on Postgres by composing the table
// repositories. Writes made through a transaction join it via the context.
package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/internal/repositories/mergeaudit"
	"github.com/Ramsey-B/clover/internal/repositories/organization"
	"github.com/Ramsey-B/clover/internal/repositories/person"
	"github.com/Ramsey-B/clover/internal/repositories/reference"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/manifest"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/store"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	db            database.DB
	logger        ectologger.Logger
	persons       *person.Repository
	organizations *organization.Repository
	references    *reference.Repository
	audits        *mergeaudit.Repository
}

func New(db database.DB, logger ectologger.Logger) *Store {
	return &Store{
		db:            db,
		logger:        logger,
		persons:       person.NewRepository(db, logger),
		organizations: organization.NewRepository(db, logger),
		references:    reference.NewRepository(db, logger),
		audits:        mergeaudit.NewRepository(db, logger),
	}
}

// Persons exposes the person repository for seeding and tooling.
func (s *Store) Persons() *person.Repository { return s.persons }

// Organizations exposes the organization repository for seeding and tooling.
func (s *Store) Organizations() *organization.Repository { return s.organizations }

func (s *Store) FindRecord(ctx context.Context, id string, lock bool) (models.Record, error) {
	p, err := s.persons.Get(ctx, id, lock)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}

	o, err := s.organizations.Get(ctx, id, lock)
	if err != nil {
		return nil, err
	}
	if o != nil {
		return o, nil
	}
	return nil, nil
}

func (s *Store) ListLiveRecords(ctx context.Context, tenantID string, kind models.EntityKind, limit int) ([]models.Record, error) {
	var records []models.Record
	switch kind {
	case models.EntityKindPerson:
		persons, err := s.persons.ListLive(ctx, tenantID, limit)
		if err != nil {
			return nil, err
		}
		for _, p := range persons {
			records = append(records, p)
		}
	case models.EntityKindOrganization:
		orgs, err := s.organizations.ListLive(ctx, tenantID, limit)
		if err != nil {
			return nil, err
		}
		for _, o := range orgs {
			records = append(records, o)
		}
	default:
		return nil, httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown entity kind %q", kind))
	}
	return records, nil
}

func (s *Store) FindCandidates(ctx context.Context, q store.CandidateQuery) ([]models.Candidate, error) {
	switch q.Kind {
	case models.EntityKindPerson:
		return s.persons.FindCandidates(ctx, q)
	case models.EntityKindOrganization:
		return s.organizations.FindCandidates(ctx, q)
	}
	return nil, httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown entity kind %q", q.Kind))
}

func (s *Store) ListReferences(ctx context.Context, tenantID string, entry manifest.Entry, ownerID string) ([]models.Reference, error) {
	return s.references.List(ctx, tenantID, entry, ownerID)
}

func (s *Store) ListMergeAudits(ctx context.Context, tenantID, recordID string) ([]models.MergeAuditLog, error) {
	return s.audits.ListForRecord(ctx, tenantID, recordID)
}

func (s *Store) GetMergeAudit(ctx context.Context, tenantID, id string) (*models.MergeAuditLog, error) {
	return s.audits.Get(ctx, tenantID, id)
}

// RunInTransaction opens a read-committed transaction; the row locks taken by
// FindRecord(lock=true) serialize competing merges of the same records.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	ctx, span := tracing.StartSpan(ctx, "pgstore.Store.RunInTransaction")
	defer span.End()

	ctx, tx, err := s.db.GetTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.logger.WithContext(ctx).WithError(rbErr).Warn("Failed to roll back transaction")
		}
	}()

	if err := fn(ctx, &transaction{Store: s}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		tracing.RecordError(span, err)
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit transaction")
	}
	return nil
}

// transaction adds the write side. Every repository call resolves the open
// transaction from ctx through database.Conn.
type transaction struct {
	*Store
}

func (t *transaction) SaveRecord(ctx context.Context, record models.Record) error {
	switch r := record.(type) {
	case *models.Person:
		return t.persons.Save(ctx, r)
	case *models.Organization:
		return t.organizations.Save(ctx, r)
	}
	return fmt.Errorf("unsupported record type %T", record)
}

func (t *transaction) MarkMerged(ctx context.Context, loser models.Record, survivorID, userID string, at time.Time) error {
	meta := loser.Meta()
	switch loser.Kind() {
	case models.EntityKindPerson:
		return t.persons.MarkMerged(ctx, meta.TenantID, meta.ID, survivorID, userID, at)
	case models.EntityKindOrganization:
		return t.organizations.MarkMerged(ctx, meta.TenantID, meta.ID, survivorID, userID, at)
	}
	return fmt.Errorf("unsupported entity kind %q", loser.Kind())
}

func (t *transaction) RepointReferences(ctx context.Context, tenantID string, entry manifest.Entry, fromID, toID string) (int, error) {
	return t.references.RepointAll(ctx, tenantID, entry, fromID, toID)
}

func (t *transaction) RepointReference(ctx context.Context, tenantID string, entry manifest.Entry, refID, toID string) error {
	return t.references.RepointOne(ctx, tenantID, entry, refID, toID)
}

func (t *transaction) DeleteReference(ctx context.Context, tenantID string, entry manifest.Entry, refID string) error {
	return t.references.Delete(ctx, tenantID, entry, refID)
}

func (t *transaction) InsertMergeAudit(ctx context.Context, audit *models.MergeAuditLog) error {
	return t.audits.Create(ctx, audit)
}
