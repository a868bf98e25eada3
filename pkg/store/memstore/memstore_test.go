package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/manifest"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/store"
)

const tenant = "tenant-1"

func person(id, name, email string, created time.Time) *models.Person {
	p := &models.Person{FullName: models.StringPtr(name), Email: models.StringPtr(email)}
	p.ID = id
	p.TenantID = tenant
	p.CreatedAt = created
	return p
}

var dealContacts = manifest.Entry{Name: "deals", Type: manifest.TransferConflictProne, Table: "deal_contacts", Column: "person_id", OtherColumn: "deal_id"}

func TestListLiveRecords(t *testing.T) {
	s := New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Put(person("b", "Bob", "bob@x.io", base.Add(time.Hour))))
	require.NoError(t, s.Put(person("a", "Ann", "ann@x.io", base)))

	merged := person("c", "Cat", "cat@x.io", base)
	merged.MergedIntoID = models.StringPtr("a")
	require.NoError(t, s.Put(merged))

	other := person("d", "Dan", "dan@x.io", base)
	other.TenantID = "tenant-2"
	require.NoError(t, s.Put(other))

	records, err := s.ListLiveRecords(context.Background(), tenant, models.EntityKindPerson, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].Meta().ID)
	assert.Equal(t, "b", records[1].Meta().ID)

	limited, err := s.ListLiveRecords(context.Background(), tenant, models.EntityKindPerson, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestFindCandidates(t *testing.T) {
	s := New()
	now := time.Now()
	require.NoError(t, s.Put(person("a", "John Smith", "john@example.com", now)))
	require.NoError(t, s.Put(person("b", "Jon Smith", "jon@other.com", now)))
	require.NoError(t, s.Put(person("c", "Mary Jones", "mary@jones.org", now)))

	ctx := context.Background()

	t.Run("NameMatch", func(t *testing.T) {
		got, err := s.FindCandidates(ctx, store.CandidateQuery{TenantID: tenant, Kind: models.EntityKindPerson, Name: "john smith", ExcludeID: "a", MinSimilarity: 0.35})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "b", got[0].ID)
	})

	t.Run("NoAttributes", func(t *testing.T) {
		got, err := s.FindCandidates(ctx, store.CandidateQuery{TenantID: tenant, Kind: models.EntityKindPerson, MinSimilarity: 0.1})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Limit", func(t *testing.T) {
		got, err := s.FindCandidates(ctx, store.CandidateQuery{TenantID: tenant, Kind: models.EntityKindPerson, Name: "smith", Limit: 1})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestRunInTransaction_RollsBackOnError(t *testing.T) {
	s := New()
	require.NoError(t, s.Put(person("a", "Ann", "ann@x.io", time.Now())))
	refID := s.InsertRow("deal_contacts", map[string]string{"tenant_id": tenant, "person_id": "a", "deal_id": "d1"})

	boom := errors.New("boom")
	err := s.RunInTransaction(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := tx.RepointReferences(ctx, tenant, manifest.Entry{Name: "x", Type: manifest.TransferSimple, Table: "deal_contacts", Column: "person_id"}, "a", "z")
		require.NoError(t, err)
		require.NoError(t, tx.MarkMerged(ctx, person("a", "", "", time.Time{}), "z", "user", time.Now()))
		return boom
	})
	require.ErrorIs(t, err, boom)

	refs, err := s.ListReferences(context.Background(), tenant, dealContacts, "a")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, refID, refs[0].ID)

	rec, err := s.FindRecord(context.Background(), "a", false)
	require.NoError(t, err)
	assert.False(t, rec.Meta().IsMerged())
}

func TestRepointReference_EnforcesUniquePair(t *testing.T) {
	s := New()
	s.InsertRow("deal_contacts", map[string]string{"id": "r1", "tenant_id": tenant, "person_id": "a", "deal_id": "d1"})
	s.InsertRow("deal_contacts", map[string]string{"id": "r2", "tenant_id": tenant, "person_id": "b", "deal_id": "d1"})
	s.InsertRow("deal_contacts", map[string]string{"id": "r3", "tenant_id": tenant, "person_id": "b", "deal_id": "d2"})

	err := s.RunInTransaction(context.Background(), func(ctx context.Context, tx store.Tx) error {
		assert.Error(t, tx.RepointReference(ctx, tenant, dealContacts, "r2", "a"))
		require.NoError(t, tx.DeleteReference(ctx, tenant, dealContacts, "r2"))
		return tx.RepointReference(ctx, tenant, dealContacts, "r3", "a")
	})
	require.NoError(t, err)

	refs, err := s.ListReferences(context.Background(), tenant, dealContacts, "a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"d1", "d2"}, []string{refs[0].OtherID, refs[1].OtherID})
}

func TestPersonsTableBacksOrganizationReferences(t *testing.T) {
	s := New()
	p := person("p1", "Ann", "ann@x.io", time.Now())
	p.OrganizationID = models.StringPtr("org-loser")
	require.NoError(t, s.Put(p))

	contacts := manifest.Entry{Name: "contacts", Type: manifest.TransferSimple, Table: "persons", Column: "organization_id"}
	err := s.RunInTransaction(context.Background(), func(ctx context.Context, tx store.Tx) error {
		n, err := tx.RepointReferences(ctx, tenant, contacts, "org-loser", "org-survivor")
		assert.Equal(t, 1, n)
		return err
	})
	require.NoError(t, err)

	rec, err := s.FindRecord(context.Background(), "p1", false)
	require.NoError(t, err)
	assert.Equal(t, "org-survivor", *rec.(*models.Person).OrganizationID)
}

func TestFailWrites(t *testing.T) {
	s := New()
	boom := errors.New("disk on fire")
	s.FailWrites("merge_audit_logs", boom)

	err := s.RunInTransaction(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.InsertMergeAudit(ctx, &models.MergeAuditLog{ID: "a1", TenantID: tenant})
	})
	assert.ErrorIs(t, err, boom)

	s.FailWrites("merge_audit_logs", nil)
	audit, err := s.GetMergeAudit(context.Background(), tenant, "a1")
	require.NoError(t, err)
	assert.Nil(t, audit)
}
