package pgstore

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/detection"
	"github.com/Ramsey-B/clover/pkg/manifest"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/models"
)

// newTestStore connects to CLOVER_TEST_DATABASE_URL and migrates it to the latest schema.
func newTestStore(t *testing.T) (*Store, *sqlx.DB) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping postgres integration test in short mode")
	}
	dsn := os.Getenv("CLOVER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CLOVER_TEST_DATABASE_URL not set")
	}

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ms := database.NewMigrationService(logger, &database.MigrationConfig{MigrationFolderPath: "../../db/pg"})
	require.NoError(t, ms.MigratePostgres(db.DB, "clover_test"))

	return New(database.NewDatabaseInstance(db, logger), logger), db
}

func seedPerson(t *testing.T, s *Store, tenantID, name, email string) *models.Person {
	t.Helper()
	p := &models.Person{FullName: models.StringPtr(name), Email: models.StringPtr(email)}
	p.TenantID = tenantID
	require.NoError(t, s.Persons().Create(context.Background(), p))
	return p
}

func TestStore_FindCandidates(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	tenant := uuid.NewString()

	john := seedPerson(t, s, tenant, "John Smith", "john@example.com")
	seedPerson(t, s, tenant, "Jon Smith", "john@example.com")
	seedPerson(t, s, tenant, "Mary Jones", "mary@jones.org")
	seedPerson(t, s, uuid.NewString(), "John Smith", "john@example.com")

	detector := detection.NewDetector(s, matching.NewScorer(matching.AlgorithmLevenshtein), nil, detection.DefaultConfig(), s.logger)
	matches, err := detector.FindDuplicatesFor(ctx, tenant, models.EntityKindPerson, models.AttributeSet{
		Name:       john.FullName,
		Identifier: john.Email,
	}, 70, john.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Jon Smith", matches[0].DisplayName)
}

func TestStore_MergeTransfersReferences(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()
	tenant := uuid.NewString()

	survivor := seedPerson(t, s, tenant, "John Smith", "john@example.com")
	loser := seedPerson(t, s, tenant, "Jon Smith", "john@example.com")

	deal1, deal2 := uuid.NewString(), uuid.NewString()
	for _, d := range []string{deal1, deal2} {
		db.MustExec(`INSERT INTO deals (id, tenant_id, title) VALUES ($1, $2, 'deal')`, d, tenant)
	}
	db.MustExec(`INSERT INTO deal_contacts (id, tenant_id, deal_id, person_id) VALUES ($1, $2, $3, $4)`, uuid.NewString(), tenant, deal1, survivor.ID)
	db.MustExec(`INSERT INTO deal_contacts (id, tenant_id, deal_id, person_id) VALUES ($1, $2, $3, $4)`, uuid.NewString(), tenant, deal1, loser.ID)
	db.MustExec(`INSERT INTO deal_contacts (id, tenant_id, deal_id, person_id) VALUES ($1, $2, $3, $4)`, uuid.NewString(), tenant, deal2, loser.ID)
	db.MustExec(`INSERT INTO tasks (id, tenant_id, title, person_id) VALUES ($1, $2, 'call', $3)`, uuid.NewString(), tenant, loser.ID)
	db.MustExec(`INSERT INTO notes (id, tenant_id, entity_type, entity_id) VALUES ($1, $2, 'person', $3)`, uuid.NewString(), tenant, loser.ID)

	orch := merging.NewOrchestrator(s, manifest.Default(), s.logger)
	result, err := orch.Merge(ctx, models.MergeRequest{
		TenantID:        tenant,
		EntityKind:      models.EntityKindPerson,
		SurvivorID:      survivor.ID,
		LoserID:         loser.ID,
		FieldSelections: map[string]any{"full_name": "Jon Smith"},
		PerformedBy:     "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.TransferCounts["deals"])
	assert.Equal(t, 1, result.DroppedCounts["deals"])
	assert.Equal(t, 1, result.TransferCounts["tasks"])
	assert.Equal(t, 1, result.TransferCounts["notes"])

	var remaining int
	require.NoError(t, db.Get(&remaining, `SELECT count(*) FROM deal_contacts WHERE person_id = $1`, loser.ID))
	assert.Zero(t, remaining)

	rec, err := s.FindRecord(ctx, loser.ID, false)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Meta().IsMerged())

	updated, err := s.FindRecord(ctx, survivor.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "Jon Smith", *updated.(*models.Person).FullName)

	history, err := orch.History(ctx, tenant, survivor.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, result.AuditID, history[0].ID)

	_, err = orch.Merge(ctx, models.MergeRequest{
		TenantID:    tenant,
		EntityKind:  models.EntityKindPerson,
		SurvivorID:  survivor.ID,
		LoserID:     loser.ID,
		PerformedBy: "user-1",
	})
	assert.True(t, merging.IsAlreadyMerged(err))
}

func TestStore_ConcurrentMergesOfOneLoser(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	tenant := uuid.NewString()

	first := seedPerson(t, s, tenant, "John Smith", "john@example.com")
	loser := seedPerson(t, s, tenant, "Jon Smith", "john@example.com")
	second := seedPerson(t, s, tenant, "Johnny Smith", "johnny@example.com")

	orch := merging.NewOrchestrator(s, manifest.Default(), s.logger)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, survivor := range []string{first.ID, second.ID} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = orch.Merge(ctx, models.MergeRequest{
				TenantID:    tenant,
				EntityKind:  models.EntityKindPerson,
				SurvivorID:  survivor,
				LoserID:     loser.ID,
				PerformedBy: "user-1",
			})
		}()
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case merging.IsAlreadyMerged(err):
			rejected++
		default:
			t.Fatalf("unexpected merge error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	history, err := orch.History(ctx, tenant, loser.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func seedOrganization(t *testing.T, s *Store, tenantID, name, domain string) *models.Organization {
	t.Helper()
	o := &models.Organization{Name: models.StringPtr(name), Domain: models.StringPtr(domain)}
	o.TenantID = tenantID
	require.NoError(t, s.Organizations().Create(context.Background(), o))
	return o
}

func TestStore_OrganizationScan(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	tenant := uuid.NewString()

	acme := seedOrganization(t, s, tenant, "Acme Corp", "acme.com")
	dup := seedOrganization(t, s, tenant, "ACME Corp.", "https://www.acme.com")
	seedOrganization(t, s, tenant, "Globex", "globex.io")

	detector := detection.NewDetector(s, matching.NewScorer(matching.AlgorithmLevenshtein), nil, detection.DefaultConfig(), s.logger)
	result, err := detector.ScanAllDuplicates(ctx, tenant, models.EntityKindOrganization, 90, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, result.ScannedRecords)
	require.Len(t, result.Pairs, 1)
	assert.ElementsMatch(t, []string{acme.ID, dup.ID},
		[]string{result.Pairs[0].MatchA.CandidateID, result.Pairs[0].MatchB.CandidateID})
}
