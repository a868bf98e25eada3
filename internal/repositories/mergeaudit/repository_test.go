package mergeaudit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
)

func TestInsertQuery(t *testing.T) {
	audit := &models.MergeAuditLog{
		ID:              "a1",
		TenantID:        "t1",
		EntityKind:      models.EntityKindOrganization,
		SurvivorID:      "s",
		LoserID:         "l",
		PerformedBy:     "u",
		FieldSelections: database.NewJSONB(map[string]any{"name": "Acme Inc"}),
		TransferCounts:  database.NewJSONB(map[string]int{"contacts": 14}),
		PerformedAt:     time.Now(),
	}

	query, args := insertQuery(audit)
	assert.Equal(t, "INSERT INTO merge_audit_logs (id, tenant_id, entity_kind, survivor_id, loser_id, performed_by, field_selections, transfer_counts, performed_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)", query)
	assert.Len(t, args, 9)
}

func TestListQuery(t *testing.T) {
	query, args := listQuery("t1", "r1")
	assert.Contains(t, query, "WHERE tenant_id = $1 AND (survivor_id = $2 OR loser_id = $3) ORDER BY performed_at DESC, id")
	assert.Equal(t, []any{"t1", "r1", "r1"}, args)
}
