package reference

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/clover/pkg/manifest"
)

var (
	tasks = manifest.Entry{Name: "tasks", Type: manifest.TransferSimple, Table: "tasks", Column: "person_id"}
	notes = manifest.Entry{Name: "notes", Type: manifest.TransferPolymorphic, Table: "notes", Column: "entity_id", TypeColumn: "entity_type", TypeValue: "person"}
	deals = manifest.Entry{Name: "deals", Type: manifest.TransferConflictProne, Table: "deal_contacts", Column: "person_id", OtherColumn: "deal_id"}
)

func TestRepointAllQuery(t *testing.T) {
	tests := []struct {
		name      string
		entry     manifest.Entry
		wantQuery string
		wantArgs  []any
	}{
		{
			name:      "simple foreign key",
			entry:     tasks,
			wantQuery: "UPDATE tasks SET person_id = $1 WHERE tenant_id = $2 AND person_id = $3",
			wantArgs:  []any{"survivor", "t1", "loser"},
		},
		{
			name:      "polymorphic filters on the discriminator",
			entry:     notes,
			wantQuery: "UPDATE notes SET entity_id = $1 WHERE tenant_id = $2 AND entity_id = $3 AND entity_type = $4",
			wantArgs:  []any{"survivor", "t1", "loser", "person"},
		},
		{
			name:      "custom tenant column",
			entry:     manifest.Entry{Name: "x", Type: manifest.TransferSimple, Table: "x", Column: "person_id", TenantColumn: "account_id"},
			wantQuery: "UPDATE x SET person_id = $1 WHERE account_id = $2 AND person_id = $3",
			wantArgs:  []any{"survivor", "t1", "loser"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := repointAllQuery(tt.entry, "t1", "loser", "survivor")
			assert.Equal(t, tt.wantQuery, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestListQuery(t *testing.T) {
	query, args := listQuery(deals, "t1", "p1")
	assert.Equal(t, "SELECT id AS id, person_id AS owner_id, deal_id AS other_id FROM deal_contacts WHERE tenant_id = $1 AND person_id = $2 ORDER BY id ASC", query)
	assert.Equal(t, []any{"t1", "p1"}, args)

	query, _ = listQuery(tasks, "t1", "p1")
	assert.NotContains(t, query, "other_id")
}

func TestSingleRowQueries(t *testing.T) {
	query, args := repointOneQuery(deals, "t1", "r1", "survivor")
	assert.Equal(t, "UPDATE deal_contacts SET person_id = $1 WHERE id = $2 AND tenant_id = $3", query)
	assert.Equal(t, []any{"survivor", "r1", "t1"}, args)

	query, args = deleteQuery(deals, "t1", "r1")
	assert.Equal(t, "DELETE FROM deal_contacts WHERE id = $1 AND tenant_id = $2", query)
	assert.Equal(t, []any{"r1", "t1"}, args)
}
