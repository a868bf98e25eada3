package record

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/store"
)

var persons = Table{Name: "persons", NameColumn: "full_name", IdentifierColumn: "email", Columns: []string{"full_name", "email"}}

func TestSelectByID(t *testing.T) {
	query, args := persons.SelectByID("p1", true)
	assert.True(t, strings.HasPrefix(query, "SELECT id, tenant_id, custom_fields"))
	assert.True(t, strings.HasSuffix(query, "FROM persons WHERE id = $1 FOR UPDATE"))
	assert.Equal(t, []any{"p1"}, args)

	query, _ = persons.SelectByID("p1", false)
	assert.NotContains(t, query, "FOR UPDATE")
	assert.NotContains(t, query, "merged_into_id IS NULL")
}

func TestSelectLive(t *testing.T) {
	query, args := persons.SelectLive("t1", 5001)
	assert.Contains(t, query, "WHERE tenant_id = $1 AND merged_into_id IS NULL ORDER BY created_at, id ASC LIMIT")
	assert.Equal(t, "t1", args[0])

	query, _ = persons.SelectLive("t1", 0)
	assert.NotContains(t, query, "LIMIT")
}

func TestSelectCandidates(t *testing.T) {
	t.Run("BothAttributes", func(t *testing.T) {
		query, args, ok := persons.SelectCandidates(store.CandidateQuery{
			TenantID:      "t1",
			Kind:          models.EntityKindPerson,
			Name:          "john smith",
			Identifier:    "john@example.com",
			ExcludeID:     "p1",
			MinSimilarity: 0.35,
			Limit:         50,
		})
		require.True(t, ok)
		assert.Contains(t, query, "(similarity(lower(full_name), $2) >= $3 OR similarity(lower(email), $4) >= $5)")
		assert.Contains(t, query, "id <> $")
		assert.Contains(t, query, "GREATEST(")
		assert.Contains(t, query, "merged_into_id IS NULL")
		assert.Contains(t, args, "john smith")
		assert.Contains(t, args, 0.35)
		assert.Contains(t, query, "DESC LIMIT")
	})

	t.Run("NameOnlyDefaultsLimit", func(t *testing.T) {
		query, args, ok := persons.SelectCandidates(store.CandidateQuery{TenantID: "t1", Name: "john", MinSimilarity: 0.4})
		require.True(t, ok)
		assert.NotContains(t, query, "lower(email)")
		assert.NotContains(t, query, "GREATEST")
		assert.NotContains(t, query, "id <>")
		assert.Contains(t, query, "LIMIT")
		assert.Equal(t, "t1", args[0])
	})

	t.Run("NoAttributes", func(t *testing.T) {
		_, _, ok := persons.SelectCandidates(store.CandidateQuery{TenantID: "t1"})
		assert.False(t, ok)
	})
}

func TestUpdateMerged(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	query, args := persons.UpdateMerged("t1", "loser", "survivor", "u1", at)
	assert.Equal(t, "UPDATE persons SET merged_into_id = $1, merged_at = $2, merged_by_user_id = $3, updated_at = $4 WHERE id = $5 AND tenant_id = $6 AND merged_into_id IS NULL", query)
	assert.Equal(t, []any{"survivor", at, "u1", at, "loser", "t1"}, args)
}

func TestUpdate(t *testing.T) {
	at := time.Now()
	query, args := persons.Update("t1", "p1", []string{"full_name", "email"}, []any{"A", "a@b.c"}, at)
	assert.Equal(t, "UPDATE persons SET full_name = $1, email = $2, updated_at = $3 WHERE id = $4 AND tenant_id = $5", query)
	assert.Len(t, args, 5)
}
