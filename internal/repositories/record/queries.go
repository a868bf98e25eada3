// Package record builds the SQL shared by the person and organization tables:
// both carry the same merge-state columns and a name/identifier pair.
package record

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/store"
)

// MetaColumns are present on every mergeable table.
var MetaColumns = []string{"id", "tenant_id", "custom_fields", "merged_into_id", "merged_at", "merged_by_user_id", "created_at", "updated_at"}

// Table describes one mergeable table.
type Table struct {
	Name             string
	NameColumn       string
	IdentifierColumn string
	// Columns are the kind's own columns, excluding MetaColumns.
	Columns []string
}

func (t Table) AllColumns() []string {
	return append(append([]string{}, MetaColumns...), t.Columns...)
}

// SelectByID loads one row whatever its merge state. lock adds FOR UPDATE.
func (t Table) SelectByID(id string, lock bool) (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(t.AllColumns()...)
	sb.From(t.Name)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	if lock {
		query += " FOR UPDATE"
	}
	return query, args
}

// SelectLive lists unmerged rows of a tenant in creation order.
func (t Table) SelectLive(tenantID string, limit int) (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(t.AllColumns()...)
	sb.From(t.Name)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("merged_into_id"),
	)
	sb.OrderBy("created_at", "id").Asc()
	if limit > 0 {
		sb.Limit(limit)
	}
	return sb.Build()
}

// SelectCandidates renders the trigram prefilter. ok is false when the query
// has no attribute to compare, in which case nothing should be run.
func (t Table) SelectCandidates(q store.CandidateQuery) (query string, args []any, ok bool) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()

	var predicates, scores []string
	if q.Name != "" {
		predicates = append(predicates, database.Similarity(sb, t.NameColumn, q.Name, q.MinSimilarity))
		scores = append(scores, database.SimilarityScore(sb, t.NameColumn, q.Name))
	}
	if q.Identifier != "" {
		predicates = append(predicates, database.Similarity(sb, t.IdentifierColumn, q.Identifier, q.MinSimilarity))
		scores = append(scores, database.SimilarityScore(sb, t.IdentifierColumn, q.Identifier))
	}
	if len(predicates) == 0 {
		return "", nil, false
	}

	limit := q.Limit
	if limit <= 0 {
		limit = store.DefaultMaxCandidates
	}

	sb.Select("id", sb.As(t.NameColumn, "name"), sb.As(t.IdentifierColumn, "identifier"), "created_at", "updated_at")
	sb.From(t.Name)
	sb.Where(
		sb.Equal("tenant_id", q.TenantID),
		sb.IsNull("merged_into_id"),
		sb.Or(predicates...),
	)
	if q.ExcludeID != "" {
		sb.Where(sb.NotEqual("id", q.ExcludeID))
	}

	order := scores[0]
	if len(scores) > 1 {
		order = fmt.Sprintf("GREATEST(%s, %s)", scores[0], scores[1])
	}
	sb.OrderBy(order).Desc()
	sb.Limit(limit)

	query, args = sb.Build()
	return query, args, true
}

// UpdateMerged retires a row. The merged_into_id guard makes a second merge affect zero rows.
func (t Table) UpdateMerged(tenantID, id, survivorID, userID string, at time.Time) (string, []any) {
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(t.Name)
	ub.Set(
		ub.Assign("merged_into_id", survivorID),
		ub.Assign("merged_at", at),
		ub.Assign("merged_by_user_id", userID),
		ub.Assign("updated_at", at),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("tenant_id", tenantID),
		ub.IsNull("merged_into_id"),
	)
	return ub.Build()
}

// Update writes values (column -> value) plus updated_at onto one row.
func (t Table) Update(tenantID, id string, columns []string, values []any, at time.Time) (string, []any) {
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(t.Name)

	assignments := make([]string, 0, len(columns)+1)
	for i, col := range columns {
		assignments = append(assignments, ub.Assign(col, values[i]))
	}
	assignments = append(assignments, ub.Assign("updated_at", at))
	ub.Set(assignments...)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("tenant_id", tenantID),
	)
	return ub.Build()
}

// Insert writes a full row.
func (t Table) Insert(columns []string, values []any) (string, []any) {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(t.Name)
	ib.Cols(columns...)
	ib.Values(values...)
	return ib.Build()
}

// CandidateRow is the scan target of SelectCandidates.
type CandidateRow struct {
	ID         string    `db:"id"`
	Name       *string   `db:"name"`
	Identifier *string   `db:"identifier"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Prepare fills in the id and timestamps of a record about to be inserted.
func Prepare(meta *models.RecordMeta) {
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
}

// MetaValues lines up with MetaColumns.
func MetaValues(meta *models.RecordMeta) []any {
	return []any{meta.ID, meta.TenantID, meta.CustomFields, meta.MergedIntoID, meta.MergedAt, meta.MergedByUserID, meta.CreatedAt, meta.UpdatedAt}
}
