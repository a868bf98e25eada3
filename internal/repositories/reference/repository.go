// Package reference moves the rows described by manifest entries from one
// owner to another. Table and column names come from validated entries only.
package reference

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/manifest"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Repository handles referencing-row persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new reference repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

type whereBuilder interface {
	Equal(field string, value any) string
}

// ownerFilter scopes a statement to the rows of entry held by ownerID.
func ownerFilter(b whereBuilder, entry manifest.Entry, tenantID, ownerID string) []string {
	exprs := []string{
		b.Equal(entry.Tenant(), tenantID),
		b.Equal(entry.Column, ownerID),
	}
	if entry.Type == manifest.TransferPolymorphic {
		exprs = append(exprs, b.Equal(entry.TypeColumn, entry.TypeValue))
	}
	return exprs
}

func listQuery(entry manifest.Entry, tenantID, ownerID string) (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	cols := []string{sb.As(entry.Key(), "id"), sb.As(entry.Column, "owner_id")}
	if entry.Type == manifest.TransferConflictProne {
		cols = append(cols, sb.As(entry.OtherColumn, "other_id"))
	}
	sb.Select(cols...)
	sb.From(entry.Table)
	sb.Where(ownerFilter(sb, entry, tenantID, ownerID)...)
	sb.OrderBy(entry.Key()).Asc()
	return sb.Build()
}

func repointAllQuery(entry manifest.Entry, tenantID, fromID, toID string) (string, []any) {
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(entry.Table)
	ub.Set(ub.Assign(entry.Column, toID))
	ub.Where(ownerFilter(ub, entry, tenantID, fromID)...)
	return ub.Build()
}

func repointOneQuery(entry manifest.Entry, tenantID, refID, toID string) (string, []any) {
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(entry.Table)
	ub.Set(ub.Assign(entry.Column, toID))
	ub.Where(
		ub.Equal(entry.Key(), refID),
		ub.Equal(entry.Tenant(), tenantID),
	)
	return ub.Build()
}

func deleteQuery(entry manifest.Entry, tenantID, refID string) (string, []any) {
	del := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	del.DeleteFrom(entry.Table)
	del.Where(
		del.Equal(entry.Key(), refID),
		del.Equal(entry.Tenant(), tenantID),
	)
	return del.Build()
}

func (r *Repository) log(ctx context.Context, entry manifest.Entry) ectologger.Logger {
	return r.logger.WithContext(ctx).WithFields(map[string]any{
		"manifest_entry": entry.Name,
		"table":          entry.Table,
	})
}

// List returns the rows of entry pointing at ownerID.
func (r *Repository) List(ctx context.Context, tenantID string, entry manifest.Entry, ownerID string) ([]models.Reference, error) {
	ctx, span := tracing.StartSpan(ctx, "reference.Repository.List")
	defer span.End()

	query, args := listQuery(entry, tenantID, ownerID)

	var refs []models.Reference
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &refs, query, args...); err != nil {
		r.log(ctx, entry).WithError(err).Error("Failed to list references")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list references")
	}
	return refs, nil
}

// RepointAll bulk-moves every row of entry from fromID to toID.
func (r *Repository) RepointAll(ctx context.Context, tenantID string, entry manifest.Entry, fromID, toID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "reference.Repository.RepointAll")
	defer span.End()

	query, args := repointAllQuery(entry, tenantID, fromID, toID)

	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.log(ctx, entry).WithError(err).Error("Failed to repoint references")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to repoint references")
	}

	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// RepointOne moves a single row to toID.
func (r *Repository) RepointOne(ctx context.Context, tenantID string, entry manifest.Entry, refID, toID string) error {
	ctx, span := tracing.StartSpan(ctx, "reference.Repository.RepointOne")
	defer span.End()

	query, args := repointOneQuery(entry, tenantID, refID, toID)

	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.log(ctx, entry).WithError(err).WithField("reference_id", refID).Error("Failed to repoint reference")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to repoint reference")
	}
	return nil
}

// Delete removes a single row.
func (r *Repository) Delete(ctx context.Context, tenantID string, entry manifest.Entry, refID string) error {
	ctx, span := tracing.StartSpan(ctx, "reference.Repository.Delete")
	defer span.End()

	query, args := deleteQuery(entry, tenantID, refID)

	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.log(ctx, entry).WithError(err).WithField("reference_id", refID).Error("Failed to delete reference")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete reference")
	}
	return nil
}
