package organization

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/internal/repositories/record"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/store"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Table describes the organizations table.
var Table = record.Table{
	Name:             "organizations",
	NameColumn:       "name",
	IdentifierColumn: "domain",
	Columns:          []string{"name", "domain", "industry", "phone", "address", "owner_id"},
}

// Repository handles organization persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new organization repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get loads an organization by id whatever its tenant or merge state. It returns nil, nil when absent.
func (r *Repository) Get(ctx context.Context, id string, lock bool) (*models.Organization, error) {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.Get")
	defer span.End()

	query, args := Table.SelectByID(id, lock)

	var org models.Organization
	if err := database.Conn(ctx, r.db).GetContext(ctx, &org, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to get organization")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get organization")
	}
	return &org, nil
}

// ListLive returns unmerged organizations of a tenant in creation order.
func (r *Repository) ListLive(ctx context.Context, tenantID string, limit int) ([]*models.Organization, error) {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.ListLive")
	defer span.End()

	query, args := Table.SelectLive(tenantID, limit)

	var organizations []*models.Organization
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &organizations, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list organizations")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list organizations")
	}
	return organizations, nil
}

// FindCandidates runs the trigram prefilter over live organizations.
func (r *Repository) FindCandidates(ctx context.Context, q store.CandidateQuery) ([]models.Candidate, error) {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.FindCandidates")
	defer span.End()

	query, args, ok := Table.SelectCandidates(q)
	if !ok {
		return nil, nil
	}

	var rows []record.CandidateRow
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to find organization candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find organization candidates")
	}

	candidates := make([]models.Candidate, 0, len(rows))
	for _, row := range rows {
		o := &models.Organization{Name: row.Name, Domain: row.Identifier}
		o.ID, o.CreatedAt, o.UpdatedAt = row.ID, row.CreatedAt, row.UpdatedAt
		candidates = append(candidates, models.CandidateFromRecord(o))
	}
	return candidates, nil
}

func values(o *models.Organization) []any {
	return []any{o.Name, o.Domain, o.Industry, o.Phone, o.Address, o.OwnerID}
}

// Create inserts an organization, filling in the id and timestamps.
func (r *Repository) Create(ctx context.Context, o *models.Organization) error {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.Create")
	defer span.End()

	record.Prepare(&o.RecordMeta)
	query, args := Table.Insert(Table.AllColumns(), append(record.MetaValues(&o.RecordMeta), values(o)...))

	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create organization")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create organization")
	}
	return nil
}

// Save writes the organization's attribute columns and custom fields.
func (r *Repository) Save(ctx context.Context, o *models.Organization) error {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.Save")
	defer span.End()

	o.UpdatedAt = time.Now().UTC()
	columns := append([]string{"custom_fields"}, Table.Columns...)
	query, args := Table.Update(o.TenantID, o.ID, columns, append([]any{o.CustomFields}, values(o)...), o.UpdatedAt)

	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": o.ID}).Error("Failed to save organization")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to save organization")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("organization %s not found", o.ID))
	}
	return nil
}

// MarkMerged retires a live organization into survivorID.
func (r *Repository) MarkMerged(ctx context.Context, tenantID, id, survivorID, userID string, at time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.MarkMerged")
	defer span.End()

	query, args := Table.UpdateMerged(tenantID, id, survivorID, userID, at)

	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to mark organization merged")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark organization merged")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("organization %s is already merged", id))
	}
	return nil
}
