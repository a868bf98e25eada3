package person

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

// Table describes the persons table.
var Table = record.Table{
	Name:             "persons",
	NameColumn:       "full_name",
	IdentifierColumn: "email",
	Columns:          []string{"full_name", "email", "phone", "job_title", "organization_id", "owner_id"},
}

// Repository handles person persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new person repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get loads a person by id whatever its tenant or merge state. It returns nil, nil when absent.
func (r *Repository) Get(ctx context.Context, id string, lock bool) (*models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.Get")
	defer span.End()

	query, args := Table.SelectByID(id, lock)

	var p models.Person
	if err := database.Conn(ctx, r.db).GetContext(ctx, &p, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to get person")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get person")
	}
	return &p, nil
}

// ListLive returns unmerged persons of a tenant in creation order.
func (r *Repository) ListLive(ctx context.Context, tenantID string, limit int) ([]*models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.ListLive")
	defer span.End()

	query, args := Table.SelectLive(tenantID, limit)

	var persons []*models.Person
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &persons, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list persons")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list persons")
	}
	return persons, nil
}

// FindCandidates runs the trigram prefilter over live persons.
func (r *Repository) FindCandidates(ctx context.Context, q store.CandidateQuery) ([]models.Candidate, error) {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.FindCandidates")
	defer span.End()

	query, args, ok := Table.SelectCandidates(q)
	if !ok {
		return nil, nil
	}

	var rows []record.CandidateRow
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to find person candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find person candidates")
	}

	candidates := make([]models.Candidate, 0, len(rows))
	for _, row := range rows {
		p := &models.Person{FullName: row.Name, Email: row.Identifier}
		p.ID, p.CreatedAt, p.UpdatedAt = row.ID, row.CreatedAt, row.UpdatedAt
		candidates = append(candidates, models.CandidateFromRecord(p))
	}
	return candidates, nil
}

func values(p *models.Person) []any {
	return []any{p.FullName, p.Email, p.Phone, p.JobTitle, p.OrganizationID, p.OwnerID}
}

// Create inserts a person, filling in the id and timestamps.
func (r *Repository) Create(ctx context.Context, p *models.Person) error {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.Create")
	defer span.End()

	record.Prepare(&p.RecordMeta)
	query, args := Table.Insert(Table.AllColumns(), append(record.MetaValues(&p.RecordMeta), values(p)...))

	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create person")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create person")
	}
	return nil
}

// Save writes the person's attribute columns and custom fields.
func (r *Repository) Save(ctx context.Context, p *models.Person) error {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.Save")
	defer span.End()

	p.UpdatedAt = time.Now().UTC()
	columns := append([]string{"custom_fields"}, Table.Columns...)
	query, args := Table.Update(p.TenantID, p.ID, columns, append([]any{p.CustomFields}, values(p)...), p.UpdatedAt)

	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": p.ID}).Error("Failed to save person")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to save person")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("person %s not found", p.ID))
	}
	return nil
}

// MarkMerged retires a live person into survivorID.
func (r *Repository) MarkMerged(ctx context.Context, tenantID, id, survivorID, userID string, at time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.MarkMerged")
	defer span.End()

	query, args := Table.UpdateMerged(tenantID, id, survivorID, userID, at)

	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to mark person merged")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark person merged")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("person %s is already merged", id))
	}
	return nil
}
