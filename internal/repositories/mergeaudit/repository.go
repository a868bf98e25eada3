package mergeaudit

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const table = "merge_audit_logs"

var columns = []string{"id", "tenant_id", "entity_kind", "survivor_id", "loser_id", "performed_by", "field_selections", "transfer_counts", "performed_at"}

// Repository handles merge audit persistence. Audit rows are append-only.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new merge audit repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func insertQuery(a *models.MergeAuditLog) (string, []any) {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(a.ID, a.TenantID, a.EntityKind, a.SurvivorID, a.LoserID, a.PerformedBy, a.FieldSelections, a.TransferCounts, a.PerformedAt)
	return ib.Build()
}

func getQuery(tenantID, id string) (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)
	return sb.Build()
}

func listQuery(tenantID, recordID string) (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Or(
			sb.Equal("survivor_id", recordID),
			sb.Equal("loser_id", recordID),
		),
	)
	sb.OrderBy("performed_at DESC", "id")
	return sb.Build()
}

// Create inserts an audit row.
func (r *Repository) Create(ctx context.Context, audit *models.MergeAuditLog) error {
	ctx, span := tracing.StartSpan(ctx, "mergeaudit.Repository.Create")
	defer span.End()

	if audit.ID == "" {
		audit.ID = uuid.NewString()
	}

	query, args := insertQuery(audit)
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create merge audit log")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create merge audit log")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":          audit.ID,
		"survivor_id": audit.SurvivorID,
		"loser_id":    audit.LoserID,
	}).Info("Created merge audit log")
	return nil
}

// Get returns nil, nil when the audit does not exist in the tenant.
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.MergeAuditLog, error) {
	ctx, span := tracing.StartSpan(ctx, "mergeaudit.Repository.Get")
	defer span.End()

	query, args := getQuery(tenantID, id)

	var audit models.MergeAuditLog
	if err := database.Conn(ctx, r.db).GetContext(ctx, &audit, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get merge audit log")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to get merge audit log %s", id))
	}
	return &audit, nil
}

// ListForRecord returns the audits in which recordID took part, newest first.
func (r *Repository) ListForRecord(ctx context.Context, tenantID, recordID string) ([]models.MergeAuditLog, error) {
	ctx, span := tracing.StartSpan(ctx, "mergeaudit.Repository.ListForRecord")
	defer span.End()

	query, args := listQuery(tenantID, recordID)

	var audits []models.MergeAuditLog
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &audits, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list merge audit logs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list merge audit logs")
	}
	return audits, nil
}
