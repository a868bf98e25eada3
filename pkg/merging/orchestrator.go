// Package merging folds a confirmed duplicate (the loser) into the record that
// is kept (the survivor) in a single store transaction.
package merging

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/manifest"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/store"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// EventEmitter announces committed merges to other services.
type EventEmitter interface {
	EmitRecordMerged(ctx context.Context, audit *models.MergeAuditLog) error
}

// GraphUpdater moves the loser's edges in the relationship graph to the survivor.
type GraphUpdater interface {
	RepointNode(ctx context.Context, tenantID string, kind models.EntityKind, loserID, survivorID string) error
}

// ScanInvalidator drops cached batch scans made stale by a merge.
type ScanInvalidator interface {
	InvalidateScans(ctx context.Context, tenantID string, kind models.EntityKind) error
}

type Option func(*Orchestrator)

func WithEmitter(e EventEmitter) Option { return func(o *Orchestrator) { o.emitter = e } }

func WithGraph(g GraphUpdater) Option { return func(o *Orchestrator) { o.graph = g } }

func WithScanInvalidator(s ScanInvalidator) Option { return func(o *Orchestrator) { o.scans = s } }

// WithClock overrides the merge timestamp source.
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

type Orchestrator struct {
	store    store.Store
	manifest *manifest.Registry
	validate *validator.Validate
	logger   ectologger.Logger

	emitter EventEmitter
	graph   GraphUpdater
	scans   ScanInvalidator
	now     func() time.Time
}

func NewOrchestrator(s store.Store, registry *manifest.Registry, logger ectologger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    s,
		manifest: registry,
		validate: validator.New(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Merge applies req atomically: field selections, every manifest transfer,
// the loser's retirement and the audit row commit together or not at all.
func (o *Orchestrator) Merge(ctx context.Context, req models.MergeRequest) (*models.MergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Orchestrator.Merge")
	defer span.End()

	log := o.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":   req.TenantID,
		"entity_kind": req.EntityKind,
		"survivor_id": req.SurvivorID,
		"loser_id":    req.LoserID,
	})

	start := time.Now()
	var audit *models.MergeAuditLog
	var result *models.MergeResult

	err := o.checkRequest(req)
	if err == nil {
		err = o.store.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
			var txErr error
			audit, result, txErr = o.merge(ctx, tx, req)
			return txErr
		})
	}

	if err != nil {
		if kindOf(err) == "" {
			err = &MergeError{Kind: KindTransferFailure, Message: "merge transaction failed", Err: err}
		}
		metrics.MergesTotal.WithLabelValues(string(req.EntityKind), string(kindOf(err))).Inc()
		tracing.RecordError(span, err)
		if IsTransferFailure(err) {
			log.WithError(err).Error("Merge rolled back")
		} else {
			log.WithError(err).Warn("Merge rejected")
		}
		return nil, err
	}

	metrics.MergesTotal.WithLabelValues(string(req.EntityKind), "merged").Inc()
	metrics.MergeDuration.WithLabelValues(string(req.EntityKind)).Observe(time.Since(start).Seconds())
	for name, n := range result.TransferCounts {
		metrics.ReferencesTransferred.WithLabelValues(string(req.EntityKind), name).Add(float64(n))
	}
	for name, n := range result.DroppedCounts {
		metrics.ReferencesDropped.WithLabelValues(string(req.EntityKind), name).Add(float64(n))
	}

	log.WithFields(map[string]any{
		"audit_id":        audit.ID,
		"transfer_counts": result.TransferCounts,
	}).Info("Merged records")

	o.afterCommit(ctx, audit)
	return result, nil
}

func (o *Orchestrator) checkRequest(req models.MergeRequest) error {
	if err := o.validate.Struct(req); err != nil {
		return &MergeError{Kind: KindInvalidRequest, Message: "invalid merge request", Err: err}
	}
	if req.SurvivorID == req.LoserID {
		return newError(KindInvalidRequest, "survivor and loser must be different records")
	}
	return nil
}

func (o *Orchestrator) merge(ctx context.Context, tx store.Tx, req models.MergeRequest) (*models.MergeAuditLog, *models.MergeResult, error) {
	survivor, loser, err := o.load(ctx, tx, req)
	if err != nil {
		return nil, nil, err
	}

	if err := ApplySelections(survivor, req.FieldSelections); err != nil {
		return nil, nil, err
	}
	if err := tx.SaveRecord(ctx, survivor); err != nil {
		return nil, nil, &MergeError{Kind: KindTransferFailure, Message: "failed to save survivor", Err: err}
	}

	transferred, dropped, err := o.transfer(ctx, tx, req)
	if err != nil {
		return nil, nil, err
	}

	at := o.now()
	if err := tx.MarkMerged(ctx, loser, req.SurvivorID, req.PerformedBy, at); err != nil {
		if httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusConflict {
			return nil, nil, newError(KindAlreadyMerged, "record %s is already merged", req.LoserID)
		}
		return nil, nil, &MergeError{Kind: KindTransferFailure, Message: "failed to mark loser merged", Err: err}
	}

	selections := req.FieldSelections
	if selections == nil {
		selections = map[string]any{}
	}
	audit := &models.MergeAuditLog{
		ID:              uuid.NewString(),
		TenantID:        req.TenantID,
		EntityKind:      req.EntityKind,
		SurvivorID:      req.SurvivorID,
		LoserID:         req.LoserID,
		PerformedBy:     req.PerformedBy,
		FieldSelections: database.NewJSONB(selections),
		TransferCounts:  database.NewJSONB(transferred),
		PerformedAt:     at,
	}
	if err := tx.InsertMergeAudit(ctx, audit); err != nil {
		return nil, nil, &MergeError{Kind: KindTransferFailure, Message: "failed to write merge audit log", Err: err}
	}

	return audit, &models.MergeResult{
		AuditID:        audit.ID,
		EntityKind:     req.EntityKind,
		SurvivorID:     req.SurvivorID,
		LoserID:        req.LoserID,
		TransferCounts: transferred,
		DroppedCounts:  dropped,
		PerformedAt:    at,
	}, nil
}

// load locks both records in id order, so two merges over the same pair
// cannot deadlock, then applies the participation checks.
func (o *Orchestrator) load(ctx context.Context, tx store.Tx, req models.MergeRequest) (survivor, loser models.Record, err error) {
	ids := []string{req.SurvivorID, req.LoserID}
	sort.Strings(ids)

	found := make(map[string]models.Record, 2)
	for _, id := range ids {
		rec, err := tx.FindRecord(ctx, id, true)
		if err != nil {
			return nil, nil, &MergeError{Kind: KindTransferFailure, Message: "failed to load merge participants", Err: err}
		}
		if rec == nil {
			return nil, nil, newError(KindNotFound, "record %s not found", id)
		}
		found[id] = rec
	}
	survivor, loser = found[req.SurvivorID], found[req.LoserID]

	for _, rec := range []models.Record{survivor, loser} {
		meta := rec.Meta()
		if rec.Kind() != req.EntityKind {
			return nil, nil, newError(KindInvalidRequest, "record %s is a %s, not a %s", meta.ID, rec.Kind(), req.EntityKind)
		}
		if meta.TenantID != req.TenantID {
			return nil, nil, newError(KindInvalidRequest, "record %s belongs to a different tenant", meta.ID)
		}
	}
	for _, rec := range []models.Record{survivor, loser} {
		if rec.Meta().IsMerged() {
			return nil, nil, newError(KindAlreadyMerged, "record %s is already merged into %s", rec.Meta().ID, *rec.Meta().MergedIntoID)
		}
	}
	return survivor, loser, nil
}

// transfer runs every manifest entry of the kind. Counts hold an entry for each
// manifest entry; dropped only lists entries that deleted duplicate links.
func (o *Orchestrator) transfer(ctx context.Context, tx store.Tx, req models.MergeRequest) (map[string]int, map[string]int, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Orchestrator.transfer")
	defer span.End()

	transferred := map[string]int{}
	dropped := map[string]int{}

	for _, entry := range o.manifest.For(req.EntityKind) {
		switch entry.Type {
		case manifest.TransferSimple, manifest.TransferPolymorphic:
			n, err := tx.RepointReferences(ctx, req.TenantID, entry, req.LoserID, req.SurvivorID)
			if err != nil {
				return nil, nil, transferFailure(entry.Name, err)
			}
			transferred[entry.Name] = n

		case manifest.TransferConflictProne:
			moved, removed, err := o.transferConflictProne(ctx, tx, req, entry)
			if err != nil {
				return nil, nil, transferFailure(entry.Name, err)
			}
			transferred[entry.Name] = moved
			if removed > 0 {
				dropped[entry.Name] = removed
			}
		}
	}

	if len(dropped) == 0 {
		dropped = nil
	}
	return transferred, dropped, nil
}

// transferConflictProne re-points the loser's links row by row. A link to a
// target the survivor already holds is deleted instead and not counted.
func (o *Orchestrator) transferConflictProne(ctx context.Context, tx store.Tx, req models.MergeRequest, entry manifest.Entry) (moved, removed int, err error) {
	loserRefs, err := tx.ListReferences(ctx, req.TenantID, entry, req.LoserID)
	if err != nil {
		return 0, 0, err
	}
	if len(loserRefs) == 0 {
		return 0, 0, nil
	}

	survivorRefs, err := tx.ListReferences(ctx, req.TenantID, entry, req.SurvivorID)
	if err != nil {
		return 0, 0, err
	}
	held := make(map[string]bool, len(survivorRefs))
	for _, ref := range survivorRefs {
		held[ref.OtherID] = true
	}

	for _, ref := range loserRefs {
		if held[ref.OtherID] {
			if err := tx.DeleteReference(ctx, req.TenantID, entry, ref.ID); err != nil {
				return moved, removed, err
			}
			removed++
			continue
		}
		if err := tx.RepointReference(ctx, req.TenantID, entry, ref.ID, req.SurvivorID); err != nil {
			return moved, removed, err
		}
		held[ref.OtherID] = true
		moved++
	}
	return moved, removed, nil
}

// afterCommit runs the side effects of a committed merge. They cannot undo it,
// so failures are logged and counted only.
func (o *Orchestrator) afterCommit(ctx context.Context, audit *models.MergeAuditLog) {
	log := o.logger.WithContext(ctx).WithFields(map[string]any{
		"audit_id": audit.ID,
		"loser_id": audit.LoserID,
	})

	if o.scans != nil {
		if err := o.scans.InvalidateScans(ctx, audit.TenantID, audit.EntityKind); err != nil {
			metrics.PostCommitFailures.WithLabelValues("scan_cache").Inc()
			log.WithError(err).Warn("Failed to invalidate scan cache")
		}
	}

	if o.graph != nil {
		if err := o.graph.RepointNode(ctx, audit.TenantID, audit.EntityKind, audit.LoserID, audit.SurvivorID); err != nil {
			metrics.PostCommitFailures.WithLabelValues("graph").Inc()
			log.WithError(err).Warn("Failed to repoint graph node")
		}
	}

	if o.emitter != nil {
		if err := o.emitter.EmitRecordMerged(ctx, audit); err != nil {
			metrics.PostCommitFailures.WithLabelValues("events").Inc()
			log.WithError(err).Warn("Failed to emit record.merged event")
		}
	}
}

// History returns the merges recordID took part in, newest first.
func (o *Orchestrator) History(ctx context.Context, tenantID, recordID string) ([]models.MergeAuditLog, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Orchestrator.History")
	defer span.End()

	audits, err := o.store.ListMergeAudits(ctx, tenantID, recordID)
	if err != nil {
		return nil, err
	}
	if audits == nil {
		audits = []models.MergeAuditLog{}
	}
	return audits, nil
}

// Audit returns one audit row of the tenant.
func (o *Orchestrator) Audit(ctx context.Context, tenantID, id string) (*models.MergeAuditLog, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Orchestrator.Audit")
	defer span.End()

	audit, err := o.store.GetMergeAudit(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if audit == nil {
		return nil, newError(KindNotFound, "merge audit %s not found", id)
	}
	return audit, nil
}
