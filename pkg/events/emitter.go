// Package events handles event emission for record lifecycle changes
package events

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Publisher writes one event to the bus.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Emitter handles event emission for clover
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

// EmitRecordMerged announces a committed merge. Events are keyed by loser id so
// every event about one retired record lands on the same partition.
func (e *Emitter) EmitRecordMerged(ctx context.Context, audit *models.MergeAuditLog) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRecordMerged")
	defer span.End()

	event := RecordMergedEvent{
		BaseEvent: BaseEvent{
			EventID:       uuid.NewString(),
			EventType:     EventTypeRecordMerged,
			SchemaVersion: SchemaVersion,
			TenantID:      audit.TenantID,
			Timestamp:     audit.PerformedAt,
		},
		EntityKind:     string(audit.EntityKind),
		SurvivorID:     audit.SurvivorID,
		LoserID:        audit.LoserID,
		PerformedBy:    audit.PerformedBy,
		AuditID:        audit.ID,
		TransferCounts: audit.TransferCounts.GetValue(),
	}

	err := e.publisher.Publish(ctx, kafka.Event{
		Key: audit.LoserID,
		Headers: map[string]string{
			"event_type":     string(EventTypeRecordMerged),
			"tenant_id":      audit.TenantID,
			"entity_kind":    string(audit.EntityKind),
			"schema_version": SchemaVersion,
		},
		Payload: event,
	})
	if err != nil {
		tracing.RecordError(span, err)
		e.logger.WithContext(ctx).WithError(err).WithField("audit_id", audit.ID).Error("Failed to emit record.merged event")
		return err
	}

	return nil
}
