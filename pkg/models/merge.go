package models

import (
	"time"

	"github.com/Ramsey-B/clover/pkg/database"
)

// MergeRequest asks to fold LoserID into SurvivorID.
// FieldSelections carries the chosen value for every field where the two records disagree.
type MergeRequest struct {
	TenantID        string         `json:"tenant_id" validate:"required"`
	EntityKind      EntityKind     `json:"entity_kind" validate:"required,oneof=person organization"`
	SurvivorID      string         `json:"survivor_id" validate:"required"`
	LoserID         string         `json:"loser_id" validate:"required"`
	FieldSelections map[string]any `json:"field_selections"`
	PerformedBy     string         `json:"performed_by" validate:"required"`
}

// MergeAuditLog is written exactly once per committed merge, inside the merge transaction.
type MergeAuditLog struct {
	ID              string                         `db:"id" json:"id"`
	TenantID        string                         `db:"tenant_id" json:"tenant_id"`
	EntityKind      EntityKind                     `db:"entity_kind" json:"entity_kind"`
	SurvivorID      string                         `db:"survivor_id" json:"survivor_id"`
	LoserID         string                         `db:"loser_id" json:"loser_id"`
	PerformedBy     string                         `db:"performed_by" json:"performed_by"`
	FieldSelections database.JSONB[map[string]any] `db:"field_selections" json:"field_selections"`
	TransferCounts  database.JSONB[map[string]int] `db:"transfer_counts" json:"transfer_counts"`
	PerformedAt     time.Time                      `db:"performed_at" json:"performed_at"`
}

// MergeResult is returned to the caller of a successful merge.
type MergeResult struct {
	AuditID        string         `json:"audit_id"`
	EntityKind     EntityKind     `json:"entity_kind"`
	SurvivorID     string         `json:"survivor_id"`
	LoserID        string         `json:"loser_id"`
	TransferCounts map[string]int `json:"transfer_counts"`
	// DroppedCounts counts conflict-prone rows deleted because the survivor already held the link.
	DroppedCounts map[string]int `json:"dropped_counts,omitempty"`
	PerformedAt   time.Time      `json:"performed_at"`
}

// Reference is one row of a conflict-prone reference table.
type Reference struct {
	ID      string `db:"id" json:"id"`
	OwnerID string `db:"owner_id" json:"owner_id"`
	OtherID string `db:"other_id" json:"other_id"`
}
