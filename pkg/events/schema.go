package events

import "time"

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// EventType defines the type of event
type EventType string

const (
	EventTypeRecordMerged EventType = "record.merged"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID       string    `json:"event_id"`
	EventType     EventType `json:"event_type"`
	SchemaVersion string    `json:"schema_version"`
	TenantID      string    `json:"tenant_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// RecordMergedEvent is emitted once a merge has committed. Consumers holding
// copies of the loser should re-point them to SurvivorID.
type RecordMergedEvent struct {
	BaseEvent
	EntityKind     string         `json:"entity_kind"`
	SurvivorID     string         `json:"survivor_id"`
	LoserID        string         `json:"loser_id"`
	PerformedBy    string         `json:"performed_by"`
	AuditID        string         `json:"audit_id"`
	TransferCounts map[string]int `json:"transfer_counts"`
}
