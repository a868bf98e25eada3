// Package manifest declares, per entity kind, every table that references a
// record of that kind. The merge orchestrator walks it to re-point references
// from a loser to its survivor; supporting a new referencing table is one entry here.
package manifest

import (
	"fmt"
	"sync"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
)

// TransferType selects how an entry's rows move to the survivor.
type TransferType string

const (
	// TransferSimple bulk-updates a plain foreign key column.
	TransferSimple TransferType = "simple"
	// TransferPolymorphic bulk-updates an (entity type, entity id) pair, filtered by the type discriminator.
	TransferPolymorphic TransferType = "polymorphic"
	// TransferConflictProne re-points row by row because (OtherColumn, Column) is unique.
	TransferConflictProne TransferType = "conflict_prone"
)

// Entry describes one referencing table.
type Entry struct {
	// Name keys the entry in transfer counts and audit logs.
	Name   string       `yaml:"name" json:"name"`
	Type   TransferType `yaml:"type" json:"type"`
	Table  string       `yaml:"table" json:"table"`
	Column string       `yaml:"column" json:"column"`

	// polymorphic only
	TypeColumn string `yaml:"type_column,omitempty" json:"type_column,omitempty"`
	TypeValue  string `yaml:"type_value,omitempty" json:"type_value,omitempty"`

	// conflict-prone only: the other side of the unique pair.
	OtherColumn string `yaml:"other_column,omitempty" json:"other_column,omitempty"`

	// IDColumn is the row key used for per-row updates. Defaults to "id".
	IDColumn string `yaml:"id_column,omitempty" json:"id_column,omitempty"`

	// TenantColumn scopes every statement. Defaults to "tenant_id".
	TenantColumn string `yaml:"tenant_column,omitempty" json:"tenant_column,omitempty"`
}

// Key returns the row key column.
func (e Entry) Key() string {
	if e.IDColumn == "" {
		return "id"
	}
	return e.IDColumn
}

// Tenant returns the tenant scoping column.
func (e Entry) Tenant() string {
	if e.TenantColumn == "" {
		return "tenant_id"
	}
	return e.TenantColumn
}

func (e Entry) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("manifest entry name is required")
	}

	columns := map[string]string{"table": e.Table, "column": e.Column, "id_column": e.Key(), "tenant_column": e.Tenant()}

	switch e.Type {
	case TransferSimple:
	case TransferPolymorphic:
		if e.TypeValue == "" {
			return fmt.Errorf("manifest entry %s: type_value is required for polymorphic references", e.Name)
		}
		columns["type_column"] = e.TypeColumn
	case TransferConflictProne:
		columns["other_column"] = e.OtherColumn
	default:
		return fmt.Errorf("manifest entry %s: unknown transfer type %q", e.Name, e.Type)
	}

	for field, value := range columns {
		if !database.ValidIdentifier(value) {
			return fmt.Errorf("manifest entry %s: invalid %s %q", e.Name, field, value)
		}
	}
	return nil
}

// Registry holds the entries of every entity kind.
type Registry struct {
	mu      sync.RWMutex
	entries map[models.EntityKind][]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[models.EntityKind][]Entry)}
}

// Register appends entry for kind. Names are unique per kind.
func (r *Registry) Register(kind models.EntityKind, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.entries[kind] {
		if existing.Name == entry.Name {
			return fmt.Errorf("manifest entry %s already registered for %s", entry.Name, kind)
		}
	}
	r.entries[kind] = append(r.entries[kind], entry)
	return nil
}

// MustRegister panics on an invalid entry. Used for the built-in table.
func (r *Registry) MustRegister(kind models.EntityKind, entries ...Entry) *Registry {
	for _, e := range entries {
		if err := r.Register(kind, e); err != nil {
			panic(err)
		}
	}
	return r
}

// For returns a copy of kind's entries in registration order.
func (r *Registry) For(kind models.EntityKind) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, len(r.entries[kind]))
	copy(out, r.entries[kind])
	return out
}

// Kinds lists kinds that have at least one entry.
func (r *Registry) Kinds() []models.EntityKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var kinds []models.EntityKind
	for _, k := range models.EntityKinds {
		if len(r.entries[k]) > 0 {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
