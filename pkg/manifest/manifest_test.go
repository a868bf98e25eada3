package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func TestDefault(t *testing.T) {
	r := Default()

	person := r.For(models.EntityKindPerson)
	org := r.For(models.EntityKindOrganization)
	require.NotEmpty(t, person)
	require.NotEmpty(t, org)
	assert.ElementsMatch(t, models.EntityKinds, r.Kinds())

	types := map[TransferType]int{}
	for _, e := range append(person, org...) {
		require.NoError(t, e.Validate(), e.Name)
		types[e.Type]++
	}
	assert.Positive(t, types[TransferSimple])
	assert.Positive(t, types[TransferPolymorphic])
	assert.Positive(t, types[TransferConflictProne])

	for _, e := range org {
		if e.Type == TransferPolymorphic {
			assert.Equal(t, "organization", e.TypeValue)
		}
	}
}

func TestForReturnsCopy(t *testing.T) {
	r := Default()
	entries := r.For(models.EntityKindPerson)
	entries[0].Table = "mutated"
	assert.NotEqual(t, "mutated", r.For(models.EntityKindPerson)[0].Table)
}

func TestEntryValidate(t *testing.T) {
	tests := []struct {
		name    string
		entry   Entry
		wantErr bool
	}{
		{"SimpleOK", Entry{Name: "tasks", Type: TransferSimple, Table: "tasks", Column: "person_id"}, false},
		{"MissingName", Entry{Type: TransferSimple, Table: "tasks", Column: "person_id"}, true},
		{"UnknownType", Entry{Name: "x", Type: "weird", Table: "tasks", Column: "person_id"}, true},
		{"UnsafeTable", Entry{Name: "x", Type: TransferSimple, Table: "tasks;drop", Column: "person_id"}, true},
		{"PolymorphicNeedsTypeColumn", Entry{Name: "notes", Type: TransferPolymorphic, Table: "notes", Column: "entity_id", TypeValue: "person"}, true},
		{"PolymorphicNeedsTypeValue", Entry{Name: "notes", Type: TransferPolymorphic, Table: "notes", Column: "entity_id", TypeColumn: "entity_type"}, true},
		{"ConflictNeedsOtherColumn", Entry{Name: "deals", Type: TransferConflictProne, Table: "deal_contacts", Column: "person_id"}, true},
		{"ConflictOK", Entry{Name: "deals", Type: TransferConflictProne, Table: "deal_contacts", Column: "person_id", OtherColumn: "deal_id"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	r := NewRegistry()
	e := Entry{Name: "tasks", Type: TransferSimple, Table: "tasks", Column: "person_id"}
	require.NoError(t, r.Register(models.EntityKindPerson, e))
	assert.Error(t, r.Register(models.EntityKindPerson, e))
	assert.NoError(t, r.Register(models.EntityKindOrganization, e))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	content := `
person:
  - name: event_attendees
    type: conflict_prone
    table: event_attendees
    column: person_id
    other_column: event_id
organization:
  - name: invoices
    type: simple
    table: invoices
    column: organization_id
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	r := Default()
	before := len(r.For(models.EntityKindPerson))
	require.NoError(t, r.LoadFile(path))

	person := r.For(models.EntityKindPerson)
	require.Len(t, person, before+1)
	last := person[len(person)-1]
	assert.Equal(t, "event_attendees", last.Name)
	assert.Equal(t, "event_id", last.OtherColumn)
	assert.Equal(t, "id", last.Key())

	assert.Error(t, NewRegistry().Parse([]byte("deal:\n  - name: x\n    type: simple\n    table: x\n    column: y\n")))
	assert.Error(t, NewRegistry().LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))
}
