package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntityKind(t *testing.T) {
	tests := []struct {
		input   string
		want    EntityKind
		wantErr bool
	}{
		{"person", EntityKindPerson, false},
		{"People", EntityKindPerson, false},
		{" organization ", EntityKindOrganization, false},
		{"orgs", EntityKindOrganization, false},
		{"deal", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseEntityKind(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAttributeSetIsEmpty(t *testing.T) {
	assert.True(t, AttributeSet{}.IsEmpty())
	assert.True(t, AttributeSet{Name: StringPtr("  "), Identifier: StringPtr("")}.IsEmpty())
	assert.False(t, AttributeSet{Identifier: StringPtr("a@b.com")}.IsEmpty())
}

func TestRecordAttributes(t *testing.T) {
	p := &Person{FullName: StringPtr("Jane Doe"), Email: StringPtr("jane@example.com")}
	assert.Equal(t, EntityKindPerson, p.Kind())
	assert.Equal(t, "Jane Doe", *p.Attributes().Name)
	assert.Equal(t, "jane@example.com", p.DisplaySecondary())

	o := &Organization{Name: StringPtr("Acme Inc"), Domain: StringPtr("acme.com")}
	assert.Equal(t, EntityKindOrganization, o.Kind())
	assert.Equal(t, "acme.com", *o.Attributes().Identifier)
	assert.Equal(t, "Acme Inc", o.DisplayName())
}

func TestSetCustomFieldInitializesMap(t *testing.T) {
	var meta RecordMeta
	meta.SetCustomField("tier", "gold")
	assert.Equal(t, "gold", meta.CustomFields.Data["tier"])
	assert.False(t, meta.IsMerged())
}
