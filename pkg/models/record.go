package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/Ramsey-B/clover/pkg/database"
)

// EntityKind identifies a mergeable record collection.
type EntityKind string

const (
	EntityKindPerson       EntityKind = "person"
	EntityKindOrganization EntityKind = "organization"
)

// EntityKinds lists every mergeable kind.
var EntityKinds = []EntityKind{EntityKindPerson, EntityKindOrganization}

// Table is the table holding records of the kind.
func (k EntityKind) Table() string {
	if k == EntityKindOrganization {
		return "organizations"
	}
	return "persons"
}

func ParseEntityKind(s string) (EntityKind, error) {
	switch EntityKind(strings.ToLower(strings.TrimSpace(s))) {
	case EntityKindPerson, "persons", "people":
		return EntityKindPerson, nil
	case EntityKindOrganization, "organizations", "org", "orgs":
		return EntityKindOrganization, nil
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// AttributeSet is the pair of fields compared for similarity.
// For persons Name is the full name and Identifier the email;
// for organizations Name is the organization name and Identifier the domain.
type AttributeSet struct {
	Name       *string `json:"name,omitempty"`
	Identifier *string `json:"identifier,omitempty"`
}

// IsEmpty reports whether no field carries a non-blank value.
func (a AttributeSet) IsEmpty() bool {
	return isBlank(a.Name) && isBlank(a.Identifier)
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// RecordMeta holds the columns every mergeable record shares.
type RecordMeta struct {
	ID             string                         `db:"id" json:"id"`
	TenantID       string                         `db:"tenant_id" json:"tenant_id"`
	CustomFields   database.JSONB[map[string]any] `db:"custom_fields" json:"custom_fields"`
	MergedIntoID   *string                        `db:"merged_into_id" json:"merged_into_id,omitempty"`
	MergedAt       *time.Time                     `db:"merged_at" json:"merged_at,omitempty"`
	MergedByUserID *string                        `db:"merged_by_user_id" json:"merged_by_user_id,omitempty"`
	CreatedAt      time.Time                      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time                      `db:"updated_at" json:"updated_at"`
}

// IsMerged reports whether the record has been retired into another record.
func (m *RecordMeta) IsMerged() bool {
	return m.MergedIntoID != nil
}

// SetCustomField stores value in the extension map.
func (m *RecordMeta) SetCustomField(name string, value any) {
	if m.CustomFields.Data == nil {
		m.CustomFields.Data = map[string]any{}
	}
	m.CustomFields.Data[name] = value
}

// Record is implemented by every mergeable entity.
type Record interface {
	Meta() *RecordMeta
	Kind() EntityKind
	Attributes() AttributeSet
	DisplayName() string
	DisplaySecondary() string
}

// Person is a contact record.
type Person struct {
	RecordMeta
	FullName       *string `db:"full_name" json:"full_name,omitempty"`
	Email          *string `db:"email" json:"email,omitempty"`
	Phone          *string `db:"phone" json:"phone,omitempty"`
	JobTitle       *string `db:"job_title" json:"job_title,omitempty"`
	OrganizationID *string `db:"organization_id" json:"organization_id,omitempty"`
	OwnerID        *string `db:"owner_id" json:"owner_id,omitempty"`
}

func (p *Person) Meta() *RecordMeta { return &p.RecordMeta }

func (p *Person) Kind() EntityKind { return EntityKindPerson }

func (p *Person) Attributes() AttributeSet {
	return AttributeSet{Name: p.FullName, Identifier: p.Email}
}

func (p *Person) DisplayName() string { return deref(p.FullName) }

func (p *Person) DisplaySecondary() string { return deref(p.Email) }

// Organization is a company record.
type Organization struct {
	RecordMeta
	Name     *string `db:"name" json:"name,omitempty"`
	Domain   *string `db:"domain" json:"domain,omitempty"`
	Industry *string `db:"industry" json:"industry,omitempty"`
	Phone    *string `db:"phone" json:"phone,omitempty"`
	Address  *string `db:"address" json:"address,omitempty"`
	OwnerID  *string `db:"owner_id" json:"owner_id,omitempty"`
}

func (o *Organization) Meta() *RecordMeta { return &o.RecordMeta }

func (o *Organization) Kind() EntityKind { return EntityKindOrganization }

func (o *Organization) Attributes() AttributeSet {
	return AttributeSet{Name: o.Name, Identifier: o.Domain}
}

func (o *Organization) DisplayName() string { return deref(o.Name) }

func (o *Organization) DisplaySecondary() string { return deref(o.Domain) }

// Candidate is a prefilter row: just enough of a record to score and display it.
type Candidate struct {
	ID               string       `json:"id"`
	Attributes       AttributeSet `json:"attributes"`
	DisplayName      string       `json:"display_name"`
	DisplaySecondary string       `json:"display_secondary"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// CandidateFromRecord snapshots r for scoring.
func CandidateFromRecord(r Record) Candidate {
	meta := r.Meta()
	return Candidate{
		ID:               meta.ID,
		Attributes:       r.Attributes(),
		DisplayName:      r.DisplayName(),
		DisplaySecondary: r.DisplaySecondary(),
		CreatedAt:        meta.CreatedAt,
		UpdatedAt:        meta.UpdatedAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
