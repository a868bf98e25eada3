package memstore

import (
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/manifest"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/store"
)

// row is one referencing row, keyed by column name.
type row map[string]string

type state struct {
	persons       map[string]*models.Person
	organizations map[string]*models.Organization
	tables        map[string][]row
	audits        []models.MergeAuditLog
}

func newState() *state {
	return &state{
		persons:       map[string]*models.Person{},
		organizations: map[string]*models.Organization{},
		tables:        map[string][]row{},
	}
}

func (s *state) clone() *state {
	out := newState()
	for id, p := range s.persons {
		out.persons[id] = clonePerson(p)
	}
	for id, o := range s.organizations {
		out.organizations[id] = cloneOrganization(o)
	}
	for table, rows := range s.tables {
		copied := make([]row, len(rows))
		for i, r := range rows {
			copied[i] = maps.Clone(r)
		}
		out.tables[table] = copied
	}
	out.audits = append(out.audits, s.audits...)
	return out
}

func cloneFields(f database.JSONB[map[string]any]) database.JSONB[map[string]any] {
	if f.Data == nil {
		return f
	}
	return database.NewJSONB(maps.Clone(f.Data))
}

func clonePerson(p *models.Person) *models.Person {
	cp := *p
	cp.CustomFields = cloneFields(p.CustomFields)
	return &cp
}

func cloneOrganization(o *models.Organization) *models.Organization {
	cp := *o
	cp.CustomFields = cloneFields(o.CustomFields)
	return &cp
}

func cloneRecord(r models.Record) models.Record {
	switch v := r.(type) {
	case *models.Person:
		return clonePerson(v)
	case *models.Organization:
		return cloneOrganization(v)
	}
	return r
}

func (s *state) findRecord(id string) models.Record {
	if p, ok := s.persons[id]; ok {
		return clonePerson(p)
	}
	if o, ok := s.organizations[id]; ok {
		return cloneOrganization(o)
	}
	return nil
}

func (s *state) putRecord(r models.Record) error {
	switch v := r.(type) {
	case *models.Person:
		s.persons[v.ID] = clonePerson(v)
	case *models.Organization:
		s.organizations[v.ID] = cloneOrganization(v)
	default:
		return fmt.Errorf("unsupported record type %T", r)
	}
	return nil
}

func (s *state) records(kind models.EntityKind) []models.Record {
	var out []models.Record
	switch kind {
	case models.EntityKindPerson:
		for _, p := range s.persons {
			out = append(out, p)
		}
	case models.EntityKindOrganization:
		for _, o := range s.organizations {
			out = append(out, o)
		}
	}
	return out
}

func (s *state) listLive(tenantID string, kind models.EntityKind, limit int) []models.Record {
	var live []models.Record
	for _, r := range s.records(kind) {
		meta := r.Meta()
		if meta.TenantID == tenantID && !meta.IsMerged() {
			live = append(live, r)
		}
	}

	sort.Slice(live, func(i, j int) bool {
		a, b := live[i].Meta(), live[j].Meta()
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	if limit > 0 && len(live) > limit {
		live = live[:limit]
	}
	for i, r := range live {
		live[i] = cloneRecord(r)
	}
	return live
}

// findCandidates applies the same trigram predicate the Postgres store runs through pg_trgm.
func (s *state) findCandidates(q store.CandidateQuery) []models.Candidate {
	if q.Name == "" && q.Identifier == "" {
		return nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = store.DefaultMaxCandidates
	}

	var out []models.Candidate
	for _, r := range s.listLive(q.TenantID, q.Kind, 0) {
		if r.Meta().ID == q.ExcludeID {
			continue
		}
		attrs := r.Attributes()
		if similar(q.Name, attrs.Name, q.MinSimilarity) || similar(q.Identifier, attrs.Identifier, q.MinSimilarity) {
			out = append(out, models.CandidateFromRecord(r))
		}
		if len(out) == limit {
			break
		}
	}
	return out
}

func similar(query string, value *string, threshold float64) bool {
	if query == "" || value == nil {
		return false
	}
	return matching.TrigramSimilarity(strings.ToLower(*value), query) >= threshold
}

// rows returns the referencing rows of table. The persons table is backed by
// the person records so organization merges can move contacts.
func (s *state) rows(table string) []row {
	if table != "persons" {
		return s.tables[table]
	}

	out := make([]row, 0, len(s.persons))
	for _, p := range s.persons {
		r := row{"id": p.ID, "tenant_id": p.TenantID}
		if p.OrganizationID != nil {
			r["organization_id"] = *p.OrganizationID
		}
		out = append(out, r)
	}
	return out
}

func (s *state) setColumn(table, keyColumn, key, column, value string) error {
	if table == "persons" {
		p, ok := s.persons[key]
		if !ok || keyColumn != "id" {
			return fmt.Errorf("persons row %s not found", key)
		}
		if column != "organization_id" {
			return fmt.Errorf("persons column %s is not a reference", column)
		}
		p.OrganizationID = models.StringPtr(value)
		return nil
	}

	for _, r := range s.tables[table] {
		if r[keyColumn] == key {
			r[column] = value
			return nil
		}
	}
	return fmt.Errorf("%s row %s not found", table, key)
}

func (s *state) deleteRow(table, keyColumn, key string) error {
	if table == "persons" {
		return fmt.Errorf("persons rows cannot be deleted through a reference")
	}

	rows := s.tables[table]
	for i, r := range rows {
		if r[keyColumn] == key {
			s.tables[table] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%s row %s not found", table, key)
}

func matchesEntry(r row, tenantID string, entry manifest.Entry, ownerID string) bool {
	if r[entry.Tenant()] != tenantID || r[entry.Column] != ownerID {
		return false
	}
	if entry.Type == manifest.TransferPolymorphic && r[entry.TypeColumn] != entry.TypeValue {
		return false
	}
	return true
}

func (s *state) listReferences(tenantID string, entry manifest.Entry, ownerID string) []models.Reference {
	var refs []models.Reference
	for _, r := range s.rows(entry.Table) {
		if !matchesEntry(r, tenantID, entry, ownerID) {
			continue
		}
		ref := models.Reference{ID: r[entry.Key()], OwnerID: ownerID}
		if entry.Type == manifest.TransferConflictProne {
			ref.OtherID = r[entry.OtherColumn]
		}
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs
}

// violatesUnique reports whether moving ref to toID would duplicate an
// (other, owner) pair already present in a conflict-prone table.
func (s *state) violatesUnique(tenantID string, entry manifest.Entry, ref row, toID string) bool {
	if entry.Type != manifest.TransferConflictProne {
		return false
	}
	for _, r := range s.rows(entry.Table) {
		if r[entry.Tenant()] == tenantID && r[entry.Column] == toID && r[entry.OtherColumn] == ref[entry.OtherColumn] {
			return true
		}
	}
	return false
}

func (s *state) findRow(table, keyColumn, key string) row {
	for _, r := range s.rows(table) {
		if r[keyColumn] == key {
			return r
		}
	}
	return nil
}

func (s *state) listAudits(tenantID, recordID string) []models.MergeAuditLog {
	var out []models.MergeAuditLog
	for _, a := range s.audits {
		if a.TenantID == tenantID && (a.SurvivorID == recordID || a.LoserID == recordID) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PerformedAt.Equal(out[j].PerformedAt) {
			return out[i].PerformedAt.After(out[j].PerformedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *state) getAudit(tenantID, id string) *models.MergeAuditLog {
	for _, a := range s.audits {
		if a.TenantID == tenantID && a.ID == id {
			audit := a
			return &audit
		}
	}
	return nil
}
