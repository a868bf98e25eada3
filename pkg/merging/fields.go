package merging

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Known fields are assigned through an explicit setter per kind. Anything else
// lands in the record's custom_fields map.
var (
	personSetters = map[string]func(p *models.Person, v *string){
		"full_name":       func(p *models.Person, v *string) { p.FullName = v },
		"email":           func(p *models.Person, v *string) { p.Email = v },
		"phone":           func(p *models.Person, v *string) { p.Phone = v },
		"job_title":       func(p *models.Person, v *string) { p.JobTitle = v },
		"organization_id": func(p *models.Person, v *string) { p.OrganizationID = v },
		"owner_id":        func(p *models.Person, v *string) { p.OwnerID = v },
	}

	organizationSetters = map[string]func(o *models.Organization, v *string){
		"name":     func(o *models.Organization, v *string) { o.Name = v },
		"domain":   func(o *models.Organization, v *string) { o.Domain = v },
		"industry": func(o *models.Organization, v *string) { o.Industry = v },
		"phone":    func(o *models.Organization, v *string) { o.Phone = v },
		"address":  func(o *models.Organization, v *string) { o.Address = v },
		"owner_id": func(o *models.Organization, v *string) { o.OwnerID = v },
	}

	// reserved fields belong to the merge itself and are never selectable.
	reserved = map[string]bool{
		"id":                true,
		"tenant_id":         true,
		"custom_fields":     true,
		"merged_into_id":    true,
		"merged_at":         true,
		"merged_by_user_id": true,
		"created_at":        true,
		"updated_at":        true,
	}
)

// KnownFields lists the directly assignable fields of kind, sorted.
func KnownFields(kind models.EntityKind) []string {
	var fields []string
	switch kind {
	case models.EntityKindPerson:
		for f := range personSetters {
			fields = append(fields, f)
		}
	case models.EntityKindOrganization:
		for f := range organizationSetters {
			fields = append(fields, f)
		}
	}
	sort.Strings(fields)
	return fields
}

// ApplySelections assigns every selected value onto record in memory.
func ApplySelections(record models.Record, selections map[string]any) error {
	names := make([]string, 0, len(selections))
	for name := range selections {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if reserved[name] {
			return newError(KindInvalidRequest, "field %s cannot be selected", name)
		}
		value := selections[name]

		known, err := applyKnown(record, name, value)
		if err != nil {
			return err
		}
		if !known {
			record.Meta().SetCustomField(name, value)
		}
	}
	return nil
}

func applyKnown(record models.Record, name string, value any) (bool, error) {
	switch r := record.(type) {
	case *models.Person:
		set, ok := personSetters[name]
		if !ok {
			return false, nil
		}
		v, err := scalar(name, value)
		if err != nil {
			return true, err
		}
		set(r, v)
		return true, nil
	case *models.Organization:
		set, ok := organizationSetters[name]
		if !ok {
			return false, nil
		}
		v, err := scalar(name, value)
		if err != nil {
			return true, err
		}
		set(r, v)
		return true, nil
	}
	return false, fmt.Errorf("unsupported record type %T", record)
}

// scalar converts a selected value for a text column. nil clears the column.
func scalar(name string, value any) (*string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return &v, nil
	case *string:
		return v, nil
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return &s, nil
	case int:
		s := strconv.Itoa(v)
		return &s, nil
	case int64:
		s := strconv.FormatInt(v, 10)
		return &s, nil
	case bool:
		s := strconv.FormatBool(v)
		return &s, nil
	}
	return nil, newError(KindInvalidRequest, "field %s expects a text value, got %T", name, value)
}
