package manifest

import "github.com/Ramsey-B/clover/pkg/models"

func polymorphic(name, table string, kind models.EntityKind) Entry {
	return Entry{
		Name:       name,
		Type:       TransferPolymorphic,
		Table:      table,
		Column:     "entity_id",
		TypeColumn: "entity_type",
		TypeValue:  string(kind),
	}
}

// Default returns the references held by the built-in schema (db/pg).
func Default() *Registry {
	r := NewRegistry()

	r.MustRegister(models.EntityKindPerson,
		Entry{Name: "deals", Type: TransferConflictProne, Table: "deal_contacts", Column: "person_id", OtherColumn: "deal_id"},
		Entry{Name: "campaigns", Type: TransferConflictProne, Table: "campaign_members", Column: "person_id", OtherColumn: "campaign_id"},
		Entry{Name: "tasks", Type: TransferSimple, Table: "tasks", Column: "person_id"},
		Entry{Name: "email_messages", Type: TransferSimple, Table: "email_messages", Column: "person_id"},
		polymorphic("notes", "notes", models.EntityKindPerson),
		polymorphic("attachments", "attachments", models.EntityKindPerson),
		polymorphic("feed_items", "feed_items", models.EntityKindPerson),
		polymorphic("notifications", "notifications", models.EntityKindPerson),
	)

	r.MustRegister(models.EntityKindOrganization,
		Entry{Name: "contacts", Type: TransferSimple, Table: "persons", Column: "organization_id"},
		Entry{Name: "deals", Type: TransferSimple, Table: "deals", Column: "organization_id"},
		Entry{Name: "tags", Type: TransferConflictProne, Table: "organization_tags", Column: "organization_id", OtherColumn: "tag_id"},
		polymorphic("notes", "notes", models.EntityKindOrganization),
		polymorphic("attachments", "attachments", models.EntityKindOrganization),
		polymorphic("feed_items", "feed_items", models.EntityKindOrganization),
		polymorphic("notifications", "notifications", models.EntityKindOrganization),
	)

	return r
}
