package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Ramsey-B/clover/pkg/models"
)

// File is the YAML layout of a manifest extension:
//
//	person:
//	  - name: event_attendees
//	    type: conflict_prone
//	    table: event_attendees
//	    column: person_id
//	    other_column: event_id
type File map[string][]Entry

// Parse registers the entries found in data.
func (r *Registry) Parse(data []byte) error {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse manifest: %w", err)
	}

	for rawKind, entries := range file {
		kind, err := models.ParseEntityKind(rawKind)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := r.Register(kind, entry); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadFile extends the registry with the entries in the YAML file at path.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	return r.Parse(data)
}
