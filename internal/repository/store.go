// Package repository persists application documents and grant records.
//
// Two backends are provided: FileStore keeps one YAML file per record under a
// data directory, SQLStore keeps rows in SQLite or PostgreSQL through gorm.
// Both satisfy core.Store and core.GrantProvider.
package repository

import (
	"fmt"
	"regexp"

	"github.com/tyloni/oregon-grant-automation/internal/core"
)

var (
	_ core.Store         = (*FileStore)(nil)
	_ core.GrantProvider = (*FileStore)(nil)
	_ core.Store         = (*SQLStore)(nil)
	_ core.GrantProvider = (*SQLStore)(nil)
)

// ErrNotFound is returned (wrapped) for a missing record.
var ErrNotFound = core.ErrNotFound

// validID limits IDs to characters that are safe as file names.
var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

func checkID(resource, id string) error {
	if !validID.MatchString(id) {
		return &core.ValidationError{
			Field:   resource + "_id",
			Message: fmt.Sprintf("invalid identifier %q", id),
			Err:     core.ErrValidation,
		}
	}
	return nil
}

func notFound(resource, id string) error {
	return &core.NotFoundError{Resource: resource, ID: id, Err: ErrNotFound}
}
