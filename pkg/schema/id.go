package schema

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// NewApplicationID generates a new application ID in format APP-{nanoid(10)}.
func NewApplicationID() (string, error) {
	id, err := gonanoid.New(10)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("APP-%s", id), nil
}

// NewGrantID generates a new grant ID in format GRANT-{nanoid(10)}.
func NewGrantID() (string, error) {
	id, err := gonanoid.New(10)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("GRANT-%s", id), nil
}
