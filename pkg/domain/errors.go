package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced record is absent.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ErrConflict reports a uniqueness violation on a field.
type ErrConflict struct {
	Entity EntityType
	Field  string
	Value  string
}

func (e ErrConflict) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", e.Entity, e.Field, e.Value)
}

// ErrProtected is returned when deleting a system-protected record.
var ErrProtected = errors.New("record is protected")

// ErrInvalidCredentials is returned when authentication fails.
var ErrInvalidCredentials = errors.New("invalid credentials")

// IsNotFound reports whether err wraps an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}
