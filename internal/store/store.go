// Package store is the persistence adapter for users and documents.
//
// Each store is a narrow repository interface with a GORM implementation.
// Services depend on the interfaces only; lookups that miss return
// ErrNotFound, writes rejected by a unique index return ErrDuplicate and
// writes that break a foreign key return ErrReferenced.
package store

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no record matches a lookup.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write violates a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrReferenced is returned when a write violates a foreign key, either
	// by pointing at a missing row or by deleting a row still referenced.
	ErrReferenced = errors.New("record is referenced")
)

// translate maps driver errors onto the store's sentinel errors.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isUniqueViolation(err):
		return errors.Join(ErrDuplicate, err)
	case isForeignKeyViolation(err):
		return errors.Join(ErrReferenced, err)
	default:
		return err
	}
}

// isUniqueViolation recognises unique-index failures. Drivers without a GORM
// error translator are matched on their message.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

func isForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "violates foreign key constraint")
}
