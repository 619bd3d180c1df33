package service

import (
	"errors"

	"github.com/nebari-dev/docshelf/internal/apperr"
	"github.com/nebari-dev/docshelf/internal/store"
)

// fromStore classifies a store error. Misses become NotFound with the given
// message and unique violations become Conflict; anything else is internal.
func fromStore(err error, notFoundMsg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(notFoundMsg)
	case errors.Is(err, store.ErrDuplicate):
		return apperr.Wrap(apperr.KindConflict, "email or username already exists", err)
	default:
		return apperr.Internal("storage failure", err)
	}
}
