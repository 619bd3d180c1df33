package rbac

import (
	"github.com/nebari-dev/docshelf/internal/apperr"
	"github.com/nebari-dev/docshelf/internal/models"
)

// CanAccess reports whether an actor may read, update or delete a resource
// owned by ownerID. Administrators may act on every resource.
func CanAccess(actorID uint, actorRole models.Role, ownerID uint) bool {
	return actorRole == models.RoleAdmin || ownerID == actorID
}

// CheckOwnership is CanAccess as an error: Forbidden when access is denied.
// It must only be called after the resource was found, so that a missing
// resource is reported as NotFound rather than Forbidden.
func CheckOwnership(actorID uint, actorRole models.Role, ownerID uint) error {
	if !CanAccess(actorID, actorRole, ownerID) {
		return apperr.Forbidden("you do not have permission to access this document")
	}
	return nil
}
