package api

import (
	"net/http"

	"github.com/nebari-dev/docshelf/internal/models"
	"github.com/nebari-dev/docshelf/internal/rbac"
)

var (
	adminOnly        = []models.Role{models.RoleAdmin}
	adminOrEditor    = []models.Role{models.RoleAdmin, models.RoleEditor}
	anyAuthenticated = []models.Role{models.RoleAdmin, models.RoleEditor, models.RoleViewer}
)

// Routes is the required-role table consulted by the role gate. Routes not
// listed here carry no role restriction.
func Routes() rbac.RouteTable {
	return rbac.RouteTable{
		rbac.RouteKey(http.MethodGet, "/auth/me"): anyAuthenticated,

		rbac.RouteKey(http.MethodGet, "/users"):        adminOnly,
		rbac.RouteKey(http.MethodGet, "/users/:id"):    adminOnly,
		rbac.RouteKey(http.MethodPost, "/users"):       adminOnly,
		rbac.RouteKey(http.MethodPatch, "/users/:id"):  adminOnly,
		rbac.RouteKey(http.MethodDelete, "/users/:id"): adminOnly,

		rbac.RouteKey(http.MethodPost, "/documents"):       adminOrEditor,
		rbac.RouteKey(http.MethodGet, "/documents"):        adminOnly,
		rbac.RouteKey(http.MethodGet, "/documents/:id"):    anyAuthenticated,
		rbac.RouteKey(http.MethodPut, "/documents/:id"):    anyAuthenticated,
		rbac.RouteKey(http.MethodDelete, "/documents/:id"): anyAuthenticated,
	}
}
