package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/nebari-dev/docshelf/internal/apperr"
	"github.com/nebari-dev/docshelf/internal/metrics"
	"github.com/nebari-dev/docshelf/internal/models"
	"github.com/nebari-dev/docshelf/internal/rbac"
)

// RequireRoles applies the role gate to the matched route. It must run after
// Authenticate; a request without claims is treated as anonymous.
func RequireRoles(gate *rbac.Gate, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := rbac.RouteKey(c.Request.Method, c.FullPath())

		var role *models.Role
		if claims, ok := ClaimsFrom(c); ok {
			role = &claims.Role
		}

		if err := gate.Allow(route, role); err != nil {
			kind := apperr.KindOf(err)
			if kind == apperr.KindForbidden {
				slog.Warn("Route access denied", "route", route, "role", *role)
				m.AccessDenied("role")
			}
			c.AbortWithStatusJSON(kind.HTTPStatus(), gin.H{"error": apperr.PublicMessage(err)})
			return
		}

		c.Next()
	}
}
