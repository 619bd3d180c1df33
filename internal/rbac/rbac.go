// Package rbac holds the two authorization predicates: the route-level role
// gate and the resource-level ownership policy. Both take the acting identity
// as explicit arguments and know nothing about HTTP.
package rbac

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sort"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/nebari-dev/docshelf/internal/apperr"
	"github.com/nebari-dev/docshelf/internal/models"
)

//go:embed model.conf
var modelConf string

// RouteTable maps a route key ("METHOD /path/pattern") to the set of roles
// allowed to call it. A route missing from the table, or mapped to an empty
// set, carries no role restriction.
type RouteTable map[string][]models.Role

// RouteKey builds the table key for a method and a route pattern.
func RouteKey(method, pattern string) string {
	return method + " " + pattern
}

// Allow is the role gate predicate. It passes when required is empty; fails
// with Unauthenticated when there is no actor; otherwise passes iff the
// actor's role is in required, failing with Forbidden.
func Allow(required []models.Role, actor *models.Role) error {
	if len(required) == 0 {
		return nil
	}
	if actor == nil {
		return apperr.Unauthenticated("authentication required")
	}
	for _, r := range required {
		if r == *actor {
			return nil
		}
	}
	return apperr.Forbidden("insufficient role")
}

// Gate evaluates a RouteTable. Role membership is answered by a casbin
// enforcer seeded with one (role, route) policy per table entry.
type Gate struct {
	table    RouteTable
	enforcer *casbin.Enforcer
}

// NewGate builds a gate for table. Unknown roles in the table are rejected.
func NewGate(table RouteTable, logger *slog.Logger) (*Gate, error) {
	m, err := model.NewModelFromString(modelConf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse casbin model: %w", err)
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	var policies [][]string
	for _, route := range sortedRoutes(table) {
		for _, role := range table[route] {
			if !role.Valid() {
				return nil, fmt.Errorf("route %q: invalid role %q", route, role)
			}
			policies = append(policies, []string{string(role), route})
		}
	}
	if len(policies) > 0 {
		if _, err := e.AddPolicies(policies); err != nil {
			return nil, fmt.Errorf("failed to load route policies: %w", err)
		}
	}

	if logger != nil {
		logger.Info("RBAC route gate initialized", "routes", len(table), "policies", len(policies))
	}
	return &Gate{table: table, enforcer: e}, nil
}

// Required returns the roles required by route, or nil when unrestricted.
func (g *Gate) Required(route string) []models.Role {
	return g.table[route]
}

// Allow applies the gate to route for an actor that may be absent.
func (g *Gate) Allow(route string, actor *models.Role) error {
	if len(g.table[route]) == 0 {
		return nil
	}
	if actor == nil {
		return apperr.Unauthenticated("authentication required")
	}
	ok, err := g.enforcer.Enforce(string(*actor), route)
	if err != nil {
		return apperr.Internal("evaluate route policy", err)
	}
	if !ok {
		return apperr.Forbidden("insufficient role")
	}
	return nil
}

func sortedRoutes(table RouteTable) []string {
	routes := make([]string, 0, len(table))
	for route := range table {
		routes = append(routes, route)
	}
	sort.Strings(routes)
	return routes
}
