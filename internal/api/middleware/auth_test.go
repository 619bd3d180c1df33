package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/nebari-dev/docshelf/internal/auth"
	"github.com/nebari-dev/docshelf/internal/models"
	"github.com/nebari-dev/docshelf/internal/rbac"
	"github.com/nebari-dev/docshelf/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer  abc ", "abc", true},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Token abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("bearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

// newUsers returns a user store holding a viewer (id 1) and an admin (id 2).
func newUsers(t *testing.T) *store.GormUserStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "mw.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	users := store.NewUserStore(db)
	for _, u := range []*models.User{
		{Email: "v@x.com", Username: "v", PasswordHash: "x", Role: models.RoleViewer},
		{Email: "a@x.com", Username: "a", PasswordHash: "x", Role: models.RoleAdmin},
	} {
		if err := users.Create(context.Background(), u); err != nil {
			t.Fatalf("Create user: %v", err)
		}
	}
	return users
}

func newEngine(t *testing.T, tokens *auth.TokenManager, users store.UserStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gate, err := rbac.NewGate(rbac.RouteTable{
		"GET /admin": {models.RoleAdmin},
	}, nil)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}

	r := gin.New()
	r.Use(Authenticate(tokens, users), RequireRoles(gate, nil))
	r.GET("/admin", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/open", func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		if user, ok := UserFrom(c); !ok || user.ID != claims.UserID {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, claims.Email)
	})
	return r
}

func TestAuthenticateAndRequireRoles(t *testing.T) {
	tokens := auth.NewTokenManager("secret", time.Hour)
	r := newEngine(t, tokens, newUsers(t))

	viewer, err := tokens.Issue(auth.Claims{UserID: 1, Email: "v@x.com", Role: models.RoleViewer})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	admin, err := tokens.Issue(auth.Claims{UserID: 2, Email: "a@x.com", Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	// Signed as admin, stored as viewer.
	staleAdmin, err := tokens.Issue(auth.Claims{UserID: 1, Email: "v@x.com", Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	gone, err := tokens.Issue(auth.Claims{UserID: 99, Email: "gone@x.com", Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	foreign, err := auth.NewTokenManager("other", time.Hour).Issue(auth.Claims{UserID: 2, Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"no token", "/open", "", http.StatusUnauthorized},
		{"foreign signature", "/admin", foreign, http.StatusUnauthorized},
		{"unrestricted route", "/open", viewer, http.StatusOK},
		{"viewer on admin route", "/admin", viewer, http.StatusForbidden},
		{"admin on admin route", "/admin", admin, http.StatusOK},
		{"stored role overrides signed role", "/admin", staleAdmin, http.StatusForbidden},
		{"unknown user", "/open", gone, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("expected status %d, got %d (%s)", tt.want, w.Code, w.Body.String())
			}
		})
	}
}
