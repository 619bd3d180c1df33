package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	_ "github.com/nebari-dev/docshelf/docs"
	"github.com/nebari-dev/docshelf/internal/audit"
	"github.com/nebari-dev/docshelf/internal/auth"
	"github.com/nebari-dev/docshelf/internal/blob"
	"github.com/nebari-dev/docshelf/internal/config"
	"github.com/nebari-dev/docshelf/internal/db"
	"github.com/nebari-dev/docshelf/internal/ingestion"
	"github.com/nebari-dev/docshelf/internal/metrics"
	"github.com/nebari-dev/docshelf/internal/models"
	"github.com/nebari-dev/docshelf/internal/rbac"
	"github.com/nebari-dev/docshelf/internal/service"
	"github.com/nebari-dev/docshelf/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	hasher auth.PasswordHasher
}

func newTestServer(t *testing.T, ingestionURL string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(dir, "test.db")+"?_pragma=foreign_keys(1)"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	cfg := &config.Config{
		Server:    config.ServerConfig{Port: 3000, Mode: "development"},
		Auth:      config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour},
		Storage:   config.StorageConfig{Backend: "local", UploadDir: filepath.Join(dir, "uploads"), MaxUploadMB: 1},
		Ingestion: config.IngestionConfig{URL: ingestionURL, Timeout: 5 * time.Second},
		Metrics:   config.MetricsConfig{Enabled: true},
	}

	blobs, err := blob.NewLocalStore(cfg.Storage.UploadDir)
	require.NoError(t, err)
	gate, err := rbac.NewGate(Routes(), nil)
	require.NoError(t, err)

	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	users := store.NewUserStore(gdb)
	docs := store.NewDocumentStore(gdb)
	auditLog := audit.New(gdb)
	m := metrics.New()

	router := NewRouter(Deps{
		Config:    cfg,
		Tokens:    tokens,
		Gate:      gate,
		UserStore: users,
		Auth:      service.NewAuthService(users, hasher, tokens, auditLog, m),
		Users:     service.NewUserService(users, docs, hasher, auditLog),
		Documents: service.NewDocumentService(docs, blobs, auditLog, m),
		Ingestion: ingestion.NewClient(cfg.Ingestion.URL, cfg.Ingestion.Timeout),
		Metrics:   m,
	})
	return &testServer{router: router, db: gdb, hasher: hasher}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) multipart(t *testing.T, method, path, token string, fields map[string]string, file string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != "" {
		fw, err := mw.CreateFormFile("file", "notes.txt")
		require.NoError(t, err)
		_, err = fw.Write([]byte(file))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// seedUser inserts a user directly and returns a token for it.
func (s *testServer) seedUser(t *testing.T, username string, role models.Role) (models.User, string) {
	t.Helper()
	hash, err := s.hasher.Hash("pw-" + username)
	require.NoError(t, err)
	user := models.User{Email: username + "@x.com", Username: username, PasswordHash: hash, Role: role}
	require.NoError(t, s.db.Create(&user).Error)

	w := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": user.Email, "password": "pw-" + username})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return user, res.Token
}

func (s *testServer) raw(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t, "http://unused")

	w := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{"email": "a@x.com", "username": "a", "password": "pw1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	user := decode[map[string]interface{}](t, w)
	assert.Equal(t, "viewer", user["role"])
	assert.NotContains(t, user, "password_hash")

	w = s.do(t, http.MethodPost, "/auth/register", "", map[string]string{"email": "a@x.com", "username": "b", "password": "pw2"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "email or username already exists", decode[map[string]string](t, w)["error"])

	w = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@x.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid credentials", decode[map[string]string](t, w)["error"])

	w = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@x.com", "password": "pw1"})
	require.Equal(t, http.StatusOK, w.Code)
	token := decode[map[string]string](t, w)["token"]
	require.NotEmpty(t, token)

	w = s.do(t, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[map[string]interface{}](t, w)
	assert.Equal(t, "a@x.com", me["email"])
	assert.Equal(t, "viewer", me["role"])
}

func TestRegister_InvalidBody(t *testing.T) {
	s := newTestServer(t, "http://unused")

	tests := []struct {
		name string
		body interface{}
	}{
		{"malformed email", map[string]string{"email": "not-an-email", "username": "a", "password": "pw"}},
		{"missing password", map[string]string{"email": "a@x.com", "username": "a"}},
		{"empty body", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/auth/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "invalid request body", decode[map[string]string](t, w)["error"])
		})
	}
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t, "http://unused")

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/documents/1", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestDeletedUserTokenRejected(t *testing.T) {
	s := newTestServer(t, "http://unused")
	editor, editorToken := s.seedUser(t, "ed", models.RoleEditor)
	_, adminToken := s.seedUser(t, "root", models.RoleAdmin)

	w := s.do(t, http.MethodDelete, fmt.Sprintf("/users/%d", editor.ID), adminToken, nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = s.multipart(t, http.MethodPost, "/documents", editorToken, map[string]string{"title": "t"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "user not found", decode[map[string]string](t, w)["error"])

	w = s.do(t, http.MethodGet, "/auth/me", editorToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var count int64
	require.NoError(t, s.db.Model(&models.Document{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRoleChangeAppliesToIssuedTokens(t *testing.T) {
	s := newTestServer(t, "http://unused")
	demoted, demotedToken := s.seedUser(t, "was-admin", models.RoleAdmin)
	_, rootToken := s.seedUser(t, "root", models.RoleAdmin)

	w := s.do(t, http.MethodGet, "/users", demotedToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPatch, fmt.Sprintf("/users/%d", demoted.ID), rootToken, map[string]string{"role": "viewer"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/users", demotedToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/auth/me", demotedToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "viewer", decode[map[string]interface{}](t, w)["role"])
}

func TestRoleGate(t *testing.T) {
	s := newTestServer(t, "http://unused")
	_, viewer := s.seedUser(t, "viewer", models.RoleViewer)
	_, editor := s.seedUser(t, "editor", models.RoleEditor)
	_, admin := s.seedUser(t, "admin", models.RoleAdmin)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"viewer cannot list users", http.MethodGet, "/users", viewer, http.StatusForbidden},
		{"editor cannot list users", http.MethodGet, "/users", editor, http.StatusForbidden},
		{"admin lists users", http.MethodGet, "/users", admin, http.StatusOK},
		{"editor cannot list documents", http.MethodGet, "/documents", editor, http.StatusForbidden},
		{"admin lists documents", http.MethodGet, "/documents", admin, http.StatusOK},
		{"viewer cannot create documents", http.MethodPost, "/documents", viewer, http.StatusForbidden},
		{"any role reaches document lookup", http.MethodGet, "/documents/999", viewer, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestDocumentOwnership(t *testing.T) {
	s := newTestServer(t, "http://unused")
	owner, ownerToken := s.seedUser(t, "owner", models.RoleEditor)
	_, otherToken := s.seedUser(t, "other", models.RoleViewer)
	_, adminToken := s.seedUser(t, "root", models.RoleAdmin)

	w := s.multipart(t, http.MethodPost, "/documents", ownerToken, map[string]string{"title": "plan", "content": "secret"}, "file body")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	doc := decode[models.Document](t, w)
	assert.Equal(t, owner.ID, doc.UserID)
	assert.NotEmpty(t, doc.FilePath)
	path := fmt.Sprintf("/documents/%d", doc.ID)

	w = s.do(t, http.MethodGet, path, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "you do not have permission to access this document", decode[map[string]string](t, w)["error"])

	w = s.multipart(t, http.MethodPut, path, otherToken, map[string]string{"title": "mine now"}, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodDelete, path, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, path, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "secret", decode[models.Document](t, w).Content)

	w = s.multipart(t, http.MethodPut, path, ownerToken, map[string]string{"content": "revised"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.Document](t, w)
	assert.Equal(t, "plan", updated.Title)
	assert.Equal(t, "revised", updated.Content)
	assert.Equal(t, doc.FilePath, updated.FilePath)

	w = s.do(t, http.MethodDelete, path, ownerToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodDelete, path, ownerToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocument_InvalidID(t *testing.T) {
	s := newTestServer(t, "http://unused")
	_, token := s.seedUser(t, "v", models.RoleViewer)

	w := s.do(t, http.MethodGet, "/documents/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocument_UploadTooLarge(t *testing.T) {
	s := newTestServer(t, "http://unused")
	_, token := s.seedUser(t, "e", models.RoleEditor)

	w := s.multipart(t, http.MethodPost, "/documents", token, map[string]string{"title": "big"}, strings.Repeat("x", 2<<20))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestUserAdministration(t *testing.T) {
	s := newTestServer(t, "http://unused")
	_, admin := s.seedUser(t, "root", models.RoleAdmin)

	w := s.do(t, http.MethodPost, "/users", admin, map[string]string{"email": "e@x.com", "username": "e", "password": "pw", "role": "editor"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.User](t, w)
	assert.Equal(t, models.RoleEditor, created.Role)

	w = s.do(t, http.MethodPost, "/users", admin, map[string]string{"email": "f@x.com", "username": "f", "password": "pw", "role": "owner"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/users", admin, map[string]string{"email": "f@x.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid request body", decode[map[string]string](t, w)["error"])

	path := fmt.Sprintf("/users/%d", created.ID)
	w = s.do(t, http.MethodPatch, path, admin, map[string]string{"username": "root"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPatch, path, admin, map[string]string{"email": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid request body", decode[map[string]string](t, w)["error"])

	w = s.do(t, http.MethodPatch, path, admin, map[string]string{"role": "viewer"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RoleViewer, decode[models.User](t, w).Role)

	w = s.do(t, http.MethodGet, path, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "e", decode[models.User](t, w).Username)

	w = s.do(t, http.MethodDelete, path, admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodGet, path, admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIngestionTrigger(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"started"}`))
	}))
	defer upstream.Close()

	s := newTestServer(t, upstream.URL)
	w := s.do(t, http.MethodPost, "/ingestion/trigger", "", map[string]string{"source": "s3"})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"status":"started"}`, w.Body.String())
}

func TestIngestionTrigger_UpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	s := newTestServer(t, upstream.URL)
	w := s.do(t, http.MethodPost, "/ingestion/trigger", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "failed to trigger ingestion process", decode[map[string]string](t, w)["error"])
}

func TestIngestionTrigger_RejectedBodies(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	s := newTestServer(t, upstream.URL)

	oversized := []byte(`{"data":"` + strings.Repeat("a", 2<<20) + `"}`)
	w := s.raw(t, http.MethodPost, "/ingestion/trigger", oversized)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "request body too large", decode[map[string]string](t, w)["error"])

	w = s.raw(t, http.MethodPost, "/ingestion/trigger", []byte(`{"source": "s3"`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "request body must be valid JSON", decode[map[string]string](t, w)["error"])

	assert.Zero(t, calls.Load(), "rejected bodies must not reach the ingestion service")

	w = s.raw(t, http.MethodPost, "/ingestion/trigger", []byte("  "))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, "http://unused")

	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "docshelf_http_requests_total")
}

func TestAPIDocs(t *testing.T) {
	s := newTestServer(t, "http://unused")

	w := s.do(t, http.MethodGet, "/docs/index.html", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/docs/doc.json", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"/documents/{id}"`)
	assert.Contains(t, w.Body.String(), `"BearerAuth"`)
}

func TestRoutesAreAllRegistered(t *testing.T) {
	s := newTestServer(t, "http://unused")

	registered := map[string]bool{}
	for _, r := range s.router.Routes() {
		registered[rbac.RouteKey(r.Method, r.Path)] = true
	}
	for route := range Routes() {
		assert.True(t, registered[route], "role table names unregistered route %s", route)
	}
}
