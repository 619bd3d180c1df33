package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/nebari-dev/docshelf/internal/audit"
	"github.com/nebari-dev/docshelf/internal/auth"
	"github.com/nebari-dev/docshelf/internal/db"
	"github.com/nebari-dev/docshelf/internal/store"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret"

// fixture wires every service against one temp-file SQLite database.
type fixture struct {
	db     *gorm.DB
	users  *store.GormUserStore
	docs   *store.GormDocumentStore
	blobs  *memBlobs
	hasher *countingHasher
	tokens *auth.TokenManager

	auth      *AuthService
	userSvc   *UserService
	documents *DocumentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return openFixture(t, filepath.Join(t.TempDir(), "test.db"))
}

// newEnforcingFixture is newFixture with SQLite foreign keys switched on, as
// db.New does in production.
func newEnforcingFixture(t *testing.T) *fixture {
	t.Helper()
	return openFixture(t, filepath.Join(t.TempDir(), "test.db")+"?_pragma=foreign_keys(1)")
}

func openFixture(t *testing.T, dsn string) *fixture {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	f := &fixture{
		db:     gdb,
		users:  store.NewUserStore(gdb),
		docs:   store.NewDocumentStore(gdb),
		blobs:  newMemBlobs(),
		hasher: &countingHasher{inner: auth.NewBcryptHasher(bcrypt.MinCost)},
		tokens: auth.NewTokenManager(testSecret, auth.DefaultTokenTTL),
	}
	auditLog := audit.New(gdb)
	f.auth = NewAuthService(f.users, f.hasher, f.tokens, auditLog, nil)
	f.userSvc = NewUserService(f.users, f.docs, f.hasher, auditLog)
	f.documents = NewDocumentService(f.docs, f.blobs, auditLog, nil)
	return f
}

func (f *fixture) userCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := f.db.Table("users").Count(&n).Error; err != nil {
		t.Fatalf("count users: %v", err)
	}
	return n
}

// countingHasher records how often Hash was called.
type countingHasher struct {
	inner  auth.PasswordHasher
	mu     sync.Mutex
	hashes int
}

func (h *countingHasher) Hash(plaintext string) (string, error) {
	h.mu.Lock()
	h.hashes++
	h.mu.Unlock()
	return h.inner.Hash(plaintext)
}

func (h *countingHasher) Verify(plaintext, digest string) bool {
	return h.inner.Verify(plaintext, digest)
}

func (h *countingHasher) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hashes
}

// memBlobs is an in-memory blob.Store.
type memBlobs struct {
	mu      sync.Mutex
	next    int
	objects map[string]string
	putErr  error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string]string{}}
}

func (m *memBlobs) Put(_ context.Context, filename string, body io.Reader, _ string) (string, error) {
	if m.putErr != nil {
		return "", m.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	ref := fmt.Sprintf("mem://%d/%s", m.next, filename)
	m.objects[ref] = string(data)
	return ref, nil
}

func (m *memBlobs) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[ref]; !ok {
		return errors.New("no such object")
	}
	delete(m.objects, ref)
	return nil
}

func (m *memBlobs) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func (m *memBlobs) has(ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[ref]
	return ok
}
