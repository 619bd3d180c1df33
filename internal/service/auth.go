package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nebari-dev/docshelf/internal/apperr"
	"github.com/nebari-dev/docshelf/internal/audit"
	"github.com/nebari-dev/docshelf/internal/auth"
	"github.com/nebari-dev/docshelf/internal/metrics"
	"github.com/nebari-dev/docshelf/internal/models"
	"github.com/nebari-dev/docshelf/internal/store"
)

// errInvalidCredentials is shared by both login failure causes so that a
// missing account and a wrong password are indistinguishable.
var errInvalidCredentials = apperr.New(apperr.KindInvalidCredentials, "invalid credentials")

// AuthService registers accounts and exchanges credentials for tokens.
type AuthService struct {
	users   store.UserStore
	hasher  auth.PasswordHasher
	tokens  *auth.TokenManager
	audit   *audit.Logger
	metrics *metrics.Metrics

	// dummyDigest is verified against when the account does not exist, so
	// both login failure paths cost one hash comparison.
	dummyOnce   sync.Once
	dummyDigest string
}

// NewAuthService creates an AuthService. auditLog and m may be nil.
func NewAuthService(users store.UserStore, hasher auth.PasswordHasher, tokens *auth.TokenManager, auditLog *audit.Logger, m *metrics.Metrics) *AuthService {
	return &AuthService{users: users, hasher: hasher, tokens: tokens, audit: auditLog, metrics: m}
}

// Register creates a viewer account. It fails with Conflict when the email or
// the username is already taken, without hashing or writing anything.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	user, err := createIdentity(ctx, s.users, s.hasher, in.Email, in.Username, in.Password, models.DefaultRole, "unable to register user")
	if err != nil {
		s.metrics.AuthEvent("register", apperr.KindOf(err).String())
		return nil, err
	}

	s.metrics.AuthEvent("register", "success")
	s.audit.Record(ctx, audit.Actor(user.ID), audit.ActionRegister, userResource(user.ID), map[string]interface{}{
		"email":    user.Email,
		"username": user.Username,
	})
	slog.Info("User registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Login verifies credentials and returns a signed token carrying the
// account's id, email and role.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Internal("load user", err)
	}

	if user == nil {
		s.hasher.Verify(password, s.dummy())
		return nil, s.loginFailed(ctx, email, "unknown email")
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, s.loginFailed(ctx, email, "wrong password")
	}

	token, err := s.tokens.Issue(auth.ClaimsFor(user))
	if err != nil {
		return nil, apperr.Internal("issue token", err)
	}

	s.metrics.AuthEvent("login", "success")
	s.audit.Record(ctx, audit.Actor(user.ID), audit.ActionLogin, userResource(user.ID), nil)
	slog.Info("User logged in successfully", "user_id", user.ID, "username", user.Username)
	return &LoginResult{Token: token}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, email, reason string) error {
	slog.Warn("Login attempt failed", "email", email, "reason", reason)
	s.metrics.AuthEvent("login", "failure")
	s.audit.Record(ctx, nil, audit.ActionLoginFailed, "email:"+email, map[string]string{"reason": reason})
	return errInvalidCredentials
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		digest, err := s.hasher.Hash("docshelf-timing-equalizer")
		if err == nil {
			s.dummyDigest = digest
		}
	})
	return s.dummyDigest
}

func userResource(id uint) string {
	return fmt.Sprintf("user:%d", id)
}
