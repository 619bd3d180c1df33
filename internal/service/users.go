package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/nebari-dev/docshelf/internal/apperr"
	"github.com/nebari-dev/docshelf/internal/audit"
	"github.com/nebari-dev/docshelf/internal/auth"
	"github.com/nebari-dev/docshelf/internal/models"
	"github.com/nebari-dev/docshelf/internal/store"
)

// UserService is the administrative user resource.
type UserService struct {
	users  store.UserStore
	docs   store.DocumentStore
	hasher auth.PasswordHasher
	audit  *audit.Logger
}

// NewUserService creates a UserService. docs is consulted on delete so that no
// document is left without an owner. auditLog may be nil.
func NewUserService(users store.UserStore, docs store.DocumentStore, hasher auth.PasswordHasher, auditLog *audit.Logger) *UserService {
	return &UserService{users: users, docs: docs, hasher: hasher, audit: auditLog}
}

// List returns every user.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperr.Internal("list users", err)
	}
	return users, nil
}

// Get returns a single user.
func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "user not found")
	}
	return user, nil
}

// Create adds a user with an explicit role. An empty role means viewer.
func (s *UserService) Create(ctx context.Context, actorID uint, in CreateUserInput) (*models.User, error) {
	role, err := models.ParseRole(in.Role)
	if err != nil {
		return nil, apperr.InvalidInput(err.Error())
	}

	user, err := createIdentity(ctx, s.users, s.hasher, in.Email, in.Username, in.Password, role, "failed to create user")
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actorRef(actorID), audit.ActionCreateUser, userResource(user.ID), map[string]interface{}{
		"username": user.Username,
		"role":     user.Role,
	})
	return user, nil
}

// Update applies the non-nil fields of in to the user. Email and username
// must stay unique among the other users.
func (s *UserService) Update(ctx context.Context, actorID, id uint, in UpdateUserInput) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "user not found")
	}

	changed := []string{}

	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if email == "" {
			return nil, apperr.InvalidInput("email must not be empty")
		}
		if email != user.Email {
			if err := s.ensureUnused(ctx, id, s.users.FindByEmail, email, "email is already in use by another user"); err != nil {
				return nil, err
			}
			user.Email = email
			changed = append(changed, "email")
		}
	}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username == "" {
			return nil, apperr.InvalidInput("username must not be empty")
		}
		if username != user.Username {
			if err := s.ensureUnused(ctx, id, s.users.FindByUsername, username, "username is already in use by another user"); err != nil {
				return nil, err
			}
			user.Username = username
			changed = append(changed, "username")
		}
	}

	if in.Password != nil {
		if *in.Password == "" {
			return nil, apperr.InvalidInput("password must not be empty")
		}
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			slog.Error("Failed to hash password", "user_id", id, "error", err)
			return nil, apperr.Wrap(apperr.KindInvalidInput, "failed to update user", err)
		}
		user.PasswordHash = hash
		changed = append(changed, "password")
	}

	if in.Role != nil {
		role, err := models.ParseRole(*in.Role)
		if err != nil || *in.Role == "" {
			return nil, apperr.InvalidInput("invalid role: " + *in.Role)
		}
		if role != user.Role {
			user.Role = role
			changed = append(changed, "role")
		}
	}

	if err := s.users.Save(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Wrap(apperr.KindConflict, "email or username already exists", err)
		}
		slog.Error("Failed to update user", "user_id", id, "error", err)
		return nil, apperr.Wrap(apperr.KindInvalidInput, "failed to update user", err)
	}

	s.audit.Record(ctx, actorRef(actorID), audit.ActionUpdateUser, userResource(id), map[string]interface{}{
		"fields": changed,
	})
	return user, nil
}

// Delete removes a user. Users that still own documents cannot be deleted.
func (s *UserService) Delete(ctx context.Context, actorID, id uint) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return fromStore(err, "user not found")
	}

	owned, err := s.docs.CountByOwner(ctx, id)
	if err != nil {
		return apperr.Internal("count owned documents", err)
	}
	if owned > 0 {
		return apperr.Conflict("user still owns documents")
	}

	if err := s.users.Delete(ctx, user); err != nil {
		if errors.Is(err, store.ErrReferenced) {
			return apperr.Conflict("user still owns documents")
		}
		return fromStore(err, "user not found")
	}

	s.audit.Record(ctx, actorRef(actorID), audit.ActionDeleteUser, userResource(id), map[string]interface{}{
		"username": user.Username,
	})
	return nil
}

// ensureUnused fails with Conflict when value already belongs to a user other than id.
func (s *UserService) ensureUnused(ctx context.Context, id uint, find func(context.Context, string) (*models.User, error), value, conflictMsg string) error {
	existing, err := find(ctx, value)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return apperr.Internal("check uniqueness", err)
	case existing.ID != id:
		return apperr.Conflict(conflictMsg)
	default:
		return nil
	}
}

// createIdentity is shared by registration and administrative creation.
// failureMsg is surfaced for unexpected storage or hashing failures.
func createIdentity(ctx context.Context, users store.UserStore, hasher auth.PasswordHasher, email, username, password string, role models.Role, failureMsg string) (*models.User, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	if email == "" || username == "" || password == "" {
		return nil, apperr.InvalidInput("email, username and password are required")
	}

	existing, err := users.FindByEmailOrUsername(ctx, email, username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Error("Failed to look up user", "email", email, "username", username, "error", err)
		return nil, apperr.Wrap(apperr.KindInvalidInput, failureMsg, err)
	}
	if existing != nil {
		return nil, apperr.Conflict("email or username already exists")
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		slog.Error("Failed to hash password", "username", username, "error", err)
		return nil, apperr.Wrap(apperr.KindInvalidInput, failureMsg, err)
	}

	user := &models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	}
	if err := users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Wrap(apperr.KindConflict, "email or username already exists", err)
		}
		slog.Error("Failed to create user", "username", username, "error", err)
		return nil, apperr.Wrap(apperr.KindInvalidInput, failureMsg, err)
	}
	return user, nil
}

// actorRef converts an actor id for the audit log. Zero is the system actor,
// used by command line tooling.
func actorRef(id uint) *uint {
	if id == 0 {
		return nil
	}
	return audit.Actor(id)
}
