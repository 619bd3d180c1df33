package db

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/nebari-dev/docshelf/internal/auth"
	"github.com/nebari-dev/docshelf/internal/models"
	"gorm.io/gorm"
)

// AdminCredentials identifies the bootstrap administrator.
type AdminCredentials struct {
	Email    string
	Username string
	Password string
}

// AdminCredentialsFromEnv reads ADMIN_EMAIL, ADMIN_USERNAME and ADMIN_PASSWORD.
// The email defaults to <username>@docshelf.local.
func AdminCredentialsFromEnv() AdminCredentials {
	creds := AdminCredentials{
		Email:    os.Getenv("ADMIN_EMAIL"),
		Username: os.Getenv("ADMIN_USERNAME"),
		Password: os.Getenv("ADMIN_PASSWORD"),
	}
	if creds.Email == "" && creds.Username != "" {
		creds.Email = fmt.Sprintf("%s@docshelf.local", creds.Username)
	}
	return creds
}

// CreateDefaultAdmin creates an administrator from creds when the users table
// is empty. It is a no-op when credentials are incomplete or users exist.
func CreateDefaultAdmin(db *gorm.DB, hasher auth.PasswordHasher, creds AdminCredentials) error {
	if creds.Username == "" || creds.Password == "" {
		slog.Info("No ADMIN_USERNAME or ADMIN_PASSWORD set, skipping default admin creation")
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		slog.Info("Users already exist, skipping default admin creation")
		return nil
	}

	hash, err := hasher.Hash(creds.Password)
	if err != nil {
		return err
	}

	user := models.User{
		Email:        creds.Email,
		Username:     creds.Username,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	}
	if err := db.Create(&user).Error; err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	slog.Info("Default admin user created", "id", user.ID, "username", user.Username, "email", user.Email)
	return nil
}
