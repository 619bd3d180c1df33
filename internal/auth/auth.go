// Package auth provides the credential primitives: password hashing and the
// issuing and verification of signed bearer tokens.
package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nebari-dev/docshelf/internal/models"
)

// ErrInvalidToken is returned for any token that fails verification:
// bad signature, malformed encoding, unexpected algorithm or expiry.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the signed identity payload carried by a bearer token.
type Claims struct {
	UserID uint        `json:"id"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// ClaimsFor builds the claims minted for user at login.
func ClaimsFor(user *models.User) Claims {
	return Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	}
}
