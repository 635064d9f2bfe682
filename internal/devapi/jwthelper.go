package devapi

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the claims.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// JwtCustomClaims are embedded in access and refresh tokens.
type JwtCustomClaims struct {
	UserID    string `json:"user_id"`
	UserEmail string `json:"email"`
	UserRole  string `json:"tipo_usuario"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// MintToken creates a signed HS256 token of the given type.
func MintToken(profile UserProfile, tokenType string, issuer string, signingKey []byte, issuedAt time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := issuedAt.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, JwtCustomClaims{
		UserID:    profile.ID,
		UserEmail: profile.Email,
		UserRole:  profile.TipoUsuario,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   profile.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(signingKey)
	return signed, expiresAt, err
}
