package devapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// Now returns the current UTC timestamp.
func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// ClaimsContextKey is where BearerMiddleware stores validated claims.
const ClaimsContextKey = "auth_claims"

// Sentinel errors exposed by the validator.
var (
	ErrMissingSigningKey = errors.New("devapi.validator.missing_signing_key")
	ErrMissingIssuer     = errors.New("devapi.validator.missing_issuer")
	ErrMissingToken      = errors.New("devapi.validator.missing_token")
	ErrInvalidToken      = errors.New("devapi.validator.invalid_token")
	ErrInvalidIssuer     = errors.New("devapi.validator.invalid_issuer")
	ErrTokenExpired      = errors.New("devapi.validator.expired")
	ErrWrongTokenType    = errors.New("devapi.validator.wrong_token_type")
)

// Validator validates bearer tokens minted by MintToken.
type Validator struct {
	signingKey []byte
	issuer     string
	clock      Clock
}

// NewValidator constructs a Validator after checking the configuration.
func NewValidator(signingKey []byte, issuer string, clock Clock) (*Validator, error) {
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("devapi.validator.new: %w", ErrMissingSigningKey)
	}
	if strings.TrimSpace(issuer) == "" {
		return nil, fmt.Errorf("devapi.validator.new: %w", ErrMissingIssuer)
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &Validator{signingKey: signingKey, issuer: issuer, clock: clock}, nil
}

// ValidateToken parses tokenString and checks its signature, issuer, expiry, and type.
func (validator *Validator) ValidateToken(tokenString string, expectedType string) (*JwtCustomClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("devapi.validator.validate_token: %w", ErrMissingToken)
	}
	parsedToken, parseErr := jwt.ParseWithClaims(tokenString, &JwtCustomClaims{}, func(parsed *jwt.Token) (interface{}, error) {
		return validator.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(func() time.Time {
		return validator.clock.Now()
	}))
	if parseErr != nil {
		if errors.Is(parseErr, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("devapi.validator.validate_token: %w", ErrTokenExpired)
		}
		return nil, fmt.Errorf("devapi.validator.validate_token: %w", ErrInvalidToken)
	}
	claims, ok := parsedToken.Claims.(*JwtCustomClaims)
	if !ok || !parsedToken.Valid {
		return nil, fmt.Errorf("devapi.validator.validate_token: %w", ErrInvalidToken)
	}
	if claims.Issuer != validator.issuer {
		return nil, fmt.Errorf("devapi.validator.validate_token: %w", ErrInvalidIssuer)
	}
	if claims.TokenType != expectedType {
		return nil, fmt.Errorf("devapi.validator.validate_token: %w", ErrWrongTokenType)
	}
	return claims, nil
}

// ValidateRequest reads the bearer credential from the Authorization header.
func (validator *Validator) ValidateRequest(request *http.Request) (*JwtCustomClaims, error) {
	if request == nil {
		return nil, fmt.Errorf("devapi.validator.validate_request: %w", ErrMissingToken)
	}
	return validator.ValidateToken(bearerToken(request), TokenTypeAccess)
}

// BearerMiddleware rejects requests without a valid access token and injects the claims.
func (validator *Validator) BearerMiddleware() gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		claims, err := validator.ValidateRequest(contextGin.Request)
		if err != nil {
			abortUnauthorized(contextGin, "Invalid or expired token")
			return
		}
		contextGin.Set(ClaimsContextKey, claims)
		contextGin.Next()
	}
}

func bearerToken(request *http.Request) string {
	header := strings.TrimSpace(request.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func abortUnauthorized(contextGin *gin.Context, detail string) {
	contextGin.Header("WWW-Authenticate", "Bearer")
	contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": detail})
}
