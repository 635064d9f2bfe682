package devapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies bundles the collaborators of the auth routes.
type Dependencies struct {
	Users   UserStore
	Metrics MetricsRecorder
	Logger  *zap.Logger
	Clock   Clock
}

type nopMetrics struct{}

func (nopMetrics) Increment(Event) {}

// MountAuthRoutes registers /auth/login, /auth/refresh, /auth/me, /auth/verify, and /auth/logout.
func MountAuthRoutes(router gin.IRouter, configuration ServerConfig, dependencies Dependencies) error {
	if dependencies.Users == nil {
		return errors.New("devapi.routes: user store is required")
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := dependencies.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	clock := dependencies.Clock
	if clock == nil {
		clock = systemClock{}
	}
	validator, validatorErr := NewValidator(configuration.SigningKey, configuration.Issuer, clock)
	if validatorErr != nil {
		return validatorErr
	}
	users := dependencies.Users

	issueAccess := func(profile UserProfile) (string, bool) {
		token, _, err := MintToken(profile, TokenTypeAccess, configuration.Issuer, configuration.SigningKey, clock.Now(), configuration.SessionTTL)
		if err != nil {
			logger.Error("access token mint failed", zap.String("code", "auth.mint.access"), zap.Error(err))
			return "", false
		}
		return token, true
	}

	router.POST("/auth/login", func(contextGin *gin.Context) {
		var inbound struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := contextGin.ShouldBindJSON(&inbound); err != nil || strings.TrimSpace(inbound.Email) == "" {
			contextGin.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid_json"})
			return
		}

		profile, authErr := users.Authenticate(contextGin, inbound.Email, inbound.Password)
		if authErr != nil {
			metrics.Increment(EventLoginFailure)
			logger.Warn("login failed",
				zap.String("code", "auth.login.failed"),
				zap.String("email", inbound.Email))
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid email or password"})
			return
		}

		accessToken, ok := issueAccess(profile)
		if !ok {
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		refreshToken, _, refreshErr := MintToken(profile, TokenTypeRefresh, configuration.Issuer, configuration.SigningKey, clock.Now(), configuration.RefreshTTL)
		if refreshErr != nil {
			logger.Error("refresh token mint failed", zap.String("code", "auth.mint.refresh"), zap.Error(refreshErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		metrics.Increment(EventLoginSuccess)
		contextGin.JSON(http.StatusOK, gin.H{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"token_type":    "bearer",
			"expires_in":    int64(configuration.SessionTTL.Seconds()),
			"user":          profile,
		})
	})

	// Refresh accepts either a refresh token in the body or a live access token as bearer.
	router.POST("/auth/refresh", func(contextGin *gin.Context) {
		var inbound struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = contextGin.ShouldBindJSON(&inbound)

		var claims *JwtCustomClaims
		var validateErr error
		if strings.TrimSpace(inbound.RefreshToken) != "" {
			claims, validateErr = validator.ValidateToken(inbound.RefreshToken, TokenTypeRefresh)
		} else {
			claims, validateErr = validator.ValidateRequest(contextGin.Request)
		}
		if validateErr != nil {
			metrics.Increment(EventRefreshFailure)
			abortUnauthorized(contextGin, "Invalid or expired refresh token")
			return
		}
		profile, profileErr := users.GetUserProfile(contextGin, claims.UserID)
		if profileErr != nil {
			metrics.Increment(EventRefreshFailure)
			abortUnauthorized(contextGin, "User not found or inactive")
			return
		}

		accessToken, ok := issueAccess(profile)
		if !ok {
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		metrics.Increment(EventRefreshSuccess)
		contextGin.JSON(http.StatusOK, gin.H{
			"access_token": accessToken,
			"token_type":   "bearer",
			"expires_in":   int64(configuration.SessionTTL.Seconds()),
		})
	})

	protected := router.Group("/auth")
	protected.Use(validator.BearerMiddleware(), requireActiveUser(users))

	protected.GET("/me", func(contextGin *gin.Context) {
		metrics.Increment(EventProfileRead)
		contextGin.JSON(http.StatusOK, currentProfile(contextGin))
	})

	protected.POST("/verify", func(contextGin *gin.Context) {
		profile := currentProfile(contextGin)
		contextGin.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Token is valid",
			"data":    gin.H{"user_id": profile.ID, "email": profile.Email},
		})
	})

	protected.POST("/logout", func(contextGin *gin.Context) {
		profile := currentProfile(contextGin)
		metrics.Increment(EventLogout)
		logger.Info("user logged out",
			zap.String("code", "auth.logout"),
			zap.String("user_id", profile.ID))
		contextGin.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Logged out successfully",
		})
	})

	return nil
}

const profileContextKey = "auth_profile"

func requireActiveUser(users UserStore) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		claimsValue, _ := contextGin.Get(ClaimsContextKey)
		claims, ok := claimsValue.(*JwtCustomClaims)
		if !ok || claims == nil || claims.UserID == "" {
			abortUnauthorized(contextGin, "Invalid token payload")
			return
		}
		profile, err := users.GetUserProfile(contextGin, claims.UserID)
		if err != nil {
			abortUnauthorized(contextGin, "User not found or inactive")
			return
		}
		contextGin.Set(profileContextKey, profile)
		contextGin.Next()
	}
}

func currentProfile(contextGin *gin.Context) UserProfile {
	value, _ := contextGin.Get(profileContextKey)
	profile, _ := value.(UserProfile)
	return profile
}
