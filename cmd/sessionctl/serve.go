package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tyemirov/tsession/internal/devapi"
	"go.uber.org/zap"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

const (
	configCodeMissingSigningKey      = "config.missing_jwt_signing_key"
	configCodeInvalidSessionTTL      = "config.invalid_session_ttl"
	configCodeInvalidRefreshTTL      = "config.invalid_refresh_ttl"
	configCodeInvalidSeedUser        = "config.invalid_seed_user"
	configCodeUninitializedServeConf = "config.uninitialized_serve_config"
)

type contextKey string

const serveConfigContextKey contextKey = "serveConfig"

// ServeSettings configures the reference backend.
type ServeSettings struct {
	ListenAddr         string
	Server             devapi.ServerConfig
	EnableCORS         bool
	CORSAllowedOrigins []string
	SeedUsers          []SeedUser
}

// SeedUser is an account registered at startup.
type SeedUser struct {
	Email       string
	Password    string
	DisplayName string
	Role        string
}

func newServeCommand() *cobra.Command {
	command := &cobra.Command{
		Use:     "serve",
		Short:   "Run the reference auth API backed by an in-memory user directory",
		PreRunE: prepareServeConfig,
		RunE:    runServe,
	}

	command.Flags().String("listen_addr", ":8080", "HTTP listen address")
	command.Flags().String("jwt_signing_key", "", "HS256 signing secret for access and refresh JWTs")
	command.Flags().String("jwt_issuer", "tsession", "Issuer claim for minted tokens")
	command.Flags().Duration("session_ttl", 30*time.Minute, "Access token TTL")
	command.Flags().Duration("refresh_ttl", 7*24*time.Hour, "Refresh token TTL")
	command.Flags().Bool("enable_cors", false, "Enable CORS for browser clients on other origins")
	command.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled (required if enable_cors is true)")
	command.Flags().StringArray("seed_user", nil, "Account to register as email:password[:name[:role]] (repeatable)")

	for _, key := range []string{"listen_addr", "jwt_signing_key", "jwt_issuer", "session_ttl", "refresh_ttl", "enable_cors", "cors_allowed_origins", "seed_user"} {
		_ = viper.BindPFlag(key, command.Flags().Lookup(key))
	}
	return command
}

func prepareServeConfig(command *cobra.Command, arguments []string) error {
	settings, loadErr := LoadServeSettings()
	if loadErr != nil {
		return loadErr
	}
	command.SetContext(context.WithValue(commandContext(command), serveConfigContextKey, settings))
	return nil
}

func LoadServeSettings() (ServeSettings, error) {
	signingKey := viper.GetString("jwt_signing_key")
	if signingKey == "" {
		return ServeSettings{}, configError(configCodeMissingSigningKey, "jwt_signing_key must be provided")
	}

	sessionTTL := viper.GetDuration("session_ttl")
	if sessionTTL <= 0 {
		return ServeSettings{}, configError(configCodeInvalidSessionTTL, "session_ttl must be greater than zero")
	}

	refreshTTL := viper.GetDuration("refresh_ttl")
	if refreshTTL <= 0 {
		return ServeSettings{}, configError(configCodeInvalidRefreshTTL, "refresh_ttl must be greater than zero")
	}

	seedUsers := make([]SeedUser, 0)
	for _, entry := range viper.GetStringSlice("seed_user") {
		seedUser, parseErr := parseSeedUser(entry)
		if parseErr != nil {
			return ServeSettings{}, parseErr
		}
		seedUsers = append(seedUsers, seedUser)
	}

	issuer := viper.GetString("jwt_issuer")
	if issuer == "" {
		issuer = "tsession"
	}

	return ServeSettings{
		ListenAddr: viper.GetString("listen_addr"),
		Server: devapi.ServerConfig{
			SigningKey: []byte(signingKey),
			Issuer:     issuer,
			SessionTTL: sessionTTL,
			RefreshTTL: refreshTTL,
		},
		EnableCORS:         viper.GetBool("enable_cors"),
		CORSAllowedOrigins: viper.GetStringSlice("cors_allowed_origins"),
		SeedUsers:          seedUsers,
	}, nil
}

func parseSeedUser(entry string) (SeedUser, error) {
	parts := strings.SplitN(entry, ":", 4)
	if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" || parts[1] == "" {
		return SeedUser{}, configError(configCodeInvalidSeedUser, fmt.Sprintf("seed_user %q must look like email:password[:name[:role]]", entry))
	}
	seedUser := SeedUser{Email: strings.TrimSpace(parts[0]), Password: parts[1], Role: devapi.RoleUser}
	if len(parts) > 2 {
		seedUser.DisplayName = parts[2]
	}
	if len(parts) > 3 && parts[3] != "" {
		seedUser.Role = parts[3]
	}
	return seedUser, nil
}

// buildRouter wires the reference API under /api.
func buildRouter(settings ServeSettings, users devapi.UserStore, metrics devapi.MetricsRecorder, logger *zap.Logger) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	if settings.EnableCORS {
		corsMiddleware, corsErr := devapi.ConfigureCORS(logger, settings.CORSAllowedOrigins)
		if corsErr != nil {
			return nil, corsErr
		}
		router.Use(corsMiddleware)
	}

	if err := devapi.MountAuthRoutes(router.Group("/api"), settings.Server, devapi.Dependencies{
		Users:   users,
		Metrics: metrics,
		Logger:  logger,
	}); err != nil {
		return nil, err
	}
	return router, nil
}

func runServe(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	settings, ok := commandContext(command).Value(serveConfigContextKey).(ServeSettings)
	if !ok {
		return configError(configCodeUninitializedServeConf, "serve configuration not prepared; PreRunE must execute before RunE")
	}

	users := devapi.NewInMemoryUsers()
	for _, seedUser := range settings.SeedUsers {
		if _, err := users.Register(seedUser.Email, seedUser.Password, seedUser.DisplayName, seedUser.Role); err != nil {
			return fmt.Errorf("%s: %w", configCodeInvalidSeedUser, err)
		}
		logger.Info("seeded user", zap.String("email", seedUser.Email), zap.String("role", seedUser.Role))
	}
	metrics := devapi.NewCounterMetrics()

	gin.SetMode(gin.ReleaseMode)
	router, routerErr := buildRouter(settings, users, metrics, logger)
	if routerErr != nil {
		return routerErr
	}

	server := &http.Server{
		Addr:              settings.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(stopSignals)
		select {
		case <-stopSignals:
		case <-shutdownCtx.Done():
			return
		}
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", settings.ListenAddr))
	serveErr := serveHTTP(server)
	logger.Info("auth counters", zap.Any("counters", metrics.Snapshot()))
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", serveErr)
	}
	return nil
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", time.Since(startTime)),
		)
	}
}
