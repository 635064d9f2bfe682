package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tyemirov/tsession/internal/devapi"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestZapLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(zapLoggerMiddleware(zaptest.NewLogger(t)))
	router.GET("/ping", func(contextGin *gin.Context) {
		contextGin.Status(http.StatusNoContent)
	})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
}

func TestRunServeMissingConfig(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	err := runServe(&cobra.Command{}, nil)
	if err == nil {
		t.Fatalf("expected configuration error")
	}
	expectedMessage := "config.uninitialized_serve_config: serve configuration not prepared; PreRunE must execute before RunE"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func TestLoadServeSettingsValidation(t *testing.T) {
	testCases := []struct {
		name     string
		values   map[string]any
		expected string
	}{
		{
			name:     "missing signing key",
			values:   map[string]any{"session_ttl": time.Minute, "refresh_ttl": time.Hour},
			expected: "config.missing_jwt_signing_key: jwt_signing_key must be provided",
		},
		{
			name:     "zero session ttl",
			values:   map[string]any{"jwt_signing_key": "secret", "session_ttl": 0, "refresh_ttl": time.Hour},
			expected: "config.invalid_session_ttl: session_ttl must be greater than zero",
		},
		{
			name:     "negative refresh ttl",
			values:   map[string]any{"jwt_signing_key": "secret", "session_ttl": time.Minute, "refresh_ttl": -time.Hour},
			expected: "config.invalid_refresh_ttl: refresh_ttl must be greater than zero",
		},
		{
			name:     "malformed seed user",
			values:   map[string]any{"jwt_signing_key": "secret", "session_ttl": time.Minute, "refresh_ttl": time.Hour, "seed_user": []string{"nobody"}},
			expected: `config.invalid_seed_user: seed_user "nobody" must look like email:password[:name[:role]]`,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			viper.Reset()
			defer viper.Reset()
			for key, value := range testCase.values {
				viper.Set(key, value)
			}
			_, err := LoadServeSettings()
			if err == nil || err.Error() != testCase.expected {
				t.Fatalf("expected %q, got %v", testCase.expected, err)
			}
		})
	}
}

func TestLoadServeSettingsParsesSeedUsers(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	viper.Set("jwt_signing_key", "secret")
	viper.Set("session_ttl", time.Minute)
	viper.Set("refresh_ttl", time.Hour)
	viper.Set("seed_user", []string{"a@x.com:p:Ana:admin", "b@x.com:q"})

	settings, err := LoadServeSettings()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Server.Issuer != "tsession" {
		t.Fatalf("expected default issuer, got %q", settings.Server.Issuer)
	}
	expected := []SeedUser{
		{Email: "a@x.com", Password: "p", DisplayName: "Ana", Role: devapi.RoleAdmin},
		{Email: "b@x.com", Password: "q", Role: devapi.RoleUser},
	}
	if len(settings.SeedUsers) != len(expected) {
		t.Fatalf("expected %d seed users, got %#v", len(expected), settings.SeedUsers)
	}
	for index := range expected {
		if settings.SeedUsers[index] != expected[index] {
			t.Fatalf("seed user %d: expected %#v, got %#v", index, expected[index], settings.SeedUsers[index])
		}
	}
}

func TestLoadClientSettingsValidation(t *testing.T) {
	testCases := []struct {
		name     string
		values   map[string]any
		expected string
	}{
		{
			name:     "missing api base",
			values:   map[string]any{"store_url": "memory://", "refresh_interval": time.Minute, "log_level": "warn"},
			expected: "config.missing_api_base: api_base must be provided",
		},
		{
			name:     "missing store",
			values:   map[string]any{"api_base": "http://localhost/api", "refresh_interval": time.Minute, "log_level": "warn"},
			expected: "config.missing_store_url: store_url must be provided",
		},
		{
			name:     "relative login path",
			values:   map[string]any{"api_base": "http://localhost/api", "store_url": "memory://", "login_path": "login", "refresh_interval": time.Minute, "log_level": "warn"},
			expected: "config.invalid_login_path: login_path must start with /",
		},
		{
			name:     "zero refresh interval",
			values:   map[string]any{"api_base": "http://localhost/api", "store_url": "memory://", "log_level": "warn"},
			expected: "config.invalid_refresh_interval: refresh_interval must be greater than zero",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			viper.Reset()
			defer viper.Reset()
			for key, value := range testCase.values {
				viper.Set(key, value)
			}
			_, err := LoadClientSettings()
			if err == nil || err.Error() != testCase.expected {
				t.Fatalf("expected %q, got %v", testCase.expected, err)
			}
		})
	}
}

func TestRunServeStartsAndStops(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	originalServe := serveHTTP
	defer func() { serveHTTP = originalServe }()
	var servedAddr string
	serveHTTP = func(server *http.Server) error {
		servedAddr = server.Addr
		return http.ErrServerClosed
	}

	command := newServeCommand()
	command.SetContext(context.Background())
	if err := command.Flags().Set("jwt_signing_key", "secret"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if err := command.Flags().Set("listen_addr", "127.0.0.1:0"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if err := command.Flags().Set("seed_user", "a@x.com:p:Ana:admin"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if err := prepareServeConfig(command, nil); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := runServe(command, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if servedAddr != "127.0.0.1:0" {
		t.Fatalf("expected listen address to be passed through, got %q", servedAddr)
	}
}

func TestBuildRouterRejectsWildcardCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	settings := ServeSettings{
		Server:             devapi.ServerConfig{SigningKey: []byte("secret"), Issuer: "tsession", SessionTTL: time.Minute, RefreshTTL: time.Hour},
		EnableCORS:         true,
		CORSAllowedOrigins: []string{"*"},
	}
	if _, err := buildRouter(settings, devapi.NewInMemoryUsers(), devapi.NewCounterMetrics(), zap.NewNop()); err == nil {
		t.Fatalf("expected wildcard origin to be rejected")
	}
}

func startReferenceBackend(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	users := devapi.NewInMemoryUsers()
	if _, err := users.Register("a@x.com", "p", "Ana", devapi.RoleAdmin); err != nil {
		t.Fatalf("register: %v", err)
	}
	router, err := buildRouter(ServeSettings{
		Server: devapi.ServerConfig{SigningKey: []byte("cli-secret"), Issuer: "tsession", SessionTTL: 30 * time.Minute, RefreshTTL: time.Hour},
	}, users, devapi.NewCounterMetrics(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func executeCommand(t *testing.T, arguments ...string) (string, string, error) {
	t.Helper()
	viper.Reset()
	rootCmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(arguments)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestClientCommandsAgainstReferenceBackend(t *testing.T) {
	defer viper.Reset()
	server := startReferenceBackend(t)
	common := []string{
		"--api_base", server.URL + "/api",
		"--store_url", "file://" + filepath.ToSlash(filepath.Join(t.TempDir(), "session.json")),
		"--log_level", "error",
	}
	run := func(arguments ...string) (string, string, error) {
		return executeCommand(t, append(arguments, common...)...)
	}

	if _, _, err := run("whoami"); !errors.Is(err, errSessionRequired) {
		t.Fatalf("expected whoami without a session to fail, got %v", err)
	}

	if _, _, err := run("login", "--email", "a@x.com", "--password", "wrong"); err == nil || err.Error() != "Invalid email or password" {
		t.Fatalf("expected backend rejection, got %v", err)
	}

	stdout, _, err := run("login", "--email", "a@x.com", "--password", "p")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(stdout, "Ana") {
		t.Fatalf("expected profile card after login, got %q", stdout)
	}

	stdout, _, err = run("whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if !strings.Contains(stdout, "Ana") || !strings.Contains(stdout, "role: administrator") {
		t.Fatalf("unexpected whoami output %q", stdout)
	}

	stdout, _, err = run("call", "/api/auth/verify", "--method", "post")
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !strings.Contains(stdout, `"Token is valid"`) {
		t.Fatalf("unexpected call output %q", stdout)
	}

	if _, _, err := run("refresh"); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	_, stderr, err := run("logout")
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	if !strings.Contains(stderr, "/login") {
		t.Fatalf("expected redirect hint after logout, got %q", stderr)
	}

	if _, _, err := run("call", "/api/auth/me"); !errors.Is(err, errSessionRequired) {
		t.Fatalf("expected call after logout to fail, got %v", err)
	}
}

func TestParseHeaders(t *testing.T) {
	header, err := parseHeaders([]string{"X-Trace: abc", "Accept:application/json"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if header.Get("X-Trace") != "abc" || header.Get("Accept") != "application/json" {
		t.Fatalf("unexpected header %#v", header)
	}
	if _, err := parseHeaders([]string{"broken"}); err == nil {
		t.Fatalf("expected malformed header to fail")
	}
}
