package sessionclient_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/tsession/internal/devapi"
	"github.com/tyemirov/tsession/pkg/sessionclient"
	"github.com/tyemirov/tsession/pkg/sessionstore"
	"go.uber.org/zap/zaptest"
)

type pathNavigator struct {
	current string
}

func (navigator *pathNavigator) CurrentPath() string { return navigator.current }

func (navigator *pathNavigator) Navigate(path string) { navigator.current = path }

func startDevAPI(t *testing.T) (*httptest.Server, *devapi.InMemoryUsers) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	users := devapi.NewInMemoryUsers()
	if _, err := users.Register("a@x.com", "p", "Ana", devapi.RoleAdmin); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := users.Register("b@x.com", "q", "", devapi.RoleUser); err != nil {
		t.Fatalf("register: %v", err)
	}
	router := gin.New()
	err := devapi.MountAuthRoutes(router.Group("/api"), devapi.ServerConfig{
		SigningKey: []byte("integration-signing-key"),
		Issuer:     "tsession-integration",
		SessionTTL: 30 * time.Minute,
		RefreshTTL: time.Hour,
	}, devapi.Dependencies{Users: users, Logger: zaptest.NewLogger(t)})
	if err != nil {
		t.Fatalf("mount routes: %v", err)
	}
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, users
}

func TestSessionLifecycleAgainstDevAPI(t *testing.T) {
	server, _ := startDevAPI(t)
	store := sessionstore.NewMemoryStore()
	navigator := &pathNavigator{current: "/dashboard"}
	client, err := sessionclient.New(sessionclient.Config{
		APIBase:   server.URL + "/api",
		Store:     store,
		Navigator: navigator,
		Logger:    zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(client.Close)

	if _, err := client.Login(context.Background(), "a@x.com", "nope"); err == nil || err.Error() != "Invalid email or password" {
		t.Fatalf("expected backend detail on bad login, got %v", err)
	}

	profile, err := client.Login(context.Background(), "a@x.com", "p")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if profile.DisplayName() != "Ana" || !client.RequireAdmin() {
		t.Fatalf("unexpected profile %#v", profile)
	}
	if !client.CheckSession(context.Background()) {
		t.Fatalf("expected session to verify")
	}

	first := client.Token()
	renewed, err := client.RefreshCredential(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if renewed == first || client.Token() != renewed {
		t.Fatalf("expected a new credential")
	}

	reopened, err := sessionclient.New(sessionclient.Config{
		APIBase:   server.URL + "/api",
		Store:     store,
		Navigator: navigator,
		Logger:    zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("reopen client: %v", err)
	}
	if reopened.Token() != renewed || !reopened.IsAuthenticated() {
		t.Fatalf("expected the persisted session to be restored")
	}
	reopened.Close()

	client.Logout(context.Background())
	if client.IsAuthenticated() || navigator.current != sessionclient.DefaultLoginPath {
		t.Fatalf("expected logout to clear and redirect")
	}
	if _, err := store.Get(context.Background(), sessionclient.StorageKeyAccessToken); !errors.Is(err, sessionstore.ErrKeyNotFound) {
		t.Fatalf("expected credential removed, got %v", err)
	}
}

func TestDeactivatedUserFailsVerification(t *testing.T) {
	server, users := startDevAPI(t)
	client, err := sessionclient.New(sessionclient.Config{
		APIBase:   server.URL + "/api",
		Store:     sessionstore.NewMemoryStore(),
		Navigator: &pathNavigator{current: "/"},
		Logger:    zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(client.Close)

	profile, err := client.Login(context.Background(), "b@x.com", "q")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if profile.DisplayName() != "b@x.com" {
		t.Fatalf("expected email as display name fallback, got %q", profile.DisplayName())
	}
	userID := profile.Field("id")
	if err := users.Deactivate(userID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if client.CheckSession(context.Background()) {
		t.Fatalf("expected verification to fail for a deactivated user")
	}
	if !client.IsAuthenticated() {
		t.Fatalf("failed verification must leave state to the caller")
	}
}
