package sessionclient

import (
	"net/http"
	"time"

	"github.com/tyemirov/tsession/pkg/notify"
	"github.com/tyemirov/tsession/pkg/sessionstore"
	"go.uber.org/zap"
)

// Storage keys mirrored by the client.
const (
	StorageKeyAccessToken  = "access_token"
	StorageKeyLegacyToken  = "authToken"
	StorageKeyUser         = "user"
	StorageKeyRefreshToken = "refresh_token"
)

// Endpoints relative to Config.APIBase.
const (
	loginEndpoint   = "/auth/login"
	logoutEndpoint  = "/auth/logout"
	meEndpoint      = "/auth/me"
	refreshEndpoint = "/auth/refresh"
)

const (
	DefaultLoginPath       = "/login"
	DefaultRefreshInterval = 25 * time.Minute
	DefaultRedirectDelay   = 2 * time.Second
	DefaultRefreshTimeout  = 30 * time.Second
)

// Navigator moves the user between pages.
type Navigator interface {
	CurrentPath() string
	Navigate(path string)
}

// NotificationSink displays transient user-facing messages.
type NotificationSink interface {
	Show(message string, severity notify.Severity)
}

// Config configures the Client.
type Config struct {
	// APIBase is the absolute URL the auth endpoints hang off, e.g. https://host/api.
	APIBase    string
	HTTPClient *http.Client
	Store      sessionstore.Store
	Navigator  Navigator
	Notifier   NotificationSink
	Logger     *zap.Logger
	LoginPath  string
	// RefreshInterval must stay below the credential lifetime.
	RefreshInterval time.Duration
	// RefreshTimeout bounds one renewal request shared by all waiting callers.
	RefreshTimeout time.Duration
	RedirectDelay  time.Duration
}

type loggingNavigator struct {
	logger *zap.Logger
}

func (navigator loggingNavigator) CurrentPath() string {
	return "/"
}

func (navigator loggingNavigator) Navigate(path string) {
	navigator.logger.Info("navigation requested",
		zap.String("code", "session_client.navigate"),
		zap.String("path", path))
}
