package sessionclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tyemirov/tsession/pkg/notify"
	"github.com/tyemirov/tsession/pkg/sessionstore"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Client owns the credential and user profile of one session, mirrors them to
// a Store, and renews the credential in the background.
type Client struct {
	apiBase         *url.URL
	httpClient      *http.Client
	store           sessionstore.Store
	navigator       Navigator
	notifier        NotificationSink
	logger          *zap.Logger
	loginPath       string
	refreshInterval time.Duration
	refreshTimeout  time.Duration
	redirectDelay   time.Duration

	refreshGroup singleflight.Group

	mutex           sync.Mutex
	token           string
	user            UserProfile
	stopRefresh     context.CancelFunc
	pendingRedirect *time.Timer
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string      `json:"access_token"`
	User        UserProfile `json:"user"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
}

// New constructs a Client and restores any session persisted in the store.
func New(configuration Config) (*Client, error) {
	if configuration.Store == nil {
		return nil, fmt.Errorf("session_client.new: %w", ErrMissingStore)
	}
	apiBase, parseErr := url.Parse(strings.TrimRight(strings.TrimSpace(configuration.APIBase), "/"))
	if parseErr != nil || (apiBase.Scheme != "http" && apiBase.Scheme != "https") || apiBase.Host == "" {
		return nil, fmt.Errorf("session_client.new: %w", ErrInvalidAPIBase)
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := configuration.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	navigator := configuration.Navigator
	if navigator == nil {
		navigator = loggingNavigator{logger: logger}
	}
	notifier := configuration.Notifier
	if notifier == nil {
		notifier = notify.NewLogSink(logger)
	}
	loginPath := configuration.LoginPath
	if strings.TrimSpace(loginPath) == "" {
		loginPath = DefaultLoginPath
	}
	refreshInterval := configuration.RefreshInterval
	if refreshInterval <= 0 {
		refreshInterval = DefaultRefreshInterval
	}
	refreshTimeout := configuration.RefreshTimeout
	if refreshTimeout <= 0 {
		refreshTimeout = DefaultRefreshTimeout
	}
	redirectDelay := configuration.RedirectDelay
	if redirectDelay <= 0 {
		redirectDelay = DefaultRedirectDelay
	}

	client := &Client{
		apiBase:         apiBase,
		httpClient:      httpClient,
		store:           configuration.Store,
		navigator:       navigator,
		notifier:        notifier,
		logger:          logger,
		loginPath:       loginPath,
		refreshInterval: refreshInterval,
		refreshTimeout:  refreshTimeout,
		redirectDelay:   redirectDelay,
	}
	client.restore(context.Background())
	return client, nil
}

// restore loads a persisted session. Both the credential and the profile must
// be present; a lone half is purged.
func (client *Client) restore(ctx context.Context) {
	token, tokenErr := client.store.Get(ctx, StorageKeyAccessToken)
	migrated := false
	if tokenErr != nil {
		client.logStoreError("restore.access_token", tokenErr)
		legacyToken, legacyErr := client.store.Get(ctx, StorageKeyLegacyToken)
		if legacyErr != nil {
			client.logStoreError("restore.legacy_token", legacyErr)
		} else {
			token = legacyToken
			migrated = true
		}
	}

	var user UserProfile
	rawUser, userErr := client.store.Get(ctx, StorageKeyUser)
	if userErr != nil {
		client.logStoreError("restore.user", userErr)
	} else if decodeErr := json.Unmarshal([]byte(rawUser), &user); decodeErr != nil {
		client.logger.Warn("failed to parse stored user data",
			zap.String("code", "session_client.restore.user_decode"),
			zap.Error(decodeErr))
		user = nil
	}

	client.mutex.Lock()
	defer client.mutex.Unlock()
	if token == "" || user == nil {
		if token != "" || rawUser != "" {
			client.logger.Warn("discarding incomplete stored session",
				zap.String("code", "session_client.restore.incomplete"))
			client.clearLocked(ctx)
		}
		return
	}
	client.token = token
	client.user = user
	if migrated {
		client.persist(ctx, StorageKeyAccessToken, token)
		client.remove(ctx, StorageKeyLegacyToken)
		client.logger.Info("migrated legacy credential key",
			zap.String("code", "session_client.restore.migrated"))
	}
	client.scheduleRefreshLocked()
}

// Login exchanges identifier and secret for a credential and profile.
func (client *Client) Login(ctx context.Context, identifier string, secret string) (UserProfile, error) {
	payload, encodeErr := json.Marshal(loginRequest{Email: identifier, Password: secret})
	if encodeErr != nil {
		return nil, fmt.Errorf("session_client.login.encode: %w", encodeErr)
	}
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodPost, client.endpoint(loginEndpoint), bytes.NewReader(payload))
	if requestErr != nil {
		return nil, fmt.Errorf("session_client.login.request: %w", requestErr)
	}
	request.Header.Set("Content-Type", "application/json")

	response, doErr := client.httpClient.Do(request)
	if doErr != nil {
		client.logger.Error("login error", zap.String("code", "session_client.login.transport"), zap.Error(doErr))
		return nil, fmt.Errorf("session_client.login: %w", doErr)
	}
	defer func() { _ = response.Body.Close() }()

	if !isSuccess(response.StatusCode) {
		message := readErrorDetail(response.Body)
		if message == "" {
			message = loginFailedMessage
		}
		client.logger.Warn("login rejected",
			zap.String("code", "session_client.login.rejected"),
			zap.Int("status", response.StatusCode))
		return nil, &APIError{StatusCode: response.StatusCode, Message: message}
	}

	var body loginResponse
	if decodeErr := json.NewDecoder(response.Body).Decode(&body); decodeErr != nil {
		return nil, fmt.Errorf("session_client.login.decode: %w", decodeErr)
	}
	if strings.TrimSpace(body.AccessToken) == "" || body.User == nil {
		return nil, fmt.Errorf("session_client.login: %w", ErrMalformedResponse)
	}

	client.establish(ctx, body.AccessToken, body.User)
	client.logger.Info("login succeeded", zap.String("code", "session_client.login.success"))
	return body.User.Clone(), nil
}

func (client *Client) establish(ctx context.Context, token string, user UserProfile) {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	client.cancelRedirectLocked()
	client.token = token
	client.user = user.Clone()
	client.persist(ctx, StorageKeyAccessToken, token)
	client.persistUser(ctx, user)
	client.remove(ctx, StorageKeyLegacyToken)
	client.scheduleRefreshLocked()
}

// Logout notifies the backend, then clears local state and navigates to the
// login page. Backend failures are logged and never returned.
func (client *Client) Logout(ctx context.Context) {
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodPost, client.endpoint(logoutEndpoint), nil)
	if requestErr == nil {
		request.Header = client.BuildAuthHeaders()
		response, doErr := client.httpClient.Do(request)
		if doErr != nil {
			client.logger.Warn("logout API call failed",
				zap.String("code", "session_client.logout.transport"),
				zap.Error(doErr))
		} else {
			_ = response.Body.Close()
		}
	} else {
		client.logger.Warn("logout request could not be built",
			zap.String("code", "session_client.logout.request"),
			zap.Error(requestErr))
	}
	client.ClearSession()
	client.RedirectToLogin()
}

// IsAuthenticated reports whether both a credential and a profile are held.
func (client *Client) IsAuthenticated() bool {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	return client.token != "" && client.user != nil
}

// RequireAuth guards protected views.
func (client *Client) RequireAuth() bool {
	return client.IsAuthenticated()
}

// RequireAdmin reports whether the session belongs to an administrator and
// shows a denial notice to authenticated non-administrators.
func (client *Client) RequireAdmin() bool {
	if !client.RequireAuth() {
		return false
	}
	if !client.CurrentUser().IsAdmin() {
		client.notifier.Show(adminDeniedNotice, notify.SeverityError)
		return false
	}
	return true
}

// CurrentUser returns a copy of the held profile, or nil.
func (client *Client) CurrentUser() UserProfile {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	return client.user.Clone()
}

// Token returns the held credential, or "".
func (client *Client) Token() string {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	return client.token
}

// ClearSession forgets the credential and profile, removes every persisted
// key, and stops the refresh timer. It is safe to call repeatedly.
func (client *Client) ClearSession() {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	client.clearLocked(context.Background())
}

func (client *Client) clearLocked(ctx context.Context) {
	client.token = ""
	client.user = nil
	for _, key := range []string{StorageKeyAccessToken, StorageKeyLegacyToken, StorageKeyUser, StorageKeyRefreshToken} {
		client.remove(ctx, key)
	}
	client.cancelRefreshLocked()
}

// RedirectToLogin navigates to the login page unless already there.
func (client *Client) RedirectToLogin() {
	if client.navigator.CurrentPath() == client.loginPath {
		return
	}
	client.navigator.Navigate(client.loginPath)
}

// LoginPath returns the configured login page path.
func (client *Client) LoginPath() string {
	return client.loginPath
}

// Close stops background work owned by the client without touching the session.
func (client *Client) Close() {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	client.cancelRefreshLocked()
	client.cancelRedirectLocked()
}

// handleUnauthorized clears the session, tells the user, and redirects after RedirectDelay.
func (client *Client) handleUnauthorized() {
	client.mutex.Lock()
	client.clearLocked(context.Background())
	client.mutex.Unlock()
	client.notifier.Show(sessionExpiredNotice, notify.SeverityWarning)
	client.scheduleRedirect()
}

func (client *Client) scheduleRedirect() {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	if client.pendingRedirect != nil {
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(client.redirectDelay, func() {
		client.mutex.Lock()
		if client.pendingRedirect != timer {
			client.mutex.Unlock()
			return
		}
		client.pendingRedirect = nil
		client.mutex.Unlock()
		client.RedirectToLogin()
	})
	client.pendingRedirect = timer
}

func (client *Client) cancelRedirectLocked() {
	if client.pendingRedirect == nil {
		return
	}
	client.pendingRedirect.Stop()
	client.pendingRedirect = nil
}

func (client *Client) endpoint(path string) string {
	return client.apiBase.String() + path
}

func (client *Client) persist(ctx context.Context, key string, value string) {
	if err := client.store.Set(ctx, key, value); err != nil {
		client.logger.Warn("session store write failed",
			zap.String("code", "session_client.store.set"),
			zap.String("key", key),
			zap.Error(err))
	}
}

func (client *Client) persistUser(ctx context.Context, user UserProfile) {
	encoded, err := json.Marshal(user)
	if err != nil {
		client.logger.Warn("failed to encode user data",
			zap.String("code", "session_client.store.user_encode"),
			zap.Error(err))
		return
	}
	client.persist(ctx, StorageKeyUser, string(encoded))
}

func (client *Client) remove(ctx context.Context, key string) {
	if err := client.store.Remove(ctx, key); err != nil {
		client.logger.Warn("session store remove failed",
			zap.String("code", "session_client.store.remove"),
			zap.String("key", key),
			zap.Error(err))
	}
}

func (client *Client) logStoreError(operation string, err error) {
	if errors.Is(err, sessionstore.ErrKeyNotFound) {
		return
	}
	client.logger.Warn("session store read failed",
		zap.String("code", "session_client."+operation),
		zap.Error(err))
}

func isSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
