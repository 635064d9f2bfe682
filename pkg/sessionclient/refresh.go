package sessionclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const refreshFlightKey = "refresh"

// CheckSession re-fetches the profile for a held session. It returns false
// without touching session state on any failure; the caller decides what
// a failed verification means.
func (client *Client) CheckSession(ctx context.Context) bool {
	client.mutex.Lock()
	token := client.token
	authenticated := token != "" && client.user != nil
	client.mutex.Unlock()
	if !authenticated {
		return false
	}

	var profile UserProfile
	if err := client.perform(ctx, client.endpoint(meEndpoint), nil, &profile); err != nil {
		client.logger.Warn("session check failed",
			zap.String("code", "session_client.check_session"),
			zap.Error(err))
		return false
	}
	if profile == nil {
		client.logger.Warn("session check returned an empty profile",
			zap.String("code", "session_client.check_session.empty"))
		return false
	}

	client.mutex.Lock()
	defer client.mutex.Unlock()
	if client.token != token {
		return false
	}
	client.user = profile
	client.persistUser(ctx, profile)
	return true
}

// RefreshCredential renews the credential. Failure is terminal: the session
// is cleared and the user is sent to the login page. Concurrent calls share
// one request, which runs under the client's refresh timeout rather than any
// single caller's deadline.
func (client *Client) RefreshCredential(ctx context.Context) (string, error) {
	result, err, _ := client.refreshGroup.Do(refreshFlightKey, func() (any, error) {
		flightContext, cancel := context.WithTimeout(context.WithoutCancel(ctx), client.refreshTimeout)
		defer cancel()
		return client.refreshOnce(flightContext)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (client *Client) refreshOnce(ctx context.Context) (string, error) {
	issuedFor := client.Token()

	var body refreshResponse
	err := client.perform(ctx, client.endpoint(refreshEndpoint), &RequestOptions{Method: http.MethodPost}, &body)
	if err == nil && strings.TrimSpace(body.AccessToken) == "" {
		err = ErrMalformedResponse
	}
	if err != nil {
		client.logger.Error("token refresh error",
			zap.String("code", "session_client.refresh"),
			zap.Error(err))
		if client.Token() == issuedFor {
			client.handleUnauthorized()
		}
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	client.mutex.Lock()
	defer client.mutex.Unlock()
	if client.token != issuedFor {
		// Login or logout won the race; the renewed credential belongs to a dead session.
		return "", fmt.Errorf("session_client.refresh: %w", ErrSessionReplaced)
	}
	client.token = body.AccessToken
	client.persist(ctx, StorageKeyAccessToken, body.AccessToken)
	return body.AccessToken, nil
}

// scheduleRefreshLocked replaces any running refresh loop with a fresh one.
func (client *Client) scheduleRefreshLocked() {
	client.cancelRefreshLocked()
	loopContext, cancel := context.WithCancel(context.Background())
	client.stopRefresh = cancel
	go client.refreshLoop(loopContext, client.refreshInterval)
}

func (client *Client) cancelRefreshLocked() {
	if client.stopRefresh == nil {
		return
	}
	client.stopRefresh()
	client.stopRefresh = nil
}

func (client *Client) refreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := client.RefreshCredential(ctx); err != nil {
				client.logger.Warn("auto token refresh failed",
					zap.String("code", "session_client.refresh.auto"),
					zap.Error(err))
			}
		}
	}
}
