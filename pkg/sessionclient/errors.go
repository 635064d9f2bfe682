package sessionclient

import (
	"errors"
	"fmt"
)

// User-facing messages as rendered by the application.
const (
	SessionExpiredMessage = "Sessão expirada"
	loginFailedMessage    = "Erro no login"
	sessionExpiredNotice  = "Sessão expirada. Faça login novamente."
	adminDeniedNotice     = "Acesso negado. Privilégios de administrador necessários."
)

var (
	// ErrSessionExpired is returned when the backend answers 401.
	ErrSessionExpired = errors.New(SessionExpiredMessage)
	// ErrRefreshFailed wraps any failure to renew the credential.
	ErrRefreshFailed = errors.New("Token refresh failed")
	// ErrMissingStore indicates Config.Store was not supplied.
	ErrMissingStore = errors.New("session_client.missing_store")
	// ErrInvalidAPIBase indicates Config.APIBase is not an absolute http(s) URL.
	ErrInvalidAPIBase = errors.New("session_client.invalid_api_base")
	// ErrMalformedResponse indicates a success response lacked required fields.
	ErrMalformedResponse = errors.New("session_client.malformed_response")
	// ErrSessionReplaced indicates the session changed while a renewal was in flight.
	ErrSessionReplaced = errors.New("session_client.session_replaced")
)

// APIError carries a non-success HTTP status and the message derived from the response body.
type APIError struct {
	StatusCode int
	Message    string
}

func (apiError *APIError) Error() string {
	if apiError.Message != "" {
		return apiError.Message
	}
	return fmt.Sprintf("HTTP %d", apiError.StatusCode)
}
