package sessionclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// RequestOptions customizes an APICall. Header values override the
// authorization headers on conflict.
type RequestOptions struct {
	Method string
	Header http.Header
	Body   io.Reader
}

// BuildAuthHeaders returns the JSON content type plus a bearer authorization
// header when a credential is held.
func (client *Client) BuildAuthHeaders() http.Header {
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	if token := client.Token(); token != "" {
		headers.Set("Authorization", "Bearer "+token)
	}
	return headers
}

// APICall performs an authorized request and decodes the JSON response into
// out (nil discards the body). A 204 leaves out untouched; any other empty
// success body is ErrMalformedResponse. A 401 clears the session, shows an expiry
// notice, schedules a redirect to the login page, and returns ErrSessionExpired.
func (client *Client) APICall(ctx context.Context, target string, options *RequestOptions, out any) error {
	err := client.perform(ctx, target, options, out)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrSessionExpired) {
		client.handleUnauthorized()
	}
	client.logger.Error("API call error",
		zap.String("code", "session_client.api_call"),
		zap.String("target", target),
		zap.Error(err))
	return err
}

// perform executes the request without touching session state.
func (client *Client) perform(ctx context.Context, target string, options *RequestOptions, out any) error {
	if options == nil {
		options = &RequestOptions{}
	}
	method := options.Method
	if method == "" {
		method = http.MethodGet
	}
	resolved, resolveErr := client.resolve(target)
	if resolveErr != nil {
		return fmt.Errorf("session_client.api_call.url: %w", resolveErr)
	}
	request, requestErr := http.NewRequestWithContext(ctx, method, resolved, options.Body)
	if requestErr != nil {
		return fmt.Errorf("session_client.api_call.request: %w", requestErr)
	}
	headers := client.BuildAuthHeaders()
	for key, values := range options.Header {
		canonical := http.CanonicalHeaderKey(key)
		headers.Del(canonical)
		for _, value := range values {
			headers.Add(canonical, value)
		}
	}
	request.Header = headers

	response, doErr := client.httpClient.Do(request)
	if doErr != nil {
		return fmt.Errorf("session_client.api_call: %w", doErr)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode == http.StatusUnauthorized {
		return ErrSessionExpired
	}
	if !isSuccess(response.StatusCode) {
		message := readErrorDetail(response.Body)
		if message == "" {
			message = fmt.Sprintf("HTTP %d", response.StatusCode)
		}
		return &APIError{StatusCode: response.StatusCode, Message: message}
	}
	if out == nil || response.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}
	if decodeErr := json.NewDecoder(response.Body).Decode(out); decodeErr != nil {
		if errors.Is(decodeErr, io.EOF) {
			return fmt.Errorf("session_client.api_call.decode: %w", ErrMalformedResponse)
		}
		return fmt.Errorf("session_client.api_call.decode: %w", decodeErr)
	}
	return nil
}

// resolve turns target into an absolute URL. Absolute targets pass through,
// rooted paths use the API origin, anything else is appended to the API base.
func (client *Client) resolve(target string) (string, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	if parsed.IsAbs() {
		return parsed.String(), nil
	}
	if strings.HasPrefix(target, "/") {
		origin := url.URL{Scheme: client.apiBase.Scheme, Host: client.apiBase.Host}
		return origin.ResolveReference(parsed).String(), nil
	}
	return client.apiBase.String() + "/" + target, nil
}

// readErrorDetail extracts the "detail" message from an error body, or "".
func readErrorDetail(body io.Reader) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 1<<20)).Decode(&payload); err != nil {
		return ""
	}
	if len(payload.Detail) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		return text
	}
	if string(payload.Detail) == "null" {
		return ""
	}
	return string(payload.Detail)
}
