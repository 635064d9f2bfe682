package devapi

import (
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestSanitizeOrigins(t *testing.T) {
	sanitized, err := sanitizeOrigins(zap.NewNop(), []string{"https://b.example.com/", " http://localhost:3000 ", "https://b.example.com", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sanitized) != 2 || sanitized[0] != "http://localhost:3000" || sanitized[1] != "https://b.example.com" {
		t.Fatalf("unexpected origins %v", sanitized)
	}

	invalid := []struct {
		name    string
		origins []string
		err     error
	}{
		{name: "wildcard", origins: []string{"*"}, err: errWildcardOrigin},
		{name: "empty", origins: nil, err: errEmptyAllowedOrigins},
		{name: "path", origins: []string{"https://a.example.com/app"}, err: errInvalidOrigin},
		{name: "scheme", origins: []string{"ftp://a.example.com"}, err: errInvalidOrigin},
	}
	for _, testCase := range invalid {
		if _, err := sanitizeOrigins(zap.NewNop(), testCase.origins); !errors.Is(err, testCase.err) {
			t.Fatalf("%s: expected %v, got %v", testCase.name, testCase.err, err)
		}
	}

	if _, err := ConfigureCORS(nil, []string{"https://a.example.com"}); err != nil {
		t.Fatalf("unexpected CORS error: %v", err)
	}
}
