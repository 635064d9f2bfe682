package devapi

import (
	"context"
	"errors"
	"testing"
)

func TestInMemoryUsersAuthenticate(t *testing.T) {
	users := NewInMemoryUsers()
	registered, err := users.Register(" Bruno@X.com ", "secret", "Bruno", "superuser")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if registered.TipoUsuario != RoleUser {
		t.Fatalf("expected unknown role to fall back to user, got %s", registered.TipoUsuario)
	}
	if _, err := users.Register("bruno@x.com", "other", "Dup", RoleUser); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	profile, err := users.Authenticate(context.Background(), "bruno@x.com", "secret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if profile.LastLogin == nil {
		t.Fatalf("expected last login to be stamped")
	}
	if _, err := users.Authenticate(context.Background(), "bruno@x.com", "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := users.Authenticate(context.Background(), "ghost@x.com", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}

	if err := users.Deactivate(profile.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := users.GetUserProfile(context.Background(), profile.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for inactive user, got %v", err)
	}
	if _, err := users.Authenticate(context.Background(), "bruno@x.com", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected inactive user to be rejected, got %v", err)
	}
}
