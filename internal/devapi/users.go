package devapi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Roles understood by the backend.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

var (
	// ErrInvalidCredentials is returned when email or password do not match.
	ErrInvalidCredentials = errors.New("users.invalid_credentials")
	// ErrUserNotFound is returned when a user id is unknown or inactive.
	ErrUserNotFound = errors.New("users.not_found")
	// ErrUserExists is returned when registering a duplicate email.
	ErrUserExists = errors.New("users.exists")
)

// UserProfile is the profile record served to clients.
type UserProfile struct {
	ID          string     `json:"id"`
	Nome        string     `json:"nome"`
	Email       string     `json:"email"`
	Setor       string     `json:"setor"`
	Cargo       string     `json:"cargo,omitempty"`
	TipoUsuario string     `json:"tipo_usuario"`
	Ativo       bool       `json:"ativo"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLogin   *time.Time `json:"last_login"`
}

// UserStore authenticates users and serves their profiles.
type UserStore interface {
	Authenticate(ctx context.Context, email string, password string) (UserProfile, error)
	GetUserProfile(ctx context.Context, userID string) (UserProfile, error)
}

type userRecord struct {
	profile      UserProfile
	passwordHash []byte
}

// InMemoryUsers is a user directory used for demo and local runs.
type InMemoryUsers struct {
	mutex   sync.Mutex
	byID    map[string]*userRecord
	byEmail map[string]string
}

// NewInMemoryUsers constructs an empty directory.
func NewInMemoryUsers() *InMemoryUsers {
	return &InMemoryUsers{
		byID:    make(map[string]*userRecord),
		byEmail: make(map[string]string),
	}
}

// Register adds an active user and returns its profile.
func (store *InMemoryUsers) Register(email string, password string, displayName string, role string) (UserProfile, error) {
	normalizedEmail := strings.ToLower(strings.TrimSpace(email))
	hash, hashErr := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if hashErr != nil {
		return UserProfile{}, hashErr
	}
	if role != RoleAdmin {
		role = RoleUser
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()
	if _, exists := store.byEmail[normalizedEmail]; exists {
		return UserProfile{}, ErrUserExists
	}
	profile := UserProfile{
		ID:          uuid.NewString(),
		Nome:        displayName,
		Email:       normalizedEmail,
		TipoUsuario: role,
		Ativo:       true,
		CreatedAt:   time.Now().UTC(),
	}
	store.byID[profile.ID] = &userRecord{profile: profile, passwordHash: hash}
	store.byEmail[normalizedEmail] = profile.ID
	return profile, nil
}

// Deactivate marks a user inactive so that its tokens stop resolving.
func (store *InMemoryUsers) Deactivate(userID string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	record, ok := store.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	record.profile.Ativo = false
	return nil
}

// Authenticate verifies the password and stamps the last login time.
func (store *InMemoryUsers) Authenticate(ctx context.Context, email string, password string) (UserProfile, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	userID, ok := store.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return UserProfile{}, ErrInvalidCredentials
	}
	record := store.byID[userID]
	if record == nil || !record.profile.Ativo {
		return UserProfile{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(record.passwordHash, []byte(password)) != nil {
		return UserProfile{}, ErrInvalidCredentials
	}
	loginTime := time.Now().UTC()
	record.profile.LastLogin = &loginTime
	return record.profile, nil
}

// GetUserProfile returns an active user's profile.
func (store *InMemoryUsers) GetUserProfile(ctx context.Context, userID string) (UserProfile, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	record, ok := store.byID[userID]
	if !ok || !record.profile.Ativo {
		return UserProfile{}, ErrUserNotFound
	}
	return record.profile, nil
}
