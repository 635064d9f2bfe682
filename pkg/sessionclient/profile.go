package sessionclient

import "fmt"

// Profile field names as returned by the backend.
const (
	FieldDisplayName = "nome"
	FieldEmail       = "email"
	FieldRole        = "tipo_usuario"
	FieldAvatar      = "avatar"

	RoleAdministrator = "admin"
)

// UserProfile is the backend profile record, passed through untyped.
type UserProfile map[string]any

// Field returns the named field rendered as a string, or "" when absent.
func (profile UserProfile) Field(name string) string {
	value, ok := profile[name]
	if !ok || value == nil {
		return ""
	}
	if text, isString := value.(string); isString {
		return text
	}
	return fmt.Sprint(value)
}

// DisplayName prefers the profile name and falls back to the email.
func (profile UserProfile) DisplayName() string {
	if name := profile.Field(FieldDisplayName); name != "" {
		return name
	}
	return profile.Field(FieldEmail)
}

// Email returns the profile email.
func (profile UserProfile) Email() string {
	return profile.Field(FieldEmail)
}

// Role returns the profile role flag.
func (profile UserProfile) Role() string {
	return profile.Field(FieldRole)
}

// AvatarURL returns the avatar URL if the backend supplied one.
func (profile UserProfile) AvatarURL() string {
	return profile.Field(FieldAvatar)
}

// IsAdmin reports whether the role equals the administrator role.
func (profile UserProfile) IsAdmin() bool {
	return profile.Role() == RoleAdministrator
}

// Clone returns a shallow copy.
func (profile UserProfile) Clone() UserProfile {
	if profile == nil {
		return nil
	}
	clone := make(UserProfile, len(profile))
	for key, value := range profile {
		clone[key] = value
	}
	return clone
}
