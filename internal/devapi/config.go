package devapi

import "time"

// ServerConfig configures token minting for the reference backend.
type ServerConfig struct {
	SigningKey []byte
	Issuer     string
	SessionTTL time.Duration
	RefreshTTL time.Duration
}
