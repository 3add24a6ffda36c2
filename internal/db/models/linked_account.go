package models

import "time"

// Connection status values for a linked Drive account.
const (
	StatusActive       = "active"
	StatusRevoked      = "revoked"
	StatusError        = "error"
	StatusDisconnected = "disconnected"
)

// LinkedAccount stores OAuth identity, tokens and health state for one
// Google Drive account linked to a dashboard user. Re-linking the same
// Google account updates the existing row (unique on user + remote id).
type LinkedAccount struct {
	ID               string `gorm:"primaryKey"` // UUID
	UserID           string `gorm:"index;uniqueIndex:idx_user_remote"`
	RemoteAccountID  string `gorm:"uniqueIndex:idx_user_remote"` // Google subject id
	Email            string
	DisplayName      string
	AccessToken      string
	RefreshToken     string
	TokenExpiry      time.Time
	ConnectionStatus string `gorm:"default:active"`

	// Quota cache, refreshed with a TTL policy. LastFetched is the cache age.
	UsedBytes   int64
	TotalBytes  int64
	LastFetched time.Time

	// LastSync marks the last successful full listing sync.
	LastSync  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
