package domain

import "time"

// Session is the identity-provider session cached for one local profile.
// Token fields hold whatever the cache adapter wrote, which is sealed
// ciphertext when a passphrase is configured.
type Session struct {
	Profile      string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // zero when the token never auto-refreshes
	UserID       string
	Phone        string
	UpdatedAt    time.Time
}
