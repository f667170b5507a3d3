package otpflow

import (
	"context"
	"strings"
)

// Metadata is a free-form attribute bag attached to a user record.
type Metadata map[string]any

// String returns the trimmed string value stored under key, or "" when the key
// is missing or holds a non-string value.
func (m Metadata) String(key string) string {
	v, ok := m[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// User is the identity provider's view of the signed-in user.
//
// RawMetadata holds fields as they arrived from the sign-up source (Telegram);
// Metadata holds the provider's processed copy.
type User struct {
	ID          string
	Phone       string
	RawMetadata Metadata
	Metadata    Metadata
}

// FullNameKey is the metadata key of the canonical display name.
const FullNameKey = "full_name"

// FullName returns the canonical full name if either bag already carries one.
func (u User) FullName() string {
	if v := u.Metadata.String(FullNameKey); v != "" {
		return v
	}
	return u.RawMetadata.String(FullNameKey)
}

// IdentityProvider owns the process-wide authenticated session.
type IdentityProvider interface {
	// SetSession installs the token pair as the current session.
	SetSession(ctx context.Context, tokens TokenPair) error
	// CurrentUser returns the user of the current session. Implementations
	// may reuse the user they fetched while installing it.
	CurrentUser(ctx context.Context) (User, error)
	// UpdateUserMetadata merges patch into the user's metadata.
	UpdateUserMetadata(ctx context.Context, patch Metadata) error
	// RefreshSession renews the current session so cached claims pick up
	// metadata changes.
	RefreshSession(ctx context.Context) error
}
