package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/medportal/phoneauth/internal/login/domain"
	"github.com/medportal/phoneauth/pkg/authsdk"
	"github.com/medportal/phoneauth/pkg/cryptox"
)

// SessionCacheAdapter adapts Sessions to authsdk.SessionCache for a single
// profile, sealing tokens on the way in and opening them on the way out.
// This keeps authsdk free of any dependency on the store or domain packages.
type SessionCacheAdapter struct {
	sessions Sessions
	profile  string
	sealer   *cryptox.Sealer
}

// NewSessionCacheAdapter creates an adapter. A nil sealer stores tokens in
// the clear.
func NewSessionCacheAdapter(sessions Sessions, profile string, sealer *cryptox.Sealer) *SessionCacheAdapter {
	return &SessionCacheAdapter{sessions: sessions, profile: profile, sealer: sealer}
}

// Load returns the cached session, or authsdk.ErrNoSession when there is
// none. A session sealed under a different passphrase is reported as an
// error rather than silently dropped.
func (a *SessionCacheAdapter) Load(ctx context.Context) (authsdk.CachedSession, error) {
	s, err := a.sessions.GetSession(ctx, a.profile)
	if errors.Is(err, ErrNotFound) {
		return authsdk.CachedSession{}, authsdk.ErrNoSession
	}
	if err != nil {
		return authsdk.CachedSession{}, err
	}

	access, err := a.sealer.Open(s.AccessToken)
	if err != nil {
		return authsdk.CachedSession{}, fmt.Errorf("open cached access token: %w", err)
	}
	refresh, err := a.sealer.Open(s.RefreshToken)
	if err != nil {
		return authsdk.CachedSession{}, fmt.Errorf("open cached refresh token: %w", err)
	}

	return authsdk.CachedSession{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    s.ExpiresAt,
		UserID:       s.UserID,
		Phone:        s.Phone,
		UpdatedAt:    s.UpdatedAt,
	}, nil
}

// Save seals and stores c for the adapter's profile.
func (a *SessionCacheAdapter) Save(ctx context.Context, c authsdk.CachedSession) error {
	access, err := a.sealer.Seal(c.AccessToken)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	refresh, err := a.sealer.Seal(c.RefreshToken)
	if err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}

	return a.sessions.PutSession(ctx, domain.Session{
		Profile:      a.profile,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    c.ExpiresAt,
		UserID:       c.UserID,
		Phone:        c.Phone,
		UpdatedAt:    c.UpdatedAt,
	})
}

// Clear removes the profile's session.
func (a *SessionCacheAdapter) Clear(ctx context.Context) error {
	return a.sessions.DeleteSession(ctx, a.profile)
}
