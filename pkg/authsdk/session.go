package authsdk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/medportal/phoneauth/pkg/jwtx"
	"github.com/medportal/phoneauth/pkg/otpflow"
)

// refreshBuffer is how long before the exp claim a token is treated as expired.
const refreshBuffer = 30 * time.Second

// Session is an identity-provider session with automatic token refresh.
// All Session methods refresh the access token when it is about to expire.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time // zero means never refresh automatically

	// onRefresh runs after every successful refresh, outside the lock.
	onRefresh func(ctx context.Context, s *Session)
}

// NewSession creates a session from an existing token pair.
func (c *SDKClient) NewSession(tokens otpflow.TokenPair) *Session {
	return &Session{
		client:       c,
		accessToken:  tokens.AccessToken,
		refreshToken: tokens.RefreshToken,
		expiresAt:    refreshAt(tokens.AccessToken),
	}
}

// refreshAt reads the exp claim of an access token and subtracts the buffer.
// Tokens that cannot be inspected or carry no exp yield the zero time.
func refreshAt(accessToken string) time.Time {
	claims, err := jwtx.Inspect(accessToken)
	if err != nil {
		return time.Time{}
	}
	exp := claims.Expiry()
	if exp.IsZero() {
		return exp
	}
	return exp.Add(-refreshBuffer)
}

// accessExpired reports whether the exp claim of accessToken has passed at
// now. Tokens that cannot be inspected are left for the provider to judge.
func accessExpired(accessToken string, now time.Time) bool {
	claims, err := jwtx.Inspect(accessToken)
	if err != nil {
		return false
	}
	return errors.Is(claims.ValidateExpiryAt(now, 0), jwtx.ErrExpired)
}

// Expired reports whether the access token is past its refresh point.
func (s *Session) Expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiredLocked()
}

func (s *Session) expiredLocked() bool {
	return !s.expiresAt.IsZero() && !s.client.now().Before(s.expiresAt)
}

// getValidToken returns a valid access token, automatically refreshing if expired.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if !s.expiredLocked() {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	if err := s.refresh(ctx, false); err != nil {
		return "", err
	}
	return s.AccessToken(), nil
}

// Refresh renews the token pair regardless of expiry.
func (s *Session) Refresh(ctx context.Context) error {
	return s.refresh(ctx, true)
}

func (s *Session) refresh(ctx context.Context, force bool) error {
	s.mu.Lock()

	// Another goroutine may have refreshed while we waited for the lock
	if !force && !s.expiredLocked() {
		s.mu.Unlock()
		return nil
	}

	if s.refreshToken == "" {
		s.mu.Unlock()
		return fmt.Errorf("access token expired and no refresh token available")
	}

	tokenResp, err := s.client.RefreshGrant(ctx, s.refreshToken)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to refresh token: %w", err)
	}

	s.accessToken = tokenResp.AccessToken
	s.refreshToken = tokenResp.RefreshToken
	s.expiresAt = refreshAt(tokenResp.AccessToken)
	hook := s.onRefresh
	s.mu.Unlock()

	if hook != nil {
		hook(ctx, s)
	}
	return nil
}

// AccessToken returns the current access token without checking expiration.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// ExpiresAt returns the point after which the session refreshes itself, or
// the zero time if it never does.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// Tokens returns the current token pair.
func (s *Session) Tokens() otpflow.TokenPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return otpflow.TokenPair{AccessToken: s.accessToken, RefreshToken: s.refreshToken}
}

// GetUser fetches the session's user.
func (s *Session) GetUser(ctx context.Context) (*UserResponse, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.GetUser(ctx, token)
}

// UpdateUser merges data into the session user's metadata.
func (s *Session) UpdateUser(ctx context.Context, data map[string]any) (*UserResponse, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.UpdateUser(ctx, token, data)
}

// Logout revokes the session at the identity provider. An expired token is
// not refreshed first; revoking it is pointless.
func (s *Session) Logout(ctx context.Context) error {
	return s.client.Logout(ctx, s.AccessToken())
}
