package authsdk

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/medportal/phoneauth/pkg/otpflow"
	"github.com/medportal/phoneauth/pkg/slogx"
)

var _ otpflow.IdentityProvider = (*Provider)(nil)

// Provider holds the process-wide identity session.
type Provider struct {
	client *SDKClient
	cache  SessionCache

	mu      sync.RWMutex
	session *Session
	userID  string
	phone   string
	// user is the last user the provider returned for session.
	user *UserResponse
}

// NewProvider creates a Provider. cache may be nil, in which case sessions
// are not persisted.
func NewProvider(client *SDKClient, cache SessionCache) *Provider {
	return &Provider{client: client, cache: cache}
}

// Session returns the installed session, or nil.
func (p *Provider) Session() *Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session
}

// SetSession validates tokens against the identity provider and installs them
// as the current session, replacing any previous one.
func (p *Provider) SetSession(ctx context.Context, tokens otpflow.TokenPair) error {
	if !tokens.Complete() {
		return fmt.Errorf("token pair is incomplete")
	}

	s := p.client.NewSession(tokens)
	user, err := s.GetUser(ctx)
	if err != nil {
		return fmt.Errorf("validate session: %w", err)
	}

	p.install(ctx, s, user)
	return nil
}

// Resume restores the cached session, refreshing it if needed. It returns
// ErrNoSession when nothing usable is cached; a session the provider no
// longer accepts is cleared from the cache.
func (p *Provider) Resume(ctx context.Context) (otpflow.User, error) {
	if p.cache == nil {
		return otpflow.User{}, ErrNoSession
	}

	cached, err := p.cache.Load(ctx)
	if err != nil {
		return otpflow.User{}, err
	}

	// Nothing can renew an expired token without a refresh token.
	if cached.RefreshToken == "" && accessExpired(cached.AccessToken, p.client.now()) {
		slogx.FromContext(ctx).Info("cached session expired")
		p.clearCache(ctx)
		return otpflow.User{}, ErrNoSession
	}

	s := p.client.NewSession(otpflow.TokenPair{
		AccessToken:  cached.AccessToken,
		RefreshToken: cached.RefreshToken,
	})
	user, err := s.GetUser(ctx)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			slogx.FromContext(ctx).Info("cached session rejected", "status", apiErr.Status)
			p.clearCache(ctx)
			return otpflow.User{}, ErrNoSession
		}
		return otpflow.User{}, fmt.Errorf("resume session: %w", err)
	}

	p.install(ctx, s, user)
	return toUser(user), nil
}

// CurrentUser returns the user of the installed session. The user fetched
// when the session was installed, or returned by the last metadata update,
// is reused; the provider is only asked when neither is known.
func (p *Provider) CurrentUser(ctx context.Context) (otpflow.User, error) {
	p.mu.RLock()
	s, known := p.session, p.user
	p.mu.RUnlock()

	if s == nil {
		return otpflow.User{}, ErrNoSession
	}
	if known != nil {
		return toUser(known), nil
	}

	user, err := s.GetUser(ctx)
	if err != nil {
		return otpflow.User{}, err
	}
	p.remember(s, user)
	return toUser(user), nil
}

// UpdateUserMetadata merges patch into the user's metadata.
func (p *Provider) UpdateUserMetadata(ctx context.Context, patch otpflow.Metadata) error {
	s := p.Session()
	if s == nil {
		return ErrNoSession
	}

	user, err := s.UpdateUser(ctx, patch)
	if err != nil {
		return err
	}
	p.remember(s, user)
	return nil
}

// RefreshSession renews the installed session so its claims reflect the
// latest metadata.
func (p *Provider) RefreshSession(ctx context.Context) error {
	s := p.Session()
	if s == nil {
		return ErrNoSession
	}
	return s.Refresh(ctx)
}

// SignOut revokes the session at the provider and forgets it locally. The
// local state is cleared even when revocation fails.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	s := p.session
	p.session = nil
	p.userID, p.phone = "", ""
	p.user = nil
	p.mu.Unlock()

	var revokeErr error
	if s != nil {
		if err := s.Logout(ctx); err != nil && !IsUnauthorized(err) {
			revokeErr = fmt.Errorf("revoke session: %w", err)
		}
	}

	if p.cache != nil {
		if err := p.cache.Clear(ctx); err != nil {
			return errors.Join(revokeErr, fmt.Errorf("clear session cache: %w", err))
		}
	}
	return revokeErr
}

func (p *Provider) install(ctx context.Context, s *Session, user *UserResponse) {
	s.onRefresh = p.persist

	p.mu.Lock()
	p.session = s
	p.userID = user.ID
	p.phone = user.Phone
	p.user = user
	p.mu.Unlock()

	p.persist(ctx, s)
}

// remember records user as the latest known user of s, unless s has been
// replaced meanwhile.
func (p *Provider) remember(s *Session, user *UserResponse) {
	if user == nil || user.ID == "" {
		return
	}

	p.mu.Lock()
	if p.session == s {
		p.user = user
	}
	p.mu.Unlock()
}

func (p *Provider) clearCache(ctx context.Context) {
	if err := p.cache.Clear(ctx); err != nil {
		slogx.FromContext(ctx).Warn("clear session cache failed", "error", err)
	}
}

// persist writes s to the cache. Failures are logged; the in-memory session
// stays usable.
func (p *Provider) persist(ctx context.Context, s *Session) {
	if p.cache == nil {
		return
	}

	p.mu.RLock()
	if p.session != s {
		p.mu.RUnlock()
		return
	}
	userID, phone := p.userID, p.phone
	p.mu.RUnlock()

	tokens := s.Tokens()
	err := p.cache.Save(ctx, CachedSession{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    s.ExpiresAt(),
		UserID:       userID,
		Phone:        phone,
		UpdatedAt:    p.client.now(),
	})
	if err != nil {
		slogx.FromContext(ctx).Warn("persist session failed", "user_id", userID, "error", err)
	}
}

func toUser(u *UserResponse) otpflow.User {
	return otpflow.User{
		ID:          u.ID,
		Phone:       u.Phone,
		RawMetadata: otpflow.Metadata(u.RawUserMetaData),
		Metadata:    otpflow.Metadata(u.UserMetadata),
	}
}
