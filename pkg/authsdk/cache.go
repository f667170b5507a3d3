package authsdk

import (
	"context"
	"sync"
	"time"
)

// CachedSession is the persisted form of a Provider session.
type CachedSession struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       string
	Phone        string
	UpdatedAt    time.Time
}

// SessionCache persists the Provider's session between runs. Load returns
// ErrNoSession when nothing is cached.
type SessionCache interface {
	Load(ctx context.Context) (CachedSession, error)
	Save(ctx context.Context, s CachedSession) error
	Clear(ctx context.Context) error
}

// MemoryCache is a SessionCache that lives for the process only.
type MemoryCache struct {
	mu      sync.Mutex
	session *CachedSession
}

func (m *MemoryCache) Load(context.Context) (CachedSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return CachedSession{}, ErrNoSession
	}
	return *m.session, nil
}

func (m *MemoryCache) Save(_ context.Context, s CachedSession) error {
	m.mu.Lock()
	m.session = &s
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Clear(context.Context) error {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()
	return nil
}
