package store

import (
	"context"
	"errors"
	"time"

	"github.com/medportal/phoneauth/internal/login/domain"
)

var ErrNotFound = errors.New("store: not found")

// Store is the root data access interface. Concrete drivers (sqlite, redis)
// implement this and expose sub-repositories per concern.
type Store interface {
	Sessions() Sessions
	Attempts() Attempts

	// ApplyMigrations brings the schema up to date. Schemaless drivers treat
	// it as a no-op.
	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backend is still reachable.
	Ping(ctx context.Context) error
}

type Sessions interface {
	// GetSession returns the cached session of profile, or ErrNotFound.
	GetSession(ctx context.Context, profile string) (domain.Session, error)

	// PutSession inserts or replaces the session of s.Profile.
	PutSession(ctx context.Context, s domain.Session) error

	// DeleteSession removes the session of profile. Missing sessions are not
	// an error.
	DeleteSession(ctx context.Context, profile string) error
}

type Attempts interface {
	// RecordAttempt appends a to the journal.
	RecordAttempt(ctx context.Context, a domain.Attempt) error

	// ListAttempts returns up to limit attempts, newest first. A limit of
	// zero or less returns every attempt.
	ListAttempts(ctx context.Context, limit int) ([]domain.Attempt, error)

	// DeleteAttemptsBefore prunes attempts older than cutoff and reports how
	// many were removed.
	DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
