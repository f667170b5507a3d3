package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/medportal/phoneauth/internal/login/store"
)

// DefaultMaxAttempts caps the attempts journal list.
const DefaultMaxAttempts = 500

// cmdable is the subset of the go-redis client the store uses.
type cmdable interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
	LPush(ctx context.Context, key string, values ...interface{}) *goredis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *goredis.StatusCmd
	LRange(ctx context.Context, key string, start, stop int64) *goredis.StringSliceCmd
	Ping(ctx context.Context) *goredis.StatusCmd
}

// Options configures NewStore.
type Options struct {
	Addr     string
	Password string
	DB       int

	// Prefix namespaces every key. Defaults to "phoneauth:".
	Prefix string

	// MaxAttempts caps the journal. Defaults to DefaultMaxAttempts.
	MaxAttempts int
}

// Store keeps sessions and the attempts journal in Redis so several machines
// can share one login.
type Store struct {
	client      cmdable
	close       func() error
	prefix      string
	maxAttempts int64
}

var _ store.Store = (*Store)(nil)

// NewStore connects to Redis and verifies the connection.
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	s := newStore(client, opts.Prefix, opts.MaxAttempts)
	s.close = client.Close

	if err := s.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return s, nil
}

func newStore(client cmdable, prefix string, maxAttempts int) *Store {
	if prefix == "" {
		prefix = "phoneauth:"
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Store{
		client:      client,
		close:       func() error { return nil },
		prefix:      prefix,
		maxAttempts: int64(maxAttempts),
	}
}

func (s *Store) Sessions() store.Sessions { return &sessionsRepo{s: s} }
func (s *Store) Attempts() store.Attempts { return &attemptsRepo{s: s} }

// ApplyMigrations is a no-op; Redis has no schema.
func (s *Store) ApplyMigrations() error { return nil }

func (s *Store) Close() error { return s.close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) sessionKey(profile string) string { return s.prefix + "session:" + profile }
func (s *Store) attemptsKey() string              { return s.prefix + "attempts" }

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
