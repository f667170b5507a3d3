package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/medportal/phoneauth/internal/login/store"
	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	dsn string
}

var _ store.Store = (*Store)(nil)

// NewStore opens the database at dsn. A single connection is used so an
// in-memory database survives between statements and writers never contend.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Sessions() store.Sessions { return &sessionsRepo{db: s.db} }
func (s *Store) Attempts() store.Attempts { return &attemptsRepo{db: s.db} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// Times are stored as unix milliseconds; 0 stands for the zero time.
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
