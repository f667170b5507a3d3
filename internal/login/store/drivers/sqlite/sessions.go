package sqlite

import (
	"context"
	"database/sql"

	"github.com/medportal/phoneauth/internal/login/domain"
)

type sessionsRepo struct {
	db *sql.DB
}

const getSession = `
SELECT profile, access_token, refresh_token, expires_at, user_id, phone, updated_at
FROM sessions
WHERE profile = ?`

func (r *sessionsRepo) GetSession(ctx context.Context, profile string) (domain.Session, error) {
	var (
		s                    domain.Session
		expiresAt, updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, getSession, profile).Scan(
		&s.Profile,
		&s.AccessToken,
		&s.RefreshToken,
		&expiresAt,
		&s.UserID,
		&s.Phone,
		&updatedAt,
	)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}

	s.ExpiresAt = fromMillis(expiresAt)
	s.UpdatedAt = fromMillis(updatedAt)
	return s, nil
}

const putSession = `
INSERT INTO sessions (profile, access_token, refresh_token, expires_at, user_id, phone, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (profile) DO UPDATE SET
    access_token  = excluded.access_token,
    refresh_token = excluded.refresh_token,
    expires_at    = excluded.expires_at,
    user_id       = excluded.user_id,
    phone         = excluded.phone,
    updated_at    = excluded.updated_at`

func (r *sessionsRepo) PutSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx, putSession,
		s.Profile,
		s.AccessToken,
		s.RefreshToken,
		toMillis(s.ExpiresAt),
		s.UserID,
		s.Phone,
		toMillis(s.UpdatedAt),
	)
	return err
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, profile string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE profile = ?`, profile)
	return err
}
