package redis

import (
	"context"
	"encoding/json"
	"errors"

	goredis "github.com/redis/go-redis/v9"

	"github.com/medportal/phoneauth/internal/login/domain"
	"github.com/medportal/phoneauth/internal/login/store"
)

type sessionRecord struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	UserID       string `json:"user_id"`
	Phone        string `json:"phone"`
	UpdatedAt    int64  `json:"updated_at"`
}

type sessionsRepo struct {
	s *Store
}

func (r *sessionsRepo) GetSession(ctx context.Context, profile string) (domain.Session, error) {
	raw, err := r.s.client.Get(ctx, r.s.sessionKey(profile)).Result()
	if errors.Is(err, goredis.Nil) {
		return domain.Session{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}

	var rec sessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return domain.Session{}, err
	}

	return domain.Session{
		Profile:      profile,
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		ExpiresAt:    fromMillis(rec.ExpiresAt),
		UserID:       rec.UserID,
		Phone:        rec.Phone,
		UpdatedAt:    fromMillis(rec.UpdatedAt),
	}, nil
}

func (r *sessionsRepo) PutSession(ctx context.Context, s domain.Session) error {
	raw, err := json.Marshal(sessionRecord{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    toMillis(s.ExpiresAt),
		UserID:       s.UserID,
		Phone:        s.Phone,
		UpdatedAt:    toMillis(s.UpdatedAt),
	})
	if err != nil {
		return err
	}
	return r.s.client.Set(ctx, r.s.sessionKey(s.Profile), raw, 0).Err()
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, profile string) error {
	return r.s.client.Del(ctx, r.s.sessionKey(profile)).Err()
}
