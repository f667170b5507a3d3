package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/medportal/phoneauth/internal/login/domain"
)

type attemptRecord struct {
	ID        string `json:"id"`
	Profile   string `json:"profile"`
	Phone     string `json:"phone"`
	SessionID string `json:"session_id,omitempty"`
	Outcome   string `json:"outcome"`
	ErrorKind string `json:"error_kind,omitempty"`
	At        int64  `json:"at"`
}

// attemptsRepo keeps the journal as a capped list, newest at the head.
type attemptsRepo struct {
	s *Store
}

func (r *attemptsRepo) RecordAttempt(ctx context.Context, a domain.Attempt) error {
	raw, err := json.Marshal(attemptRecord{
		ID:        a.ID,
		Profile:   a.Profile,
		Phone:     a.Phone,
		SessionID: a.SessionID,
		Outcome:   string(a.Outcome),
		ErrorKind: a.ErrorKind,
		At:        toMillis(a.At),
	})
	if err != nil {
		return err
	}

	key := r.s.attemptsKey()
	if err := r.s.client.LPush(ctx, key, raw).Err(); err != nil {
		return err
	}
	return r.s.client.LTrim(ctx, key, 0, r.s.maxAttempts-1).Err()
}

func (r *attemptsRepo) ListAttempts(ctx context.Context, limit int) ([]domain.Attempt, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	return r.list(ctx, stop)
}

// DeleteAttemptsBefore relies on the list being ordered newest first: the
// first entry older than cutoff and everything after it is trimmed.
func (r *attemptsRepo) DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	all, err := r.list(ctx, -1)
	if err != nil {
		return 0, err
	}

	keep := len(all)
	for i, a := range all {
		if a.At.Before(cutoff) {
			keep = i
			break
		}
	}
	removed := int64(len(all) - keep)
	if removed == 0 {
		return 0, nil
	}

	key := r.s.attemptsKey()
	if keep == 0 {
		err = r.s.client.Del(ctx, key).Err()
	} else {
		err = r.s.client.LTrim(ctx, key, 0, int64(keep)-1).Err()
	}
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (r *attemptsRepo) list(ctx context.Context, stop int64) ([]domain.Attempt, error) {
	raws, err := r.s.client.LRange(ctx, r.s.attemptsKey(), 0, stop).Result()
	if err != nil {
		return nil, err
	}

	out := make([]domain.Attempt, 0, len(raws))
	for _, raw := range raws {
		var rec attemptRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode attempt: %w", err)
		}
		out = append(out, domain.Attempt{
			ID:        rec.ID,
			Profile:   rec.Profile,
			Phone:     rec.Phone,
			SessionID: rec.SessionID,
			Outcome:   domain.Outcome(rec.Outcome),
			ErrorKind: rec.ErrorKind,
			At:        fromMillis(rec.At),
		})
	}
	return out, nil
}
