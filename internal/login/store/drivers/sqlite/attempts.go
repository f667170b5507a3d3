package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/medportal/phoneauth/internal/login/domain"
)

type attemptsRepo struct {
	db *sql.DB
}

const recordAttempt = `
INSERT INTO attempts (id, profile, phone, session_id, outcome, error_kind, at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (r *attemptsRepo) RecordAttempt(ctx context.Context, a domain.Attempt) error {
	_, err := r.db.ExecContext(ctx, recordAttempt,
		a.ID,
		a.Profile,
		a.Phone,
		a.SessionID,
		string(a.Outcome),
		a.ErrorKind,
		toMillis(a.At),
	)
	return err
}

// SQLite treats a negative LIMIT as no limit.
const listAttempts = `
SELECT id, profile, phone, session_id, outcome, error_kind, at
FROM attempts
ORDER BY at DESC, id DESC
LIMIT ?`

func (r *attemptsRepo) ListAttempts(ctx context.Context, limit int) ([]domain.Attempt, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx, listAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Attempt
	for rows.Next() {
		var (
			a       domain.Attempt
			outcome string
			at      int64
		)
		if err := rows.Scan(&a.ID, &a.Profile, &a.Phone, &a.SessionID, &outcome, &a.ErrorKind, &at); err != nil {
			return nil, err
		}
		a.Outcome = domain.Outcome(outcome)
		a.At = fromMillis(at)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *attemptsRepo) DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attempts WHERE at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
