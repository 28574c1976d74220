package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
)

// SignInAttempts counts failed sign-ins per normalized email. It lives in
// the identity store next to principals but is keyed by email, so unknown
// addresses are throttled exactly like known ones.
type SignInAttempts struct {
	Email        string
	AttemptCount int
	LockedUntil  *time.Time
	UpdatedAt    time.Time
	CreatedAt    time.Time
}

type SignInAttemptsRepository interface {
	// RecordFailure counts one failure. A failure outside window restarts
	// the count; reaching maxAttempts inside it locks the email for lockFor.
	RecordFailure(ctx context.Context, email string, now time.Time, lockFor, window time.Duration, maxAttempts int) (*SignInAttempts, error)
	LockedUntil(ctx context.Context, email string, now time.Time) (*time.Time, error)
	Reset(ctx context.Context, email string) error
	PurgeStale(ctx context.Context, before time.Time) (int64, error)
}

type signInAttemptsRepo struct {
	db DB
}

func NewSignInAttemptsRepository(db DB) SignInAttemptsRepository {
	return &signInAttemptsRepo{db: db}
}

func (r *signInAttemptsRepo) RecordFailure(
	ctx context.Context,
	email string,
	now time.Time,
	lockFor, window time.Duration,
	maxAttempts int,
) (*SignInAttempts, error) {
	// SET expressions read the pre-update row.
	query := `
INSERT INTO sign_in_attempts (email, attempt_count, locked_until, updated_at, created_at)
VALUES ($1, 1, CASE WHEN 1 >= $5 THEN $2::timestamptz + $3::interval ELSE NULL END, $2, $2)
ON CONFLICT (email) DO UPDATE
SET attempt_count = CASE
        WHEN sign_in_attempts.locked_until IS NOT NULL AND sign_in_attempts.locked_until > $2
            THEN sign_in_attempts.attempt_count
        WHEN ($2::timestamptz - sign_in_attempts.updated_at) > $4::interval
            THEN 1
        ELSE sign_in_attempts.attempt_count + 1
    END,
    locked_until = CASE
        WHEN sign_in_attempts.locked_until IS NOT NULL AND sign_in_attempts.locked_until > $2
            THEN sign_in_attempts.locked_until
        WHEN ($2::timestamptz - sign_in_attempts.updated_at) <= $4::interval
             AND sign_in_attempts.attempt_count + 1 >= $5
            THEN $2::timestamptz + $3::interval
        ELSE NULL
    END,
    updated_at = $2
RETURNING email, attempt_count, locked_until, updated_at, created_at
`
	a := &SignInAttempts{}
	err := r.db.QueryRow(ctx, query, email, now, lockFor, window, maxAttempts).Scan(
		&a.Email,
		&a.AttemptCount,
		&a.LockedUntil,
		&a.UpdatedAt,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *signInAttemptsRepo) LockedUntil(ctx context.Context, email string, now time.Time) (*time.Time, error) {
	var lockedUntil *time.Time
	err := r.db.QueryRow(ctx,
		`SELECT locked_until FROM sign_in_attempts WHERE email = $1`, email,
	).Scan(&lockedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if lockedUntil != nil && lockedUntil.After(now) {
		return lockedUntil, nil
	}
	return nil, nil
}

func (r *signInAttemptsRepo) Reset(ctx context.Context, email string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM sign_in_attempts WHERE email = $1`, email)
	return err
}

// PurgeStale deletes counters untouched since before whose lock, if any,
// has also expired.
func (r *signInAttemptsRepo) PurgeStale(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM sign_in_attempts
		 WHERE updated_at < $1
		   AND (locked_until IS NULL OR locked_until < $1)`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
