package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/videohub/internal/apperror"
	"github.com/sakif/videohub/internal/model"
	"github.com/sakif/videohub/internal/repository"
)

// VerificationDB stores email codes and the per-day issuance counters.
type VerificationDB struct {
	conn *sql.DB
}

var _ repository.VerificationRepository = (*VerificationDB)(nil)

func (db *DB) Verifications() *VerificationDB {
	return &VerificationDB{conn: db.conn}
}

func (s *VerificationDB) CreateCode(ctx context.Context, v *model.EmailVerification) error {
	if v.ID == "" {
		v.ID = xid.New().String()
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO email_verifications (id, user_id, code, created_at, expires_at, is_used)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.UserID, v.Code, v.CreatedAt.UTC(), v.ExpiresAt.UTC(), v.IsUsed,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting verification code for user %s: %w", v.UserID, err)
	}
	return nil
}

// LatestUnused picks the newest unused row. Expiry is left to the caller
// so it can tell "expired" apart from "no such code".
func (s *VerificationDB) LatestUnused(ctx context.Context, userID, code string) (*model.EmailVerification, error) {
	var v model.EmailVerification
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, user_id, code, created_at, expires_at, is_used
		 FROM email_verifications
		 WHERE user_id = ? AND code = ? AND is_used = 0
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		userID, code,
	).Scan(&v.ID, &v.UserID, &v.Code, &v.CreatedAt, &v.ExpiresAt, &v.IsUsed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("verification code", code)
		}
		return nil, fmt.Errorf("sqlite: looking up verification code: %w", err)
	}
	return &v, nil
}

// Consume flips is_used and the user's verified flag together. The
// is_used = 0 guard makes a second consumer of the same row lose.
func (s *VerificationDB) Consume(ctx context.Context, codeID, userID string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning consume tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE email_verifications SET is_used = 1 WHERE id = ? AND user_id = ? AND is_used = 0`,
		codeID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking code %s used: %w", codeID, err)
	}
	if err := checkAffected(result, apperror.NotFound("verification code", codeID)); err != nil {
		return err
	}

	result, err = tx.ExecContext(ctx,
		`UPDATE users SET is_email_verified = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking user %s verified: %w", userID, err)
	}
	if err := checkAffected(result, apperror.NotFound("user", userID)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing consume tx: %w", err)
	}
	return nil
}

// GetAttempt returns the counter for (userID, date), zero when absent.
func (s *VerificationDB) GetAttempt(ctx context.Context, userID, date string) (model.VerificationAttempt, error) {
	a := model.VerificationAttempt{UserID: userID, Date: date}
	err := s.conn.QueryRowContext(ctx,
		`SELECT count FROM verification_attempts WHERE user_id = ? AND date = ?`,
		userID, date,
	).Scan(&a.Count)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return a, fmt.Errorf("sqlite: reading verification attempts: %w", err)
	}
	return a, nil
}

// SaveAttempt writes the counter value computed by the caller. It does not
// increment in SQL, so two concurrent read-modify-write cycles can lose an
// increment.
func (s *VerificationDB) SaveAttempt(ctx context.Context, a model.VerificationAttempt) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO verification_attempts (user_id, date, count) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, date) DO UPDATE SET count = excluded.count`,
		a.UserID, a.Date, a.Count,
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving verification attempts: %w", err)
	}
	return nil
}
