package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/dukerupert/prepper/internal/model"
)

// ResetTTL is how long a password reset code stays valid.
const ResetTTL = 15 * time.Minute

type PasswordResetStore struct {
	db DBTX
}

func NewPasswordResetStore(db DBTX) *PasswordResetStore {
	return &PasswordResetStore{db: db}
}

const resetCols = `id, user_id, code, expires_at, used_at, attempts, created_at`

// generateCode returns a 6-digit numeric code (100000–999999).
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Create issues a new reset code for the user. Earlier unused codes are
// invalidated first.
func (s *PasswordResetStore) Create(ctx context.Context, userID int64, now time.Time) (*model.PasswordReset, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE password_resets SET used_at = ? WHERE user_id = ? AND used_at IS NULL`,
		now, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("invalidate previous codes: %w", err)
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO password_resets (user_id, code, expires_at) VALUES (?, ?, ?)`,
		userID, code, now.Add(ResetTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("insert password reset: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	var pr model.PasswordReset
	if err := s.db.GetContext(ctx, &pr, `SELECT `+resetCols+` FROM password_resets WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("get password reset: %w", err)
	}
	return &pr, nil
}

// GetActive returns the newest unused, unexpired code for the user, or nil.
func (s *PasswordResetStore) GetActive(ctx context.Context, userID int64, now time.Time) (*model.PasswordReset, error) {
	var pr model.PasswordReset
	err := s.db.GetContext(ctx, &pr,
		`SELECT `+resetCols+` FROM password_resets
		 WHERE user_id = ? AND used_at IS NULL AND expires_at > ?
		 ORDER BY id DESC LIMIT 1`,
		userID, now,
	)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active password reset: %w", err)
	}
	return &pr, nil
}

// IncrementAttempts increments the attempt count and returns the new value.
func (s *PasswordResetStore) IncrementAttempts(ctx context.Context, id int64) (int, error) {
	var attempts int
	err := s.db.GetContext(ctx, &attempts,
		`UPDATE password_resets SET attempts = attempts + 1 WHERE id = ? RETURNING attempts`, id,
	)
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	return attempts, nil
}

func (s *PasswordResetStore) MarkUsed(ctx context.Context, id int64, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

func (s *PasswordResetStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM password_resets WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired password resets: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
