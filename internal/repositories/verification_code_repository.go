package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wedhub/internal/models"
	"wedhub/internal/utils"
)

type VerificationCodeRepository struct {
	DB *sql.DB
}

func NewVerificationCodeRepository(db *sql.DB) *VerificationCodeRepository {
	return &VerificationCodeRepository{DB: db}
}

// Issue: троттлинг, инвалидация старых кодов и вставка нового в одной
// транзакции. Advisory lock сериализует параллельные выдачи для пары
// (email, purpose).
func (r *VerificationCodeRepository) Issue(ctx context.Context, code *models.VerificationCode, since time.Time, maxRecent int) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("verification_code issue begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`,
		code.Email+"|"+string(code.Purpose),
	); err != nil {
		return fmt.Errorf("verification_code issue lock: %w", err)
	}

	var recent int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM verification_codes
		WHERE email = $1 AND purpose = $2 AND created_at >= $3
	`, code.Email, code.Purpose, since).Scan(&recent); err != nil {
		return fmt.Errorf("verification_code count recent: %w", err)
	}
	if recent >= maxRecent {
		return fmt.Errorf("%w: %d codes issued since %s", utils.ErrRateLimited, recent, since.Format(time.RFC3339))
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE verification_codes
		SET verified = TRUE
		WHERE email = $1 AND purpose = $2 AND verified = FALSE
	`, code.Email, code.Purpose); err != nil {
		return fmt.Errorf("verification_code invalidate: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO verification_codes (id, email, code_hash, purpose, user_id, expires_at, verified, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, 0, $7)
	`, code.ID, code.Email, code.CodeHash, code.Purpose, code.UserID, code.ExpiresAt, code.CreatedAt); err != nil {
		return wrapErr("verification_code insert", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("verification_code issue commit: %w", err)
	}
	return nil
}

func (r *VerificationCodeRepository) FindActive(ctx context.Context, email string, purpose models.CodePurpose, codeHash string, now time.Time) (*models.VerificationCode, error) {
	const q = `
		SELECT id, email, code_hash, purpose, user_id, expires_at, verified, attempts, created_at
		FROM verification_codes
		WHERE email = $1 AND purpose = $2 AND code_hash = $3
		  AND verified = FALSE AND expires_at > $4
		ORDER BY created_at DESC
		LIMIT 1
	`
	var v models.VerificationCode
	err := r.DB.QueryRowContext(ctx, q, email, purpose, codeHash, now).Scan(
		&v.ID, &v.Email, &v.CodeHash, &v.Purpose, &v.UserID, &v.ExpiresAt, &v.Verified, &v.Attempts, &v.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("verification_code find active: %w", err)
	}
	return &v, nil
}

// RecordFailedAttempt: +1 попытка строкам с этим хэшем и последнему активному коду пары.
func (r *VerificationCodeRepository) RecordFailedAttempt(ctx context.Context, email string, purpose models.CodePurpose, codeHash string, now time.Time) error {
	const q = `
		UPDATE verification_codes
		SET attempts = attempts + 1
		WHERE email = $1 AND purpose = $2
		  AND (code_hash = $3 OR id = (
		      SELECT id FROM verification_codes
		      WHERE email = $1 AND purpose = $2 AND verified = FALSE AND expires_at > $4
		      ORDER BY created_at DESC
		      LIMIT 1
		  ))
	`
	if _, err := r.DB.ExecContext(ctx, q, email, purpose, codeHash, now); err != nil {
		return fmt.Errorf("verification_code record attempt: %w", err)
	}
	return nil
}

func (r *VerificationCodeRepository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE verification_codes SET verified = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("verification_code mark verified: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: verification code %s", utils.ErrNotFound, id)
	}
	return nil
}
