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

const userColumns = `id, email, password_hash, first_name, last_name, phone, user_type,
	email_confirmed, email_confirmed_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

type UserRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u           models.User
		confirmedAt sql.NullTime
	)
	if err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone, &u.UserType,
		&u.EmailConfirmed, &confirmedAt, &u.CreatedAt,
	); err != nil {
		return nil, err
	}
	u.EmailConfirmedAt = timePtr(confirmedAt)
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	const q = `
		INSERT INTO users (id, email, password_hash, first_name, last_name, phone, user_type,
			email_confirmed, email_confirmed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.DB.ExecContext(ctx, q,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, u.UserType,
		u.EmailConfirmed, nullTime(u.EmailConfirmedAt), u.CreatedAt,
	)
	if err != nil {
		return wrapErr("user create", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user get by id: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user get by email: %w", err)
	}
	return u, nil
}

func (r *UserRepository) ConfirmEmail(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET email_confirmed = TRUE, email_confirmed_at = COALESCE(email_confirmed_at, $2) WHERE id = $1`,
		id, at)
	if err != nil {
		return fmt.Errorf("user confirm email: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: user %s", utils.ErrNotFound, id)
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("user update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: user %s", utils.ErrNotFound, id)
	}
	return nil
}

type ProfileRepository struct {
	DB *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{DB: db}
}

// Upsert creates the profile row or refreshes its contact fields.
func (r *ProfileRepository) Upsert(ctx context.Context, p *models.Profile) error {
	const q = `
		INSERT INTO profiles (user_id, email, first_name, last_name, phone, user_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE
		SET email = EXCLUDED.email,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    phone = EXCLUDED.phone
	`
	_, err := r.DB.ExecContext(ctx, q, p.UserID, p.Email, p.FirstName, p.LastName, p.Phone, p.UserType, p.CreatedAt)
	if err != nil {
		return wrapErr("profile upsert", err)
	}
	return nil
}
