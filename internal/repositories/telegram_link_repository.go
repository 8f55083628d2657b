package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wedhub/internal/models"
	"wedhub/internal/utils"
)

type TelegramLinkRepository struct {
	DB *sql.DB
}

func NewTelegramLinkRepository(db *sql.DB) *TelegramLinkRepository {
	return &TelegramLinkRepository{DB: db}
}

func (r *TelegramLinkRepository) CreateLink(ctx context.Context, l *models.TelegramLink) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO telegram_links (id, vendor_id, code, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
	`, l.ID, l.VendorID, l.Code, l.ExpiresAt, l.CreatedAt)
	if err != nil {
		return wrapErr("telegram link create", err)
	}
	return nil
}

// ConsumeLink: код гасится и чат вендора проставляется в одной транзакции,
// при ошибке код остаётся рабочим.
func (r *TelegramLinkRepository) ConsumeLink(ctx context.Context, code string, chatID int64, now time.Time) (*models.TelegramLink, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram link begin: %w", err)
	}
	defer tx.Rollback()

	var l models.TelegramLink
	err = tx.QueryRowContext(ctx, `
		SELECT id, vendor_id, code, expires_at, used, created_at
		FROM telegram_links
		WHERE code = $1
		FOR UPDATE
	`, code).Scan(&l.ID, &l.VendorID, &l.Code, &l.ExpiresAt, &l.Used, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("telegram link lookup: %w", err)
	}
	if l.Used || now.After(l.ExpiresAt) {
		return nil, nil
	}

	res, err := tx.ExecContext(ctx, `UPDATE vendors SET telegram_chat_id = $2 WHERE id = $1`, l.VendorID, chatID)
	if err != nil {
		return nil, wrapErr("vendor telegram chat", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: vendor %s", utils.ErrNotFound, l.VendorID)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE telegram_links SET used = TRUE WHERE id = $1`, l.ID); err != nil {
		return nil, fmt.Errorf("telegram link use: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("telegram link commit: %w", err)
	}
	l.Used = true
	return &l, nil
}
