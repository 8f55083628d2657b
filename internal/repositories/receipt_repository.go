package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"wedhub/internal/models"
	"wedhub/internal/utils"
)

const receiptColumns = `id, payment_id, invoice_id, submitted_by, receipt_image_url, receipt_number,
	payment_provider, phone_number, amount, currency, payment_date, notes, status,
	reviewed_by, reviewed_at, review_notes, created_at`

type ReceiptRepository struct {
	DB *sql.DB
}

func NewReceiptRepository(db *sql.DB) *ReceiptRepository {
	return &ReceiptRepository{DB: db}
}

func (r *ReceiptRepository) CreateReceipt(ctx context.Context, rc *models.PaymentReceipt) error {
	const q = `
		INSERT INTO payment_receipts (` + receiptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.DB.ExecContext(ctx, q,
		rc.ID, rc.PaymentID, rc.InvoiceID, rc.SubmittedBy, rc.ReceiptImageURL, rc.ReceiptNumber,
		rc.PaymentProvider, rc.PhoneNumber, rc.Amount, rc.Currency, nullTime(rc.PaymentDate), rc.Notes, rc.Status,
		uuid.NullUUID{}, sql.NullTime{}, rc.ReviewNotes, rc.CreatedAt,
	)
	if err != nil {
		return wrapErr("receipt create", err)
	}
	return nil
}

func (r *ReceiptRepository) GetReceipt(ctx context.Context, id uuid.UUID) (*models.PaymentReceipt, error) {
	var (
		rc          models.PaymentReceipt
		paymentDate sql.NullTime
		reviewedBy  uuid.NullUUID
		reviewedAt  sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, `SELECT `+receiptColumns+` FROM payment_receipts WHERE id = $1`, id).Scan(
		&rc.ID, &rc.PaymentID, &rc.InvoiceID, &rc.SubmittedBy, &rc.ReceiptImageURL, &rc.ReceiptNumber,
		&rc.PaymentProvider, &rc.PhoneNumber, &rc.Amount, &rc.Currency, &paymentDate, &rc.Notes, &rc.Status,
		&reviewedBy, &reviewedAt, &rc.ReviewNotes, &rc.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("receipt get: %w", err)
	}
	rc.PaymentDate = timePtr(paymentDate)
	rc.ReviewedAt = timePtr(reviewedAt)
	if reviewedBy.Valid {
		v := reviewedBy.UUID
		rc.ReviewedBy = &v
	}
	return &rc, nil
}

func (r *ReceiptRepository) HasVerifiedReceipt(ctx context.Context, paymentID uuid.UUID) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM payment_receipts WHERE payment_id = $1 AND status = 'verified')`,
		paymentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("receipt has verified: %w", err)
	}
	return exists, nil
}

// UpdateReceiptReview: второй verified-чек по платежу отсекает индекс
// payment_receipts_one_verified (23505 -> ErrConflict).
func (r *ReceiptRepository) UpdateReceiptReview(ctx context.Context, rc *models.PaymentReceipt) error {
	var reviewedBy uuid.NullUUID
	if rc.ReviewedBy != nil {
		reviewedBy = uuid.NullUUID{UUID: *rc.ReviewedBy, Valid: true}
	}
	const q = `
		UPDATE payment_receipts
		SET status = $2, reviewed_by = $3, reviewed_at = $4, review_notes = $5
		WHERE id = $1
	`
	res, err := r.DB.ExecContext(ctx, q, rc.ID, rc.Status, reviewedBy, nullTime(rc.ReviewedAt), rc.ReviewNotes)
	if err != nil {
		return wrapErr("receipt review", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: receipt %s", utils.ErrNotFound, rc.ID)
	}
	return nil
}
