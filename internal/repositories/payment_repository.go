package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wedhub/internal/models"
	"wedhub/internal/utils"
)

const paymentColumns = `id, invoice_id, inquiry_id, user_id, vendor_id, amount, currency, method, status,
	provider, provider_ref, provider_metadata, processed_at, failure_reason, refund_amount, refunded_at,
	created_at, updated_at`

type PaymentRepository struct {
	DB *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{DB: db}
}

func marshalMetadata(m map[string]string) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	var (
		p           models.Payment
		metadata    []byte
		processedAt sql.NullTime
		refundedAt  sql.NullTime
		refund      decimal.NullDecimal
	)
	err := row.Scan(
		&p.ID, &p.InvoiceID, &p.InquiryID, &p.UserID, &p.VendorID, &p.Amount, &p.Currency, &p.Method, &p.Status,
		&p.Provider, &p.ProviderRef, &metadata, &processedAt, &p.FailureReason, &refund, &refundedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.ProviderMetadata); err != nil {
			return nil, fmt.Errorf("decode provider_metadata: %w", err)
		}
		if len(p.ProviderMetadata) == 0 {
			p.ProviderMetadata = nil
		}
	}
	p.ProcessedAt = timePtr(processedAt)
	p.RefundedAt = timePtr(refundedAt)
	if refund.Valid {
		v := refund.Decimal
		p.RefundAmount = &v
	}
	return &p, nil
}

func (r *PaymentRepository) CreatePayment(ctx context.Context, p *models.Payment) error {
	metadata, err := marshalMetadata(p.ProviderMetadata)
	if err != nil {
		return fmt.Errorf("payment create: %w", err)
	}
	const q = `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err = r.DB.ExecContext(ctx, q,
		p.ID, p.InvoiceID, p.InquiryID, p.UserID, p.VendorID, p.Amount, p.Currency, p.Method, p.Status,
		p.Provider, p.ProviderRef, metadata, nullTime(p.ProcessedAt), p.FailureReason,
		nullDecimal(p.RefundAmount), nullTime(p.RefundedAt), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return wrapErr("payment create", err)
	}
	return nil
}

func (r *PaymentRepository) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	p, err := scanPayment(r.DB.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("payment get: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) GetPaymentByProviderRef(ctx context.Context, provider, ref string) (*models.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE provider = $1 AND provider_ref = $2
		ORDER BY created_at DESC LIMIT 1`
	p, err := scanPayment(r.DB.QueryRowContext(ctx, q, provider, ref))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("payment get by provider ref: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) UpdatePayment(ctx context.Context, p *models.Payment) error {
	metadata, err := marshalMetadata(p.ProviderMetadata)
	if err != nil {
		return fmt.Errorf("payment update: %w", err)
	}
	const q = `
		UPDATE payments
		SET status = $2, provider_ref = $3, provider_metadata = $4, processed_at = $5,
		    failure_reason = $6, refund_amount = $7, refunded_at = $8, updated_at = $9
		WHERE id = $1
	`
	res, err := r.DB.ExecContext(ctx, q,
		p.ID, p.Status, p.ProviderRef, metadata, nullTime(p.ProcessedAt),
		p.FailureReason, nullDecimal(p.RefundAmount), nullTime(p.RefundedAt), p.UpdatedAt,
	)
	if err != nil {
		return wrapErr("payment update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: payment %s", utils.ErrNotFound, p.ID)
	}
	return nil
}
