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

const invoiceColumns = `i.id, i.inquiry_id, i.vendor_id, i.user_id, i.invoice_number, i.type, i.status,
	i.subtotal, i.tax_amount, i.discount_amount, i.total_amount, i.paid_amount, i.currency,
	i.description, i.notes, i.issue_date, i.due_date, i.created_at, i.updated_at`

type InvoiceRepository struct {
	DB *sql.DB
}

func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{DB: db}
}

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	var inv models.Invoice
	err := row.Scan(
		&inv.ID, &inv.InquiryID, &inv.VendorID, &inv.UserID, &inv.InvoiceNumber, &inv.Type, &inv.Status,
		&inv.Subtotal, &inv.TaxAmount, &inv.DiscountAmount, &inv.TotalAmount, &inv.PaidAmount, &inv.Currency,
		&inv.Description, &inv.Notes, &inv.IssueDate, &inv.DueDate, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// CreateDraft: номер берётся из последовательности, уникальность черновика
// обеспечивает частичный индекс invoices_one_draft_per_type.
func (r *InvoiceRepository) CreateDraft(ctx context.Context, inv *models.Invoice) error {
	const q = `
		INSERT INTO invoices (
			id, inquiry_id, vendor_id, user_id, invoice_number, type, status,
			subtotal, tax_amount, discount_amount, total_amount, paid_amount, currency,
			description, notes, issue_date, due_date, created_at, updated_at
		)
		VALUES (
			$1, $2, $3, $4,
			'INV-' || to_char($15::timestamptz, 'YYYY') || '-' || lpad(nextval('invoice_number_seq')::text, 6, '0'),
			$5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
		)
		RETURNING invoice_number
	`
	err := r.DB.QueryRowContext(ctx, q,
		inv.ID, inv.InquiryID, inv.VendorID, inv.UserID,
		inv.Type, inv.Status,
		inv.Subtotal, inv.TaxAmount, inv.DiscountAmount, inv.TotalAmount, inv.PaidAmount, inv.Currency,
		inv.Description, inv.Notes, inv.IssueDate, inv.DueDate, inv.CreatedAt, inv.UpdatedAt,
	).Scan(&inv.InvoiceNumber)
	if err != nil {
		return wrapErr("invoice create", err)
	}
	return nil
}

func (r *InvoiceRepository) GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	inv, err := scanInvoice(r.DB.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices i WHERE i.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invoice get: %w", err)
	}
	return inv, nil
}

func (r *InvoiceRepository) UpdateInvoice(ctx context.Context, inv *models.Invoice) error {
	const q = `
		UPDATE invoices
		SET status = $2, subtotal = $3, tax_amount = $4, discount_amount = $5, total_amount = $6,
		    paid_amount = $7, description = $8, notes = $9, due_date = $10, updated_at = $11
		WHERE id = $1
	`
	res, err := r.DB.ExecContext(ctx, q,
		inv.ID, inv.Status, inv.Subtotal, inv.TaxAmount, inv.DiscountAmount, inv.TotalAmount,
		inv.PaidAmount, inv.Description, inv.Notes, inv.DueDate, inv.UpdatedAt,
	)
	if err != nil {
		return wrapErr("invoice update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: invoice %s", utils.ErrNotFound, inv.ID)
	}
	return nil
}

func (r *InvoiceRepository) ListInvoices(ctx context.Context, f models.InvoiceFilter) ([]*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices i JOIN vendors v ON v.id = i.vendor_id WHERE 1=1`
	args := []interface{}{}
	i := 1

	if f.Status != "" {
		query += fmt.Sprintf(" AND i.status = $%d", i)
		args = append(args, f.Status)
		i++
	}
	if f.UserID != uuid.Nil {
		query += fmt.Sprintf(" AND i.user_id = $%d", i)
		args = append(args, f.UserID)
		i++
	}
	if f.VendorOwnerID != uuid.Nil {
		query += fmt.Sprintf(" AND v.owner_id = $%d", i)
		args = append(args, f.VendorOwnerID)
		i++
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" ORDER BY i.created_at DESC LIMIT $%d OFFSET $%d", i, i+1)
	args = append(args, limit, f.Offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("invoice list: %w", err)
	}
	defer rows.Close()

	var out []*models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("invoice list scan: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *InvoiceRepository) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	const q = `
		UPDATE invoices
		SET status = 'OVERDUE', updated_at = $1
		WHERE status IN ('PENDING', 'PARTIALLY_PAID') AND due_date < $1
	`
	res, err := r.DB.ExecContext(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("invoice mark overdue: %w", err)
	}
	return res.RowsAffected()
}
