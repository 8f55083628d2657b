package services

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"wedhub/internal/models"
)

// Stores return (nil, nil) for missing rows and wrap utils.ErrConflict on
// uniqueness violations.

type CodeStore interface {
	// Issue counts codes created for (email, purpose) since `since`; at or above
	// maxRecent it fails with utils.ErrRateLimited. Otherwise it marks every
	// unverified code for the pair verified and inserts code, all in one step.
	Issue(ctx context.Context, code *models.VerificationCode, since time.Time, maxRecent int) error
	// FindActive returns the newest unverified, unexpired code with the hash.
	FindActive(ctx context.Context, email string, purpose models.CodePurpose, codeHash string, now time.Time) (*models.VerificationCode, error)
	// RecordFailedAttempt bumps attempts on rows carrying codeHash (expired or
	// not) and on the newest active code for the pair.
	RecordFailedAttempt(ctx context.Context, email string, purpose models.CodePurpose, codeHash string, now time.Time) error
	MarkVerified(ctx context.Context, id uuid.UUID) error
}

type AccountStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ConfirmEmail(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

type ProfileStore interface {
	Upsert(ctx context.Context, p *models.Profile) error
}

type InquiryStore interface {
	GetInquiry(ctx context.Context, id uuid.UUID) (*models.Inquiry, error)
}

type VendorStore interface {
	GetVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
}

type InvoiceStore interface {
	// CreateDraft assigns the invoice number and fails with utils.ErrConflict
	// when a DRAFT of the same type already exists for the inquiry.
	CreateDraft(ctx context.Context, inv *models.Invoice) error
	GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	UpdateInvoice(ctx context.Context, inv *models.Invoice) error
	ListInvoices(ctx context.Context, f models.InvoiceFilter) ([]*models.Invoice, error)
	// MarkOverdue moves PENDING and PARTIALLY_PAID invoices due before now to OVERDUE.
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}

type PaymentStore interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetPaymentByProviderRef(ctx context.Context, provider, ref string) (*models.Payment, error)
	UpdatePayment(ctx context.Context, p *models.Payment) error
}

type ReceiptStore interface {
	CreateReceipt(ctx context.Context, r *models.PaymentReceipt) error
	GetReceipt(ctx context.Context, id uuid.UUID) (*models.PaymentReceipt, error)
	HasVerifiedReceipt(ctx context.Context, paymentID uuid.UUID) (bool, error)
	// UpdateReceiptReview fails with utils.ErrConflict if another receipt of
	// the payment is already verified.
	UpdateReceiptReview(ctx context.Context, r *models.PaymentReceipt) error
}

type TelegramLinkStore interface {
	CreateLink(ctx context.Context, l *models.TelegramLink) error
	// ConsumeLink marks the link used and sets the vendor's chat in one step;
	// (nil, nil) when the code is unknown, already used or expired at now.
	// On error the code stays usable.
	ConsumeLink(ctx context.Context, code string, chatID int64, now time.Time) (*models.TelegramLink, error)
}

// CodeMailer delivers plaintext verification codes.
type CodeMailer interface {
	SendVerificationCode(ctx context.Context, email string, purpose models.CodePurpose, code string) error
}

// ReceiptNotifier tells the vendor about new receipts and the payer about reviews.
type ReceiptNotifier interface {
	ReceiptSubmitted(ctx context.Context, vendor *models.Vendor, r *models.PaymentReceipt) error
	ReceiptReviewed(ctx context.Context, r *models.PaymentReceipt) error
}

// ChatMessenger posts a message into a Telegram chat.
type ChatMessenger interface {
	SendMessage(chatID int64, text string) error
}

// InvoiceRenderer produces the printable invoice document.
type InvoiceRenderer interface {
	RenderInvoice(w io.Writer, inv *models.Invoice, vendor *models.Vendor) error
}
