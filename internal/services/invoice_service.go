package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wedhub/internal/authz"
	"wedhub/internal/logging"
	"wedhub/internal/models"
	"wedhub/internal/utils"
)

const defaultDueIn = 7 * 24 * time.Hour

type CreateInvoiceInput struct {
	InquiryID      uuid.UUID
	Type           models.InvoiceType
	Subtotal       decimal.Decimal
	TaxAmount      *decimal.Decimal
	DiscountAmount *decimal.Decimal
	Currency       string
	DueDate        *time.Time
	Description    string
	Notes          string
}

// InvoicePatch holds the fields of a partial update; nil means untouched.
type InvoicePatch struct {
	Subtotal       *decimal.Decimal
	TaxAmount      *decimal.Decimal
	DiscountAmount *decimal.Decimal
	Status         *models.InvoiceStatus
	DueDate        *time.Time
	Description    *string
	Notes          *string
}

func (p InvoicePatch) touchesAmounts() bool {
	return p.Subtotal != nil || p.TaxAmount != nil || p.DiscountAmount != nil
}

type InvoiceService struct {
	Invoices        InvoiceStore
	Inquiries       InquiryStore
	Vendors         VendorStore
	DefaultCurrency string
	Renderer        InvoiceRenderer
	Clock           func() time.Time
}

func NewInvoiceService(invoices InvoiceStore, inquiries InquiryStore, vendors VendorStore, defaultCurrency string) *InvoiceService {
	defaultCurrency = strings.ToUpper(strings.TrimSpace(defaultCurrency))
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	return &InvoiceService{
		Invoices:        invoices,
		Inquiries:       inquiries,
		Vendors:         vendors,
		DefaultCurrency: defaultCurrency,
		Clock:           time.Now,
	}
}

func (s *InvoiceService) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

func validateAmounts(subtotal, tax, discount decimal.Decimal) error {
	if !models.IsMoney(subtotal) || !models.IsMoney(tax) || !models.IsMoney(discount) {
		return fmt.Errorf("%w: amounts allow at most %d decimal places", utils.ErrValidation, models.MoneyPlaces)
	}
	if !subtotal.IsPositive() {
		return fmt.Errorf("%w: subtotal must be greater than 0", utils.ErrValidation)
	}
	if tax.IsNegative() {
		return fmt.Errorf("%w: taxAmount must not be negative", utils.ErrValidation)
	}
	if discount.IsNegative() {
		return fmt.Errorf("%w: discountAmount must not be negative", utils.ErrValidation)
	}
	if models.InvoiceTotal(subtotal, tax, discount).IsNegative() {
		return fmt.Errorf("%w: discount exceeds subtotal plus tax", utils.ErrValidation)
	}
	return nil
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// ownedVendor loads the vendor and checks the actor owns it.
func (s *InvoiceService) ownedVendor(ctx context.Context, actor authz.Actor, vendorID uuid.UUID) (*models.Vendor, error) {
	vendor, err := s.Vendors.GetVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	if vendor == nil {
		return nil, fmt.Errorf("%w: vendor not found", utils.ErrNotFound)
	}
	if vendor.OwnerID != actor.UserID {
		return nil, fmt.Errorf("%w: only the vendor owner can manage its invoices", utils.ErrForbidden)
	}
	return vendor, nil
}

func (s *InvoiceService) Create(ctx context.Context, actor authz.Actor, in CreateInvoiceInput) (*models.Invoice, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown invoice type %q", utils.ErrValidation, in.Type)
	}
	tax, discount := orZero(in.TaxAmount), orZero(in.DiscountAmount)
	if err := validateAmounts(in.Subtotal, tax, discount); err != nil {
		return nil, err
	}

	inquiry, err := s.Inquiries.GetInquiry(ctx, in.InquiryID)
	if err != nil {
		return nil, err
	}
	if inquiry == nil {
		return nil, fmt.Errorf("%w: inquiry not found", utils.ErrNotFound)
	}
	if _, err := s.ownedVendor(ctx, actor, inquiry.VendorID); err != nil {
		return nil, err
	}
	if inquiry.Status != models.InquiryStatusAccepted && inquiry.Status != models.InquiryStatusResponded {
		return nil, fmt.Errorf("%w: inquiry status %q does not allow invoicing", utils.ErrInvalidState, inquiry.Status)
	}

	now := s.now()
	dueDate := now.Add(defaultDueIn)
	if in.DueDate != nil {
		dueDate = *in.DueDate
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.DefaultCurrency
	}

	inv := &models.Invoice{
		ID:             uuid.New(),
		InquiryID:      inquiry.ID,
		VendorID:       inquiry.VendorID,
		UserID:         inquiry.UserID,
		Type:           in.Type,
		Status:         models.InvoiceDraft,
		Subtotal:       in.Subtotal,
		TaxAmount:      tax,
		DiscountAmount: discount,
		TotalAmount:    models.InvoiceTotal(in.Subtotal, tax, discount),
		PaidAmount:     decimal.Zero,
		Currency:       currency,
		Description:    in.Description,
		Notes:          in.Notes,
		IssueDate:      now,
		DueDate:        dueDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Invoices.CreateDraft(ctx, inv); err != nil {
		if errors.Is(err, utils.ErrConflict) {
			return nil, fmt.Errorf("%w: a draft %s invoice already exists for this inquiry", utils.ErrConflict, in.Type)
		}
		return nil, err
	}
	logging.Logger.Infof("[invoice][create] id=%s number=%s inquiry=%s type=%s total=%s",
		inv.ID, inv.InvoiceNumber, inv.InquiryID, inv.Type, inv.TotalAmount)
	return inv, nil
}

// Update applies patch. The total is always recomputed from the full triple,
// taking stored values for the fields the patch leaves out.
func (s *InvoiceService) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, patch InvoicePatch) (*models.Invoice, error) {
	inv, err := s.Invoices.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: invoice not found", utils.ErrNotFound)
	}
	if _, err := s.ownedVendor(ctx, actor, inv.VendorID); err != nil {
		return nil, err
	}
	if inv.Status == models.InvoicePaid {
		return nil, fmt.Errorf("%w: paid invoices cannot be edited", utils.ErrInvalidState)
	}

	if patch.touchesAmounts() {
		subtotal, tax, discount := inv.Subtotal, inv.TaxAmount, inv.DiscountAmount
		if patch.Subtotal != nil {
			subtotal = *patch.Subtotal
		}
		if patch.TaxAmount != nil {
			tax = *patch.TaxAmount
		}
		if patch.DiscountAmount != nil {
			discount = *patch.DiscountAmount
		}
		if err := validateAmounts(subtotal, tax, discount); err != nil {
			return nil, err
		}
		inv.Subtotal, inv.TaxAmount, inv.DiscountAmount = subtotal, tax, discount
		inv.TotalAmount = models.InvoiceTotal(subtotal, tax, discount)
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown invoice status %q", utils.ErrValidation, *patch.Status)
		}
		inv.Status = *patch.Status
	}
	if patch.DueDate != nil {
		inv.DueDate = *patch.DueDate
	}
	if patch.Description != nil {
		inv.Description = *patch.Description
	}
	if patch.Notes != nil {
		inv.Notes = *patch.Notes
	}
	inv.UpdatedAt = s.now()

	if err := s.Invoices.UpdateInvoice(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Get returns the invoice if the actor is its customer, its vendor owner or an admin.
func (s *InvoiceService) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*models.Invoice, error) {
	inv, err := s.Invoices.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: invoice not found", utils.ErrNotFound)
	}
	if authz.IsAdmin(actor.Role) || inv.UserID == actor.UserID {
		return inv, nil
	}
	if _, err := s.ownedVendor(ctx, actor, inv.VendorID); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *InvoiceService) List(ctx context.Context, actor authz.Actor, status models.InvoiceStatus, limit, offset int) ([]*models.Invoice, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown invoice status %q", utils.ErrValidation, status)
	}
	f := models.InvoiceFilter{Status: status, Limit: limit, Offset: offset}
	switch actor.Role {
	case authz.RoleAdmin:
	case authz.RoleVendor:
		f.VendorOwnerID = actor.UserID
	default:
		f.UserID = actor.UserID
	}
	return s.Invoices.ListInvoices(ctx, f)
}

// Send issues a draft to the customer (DRAFT -> PENDING).
func (s *InvoiceService) Send(ctx context.Context, actor authz.Actor, id uuid.UUID) (*models.Invoice, error) {
	inv, err := s.Invoices.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: invoice not found", utils.ErrNotFound)
	}
	if _, err := s.ownedVendor(ctx, actor, inv.VendorID); err != nil {
		return nil, err
	}
	if inv.Status != models.InvoiceDraft {
		return nil, fmt.Errorf("%w: only draft invoices can be sent", utils.ErrInvalidState)
	}
	inv.Status = models.InvoicePending
	inv.UpdatedAt = s.now()
	if err := s.Invoices.UpdateInvoice(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// SweepOverdue marks unpaid invoices past their due date as OVERDUE.
func (s *InvoiceService) SweepOverdue(ctx context.Context) (int64, error) {
	n, err := s.Invoices.MarkOverdue(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}
	if n > 0 {
		logging.Logger.Infof("[invoice][overdue] marked=%d", n)
	}
	return n, nil
}

// RenderPDF writes the invoice document for anyone allowed to read it.
func (s *InvoiceService) RenderPDF(ctx context.Context, actor authz.Actor, id uuid.UUID, w io.Writer) (*models.Invoice, error) {
	if s.Renderer == nil {
		return nil, fmt.Errorf("invoice renderer is not configured")
	}
	inv, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	vendor, err := s.Vendors.GetVendor(ctx, inv.VendorID)
	if err != nil {
		return nil, err
	}
	if err := s.Renderer.RenderInvoice(w, inv, vendor); err != nil {
		return nil, err
	}
	return inv, nil
}
