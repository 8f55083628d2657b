package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wedhub/internal/authz"
	"wedhub/internal/logging"
	"wedhub/internal/models"
	"wedhub/internal/utils"
)

type SubmitReceiptInput struct {
	PaymentID       uuid.UUID
	InvoiceID       uuid.UUID
	ReceiptImageURL string
	ReceiptNumber   string
	PaymentProvider string
	PhoneNumber     string
	Amount          decimal.Decimal
	Currency        string
	PaymentDate     *time.Time
	Notes           string
}

type ReceiptService struct {
	Receipts ReceiptStore
	Payments *PaymentService
	Notifier ReceiptNotifier
	Clock    func() time.Time
}

func NewReceiptService(receipts ReceiptStore, paymentSvc *PaymentService, notifier ReceiptNotifier) *ReceiptService {
	return &ReceiptService{
		Receipts: receipts,
		Payments: paymentSvc,
		Notifier: notifier,
		Clock:    time.Now,
	}
}

func (s *ReceiptService) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

// Submit records proof of a manual payment from the paying customer.
func (s *ReceiptService) Submit(ctx context.Context, actor authz.Actor, in SubmitReceiptInput) (*models.PaymentReceipt, error) {
	if strings.TrimSpace(in.ReceiptImageURL) == "" || strings.TrimSpace(in.ReceiptNumber) == "" ||
		strings.TrimSpace(in.PaymentProvider) == "" || strings.TrimSpace(in.PhoneNumber) == "" {
		return nil, fmt.Errorf("%w: receiptImageUrl, receiptNumber, paymentProvider and phoneNumber are required", utils.ErrValidation)
	}
	if !in.Amount.IsPositive() || !models.IsMoney(in.Amount) {
		return nil, fmt.Errorf("%w: amount must be greater than 0 with at most %d decimal places", utils.ErrValidation, models.MoneyPlaces)
	}

	p, err := s.Payments.load(ctx, in.PaymentID)
	if err != nil {
		return nil, err
	}
	if p.InvoiceID != in.InvoiceID {
		return nil, fmt.Errorf("%w: payment does not belong to this invoice", utils.ErrValidation)
	}
	if p.UserID != actor.UserID {
		return nil, fmt.Errorf("%w: only the payer can submit a receipt", utils.ErrForbidden)
	}
	if p.Status == models.PaymentSucceeded {
		return nil, fmt.Errorf("%w: payment is already completed", utils.ErrConflict)
	}
	verified, err := s.Receipts.HasVerifiedReceipt(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if verified {
		return nil, fmt.Errorf("%w: a verified receipt already exists for this payment", utils.ErrConflict)
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = p.Currency
	}
	r := &models.PaymentReceipt{
		ID:              uuid.New(),
		PaymentID:       p.ID,
		InvoiceID:       p.InvoiceID,
		SubmittedBy:     actor.UserID,
		ReceiptImageURL: strings.TrimSpace(in.ReceiptImageURL),
		ReceiptNumber:   strings.TrimSpace(in.ReceiptNumber),
		PaymentProvider: strings.TrimSpace(in.PaymentProvider),
		PhoneNumber:     strings.TrimSpace(in.PhoneNumber),
		Amount:          in.Amount,
		Currency:        currency,
		PaymentDate:     in.PaymentDate,
		Notes:           in.Notes,
		Status:          models.ReceiptPending,
		CreatedAt:       s.now(),
	}
	if err := s.Receipts.CreateReceipt(ctx, r); err != nil {
		return nil, err
	}
	logging.Logger.Infof("[receipt][submit] id=%s payment=%s number=%s", r.ID, r.PaymentID, r.ReceiptNumber)

	if s.Notifier != nil {
		vendor, err := s.Payments.Vendors.GetVendor(ctx, p.VendorID)
		if err != nil || vendor == nil {
			logging.Logger.Warnf("[receipt][submit] vendor lookup for notification failed vendor=%s err=%v", p.VendorID, err)
		} else if err := s.Notifier.ReceiptSubmitted(ctx, vendor, r); err != nil {
			logging.Logger.WithError(err).Warnf("[receipt][submit] vendor notification failed receipt=%s", r.ID)
		}
	}
	return r, nil
}

// Review lets the vendor (or an admin) accept or reject a pending receipt.
// Accepting settles the payment as SUCCEEDED.
func (s *ReceiptService) Review(ctx context.Context, actor authz.Actor, id uuid.UUID, status models.ReceiptStatus, notes string) (*models.PaymentReceipt, error) {
	if status != models.ReceiptVerified && status != models.ReceiptRejected {
		return nil, fmt.Errorf("%w: status must be verified or rejected", utils.ErrValidation)
	}
	r, err := s.Receipts.GetReceipt(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: receipt not found", utils.ErrNotFound)
	}
	p, err := s.Payments.load(ctx, r.PaymentID)
	if err != nil {
		return nil, err
	}
	if !authz.IsAdmin(actor.Role) {
		owner, err := s.Payments.isVendorOwner(ctx, actor, p.VendorID)
		if err != nil {
			return nil, err
		}
		if !owner {
			return nil, fmt.Errorf("%w: only the vendor or an admin can review receipts", utils.ErrForbidden)
		}
	}
	if r.Status != models.ReceiptPending {
		return nil, fmt.Errorf("%w: receipt already %s", utils.ErrInvalidState, r.Status)
	}

	var settle *PaymentUpdate
	if status == models.ReceiptVerified {
		succeeded := models.PaymentSucceeded
		settle = &PaymentUpdate{Status: &succeeded}
		if err := s.Payments.apply(p, *settle); err != nil {
			return nil, err
		}
	}

	now := s.now()
	reviewer := actor.UserID
	r.Status = status
	r.ReviewedBy = &reviewer
	r.ReviewedAt = &now
	r.ReviewNotes = notes
	if err := s.Receipts.UpdateReceiptReview(ctx, r); err != nil {
		return nil, err
	}
	if settle != nil {
		if err := s.Payments.Payments.UpdatePayment(ctx, p); err != nil {
			return nil, err
		}
	}
	logging.Logger.Infof("[receipt][review] id=%s status=%s payment=%s", r.ID, r.Status, p.ID)

	if s.Notifier != nil {
		if err := s.Notifier.ReceiptReviewed(ctx, r); err != nil {
			logging.Logger.WithError(err).Warnf("[receipt][review] payer notification failed receipt=%s", r.ID)
		}
	}
	return r, nil
}
