package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wedhub/internal/authz"
	"wedhub/internal/logging"
	"wedhub/internal/models"
	"wedhub/internal/payments"
	"wedhub/internal/utils"
)

type CreatePaymentInput struct {
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
	Currency  string
	Method    string
}

// PaymentUpdate is the body of PUT /api/payments/{id}; nil fields are untouched.
type PaymentUpdate struct {
	Status           *models.PaymentStatus
	FailureReason    *string
	RefundAmount     *decimal.Decimal
	ProviderMetadata map[string]string
}

type PaymentService struct {
	Payments PaymentStore
	Invoices InvoiceStore
	Vendors  VendorStore
	Gateway  payments.Gateway
	Clock    func() time.Time
}

func NewPaymentService(paymentStore PaymentStore, invoices InvoiceStore, vendors VendorStore, gateway payments.Gateway) *PaymentService {
	if gateway == nil {
		gateway = payments.Manual{}
	}
	return &PaymentService{
		Payments: paymentStore,
		Invoices: invoices,
		Vendors:  vendors,
		Gateway:  gateway,
		Clock:    time.Now,
	}
}

func (s *PaymentService) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

func validMethod(m string) bool {
	switch m {
	case models.MethodCard, models.MethodMobileMoney, models.MethodBankTransfer, models.MethodCash:
		return true
	}
	return false
}

func (s *PaymentService) isVendorOwner(ctx context.Context, actor authz.Actor, vendorID uuid.UUID) (bool, error) {
	vendor, err := s.Vendors.GetVendor(ctx, vendorID)
	if err != nil {
		return false, err
	}
	return vendor != nil && vendor.OwnerID == actor.UserID, nil
}

func (s *PaymentService) load(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	p, err := s.Payments.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: payment not found", utils.ErrNotFound)
	}
	return p, nil
}

// Create opens a payment against an invoice. Card payments get a processor
// intent whose client secret is returned for the client to confirm.
func (s *PaymentService) Create(ctx context.Context, actor authz.Actor, in CreatePaymentInput) (*models.Payment, string, error) {
	if !in.Amount.IsPositive() {
		return nil, "", fmt.Errorf("%w: amount must be greater than 0", utils.ErrValidation)
	}
	if !models.IsMoney(in.Amount) {
		return nil, "", fmt.Errorf("%w: amount allows at most %d decimal places", utils.ErrValidation, models.MoneyPlaces)
	}
	method := strings.ToLower(strings.TrimSpace(in.Method))
	if !validMethod(method) {
		return nil, "", fmt.Errorf("%w: unknown payment method %q", utils.ErrValidation, in.Method)
	}

	inv, err := s.Invoices.GetInvoice(ctx, in.InvoiceID)
	if err != nil {
		return nil, "", err
	}
	if inv == nil {
		return nil, "", fmt.Errorf("%w: invoice not found", utils.ErrNotFound)
	}
	if inv.UserID != actor.UserID && !authz.IsAdmin(actor.Role) {
		owner, err := s.isVendorOwner(ctx, actor, inv.VendorID)
		if err != nil {
			return nil, "", err
		}
		if !owner {
			return nil, "", fmt.Errorf("%w: not a party to this invoice", utils.ErrForbidden)
		}
	}
	if inv.Status == models.InvoicePaid || inv.Status == models.InvoiceCancelled || inv.Status == models.InvoiceDraft {
		return nil, "", fmt.Errorf("%w: invoice in status %s does not accept payments", utils.ErrInvalidState, inv.Status)
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = inv.Currency
	}
	now := s.now()
	p := &models.Payment{
		ID:        uuid.New(),
		InvoiceID: inv.ID,
		InquiryID: inv.InquiryID,
		UserID:    inv.UserID,
		VendorID:  inv.VendorID,
		Amount:    in.Amount,
		Currency:  currency,
		Method:    method,
		Status:    models.PaymentPending,
		Provider:  models.ProviderManual,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var clientSecret string
	if method == models.MethodCard {
		intent, err := s.Gateway.CreateIntent(ctx, p)
		if err != nil {
			return nil, "", err
		}
		p.Provider = intent.Provider
		p.ProviderRef = intent.Ref
		clientSecret = intent.ClientSecret
	}

	if err := s.Payments.CreatePayment(ctx, p); err != nil {
		return nil, "", err
	}
	logging.Logger.Infof("[payment][create] id=%s invoice=%s amount=%s %s method=%s provider=%s",
		p.ID, p.InvoiceID, p.Amount, p.Currency, p.Method, p.Provider)
	return p, clientSecret, nil
}

func (s *PaymentService) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*models.Payment, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if authz.IsAdmin(actor.Role) || p.UserID == actor.UserID {
		return p, nil
	}
	owner, err := s.isVendorOwner(ctx, actor, p.VendorID)
	if err != nil {
		return nil, err
	}
	if !owner {
		return nil, fmt.Errorf("%w: not a party to this payment", utils.ErrForbidden)
	}
	return p, nil
}

// Update changes a payment's status and bookkeeping fields. Only the owning
// vendor or an admin may do this; the paying customer may not.
func (s *PaymentService) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, upd PaymentUpdate) (*models.Payment, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.IsAdmin(actor.Role) {
		owner, err := s.isVendorOwner(ctx, actor, p.VendorID)
		if err != nil {
			return nil, err
		}
		if !owner {
			return nil, fmt.Errorf("%w: only the vendor or an admin can update payments", utils.ErrForbidden)
		}
	}
	if err := s.apply(p, upd); err != nil {
		return nil, err
	}
	if err := s.Payments.UpdatePayment(ctx, p); err != nil {
		return nil, err
	}
	logging.Logger.Infof("[payment][update] id=%s status=%s by=%s", p.ID, p.Status, actor.UserID)
	return p, nil
}

// apply mutates p in memory; nothing is stored when it fails.
func (s *PaymentService) apply(p *models.Payment, upd PaymentUpdate) error {
	if upd.RefundAmount != nil {
		r := *upd.RefundAmount
		if r.IsNegative() || r.GreaterThan(p.Amount) {
			return fmt.Errorf("%w: refundAmount must be between 0 and %s", utils.ErrValidation, p.Amount)
		}
		if !models.IsMoney(r) {
			return fmt.Errorf("%w: refundAmount allows at most %d decimal places", utils.ErrValidation, models.MoneyPlaces)
		}
	}

	now := s.now()
	if upd.Status != nil {
		to := *upd.Status
		if !to.Valid() {
			return fmt.Errorf("%w: unknown payment status %q", utils.ErrValidation, to)
		}
		from := p.Status
		if !CanTransitionPayment(from, to) {
			return fmt.Errorf("%w: cannot move payment from %s to %s", utils.ErrInvalidTransition, from, to)
		}
		if to == models.PaymentSucceeded && from != models.PaymentSucceeded && p.ProcessedAt == nil {
			p.ProcessedAt = &now
		}
		if to.IsRefund() && !from.IsRefund() {
			p.RefundedAt = &now
		}
		p.Status = to
	}

	if upd.RefundAmount != nil {
		r := *upd.RefundAmount
		p.RefundAmount = &r
	}
	if upd.FailureReason != nil {
		p.FailureReason = *upd.FailureReason
	}
	if len(upd.ProviderMetadata) > 0 {
		if p.ProviderMetadata == nil {
			p.ProviderMetadata = make(map[string]string, len(upd.ProviderMetadata))
		}
		for k, v := range upd.ProviderMetadata {
			p.ProviderMetadata[k] = v
		}
	}
	p.UpdatedAt = now
	return nil
}

// HandleProviderEvent applies a verified webhook through the same state
// machine as manual updates. Unknown payments and rejected transitions are
// logged and acknowledged so the provider stops retrying.
func (s *PaymentService) HandleProviderEvent(ctx context.Context, ev *payments.Event) error {
	if ev == nil || ev.Status == "" || ev.Ref == "" {
		return nil
	}
	p, err := s.Payments.GetPaymentByProviderRef(ctx, ev.Provider, ev.Ref)
	if err != nil {
		return err
	}
	if p == nil {
		logging.Logger.Warnf("[payment][webhook] no payment for %s ref=%s event=%s", ev.Provider, ev.Ref, ev.ID)
		return nil
	}

	status := ev.Status
	upd := PaymentUpdate{
		Status:           &status,
		RefundAmount:     ev.RefundAmount,
		ProviderMetadata: map[string]string{"last_event_id": ev.ID, "last_event_type": ev.Type},
	}
	if ev.FailureReason != "" {
		reason := ev.FailureReason
		upd.FailureReason = &reason
	}
	if err := s.apply(p, upd); err != nil {
		if errors.Is(err, utils.ErrInvalidTransition) || errors.Is(err, utils.ErrValidation) {
			logging.Logger.WithError(err).Warnf("[payment][webhook] ignored event=%s payment=%s", ev.ID, p.ID)
			return nil
		}
		return err
	}
	if err := s.Payments.UpdatePayment(ctx, p); err != nil {
		return err
	}
	logging.Logger.Infof("[payment][webhook] payment=%s status=%s event=%s", p.ID, p.Status, ev.ID)
	return nil
}
