// Package memory is an in-process implementation of every store used by the
// services. It backs unit tests and the `memory` database driver.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"wedhub/internal/models"
	"wedhub/internal/utils"
)

type Store struct {
	mu sync.Mutex

	codes     []*models.VerificationCode
	users     map[uuid.UUID]*models.User
	profiles  map[uuid.UUID]*models.Profile
	inquiries map[uuid.UUID]*models.Inquiry
	vendors   map[uuid.UUID]*models.Vendor
	invoices  map[uuid.UUID]*models.Invoice
	payments  map[uuid.UUID]*models.Payment
	receipts  map[uuid.UUID]*models.PaymentReceipt
	links     map[string]*models.TelegramLink

	invoiceSeq int64
	err        error
}

func New() *Store {
	return &Store{
		users:     map[uuid.UUID]*models.User{},
		profiles:  map[uuid.UUID]*models.Profile{},
		inquiries: map[uuid.UUID]*models.Inquiry{},
		vendors:   map[uuid.UUID]*models.Vendor{},
		invoices:  map[uuid.UUID]*models.Invoice{},
		payments:  map[uuid.UUID]*models.Payment{},
		receipts:  map[uuid.UUID]*models.PaymentReceipt{},
		links:     map[string]*models.TelegramLink{},
	}
}

// WithError makes every subsequent call fail with err.
func (s *Store) WithError(err error) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

func (s *Store) PingContext(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ---- seeding (inquiries and vendors are owned by other parts of the platform)

func (s *Store) PutVendor(v *models.Vendor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *v
	s.vendors[v.ID] = &cp
}

func (s *Store) PutInquiry(i *models.Inquiry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *i
	s.inquiries[i.ID] = &cp
}

func (s *Store) PutUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
}

// Codes returns copies of all stored codes for (email, purpose), oldest first.
func (s *Store) Codes(email string, purpose models.CodePurpose) []models.VerificationCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.VerificationCode
	for _, c := range s.codes {
		if c.Email == email && c.Purpose == purpose {
			out = append(out, *c)
		}
	}
	return out
}

func (s *Store) Profile(userID uuid.UUID) *models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[userID]; ok {
		cp := *p
		return &cp
	}
	return nil
}

// ---- CodeStore

func (s *Store) Issue(ctx context.Context, code *models.VerificationCode, since time.Time, maxRecent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	recent := 0
	for _, c := range s.codes {
		if c.Email == code.Email && c.Purpose == code.Purpose && !c.CreatedAt.Before(since) {
			recent++
		}
	}
	if recent >= maxRecent {
		return fmt.Errorf("%w: %d codes issued since %s", utils.ErrRateLimited, recent, since.Format(time.RFC3339))
	}
	for _, c := range s.codes {
		if c.Email == code.Email && c.Purpose == code.Purpose && !c.Verified {
			c.Verified = true
		}
	}
	cp := *code
	s.codes = append(s.codes, &cp)
	return nil
}

func (s *Store) newestActive(email string, purpose models.CodePurpose, hash string, now time.Time) *models.VerificationCode {
	var best *models.VerificationCode
	for _, c := range s.codes {
		if c.Email != email || c.Purpose != purpose || !c.Active(now) {
			continue
		}
		if hash != "" && c.CodeHash != hash {
			continue
		}
		if best == nil || c.CreatedAt.After(best.CreatedAt) {
			best = c
		}
	}
	return best
}

func (s *Store) FindActive(ctx context.Context, email string, purpose models.CodePurpose, codeHash string, now time.Time) (*models.VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	c := s.newestActive(email, purpose, codeHash, now)
	if c == nil {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *Store) RecordFailedAttempt(ctx context.Context, email string, purpose models.CodePurpose, codeHash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	active := s.newestActive(email, purpose, "", now)
	for _, c := range s.codes {
		if c.Email == email && c.Purpose == purpose && (c.CodeHash == codeHash || c == active) {
			c.Attempts++
		}
	}
	return nil
}

func (s *Store) MarkVerified(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, c := range s.codes {
		if c.ID == id {
			c.Verified = true
			return nil
		}
	}
	return fmt.Errorf("%w: verification code %s", utils.ErrNotFound, id)
}

// ---- AccountStore / ProfileStore

func (s *Store) Create(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return fmt.Errorf("%w: email %s", utils.ErrConflict, u.Email)
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) ConfirmEmail(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%w: user %s", utils.ErrNotFound, id)
	}
	u.EmailConfirmed = true
	u.EmailConfirmedAt = &at
	return nil
}

func (s *Store) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%w: user %s", utils.ErrNotFound, id)
	}
	u.PasswordHash = passwordHash
	return nil
}

func (s *Store) Upsert(ctx context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	cp := *p
	s.profiles[p.UserID] = &cp
	return nil
}

// ---- InquiryStore / VendorStore

func (s *Store) GetInquiry(ctx context.Context, id uuid.UUID) (*models.Inquiry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if i, ok := s.inquiries[id]; ok {
		cp := *i
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) GetVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vendors[id]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, nil
}

// ---- InvoiceStore

func (s *Store) CreateDraft(ctx context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, existing := range s.invoices {
		if existing.InquiryID == inv.InquiryID && existing.Type == inv.Type && existing.Status == models.InvoiceDraft {
			return fmt.Errorf("%w: draft %s invoice for inquiry %s", utils.ErrConflict, inv.Type, inv.InquiryID)
		}
	}
	s.invoiceSeq++
	inv.InvoiceNumber = fmt.Sprintf("INV-%d-%06d", inv.IssueDate.Year(), s.invoiceSeq)
	cp := *inv
	s.invoices[inv.ID] = &cp
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if inv, ok := s.invoices[id]; ok {
		cp := *inv
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.invoices[inv.ID]; !ok {
		return fmt.Errorf("%w: invoice %s", utils.ErrNotFound, inv.ID)
	}
	if inv.Status == models.InvoiceDraft {
		for id, existing := range s.invoices {
			if id != inv.ID && existing.InquiryID == inv.InquiryID && existing.Type == inv.Type && existing.Status == models.InvoiceDraft {
				return fmt.Errorf("%w: draft %s invoice for inquiry %s", utils.ErrConflict, inv.Type, inv.InquiryID)
			}
		}
	}
	cp := *inv
	s.invoices[inv.ID] = &cp
	return nil
}

func (s *Store) ListInvoices(ctx context.Context, f models.InvoiceFilter) ([]*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []*models.Invoice
	for _, inv := range s.invoices {
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		if f.UserID != uuid.Nil && inv.UserID != f.UserID {
			continue
		}
		if f.VendorOwnerID != uuid.Nil {
			v, ok := s.vendors[inv.VendorID]
			if !ok || v.OwnerID != f.VendorOwnerID {
				continue
			}
		}
		cp := *inv
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	var n int64
	for _, inv := range s.invoices {
		if (inv.Status == models.InvoicePending || inv.Status == models.InvoicePartiallyPaid) && inv.DueDate.Before(now) {
			inv.Status = models.InvoiceOverdue
			inv.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

// ---- PaymentStore

func copyPayment(p *models.Payment) *models.Payment {
	cp := *p
	if p.ProviderMetadata != nil {
		cp.ProviderMetadata = make(map[string]string, len(p.ProviderMetadata))
		for k, v := range p.ProviderMetadata {
			cp.ProviderMetadata[k] = v
		}
	}
	return &cp
}

func (s *Store) CreatePayment(ctx context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.payments[p.ID] = copyPayment(p)
	return nil
}

func (s *Store) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if p, ok := s.payments[id]; ok {
		return copyPayment(p), nil
	}
	return nil, nil
}

func (s *Store) GetPaymentByProviderRef(ctx context.Context, provider, ref string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for _, p := range s.payments {
		if p.Provider == provider && p.ProviderRef == ref {
			return copyPayment(p), nil
		}
	}
	return nil, nil
}

func (s *Store) UpdatePayment(ctx context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.payments[p.ID]; !ok {
		return fmt.Errorf("%w: payment %s", utils.ErrNotFound, p.ID)
	}
	s.payments[p.ID] = copyPayment(p)
	return nil
}

// ---- ReceiptStore

func (s *Store) CreateReceipt(ctx context.Context, r *models.PaymentReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	cp := *r
	s.receipts[r.ID] = &cp
	return nil
}

func (s *Store) GetReceipt(ctx context.Context, id uuid.UUID) (*models.PaymentReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if r, ok := s.receipts[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) HasVerifiedReceipt(ctx context.Context, paymentID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	for _, r := range s.receipts {
		if r.PaymentID == paymentID && r.Status == models.ReceiptVerified {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) UpdateReceiptReview(ctx context.Context, r *models.PaymentReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.receipts[r.ID]; !ok {
		return fmt.Errorf("%w: receipt %s", utils.ErrNotFound, r.ID)
	}
	if r.Status == models.ReceiptVerified {
		for _, other := range s.receipts {
			if other.ID != r.ID && other.PaymentID == r.PaymentID && other.Status == models.ReceiptVerified {
				return fmt.Errorf("%w: payment %s already has a verified receipt", utils.ErrConflict, r.PaymentID)
			}
		}
	}
	cp := *r
	s.receipts[r.ID] = &cp
	return nil
}

// ---- TelegramLinkStore

func (s *Store) CreateLink(ctx context.Context, l *models.TelegramLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.links[l.Code]; ok {
		return fmt.Errorf("%w: telegram link code", utils.ErrConflict)
	}
	cp := *l
	s.links[l.Code] = &cp
	return nil
}

func (s *Store) ConsumeLink(ctx context.Context, code string, chatID int64, now time.Time) (*models.TelegramLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	l, ok := s.links[code]
	if !ok || l.Used || now.After(l.ExpiresAt) {
		return nil, nil
	}
	v, ok := s.vendors[l.VendorID]
	if !ok {
		return nil, fmt.Errorf("%w: vendor %s", utils.ErrNotFound, l.VendorID)
	}
	v.TelegramChat = chatID
	l.Used = true
	cp := *l
	return &cp, nil
}
