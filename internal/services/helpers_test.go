package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"wedhub/internal/authz"
	"wedhub/internal/models"
	"wedhub/internal/repositories/memory"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *testClock { return &testClock{now: t0} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentCode struct {
	Email   string
	Purpose models.CodePurpose
	Code    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentCode
	err  error
}

func (m *fakeMailer) SendVerificationCode(_ context.Context, email string, purpose models.CodePurpose, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentCode{email, purpose, code})
	return m.err
}

func (m *fakeMailer) last(t *testing.T) sentCode {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no code was mailed")
	return m.sent[len(m.sent)-1]
}

type fakeNotifier struct {
	submitted []*models.PaymentReceipt
	reviewed  []*models.PaymentReceipt
}

func (n *fakeNotifier) ReceiptSubmitted(_ context.Context, _ *models.Vendor, r *models.PaymentReceipt) error {
	n.submitted = append(n.submitted, r)
	return nil
}

func (n *fakeNotifier) ReceiptReviewed(_ context.Context, r *models.PaymentReceipt) error {
	n.reviewed = append(n.reviewed, r)
	return errors.New("sms gateway down")
}

type fakeRenderer struct{}

func (fakeRenderer) RenderInvoice(w io.Writer, inv *models.Invoice, _ *models.Vendor) error {
	_, err := io.WriteString(w, "%PDF-"+inv.InvoiceNumber)
	return err
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// marketplace is a vendor, its owner, a customer and an accepted inquiry.
type marketplace struct {
	store    *memory.Store
	vendor   *models.Vendor
	inquiry  *models.Inquiry
	owner    authz.Actor
	customer authz.Actor
	stranger authz.Actor
	admin    authz.Actor
}

func newMarketplace() *marketplace {
	m := &marketplace{
		store:    memory.New(),
		owner:    authz.Actor{UserID: uuid.New(), Role: authz.RoleVendor},
		customer: authz.Actor{UserID: uuid.New(), Role: authz.RoleCustomer},
		stranger: authz.Actor{UserID: uuid.New(), Role: authz.RoleVendor},
		admin:    authz.Actor{UserID: uuid.New(), Role: authz.RoleAdmin},
	}
	m.vendor = &models.Vendor{ID: uuid.New(), OwnerID: m.owner.UserID, BusinessName: "Bloom & Co", TelegramChat: 42}
	m.inquiry = m.addInquiry(models.InquiryStatusAccepted)
	m.store.PutVendor(m.vendor)
	return m
}

func (m *marketplace) addInquiry(status string) *models.Inquiry {
	i := &models.Inquiry{ID: uuid.New(), VendorID: m.vendor.ID, UserID: m.customer.UserID, Status: status, CreatedAt: t0}
	m.store.PutInquiry(i)
	return i
}
