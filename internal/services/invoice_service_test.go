package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wedhub/internal/models"
	"wedhub/internal/utils"
)

type invoiceFixture struct {
	*marketplace
	clock    *testClock
	invoices *InvoiceService
}

func newInvoiceFixture() *invoiceFixture {
	m := newMarketplace()
	f := &invoiceFixture{marketplace: m, clock: newClock()}
	f.invoices = NewInvoiceService(m.store, m.store, m.store, "usd")
	f.invoices.Clock = f.clock.Now
	f.invoices.Renderer = fakeRenderer{}
	return f
}

func (f *invoiceFixture) create(t *testing.T, typ models.InvoiceType, subtotal string) *models.Invoice {
	t.Helper()
	inv, err := f.invoices.Create(context.Background(), f.owner, CreateInvoiceInput{
		InquiryID: f.inquiry.ID,
		Type:      typ,
		Subtotal:  dec(subtotal),
		TaxAmount: decp("10.50"),
	})
	require.NoError(t, err)
	return inv
}

func TestCreateInvoice(t *testing.T) {
	f := newInvoiceFixture()
	inv, err := f.invoices.Create(context.Background(), f.owner, CreateInvoiceInput{
		InquiryID:      f.inquiry.ID,
		Type:           models.InvoiceDeposit,
		Subtotal:       dec("1000.00"),
		TaxAmount:      decp("80.25"),
		DiscountAmount: decp("100"),
		Currency:       " eur ",
	})
	require.NoError(t, err)

	assert.Equal(t, models.InvoiceDraft, inv.Status)
	assert.True(t, dec("980.25").Equal(inv.TotalAmount), inv.TotalAmount.String())
	assert.True(t, inv.PaidAmount.IsZero())
	assert.Equal(t, "EUR", inv.Currency)
	assert.Equal(t, f.customer.UserID, inv.UserID)
	assert.Equal(t, f.vendor.ID, inv.VendorID)
	assert.Equal(t, "INV-2025-000001", inv.InvoiceNumber)
	assert.Equal(t, t0.Add(7*24*time.Hour), inv.DueDate)

	stored, err := f.store.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.InvoiceNumber, stored.InvoiceNumber)
}

func TestCreateInvoiceDefaults(t *testing.T) {
	f := newInvoiceFixture()
	due := t0.Add(72 * time.Hour)
	inv, err := f.invoices.Create(context.Background(), f.owner, CreateInvoiceInput{
		InquiryID: f.inquiry.ID,
		Type:      models.InvoiceFullPayment,
		Subtotal:  dec("250"),
		DueDate:   &due,
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", inv.Currency)
	assert.True(t, inv.TaxAmount.IsZero())
	assert.True(t, inv.DiscountAmount.IsZero())
	assert.True(t, dec("250").Equal(inv.TotalAmount))
	assert.Equal(t, due, inv.DueDate)
}

func TestCreateInvoiceRejections(t *testing.T) {
	f := newInvoiceFixture()
	newInquiry := f.addInquiry(models.InquiryStatusNew)

	cases := []struct {
		name string
		in   CreateInvoiceInput
		want error
	}{
		{"zero subtotal", CreateInvoiceInput{InquiryID: f.inquiry.ID, Type: models.InvoiceDeposit, Subtotal: dec("0")}, utils.ErrValidation},
		{"negative tax", CreateInvoiceInput{InquiryID: f.inquiry.ID, Type: models.InvoiceDeposit, Subtotal: dec("10"), TaxAmount: decp("-1")}, utils.ErrValidation},
		{"discount too big", CreateInvoiceInput{InquiryID: f.inquiry.ID, Type: models.InvoiceDeposit, Subtotal: dec("10"), DiscountAmount: decp("10.01")}, utils.ErrValidation},
		{"sub-cent amounts", CreateInvoiceInput{InquiryID: f.inquiry.ID, Type: models.InvoiceDeposit, Subtotal: dec("1.005"), TaxAmount: decp("1.005")}, utils.ErrValidation},
		{"sub-cent discount", CreateInvoiceInput{InquiryID: f.inquiry.ID, Type: models.InvoiceDeposit, Subtotal: dec("10"), DiscountAmount: decp("0.001")}, utils.ErrValidation},
		{"bad type", CreateInvoiceInput{InquiryID: f.inquiry.ID, Type: "TIP", Subtotal: dec("10")}, utils.ErrValidation},
		{"unknown inquiry", CreateInvoiceInput{InquiryID: uuid.New(), Type: models.InvoiceDeposit, Subtotal: dec("10")}, utils.ErrNotFound},
		{"inquiry not accepted", CreateInvoiceInput{InquiryID: newInquiry.ID, Type: models.InvoiceDeposit, Subtotal: dec("10")}, utils.ErrInvalidState},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.invoices.Create(context.Background(), f.owner, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := f.invoices.Create(context.Background(), f.stranger, CreateInvoiceInput{InquiryID: f.inquiry.ID, Type: models.InvoiceDeposit, Subtotal: dec("10")})
	assert.ErrorIs(t, err, utils.ErrForbidden)
}

func TestCreateInvoiceDraftConflict(t *testing.T) {
	f := newInvoiceFixture()
	first := f.create(t, models.InvoiceDeposit, "100")

	_, err := f.invoices.Create(context.Background(), f.owner, CreateInvoiceInput{InquiryID: f.inquiry.ID, Type: models.InvoiceDeposit, Subtotal: dec("5")})
	assert.ErrorIs(t, err, utils.ErrConflict)

	// a different type is fine
	f.create(t, models.InvoiceBalance, "400")

	// once the first draft is sent another deposit draft may be created
	_, err = f.invoices.Send(context.Background(), f.owner, first.ID)
	require.NoError(t, err)
	second := f.create(t, models.InvoiceDeposit, "100")
	assert.NotEqual(t, first.InvoiceNumber, second.InvoiceNumber)
}

func TestUpdateInvoiceRecomputesTotal(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.create(t, models.InvoiceDeposit, "100") // tax 10.50

	// only the discount is sent; subtotal and tax come from the stored row
	updated, err := f.invoices.Update(context.Background(), f.owner, inv.ID, InvoicePatch{DiscountAmount: decp("0.50")})
	require.NoError(t, err)
	assert.True(t, dec("110").Equal(updated.TotalAmount), updated.TotalAmount.String())
	assert.True(t, dec("100").Equal(updated.Subtotal))
	assert.True(t, dec("10.50").Equal(updated.TaxAmount))

	updated, err = f.invoices.Update(context.Background(), f.owner, inv.ID, InvoicePatch{Subtotal: decp("200")})
	require.NoError(t, err)
	assert.True(t, dec("210").Equal(updated.TotalAmount), updated.TotalAmount.String())

	// invalid union is rejected and nothing is stored
	_, err = f.invoices.Update(context.Background(), f.owner, inv.ID, InvoicePatch{DiscountAmount: decp("500")})
	assert.ErrorIs(t, err, utils.ErrValidation)
	stored, _ := f.store.GetInvoice(context.Background(), inv.ID)
	assert.True(t, dec("210").Equal(stored.TotalAmount))

	notes := "bring flowers"
	updated, err = f.invoices.Update(context.Background(), f.owner, inv.ID, InvoicePatch{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, updated.Notes)
	assert.True(t, dec("210").Equal(updated.TotalAmount))
}

func TestUpdateInvoiceRejectsSubCentAmounts(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.create(t, models.InvoiceDeposit, "100")

	_, err := f.invoices.Update(context.Background(), f.owner, inv.ID, InvoicePatch{TaxAmount: decp("0.125")})
	assert.ErrorIs(t, err, utils.ErrValidation)

	// trailing zeros are still two places
	got, err := f.invoices.Update(context.Background(), f.owner, inv.ID, InvoicePatch{TaxAmount: decp("0.500")})
	require.NoError(t, err)
	assert.True(t, dec("100.5").Equal(got.TotalAmount))
}

func TestUpdateInvoiceBackToDraftKeepsOneDraft(t *testing.T) {
	f := newInvoiceFixture()
	first := f.create(t, models.InvoiceDeposit, "100")
	_, err := f.invoices.Send(context.Background(), f.owner, first.ID)
	require.NoError(t, err)
	f.create(t, models.InvoiceDeposit, "100")

	draft := models.InvoiceDraft
	_, err = f.invoices.Update(context.Background(), f.owner, first.ID, InvoicePatch{Status: &draft})
	assert.ErrorIs(t, err, utils.ErrConflict)

	stored, err := f.store.GetInvoice(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePending, stored.Status)

	drafts, err := f.store.ListInvoices(context.Background(), models.InvoiceFilter{Status: models.InvoiceDraft})
	require.NoError(t, err)
	assert.Len(t, drafts, 1)

	// a draft may still be saved as a draft
	notes := "same draft"
	_, err = f.invoices.Update(context.Background(), f.owner, drafts[0].ID, InvoicePatch{Status: &draft, Notes: &notes})
	assert.NoError(t, err)
}

func TestUpdateInvoiceStatus(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.create(t, models.InvoiceDeposit, "100")

	bogus := models.InvoiceStatus("LOST")
	_, err := f.invoices.Update(context.Background(), f.owner, inv.ID, InvoicePatch{Status: &bogus})
	assert.ErrorIs(t, err, utils.ErrValidation)

	_, err = f.invoices.Update(context.Background(), f.customer, inv.ID, InvoicePatch{Subtotal: decp("1")})
	assert.ErrorIs(t, err, utils.ErrForbidden)

	paid := models.InvoicePaid
	_, err = f.invoices.Update(context.Background(), f.owner, inv.ID, InvoicePatch{Status: &paid})
	require.NoError(t, err)

	notes := "late edit"
	_, err = f.invoices.Update(context.Background(), f.owner, inv.ID, InvoicePatch{Notes: &notes})
	assert.ErrorIs(t, err, utils.ErrInvalidState)

	_, err = f.invoices.Update(context.Background(), f.owner, uuid.New(), InvoicePatch{Notes: &notes})
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestSendInvoice(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.create(t, models.InvoiceDeposit, "100")

	_, err := f.invoices.Send(context.Background(), f.stranger, inv.ID)
	assert.ErrorIs(t, err, utils.ErrForbidden)

	sent, err := f.invoices.Send(context.Background(), f.owner, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePending, sent.Status)

	_, err = f.invoices.Send(context.Background(), f.owner, inv.ID)
	assert.ErrorIs(t, err, utils.ErrInvalidState)
}

func TestGetInvoiceVisibility(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.create(t, models.InvoiceDeposit, "100")

	_, err := f.invoices.Get(context.Background(), f.owner, inv.ID)
	assert.NoError(t, err)
	_, err = f.invoices.Get(context.Background(), f.customer, inv.ID)
	assert.NoError(t, err)
	_, err = f.invoices.Get(context.Background(), f.admin, inv.ID)
	assert.NoError(t, err)
	_, err = f.invoices.Get(context.Background(), f.stranger, inv.ID)
	assert.ErrorIs(t, err, utils.ErrForbidden)
	_, err = f.invoices.Get(context.Background(), f.owner, uuid.New())
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestListInvoicesByRole(t *testing.T) {
	f := newInvoiceFixture()
	f.create(t, models.InvoiceDeposit, "100")
	f.clock.Advance(time.Minute)
	balance := f.create(t, models.InvoiceBalance, "900")
	_, err := f.invoices.Send(context.Background(), f.owner, balance.ID)
	require.NoError(t, err)

	mine, err := f.invoices.List(context.Background(), f.owner, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, balance.ID, mine[0].ID)

	pending, err := f.invoices.List(context.Background(), f.customer, models.InvoicePending, 0, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, balance.ID, pending[0].ID)

	none, err := f.invoices.List(context.Background(), f.stranger, "", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := f.invoices.List(context.Background(), f.admin, "", 1, 1)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = f.invoices.List(context.Background(), f.admin, "LOST", 0, 0)
	assert.ErrorIs(t, err, utils.ErrValidation)
}

func TestSweepOverdue(t *testing.T) {
	f := newInvoiceFixture()
	draft := f.create(t, models.InvoiceDeposit, "100")
	sent := f.create(t, models.InvoiceBalance, "100")
	_, err := f.invoices.Send(context.Background(), f.owner, sent.ID)
	require.NoError(t, err)

	n, err := f.invoices.SweepOverdue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(8 * 24 * time.Hour)
	n, err = f.invoices.SweepOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, _ := f.store.GetInvoice(context.Background(), sent.ID)
	assert.Equal(t, models.InvoiceOverdue, got.Status)
	got, _ = f.store.GetInvoice(context.Background(), draft.ID)
	assert.Equal(t, models.InvoiceDraft, got.Status)
}

func TestRenderInvoicePDF(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.create(t, models.InvoiceDeposit, "100")

	var buf bytes.Buffer
	_, err := f.invoices.RenderPDF(context.Background(), f.customer, inv.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-"+inv.InvoiceNumber, buf.String())

	buf.Reset()
	_, err = f.invoices.RenderPDF(context.Background(), f.stranger, inv.ID, &buf)
	assert.ErrorIs(t, err, utils.ErrForbidden)
	assert.Zero(t, buf.Len())

	f.invoices.Renderer = nil
	_, err = f.invoices.RenderPDF(context.Background(), f.owner, inv.ID, &buf)
	assert.Error(t, err)
}
