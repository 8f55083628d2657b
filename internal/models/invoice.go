package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceType string

const (
	InvoiceDeposit           InvoiceType = "DEPOSIT"
	InvoiceFullPayment       InvoiceType = "FULL_PAYMENT"
	InvoiceBalance           InvoiceType = "BALANCE"
	InvoiceAdditionalService InvoiceType = "ADDITIONAL_SERVICE"
)

func (t InvoiceType) Valid() bool {
	switch t {
	case InvoiceDeposit, InvoiceFullPayment, InvoiceBalance, InvoiceAdditionalService:
		return true
	}
	return false
}

type InvoiceStatus string

const (
	InvoiceDraft         InvoiceStatus = "DRAFT"
	InvoicePending       InvoiceStatus = "PENDING"
	InvoicePaid          InvoiceStatus = "PAID"
	InvoicePartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceOverdue       InvoiceStatus = "OVERDUE"
	InvoiceCancelled     InvoiceStatus = "CANCELLED"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoicePending, InvoicePaid, InvoicePartiallyPaid, InvoiceOverdue, InvoiceCancelled:
		return true
	}
	return false
}

type Invoice struct {
	ID             uuid.UUID       `json:"id"`
	InquiryID      uuid.UUID       `json:"inquiry_id"`
	VendorID       uuid.UUID       `json:"vendor_id"`
	UserID         uuid.UUID       `json:"user_id"`
	InvoiceNumber  string          `json:"invoice_number"`
	Type           InvoiceType     `json:"type"`
	Status         InvoiceStatus   `json:"status"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	Currency       string          `json:"currency"`
	Description    string          `json:"description,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	IssueDate      time.Time       `json:"issue_date"`
	DueDate        time.Time       `json:"due_date"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// MoneyPlaces matches the NUMERIC(14, 2) money columns.
const MoneyPlaces = 2

// IsMoney reports whether d fits in MoneyPlaces without rounding.
func IsMoney(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyPlaces))
}

// InvoiceTotal is the single place the invoice total formula lives.
func InvoiceTotal(subtotal, tax, discount decimal.Decimal) decimal.Decimal {
	return subtotal.Add(tax).Sub(discount)
}

// InvoiceFilter narrows invoice listings. Zero-valued fields are ignored.
type InvoiceFilter struct {
	VendorOwnerID uuid.UUID
	UserID        uuid.UUID
	Status        InvoiceStatus
	Limit         int
	Offset        int
}
