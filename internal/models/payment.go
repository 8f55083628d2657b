package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "PENDING"
	PaymentProcessing        PaymentStatus = "PROCESSING"
	PaymentSucceeded         PaymentStatus = "SUCCEEDED"
	PaymentFailed            PaymentStatus = "FAILED"
	PaymentCancelled         PaymentStatus = "CANCELLED"
	PaymentRefunded          PaymentStatus = "REFUNDED"
	PaymentPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

var PaymentStatuses = []PaymentStatus{
	PaymentPending,
	PaymentProcessing,
	PaymentSucceeded,
	PaymentFailed,
	PaymentCancelled,
	PaymentRefunded,
	PaymentPartiallyRefunded,
}

func (s PaymentStatus) Valid() bool {
	for _, v := range PaymentStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsRefund reports whether s belongs to the refunded family.
func (s PaymentStatus) IsRefund() bool {
	return s == PaymentRefunded || s == PaymentPartiallyRefunded
}

const (
	ProviderStripe = "stripe"
	ProviderManual = "manual"

	MethodCard         = "card"
	MethodMobileMoney  = "mobile_money"
	MethodBankTransfer = "bank_transfer"
	MethodCash         = "cash"
)

type Payment struct {
	ID               uuid.UUID         `json:"id"`
	InvoiceID        uuid.UUID         `json:"invoice_id"`
	InquiryID        uuid.UUID         `json:"inquiry_id"`
	UserID           uuid.UUID         `json:"user_id"`
	VendorID         uuid.UUID         `json:"vendor_id"`
	Amount           decimal.Decimal   `json:"amount"`
	Currency         string            `json:"currency"`
	Method           string            `json:"method"`
	Status           PaymentStatus     `json:"status"`
	Provider         string            `json:"provider"`
	ProviderRef      string            `json:"provider_ref,omitempty"`
	ProviderMetadata map[string]string `json:"provider_metadata,omitempty"`
	ProcessedAt      *time.Time        `json:"processed_at,omitempty"`
	FailureReason    string            `json:"failure_reason,omitempty"`
	RefundAmount     *decimal.Decimal  `json:"refund_amount,omitempty"`
	RefundedAt       *time.Time        `json:"refunded_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

type ReceiptStatus string

const (
	ReceiptPending  ReceiptStatus = "pending"
	ReceiptVerified ReceiptStatus = "verified"
	ReceiptRejected ReceiptStatus = "rejected"
)

// PaymentReceipt is proof of a manual (e.g. mobile-money) payment submitted
// by the payer and reviewed by the vendor.
type PaymentReceipt struct {
	ID              uuid.UUID       `json:"id"`
	PaymentID       uuid.UUID       `json:"payment_id"`
	InvoiceID       uuid.UUID       `json:"invoice_id"`
	SubmittedBy     uuid.UUID       `json:"submitted_by"`
	ReceiptImageURL string          `json:"receipt_image_url"`
	ReceiptNumber   string          `json:"receipt_number"`
	PaymentProvider string          `json:"payment_provider"`
	PhoneNumber     string          `json:"phone_number"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	PaymentDate     *time.Time      `json:"payment_date,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	Status          ReceiptStatus   `json:"status"`
	ReviewedBy      *uuid.UUID      `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time      `json:"reviewed_at,omitempty"`
	ReviewNotes     string          `json:"review_notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
