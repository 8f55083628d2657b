package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	InquiryStatusNew       = "new"
	InquiryStatusResponded = "responded"
	InquiryStatusAccepted  = "accepted"
	InquiryStatusDeclined  = "declined"
	InquiryStatusClosed    = "closed"
)

// Inquiry is a customer's request to book a vendor.
type Inquiry struct {
	ID        uuid.UUID  `json:"id"`
	VendorID  uuid.UUID  `json:"vendor_id"`
	UserID    uuid.UUID  `json:"user_id"`
	Status    string     `json:"status"`
	EventDate *time.Time `json:"event_date,omitempty"`
	Message   string     `json:"message,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Vendor is a storefront owned by a single user account.
type Vendor struct {
	ID           uuid.UUID `json:"id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	BusinessName string    `json:"business_name"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	TelegramChat int64     `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
