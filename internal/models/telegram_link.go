package models

import (
	"time"

	"github.com/google/uuid"
)

// TelegramLink is a one-time code that binds a Telegram chat to a vendor so
// receipt alerts reach the vendor's chat.
type TelegramLink struct {
	ID        uuid.UUID `json:"id"`
	VendorID  uuid.UUID `json:"vendor_id"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"created_at"`
}
