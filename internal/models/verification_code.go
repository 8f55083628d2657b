package models

import (
	"time"

	"github.com/google/uuid"
)

type CodePurpose string

const (
	PurposeEmailVerification CodePurpose = "email_verification"
	PurposePasswordReset     CodePurpose = "password_reset"
)

func (p CodePurpose) Valid() bool {
	return p == PurposeEmailVerification || p == PurposePasswordReset
}

// VerificationCode: одна строка на каждую отправку кода.
// Храним только SHA-256 хэш кода, TTL и счётчик попыток.
type VerificationCode struct {
	ID        uuid.UUID   `json:"id"`
	Email     string      `json:"email"`
	CodeHash  string      `json:"-"`
	Purpose   CodePurpose `json:"purpose"`
	UserID    uuid.UUID   `json:"user_id"`
	ExpiresAt time.Time   `json:"expires_at"`
	Verified  bool        `json:"verified"`
	Attempts  int         `json:"attempts"`
	CreatedAt time.Time   `json:"created_at"`
}

// Active reports whether the code can still be redeemed at now.
func (v *VerificationCode) Active(now time.Time) bool {
	return !v.Verified && v.ExpiresAt.After(now)
}
