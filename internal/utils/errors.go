package utils

import "errors"

// Domain error kinds. Services and stores wrap these with fmt.Errorf("%w: ...")
// so the handler layer can map them with errors.Is.
var (
	ErrValidation           = errors.New("validation failed")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidState         = errors.New("invalid state")
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrRateLimited          = errors.New("rate limited")
	ErrTooManyAttempts      = errors.New("too many attempts")
	ErrCodeExpired          = errors.New("code expired")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
)
