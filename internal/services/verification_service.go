package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"wedhub/internal/logging"
	"wedhub/internal/models"
	"wedhub/internal/utils"
)

const (
	codeTTL            = 10 * time.Minute
	issueWindow        = 60 * time.Minute
	maxIssuesPerWindow = 3
	maxVerifyAttempts  = 5
)

type VerificationService struct {
	Codes    CodeStore
	Accounts AccountStore
	Profiles ProfileStore
	Mailer   CodeMailer
	Clock    func() time.Time

	validate *validator.Validate
}

func NewVerificationService(codes CodeStore, accounts AccountStore, profiles ProfileStore, mailer CodeMailer) *VerificationService {
	return &VerificationService{
		Codes:    codes,
		Accounts: accounts,
		Profiles: profiles,
		Mailer:   mailer,
		Clock:    time.Now,
		validate: validator.New(),
	}
}

// VerifyResult is returned on a successful verification. No session is
// created here; the caller has to sign in separately.
type VerifyResult struct {
	RequiresSignIn bool         `json:"requiresSignIn"`
	User           *models.User `json:"user,omitempty"`
}

// GenerateCode returns a 6-digit code uniform over 100000..999999.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *VerificationService) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

func (s *VerificationService) validEmail(email string) bool {
	if s.validate == nil {
		s.validate = validator.New()
	}
	return s.validate.Var(email, "required,email") == nil
}

// IssueCode creates a new code for (email, purpose), invalidating older ones,
// and mails it. A mail failure is logged only; the code stays usable.
func (s *VerificationService) IssueCode(ctx context.Context, email string, purpose models.CodePurpose, userID uuid.UUID) error {
	email = NormalizeEmail(email)
	if !s.validEmail(email) {
		return fmt.Errorf("%w: invalid email", utils.ErrValidation)
	}
	if !purpose.Valid() {
		return fmt.Errorf("%w: unknown purpose %q", utils.ErrValidation, purpose)
	}

	code, err := GenerateCode()
	if err != nil {
		return err
	}
	now := s.now()
	rec := &models.VerificationCode{
		ID:        uuid.New(),
		Email:     email,
		CodeHash:  HashCode(code),
		Purpose:   purpose,
		UserID:    userID,
		ExpiresAt: now.Add(codeTTL),
		CreatedAt: now,
	}
	if err := s.Codes.Issue(ctx, rec, now.Add(-issueWindow), maxIssuesPerWindow); err != nil {
		if errors.Is(err, utils.ErrRateLimited) {
			logging.Logger.Warnf("[verify][issue] rate limited email=%s purpose=%s", email, purpose)
		}
		return err
	}

	if s.Mailer != nil {
		if err := s.Mailer.SendVerificationCode(ctx, email, purpose, code); err != nil {
			logging.Logger.WithError(err).Errorf("[verify][issue] failed to send code email=%s purpose=%s", email, purpose)
		}
	}
	logging.Logger.Infof("[verify][issue] ok email=%s purpose=%s expires_at=%s", email, purpose, rec.ExpiresAt.Format(time.RFC3339))
	return nil
}

func (s *VerificationService) VerifyCode(ctx context.Context, email, code string, purpose models.CodePurpose) (*VerifyResult, error) {
	email = NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if !s.validEmail(email) {
		return nil, fmt.Errorf("%w: invalid email", utils.ErrValidation)
	}
	if len(code) != 6 || strings.Trim(code, "0123456789") != "" {
		return nil, fmt.Errorf("%w: code must be 6 digits", utils.ErrValidation)
	}
	if !purpose.Valid() {
		return nil, fmt.Errorf("%w: unknown purpose %q", utils.ErrValidation, purpose)
	}

	now := s.now()
	hash := HashCode(code)
	rec, err := s.Codes.FindActive(ctx, email, purpose, hash, now)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		if err := s.Codes.RecordFailedAttempt(ctx, email, purpose, hash, now); err != nil {
			logging.Logger.WithError(err).Warnf("[verify][check] attempt bump failed email=%s", email)
		}
		return nil, utils.ErrInvalidOrExpiredCode
	}
	if rec.Attempts >= maxVerifyAttempts {
		return nil, utils.ErrTooManyAttempts
	}
	if rec.ExpiresAt.Before(now) {
		return nil, utils.ErrCodeExpired
	}

	if err := s.Codes.MarkVerified(ctx, rec.ID); err != nil {
		return nil, err
	}

	res := &VerifyResult{RequiresSignIn: true}
	if s.Accounts != nil {
		user, err := s.Accounts.GetByID(ctx, rec.UserID)
		if err != nil {
			return nil, err
		}
		res.User = user
	}
	if purpose == models.PurposeEmailVerification {
		if err := s.confirmAccount(ctx, rec.UserID, res.User, now); err != nil {
			return nil, err
		}
	}
	logging.Logger.Infof("[verify][check] ok email=%s purpose=%s", email, purpose)
	return res, nil
}

func (s *VerificationService) confirmAccount(ctx context.Context, userID uuid.UUID, user *models.User, now time.Time) error {
	if s.Accounts == nil || user == nil {
		return nil
	}
	if err := s.Accounts.ConfirmEmail(ctx, userID, now); err != nil {
		return err
	}
	user.EmailConfirmed = true
	user.EmailConfirmedAt = &now

	if s.Profiles == nil {
		return nil
	}
	err := s.Profiles.Upsert(ctx, &models.Profile{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
		UserType:  user.UserType,
		CreatedAt: now,
	})
	switch {
	case err == nil:
	case errors.Is(err, utils.ErrConflict), errors.Is(err, utils.ErrForbidden):
		logging.Logger.Debugf("[verify][profile] upsert skipped user_id=%s: %v", userID, err)
	default:
		logging.Logger.WithError(err).Errorf("[verify][profile] unexpected upsert failure user_id=%s", userID)
	}
	return nil
}
