package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"wedhub/internal/authz"
	"wedhub/internal/logging"
	"wedhub/internal/models"
	"wedhub/internal/utils"
)

const minPasswordLen = 8

type SignupInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	UserType  string
}

// AuthService covers signup, sign-in and password reset on top of the
// verification code flow.
type AuthService struct {
	Accounts     AccountStore
	Verification *VerificationService
	JWTSecret    []byte
	Issuer       string
	AccessTTL    time.Duration
	Clock        func() time.Time
}

func NewAuthService(accounts AccountStore, verification *VerificationService, jwtSecret []byte, issuer string, accessTTL time.Duration) *AuthService {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	return &AuthService{
		Accounts:     accounts,
		Verification: verification,
		JWTSecret:    jwtSecret,
		Issuer:       issuer,
		AccessTTL:    accessTTL,
		Clock:        time.Now,
	}
}

func (s *AuthService) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt generate: %w", err)
	}
	return string(b), nil
}

func validatePassword(password string) error {
	if len(strings.TrimSpace(password)) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", utils.ErrValidation, minPasswordLen)
	}
	return nil
}

// Signup creates an unconfirmed account and mails an email verification code.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	email := NormalizeEmail(in.Email)
	if !s.Verification.validEmail(email) {
		return nil, fmt.Errorf("%w: invalid email", utils.ErrValidation)
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, fmt.Errorf("%w: first and last name are required", utils.ErrValidation)
	}
	userType := strings.ToLower(strings.TrimSpace(in.UserType))
	if !authz.SignupRole(userType) {
		return nil, fmt.Errorf("%w: userType must be customer or vendor", utils.ErrValidation)
	}

	existing, err := s.Accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: an account with this email already exists", utils.ErrValidation)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		UserType:     userType,
		CreatedAt:    s.now(),
	}
	if err := s.Accounts.Create(ctx, user); err != nil {
		if errors.Is(err, utils.ErrConflict) {
			return nil, fmt.Errorf("%w: an account with this email already exists", utils.ErrValidation)
		}
		return nil, err
	}

	if err := s.Verification.IssueCode(ctx, email, models.PurposeEmailVerification, user.ID); err != nil {
		return nil, err
	}
	logging.Logger.Infof("[auth][signup] user_id=%s type=%s", user.ID, userType)
	return user, nil
}

// VerifyEmail redeems an email_verification code.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (*VerifyResult, error) {
	return s.Verification.VerifyCode(ctx, email, code, models.PurposeEmailVerification)
}

// Login checks the password and returns a signed access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = NormalizeEmail(email)
	user, err := s.Accounts.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if user == nil || user.PasswordHash == "" {
		logging.Logger.Infof("[auth][login] unknown email=%q", email)
		return "", nil, fmt.Errorf("%w: invalid email or password", utils.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		logging.Logger.Infof("[auth][login] bcrypt mismatch user_id=%s", user.ID)
		return "", nil, fmt.Errorf("%w: invalid email or password", utils.ErrUnauthorized)
	}
	if !user.EmailConfirmed {
		return "", nil, fmt.Errorf("%w: email not verified", utils.ErrForbidden)
	}

	token, err := utils.NewAccessToken(s.JWTSecret, s.Issuer, user.ID, user.UserType, s.AccessTTL, s.now())
	if err != nil {
		return "", nil, fmt.Errorf("sign access token: %w", err)
	}
	logging.Logger.Infof("[auth][login] success user_id=%s role=%s", user.ID, user.UserType)
	return token, user, nil
}

// RequestPasswordReset never reveals whether the email has an account.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	user, err := s.Accounts.GetByEmail(ctx, email)
	if err != nil {
		logging.Logger.WithError(err).Errorf("[auth][reset-request] lookup failed email=%q", email)
		return nil
	}
	if user == nil {
		// don't leak existence
		logging.Logger.Infof("[auth][reset-request] no account for email=%q", email)
		return nil
	}
	err = s.Verification.IssueCode(ctx, email, models.PurposePasswordReset, user.ID)
	if err != nil && !errors.Is(err, utils.ErrRateLimited) {
		// same answer as for an unknown email
		logging.Logger.WithError(err).Errorf("[auth][reset-request] issue failed email=%q", email)
		return nil
	}
	return err
}

// ResendCode issues a fresh code. Unknown emails and already confirmed
// accounts get the same silent success.
func (s *AuthService) ResendCode(ctx context.Context, email string, purpose models.CodePurpose) error {
	if !purpose.Valid() {
		return fmt.Errorf("%w: unknown purpose %q", utils.ErrValidation, purpose)
	}
	email = NormalizeEmail(email)
	user, err := s.Accounts.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}
	if purpose == models.PurposeEmailVerification && user.EmailConfirmed {
		return nil
	}
	return s.Verification.IssueCode(ctx, email, purpose, user.ID)
}

// ResetPassword redeems a password_reset code and stores the new password.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	res, err := s.Verification.VerifyCode(ctx, email, code, models.PurposePasswordReset)
	if err != nil {
		return err
	}
	if res.User == nil {
		return fmt.Errorf("%w: account not found", utils.ErrNotFound)
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.Accounts.UpdatePassword(ctx, res.User.ID, hash); err != nil {
		return err
	}
	logging.Logger.Infof("[auth][reset] password updated user_id=%s", res.User.ID)
	return nil
}
