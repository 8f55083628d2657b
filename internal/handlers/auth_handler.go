package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"wedhub/internal/logging"
	"wedhub/internal/models"
	"wedhub/internal/services"
	"wedhub/internal/utils"
)

const genericCodeMessage = "If an account exists for this email, a code has been sent"

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type SignupRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Phone     string `json:"phone"`
	UserType  string `json:"userType" binding:"required"`
}

type VerifyCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResendCodeRequest struct {
	Email   string             `json:"email" binding:"required,email"`
	Purpose models.CodePurpose `json:"purpose" binding:"required"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type LoginResponse struct {
	AccessToken string       `json:"accessToken"`
	TokenType   string       `json:"tokenType"`
	ExpiresIn   int          `json:"expiresIn"`
	User        *models.User `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// @Summary      Регистрация
// @Description  Creates an unconfirmed account and emails a 6-digit verification code
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      SignupRequest  true  "Signup data"
// @Success      200   {object}  MessageResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      429   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /api/auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "auth.signup", err)
		return
	}
	user, err := h.auth.Signup(c.Request.Context(), services.SignupInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		UserType:  req.UserType,
	})
	if err != nil {
		respondError(c, "auth.signup", err)
		return
	}
	logging.Logger.Infof("[auth][signup] code sent user_id=%s", user.ID)
	c.JSON(http.StatusOK, MessageResponse{Message: "Verification code sent"})
}

// @Summary      Подтверждение email
// @Description  Redeems an email_verification code; the client must then sign in
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      VerifyCodeRequest  true  "Email and code"
// @Success      200   {object}  services.VerifyResult
// @Failure      400   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /api/auth/verify-code [post]
func (h *AuthHandler) VerifyCode(c *gin.Context) {
	var req VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "auth.verify", err)
		return
	}
	res, err := h.auth.VerifyEmail(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		respondError(c, "auth.verify", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary      Запрос кода сброса пароля
// @Description  Always answers with the same message so account existence is not revealed
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      EmailRequest  true  "Email"
// @Success      200   {object}  MessageResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      429   {object}  ErrorResponse
// @Router       /api/auth/request-reset-code [post]
func (h *AuthHandler) RequestResetCode(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "auth.reset-request", err)
		return
	}
	h.respondGeneric(c, "auth.reset-request", h.auth.RequestPasswordReset(c.Request.Context(), req.Email))
}

// @Summary      Повторная отправка кода
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      ResendCodeRequest  true  "Email and purpose"
// @Success      200   {object}  MessageResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      429   {object}  ErrorResponse
// @Router       /api/auth/resend-code [post]
func (h *AuthHandler) ResendCode(c *gin.Context) {
	var req ResendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "auth.resend", err)
		return
	}
	if !req.Purpose.Valid() {
		respondError(c, "auth.resend", utils.ErrValidation)
		return
	}
	h.respondGeneric(c, "auth.resend", h.auth.ResendCode(c.Request.Context(), req.Email, req.Purpose))
}

// respondGeneric hides everything except rate limiting behind one message.
func (h *AuthHandler) respondGeneric(c *gin.Context, op string, err error) {
	if err != nil {
		if errors.Is(err, utils.ErrRateLimited) {
			respondError(c, op, err)
			return
		}
		logging.Logger.WithError(err).Warnf("[%s] suppressed error", op)
	}
	c.JSON(http.StatusOK, MessageResponse{Message: genericCodeMessage})
}

// @Summary      Сброс пароля
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      ResetPasswordRequest  true  "Email, code and new password"
// @Success      200   {object}  MessageResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /api/auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "auth.reset", err)
		return
	}
	if err := h.auth.ResetPassword(c.Request.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		respondError(c, "auth.reset", err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Password updated"})
}

// @Summary      Вход в систему
// @Description  Returns a short-lived bearer token for a confirmed account
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      models.LoginRequest  true  "Credentials"
// @Success      200    {object}  LoginResponse
// @Failure      400    {object}  ErrorResponse
// @Failure      401    {object}  ErrorResponse
// @Failure      403    {object}  ErrorResponse
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "auth.login", err)
		return
	}
	token, user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, "auth.login", err)
		return
	}
	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.auth.AccessTTL.Seconds()),
		User:        user,
	})
}
