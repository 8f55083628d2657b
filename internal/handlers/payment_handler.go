package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wedhub/internal/logging"
	"wedhub/internal/models"
	"wedhub/internal/payments"
	"wedhub/internal/services"
)

const maxWebhookBody = 64 << 10

type PaymentHandler struct {
	payments *services.PaymentService
	receipts *services.ReceiptService
}

func NewPaymentHandler(payments *services.PaymentService, receipts *services.ReceiptService) *PaymentHandler {
	return &PaymentHandler{payments: payments, receipts: receipts}
}

type CreatePaymentRequest struct {
	InvoiceID uuid.UUID       `json:"invoiceId" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Method    string          `json:"method" binding:"required"`
}

type CreatePaymentResponse struct {
	Payment      *models.Payment `json:"payment"`
	ClientSecret string          `json:"clientSecret,omitempty"`
}

type UpdatePaymentRequest struct {
	Status           *models.PaymentStatus `json:"status"`
	FailureReason    *string               `json:"failureReason"`
	RefundAmount     *decimal.Decimal      `json:"refundAmount"`
	ProviderMetadata map[string]string     `json:"providerMetadata"`
}

type SubmitReceiptRequest struct {
	PaymentID       uuid.UUID       `json:"paymentId" binding:"required"`
	InvoiceID       uuid.UUID       `json:"invoiceId" binding:"required"`
	ReceiptImageURL string          `json:"receiptImageUrl" binding:"required"`
	ReceiptNumber   string          `json:"receiptNumber" binding:"required"`
	PaymentProvider string          `json:"paymentProvider" binding:"required"`
	PhoneNumber     string          `json:"phoneNumber" binding:"required"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	PaymentDate     *string         `json:"paymentDate"`
	Notes           string          `json:"notes"`
}

type ReviewReceiptRequest struct {
	Status models.ReceiptStatus `json:"status" binding:"required"`
	Notes  string               `json:"notes"`
}

// @Summary      Создать платёж
// @Description  Card payments open a processor intent and return its client secret
// @Tags         Payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      CreatePaymentRequest  true  "Payment"
// @Success      200   {object}  CreatePaymentResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /api/payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "payment.create", err)
		return
	}
	p, secret, err := h.payments.Create(c.Request.Context(), actor, services.CreatePaymentInput{
		InvoiceID: req.InvoiceID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Method:    req.Method,
	})
	if err != nil {
		respondError(c, "payment.create", err)
		return
	}
	c.JSON(http.StatusOK, CreatePaymentResponse{Payment: p, ClientSecret: secret})
}

// @Summary      Получить платёж
// @Tags         Payments
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Payment ID"
// @Success      200  {object}  models.Payment
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	p, err := h.payments.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, "payment.get", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Обновить статус платежа
// @Description  Applies the payment status transition table; vendor owner or admin only
// @Tags         Payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id    path      string                true  "Payment ID"
// @Param        body  body      UpdatePaymentRequest  true  "Update"
// @Success      200   {object}  models.Payment
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /api/payments/{id} [put]
func (h *PaymentHandler) Update(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "payment.update", err)
		return
	}
	p, err := h.payments.Update(c.Request.Context(), actor, id, services.PaymentUpdate{
		Status:           req.Status,
		FailureReason:    req.FailureReason,
		RefundAmount:     req.RefundAmount,
		ProviderMetadata: req.ProviderMetadata,
	})
	if err != nil {
		respondError(c, "payment.update", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Stripe webhook
// @Description  Verifies the Stripe-Signature header and applies the event to the payment
// @Tags         Payments
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]bool
// @Failure      400  {object}  ErrorResponse
// @Router       /api/payments/webhook/stripe [post]
func (h *PaymentHandler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		badRequest(c, "payment.webhook", err)
		return
	}
	ev, err := h.payments.Gateway.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payments.ErrWebhookSignature) {
			logging.Logger.Warnf("[payment][webhook] rejected: %v", err)
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "invalid signature", Code: "ValidationFailed"})
			return
		}
		badRequest(c, "payment.webhook", err)
		return
	}
	if err := h.payments.HandleProviderEvent(c.Request.Context(), ev); err != nil {
		respondError(c, "payment.webhook", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// @Summary      Загрузить чек об оплате
// @Description  The payer submits proof of a manual (e.g. mobile money) payment
// @Tags         Receipts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      SubmitReceiptRequest  true  "Receipt"
// @Success      200   {object}  models.PaymentReceipt
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /api/payments/receipts [post]
func (h *PaymentHandler) SubmitReceipt(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req SubmitReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "receipt.submit", err)
		return
	}
	paidAt, err := parseDate("paymentDate", req.PaymentDate)
	if err != nil {
		respondError(c, "receipt.submit", err)
		return
	}
	r, err := h.receipts.Submit(c.Request.Context(), actor, services.SubmitReceiptInput{
		PaymentID:       req.PaymentID,
		InvoiceID:       req.InvoiceID,
		ReceiptImageURL: req.ReceiptImageURL,
		ReceiptNumber:   req.ReceiptNumber,
		PaymentProvider: req.PaymentProvider,
		PhoneNumber:     req.PhoneNumber,
		Amount:          req.Amount,
		Currency:        req.Currency,
		PaymentDate:     paidAt,
		Notes:           req.Notes,
	})
	if err != nil {
		respondError(c, "receipt.submit", err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// @Summary      Проверить чек
// @Description  Vendor owner or admin verifies or rejects a pending receipt
// @Tags         Receipts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id    path      string                true  "Receipt ID"
// @Param        body  body      ReviewReceiptRequest  true  "Decision"
// @Success      200   {object}  models.PaymentReceipt
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Router       /api/payments/receipts/{id}/review [post]
func (h *PaymentHandler) ReviewReceipt(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req ReviewReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "receipt.review", err)
		return
	}
	r, err := h.receipts.Review(c.Request.Context(), actor, id, req.Status, req.Notes)
	if err != nil {
		respondError(c, "receipt.review", err)
		return
	}
	c.JSON(http.StatusOK, r)
}
