package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wedhub/internal/models"
	"wedhub/internal/services"
)

type InvoiceHandler struct {
	invoices *services.InvoiceService
}

func NewInvoiceHandler(invoices *services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

type CreateInvoiceRequest struct {
	InquiryID      uuid.UUID          `json:"inquiryId" binding:"required"`
	Type           models.InvoiceType `json:"type" binding:"required"`
	Subtotal       decimal.Decimal    `json:"subtotal"`
	TaxAmount      *decimal.Decimal   `json:"taxAmount"`
	DiscountAmount *decimal.Decimal   `json:"discountAmount"`
	Currency       string             `json:"currency"`
	DueDate        *string            `json:"dueDate"`
	Description    string             `json:"description"`
	Notes          string             `json:"notes"`
}

type UpdateInvoiceRequest struct {
	Subtotal       *decimal.Decimal      `json:"subtotal"`
	TaxAmount      *decimal.Decimal      `json:"taxAmount"`
	DiscountAmount *decimal.Decimal      `json:"discountAmount"`
	Status         *models.InvoiceStatus `json:"status"`
	DueDate        *string               `json:"dueDate"`
	Description    *string               `json:"description"`
	Notes          *string               `json:"notes"`
}

type InvoiceListResponse struct {
	Items []*models.Invoice `json:"items"`
	Page  int               `json:"page"`
	Size  int               `json:"size"`
}

// @Summary      Создать счёт
// @Description  Vendor drafts an invoice against an accepted or responded inquiry
// @Tags         Invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      CreateInvoiceRequest  true  "Invoice"
// @Success      200   {object}  models.Invoice
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /api/invoices [post]
func (h *InvoiceHandler) Create(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invoice.create", err)
		return
	}
	due, err := parseDate("dueDate", req.DueDate)
	if err != nil {
		respondError(c, "invoice.create", err)
		return
	}
	inv, err := h.invoices.Create(c.Request.Context(), actor, services.CreateInvoiceInput{
		InquiryID:      req.InquiryID,
		Type:           req.Type,
		Subtotal:       req.Subtotal,
		TaxAmount:      req.TaxAmount,
		DiscountAmount: req.DiscountAmount,
		Currency:       req.Currency,
		DueDate:        due,
		Description:    req.Description,
		Notes:          req.Notes,
	})
	if err != nil {
		respondError(c, "invoice.create", err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// @Summary      Список счетов
// @Description  Vendors see their own invoices, customers the ones addressed to them, admins all
// @Tags         Invoices
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Invoice status"
// @Param        page    query     int     false  "Page (1-based)"
// @Param        size    query     int     false  "Page size"
// @Success      200     {object}  InvoiceListResponse
// @Failure      400     {object}  ErrorResponse
// @Router       /api/invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)
	items, err := h.invoices.List(c.Request.Context(), actor, models.InvoiceStatus(c.Query("status")), limit, offset)
	if err != nil {
		respondError(c, "invoice.list", err)
		return
	}
	if items == nil {
		items = []*models.Invoice{}
	}
	c.JSON(http.StatusOK, InvoiceListResponse{Items: items, Page: offset/limit + 1, Size: limit})
}

// @Summary      Получить счёт
// @Tags         Invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  models.Invoice
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, "invoice.get", err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// @Summary      Обновить счёт
// @Description  Partial update; the total is recomputed whenever an amount changes
// @Tags         Invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id    path      string                true  "Invoice ID"
// @Param        body  body      UpdateInvoiceRequest  true  "Patch"
// @Success      200   {object}  models.Invoice
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /api/invoices/{id} [put]
func (h *InvoiceHandler) Update(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invoice.update", err)
		return
	}
	due, err := parseDate("dueDate", req.DueDate)
	if err != nil {
		respondError(c, "invoice.update", err)
		return
	}
	inv, err := h.invoices.Update(c.Request.Context(), actor, id, services.InvoicePatch{
		Subtotal:       req.Subtotal,
		TaxAmount:      req.TaxAmount,
		DiscountAmount: req.DiscountAmount,
		Status:         req.Status,
		DueDate:        due,
		Description:    req.Description,
		Notes:          req.Notes,
	})
	if err != nil {
		respondError(c, "invoice.update", err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// @Summary      Отправить счёт клиенту
// @Description  Moves a DRAFT invoice to PENDING
// @Tags         Invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  models.Invoice
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/invoices/{id}/send [post]
func (h *InvoiceHandler) Send(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.Send(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, "invoice.send", err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// @Summary      PDF счёта
// @Tags         Invoices
// @Security     BearerAuth
// @Produce      application/pdf
// @Param        id   path  string  true  "Invoice ID"
// @Success      200  {file}  file
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/invoices/{id}/pdf [get]
func (h *InvoiceHandler) PDF(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var buf bytes.Buffer
	inv, err := h.invoices.RenderPDF(c.Request.Context(), actor, id, &buf)
	if err != nil {
		respondError(c, "invoice.pdf", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s.pdf"`, inv.InvoiceNumber))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
