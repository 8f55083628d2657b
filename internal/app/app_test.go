package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wedhub/internal/config"
	"wedhub/internal/handlers"
	"wedhub/internal/models"
	"wedhub/internal/services"
)

const testPassword = "correct-horse"

func testConfig(env string) *config.Config {
	cfg := &config.Config{}
	cfg.Server.Port = 8080
	cfg.App.Name = "wedhub"
	cfg.App.Env = env
	cfg.App.DefaultCurrency = "USD"
	cfg.Database.Driver = config.DriverMemory
	cfg.Auth.JWTSecret = "an-example-secret-that-is-32-bytes!"
	cfg.Auth.Issuer = "wedhub"
	cfg.Auth.AccessTTL = 15 * time.Minute
	cfg.Server.ShutdownTimeout = time.Second
	cfg.Jobs.OverdueSweepCron = "@hourly"
	return cfg
}

type world struct {
	app      *App
	vendor   *models.Vendor
	inquiry  *models.Inquiry
	owner    *models.User
	customer *models.User
}

func newWorld(t *testing.T, env string) *world {
	t.Helper()
	gin.SetMode(gin.TestMode)
	a, err := Open(context.Background(), testConfig(env))
	require.NoError(t, err)
	require.NotNil(t, a.Memory)
	t.Cleanup(func() {
		_ = a.Close()
		handlers.SetErrorDetails(true)
	})

	hash, err := services.HashPassword(testPassword)
	require.NoError(t, err)
	now := time.Now()
	w := &world{app: a}
	w.owner = &models.User{ID: uuid.New(), Email: "vendor@example.com", PasswordHash: hash, FirstName: "Vera", LastName: "Lee", UserType: "vendor", EmailConfirmed: true, EmailConfirmedAt: &now}
	w.customer = &models.User{ID: uuid.New(), Email: "couple@example.com", PasswordHash: hash, FirstName: "Sam", LastName: "Roe", UserType: "customer", EmailConfirmed: true, EmailConfirmedAt: &now}
	a.Memory.PutUser(w.owner)
	a.Memory.PutUser(w.customer)
	w.vendor = &models.Vendor{ID: uuid.New(), OwnerID: w.owner.ID, BusinessName: "Petal Studio"}
	a.Memory.PutVendor(w.vendor)
	w.inquiry = &models.Inquiry{ID: uuid.New(), VendorID: w.vendor.ID, UserID: w.customer.ID, Status: models.InquiryStatusAccepted, CreatedAt: now}
	a.Memory.PutInquiry(w.inquiry)
	return w
}

func (w *world) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	w.app.Handler.ServeHTTP(rec, req)
	return rec
}

func (w *world) login(t *testing.T, email string) string {
	t.Helper()
	rec := w.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp handlers.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Bearer", resp.TokenType)
	return resp.AccessToken
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestInvoiceToSettledPayment(t *testing.T) {
	w := newWorld(t, config.EnvDevelopment)
	vendorTok := w.login(t, w.owner.Email)
	customerTok := w.login(t, w.customer.Email)

	// customers cannot issue invoices
	rec := w.do(t, http.MethodPost, "/api/invoices", customerTok, gin.H{"inquiryId": w.inquiry.ID, "type": "DEPOSIT", "subtotal": 500})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = w.do(t, http.MethodPost, "/api/invoices", vendorTok, gin.H{
		"inquiryId": w.inquiry.ID,
		"type":      "DEPOSIT",
		"subtotal":  "450.00",
		"taxAmount": "50",
		"dueDate":   "2030-01-15",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	inv := decode[models.Invoice](t, rec)
	assert.Equal(t, models.InvoiceDraft, inv.Status)
	assert.Equal(t, "500", inv.TotalAmount.String())
	assert.Regexp(t, `^INV-\d{4}-000001$`, inv.InvoiceNumber)

	rec = w.do(t, http.MethodPost, "/api/invoices", vendorTok, gin.H{"inquiryId": w.inquiry.ID, "type": "DEPOSIT", "subtotal": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = w.do(t, http.MethodPost, "/api/invoices/"+inv.ID.String()+"/send", vendorTok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = w.do(t, http.MethodGet, "/api/invoices?status=PENDING", customerTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[handlers.InvoiceListResponse](t, rec)
	require.Len(t, list.Items, 1)
	assert.Equal(t, inv.ID, list.Items[0].ID)
	assert.Equal(t, 1, list.Page)

	rec = w.do(t, http.MethodGet, "/api/invoices/"+inv.ID.String()+"/pdf", customerTok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = w.do(t, http.MethodPost, "/api/payments", customerTok, gin.H{"invoiceId": inv.ID, "amount": "500", "method": "mobile_money"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[handlers.CreatePaymentResponse](t, rec)
	require.NotNil(t, created.Payment)
	assert.Equal(t, models.PaymentPending, created.Payment.Status)
	assert.Empty(t, created.ClientSecret)
	paymentPath := "/api/payments/" + created.Payment.ID.String()

	rec = w.do(t, http.MethodPut, paymentPath, customerTok, gin.H{"status": "SUCCEEDED"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = w.do(t, http.MethodPost, "/api/payments/receipts", customerTok, gin.H{
		"paymentId":       created.Payment.ID,
		"invoiceId":       inv.ID,
		"receiptImageUrl": "https://files.example.com/r/1.jpg",
		"receiptNumber":   "KSP-001",
		"paymentProvider": "kaspi",
		"phoneNumber":     "+77010000000",
		"amount":          "500",
		"paymentDate":     "2025-06-01",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	receipt := decode[models.PaymentReceipt](t, rec)
	assert.Equal(t, models.ReceiptPending, receipt.Status)

	rec = w.do(t, http.MethodPost, "/api/payments/receipts/"+receipt.ID.String()+"/review", customerTok, gin.H{"status": "verified"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = w.do(t, http.MethodPost, "/api/payments/receipts/"+receipt.ID.String()+"/review", vendorTok, gin.H{"status": "verified", "notes": "ok"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = w.do(t, http.MethodGet, paymentPath, customerTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[models.Payment](t, rec)
	assert.Equal(t, models.PaymentSucceeded, p.Status)
	assert.NotNil(t, p.ProcessedAt)

	rec = w.do(t, http.MethodPut, paymentPath, vendorTok, gin.H{"status": "REFUNDED", "refundAmount": "500.01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = w.do(t, http.MethodPut, paymentPath, vendorTok, gin.H{"status": "PENDING"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidTransition", decode[handlers.ErrorResponse](t, rec).Code)
	rec = w.do(t, http.MethodPut, paymentPath, vendorTok, gin.H{"status": "PARTIALLY_REFUNDED", "refundAmount": "100"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotNil(t, decode[models.Payment](t, rec).RefundedAt)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	w := newWorld(t, config.EnvDevelopment)
	rec := w.do(t, http.MethodGet, "/api/invoices", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = w.do(t, http.MethodGet, "/api/invoices", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok := w.login(t, w.customer.Email)
	rec = w.do(t, http.MethodGet, "/api/invoices/not-a-uuid", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = w.do(t, http.MethodGet, "/api/invoices/"+uuid.NewString(), tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthEndpoints(t *testing.T) {
	w := newWorld(t, config.EnvDevelopment)

	rec := w.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"email": "new@example.com", "password": "long-enough", "firstName": "N", "lastName": "E", "userType": "customer",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = w.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"email": "new@example.com", "password": "long-enough", "firstName": "N", "lastName": "E", "userType": "customer",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = w.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "new@example.com", "password": "long-enough"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = w.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": w.owner.Email, "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = w.do(t, http.MethodPost, "/api/auth/verify-code", "", gin.H{"email": "new@example.com", "code": "000000"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidOrExpiredCode", decode[handlers.ErrorResponse](t, rec).Code)

	// same answer whether or not the account exists
	known := w.do(t, http.MethodPost, "/api/auth/request-reset-code", "", gin.H{"email": w.customer.Email})
	unknown := w.do(t, http.MethodPost, "/api/auth/request-reset-code", "", gin.H{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())

	for i := 0; i < 2; i++ {
		rec = w.do(t, http.MethodPost, "/api/auth/resend-code", "", gin.H{"email": w.customer.Email, "purpose": "password_reset"})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec = w.do(t, http.MethodPost, "/api/auth/resend-code", "", gin.H{"email": w.customer.Email, "purpose": "password_reset"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestTelegramLinking(t *testing.T) {
	w := newWorld(t, config.EnvDevelopment)
	vendorTok := w.login(t, w.owner.Email)
	customerTok := w.login(t, w.customer.Email)

	path := "/api/vendors/" + w.vendor.ID.String() + "/telegram-link"
	rec := w.do(t, http.MethodPost, path, customerTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = w.do(t, http.MethodPost, path, vendorTok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	link := decode[handlers.TelegramLinkResponse](t, rec)
	require.Len(t, link.Code, 32)

	update := gin.H{
		"update_id": 1,
		"message": gin.H{
			"message_id": 10,
			"date":       time.Now().Unix(),
			"text":       "/link " + link.Code,
			"chat":       gin.H{"id": 555, "type": "private"},
		},
	}
	rec = w.do(t, http.MethodPost, "/api/integrations/telegram/webhook", "", update)
	assert.Equal(t, http.StatusOK, rec.Code)

	v, err := w.app.Memory.GetVendor(context.Background(), w.vendor.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(555), v.TelegramChat)

	// malformed updates are acknowledged too
	rec = w.do(t, http.MethodPost, "/api/integrations/telegram/webhook", "", gin.H{"update_id": 2})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStripeWebhookWithoutGateway(t *testing.T) {
	w := newWorld(t, config.EnvDevelopment)
	rec := w.do(t, http.MethodPost, "/api/payments/webhook/stripe", "", gin.H{"type": "payment_intent.succeeded"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	w := newWorld(t, config.EnvDevelopment)
	rec := w.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	w.app.Memory.WithError(assert.AnError)
	rec = w.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInternalErrorDetails(t *testing.T) {
	for _, env := range []string{config.EnvDevelopment, config.EnvProduction} {
		t.Run(env, func(t *testing.T) {
			w := newWorld(t, env)
			tok := w.login(t, w.customer.Email)
			w.app.Memory.WithError(assert.AnError)

			rec := w.do(t, http.MethodGet, "/api/invoices", tok, nil)
			require.Equal(t, http.StatusInternalServerError, rec.Code)
			body := decode[handlers.ErrorResponse](t, rec)
			assert.Equal(t, "Internal server error", body.Error)
			if env == config.EnvProduction {
				assert.Empty(t, body.Details)
			} else {
				assert.Equal(t, assert.AnError.Error(), body.Details)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	w := newWorld(t, config.EnvDevelopment)
	req := httptest.NewRequest(http.MethodOptions, "/api/invoices", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	w.app.Handler.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
