package routes

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"wedhub/internal/authz"
	"wedhub/internal/handlers"
	"wedhub/internal/middleware"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	Invoices *handlers.InvoiceHandler
	Payments *handlers.PaymentHandler
	Health   *handlers.HealthHandler

	Integrations *handlers.IntegrationsHandler
}

func SetupRoutes(r *gin.Engine, h Handlers, jwtSecret []byte) *gin.Engine {
	// ---- public
	r.GET("/healthz", h.Health.Healthz)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	auth := r.Group("/api/auth")
	{
		auth.POST("/signup", h.Auth.Signup)
		auth.POST("/verify-code", h.Auth.VerifyCode)
		auth.POST("/request-reset-code", h.Auth.RequestResetCode)
		auth.POST("/resend-code", h.Auth.ResendCode)
		auth.POST("/reset-password", h.Auth.ResetPassword)
		auth.POST("/login", h.Auth.Login)
	}

	// подпись Stripe вместо JWT
	r.POST("/api/payments/webhook/stripe", h.Payments.StripeWebhook)
	r.POST("/api/integrations/telegram/webhook", h.Integrations.TelegramWebhook)

	// ---- protected
	api := r.Group("/api", middleware.Auth(jwtSecret))

	invoices := api.Group("/invoices")
	{
		invoices.POST("", middleware.RequireRoles(authz.RoleVendor), h.Invoices.Create)
		invoices.GET("", h.Invoices.List)
		invoices.GET("/:id", h.Invoices.Get)
		invoices.PUT("/:id", middleware.RequireRoles(authz.RoleVendor), h.Invoices.Update)
		invoices.GET("/:id/pdf", h.Invoices.PDF)
		invoices.POST("/:id/send", middleware.RequireRoles(authz.RoleVendor), h.Invoices.Send)
	}

	payments := api.Group("/payments")
	{
		payments.POST("", h.Payments.Create)
		payments.GET("/:id", h.Payments.Get)
		payments.PUT("/:id", middleware.RequireRoles(authz.RoleVendor, authz.RoleAdmin), h.Payments.Update)
		payments.POST("/receipts", h.Payments.SubmitReceipt)
		payments.POST("/receipts/:id/review", middleware.RequireRoles(authz.RoleVendor, authz.RoleAdmin), h.Payments.ReviewReceipt)
	}

	vendors := api.Group("/vendors")
	{
		vendors.POST("/:id/telegram-link", middleware.RequireRoles(authz.RoleVendor, authz.RoleAdmin), h.Integrations.RequestTelegramLink)
	}

	return r
}
