package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	_ "wedhub/docs"
	"wedhub/internal/config"
	"wedhub/internal/handlers"
	"wedhub/internal/jobs"
	"wedhub/internal/logging"
	"wedhub/internal/middleware"
	"wedhub/internal/notify"
	"wedhub/internal/payments"
	"wedhub/internal/pdf"
	"wedhub/internal/repositories"
	"wedhub/internal/repositories/memory"
	"wedhub/internal/routes"
	"wedhub/internal/services"
)

// Stores groups the persistence ports the services need.
type Stores struct {
	Codes     services.CodeStore
	Accounts  services.AccountStore
	Profiles  services.ProfileStore
	Inquiries services.InquiryStore
	Vendors   services.VendorStore
	Invoices  services.InvoiceStore
	Payments  services.PaymentStore
	Receipts  services.ReceiptStore
	Links     services.TelegramLinkStore
	Health    handlers.Pinger
}

func postgresStores(db *sql.DB) Stores {
	inquiries := repositories.NewInquiryRepository(db)
	return Stores{
		Codes:     repositories.NewVerificationCodeRepository(db),
		Accounts:  repositories.NewUserRepository(db),
		Profiles:  repositories.NewProfileRepository(db),
		Inquiries: inquiries,
		Vendors:   inquiries,
		Invoices:  repositories.NewInvoiceRepository(db),
		Payments:  repositories.NewPaymentRepository(db),
		Receipts:  repositories.NewReceiptRepository(db),
		Links:     repositories.NewTelegramLinkRepository(db),
		Health:    db,
	}
}

func memoryStores(m *memory.Store) Stores {
	return Stores{
		Codes: m, Accounts: m, Profiles: m, Inquiries: m, Vendors: m,
		Invoices: m, Payments: m, Receipts: m, Links: m, Health: m,
	}
}

type App struct {
	Config   *config.Config
	DB       *sql.DB
	Memory   *memory.Store // set for the memory driver
	Router   *gin.Engine
	Handler  http.Handler
	Invoices *services.InvoiceService

	scheduler *jobs.Scheduler
}

// Open connects the configured database and builds the App on top of it.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		m := memory.New()
		a, err := New(cfg, memoryStores(m))
		if err != nil {
			return nil, err
		}
		a.Memory = m
		return a, nil
	default:
		db, err := repositories.Open(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			return nil, err
		}
		a, err := New(cfg, postgresStores(db))
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		a.DB = db
		return a, nil
	}
}

// New wires services, handlers and the router over the given stores.
func New(cfg *config.Config, st Stores) (*App, error) {
	handlers.SetErrorDetails(!cfg.IsProduction())

	// === Notifications ===
	var mailer services.CodeMailer
	switch {
	case cfg.SendGrid.APIKey != "":
		mailer = notify.NewSendGridMailer(cfg.SendGrid.APIKey, cfg.SendGrid.FromName, cfg.SendGrid.From, cfg.SendGrid.Sandbox)
	case cfg.Email.SMTPHost != "":
		mailer = notify.NewSMTPMailer(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SMTPUser,
			cfg.Email.SMTPPassword, cfg.Email.FromEmail, cfg.App.Name)
	default:
		logging.Logger.Warn("[app] no mail transport configured, codes are only logged")
		mailer = notify.LogMailer{}
	}

	tg, err := notify.NewTelegram(cfg.Telegram.BotToken)
	if err != nil {
		// без бота приложение работает, просто без уведомлений
		logging.Logger.WithError(err).Warn("[app] telegram disabled")
		tg = &notify.Telegram{}
	}
	if err := tg.SetWebhook(cfg.Telegram.WebhookURL); err != nil {
		logging.Logger.WithError(err).Warn("[app] telegram webhook not registered")
	}
	receiptNotifier := &notify.ReceiptNotifier{
		Telegram: tg,
		SMS:      notify.NewMobizonClient(cfg.Mobizon.APIKey, cfg.Mobizon.SenderID, cfg.Mobizon.DryRun),
		AppName:  cfg.App.Name,
	}

	// === Payments ===
	var gateway payments.Gateway = payments.Manual{}
	if cfg.Stripe.SecretKey != "" {
		gateway = payments.NewStripe(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	}

	// === Services ===
	verification := services.NewVerificationService(st.Codes, st.Accounts, st.Profiles, mailer)
	authService := services.NewAuthService(st.Accounts, verification, []byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, cfg.Auth.AccessTTL)
	invoiceService := services.NewInvoiceService(st.Invoices, st.Inquiries, st.Vendors, cfg.App.DefaultCurrency)
	invoiceService.Renderer = pdf.NewInvoiceGenerator(cfg.Files.FontPath, cfg.App.Name)
	paymentService := services.NewPaymentService(st.Payments, st.Invoices, st.Vendors, gateway)
	receiptService := services.NewReceiptService(st.Receipts, paymentService, receiptNotifier)
	linkService := services.NewTelegramLinkService(st.Links, st.Vendors, tg)

	// === Gin ===
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())

	routes.SetupRoutes(router, routes.Handlers{
		Auth:         handlers.NewAuthHandler(authService),
		Invoices:     handlers.NewInvoiceHandler(invoiceService),
		Payments:     handlers.NewPaymentHandler(paymentService, receiptService),
		Health:       handlers.NewHealthHandler(st.Health),
		Integrations: handlers.NewIntegrationsHandler(linkService, cfg.Telegram.WebhookSecret),
	}, []byte(cfg.Auth.JWTSecret))

	return &App{
		Config:   cfg,
		Router:   router,
		Handler:  corsHandler(cfg).Handler(router),
		Invoices: invoiceService,
	}, nil
}

func corsHandler(cfg *config.Config) *cors.Cors {
	origins := cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Authorization", "Stripe-Signature"},
		AllowCredentials: false,
		MaxAge:           600,
	})
}

// Run serves HTTP and the cron scheduler until ctx is cancelled, then shuts
// both down gracefully.
func (a *App) Run(ctx context.Context) error {
	a.scheduler = jobs.NewScheduler()
	if err := a.scheduler.AddOverdueSweep(a.Config.Jobs.OverdueSweepCron, a.Invoices); err != nil {
		return err
	}
	a.scheduler.Start()

	srv := &http.Server{
		Addr:              a.Config.Addr(),
		Handler:           a.Handler,
		ReadTimeout:       a.Config.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      a.Config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Logger.Infof("[app] listening on %s env=%s", srv.Addr, a.Config.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logging.Logger.Info("[app] shutting down")
	case err := <-errCh:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Logger.WithError(err).Warn("[app] http shutdown")
	}
	a.scheduler.Stop(shutdownCtx)
	return runErr
}

func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
