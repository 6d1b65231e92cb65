package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ziplinepark/canopy/internal"
	"github.com/ziplinepark/canopy/internal/billing"
	"github.com/ziplinepark/canopy/internal/email"
	"github.com/ziplinepark/canopy/internal/handler"
	"github.com/ziplinepark/canopy/internal/onebooking"
	"github.com/ziplinepark/canopy/internal/postgres"
	"github.com/ziplinepark/canopy/internal/service"
	"github.com/ziplinepark/canopy/internal/telemetry"
	"github.com/ziplinepark/canopy/migrations"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	// Verify database connection
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := migrations.Run(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Initialize stores
	bookingStore := postgres.NewBookingStore(pool)
	promoStore := postgres.NewPromoStore(pool)

	// Initialize Stripe billing provider
	logger.Info("Initializing Stripe billing provider...")
	billingProvider, err := billing.NewStripeProvider(billing.StripeConfig{
		APIKey:        cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Stripe provider: %w", err)
	}
	logger.Info("Stripe billing provider initialized")

	// Initialize email sender and service
	logger.Info("Initializing email service...", "provider", cfg.Email.Provider)
	var sender email.Sender
	switch cfg.Email.Provider {
	case "resend":
		sender = email.NewResendSender(cfg.Email.ResendAPIKey)
	default:
		sender = email.NewSMTPSender(&email.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     int(cfg.Email.Port),
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
		}, logger)
	}
	emailService, err := email.NewService(sender, cfg.Email.From, cfg.Email.FromName, cfg.Email.AdminAddress)
	if err != nil {
		return fmt.Errorf("failed to initialize email service: %w", err)
	}
	logger.Info("Email service initialized")

	// Initialize external booking-system sync (nil when not configured)
	syncClient := onebooking.NewClient(cfg.Sync.URL, cfg.Sync.APIKey, logger)
	if syncClient == nil {
		logger.Warn("OneBooking sync disabled: ONEBOOKING_URL not set")
	}

	// Initialize business metrics
	telemetry.Init()

	// Initialize services
	bookingService := service.NewBookingService(
		bookingStore, promoStore, billingProvider, syncClient, logger, cfg.Currency)
	reconciler := service.NewReconciler(
		bookingStore, promoStore, emailService, syncClient, logger)

	// Initialize HTTP handler and routes
	h := handler.New(bookingService, reconciler, billingProvider, logger,
		cfg.AdminToken, cfg.Stripe.PublishableKey)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(requestLogger(logger))
	e.Use(echomw.BodyLimit("1M"))
	h.Register(e)

	// Start server with graceful shutdown
	addr := fmt.Sprintf(":%d", cfg.Port)
	go func() {
		logger.Info("Starting booking server", "address", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("Server stopped")

	return nil
}

// requestLogger logs each request with the structured logger.
func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
				logger.Error("request", attrs...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	})
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
