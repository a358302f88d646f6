package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mhartwell/studioline-backend/api/routes"
	"github.com/mhartwell/studioline-backend/internal/campaigns"
	"github.com/mhartwell/studioline-backend/internal/invoices"
	"github.com/mhartwell/studioline-backend/internal/notifications"
	"github.com/mhartwell/studioline-backend/internal/payments"
	stripewebhook "github.com/mhartwell/studioline-backend/internal/webhooks/stripe"
	"github.com/mhartwell/studioline-backend/pkg/config"
	"github.com/mhartwell/studioline-backend/pkg/db"
	"github.com/mhartwell/studioline-backend/pkg/logger"
	"github.com/mhartwell/studioline-backend/pkg/mail"
	"github.com/mhartwell/studioline-backend/pkg/metrics"
	"github.com/mhartwell/studioline-backend/pkg/migrate"
	"github.com/mhartwell/studioline-backend/pkg/redis"
	"github.com/mhartwell/studioline-backend/pkg/storage/gcs"
	"github.com/mhartwell/studioline-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gcs", err)
		os.Exit(1)
	}

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	mailClient, err := mail.NewClient(cfg.Mail, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap mail", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	mets := metrics.New(registry)

	notifier, err := notifications.NewMilestoneMailer(mailClient, cfg.Mail.DefaultFrom, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifier", err)
		os.Exit(1)
	}

	paymentRepo := payments.NewRepository(dbClient.DB())
	invoiceRepo := invoices.NewRepository(dbClient.DB())

	allocator, err := invoices.NewAllocator(invoiceRepo, cfg.Invoice.NumberPrefix)
	if err != nil {
		logg.Error(context.Background(), "failed to create invoice allocator", err)
		os.Exit(1)
	}

	invoiceService, err := invoices.NewService(invoices.ServiceParams{
		Repo:               invoiceRepo,
		Payments:           paymentRepo,
		Renderer:           invoices.NewHTMLRenderer(),
		Uploader:           gcsClient,
		Allocator:          allocator,
		TaxRatePercent:     cfg.Invoice.TaxRate(),
		AllocationAttempts: cfg.Invoice.AllocationAttempts,
		UploadAttempts:     cfg.Invoice.UploadAttempts,
		Logger:             logg,
		Metrics:            mets,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create invoice service", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Repo:       paymentRepo,
		Stripe:     payments.NewStripeClient(stripeClient),
		Issuer:     invoiceService,
		Notifier:   notifier,
		Logger:     logg,
		Metrics:    mets,
		SuccessURL: cfg.Stripe.SuccessURL,
		CancelURL:  cfg.Stripe.CancelURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	campaignService, err := campaigns.NewService(campaigns.ServiceParams{
		Repo:      campaigns.NewRepository(dbClient.DB()),
		Tx:        dbClient,
		Mailer:    mailClient,
		BatchSize: cfg.Campaign.DailySendLimit,
		Cooldown:  cfg.Campaign.Cooldown,
		Logger:    logg,
		Metrics:   mets,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create campaign service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Payments: paymentService,
		Logger:   logg,
		Metrics:  mets,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, 24*time.Hour, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg, logg, mets, registry,
			dbClient, redisClient, gcsClient,
			paymentService, invoiceService, campaignService,
			stripeClient, webhookService, webhookGuard,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
