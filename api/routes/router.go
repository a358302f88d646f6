package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mhartwell/studioline-backend/api/controllers"
	webhookcontrollers "github.com/mhartwell/studioline-backend/api/controllers/webhooks"
	"github.com/mhartwell/studioline-backend/api/middleware"
	"github.com/mhartwell/studioline-backend/internal/campaigns"
	"github.com/mhartwell/studioline-backend/internal/invoices"
	"github.com/mhartwell/studioline-backend/internal/payments"
	stripewebhook "github.com/mhartwell/studioline-backend/internal/webhooks/stripe"
	"github.com/mhartwell/studioline-backend/pkg/config"
	"github.com/mhartwell/studioline-backend/pkg/db"
	"github.com/mhartwell/studioline-backend/pkg/enums"
	"github.com/mhartwell/studioline-backend/pkg/logger"
	"github.com/mhartwell/studioline-backend/pkg/metrics"
	"github.com/mhartwell/studioline-backend/pkg/redis"
	"github.com/mhartwell/studioline-backend/pkg/storage/gcs"
	"github.com/mhartwell/studioline-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	mets *metrics.Metrics,
	gatherer prometheus.Gatherer,
	dbP db.Pinger,
	redisP redis.Pinger,
	gcsP gcs.Pinger,
	paymentService payments.Service,
	invoiceService invoices.Service,
	campaignService campaigns.Service,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, mets),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP, gcsP))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))
	})

	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Post("/", controllers.CheckoutStart(paymentService, logg))
		r.Post("/confirm", controllers.CheckoutConfirm(paymentService, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(string(enums.ActorRoleAdmin), logg))

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", controllers.AdminProjectList(paymentService, logg))
			r.Post("/", controllers.AdminProjectCreate(paymentService, logg))
			r.Get("/{projectCode}", controllers.AdminProjectDetail(paymentService, invoiceService, logg))
			r.Patch("/{projectCode}/status", controllers.AdminProjectStatusUpdate(paymentService, logg))
			r.Post("/{projectCode}/invoices", controllers.AdminProjectInvoiceBackfill(invoiceService, logg))
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", controllers.AdminCampaignCreate(campaignService, logg))
			r.Get("/{campaignId}", controllers.AdminCampaignDetail(campaignService, logg))
			r.Post("/{campaignId}/continue", controllers.AdminCampaignContinue(campaignService, logg))
		})
	})

	return r
}
