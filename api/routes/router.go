package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/archivemint-backend/api/controllers"
	assetcontrollers "github.com/angelmondragon/archivemint-backend/api/controllers/assets"
	listingcontrollers "github.com/angelmondragon/archivemint-backend/api/controllers/listings"
	mintcontrollers "github.com/angelmondragon/archivemint-backend/api/controllers/mints"
	webhookcontrollers "github.com/angelmondragon/archivemint-backend/api/controllers/webhooks"
	"github.com/angelmondragon/archivemint-backend/api/middleware"
	"github.com/angelmondragon/archivemint-backend/internal/analysis"
	"github.com/angelmondragon/archivemint-backend/internal/assets"
	"github.com/angelmondragon/archivemint-backend/internal/balance"
	"github.com/angelmondragon/archivemint-backend/internal/entitlements"
	"github.com/angelmondragon/archivemint-backend/internal/listings"
	"github.com/angelmondragon/archivemint-backend/internal/mints"
	"github.com/angelmondragon/archivemint-backend/internal/payments"
	"github.com/angelmondragon/archivemint-backend/internal/quota"
	"github.com/angelmondragon/archivemint-backend/internal/users"
	"github.com/angelmondragon/archivemint-backend/pkg/config"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
	"github.com/angelmondragon/archivemint-backend/pkg/metrics"
	pkgstripe "github.com/angelmondragon/archivemint-backend/pkg/stripe"
)

// RouterParams carries everything the HTTP surface calls into.
type RouterParams struct {
	Config       *config.Config
	Logger       *logger.Logger
	Pingers      map[string]controllers.Pinger
	Gatherer     prometheus.Gatherer
	HTTPMetrics  *metrics.HTTPMetrics
	Idempotency  middleware.ResponseStore
	Users        *users.Repository
	Assets       assets.Service
	Quota        *quota.Manager
	Entitlements *entitlements.Gate
	Payments     payments.Service
	Stripe       *pkgstripe.Client
	WebhookGuard *payments.EventGuard
	Balance      *balance.Monitor
	Mints        mints.Service
	Analysis     analysis.Service
	Listings     listings.Service
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger
	idem := middleware.Idempotent(p.Idempotency, logg, middleware.IdempotencyTTL)
	paid := middleware.Idempotent(p.Idempotency, logg, middleware.PaymentIdempotencyTTL)

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.AccessLog(logg, p.HTTPMetrics),
		middleware.CORS(cfg.App.PublicURL),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Pingers))
	})
	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.Payments, p.Stripe, p.WebhookGuard, logg))
	})

	r.Route("/api/v1/platform", func(r chi.Router) {
		r.Get("/status", controllers.PlatformStatus(p.Balance, logg))
		r.Head("/status", controllers.PlatformStatus(p.Balance, logg))
		r.With(middleware.MonitorSecret(cfg.Monitor.Secret, logg)).
			Get("/monitor", controllers.PlatformMonitor(p.Balance, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/me", controllers.Account(p.Users, logg))
		r.Get("/quota", assetcontrollers.QuotaUsage(p.Quota, logg))

		r.With(idem).Post("/assets", assetcontrollers.Register(p.Assets, logg))
		r.Get("/assets/{assetId}", assetcontrollers.Get(p.Assets, logg))
		r.Get("/assets/{assetId}/entitlements", assetcontrollers.EntitlementPreview(p.Assets, p.Entitlements, logg))
		r.With(paid).Post("/assets/{assetId}/checkout", assetcontrollers.Checkout(p.Assets, p.Quota, p.Entitlements, p.Payments, logg))
		r.With(idem).Post("/assets/{assetId}/mint", mintcontrollers.Start(p.Mints, logg))
		r.With(idem).Post("/assets/{assetId}/analysis", assetcontrollers.AuthorizeAnalysis(p.Analysis, logg))
		r.Get("/assets/{assetId}/listings", listingcontrollers.ListByAsset(p.Listings, logg))

		r.Get("/mints/{mintId}", mintcontrollers.Get(p.Mints, logg))

		r.With(idem).Post("/listings/custodied", listingcontrollers.CreateCustodied(p.Listings, logg))
		r.Post("/listings/onchain/build", listingcontrollers.BuildOnChain(p.Listings, logg))
		r.With(paid).Post("/listings/onchain/submit", listingcontrollers.SubmitOnChain(p.Listings, logg))
		r.Get("/listings/{listingId}", listingcontrollers.Get(p.Listings, logg))
		r.With(idem).Post("/listings/{listingId}/cancel", listingcontrollers.Cancel(p.Listings, logg))
		r.With(paid).Post("/listings/{listingId}/checkout", listingcontrollers.Checkout(p.Listings, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.ActorRoleOperator))

		r.Post("/mints/{mintId}/confirm", mintcontrollers.AdminConfirm(p.Mints, logg))
		r.Post("/mints/sync", mintcontrollers.AdminSync(p.Mints, logg))
	})

	return r
}
