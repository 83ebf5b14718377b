// Package bootstrap opens the external clients and assembles the service graph shared by
// the api, worker and cron-worker binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/archivemint-backend/internal/analysis"
	"github.com/angelmondragon/archivemint-backend/internal/assets"
	"github.com/angelmondragon/archivemint-backend/internal/balance"
	"github.com/angelmondragon/archivemint-backend/internal/entitlements"
	"github.com/angelmondragon/archivemint-backend/internal/listings"
	"github.com/angelmondragon/archivemint-backend/internal/mints"
	"github.com/angelmondragon/archivemint-backend/internal/payments"
	"github.com/angelmondragon/archivemint-backend/internal/quota"
	"github.com/angelmondragon/archivemint-backend/internal/users"
	"github.com/angelmondragon/archivemint-backend/pkg/arweave"
	"github.com/angelmondragon/archivemint-backend/pkg/config"
	"github.com/angelmondragon/archivemint-backend/pkg/db"
	"github.com/angelmondragon/archivemint-backend/pkg/ledger"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
	"github.com/angelmondragon/archivemint-backend/pkg/metrics"
	"github.com/angelmondragon/archivemint-backend/pkg/migrate"
	"github.com/angelmondragon/archivemint-backend/pkg/pricefeed"
	"github.com/angelmondragon/archivemint-backend/pkg/pubsub"
	"github.com/angelmondragon/archivemint-backend/pkg/redis"
	"github.com/angelmondragon/archivemint-backend/pkg/storage/gcs"
	pkgstripe "github.com/angelmondragon/archivemint-backend/pkg/stripe"
)

const webhookScope = "stripe-webhook"

// Clients holds every external connection. Ledger is nil when the secondary ledger is
// disabled.
type Clients struct {
	DB      *db.Client
	Redis   *redis.Client
	Stripe  *pkgstripe.Client
	Arweave *arweave.Client
	Ledger  *ledger.Client
	PubSub  *pubsub.Client
	GCS     *gcs.Client
	Prices  *pricefeed.Client
	Queue   *asynq.Client
}

// Open connects to every dependency. On failure the clients opened so far are closed.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*Clients, error) {
	c := &Clients{}
	fail := func(name string, err error) (*Clients, error) {
		c.Close(ctx, logg)
		return nil, fmt.Errorf("bootstrap %s: %w", name, err)
	}

	var err error
	if c.DB, err = db.New(ctx, cfg.DB, logg); err != nil {
		return fail("database", err)
	}
	if err = migrate.MaybeRunDev(ctx, cfg, logg, c.DB); err != nil {
		return fail("dev migrations", err)
	}
	if c.Redis, err = redis.New(ctx, cfg.Redis, logg); err != nil {
		return fail("redis", err)
	}
	if c.Stripe, err = pkgstripe.NewClient(ctx, cfg.Stripe, logg); err != nil {
		return fail("stripe", err)
	}
	if c.Arweave, err = arweave.NewClient(ctx, cfg.Arweave, logg); err != nil {
		return fail("arweave", err)
	}
	if c.Ledger, err = ledger.NewClient(ctx, cfg.Ledger, logg); err != nil {
		if !errors.Is(err, ledger.ErrDisabled) {
			return fail("ledger", err)
		}
		c.Ledger = nil
		logg.Info(ctx, "secondary ledger disabled")
	}
	if c.PubSub, err = pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg); err != nil {
		return fail("pubsub", err)
	}
	if c.GCS, err = gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg); err != nil {
		return fail("gcs", err)
	}
	c.Prices = pricefeed.NewClient(cfg.PriceFeed)

	redisOpt, err := redis.QueueOpt(cfg.Redis)
	if err != nil {
		return fail("task queue", err)
	}
	c.Queue = asynq.NewClient(redisOpt)
	return c, nil
}

// Close releases every opened client and logs the combined error.
func (c *Clients) Close(ctx context.Context, logg *logger.Logger) {
	if c == nil {
		return
	}
	var err error
	if c.Queue != nil {
		err = multierr.Append(err, c.Queue.Close())
	}
	if c.Ledger != nil {
		c.Ledger.Close()
	}
	if c.PubSub != nil {
		err = multierr.Append(err, c.PubSub.Close())
	}
	if c.Redis != nil {
		err = multierr.Append(err, c.Redis.Close())
	}
	if c.DB != nil {
		err = multierr.Append(err, c.DB.Close())
	}
	if err != nil && logg != nil {
		logg.Error(ctx, "error closing clients", err)
	}
}

// Services is the assembled domain layer.
type Services struct {
	Users        *users.Repository
	Records      *mints.Repository
	Pending      *payments.PendingRepository
	Quota        *quota.Manager
	Entitlements *entitlements.Gate
	Assets       assets.Service
	Payments     payments.Service
	WebhookGuard *payments.EventGuard
	Balance      *balance.Monitor
	MintQueue    *mints.Queue
	Mints        mints.Service
	Analysis     analysis.Service
	Listings     listings.Service
}

// Wire builds the services on top of opened clients. Metrics register on reg, so Wire runs
// once per process.
func Wire(cfg *config.Config, logg *logger.Logger, c *Clients, reg prometheus.Registerer) (*Services, error) {
	gormDB := c.DB.DB()
	s := &Services{
		Users:   users.NewRepository(gormDB),
		Records: mints.NewRepository(gormDB),
		Pending: payments.NewPendingRepository(gormDB),
	}
	assetRepo := assets.NewRepository(gormDB)

	var err error
	if s.Quota, err = quota.NewManager(cfg.Quota, s.Users, assetRepo); err != nil {
		return nil, fmt.Errorf("quota manager: %w", err)
	}
	pricing, err := entitlements.NewPricing(cfg.Pricing)
	if err != nil {
		return nil, fmt.Errorf("pricing: %w", err)
	}
	if s.Entitlements, err = entitlements.NewGate(entitlements.GateParams{
		Users:        s.Users,
		Mints:        s.Records,
		Pricing:      pricing,
		Entitlements: cfg.Entitlements,
	}); err != nil {
		return nil, fmt.Errorf("entitlement gate: %w", err)
	}
	if s.Assets, err = assets.NewService(assets.ServiceParams{
		Repo:         assetRepo,
		Quota:        s.Quota,
		Throttle:     c.Redis,
		UploadLimit:  cfg.RateLimit.UploadLimit,
		UploadWindow: cfg.RateLimit.UploadWindow,
		Logger:       logg,
	}); err != nil {
		return nil, fmt.Errorf("asset service: %w", err)
	}

	if s.Balance, err = balance.NewMonitor(balance.MonitorParams{
		Wallet:       c.Arweave,
		Prices:       c.Prices,
		Alerts:       c.PubSub.AlertPublisher(),
		Config:       cfg.Balance,
		PriceAssetID: cfg.PriceFeed.AssetID,
		Metrics:      metrics.NewBalanceMetrics(reg),
		Logger:       logg,
	}); err != nil {
		return nil, fmt.Errorf("balance monitor: %w", err)
	}

	s.MintQueue = mints.NewQueue(c.Queue, cfg.Worker.MaxRetry)
	mintParams := mints.ServiceParams{
		Assets:       assetRepo,
		Records:      s.Records,
		Pending:      s.Pending,
		Entitlements: s.Entitlements,
		Quota:        s.Quota,
		Health:       s.Balance,
		Storage:      c.Arweave,
		Objects:      c.GCS,
		Confirms:     s.MintQueue,
		Users:        s.Users,
		TxRunner:     c.DB,
		Config:       cfg.Mint,
		AppName:      cfg.Arweave.AppName,
		Metrics:      metrics.NewMintMetrics(reg),
		Logger:       logg,
	}
	if c.Ledger != nil {
		mintParams.Ledger = c.Ledger
	}
	if s.Mints, err = mints.NewService(mintParams); err != nil {
		return nil, fmt.Errorf("mint service: %w", err)
	}

	if s.Analysis, err = analysis.NewService(analysis.ServiceParams{
		Assets:       assetRepo,
		Entitlements: s.Entitlements,
		Pending:      s.Pending,
		TxRunner:     c.DB,
		Logger:       logg,
	}); err != nil {
		return nil, fmt.Errorf("analysis service: %w", err)
	}

	// payments settles listing sales and listings open checkouts through payments
	sales := &saleForwarder{}
	if s.Payments, err = payments.NewService(payments.ServiceParams{
		Stripe:        c.Stripe,
		Pending:       s.Pending,
		Users:         s.Users,
		Mints:         s.MintQueue,
		Sales:         sales,
		PublicURL:     cfg.App.PublicURL,
		SuccessPath:   cfg.Stripe.SuccessPath,
		CancelPath:    cfg.Stripe.CancelPath,
		PlatformFeePc: cfg.Stripe.PlatformFeePc,
		PendingTTL:    cfg.Stripe.PendingPaymentTTL,
		Logger:        logg,
	}); err != nil {
		return nil, fmt.Errorf("payment service: %w", err)
	}
	if s.WebhookGuard, err = payments.NewEventGuard(c.Redis, cfg.Stripe.WebhookEventTTL, webhookScope); err != nil {
		return nil, fmt.Errorf("webhook guard: %w", err)
	}

	listingParams := listings.ServiceParams{
		Assets:   assetRepo,
		Records:  s.Records,
		Listings: listings.NewRepository(gormDB),
		Checkout: s.Payments,
		Sellers:  s.Users,
		TxRunner: c.DB,
		Config:   cfg.Listing,
		Logger:   logg,
	}
	if c.Ledger != nil {
		listingParams.Marketplace = c.Ledger
	}
	if s.Listings, err = listings.NewService(listingParams); err != nil {
		return nil, fmt.Errorf("listing service: %w", err)
	}
	sales.listings = s.Listings

	return s, nil
}
