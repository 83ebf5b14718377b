package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/archivemint-backend/internal/bootstrap"
	"github.com/angelmondragon/archivemint-backend/internal/cron"
	"github.com/angelmondragon/archivemint-backend/pkg/config"
	"github.com/angelmondragon/archivemint-backend/pkg/instance"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
	"github.com/angelmondragon/archivemint-backend/pkg/metrics"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Environment: cfg.App.Env,
		Instance:    instance.ID("cron-worker"),
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	clients, err := bootstrap.Open(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap clients", err)
		os.Exit(1)
	}
	defer clients.Close(context.Background(), logg)

	services, err := bootstrap.Wire(cfg, logg, clients, prometheus.DefaultRegisterer)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	registry, err := buildRegistry(cfg, logg, services)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(clients.Redis, clients.Redis.LockKey("cron-worker"), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"interval":    cfg.Cron.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, services *bootstrap.Services) (*cron.Registry, error) {
	listingExpiry, err := cron.NewListingExpiryJob(cron.ListingExpiryJobParams{
		Logger:   logg,
		Listings: services.Listings,
	})
	if err != nil {
		return nil, err
	}
	pendingExpiry, err := cron.NewPendingExpiryJob(cron.PendingExpiryJobParams{
		Logger:  logg,
		Pending: services.Pending,
	})
	if err != nil {
		return nil, err
	}
	balanceMonitor, err := cron.NewBalanceMonitorJob(cron.BalanceMonitorJobParams{
		Logger:         logg,
		Monitor:        services.Balance,
		AvgMintsPerDay: cfg.Balance.DefaultMintsPerDay,
	})
	if err != nil {
		return nil, err
	}
	confirmSweep, err := cron.NewMintConfirmSweepJob(cron.MintConfirmSweepJobParams{
		Logger:  logg,
		Records: services.Records,
		Mints:   services.Mints,
		MinAge:  cfg.Cron.ConfirmSweepAge,
		Batch:   cfg.Cron.ConfirmBatch,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(listingExpiry, pendingExpiry, balanceMonitor, confirmSweep)
}
