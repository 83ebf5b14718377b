package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/archivemint-backend/api/controllers"
	"github.com/angelmondragon/archivemint-backend/api/routes"
	"github.com/angelmondragon/archivemint-backend/internal/bootstrap"
	"github.com/angelmondragon/archivemint-backend/pkg/config"
	"github.com/angelmondragon/archivemint-backend/pkg/env"
	"github.com/angelmondragon/archivemint-backend/pkg/instance"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
	"github.com/angelmondragon/archivemint-backend/pkg/metrics"
)

const shutdownTimeout = 15 * time.Second

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
		Environment: cfg.App.Env,
		Instance:    instance.ID("api"),
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

	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx := logg.WithField(context.Background(), "addr", addr)

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config: cfg,
			Logger: logg,
			Pingers: map[string]controllers.Pinger{
				"database": clients.DB,
				"redis":    clients.Redis,
				"gcs":      clients.GCS,
			},
			Gatherer:     prometheus.DefaultGatherer,
			HTTPMetrics:  metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
			Idempotency:  clients.Redis,
			Users:        services.Users,
			Assets:       services.Assets,
			Quota:        services.Quota,
			Entitlements: services.Entitlements,
			Payments:     services.Payments,
			Stripe:       clients.Stripe,
			WebhookGuard: services.WebhookGuard,
			Balance:      services.Balance,
			Mints:        services.Mints,
			Analysis:     services.Analysis,
			Listings:     services.Listings,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}
