package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/archivemint-backend/internal/bootstrap"
	"github.com/angelmondragon/archivemint-backend/internal/mints"
	"github.com/angelmondragon/archivemint-backend/pkg/config"
	"github.com/angelmondragon/archivemint-backend/pkg/instance"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/archivemint-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Environment: cfg.App.Env,
		Instance:    instance.ID("worker"),
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

	redisOpt, err := pkgredis.QueueOpt(cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "invalid task queue redis config", err)
		os.Exit(1)
	}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:    cfg.Worker.Concurrency,
		RetryDelayFunc: mints.RetryDelay(cfg.Mint.ConfirmPollDelay),
		Queues:         map[string]int{"default": 1},
		Logger:         logg.QueueLogger(),
		LogLevel:       asynq.WarnLevel,
	})

	ctx := logg.WithFields(context.Background(), map[string]any{
		"serviceKind": cfg.Service.Kind,
		"concurrency": cfg.Worker.Concurrency,
	})
	logg.Info(ctx, "starting worker")

	if err := server.Start(mints.NewProcessor(services.Mints, logg).Handler()); err != nil {
		logg.Error(ctx, "worker failed to start", err)
		os.Exit(1)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	server.Shutdown()
	logg.Info(ctx, "worker shutting down gracefully")
}
