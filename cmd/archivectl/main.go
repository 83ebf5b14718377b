package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/angelmondragon/archivemint-backend/internal/balance"
	"github.com/angelmondragon/archivemint-backend/pkg/arweave"
	"github.com/angelmondragon/archivemint-backend/pkg/config"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
	"github.com/angelmondragon/archivemint-backend/pkg/pricefeed"
)

// cliConfig is the subset of service configuration the operator commands read, so the
// CLI runs without database or redis settings.
type cliConfig struct {
	Arweave   config.ArweaveConfig
	PriceFeed config.PriceFeedConfig
	Balance   config.BalanceConfig
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand(&app{
		out:     os.Stdout,
		monitor: openMonitor,
		jwt:     loadJWT,
	})
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "archivectl: %v\n", err)
		os.Exit(1)
	}
}

func openMonitor(ctx context.Context) (statusReader, error) {
	var cfg cliConfig
	if err := envconfig.Process("", &cfg.Arweave); err != nil {
		return nil, fmt.Errorf("load arweave config: %w", err)
	}
	if err := envconfig.Process("", &cfg.PriceFeed); err != nil {
		return nil, fmt.Errorf("load price feed config: %w", err)
	}
	if err := envconfig.Process("", &cfg.Balance); err != nil {
		return nil, fmt.Errorf("load balance config: %w", err)
	}

	logg := logger.New(logger.Options{ServiceName: "archivectl", Output: io.Discard})
	wallet, err := arweave.NewClient(ctx, cfg.Arweave, logg)
	if err != nil {
		return nil, fmt.Errorf("open wallet: %w", err)
	}
	monitor, err := balance.NewMonitor(balance.MonitorParams{
		Wallet:       wallet,
		Prices:       pricefeed.NewClient(cfg.PriceFeed),
		Config:       cfg.Balance,
		PriceAssetID: cfg.PriceFeed.AssetID,
		Logger:       logg,
	})
	if err != nil {
		return nil, err
	}
	return monitor, nil
}

func loadJWT() (config.JWTConfig, error) {
	var cfg config.JWTConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return config.JWTConfig{}, fmt.Errorf("load jwt config: %w", err)
	}
	return cfg, nil
}
