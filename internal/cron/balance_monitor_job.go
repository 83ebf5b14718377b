package cron

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/archivemint-backend/internal/balance"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
)

type balanceMonitor interface {
	MonitorAndAlert(ctx context.Context, avgMintsPerDay float64) balance.Snapshot
}

type BalanceMonitorJobParams struct {
	Logger         *logger.Logger
	Monitor        balanceMonitor
	AvgMintsPerDay float64
}

func NewBalanceMonitorJob(params BalanceMonitorJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Monitor == nil {
		return nil, errors.New("balance monitor required")
	}
	return &balanceMonitorJob{logg: params.Logger, monitor: params.Monitor, avg: params.AvgMintsPerDay}, nil
}

type balanceMonitorJob struct {
	logg    *logger.Logger
	monitor balanceMonitor
	avg     float64
}

func (j *balanceMonitorJob) Name() string { return "balance-monitor" }

// Run polls the wallet and alerts. Only a failed read is a job failure; low balances are
// reported through the alert itself.
func (j *balanceMonitorJob) Run(ctx context.Context) error {
	snap := j.monitor.MonitorAndAlert(ctx, j.avg)
	if snap.Status == enums.PlatformHealthError {
		return fmt.Errorf("balance check: %s", snap.Error)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"status":          string(snap.Status),
		"mints_remaining": snap.Estimates.MintsRemaining,
		"days_remaining":  snap.Estimates.DaysRemaining,
	}), "balance check complete")
	return nil
}
