package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/archivemint-backend/internal/balance"
	pkgAuth "github.com/angelmondragon/archivemint-backend/pkg/auth"
	"github.com/angelmondragon/archivemint-backend/pkg/config"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
)

type stubMonitor struct {
	snap    balance.Snapshot
	avgSeen float64
	alerted bool
}

func (s *stubMonitor) Status(_ context.Context, avg float64) balance.Snapshot {
	s.avgSeen = avg
	return s.snap
}

func (s *stubMonitor) MonitorAndAlert(_ context.Context, avg float64) balance.Snapshot {
	s.avgSeen = avg
	s.alerted = true
	return s.snap
}

func healthySnapshot() balance.Snapshot {
	return balance.Snapshot{
		Address: "wallet-abc",
		Balance: balance.Amount{
			Native: decimal.RequireFromString("12.5"),
			USD:    decimal.RequireFromString("125.00"),
		},
		Estimates:      balance.Estimates{MintsRemaining: 2500, DaysRemaining: 50},
		Status:         enums.PlatformHealthHealthy,
		AvgMintsPerDay: 50,
	}
}

func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a.out = &out
	cmd := newRootCommand(a)
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func withMonitor(m *stubMonitor) func(context.Context) (statusReader, error) {
	return func(context.Context) (statusReader, error) { return m, nil }
}

func TestBalancePrintsWalletSummary(t *testing.T) {
	m := &stubMonitor{snap: healthySnapshot()}
	out, err := run(t, &app{monitor: withMonitor(m)}, "balance")
	require.NoError(t, err)

	require.Contains(t, out, "wallet-abc")
	require.Contains(t, out, "12.500000 AR")
	require.Contains(t, out, "$125.00")
	require.Contains(t, out, "2500")
	require.Contains(t, out, "healthy")
	require.False(t, m.alerted)
}

func TestBalanceFailsOnErrorStatus(t *testing.T) {
	snap := balance.Snapshot{Status: enums.PlatformHealthError, Error: "gateway timeout"}
	_, err := run(t, &app{monitor: withMonitor(&stubMonitor{snap: snap})}, "balance")
	require.Error(t, err)
	require.Contains(t, err.Error(), "gateway timeout")
}

func TestBalanceReportsMonitorSetupFailure(t *testing.T) {
	a := &app{monitor: func(context.Context) (statusReader, error) {
		return nil, errors.New("open wallet: missing key file")
	}}
	_, err := run(t, a, "balance")
	require.EqualError(t, err, "open wallet: missing key file")
}

func TestMonitorPrintsStatusJSON(t *testing.T) {
	m := &stubMonitor{snap: healthySnapshot()}
	out, err := run(t, &app{monitor: withMonitor(m)}, "monitor", "--avg-mints-per-day", "20")
	require.NoError(t, err)
	require.True(t, m.alerted)
	require.Equal(t, 20.0, m.avgSeen)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Equal(t, "healthy", doc["status"])
	require.Equal(t, "wallet-abc", doc["address"])
}

func TestMonitorRejectsNegativeRate(t *testing.T) {
	m := &stubMonitor{snap: healthySnapshot()}
	_, err := run(t, &app{monitor: withMonitor(m)}, "monitor", "--avg-mints-per-day=-1")
	require.Error(t, err)
	require.False(t, m.alerted)
}

func TestTokenMintsOperatorToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "cli-secret", Issuer: "identity", ExpirationMinutes: 30}
	userID := uuid.New()
	now := time.Now()
	a := &app{
		jwt: func() (config.JWTConfig, error) { return cfg, nil },
		now: func() time.Time { return now },
	}

	out, err := run(t, a, "token", "--user-id", userID.String())
	require.NoError(t, err)

	claims, err := pkgAuth.ParseAccessToken(cfg, strings.TrimSpace(out))
	require.NoError(t, err)
	require.Equal(t, userID, claims.UserID())
	require.Equal(t, enums.ActorRoleOperator, claims.Role)
}
