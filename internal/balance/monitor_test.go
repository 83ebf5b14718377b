package balance

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/angelmondragon/archivemint-backend/pkg/config"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWallet struct {
	balance *big.Float
	err     error
	calls   int
}

func (s *stubWallet) Address() string { return "platform-wallet" }

func (s *stubWallet) Balance(context.Context) (*big.Float, error) {
	s.calls++
	return s.balance, s.err
}

type stubPrices struct {
	price decimal.Decimal
	err   error
	asked []string
}

func (s *stubPrices) USDPrice(_ context.Context, assetID string) (decimal.Decimal, error) {
	s.asked = append(s.asked, assetID)
	return s.price, s.err
}

type stubAlerts struct {
	payloads [][]byte
	attrs    []map[string]string
	err      error
}

func (s *stubAlerts) Publish(_ context.Context, data []byte, attrs map[string]string) (string, error) {
	s.payloads = append(s.payloads, data)
	s.attrs = append(s.attrs, attrs)
	if s.err != nil {
		return "", s.err
	}
	return "msg-1", nil
}

func testConfig() config.BalanceConfig {
	return config.BalanceConfig{
		AvgCostPerMintUSD:  "0.05",
		DefaultMintsPerDay: 50,
		WarningDays:        7,
		CriticalDays:       1,
		CriticalMints:      5,
		RefillTargetDays:   30,
	}
}

func newTestMonitor(t *testing.T, wallet *stubWallet, prices *stubPrices, alerts *stubAlerts) *Monitor {
	t.Helper()
	params := MonitorParams{
		Wallet:  wallet,
		Prices:  prices,
		Config:  testConfig(),
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Now:     func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) },
		Metrics: nil,
	}
	if alerts != nil {
		params.Alerts = alerts
	}
	m, err := NewMonitor(params)
	require.NoError(t, err)
	return m
}

func TestStatusHealthy(t *testing.T) {
	prices := &stubPrices{price: decimal.NewFromInt(10)}
	m := newTestMonitor(t, &stubWallet{balance: big.NewFloat(10)}, prices, nil)

	snap := m.Status(context.Background(), 0)

	assert.Equal(t, enums.PlatformHealthHealthy, snap.Status)
	assert.True(t, snap.Balance.USD.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, int64(2000), snap.Estimates.MintsRemaining)
	assert.Equal(t, 40.0, snap.Estimates.DaysRemaining)
	assert.Equal(t, 50.0, snap.AvgMintsPerDay)
	assert.False(t, snap.Alert.ShouldRefill)
	assert.True(t, snap.Alert.RecommendedAmount.IsZero())
	assert.Equal(t, []string{"arweave"}, prices.asked)
	assert.Equal(t, "platform-wallet", snap.Address)
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		name   string
		native float64
		avg    float64
		status enums.PlatformHealth
		refill string
	}{
		// $7.50 buys 150 mints, three days at 50/day
		{name: "warning", native: 0.75, avg: 50, status: enums.PlatformHealthWarning, refill: "100"},
		// 25 mints is half a day
		{name: "critical by days", native: 0.125, avg: 50, status: enums.PlatformHealthCritical, refill: "100"},
		// 4 mints is under the floor even at a slow rate
		{name: "critical by mints", native: 0.02, avg: 1, status: enums.PlatformHealthCritical, refill: "50"},
		{name: "empty wallet", native: 0, avg: 50, status: enums.PlatformHealthCritical, refill: "100"},
		{name: "slow rate stays healthy", native: 0.75, avg: 10, status: enums.PlatformHealthHealthy, refill: "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestMonitor(t, &stubWallet{balance: big.NewFloat(tc.native)}, &stubPrices{price: decimal.NewFromInt(10)}, nil)
			snap := m.Status(context.Background(), tc.avg)
			assert.Equal(t, tc.status, snap.Status)
			assert.Equal(t, tc.refill, snap.Alert.RecommendedAmount.String())
			assert.Equal(t, tc.status != enums.PlatformHealthHealthy, snap.Alert.ShouldRefill)
		})
	}
}

func TestStatusReportsFetchFailures(t *testing.T) {
	m := newTestMonitor(t, &stubWallet{err: errors.New("gateway timeout")}, &stubPrices{price: decimal.NewFromInt(10)}, nil)
	snap := m.Status(context.Background(), 50)
	assert.Equal(t, enums.PlatformHealthError, snap.Status)
	assert.Contains(t, snap.Error, "gateway timeout")
	assert.Zero(t, snap.Estimates.MintsRemaining)

	m = newTestMonitor(t, &stubWallet{balance: big.NewFloat(10)}, &stubPrices{err: errors.New("rate limited")}, nil)
	snap = m.Status(context.Background(), 50)
	assert.Equal(t, enums.PlatformHealthError, snap.Status)
	assert.Contains(t, snap.Error, "rate limited")
}

func TestRefillAmount(t *testing.T) {
	cases := map[string]string{
		"-5":     "0",
		"0":      "0",
		"0.01":   "50",
		"50":     "50",
		"50.01":  "100",
		"180":    "250",
		"499.99": "500",
		"501":    "1000",
		"1000":   "1000",
		"1250":   "1500",
	}
	for deficit, want := range cases {
		got := RefillAmount(decimal.RequireFromString(deficit))
		assert.Equal(t, want, got.String(), "deficit %s", deficit)
	}
}

func TestHealthReusesRecentReading(t *testing.T) {
	wallet := &stubWallet{balance: big.NewFloat(10)}
	m := newTestMonitor(t, wallet, &stubPrices{price: decimal.NewFromInt(10)}, nil)

	assert.Equal(t, enums.PlatformHealthHealthy, m.Health(context.Background()))
	assert.Equal(t, enums.PlatformHealthHealthy, m.Health(context.Background()))
	assert.Equal(t, 1, wallet.calls)

	wallet.err = errors.New("down")
	m.Status(context.Background(), 0)
	assert.Equal(t, enums.PlatformHealthError, m.Health(context.Background()))
	assert.True(t, m.Health(context.Background()).BlocksMinting())
}

func TestHealthIgnoresReadingsAtCallerRate(t *testing.T) {
	wallet := &stubWallet{balance: big.NewFloat(10)}
	m := newTestMonitor(t, wallet, &stubPrices{price: decimal.NewFromInt(10)}, nil)

	snap := m.Status(context.Background(), 100000)
	require.Equal(t, enums.PlatformHealthCritical, snap.Status)
	assert.Equal(t, enums.PlatformHealthHealthy, m.Health(context.Background()))

	// 25 mints is half a day at the configured rate
	wallet.balance = big.NewFloat(0.125)
	m = newTestMonitor(t, wallet, &stubPrices{price: decimal.NewFromInt(10)}, nil)
	snap = m.Status(context.Background(), 1)
	require.Equal(t, enums.PlatformHealthHealthy, snap.Status)
	assert.Equal(t, enums.PlatformHealthCritical, m.Health(context.Background()))

	snap = m.Status(context.Background(), 1)
	require.Equal(t, enums.PlatformHealthHealthy, snap.Status)
	assert.Equal(t, enums.PlatformHealthCritical, m.Health(context.Background()))
}

func TestMonitorAndAlertPublishesWhenUnhealthy(t *testing.T) {
	alerts := &stubAlerts{}
	m := newTestMonitor(t, &stubWallet{balance: big.NewFloat(0.75)}, &stubPrices{price: decimal.NewFromInt(10)}, alerts)

	snap := m.MonitorAndAlert(context.Background(), 50)
	require.Equal(t, enums.PlatformHealthWarning, snap.Status)
	require.Len(t, alerts.payloads, 1)
	assert.Equal(t, "warning", alerts.attrs[0]["status"])

	var body map[string]any
	require.NoError(t, json.Unmarshal(alerts.payloads[0], &body))
	assert.Equal(t, "platform_balance", body["kind"])
	assert.Equal(t, "warning", body["status"])
	alert, ok := body["alert"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, alert["shouldRefill"])
}

func TestMonitorAndAlertSkipsHealthyAndSurvivesPublishErrors(t *testing.T) {
	alerts := &stubAlerts{}
	m := newTestMonitor(t, &stubWallet{balance: big.NewFloat(10)}, &stubPrices{price: decimal.NewFromInt(10)}, alerts)
	m.MonitorAndAlert(context.Background(), 50)
	assert.Empty(t, alerts.payloads)

	alerts.err = errors.New("pubsub unavailable")
	m = newTestMonitor(t, &stubWallet{err: errors.New("down")}, &stubPrices{}, alerts)
	snap := m.MonitorAndAlert(context.Background(), 50)
	assert.Equal(t, enums.PlatformHealthError, snap.Status)
	assert.Len(t, alerts.payloads, 1)
}

func TestNewMonitorValidatesCost(t *testing.T) {
	cfg := testConfig()
	cfg.AvgCostPerMintUSD = "0"
	_, err := NewMonitor(MonitorParams{
		Wallet: &stubWallet{},
		Prices: &stubPrices{},
		Config: cfg,
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.Error(t, err)
}
