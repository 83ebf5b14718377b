package balance

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/angelmondragon/archivemint-backend/pkg/config"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/archivemint-backend/pkg/errors"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
	"github.com/angelmondragon/archivemint-backend/pkg/metrics"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
)

const (
	defaultHealthTTL = 30 * time.Second
	healthCacheKey   = "platform"
	alertKind        = "platform_balance"
)

var refillSteps = []decimal.Decimal{
	decimal.NewFromInt(50),
	decimal.NewFromInt(100),
	decimal.NewFromInt(250),
	decimal.NewFromInt(500),
}

var healthStates = []string{
	string(enums.PlatformHealthHealthy),
	string(enums.PlatformHealthWarning),
	string(enums.PlatformHealthCritical),
	string(enums.PlatformHealthError),
}

type walletReader interface {
	Address() string
	Balance(ctx context.Context) (*big.Float, error)
}

type priceReader interface {
	USDPrice(ctx context.Context, assetID string) (decimal.Decimal, error)
}

type alertPublisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// Amount is the wallet balance in the storage network's unit and in USD.
type Amount struct {
	Native decimal.Decimal `json:"native"`
	USD    decimal.Decimal `json:"usd"`
}

// Estimates is the remaining capacity at the requested mint rate.
type Estimates struct {
	MintsRemaining int64   `json:"mintsRemaining"`
	DaysRemaining  float64 `json:"daysRemaining"`
}

// Alert is the operator-facing summary of a snapshot.
type Alert struct {
	Message           string          `json:"message"`
	ShouldRefill      bool            `json:"shouldRefill"`
	RecommendedAmount decimal.Decimal `json:"recommendedAmount"`
}

// Snapshot is one polled reading of the platform wallet.
type Snapshot struct {
	Address        string               `json:"address"`
	Balance        Amount               `json:"balance"`
	Estimates      Estimates            `json:"estimates"`
	Status         enums.PlatformHealth `json:"status"`
	Alert          Alert                `json:"alert"`
	AvgMintsPerDay float64              `json:"avgMintsPerDay"`
	CheckedAt      time.Time            `json:"checkedAt"`
	Error          string               `json:"error,omitempty"`
}

type MonitorParams struct {
	Wallet       walletReader
	Prices       priceReader
	Alerts       alertPublisher
	Config       config.BalanceConfig
	PriceAssetID string
	HealthTTL    time.Duration
	Metrics      *metrics.BalanceMetrics
	Logger       *logger.Logger
	Now          func() time.Time
}

// Monitor reads the platform wallet and classifies whether minting can continue.
type Monitor struct {
	wallet       walletReader
	prices       priceReader
	alerts       alertPublisher
	cfg          config.BalanceConfig
	costPerMint  decimal.Decimal
	priceAssetID string
	health       *expirable.LRU[string, enums.PlatformHealth]
	metrics      *metrics.BalanceMetrics
	logg         *logger.Logger
	now          func() time.Time
}

func NewMonitor(params MonitorParams) (*Monitor, error) {
	if params.Wallet == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "wallet reader required")
	}
	if params.Prices == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "price reader required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	cost, err := decimal.NewFromString(strings.TrimSpace(params.Config.AvgCostPerMintUSD))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse average cost per mint")
	}
	if !cost.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "average cost per mint must be positive")
	}
	cfg := params.Config
	if cfg.DefaultMintsPerDay <= 0 {
		cfg.DefaultMintsPerDay = 1
	}
	ttl := params.HealthTTL
	if ttl <= 0 {
		ttl = defaultHealthTTL
	}
	assetID := strings.TrimSpace(params.PriceAssetID)
	if assetID == "" {
		assetID = "arweave"
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		wallet:       params.Wallet,
		prices:       params.Prices,
		alerts:       params.Alerts,
		cfg:          cfg,
		costPerMint:  cost,
		priceAssetID: assetID,
		health:       expirable.NewLRU[string, enums.PlatformHealth](1, nil, ttl),
		metrics:      params.Metrics,
		logg:         params.Logger,
		now:          now,
	}, nil
}

// Status reads the wallet and prices it. avgMintsPerDay <= 0 uses the configured rate.
// Fetch failures are reported as the error status, never as a Go error. Only readings at
// the configured rate feed the mint gate and the gauges.
func (m *Monitor) Status(ctx context.Context, avgMintsPerDay float64) Snapshot {
	if avgMintsPerDay <= 0 || math.IsNaN(avgMintsPerDay) || math.IsInf(avgMintsPerDay, 0) {
		avgMintsPerDay = m.cfg.DefaultMintsPerDay
	}
	snap := m.snapshot(ctx, avgMintsPerDay)
	if avgMintsPerDay == m.cfg.DefaultMintsPerDay {
		m.record(snap)
	}
	return snap
}

func (m *Monitor) snapshot(ctx context.Context, avgMintsPerDay float64) Snapshot {
	snap := Snapshot{
		Address:        m.wallet.Address(),
		AvgMintsPerDay: avgMintsPerDay,
		CheckedAt:      m.now().UTC(),
	}

	native, err := m.readBalance(ctx)
	if err == nil {
		snap.Balance.Native = native
		var price decimal.Decimal
		price, err = m.prices.USDPrice(ctx, m.priceAssetID)
		if err == nil {
			snap.Balance.USD = native.Mul(price).Round(2)
		}
	}
	if err != nil {
		snap.Status = enums.PlatformHealthError
		snap.Error = err.Error()
		snap.Alert = Alert{Message: "Platform balance check failed: " + err.Error()}
		return snap
	}

	mints := snap.Balance.USD.Div(m.costPerMint).Floor().IntPart()
	if mints < 0 {
		mints = 0
	}
	days := float64(mints) / avgMintsPerDay
	snap.Estimates = Estimates{MintsRemaining: mints, DaysRemaining: math.Round(days*100) / 100}
	snap.Status = m.classify(mints, days)
	snap.Alert = m.alertFor(snap, avgMintsPerDay)
	return snap
}

func (m *Monitor) readBalance(ctx context.Context) (decimal.Decimal, error) {
	ar, err := m.wallet.Balance(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("read wallet balance: %w", err)
	}
	if ar == nil {
		return decimal.Zero, fmt.Errorf("read wallet balance: empty response")
	}
	native, err := decimal.NewFromString(ar.Text('f', 12))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse wallet balance: %w", err)
	}
	return native, nil
}

func (m *Monitor) classify(mints int64, days float64) enums.PlatformHealth {
	switch {
	case mints <= m.cfg.CriticalMints || days < m.cfg.CriticalDays:
		return enums.PlatformHealthCritical
	case days < m.cfg.WarningDays:
		return enums.PlatformHealthWarning
	default:
		return enums.PlatformHealthHealthy
	}
}

func (m *Monitor) alertFor(snap Snapshot, avgMintsPerDay float64) Alert {
	target := decimal.NewFromFloat(avgMintsPerDay).
		Mul(m.costPerMint).
		Mul(decimal.NewFromFloat(m.cfg.RefillTargetDays))
	amount := RefillAmount(target.Sub(snap.Balance.USD))
	remaining := fmt.Sprintf("%d mints (%.1f days)", snap.Estimates.MintsRemaining, snap.Estimates.DaysRemaining)

	switch snap.Status {
	case enums.PlatformHealthCritical:
		return Alert{
			Message:           fmt.Sprintf("Platform balance critical: %s left, new mints are paused. Refill $%s.", remaining, amount.StringFixed(0)),
			ShouldRefill:      true,
			RecommendedAmount: amount,
		}
	case enums.PlatformHealthWarning:
		return Alert{
			Message:           fmt.Sprintf("Platform balance low: %s left. Refill $%s.", remaining, amount.StringFixed(0)),
			ShouldRefill:      true,
			RecommendedAmount: amount,
		}
	default:
		return Alert{Message: "Platform balance healthy: " + remaining + " left."}
	}
}

// RefillAmount rounds a USD deficit up to the smallest refill step covering it. Deficits
// above the largest step round up to the next multiple of it.
func RefillAmount(deficit decimal.Decimal) decimal.Decimal {
	if !deficit.IsPositive() {
		return decimal.Zero
	}
	for _, step := range refillSteps {
		if deficit.LessThanOrEqual(step) {
			return step
		}
	}
	largest := refillSteps[len(refillSteps)-1]
	return deficit.Div(largest).Ceil().Mul(largest)
}

func (m *Monitor) record(snap Snapshot) {
	m.health.Add(healthCacheKey, snap.Status)
	native, _ := snap.Balance.Native.Float64()
	usd, _ := snap.Balance.USD.Float64()
	m.metrics.Observe(native, usd, snap.Estimates.MintsRemaining, snap.Estimates.DaysRemaining, string(snap.Status), healthStates)
}

// Health returns the latest classification at the configured mint rate, reusing a recent
// reading when one exists.
func (m *Monitor) Health(ctx context.Context) enums.PlatformHealth {
	if health, ok := m.health.Get(healthCacheKey); ok {
		return health
	}
	return m.Status(ctx, 0).Status
}

// MonitorAndAlert reads the status and notifies operators when it is not healthy. Alert
// delivery failures are logged and never change the returned snapshot.
func (m *Monitor) MonitorAndAlert(ctx context.Context, avgMintsPerDay float64) Snapshot {
	snap := m.Status(ctx, avgMintsPerDay)
	if !snap.Status.ShouldAlert() {
		return snap
	}
	ctx = m.logg.WithField(ctx, "platform_health", string(snap.Status))
	m.logg.Warn(ctx, snap.Alert.Message)
	if m.alerts == nil {
		return snap
	}

	payload, err := json.Marshal(struct {
		Kind string `json:"kind"`
		Snapshot
	}{Kind: alertKind, Snapshot: snap})
	if err != nil {
		m.logg.Error(ctx, "encode balance alert", err)
		return snap
	}
	id, err := m.alerts.Publish(ctx, payload, map[string]string{
		"kind":   alertKind,
		"status": string(snap.Status),
	})
	if err != nil {
		m.logg.Error(ctx, "publish balance alert", err)
		return snap
	}
	m.logg.Info(ctx, fmt.Sprintf("balance alert published as %s", id))
	return snap
}
