package metrics

import "github.com/prometheus/client_golang/prometheus"

// BalanceMetrics exports the latest platform wallet snapshot.
type BalanceMetrics struct {
	native         prometheus.Gauge
	usd            prometheus.Gauge
	mintsRemaining prometheus.Gauge
	daysRemaining  prometheus.Gauge
	health         *prometheus.GaugeVec
}

// NewBalanceMetrics registers the balance gauges on the provided registerer.
func NewBalanceMetrics(reg prometheus.Registerer) *BalanceMetrics {
	if reg == nil {
		return &BalanceMetrics{}
	}
	b := &BalanceMetrics{
		native: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "archivemint_platform_balance_native",
			Help: "Platform wallet balance in the storage network's native unit.",
		}),
		usd: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "archivemint_platform_balance_usd",
			Help: "Platform wallet balance converted to USD.",
		}),
		mintsRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "archivemint_platform_mints_remaining",
			Help: "Estimated mints the wallet can still pay for.",
		}),
		daysRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "archivemint_platform_days_remaining",
			Help: "Estimated days of minting left at the configured rate.",
		}),
		health: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "archivemint_platform_health",
			Help: "1 for the current platform health classification, 0 otherwise.",
		}, []string{"status"}),
	}
	reg.MustRegister(b.native, b.usd, b.mintsRemaining, b.daysRemaining, b.health)
	return b
}

// Observe publishes a snapshot. healthStates lists every classification so stale ones reset to 0.
func (b *BalanceMetrics) Observe(native, usd float64, mintsRemaining int64, daysRemaining float64, current string, healthStates []string) {
	if b == nil || b.native == nil {
		return
	}
	b.native.Set(native)
	b.usd.Set(usd)
	b.mintsRemaining.Set(float64(mintsRemaining))
	b.daysRemaining.Set(daysRemaining)
	for _, state := range healthStates {
		value := 0.0
		if state == current {
			value = 1
		}
		b.health.WithLabelValues(state).Set(value)
	}
}
