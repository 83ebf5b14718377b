package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MintMetrics tracks archival record transitions and storage upload latency.
type MintMetrics struct {
	transitions *prometheus.CounterVec
	upload      *prometheus.HistogramVec
	outcomes    *prometheus.CounterVec
}

// NewMintMetrics registers the mint metrics on the provided registerer.
func NewMintMetrics(reg prometheus.Registerer) *MintMetrics {
	if reg == nil {
		return &MintMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "archivemint_nft_transitions_total",
		Help: "Archival record status transitions.",
	}, []string{"status"})
	upload := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "archivemint_storage_upload_seconds",
		Help:    "Duration of uploads to the permanent storage network.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"kind"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "archivemint_mint_start_outcomes_total",
		Help: "Mint start requests by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(transitions, upload, outcomes)
	return &MintMetrics{transitions: transitions, upload: upload, outcomes: outcomes}
}

// IncTransition counts a record entering status.
func (m *MintMetrics) IncTransition(status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status)).Inc()
}

// ObserveUpload records how long an upload of the given media kind took.
func (m *MintMetrics) ObserveUpload(kind string, duration time.Duration) {
	if m == nil || m.upload == nil {
		return
	}
	m.upload.WithLabelValues(normalizeLabel(kind)).Observe(duration.Seconds())
}

// IncOutcome counts how a mint start request ended.
func (m *MintMetrics) IncOutcome(outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}
