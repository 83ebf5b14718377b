package enums

// PlatformHealth classifies the platform wallet balance.
type PlatformHealth string

const (
	PlatformHealthHealthy  PlatformHealth = "healthy"
	PlatformHealthWarning  PlatformHealth = "warning"
	PlatformHealthCritical PlatformHealth = "critical"
	PlatformHealthError    PlatformHealth = "error"
)

var platformHealths = newSet("platform health",
	PlatformHealthHealthy,
	PlatformHealthWarning,
	PlatformHealthCritical,
	PlatformHealthError,
)

// IsValid reports whether the value is known.
func (h PlatformHealth) IsValid() bool { return platformHealths.has(h) }

// BlocksMinting reports whether new mint starts must be refused.
func (h PlatformHealth) BlocksMinting() bool {
	return h == PlatformHealthCritical || h == PlatformHealthError
}

// ShouldAlert reports whether operators need a notification.
func (h PlatformHealth) ShouldAlert() bool {
	return h != PlatformHealthHealthy
}
