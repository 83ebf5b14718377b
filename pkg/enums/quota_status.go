package enums

// QuotaStatus is the display band for quota usage.
type QuotaStatus string

const (
	QuotaStatusSafe     QuotaStatus = "safe"
	QuotaStatusWarning  QuotaStatus = "warning"
	QuotaStatusCritical QuotaStatus = "critical"
	QuotaStatusFull     QuotaStatus = "full"
)

var quotaStatuses = newSet("quota status",
	QuotaStatusSafe,
	QuotaStatusWarning,
	QuotaStatusCritical,
	QuotaStatusFull,
)

// IsValid reports whether the value is known.
func (s QuotaStatus) IsValid() bool { return quotaStatuses.has(s) }
