package enums

// PendingStatus is the state of a paid-but-unperformed operation.
type PendingStatus string

const (
	PendingStatusPaid     PendingStatus = "paid"
	PendingStatusConsumed PendingStatus = "consumed"
	PendingStatusExpired  PendingStatus = "expired"
)

var pendingStatuses = newSet("pending status",
	PendingStatusPaid,
	PendingStatusConsumed,
	PendingStatusExpired,
)

// IsValid reports whether the value is known.
func (s PendingStatus) IsValid() bool { return pendingStatuses.has(s) }
