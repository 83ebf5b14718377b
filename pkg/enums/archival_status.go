package enums

// ArchivalStatus tracks whether an asset has been archived.
type ArchivalStatus string

const (
	ArchivalStatusNone     ArchivalStatus = "none"
	ArchivalStatusPending  ArchivalStatus = "pending"
	ArchivalStatusArchived ArchivalStatus = "archived"
)

var archivalStatuses = newSet("archival status",
	ArchivalStatusNone,
	ArchivalStatusPending,
	ArchivalStatusArchived,
)

// IsValid reports whether the value is known.
func (a ArchivalStatus) IsValid() bool { return archivalStatuses.has(a) }
