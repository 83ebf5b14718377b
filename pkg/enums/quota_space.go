package enums

// QuotaSpace is the bucket an asset counts against.
type QuotaSpace string

const (
	QuotaSpaceDraft    QuotaSpace = "draft"
	QuotaSpaceArchived QuotaSpace = "archived"
)

var quotaSpaces = newSet("quota space",
	QuotaSpaceDraft,
	QuotaSpaceArchived,
)

// IsValid reports whether the value is known.
func (s QuotaSpace) IsValid() bool { return quotaSpaces.has(s) }
