package enums

// ListingStatus is the lifecycle state of a marketplace listing.
type ListingStatus string

const (
	ListingStatusActive   ListingStatus = "active"
	ListingStatusSold     ListingStatus = "sold"
	ListingStatusExpired  ListingStatus = "expired"
	ListingStatusCanceled ListingStatus = "canceled"
)

var listingStatuses = newSet("listing status",
	ListingStatusActive,
	ListingStatusSold,
	ListingStatusExpired,
	ListingStatusCanceled,
)

// IsValid reports whether the value is known.
func (s ListingStatus) IsValid() bool { return listingStatuses.has(s) }

// IsTerminal reports whether no further transition is allowed.
func (s ListingStatus) IsTerminal() bool {
	return s != ListingStatusActive
}
