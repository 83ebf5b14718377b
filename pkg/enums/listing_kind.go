package enums

// ListingKind separates platform-custodied listings from on-chain ones.
type ListingKind string

const (
	ListingKindCustodied ListingKind = "custodied"
	ListingKindOnChain   ListingKind = "onchain"
)

var listingKinds = newSet("listing kind",
	ListingKindCustodied,
	ListingKindOnChain,
)

// IsValid reports whether the value is known.
func (k ListingKind) IsValid() bool { return listingKinds.has(k) }
