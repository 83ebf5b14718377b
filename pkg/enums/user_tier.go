package enums

// UserTier is the account level that drives quota limits and entitlements.
type UserTier string

const (
	UserTierFree    UserTier = "free"
	UserTierBeta    UserTier = "beta"
	UserTierPro     UserTier = "pro"
	UserTierCreator UserTier = "creator"
	UserTierStudio  UserTier = "studio"
)

var userTiers = newSet("user tier",
	UserTierFree,
	UserTierBeta,
	UserTierPro,
	UserTierCreator,
	UserTierStudio,
)

// IsValid reports whether the value is known.
func (t UserTier) IsValid() bool { return userTiers.has(t) }

// ParseUserTier converts raw input into a UserTier.
func ParseUserTier(value string) (UserTier, error) { return userTiers.parse(value) }

// IsPaid reports whether the tier comes from a paid subscription.
func (t UserTier) IsPaid() bool {
	switch t {
	case UserTierPro, UserTierCreator, UserTierStudio:
		return true
	default:
		return false
	}
}
