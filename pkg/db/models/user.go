package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/archivemint-backend/pkg/enums"
)

// User is the account that owns assets and holds entitlements.
type User struct {
	ID                   uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email                string                    `gorm:"column:email;type:text;not null;uniqueIndex"`
	Tier                 enums.UserTier            `gorm:"column:tier;type:user_tier;not null;default:'free'"`
	BetaAccess           bool                      `gorm:"column:beta_access;not null;default:false"`
	SubscriptionStatus   *enums.SubscriptionStatus `gorm:"column:subscription_status"`
	StripeCustomerID     *string                   `gorm:"column:stripe_customer_id"`
	StripeSubscriptionID *string                   `gorm:"column:stripe_subscription_id"`
	StripeAccountID      *string                   `gorm:"column:stripe_account_id"`
	WalletAddress        *string                   `gorm:"column:wallet_address"`
	SchemaVersion        int                       `gorm:"column:schema_version;not null;default:1"`
	CreatedAt            time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

// Validate checks the row before it is written.
func (u *User) Validate() error {
	if u.Email == "" {
		return invalid("user", "email", "required")
	}
	if !u.Tier.IsValid() {
		return invalid("user", "tier", "unknown tier "+string(u.Tier))
	}
	if u.SubscriptionStatus != nil && !u.SubscriptionStatus.IsValid() {
		return invalid("user", "subscription_status", "unknown status "+string(*u.SubscriptionStatus))
	}
	return nil
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	ensureID(&u.ID)
	stampVersion(&u.SchemaVersion)
	if u.Tier == "" {
		u.Tier = enums.UserTierFree
	}
	return u.Validate()
}

// HasActiveSubscription reports whether the user is on a paid tier that still entitles them.
func (u *User) HasActiveSubscription() bool {
	if u == nil || !u.Tier.IsPaid() || u.SubscriptionStatus == nil {
		return false
	}
	return u.SubscriptionStatus.Entitles()
}
