package users

import (
	"context"

	"github.com/angelmondragon/archivemint-backend/pkg/db/models"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a user record. Accounts are provisioned by the identity service; this is
// used by seeding and tests.
func (r *Repository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByStripeCustomer loads the user linked to a Stripe customer.
func (r *Repository) FindByStripeCustomer(ctx context.Context, customerID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("stripe_customer_id = ?", customerID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// SubscriptionUpdate carries the subscription fields synced from the payment processor.
type SubscriptionUpdate struct {
	Tier                 enums.UserTier
	Status               enums.SubscriptionStatus
	StripeCustomerID     string
	StripeSubscriptionID string
}

// UpdateSubscription stores tier and subscription state for a user.
func (r *Repository) UpdateSubscription(ctx context.Context, id uuid.UUID, update SubscriptionUpdate) error {
	if !update.Tier.IsValid() {
		return &models.SchemaError{Entity: "user", Field: "tier", Reason: "unknown tier " + string(update.Tier)}
	}
	if !update.Status.IsValid() {
		return &models.SchemaError{Entity: "user", Field: "subscription_status", Reason: "unknown status " + string(update.Status)}
	}
	status := update.Status
	fields := map[string]any{
		"tier":                update.Tier,
		"subscription_status": &status,
	}
	if update.StripeCustomerID != "" {
		fields["stripe_customer_id"] = update.StripeCustomerID
	}
	if update.StripeSubscriptionID != "" {
		fields["stripe_subscription_id"] = update.StripeSubscriptionID
	}
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
