package users

import (
	"context"
	"testing"

	"github.com/angelmondragon/archivemint-backend/pkg/db/dbtest"
	"github.com/angelmondragon/archivemint-backend/pkg/db/models"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestRepositoryUpdateSubscription(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))

	user := &models.User{Email: "artist@example.com"}
	require.NoError(t, repo.Create(ctx, user))
	require.Equal(t, enums.UserTierFree, user.Tier)
	require.Equal(t, models.CurrentSchemaVersion, user.SchemaVersion)

	require.NoError(t, repo.UpdateSubscription(ctx, user.ID, SubscriptionUpdate{
		Tier:                 enums.UserTierPro,
		Status:               enums.SubscriptionStatusActive,
		StripeCustomerID:     "cus_123",
		StripeSubscriptionID: "sub_123",
	}))

	found, err := repo.FindByStripeCustomer(ctx, "cus_123")
	require.NoError(t, err)
	require.Equal(t, user.ID, found.ID)
	require.Equal(t, enums.UserTierPro, found.Tier)
	require.True(t, found.HasActiveSubscription())

	require.NoError(t, repo.UpdateSubscription(ctx, user.ID, SubscriptionUpdate{
		Tier:   enums.UserTierFree,
		Status: enums.SubscriptionStatusCanceled,
	}))
	found, err = repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, found.HasActiveSubscription())
	require.NotNil(t, found.StripeCustomerID)
	require.Equal(t, "cus_123", *found.StripeCustomerID)
}

func TestRepositoryUpdateSubscriptionRejectsUnknownValues(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))

	err := repo.UpdateSubscription(ctx, uuid.New(), SubscriptionUpdate{Tier: "gold", Status: enums.SubscriptionStatusActive})
	var schemaErr *models.SchemaError
	require.ErrorAs(t, err, &schemaErr)

	err = repo.UpdateSubscription(ctx, uuid.New(), SubscriptionUpdate{Tier: enums.UserTierPro, Status: enums.SubscriptionStatusActive})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
