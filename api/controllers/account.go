package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/archivemint-backend/api/middleware"
	"github.com/angelmondragon/archivemint-backend/api/responses"
	"github.com/angelmondragon/archivemint-backend/pkg/db/models"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/archivemint-backend/pkg/errors"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
)

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type accountView struct {
	ID                 uuid.UUID                 `json:"id"`
	Email              string                    `json:"email"`
	Role               string                    `json:"role"`
	Tier               enums.UserTier            `json:"tier"`
	BetaAccess         bool                      `json:"betaAccess"`
	SubscriptionStatus *enums.SubscriptionStatus `json:"subscriptionStatus,omitempty"`
	WalletAddress      *string                   `json:"walletAddress,omitempty"`
	PayoutsEnabled     bool                      `json:"payoutsEnabled"`
}

// Account returns the caller's tier and payment standing, which decide what the
// entitlement gate lets through for free.
func Account(users userFinder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, ok := middleware.UserUUIDFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		user, err := users.FindByID(ctx, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "account not provisioned"))
			return
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account"))
			return
		}
		responses.WriteSuccess(w, accountView{
			ID:                 user.ID,
			Email:              user.Email,
			Role:               middleware.RoleFromContext(ctx),
			Tier:               user.Tier,
			BetaAccess:         user.BetaAccess,
			SubscriptionStatus: user.SubscriptionStatus,
			WalletAddress:      user.WalletAddress,
			PayoutsEnabled:     user.StripeAccountID != nil && *user.StripeAccountID != "",
		})
	}
}
