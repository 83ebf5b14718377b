package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/archivemint-backend/internal/entitlements"
	"github.com/angelmondragon/archivemint-backend/pkg/db/models"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/archivemint-backend/pkg/errors"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type assetReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Asset, error)
}

type entitlementResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, action enums.ActionType, sizeBytes int64) (entitlements.Decision, error)
}

type pendingConsumer interface {
	ConsumeWithTx(tx *gorm.DB, action enums.ActionType, resourceID, userID uuid.UUID, now time.Time) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service authorizes paid analyses. The analysis itself runs outside this backend.
type Service interface {
	Authorize(ctx context.Context, assetID, userID uuid.UUID) (*Grant, error)
}

type ServiceParams struct {
	Assets       assetReader
	Entitlements entitlementResolver
	Pending      pendingConsumer
	TxRunner     txRunner
	Logger       *logger.Logger
	Now          func() time.Time
}

// Grant allows exactly one analysis run of an asset.
type Grant struct {
	AssetID  uuid.UUID             `json:"assetId"`
	UserID   uuid.UUID             `json:"userId"`
	Decision entitlements.Decision `json:"decision"`
	Paid     bool                  `json:"paid"`
	IssuedAt time.Time             `json:"issuedAt"`
}

type service struct {
	assets       assetReader
	entitlements entitlementResolver
	pending      pendingConsumer
	txRunner     txRunner
	logg         *logger.Logger
	now          func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Assets == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "asset reader required")
	}
	if params.Entitlements == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "entitlement resolver required")
	}
	if params.Pending == nil || params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "pending operation store required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		assets:       params.Assets,
		entitlements: params.Entitlements,
		pending:      params.Pending,
		txRunner:     params.TxRunner,
		logg:         params.Logger,
		now:          now,
	}, nil
}

// Authorize grants one analysis when the user is entitled to it for free, or consumes the
// paid pending analysis for the asset. Without either it returns a payment-required error
// carrying the price.
func (s *service) Authorize(ctx context.Context, assetID, userID uuid.UUID) (*Grant, error) {
	if assetID == uuid.Nil || userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "asset id and user id are required")
	}
	asset, err := s.assets.FindByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "asset not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load asset")
	}
	if asset.OwnerID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "asset belongs to another user")
	}
	ctx = s.logg.WithAssetID(s.logg.WithUserID(ctx, userID.String()), assetID.String())

	decision, err := s.entitlements.Resolve(ctx, userID, enums.ActionTypeAnalysis, asset.SizeBytes)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	grant := &Grant{AssetID: assetID, UserID: userID, Decision: decision, IssuedAt: now}
	if decision.Free() {
		s.logg.Info(ctx, fmt.Sprintf("analysis authorized: %s", decision.Outcome))
		return grant, nil
	}

	var consumed bool
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		consumed, err = s.pending.ConsumeWithTx(tx, enums.ActionTypeAnalysis, assetID, userID, now)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume pending analysis")
	}
	if !consumed {
		return nil, decision.PaymentRequiredError()
	}
	grant.Paid = true
	s.logg.Info(ctx, "paid analysis authorized")
	return grant, nil
}
