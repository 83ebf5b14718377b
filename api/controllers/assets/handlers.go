package assets

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/archivemint-backend/api/middleware"
	"github.com/angelmondragon/archivemint-backend/api/responses"
	"github.com/angelmondragon/archivemint-backend/api/validators"
	"github.com/angelmondragon/archivemint-backend/internal/analysis"
	internalassets "github.com/angelmondragon/archivemint-backend/internal/assets"
	"github.com/angelmondragon/archivemint-backend/internal/entitlements"
	"github.com/angelmondragon/archivemint-backend/internal/payments"
	"github.com/angelmondragon/archivemint-backend/internal/quota"
	"github.com/angelmondragon/archivemint-backend/pkg/db/models"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/archivemint-backend/pkg/errors"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
)

const maxNameLength = 200

type usageReader interface {
	Usage(ctx context.Context, userID uuid.UUID, space enums.QuotaSpace) (quota.Usage, error)
}

type quotaAdmitter interface {
	CanAdmit(ctx context.Context, userID uuid.UUID, space enums.QuotaSpace) (quota.Decision, error)
}

type entitlementResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, action enums.ActionType, sizeBytes int64) (entitlements.Decision, error)
}

type checkoutCreator interface {
	CreateCheckout(ctx context.Context, input payments.CheckoutInput) (*payments.CheckoutRef, error)
}

type analysisAuthorizer interface {
	Authorize(ctx context.Context, assetID, userID uuid.UUID) (*analysis.Grant, error)
}

type registerRequest struct {
	Kind          string         `json:"kind" validate:"required,oneof=image video audio document"`
	Name          string         `json:"name" validate:"required,max=200"`
	Description   *string        `json:"description" validate:"omitempty,max=2000"`
	MimeType      string         `json:"mimeType" validate:"required"`
	SizeBytes     int64          `json:"sizeBytes" validate:"required,min=1"`
	StorageURL    string         `json:"storageUrl" validate:"required,url"`
	StorageObject *string        `json:"storageObject"`
	Attributes    map[string]any `json:"attributes"`
}

type checkoutRequest struct {
	Action string `json:"action" validate:"required,oneof=mint analysis"`
}

// CheckoutResponse tells the client whether it must pay before acting on the asset.
type CheckoutResponse struct {
	Required    bool                  `json:"required"`
	Entitlement entitlements.Decision `json:"entitlement"`
	Checkout    *payments.CheckoutRef `json:"checkout,omitempty"`
}

// Register records the metadata of a file the upload service already stored.
func Register(svc internalassets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var req registerRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		kind, err := enums.ParseMediaKind(req.Kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind"))
			return
		}

		asset, err := svc.Register(r.Context(), internalassets.RegisterInput{
			OwnerID:       userID,
			Kind:          kind,
			Name:          validators.SanitizeString(req.Name, maxNameLength),
			Description:   req.Description,
			MimeType:      strings.ToLower(strings.TrimSpace(req.MimeType)),
			SizeBytes:     req.SizeBytes,
			StorageURL:    req.StorageURL,
			StorageObject: req.StorageObject,
			Attributes:    req.Attributes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, asset)
	}
}

func Get(svc internalassets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, assetID, err := ownerAndAsset(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		asset, err := svc.Get(r.Context(), assetID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, asset)
	}
}

// QuotaUsage returns both quota spaces of the caller.
func QuotaUsage(quotas usageReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		spaces := []enums.QuotaSpace{enums.QuotaSpaceDraft, enums.QuotaSpaceArchived}
		usage := make([]quota.Usage, 0, len(spaces))
		for _, space := range spaces {
			u, err := quotas.Usage(r.Context(), userID, space)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			usage = append(usage, u)
		}
		responses.WriteSuccess(w, map[string]any{"spaces": usage})
	}
}

// EntitlementPreview says whether ?action= on the asset is free or what it would cost.
func EntitlementPreview(svc internalassets.Service, gate entitlementResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, assetID, err := ownerAndAsset(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		action, err := enums.ParseActionType(strings.TrimSpace(r.URL.Query().Get("action")))
		if err != nil || !action.Gated() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "action must be mint or analysis"))
			return
		}

		asset, err := svc.Get(r.Context(), assetID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		decision, err := gate.Resolve(r.Context(), userID, action, asset.SizeBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, decision)
	}
}

// Checkout opens a payment session for a priced action. Free actions return the
// entitlement without a session. A mint is refused before payment when the asset is
// already archived or in flight, or when the archived space is full.
func Checkout(svc internalassets.Service, quotas quotaAdmitter, gate entitlementResolver, checkout checkoutCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, assetID, err := ownerAndAsset(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		action, err := enums.ParseActionType(req.Action)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid action"))
			return
		}

		asset, err := svc.Get(r.Context(), assetID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if action == enums.ActionTypeMint {
			if err := mintable(r.Context(), quotas, asset); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		decision, err := gate.Resolve(r.Context(), userID, action, asset.SizeBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if decision.Free() || decision.Price == nil {
			responses.WriteSuccess(w, CheckoutResponse{Required: false, Entitlement: decision})
			return
		}

		ref, err := checkout.CreateCheckout(r.Context(), payments.CheckoutInput{
			Action:     action,
			ResourceID: asset.ID,
			UserID:     userID,
			Price:      *decision.Price,
			Currency:   decision.Currency,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, CheckoutResponse{Required: true, Entitlement: decision, Checkout: ref})
	}
}

// AuthorizeAnalysis grants one analysis run, consuming a paid analysis when the action
// is not free for the caller.
func AuthorizeAnalysis(svc analysisAuthorizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, assetID, err := ownerAndAsset(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		grant, err := svc.Authorize(r.Context(), assetID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, grant)
	}
}

func mintable(ctx context.Context, quotas quotaAdmitter, asset *models.Asset) error {
	if asset.ArchivalStatus != enums.ArchivalStatusNone {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "asset is already "+string(asset.ArchivalStatus)).
			WithDetails(map[string]any{"archivalStatus": asset.ArchivalStatus})
	}
	decision, err := quotas.CanAdmit(ctx, asset.OwnerID, enums.QuotaSpaceArchived)
	if err != nil {
		return err
	}
	return decision.Err()
}

func ownerAndAsset(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	userID, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	assetID, err := validators.ParseUUIDParam(r, "assetId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return userID, assetID, nil
}
