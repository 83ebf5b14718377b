package listings

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/archivemint-backend/api/middleware"
	"github.com/angelmondragon/archivemint-backend/api/responses"
	"github.com/angelmondragon/archivemint-backend/api/validators"
	internallistings "github.com/angelmondragon/archivemint-backend/internal/listings"
	pkgerrors "github.com/angelmondragon/archivemint-backend/pkg/errors"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
)

type custodiedRequest struct {
	AssetID        string `json:"assetId" validate:"required,uuid"`
	Price          string `json:"price" validate:"required,usd_amount"`
	Currency       string `json:"currency"`
	ExpiresInHours int    `json:"expiresInHours" validate:"min=0"`
}

type buildRequest struct {
	AssetID         string `json:"assetId"`
	Price           string `json:"price"`
	Currency        string `json:"currency"`
	DurationSeconds int64  `json:"durationSeconds" validate:"min=0"`
	WalletAddress   string `json:"walletAddress"`
}

type submitRequest struct {
	SignedTx string `json:"signedTx" validate:"required"`
	Currency string `json:"currency" validate:"required"`
}

// CreateCustodied lists an asset for a platform-settled sale.
func CreateCustodied(svc internallistings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var req custodiedRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		price, err := decimal.NewFromString(req.Price)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price"))
			return
		}
		currency := req.Currency
		if currency == "" {
			currency = "USD"
		}

		listing, err := svc.CreateCustodied(r.Context(), internallistings.CustodiedInput{
			AssetID:   uuid.MustParse(req.AssetID),
			SellerID:  sellerID,
			Price:     price,
			Currency:  currency,
			ExpiresIn: time.Duration(req.ExpiresInHours) * time.Hour,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, listing)
	}
}

// BuildOnChain prepares the unsigned marketplace transaction for the seller's wallet.
// Missing fields are reported together by the service.
func BuildOnChain(svc internallistings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var req buildRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internallistings.BuildInput{
			SellerID:      sellerID,
			Currency:      req.Currency,
			Duration:      time.Duration(req.DurationSeconds) * time.Second,
			WalletAddress: req.WalletAddress,
		}
		if req.AssetID != "" {
			assetID, err := uuid.Parse(req.AssetID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid assetId"))
				return
			}
			input.AssetID = assetID
		}
		if req.Price != "" {
			price, err := decimal.NewFromString(req.Price)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price"))
				return
			}
			input.Price = price
		}

		result, err := svc.BuildListingTransaction(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// SubmitOnChain broadcasts the wallet-signed listing transaction and records it.
func SubmitOnChain(svc internallistings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var req submitRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.SubmitListingTransaction(r.Context(), internallistings.SubmitInput{
			SellerID: sellerID,
			SignedTx: req.SignedTx,
			Currency: req.Currency,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, listing)
	}
}

func Get(svc internallistings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listingID, err := validators.ParseUUIDParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.Get(r.Context(), listingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

// ListByAsset returns every listing of the asset; each entry carries its kind.
func ListByAsset(svc internallistings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assetID, err := validators.ParseUUIDParam(r, "assetId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listings, err := svc.ListByAsset(r.Context(), assetID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"listings": listings})
	}
}

func Cancel(svc internallistings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		listingID, err := validators.ParseUUIDParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.Cancel(r.Context(), listingID, sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

// Checkout opens a split-payment session for a custodied listing.
func Checkout(svc internallistings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		listingID, err := validators.ParseUUIDParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ref, err := svc.Checkout(r.Context(), listingID, buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, ref)
	}
}
