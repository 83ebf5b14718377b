package mints

import (
	"errors"
	"net/http"
	"strings"

	"github.com/angelmondragon/archivemint-backend/api/middleware"
	"github.com/angelmondragon/archivemint-backend/api/responses"
	"github.com/angelmondragon/archivemint-backend/api/validators"
	internalmints "github.com/angelmondragon/archivemint-backend/internal/mints"
	"github.com/angelmondragon/archivemint-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/archivemint-backend/pkg/errors"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
	"github.com/google/uuid"
)

type startRequest struct {
	WithLedgerMint bool `json:"withLedgerMint"`
	RoyaltyBps     *int `json:"royaltyBps" validate:"omitempty,min=0,max=10000"`
}

type syncRequest struct {
	AssetID         string `json:"assetId" validate:"required,uuid"`
	OwnerID         string `json:"ownerId" validate:"required,uuid"`
	LedgerTxHash    string `json:"ledgerTxHash" validate:"required,tx_hash"`
	TokenID         string `json:"tokenId" validate:"required,numeric"`
	ContractAddress string `json:"contractAddress" validate:"required,eth_addr"`
	MetadataURI     string `json:"metadataUri"`
	StorageTxID     string `json:"storageTxId"`
	RoyaltyBps      int    `json:"royaltyBps" validate:"min=0,max=10000"`
}

// ConfirmResponse reports a confirmation poll. Pending is true while the storage network
// has not reached the configured confirmation depth.
type ConfirmResponse struct {
	Record  *models.NFT `json:"record"`
	Pending bool        `json:"pending"`
}

// Start archives an asset. A payment requirement surfaces as 402 with the price; a
// request racing another start for the same asset reports already_processing.
func Start(svc internalmints.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		assetID, err := validators.ParseUUIDParam(r, "assetId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req startRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := svc.Start(r.Context(), internalmints.StartInput{
			AssetID:        assetID,
			UserID:         userID,
			WithLedgerMint: req.WithLedgerMint,
			RoyaltyBps:     req.RoyaltyBps,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusOK
		if result.Outcome == internalmints.OutcomeStarted {
			status = http.StatusAccepted
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

func Get(svc internalmints.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		recordID, err := validators.ParseUUIDParam(r, "mintId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := svc.Get(r.Context(), recordID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

// AdminConfirm polls the storage network once for a record, outside the worker schedule.
func AdminConfirm(svc internalmints.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recordID, err := validators.ParseUUIDParam(r, "mintId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := svc.Confirm(r.Context(), recordID)
		if errors.Is(err, internalmints.ErrStillPending) {
			responses.WriteSuccessStatus(w, http.StatusAccepted, ConfirmResponse{Record: record, Pending: true})
			return
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ConfirmResponse{Record: record})
	}
}

// AdminSync imports a token minted on the secondary ledger outside the platform.
func AdminSync(svc internalmints.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req syncRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Sync(r.Context(), internalmints.SyncInput{
			AssetID:         uuid.MustParse(req.AssetID),
			OwnerID:         uuid.MustParse(req.OwnerID),
			LedgerTxHash:    strings.TrimSpace(req.LedgerTxHash),
			TokenID:         req.TokenID,
			ContractAddress: req.ContractAddress,
			MetadataURI:     strings.TrimSpace(req.MetadataURI),
			StorageTxID:     strings.TrimSpace(req.StorageTxID),
			RoyaltyBps:      req.RoyaltyBps,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusOK
		if result.Created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}
