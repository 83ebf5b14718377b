package listings

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/archivemint-backend/pkg/db/models"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Listing is either a Custodied or an OnChain listing. The two kinds never share a status
// report; switch on the concrete type.
type Listing interface {
	Kind() enums.ListingKind
	Info() Details
	sealed()
}

// Details holds the fields both kinds carry.
type Details struct {
	ID            uuid.UUID           `json:"id"`
	AssetID       uuid.UUID           `json:"assetId"`
	SellerID      uuid.UUID           `json:"sellerId"`
	Price         decimal.Decimal     `json:"price"`
	Currency      enums.Currency      `json:"currency"`
	Status        enums.ListingStatus `json:"status"`
	ExpiresAt     *time.Time          `json:"expiresAt,omitempty"`
	SaleReference *string             `json:"saleReference,omitempty"`
	SoldAt        *time.Time          `json:"soldAt,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
}

// Custodied is held and settled by the platform through the card processor. It does not
// depend on the asset's archival status.
type Custodied struct {
	Details
}

// OnChain was created by a seller-signed marketplace transaction against an archived token.
type OnChain struct {
	Details
	RecordID     uuid.UUID `json:"recordId"`
	SellerWallet string    `json:"sellerWallet"`
	TxHash       string    `json:"txHash"`
}

func (Custodied) Kind() enums.ListingKind { return enums.ListingKindCustodied }
func (OnChain) Kind() enums.ListingKind   { return enums.ListingKindOnChain }

func (c Custodied) Info() Details { return c.Details }
func (o OnChain) Info() Details   { return o.Details }

func (Custodied) sealed() {}
func (OnChain) sealed()   {}

func (c Custodied) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind enums.ListingKind `json:"kind"`
		Details
	}{Kind: c.Kind(), Details: c.Details})
}

func (o OnChain) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind enums.ListingKind `json:"kind"`
		Details
		RecordID     uuid.UUID `json:"recordId"`
		SellerWallet string    `json:"sellerWallet"`
		TxHash       string    `json:"txHash"`
	}{Kind: o.Kind(), Details: o.Details, RecordID: o.RecordID, SellerWallet: o.SellerWallet, TxHash: o.TxHash})
}

// IsOpen reports whether the listing can still be bought at now.
func (d Details) IsOpen(now time.Time) bool {
	return d.Status == enums.ListingStatusActive && (d.ExpiresAt == nil || now.Before(*d.ExpiresAt))
}

func fromRow(row *models.MarketplaceListing) (Listing, error) {
	details := Details{
		ID:            row.ID,
		AssetID:       row.AssetID,
		SellerID:      row.SellerID,
		Price:         row.Price,
		Currency:      row.Currency,
		Status:        row.Status,
		ExpiresAt:     row.ExpiresAt,
		SaleReference: row.SaleReference,
		SoldAt:        row.SoldAt,
		CreatedAt:     row.CreatedAt,
	}
	switch row.Kind {
	case enums.ListingKindCustodied:
		return Custodied{Details: details}, nil
	case enums.ListingKindOnChain:
		if row.NFTID == nil || row.TxHash == nil {
			return nil, fmt.Errorf("on-chain listing %s is missing its record or transaction", row.ID)
		}
		listing := OnChain{Details: details, RecordID: *row.NFTID, TxHash: *row.TxHash}
		if row.SellerWallet != nil {
			listing.SellerWallet = *row.SellerWallet
		}
		return listing, nil
	default:
		return nil, fmt.Errorf("listing %s has unknown kind %q", row.ID, row.Kind)
	}
}
