package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/archivemint-backend/pkg/enums"
)

// MarketplaceListing is the stored shape shared by custodied and on-chain listings.
// Callers work with the listings package's typed variants instead of this row.
type MarketplaceListing struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Kind          enums.ListingKind   `gorm:"column:kind;type:listing_kind;not null"`
	AssetID       uuid.UUID           `gorm:"column:asset_id;type:uuid;not null;index"`
	NFTID         *uuid.UUID          `gorm:"column:nft_id;type:uuid"`
	SellerID      uuid.UUID           `gorm:"column:seller_id;type:uuid;not null"`
	SellerWallet  *string             `gorm:"column:seller_wallet"`
	Price         decimal.Decimal     `gorm:"column:price;type:numeric(20,8);not null"`
	Currency      enums.Currency      `gorm:"column:currency;not null"`
	Status        enums.ListingStatus `gorm:"column:status;type:listing_status;not null;default:'active'"`
	ExpiresAt     *time.Time          `gorm:"column:expires_at"`
	TxHash        *string             `gorm:"column:tx_hash"`
	SaleReference *string             `gorm:"column:sale_reference"`
	SoldAt        *time.Time          `gorm:"column:sold_at"`
	SchemaVersion int                 `gorm:"column:schema_version;not null;default:1"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// Validate checks the row before it is written.
func (l *MarketplaceListing) Validate() error {
	switch {
	case !l.Kind.IsValid():
		return invalid("listing", "kind", "unknown kind "+string(l.Kind))
	case l.AssetID == uuid.Nil:
		return invalid("listing", "asset_id", "required")
	case l.SellerID == uuid.Nil:
		return invalid("listing", "seller_id", "required")
	case !l.Price.IsPositive():
		return invalid("listing", "price", "must be positive")
	case !l.Currency.IsValid():
		return invalid("listing", "currency", "unknown currency "+string(l.Currency))
	case !l.Status.IsValid():
		return invalid("listing", "status", "unknown status "+string(l.Status))
	case l.Kind == enums.ListingKindOnChain && (l.NFTID == nil || l.TxHash == nil):
		return invalid("listing", "tx_hash", "on-chain listings need an nft and a transaction hash")
	case l.Kind == enums.ListingKindCustodied && l.TxHash != nil:
		return invalid("listing", "tx_hash", "custodied listings carry no transaction")
	}
	return nil
}

func (l *MarketplaceListing) BeforeCreate(_ *gorm.DB) error {
	ensureID(&l.ID)
	stampVersion(&l.SchemaVersion)
	if l.Status == "" {
		l.Status = enums.ListingStatusActive
	}
	return l.Validate()
}
