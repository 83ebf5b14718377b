package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/archivemint-backend/pkg/enums"
)

// NFT is the archival record produced by a mint. Once confirmed its storage
// identifiers never change.
type NFT struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AssetID         uuid.UUID       `gorm:"column:asset_id;type:uuid;not null;index"`
	OwnerID         uuid.UUID       `gorm:"column:owner_id;type:uuid;not null;index"`
	Status          enums.NFTStatus `gorm:"column:status;type:nft_status;not null"`
	Origin          enums.NFTOrigin `gorm:"column:origin;type:nft_origin;not null;default:'platform'"`
	StorageTxID     *string         `gorm:"column:storage_tx_id"`
	ContentTxID     *string         `gorm:"column:content_tx_id"`
	MetadataURI     *string         `gorm:"column:metadata_uri"`
	Metadata        datatypes.JSON  `gorm:"column:metadata;type:jsonb"`
	RoyaltyBps      int             `gorm:"column:royalty_bps;not null;default:0"`
	ContractAddress *string         `gorm:"column:contract_address"`
	TokenID         *string         `gorm:"column:token_id"`
	LedgerTxHash    *string         `gorm:"column:ledger_tx_hash"`
	GasUsed         *int64          `gorm:"column:gas_used"`
	GasCostWei      *string         `gorm:"column:gas_cost_wei"`
	ListingID       *uuid.UUID      `gorm:"column:listing_id;type:uuid"`
	FailureReason   *string         `gorm:"column:failure_reason"`
	SchemaVersion   int             `gorm:"column:schema_version;not null;default:1"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	ConfirmedAt     *time.Time      `gorm:"column:confirmed_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (NFT) TableName() string { return "nfts" }

// Validate checks the row before it is written.
func (n *NFT) Validate() error {
	switch {
	case n.AssetID == uuid.Nil:
		return invalid("nft", "asset_id", "required")
	case n.OwnerID == uuid.Nil:
		return invalid("nft", "owner_id", "required")
	case !n.Status.IsValid():
		return invalid("nft", "status", "unknown status "+string(n.Status))
	case !n.Origin.IsValid():
		return invalid("nft", "origin", "unknown origin "+string(n.Origin))
	case n.RoyaltyBps < 0 || n.RoyaltyBps > 10000:
		return invalid("nft", "royalty_bps", "must be within 0..10000")
	case n.Status == enums.NFTStatusConfirmed && n.StorageTxID == nil && n.LedgerTxHash == nil:
		return invalid("nft", "storage_tx_id", "confirmed records need a storage or ledger identifier")
	}
	return nil
}

func (n *NFT) BeforeCreate(_ *gorm.DB) error {
	ensureID(&n.ID)
	stampVersion(&n.SchemaVersion)
	if n.Origin == "" {
		n.Origin = enums.NFTOriginPlatform
	}
	return n.Validate()
}
