package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/archivemint-backend/pkg/enums"
)

// Asset is a media item a user registered after uploading it.
type Asset struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID        uuid.UUID            `gorm:"column:owner_id;type:uuid;not null;index"`
	Kind           enums.MediaKind      `gorm:"column:kind;type:media_kind;not null"`
	Name           string               `gorm:"column:name;not null"`
	Description    *string              `gorm:"column:description"`
	MimeType       string               `gorm:"column:mime_type;not null"`
	SizeBytes      int64                `gorm:"column:size_bytes;not null"`
	StorageURL     string               `gorm:"column:storage_url;not null"`
	StorageObject  *string              `gorm:"column:storage_object"`
	Attributes     datatypes.JSON       `gorm:"column:attributes;type:jsonb"`
	ArchivalStatus enums.ArchivalStatus `gorm:"column:archival_status;type:archival_status;not null;default:'none'"`
	SaleStatus     enums.SaleStatus     `gorm:"column:sale_status;type:sale_status;not null;default:'not_for_sale'"`
	SchemaVersion  int                  `gorm:"column:schema_version;not null;default:1"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// Validate checks the row before it is written.
func (a *Asset) Validate() error {
	switch {
	case a.OwnerID == uuid.Nil:
		return invalid("asset", "owner_id", "required")
	case !a.Kind.IsValid():
		return invalid("asset", "kind", "unknown kind "+string(a.Kind))
	case a.Name == "":
		return invalid("asset", "name", "required")
	case a.SizeBytes <= 0:
		return invalid("asset", "size_bytes", "must be positive")
	case a.StorageURL == "":
		return invalid("asset", "storage_url", "required")
	case !a.ArchivalStatus.IsValid():
		return invalid("asset", "archival_status", "unknown status "+string(a.ArchivalStatus))
	case !a.SaleStatus.IsValid():
		return invalid("asset", "sale_status", "unknown status "+string(a.SaleStatus))
	}
	return nil
}

func (a *Asset) BeforeCreate(_ *gorm.DB) error {
	ensureID(&a.ID)
	stampVersion(&a.SchemaVersion)
	if a.ArchivalStatus == "" {
		a.ArchivalStatus = enums.ArchivalStatusNone
	}
	if a.SaleStatus == "" {
		a.SaleStatus = enums.SaleStatusNotForSale
	}
	return a.Validate()
}
