package assets

import (
	"context"
	"time"

	"github.com/angelmondragon/archivemint-backend/pkg/db/models"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists assets.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to a GORM handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, asset *models.Asset) error {
	return r.db.WithContext(ctx).Create(asset).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	return r.FindByIDWithTx(r.db.WithContext(ctx), id)
}

func (r *Repository) FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Asset, error) {
	var asset models.Asset
	if err := tx.First(&asset, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

// CountByOwnerAndStatuses counts the owner's assets in any of the archival statuses.
func (r *Repository) CountByOwnerAndStatuses(ctx context.Context, ownerID uuid.UUID, statuses []enums.ArchivalStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Asset{}).
		Where("owner_id = ? AND archival_status IN ?", ownerID, statuses).
		Count(&count).Error
	return count, err
}

// TransitionArchivalWithTx moves the archival status from -> to only if the row is still in
// from. It reports whether this caller made the change.
func (r *Repository) TransitionArchivalWithTx(tx *gorm.DB, id uuid.UUID, from, to enums.ArchivalStatus) (bool, error) {
	res := tx.Model(&models.Asset{}).
		Where("id = ? AND archival_status = ?", id, from).
		Updates(map[string]any{"archival_status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// TransitionArchival is TransitionArchivalWithTx outside a transaction.
func (r *Repository) TransitionArchival(ctx context.Context, id uuid.UUID, from, to enums.ArchivalStatus) (bool, error) {
	return r.TransitionArchivalWithTx(r.db.WithContext(ctx), id, from, to)
}

// UpdateSaleStatusWithTx overwrites the sale status.
func (r *Repository) UpdateSaleStatusWithTx(tx *gorm.DB, id uuid.UUID, status enums.SaleStatus) error {
	if !status.IsValid() {
		return &models.SchemaError{Entity: "asset", Field: "sale_status", Reason: "unknown status " + string(status)}
	}
	res := tx.Model(&models.Asset{}).
		Where("id = ?", id).
		Updates(map[string]any{"sale_status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetArchivalWithTx overwrites the archival status. Only ledger imports use it; platform
// mints go through TransitionArchivalWithTx.
func (r *Repository) SetArchivalWithTx(tx *gorm.DB, id uuid.UUID, status enums.ArchivalStatus) error {
	if !status.IsValid() {
		return &models.SchemaError{Entity: "asset", Field: "archival_status", Reason: "unknown status " + string(status)}
	}
	res := tx.Model(&models.Asset{}).
		Where("id = ?", id).
		Updates(map[string]any{"archival_status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
