package listings

import (
	"context"
	"time"

	"github.com/angelmondragon/archivemint-backend/pkg/db/models"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists marketplace listings of both kinds.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateWithTx(tx *gorm.DB, row *models.MarketplaceListing) error {
	return tx.Create(row).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.MarketplaceListing, error) {
	return r.FindByIDWithTx(r.db.WithContext(ctx), id)
}

func (r *Repository) FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.MarketplaceListing, error) {
	var row models.MarketplaceListing
	if err := tx.First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByTxHash returns the on-chain listing created by hash, or gorm.ErrRecordNotFound.
func (r *Repository) FindByTxHash(ctx context.Context, hash string) (*models.MarketplaceListing, error) {
	var row models.MarketplaceListing
	if err := r.db.WithContext(ctx).First(&row, "tx_hash = ?", hash).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ListByAsset returns every listing ever created for the asset, newest first.
func (r *Repository) ListByAsset(ctx context.Context, assetID uuid.UUID) ([]models.MarketplaceListing, error) {
	var rows []models.MarketplaceListing
	err := r.db.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

// ListExpired returns active listings whose expiry is at or before now.
func (r *Repository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.MarketplaceListing, error) {
	var rows []models.MarketplaceListing
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", enums.ListingStatusActive, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// TransitionWithTx moves a listing to `to` only while its status is one of from. It
// reports whether the row changed.
func (r *Repository) TransitionWithTx(tx *gorm.DB, id uuid.UUID, from []enums.ListingStatus, to enums.ListingStatus, fields map[string]any) (bool, error) {
	updates := map[string]any{"status": to, "updated_at": time.Now().UTC()}
	for k, v := range fields {
		updates[k] = v
	}
	res := tx.Model(&models.MarketplaceListing{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
