package mints

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/archivemint-backend/pkg/db/models"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists archival records.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateWithTx(tx *gorm.DB, record *models.NFT) error {
	return tx.Create(record).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.NFT, error) {
	var record models.NFT
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByLedgerTxHash returns the record minted by hash, or gorm.ErrRecordNotFound.
func (r *Repository) FindByLedgerTxHash(ctx context.Context, hash string) (*models.NFT, error) {
	var record models.NFT
	if err := r.db.WithContext(ctx).First(&record, "ledger_tx_hash = ?", hash).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// FindLiveByAsset returns the asset's record that has not failed, or gorm.ErrRecordNotFound.
func (r *Repository) FindLiveByAsset(ctx context.Context, assetID uuid.UUID) (*models.NFT, error) {
	var record models.NFT
	err := r.db.WithContext(ctx).
		Where("asset_id = ? AND status <> ?", assetID, enums.NFTStatusFailed).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByToken returns the record holding a ledger token, or gorm.ErrRecordNotFound.
func (r *Repository) FindByToken(ctx context.Context, contract, tokenID string) (*models.NFT, error) {
	var record models.NFT
	err := r.db.WithContext(ctx).
		Where("LOWER(contract_address) = ? AND token_id = ? AND status <> ?", strings.ToLower(contract), tokenID, enums.NFTStatusFailed).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListAwaitingBefore returns records still awaiting confirmation that were created before cutoff.
func (r *Repository) ListAwaitingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.NFT, error) {
	var records []models.NFT
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.NFTStatusAwaitingConfirmation, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// CountConfirmedSince counts the owner's confirmed records created at or after since.
func (r *Repository) CountConfirmedSince(ctx context.Context, ownerID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.NFT{}).
		Where("owner_id = ? AND status = ? AND created_at >= ?", ownerID, enums.NFTStatusConfirmed, since.UTC()).
		Count(&count).Error
	return count, err
}

// TransitionWithTx moves a record into to when its current status may precede it, writing
// fields alongside. It reports whether the row changed.
func (r *Repository) TransitionWithTx(tx *gorm.DB, id uuid.UUID, to enums.NFTStatus, fields map[string]any) (bool, error) {
	from := enums.NFTStatusPredecessors(to)
	if len(from) == 0 {
		return false, fmt.Errorf("no status may move into %s", to)
	}
	updates := map[string]any{}
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to
	updates["updated_at"] = time.Now().UTC()

	res := tx.Model(&models.NFT{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) Transition(ctx context.Context, id uuid.UUID, to enums.NFTStatus, fields map[string]any) (bool, error) {
	return r.TransitionWithTx(r.db.WithContext(ctx), id, to, fields)
}

// RecordLedgerMint stores the secondary ledger identifiers of a record still awaiting
// confirmation.
func (r *Repository) RecordLedgerMint(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.NFT{}).
		Where("id = ? AND status = ?", id, enums.NFTStatusAwaitingConfirmation).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AnnotateListing points the asset's live record at a listing.
func (r *Repository) AnnotateListing(ctx context.Context, assetID, listingID uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&models.NFT{}).
		Where("asset_id = ? AND status <> ?", assetID, enums.NFTStatusFailed).
		Updates(map[string]any{"listing_id": listingID, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
