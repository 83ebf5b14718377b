package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/archivemint-backend/pkg/db/models"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PendingRepository persists paid-but-unconsumed operations, one table per action.
type PendingRepository struct {
	db *gorm.DB
}

func NewPendingRepository(db *gorm.DB) *PendingRepository {
	return &PendingRepository{db: db}
}

// Arm records a paid operation keyed by its resource. A replay of the same checkout
// session never changes the row; a different session only re-arms a consumed or
// expired operation. It reports whether a row was written.
func (r *PendingRepository) Arm(ctx context.Context, action enums.ActionType, op *models.PendingOperation) (bool, error) {
	table, err := models.PendingTable(action)
	if err != nil {
		return false, err
	}
	if op.SchemaVersion == 0 {
		op.SchemaVersion = models.CurrentSchemaVersion
	}
	if err := op.Validate(); err != nil {
		return false, err
	}
	now := time.Now().UTC()
	op.CreatedAt, op.UpdatedAt = now, now

	res := r.db.WithContext(ctx).Table(table).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "resource_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id", "status", "checkout_session_id", "amount", "currency",
			"paid_at", "consumed_at", "expires_at", "schema_version", "updated_at",
		}),
		Where: clause.Where{Exprs: []clause.Expression{clause.Expr{
			SQL: fmt.Sprintf("%[1]s.status <> ? AND %[1]s.checkout_session_id <> excluded.checkout_session_id", table),
			Vars: []any{enums.PendingStatusPaid},
		}}},
	}).Create(op)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ConsumeWithTx flips a live paid operation to consumed. Exactly one caller wins.
func (r *PendingRepository) ConsumeWithTx(tx *gorm.DB, action enums.ActionType, resourceID, userID uuid.UUID, now time.Time) (bool, error) {
	table, err := models.PendingTable(action)
	if err != nil {
		return false, err
	}
	now = now.UTC()
	res := tx.Table(table).
		Where("resource_id = ? AND user_id = ? AND status = ? AND expires_at > ?", resourceID, userID, enums.PendingStatusPaid, now).
		Updates(map[string]any{
			"status":      enums.PendingStatusConsumed,
			"consumed_at": now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Find returns the operation for resourceID, or gorm.ErrRecordNotFound.
func (r *PendingRepository) Find(ctx context.Context, action enums.ActionType, resourceID uuid.UUID) (*models.PendingOperation, error) {
	table, err := models.PendingTable(action)
	if err != nil {
		return nil, err
	}
	var op models.PendingOperation
	if err := r.db.WithContext(ctx).Table(table).First(&op, "resource_id = ?", resourceID).Error; err != nil {
		return nil, err
	}
	return &op, nil
}

// ExpireDue marks paid operations past their expiry as expired.
func (r *PendingRepository) ExpireDue(ctx context.Context, action enums.ActionType, now time.Time) (int64, error) {
	table, err := models.PendingTable(action)
	if err != nil {
		return 0, err
	}
	now = now.UTC()
	res := r.db.WithContext(ctx).Table(table).
		Where("status = ? AND expires_at <= ?", enums.PendingStatusPaid, now).
		Updates(map[string]any{"status": enums.PendingStatusExpired, "updated_at": now})
	return res.RowsAffected, res.Error
}
