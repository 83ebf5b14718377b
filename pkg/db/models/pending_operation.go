package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/archivemint-backend/pkg/enums"
)

// PendingOperation marks a payment received for an action not yet performed.
// ResourceID is the idempotency key; each action type has its own table.
type PendingOperation struct {
	ResourceID        uuid.UUID           `gorm:"column:resource_id;type:uuid;primaryKey"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Status            enums.PendingStatus `gorm:"column:status;type:pending_status;not null"`
	CheckoutSessionID string              `gorm:"column:checkout_session_id;not null"`
	Amount            decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency          string              `gorm:"column:currency;not null;default:'usd'"`
	PaidAt            time.Time           `gorm:"column:paid_at;not null"`
	ConsumedAt        *time.Time          `gorm:"column:consumed_at"`
	ExpiresAt         time.Time           `gorm:"column:expires_at;not null"`
	SchemaVersion     int                 `gorm:"column:schema_version;not null;default:1"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// PendingTable returns the table holding pending operations for an action.
func PendingTable(action enums.ActionType) (string, error) {
	switch action {
	case enums.ActionTypeMint:
		return "pending_mints", nil
	case enums.ActionTypeAnalysis:
		return "pending_analyses", nil
	default:
		return "", fmt.Errorf("no pending operations for action %q", action)
	}
}

// Validate checks the row before it is written.
func (p *PendingOperation) Validate() error {
	switch {
	case p.ResourceID == uuid.Nil:
		return invalid("pending_operation", "resource_id", "required")
	case p.UserID == uuid.Nil:
		return invalid("pending_operation", "user_id", "required")
	case !p.Status.IsValid():
		return invalid("pending_operation", "status", "unknown status "+string(p.Status))
	case p.CheckoutSessionID == "":
		return invalid("pending_operation", "checkout_session_id", "required")
	case p.Amount.IsNegative():
		return invalid("pending_operation", "amount", "must not be negative")
	case p.ExpiresAt.IsZero():
		return invalid("pending_operation", "expires_at", "required")
	}
	return nil
}
