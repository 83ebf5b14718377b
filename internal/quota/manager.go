package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/archivemint-backend/pkg/config"
	"github.com/angelmondragon/archivemint-backend/pkg/db/models"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/archivemint-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Unlimited is the limit sentinel for tiers without a ceiling.
const Unlimited = -1

// Limits holds the per-space ceilings of a tier.
type Limits struct {
	Draft    int `json:"draft"`
	Archived int `json:"archived"`
}

// For returns the ceiling of space.
func (l Limits) For(space enums.QuotaSpace) int {
	if space == enums.QuotaSpaceArchived {
		return l.Archived
	}
	return l.Draft
}

// Usage is a display snapshot of one space.
type Usage struct {
	Space   enums.QuotaSpace  `json:"space"`
	Used    int64             `json:"used"`
	Limit   int               `json:"limit"`
	Percent *float64          `json:"percent,omitempty"`
	Status  enums.QuotaStatus `json:"status"`
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Usage   Usage  `json:"usage"`
}

// Err converts a denial into a QuotaExceeded error carrying the usage snapshot.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeQuotaExceeded, d.Reason).WithDetails(map[string]any{
		"space": d.Usage.Space,
		"used":  d.Usage.Used,
		"limit": d.Usage.Limit,
	})
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type assetCounter interface {
	CountByOwnerAndStatuses(ctx context.Context, ownerID uuid.UUID, statuses []enums.ArchivalStatus) (int64, error)
}

// Manager reads space usage and compares it with tier limits. Admission is check-then-act;
// concurrent admissions for one user can overshoot a limit slightly.
type Manager struct {
	limits  map[enums.UserTier]Limits
	users   userReader
	counter assetCounter
}

// NewManager builds the manager from configured limits.
func NewManager(cfg config.QuotaConfig, users userReader, counter assetCounter) (*Manager, error) {
	if users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user reader required")
	}
	if counter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "asset counter required")
	}
	return &Manager{
		limits:  LimitsTable(cfg),
		users:   users,
		counter: counter,
	}, nil
}

// LimitsTable maps every tier to its limits. Negative configured values become Unlimited.
func LimitsTable(cfg config.QuotaConfig) map[enums.UserTier]Limits {
	pro := Limits{Draft: normalize(cfg.ProDraft), Archived: normalize(cfg.ProArchived)}
	return map[enums.UserTier]Limits{
		enums.UserTierFree:    {Draft: normalize(cfg.FreeDraft), Archived: normalize(cfg.FreeArchived)},
		enums.UserTierBeta:    {Draft: normalize(cfg.BetaDraft), Archived: normalize(cfg.BetaArchived)},
		enums.UserTierPro:     pro,
		enums.UserTierCreator: pro,
		enums.UserTierStudio:  {Draft: normalize(cfg.StudioDraft), Archived: normalize(cfg.StudioArchived)},
	}
}

func normalize(limit int) int {
	if limit < 0 {
		return Unlimited
	}
	return limit
}

// Limits returns the limits of tier; unknown tiers get the free limits.
func (m *Manager) Limits(tier enums.UserTier) Limits {
	if limits, ok := m.limits[tier]; ok {
		return limits
	}
	return m.limits[enums.UserTierFree]
}

// EffectiveTier is the tier used for limits; beta access lifts a free account to beta.
func EffectiveTier(user *models.User) enums.UserTier {
	if user.BetaAccess && user.Tier == enums.UserTierFree {
		return enums.UserTierBeta
	}
	return user.Tier
}

// Usage reports the current usage of space for userID.
func (m *Manager) Usage(ctx context.Context, userID uuid.UUID, space enums.QuotaSpace) (Usage, error) {
	if !space.IsValid() {
		return Usage{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown quota space %q", space))
	}
	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Usage{}, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return Usage{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	used, err := m.counter.CountByOwnerAndStatuses(ctx, userID, statusesFor(space))
	if err != nil {
		return Usage{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count assets")
	}
	limit := m.Limits(EffectiveTier(user)).For(space)
	return Usage{
		Space:   space,
		Used:    used,
		Limit:   limit,
		Percent: PercentUsed(used, limit),
		Status:  StatusFor(used, limit),
	}, nil
}

// CanAdmit denies exactly when used >= limit.
func (m *Manager) CanAdmit(ctx context.Context, userID uuid.UUID, space enums.QuotaSpace) (Decision, error) {
	usage, err := m.Usage(ctx, userID, space)
	if err != nil {
		return Decision{}, err
	}
	if usage.Limit != Unlimited && usage.Used >= int64(usage.Limit) {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("%s space is full (%d of %d)", space, usage.Used, usage.Limit),
			Usage:   usage,
		}, nil
	}
	return Decision{Allowed: true, Usage: usage}, nil
}

// PercentUsed returns nil for unlimited spaces.
func PercentUsed(used int64, limit int) *float64 {
	if limit == Unlimited {
		return nil
	}
	var pct float64
	if limit == 0 {
		pct = 100
	} else {
		pct = float64(used) / float64(limit) * 100
	}
	return &pct
}

// StatusFor buckets usage into safe <75%, warning <90%, critical <100%, full.
func StatusFor(used int64, limit int) enums.QuotaStatus {
	pct := PercentUsed(used, limit)
	switch {
	case pct == nil:
		return enums.QuotaStatusSafe
	case *pct >= 100:
		return enums.QuotaStatusFull
	case *pct >= 90:
		return enums.QuotaStatusCritical
	case *pct >= 75:
		return enums.QuotaStatusWarning
	default:
		return enums.QuotaStatusSafe
	}
}

func statusesFor(space enums.QuotaSpace) []enums.ArchivalStatus {
	if space == enums.QuotaSpaceArchived {
		return []enums.ArchivalStatus{enums.ArchivalStatusArchived}
	}
	return []enums.ArchivalStatus{enums.ArchivalStatusNone, enums.ArchivalStatusPending}
}
