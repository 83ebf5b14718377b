package entitlements

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/archivemint-backend/pkg/config"
	"github.com/angelmondragon/archivemint-backend/pkg/db/models"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/archivemint-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Outcome is the verdict of the gate.
type Outcome string

const (
	OutcomeFreeBeta         Outcome = "free_beta"
	OutcomeFreeSubscription Outcome = "free_subscription"
	OutcomeFreeAllowance    Outcome = "free_monthly_allowance_remaining"
	OutcomeRequiresPayment  Outcome = "requires_payment"
)

// Decision says whether an action is free or what it costs.
type Decision struct {
	Action     enums.ActionType `json:"action"`
	Outcome    Outcome          `json:"outcome"`
	Remaining  *int             `json:"remaining,omitempty"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	Currency   string           `json:"currency,omitempty"`
	Discounted bool             `json:"discounted,omitempty"`
}

// Free reports whether the action can run without a pending payment.
func (d Decision) Free() bool {
	return d.Outcome != OutcomeRequiresPayment
}

// PaymentRequiredError carries the price for the client to render a checkout prompt.
func (d Decision) PaymentRequiredError() error {
	details := map[string]any{"action": d.Action, "currency": d.Currency}
	if d.Price != nil {
		details["price"] = d.Price.StringFixed(2)
	}
	return pkgerrors.New(pkgerrors.CodePaymentRequired, fmt.Sprintf("payment required for %s", d.Action)).WithDetails(details)
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type mintCounter interface {
	CountConfirmedSince(ctx context.Context, ownerID uuid.UUID, since time.Time) (int64, error)
}

type GateParams struct {
	Users        userReader
	Mints        mintCounter
	Pricing      *Pricing
	Entitlements config.EntitlementsConfig
	Currency     string
	Now          func() time.Time
}

// Gate decides whether gated actions are charged.
type Gate struct {
	users         userReader
	mints         mintCounter
	pricing       *Pricing
	allowance     int
	discountPc    int
	analysisPrice decimal.Decimal
	currency      string
	now           func() time.Time
}

func NewGate(params GateParams) (*Gate, error) {
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user reader required")
	}
	if params.Mints == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "mint counter required")
	}
	if params.Pricing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "pricing required")
	}
	analysis, err := decimal.NewFromString(strings.TrimSpace(params.Entitlements.AnalysisPriceUSD))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse analysis price")
	}
	discount := params.Entitlements.SubscriberDiscountPc
	if discount < 0 || discount > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscriber discount must be within 0..100")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "usd"
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Gate{
		users:         params.Users,
		mints:         params.Mints,
		pricing:       params.Pricing,
		allowance:     params.Entitlements.MonthlyFreeMints,
		discountPc:    discount,
		analysisPrice: analysis,
		currency:      currency,
		now:           now,
	}, nil
}

// MintPrice exposes the tier price for sizeBytes.
func (g *Gate) MintPrice(sizeBytes int64) decimal.Decimal {
	return g.pricing.MintPrice(sizeBytes)
}

// Resolve decides for userID and action. sizeBytes prices mints and is ignored otherwise.
// Rules in order: beta access is always free; an entitled paid tier gets analysis free and
// the monthly mint allowance, then the discounted price; everyone else pays full price.
func (g *Gate) Resolve(ctx context.Context, userID uuid.UUID, action enums.ActionType, sizeBytes int64) (Decision, error) {
	if !action.Gated() {
		return Decision{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("action %q is not gated", action))
	}
	user, err := g.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Decision{}, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return Decision{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	if user.BetaAccess || user.Tier == enums.UserTierBeta {
		return Decision{Action: action, Outcome: OutcomeFreeBeta}, nil
	}

	full := g.fullPrice(action, sizeBytes)
	if !user.HasActiveSubscription() {
		return g.charge(action, full, false), nil
	}
	if action == enums.ActionTypeAnalysis {
		return Decision{Action: action, Outcome: OutcomeFreeSubscription}, nil
	}

	used, err := g.mints.CountConfirmedSince(ctx, userID, MonthStart(g.now()))
	if err != nil {
		return Decision{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count monthly mints")
	}
	if remaining := g.allowance - int(used); remaining > 0 {
		return Decision{Action: action, Outcome: OutcomeFreeAllowance, Remaining: &remaining}, nil
	}
	reduced := full.Mul(decimal.NewFromInt(int64(100 - g.discountPc))).Div(decimal.NewFromInt(100)).Round(2)
	return g.charge(action, reduced, true), nil
}

func (g *Gate) fullPrice(action enums.ActionType, sizeBytes int64) decimal.Decimal {
	if action == enums.ActionTypeAnalysis {
		return g.analysisPrice
	}
	return g.pricing.MintPrice(sizeBytes)
}

func (g *Gate) charge(action enums.ActionType, price decimal.Decimal, discounted bool) Decision {
	return Decision{
		Action:     action,
		Outcome:    OutcomeRequiresPayment,
		Price:      &price,
		Currency:   g.currency,
		Discounted: discounted,
	}
}

// MonthStart returns midnight UTC on the first day of now's month.
func MonthStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
