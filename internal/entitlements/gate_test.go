package entitlements

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/archivemint-backend/pkg/config"
	"github.com/angelmondragon/archivemint-backend/pkg/db/models"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/archivemint-backend/pkg/errors"
	"github.com/google/uuid"
)

type stubUsers map[uuid.UUID]*models.User

func (s stubUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s[id], nil
}

type stubMints struct {
	count int64
	since time.Time
}

func (s *stubMints) CountConfirmedSince(ctx context.Context, ownerID uuid.UUID, since time.Time) (int64, error) {
	s.since = since
	return s.count, nil
}

func newTestGate(t *testing.T, user *models.User, mints *stubMints) *Gate {
	t.Helper()
	gate, err := NewGate(GateParams{
		Users:   stubUsers{user.ID: user},
		Mints:   mints,
		Pricing: defaultPricing(t),
		Entitlements: config.EntitlementsConfig{
			MonthlyFreeMints:     10,
			SubscriberDiscountPc: 50,
			AnalysisPriceUSD:     "0.99",
		},
		Now: func() time.Time { return time.Date(2026, 3, 17, 15, 4, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	return gate
}

func subscribed(tier enums.UserTier, status enums.SubscriptionStatus) *models.User {
	return &models.User{ID: uuid.New(), Tier: tier, SubscriptionStatus: &status}
}

func TestResolveFreeTierPaysFullPrice(t *testing.T) {
	user := &models.User{ID: uuid.New(), Tier: enums.UserTierFree}
	gate := newTestGate(t, user, &stubMints{})

	decision, err := gate.Resolve(context.Background(), user.ID, enums.ActionTypeMint, 3*mb)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if decision.Outcome != OutcomeRequiresPayment || decision.Price.StringFixed(2) != "2.99" || decision.Discounted {
		t.Fatalf("unexpected decision %+v", decision)
	}
	if !pkgerrors.Is(decision.PaymentRequiredError(), pkgerrors.CodePaymentRequired) {
		t.Fatal("expected payment required error")
	}

	decision, _ = gate.Resolve(context.Background(), user.ID, enums.ActionTypeAnalysis, 0)
	if decision.Outcome != OutcomeRequiresPayment || decision.Price.StringFixed(2) != "0.99" {
		t.Fatalf("unexpected analysis decision %+v", decision)
	}
}

func TestResolveBetaIsAlwaysFree(t *testing.T) {
	for _, user := range []*models.User{
		{ID: uuid.New(), Tier: enums.UserTierBeta},
		{ID: uuid.New(), Tier: enums.UserTierFree, BetaAccess: true},
		subscribed(enums.UserTierPro, enums.SubscriptionStatusActive),
	} {
		if user.Tier == enums.UserTierPro {
			user.BetaAccess = true
		}
		mints := &stubMints{count: 99}
		gate := newTestGate(t, user, mints)
		for _, action := range []enums.ActionType{enums.ActionTypeMint, enums.ActionTypeAnalysis} {
			decision, err := gate.Resolve(context.Background(), user.ID, action, 500*mb)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if decision.Outcome != OutcomeFreeBeta || !decision.Free() {
				t.Fatalf("expected free_beta for %s, got %+v", action, decision)
			}
		}
	}
}

func TestResolveSubscriberAllowance(t *testing.T) {
	user := subscribed(enums.UserTierPro, enums.SubscriptionStatusTrialing)
	mints := &stubMints{count: 7}
	gate := newTestGate(t, user, mints)

	decision, err := gate.Resolve(context.Background(), user.ID, enums.ActionTypeMint, 60*mb)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if decision.Outcome != OutcomeFreeAllowance || decision.Remaining == nil || *decision.Remaining != 3 {
		t.Fatalf("unexpected decision %+v", decision)
	}
	if !mints.since.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected month start, got %v", mints.since)
	}

	mints.count = 10
	decision, _ = gate.Resolve(context.Background(), user.ID, enums.ActionTypeMint, 60*mb)
	if decision.Outcome != OutcomeRequiresPayment || !decision.Discounted || decision.Price.StringFixed(2) != "5.00" {
		t.Fatalf("expected discounted price, got %+v", decision)
	}

	decision, _ = gate.Resolve(context.Background(), user.ID, enums.ActionTypeAnalysis, 0)
	if decision.Outcome != OutcomeFreeSubscription {
		t.Fatalf("expected free analysis for subscriber, got %+v", decision)
	}
}

func TestResolveLapsedSubscriptionPaysFullPrice(t *testing.T) {
	user := subscribed(enums.UserTierCreator, enums.SubscriptionStatusPastDue)
	gate := newTestGate(t, user, &stubMints{})

	decision, err := gate.Resolve(context.Background(), user.ID, enums.ActionTypeMint, 3*mb)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if decision.Outcome != OutcomeRequiresPayment || decision.Discounted {
		t.Fatalf("unexpected decision %+v", decision)
	}
}

func TestResolveRejectsUngatedAction(t *testing.T) {
	user := &models.User{ID: uuid.New(), Tier: enums.UserTierFree}
	gate := newTestGate(t, user, &stubMints{})
	if _, err := gate.Resolve(context.Background(), user.ID, enums.ActionTypePurchase, 0); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
