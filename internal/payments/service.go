package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/archivemint-backend/internal/users"
	"github.com/angelmondragon/archivemint-backend/pkg/db/models"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/archivemint-backend/pkg/errors"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"
)

// Metadata keys written on checkout sessions and read back on completion.
const (
	MetadataActionType = "action_type"
	MetadataResourceID = "resource_id"
	MetadataUserID     = "user_id"
)

type checkoutCreator interface {
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type pendingStore interface {
	Arm(ctx context.Context, action enums.ActionType, op *models.PendingOperation) (bool, error)
}

type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByStripeCustomer(ctx context.Context, customerID string) (*models.User, error)
	UpdateSubscription(ctx context.Context, id uuid.UUID, update users.SubscriptionUpdate) error
}

type mintTrigger interface {
	EnqueueStart(ctx context.Context, assetID, userID uuid.UUID) error
}

type saleRecorder interface {
	MarkSold(ctx context.Context, listingID uuid.UUID, saleReference string) error
}

// Service creates checkout sessions for priced actions and reconciles processor events.
type Service interface {
	CreateCheckout(ctx context.Context, input CheckoutInput) (*CheckoutRef, error)
	Reconcile(ctx context.Context, event *stripe.Event) error
}

type ServiceParams struct {
	Stripe        checkoutCreator
	Pending       pendingStore
	Users         userStore
	Mints         mintTrigger
	Sales         saleRecorder
	PublicURL     string
	SuccessPath   string
	CancelPath    string
	PlatformFeePc int
	PendingTTL    time.Duration
	Logger        *logger.Logger
	Now           func() time.Time
}

// CheckoutInput prices one action on one resource. DestinationAccount is required for
// purchases and receives the proceeds minus the platform fee.
type CheckoutInput struct {
	Action             enums.ActionType
	ResourceID         uuid.UUID
	UserID             uuid.UUID
	Price              decimal.Decimal
	Currency           string
	Description        string
	DestinationAccount string
}

// CheckoutRef is the processor reference handed back to the client.
type CheckoutRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type service struct {
	stripe     checkoutCreator
	pending    pendingStore
	users      userStore
	mints      mintTrigger
	sales      saleRecorder
	successURL string
	cancelURL  string
	feePc      int
	pendingTTL time.Duration
	logg       *logger.Logger
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.Pending == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "pending operation store required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user store required")
	}
	if params.Sales == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sale recorder required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if params.PlatformFeePc < 0 || params.PlatformFeePc > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "platform fee must be within 0..100")
	}
	ttl := params.PendingTTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	base := strings.TrimRight(strings.TrimSpace(params.PublicURL), "/")
	return &service{
		stripe:     params.Stripe,
		pending:    params.Pending,
		users:      params.Users,
		mints:      params.Mints,
		sales:      params.Sales,
		successURL: base + params.SuccessPath + "?session_id={CHECKOUT_SESSION_ID}",
		cancelURL:  base + params.CancelPath,
		feePc:      params.PlatformFeePc,
		pendingTTL: ttl,
		logg:       params.Logger,
		now:        now,
	}, nil
}

// CreateCheckout opens a one-line-item payment session. Nothing is stored locally; the
// completion event carries the metadata needed to record the payment.
func (s *service) CreateCheckout(ctx context.Context, input CheckoutInput) (*CheckoutRef, error) {
	if !input.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown action %q", input.Action))
	}
	if input.ResourceID == uuid.Nil || input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resource id and user id are required")
	}
	cents := input.Price.Shift(2).Round(0)
	if !cents.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	currency := strings.ToLower(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "usd"
	}
	name := strings.TrimSpace(input.Description)
	if name == "" {
		name = defaultDescription(input.Action)
	}

	metadata := map[string]string{
		MetadataActionType: string(input.Action),
		MetadataResourceID: input.ResourceID.String(),
		MetadataUserID:     input.UserID.String(),
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(input.ResourceID.String()),
		Metadata:          metadata,
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(cents.IntPart()),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(name),
				},
			},
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}

	if input.Action == enums.ActionTypePurchase {
		destination := strings.TrimSpace(input.DestinationAccount)
		if destination == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller has no payout account")
		}
		fee := cents.Mul(decimal.NewFromInt(int64(s.feePc))).Div(decimal.NewFromInt(100)).Round(0)
		params.PaymentIntentData.ApplicationFeeAmount = stripe.Int64(fee.IntPart())
		params.PaymentIntentData.TransferData = &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
			Destination: stripe.String(destination),
		}
	}

	sess, err := s.stripe.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	return &CheckoutRef{ID: sess.ID, URL: sess.URL}, nil
}

func defaultDescription(action enums.ActionType) string {
	switch action {
	case enums.ActionTypeMint:
		return "Permanent archival mint"
	case enums.ActionTypeAnalysis:
		return "AI asset analysis"
	default:
		return "Asset purchase"
	}
}

// Reconcile applies a verified processor event. It is safe to call more than once for the
// same event. Unknown event types are ignored.
func (s *service) Reconcile(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeUpstreamFatal, "stripe event data required")
	}
	ctx = s.logg.WithStripeEvent(ctx, event.ID, string(event.Type))

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeUpstreamFatal, err, "decode checkout session")
		}
		return s.completeCheckout(ctx, &sess)
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeUpstreamFatal, err, "decode subscription")
		}
		return s.syncSubscription(ctx, &sub, event.Type == stripe.EventTypeCustomerSubscriptionDeleted)
	default:
		return nil
	}
}

func (s *service) completeCheckout(ctx context.Context, sess *stripe.CheckoutSession) error {
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		s.logg.Info(ctx, fmt.Sprintf("checkout %s completed with payment status %s", sess.ID, sess.PaymentStatus))
		return nil
	}
	action, err := enums.ParseActionType(sess.Metadata[MetadataActionType])
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstreamFatal, err, "checkout metadata action")
	}
	resourceID, err := uuid.Parse(sess.Metadata[MetadataResourceID])
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstreamFatal, err, "checkout metadata resource id")
	}
	userID, err := uuid.Parse(sess.Metadata[MetadataUserID])
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstreamFatal, err, "checkout metadata user id")
	}
	ctx = s.logg.WithUserID(ctx, userID.String())

	if action == enums.ActionTypePurchase {
		reference := sess.ID
		if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
			reference = sess.PaymentIntent.ID
		}
		if err := s.sales.MarkSold(ctx, resourceID, reference); err != nil {
			return err
		}
		return nil
	}

	paidAt := s.now().UTC()
	currency := string(sess.Currency)
	if currency == "" {
		currency = "usd"
	}
	op := &models.PendingOperation{
		ResourceID:        resourceID,
		UserID:            userID,
		Status:            enums.PendingStatusPaid,
		CheckoutSessionID: sess.ID,
		Amount:            decimal.New(sess.AmountTotal, -2),
		Currency:          currency,
		PaidAt:            paidAt,
		ExpiresAt:         paidAt.Add(s.pendingTTL),
	}
	armed, err := s.pending.Arm(ctx, action, op)
	if err != nil {
		var schemaErr *models.SchemaError
		if errors.As(err, &schemaErr) {
			return pkgerrors.Wrap(pkgerrors.CodeUpstreamFatal, err, "pending operation rejected")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record pending operation")
	}
	if !armed {
		s.logg.Info(ctx, fmt.Sprintf("%s payment for %s already recorded", action, resourceID))
		return nil
	}
	s.logg.Info(ctx, fmt.Sprintf("%s payment for %s recorded", action, resourceID))

	if action == enums.ActionTypeMint && s.mints != nil {
		if err := s.mints.EnqueueStart(ctx, resourceID, userID); err != nil {
			s.logg.Warn(ctx, fmt.Sprintf("enqueue mint start for %s failed: %v", resourceID, err))
		}
	}
	return nil
}

func (s *service) syncSubscription(ctx context.Context, sub *stripe.Subscription, deleted bool) error {
	user, err := s.subscriber(ctx, sub)
	if err != nil {
		return err
	}
	if user == nil {
		s.logg.Warn(ctx, fmt.Sprintf("subscription %s has no matching user", sub.ID))
		return nil
	}

	status, err := enums.ParseSubscriptionStatus(string(sub.Status))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstreamFatal, err, "subscription status")
	}
	if deleted {
		status = enums.SubscriptionStatusCanceled
	}
	update := users.SubscriptionUpdate{
		Tier:                 TierForStatus(user.Tier, status),
		Status:               status,
		StripeSubscriptionID: sub.ID,
	}
	if sub.Customer != nil {
		update.StripeCustomerID = sub.Customer.ID
	}
	if err := s.users.UpdateSubscription(ctx, user.ID, update); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user subscription")
	}
	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), fmt.Sprintf("subscription %s synced as %s/%s", sub.ID, update.Tier, status))
	return nil
}

func (s *service) subscriber(ctx context.Context, sub *stripe.Subscription) (*models.User, error) {
	if raw := sub.Metadata[MetadataUserID]; raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUpstreamFatal, err, "subscription metadata user id")
		}
		user, err := s.users.FindByID(ctx, id)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscriber")
		}
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		return nil, nil
	}
	user, err := s.users.FindByStripeCustomer(ctx, sub.Customer.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscriber by customer")
	}
	return user, nil
}

// TierForStatus maps a processor status to a tier: entitling statuses keep an existing
// paid tier or grant pro, anything else drops to free.
func TierForStatus(current enums.UserTier, status enums.SubscriptionStatus) enums.UserTier {
	if !status.Entitles() {
		return enums.UserTierFree
	}
	if current.IsPaid() {
		return current
	}
	return enums.UserTierPro
}
