package listings

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/angelmondragon/archivemint-backend/internal/payments"
	"github.com/angelmondragon/archivemint-backend/pkg/config"
	"github.com/angelmondragon/archivemint-backend/pkg/db"
	"github.com/angelmondragon/archivemint-backend/pkg/db/models"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/archivemint-backend/pkg/errors"
	"github.com/angelmondragon/archivemint-backend/pkg/ledger"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const expireBatchSize = 200

type assetStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Asset, error)
	UpdateSaleStatusWithTx(tx *gorm.DB, id uuid.UUID, status enums.SaleStatus) error
}

type recordStore interface {
	FindLiveByAsset(ctx context.Context, assetID uuid.UUID) (*models.NFT, error)
	FindByToken(ctx context.Context, contract, tokenID string) (*models.NFT, error)
	AnnotateListing(ctx context.Context, assetID, listingID uuid.UUID) error
}

type listingStore interface {
	CreateWithTx(tx *gorm.DB, row *models.MarketplaceListing) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.MarketplaceListing, error)
	FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.MarketplaceListing, error)
	FindByTxHash(ctx context.Context, hash string) (*models.MarketplaceListing, error)
	ListByAsset(ctx context.Context, assetID uuid.UUID) ([]models.MarketplaceListing, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.MarketplaceListing, error)
	TransitionWithTx(tx *gorm.DB, id uuid.UUID, from []enums.ListingStatus, to enums.ListingStatus, fields map[string]any) (bool, error)
}

type marketplace interface {
	TokenContract() common.Address
	PaymentToken(currency string) (ledger.PaymentToken, error)
	BuildListingTx(ctx context.Context, seller common.Address, params ledger.ListingParams) (*ledger.UnsignedTx, error)
	DecodeSignedListing(signedHex string) (*ledger.SignedListing, error)
	Broadcast(ctx context.Context, tx *types.Transaction) (common.Hash, error)
}

type checkoutCreator interface {
	CreateCheckout(ctx context.Context, input payments.CheckoutInput) (*payments.CheckoutRef, error)
}

type sellerLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service creates and settles marketplace listings.
type Service interface {
	CreateCustodied(ctx context.Context, input CustodiedInput) (*Custodied, error)
	BuildListingTransaction(ctx context.Context, input BuildInput) (*BuildResult, error)
	SubmitListingTransaction(ctx context.Context, input SubmitInput) (*OnChain, error)
	Checkout(ctx context.Context, listingID, buyerID uuid.UUID) (*payments.CheckoutRef, error)
	MarkSold(ctx context.Context, listingID uuid.UUID, saleReference string) error
	Cancel(ctx context.Context, listingID, sellerID uuid.UUID) (Listing, error)
	ExpireDue(ctx context.Context, now time.Time) (int, error)
	Get(ctx context.Context, listingID uuid.UUID) (Listing, error)
	ListByAsset(ctx context.Context, assetID uuid.UUID) ([]Listing, error)
}

type ServiceParams struct {
	Assets      assetStore
	Records     recordStore
	Listings    listingStore
	Marketplace marketplace
	Checkout    checkoutCreator
	Sellers     sellerLookup
	TxRunner    txRunner
	Config      config.ListingConfig
	Logger      *logger.Logger
	Now         func() time.Time
}

// CustodiedInput lists an asset for a card-processor sale. ExpiresIn zero uses the default.
type CustodiedInput struct {
	AssetID   uuid.UUID
	SellerID  uuid.UUID
	Price     decimal.Decimal
	Currency  string
	ExpiresIn time.Duration
}

// BuildInput describes an on-chain listing to prepare for the seller's wallet.
type BuildInput struct {
	AssetID       uuid.UUID
	SellerID      uuid.UUID
	Price         decimal.Decimal
	Currency      string
	Duration      time.Duration
	WalletAddress string
}

// BuildResult is the unsigned transaction plus the record it lists.
type BuildResult struct {
	AssetID     uuid.UUID          `json:"assetId"`
	RecordID    uuid.UUID          `json:"recordId"`
	Transaction *ledger.UnsignedTx `json:"transaction"`
}

// SubmitInput carries the wallet-signed transaction. Currency must name the payment token
// the transaction was built with.
type SubmitInput struct {
	SellerID uuid.UUID
	SignedTx string
	Currency string
}

type service struct {
	assets      assetStore
	records     recordStore
	listings    listingStore
	marketplace marketplace
	checkout    checkoutCreator
	sellers     sellerLookup
	txRunner    txRunner
	cfg         config.ListingConfig
	logg        *logger.Logger
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Assets == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "asset store required")
	}
	if params.Records == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "record store required")
	}
	if params.Listings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "listing store required")
	}
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	cfg := params.Config
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = 30 * 24 * time.Hour
	}
	if cfg.MaxDuration < cfg.DefaultDuration {
		cfg.MaxDuration = cfg.DefaultDuration
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		assets:      params.Assets,
		records:     params.Records,
		listings:    params.Listings,
		marketplace: params.Marketplace,
		checkout:    params.Checkout,
		sellers:     params.Sellers,
		txRunner:    params.TxRunner,
		cfg:         cfg,
		logg:        params.Logger,
		now:         now,
	}, nil
}

// CreateCustodied lists an asset for a platform-settled sale. The archival record is only
// annotated; a failed annotation never fails the listing.
func (s *service) CreateCustodied(ctx context.Context, input CustodiedInput) (*Custodied, error) {
	if input.AssetID == uuid.Nil || input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assetId and seller are required")
	}
	if !input.Price.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	currency := enums.CurrencyUSD
	if raw := strings.ToUpper(strings.TrimSpace(input.Currency)); raw != "" && raw != string(enums.CurrencyUSD) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "custodied listings are priced in USD")
	}
	if !input.Price.Equal(input.Price.Round(2)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price supports at most two decimals")
	}
	duration, err := s.duration(input.ExpiresIn)
	if err != nil {
		return nil, err
	}

	asset, err := s.ownedAsset(ctx, input.AssetID, input.SellerID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithAssetID(ctx, asset.ID.String())

	expiresAt := s.now().UTC().Add(duration)
	row := &models.MarketplaceListing{
		Kind:      enums.ListingKindCustodied,
		AssetID:   asset.ID,
		SellerID:  input.SellerID,
		Price:     input.Price,
		Currency:  currency,
		Status:    enums.ListingStatusActive,
		ExpiresAt: &expiresAt,
	}
	if err := s.insert(ctx, row); err != nil {
		return nil, err
	}

	if err := s.records.AnnotateListing(ctx, asset.ID, row.ID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logg.Warn(ctx, fmt.Sprintf("annotate archival record with listing %s failed: %v", row.ID, err))
	}
	s.logg.Info(ctx, fmt.Sprintf("custodied listing %s created", row.ID))

	listing, err := fromRow(row)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "map listing")
	}
	custodied := listing.(Custodied)
	return &custodied, nil
}

// BuildListingTransaction prepares an unsigned createListing call for the seller's wallet.
// Nothing is stored; a lost signature is recovered by building again.
func (s *service) BuildListingTransaction(ctx context.Context, input BuildInput) (*BuildResult, error) {
	var missing []string
	if input.AssetID == uuid.Nil {
		missing = append(missing, "assetId")
	}
	if input.Price.IsZero() {
		missing = append(missing, "price")
	}
	if strings.TrimSpace(input.Currency) == "" {
		missing = append(missing, "currency")
	}
	if strings.TrimSpace(input.WalletAddress) == "" {
		missing = append(missing, "walletAddress")
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "missing required fields").
			WithDetails(map[string]any{"fields": missing})
	}
	if !input.Price.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if !common.IsHexAddress(input.WalletAddress) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "walletAddress is not a valid address")
	}
	if s.marketplace == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "on-chain listings are not enabled")
	}
	token, err := s.paymentToken(input.Currency)
	if err != nil {
		return nil, err
	}
	amount, err := toBaseUnits(input.Price, token.Decimals)
	if err != nil {
		return nil, err
	}
	duration, err := s.duration(input.Duration)
	if err != nil {
		return nil, err
	}

	asset, err := s.ownedAsset(ctx, input.AssetID, input.SellerID)
	if err != nil {
		return nil, err
	}
	record, err := s.listableRecord(ctx, asset.ID)
	if err != nil {
		return nil, err
	}
	tokenID, ok := new(big.Int).SetString(*record.TokenID, 10)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "archival record has a malformed token id")
	}
	contract := s.marketplace.TokenContract()
	if record.ContractAddress != nil && common.IsHexAddress(*record.ContractAddress) {
		contract = common.HexToAddress(*record.ContractAddress)
	}

	unsigned, err := s.marketplace.BuildListingTx(ctx, common.HexToAddress(input.WalletAddress), ledger.ListingParams{
		NFTContract:  contract,
		TokenID:      tokenID,
		PaymentToken: token.Address,
		Price:        amount,
		Duration:     big.NewInt(int64(duration / time.Second)),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build listing transaction")
	}
	return &BuildResult{AssetID: asset.ID, RecordID: record.ID, Transaction: unsigned}, nil
}

// SubmitListingTransaction broadcasts a signed createListing call and records it. A
// transaction that was already recorded is returned as is.
func (s *service) SubmitListingTransaction(ctx context.Context, input SubmitInput) (*OnChain, error) {
	if input.SellerID == uuid.Nil || strings.TrimSpace(input.SignedTx) == "" || strings.TrimSpace(input.Currency) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "signed transaction and currency are required")
	}
	if s.marketplace == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "on-chain listings are not enabled")
	}
	signed, err := s.marketplace.DecodeSignedListing(input.SignedTx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid listing transaction")
	}
	token, err := s.paymentToken(input.Currency)
	if err != nil {
		return nil, err
	}
	if token.Address != signed.Params.PaymentToken {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction pays in a different token than currency")
	}

	hash := strings.ToLower(signed.Tx.Hash().Hex())
	if existing, err := s.listings.FindByTxHash(ctx, hash); err == nil {
		return s.asOnChain(existing)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup listing transaction")
	}

	record, err := s.records.FindByToken(ctx, signed.Params.NFTContract.Hex(), signed.Params.TokenID.String())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction lists a token this platform did not archive")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup archival record")
	}
	asset, err := s.ownedAsset(ctx, record.AssetID, input.SellerID)
	if err != nil {
		return nil, err
	}
	if _, err := s.listableRecord(ctx, asset.ID); err != nil {
		return nil, err
	}

	ctx = s.logg.WithAssetID(ctx, asset.ID.String())
	broadcast, err := s.marketplace.Broadcast(ctx, signed.Tx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "broadcast listing transaction")
	}
	hash = strings.ToLower(broadcast.Hex())

	wallet := signed.Seller.Hex()
	nftID := record.ID
	expiresAt := s.now().UTC().Add(time.Duration(signed.Params.Duration.Int64()) * time.Second)
	row := &models.MarketplaceListing{
		Kind:         enums.ListingKindOnChain,
		AssetID:      asset.ID,
		NFTID:        &nftID,
		SellerID:     input.SellerID,
		SellerWallet: &wallet,
		Price:        decimal.NewFromBigInt(signed.Params.Price, -token.Decimals),
		Currency:     enums.Currency(strings.ToUpper(strings.TrimSpace(input.Currency))),
		Status:       enums.ListingStatusActive,
		ExpiresAt:    &expiresAt,
		TxHash:       &hash,
	}
	if err := s.insert(ctx, row); err != nil {
		if existing, lookupErr := s.listings.FindByTxHash(ctx, hash); lookupErr == nil {
			return s.asOnChain(existing)
		}
		return nil, err
	}

	if err := s.records.AnnotateListing(ctx, asset.ID, row.ID); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("annotate archival record with listing %s failed: %v", row.ID, err))
	}
	s.logg.Info(ctx, fmt.Sprintf("on-chain listing %s broadcast as %s", row.ID, hash))
	return s.asOnChain(row)
}

// Checkout opens a card payment for a custodied listing. The seller's payout account
// receives the proceeds minus the platform fee.
func (s *service) Checkout(ctx context.Context, listingID, buyerID uuid.UUID) (*payments.CheckoutRef, error) {
	if s.checkout == nil || s.sellers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "listing checkout is not configured")
	}
	listing, err := s.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	custodied, ok := listing.(Custodied)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "on-chain listings settle on the marketplace contract")
	}
	if !custodied.IsOpen(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "listing is no longer available")
	}
	if custodied.SellerID == buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sellers cannot buy their own listing")
	}
	seller, err := s.sellers.FindByID(ctx, custodied.SellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
	}
	destination := ""
	if seller.StripeAccountID != nil {
		destination = *seller.StripeAccountID
	}
	return s.checkout.CreateCheckout(ctx, payments.CheckoutInput{
		Action:             enums.ActionTypePurchase,
		ResourceID:         custodied.ID,
		UserID:             buyerID,
		Price:              custodied.Price,
		Currency:           strings.ToLower(string(custodied.Currency)),
		DestinationAccount: destination,
	})
}

// MarkSold records a settled sale. Repeating it for the same reference is a no-op. A
// listing that expired while the buyer was paying is still sold.
func (s *service) MarkSold(ctx context.Context, listingID uuid.UUID, saleReference string) error {
	saleReference = strings.TrimSpace(saleReference)
	if listingID == uuid.Nil || saleReference == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "listing id and sale reference are required")
	}
	soldAt := s.now().UTC()
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		row, err := s.listings.FindByIDWithTx(tx, listingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
		}
		if row.Status == enums.ListingStatusSold {
			if row.SaleReference != nil && *row.SaleReference == saleReference {
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "listing was already sold").
				WithDetails(map[string]any{"listing_id": listingID})
		}
		moved, err := s.listings.TransitionWithTx(tx, listingID,
			[]enums.ListingStatus{enums.ListingStatusActive, enums.ListingStatusExpired},
			enums.ListingStatusSold,
			map[string]any{"sale_reference": saleReference, "sold_at": soldAt},
		)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark listing sold")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("listing is %s", row.Status))
		}
		if err := s.assets.UpdateSaleStatusWithTx(tx, row.AssetID, enums.SaleStatusSold); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark asset sold")
		}
		return nil
	})
}

// Cancel withdraws an active listing. Canceling twice returns the canceled listing.
func (s *service) Cancel(ctx context.Context, listingID, sellerID uuid.UUID) (Listing, error) {
	var out *models.MarketplaceListing
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		row, err := s.listings.FindByIDWithTx(tx, listingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
		}
		if row.SellerID != sellerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "listing belongs to another seller")
		}
		out = row
		if row.Status == enums.ListingStatusCanceled {
			return nil
		}
		moved, err := s.listings.TransitionWithTx(tx, listingID,
			[]enums.ListingStatus{enums.ListingStatusActive}, enums.ListingStatusCanceled, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel listing")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("listing is %s", row.Status))
		}
		row.Status = enums.ListingStatusCanceled
		if err := s.assets.UpdateSaleStatusWithTx(tx, row.AssetID, enums.SaleStatusNotForSale); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset asset sale status")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.mapRow(out)
}

// ExpireDue closes active listings past their expiry and returns how many it closed.
func (s *service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	rows, err := s.listings.ListExpired(ctx, now.UTC(), expireBatchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired listings")
	}
	expired := 0
	for i := range rows {
		row := rows[i]
		moved := false
		err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			moved, err = s.listings.TransitionWithTx(tx, row.ID,
				[]enums.ListingStatus{enums.ListingStatusActive}, enums.ListingStatusExpired, nil)
			if err != nil || !moved {
				return err
			}
			return s.assets.UpdateSaleStatusWithTx(tx, row.AssetID, enums.SaleStatusNotForSale)
		})
		if err != nil {
			return expired, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire listing")
		}
		if moved {
			expired++
		}
	}
	return expired, nil
}

func (s *service) Get(ctx context.Context, listingID uuid.UUID) (Listing, error) {
	row, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	return s.mapRow(row)
}

func (s *service) ListByAsset(ctx context.Context, assetID uuid.UUID) ([]Listing, error) {
	rows, err := s.listings.ListByAsset(ctx, assetID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list listings")
	}
	out := make([]Listing, 0, len(rows))
	for i := range rows {
		listing, err := s.mapRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, listing)
	}
	return out, nil
}

func (s *service) duration(requested time.Duration) (time.Duration, error) {
	switch {
	case requested < 0:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "duration must be positive")
	case requested == 0:
		return s.cfg.DefaultDuration, nil
	case requested < time.Hour:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "duration must be at least one hour")
	case requested > s.cfg.MaxDuration:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("duration may not exceed %s", s.cfg.MaxDuration))
	}
	return requested, nil
}

func (s *service) ownedAsset(ctx context.Context, assetID, sellerID uuid.UUID) (*models.Asset, error) {
	asset, err := s.assets.FindByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "asset not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load asset")
	}
	if asset.OwnerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "asset belongs to another user")
	}
	switch asset.SaleStatus {
	case enums.SaleStatusListed:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "asset already has an active listing")
	case enums.SaleStatusSold:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "asset was already sold")
	}
	return asset, nil
}

// listableRecord returns the record an on-chain listing may reference: a confirmed one, or
// one awaiting confirmation with a storage identifier when unconfirmed listings are allowed.
// The record must also carry a ledger token.
func (s *service) listableRecord(ctx context.Context, assetID uuid.UUID) (*models.NFT, error) {
	record, err := s.records.FindLiveByAsset(ctx, assetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "asset has no archival record")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load archival record")
	}
	switch {
	case record.Status == enums.NFTStatusConfirmed:
	case record.Status == enums.NFTStatusAwaitingConfirmation && s.cfg.AllowUnconfirmed && record.StorageTxID != nil:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "archival record is not confirmed").
			WithDetails(map[string]any{"status": record.Status})
	}
	if record.TokenID == nil || *record.TokenID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "archival record has no ledger token")
	}
	return record, nil
}

func (s *service) paymentToken(currency string) (ledger.PaymentToken, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if _, err := enums.ParseCurrency(code); err != nil {
		return ledger.PaymentToken{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency")
	}
	token, err := s.marketplace.PaymentToken(code)
	if err != nil {
		return ledger.PaymentToken{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency")
	}
	return token, nil
}

// insert writes the listing and flags the asset as listed in one transaction.
func (s *service) insert(ctx context.Context, row *models.MarketplaceListing) error {
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.listings.CreateWithTx(tx, row); err != nil {
			return err
		}
		return s.assets.UpdateSaleStatusWithTx(tx, row.AssetID, enums.SaleStatusListed)
	})
	if err == nil {
		return nil
	}
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "asset already has an active listing")
	}
	var schemaErr *models.SchemaError
	if errors.As(err, &schemaErr) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid listing")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create listing")
}

func (s *service) mapRow(row *models.MarketplaceListing) (Listing, error) {
	listing, err := fromRow(row)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "map listing")
	}
	return listing, nil
}

func (s *service) asOnChain(row *models.MarketplaceListing) (*OnChain, error) {
	listing, err := s.mapRow(row)
	if err != nil {
		return nil, err
	}
	onchain, ok := listing.(OnChain)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "listing is not on-chain")
	}
	return &onchain, nil
}

func toBaseUnits(price decimal.Decimal, decimals int32) (*big.Int, error) {
	shifted := price.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("price supports at most %d decimals", decimals))
	}
	return shifted.BigInt(), nil
}
