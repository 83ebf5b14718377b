package mints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/archivemint-backend/internal/assets"
	"github.com/angelmondragon/archivemint-backend/internal/entitlements"
	"github.com/angelmondragon/archivemint-backend/internal/quota"
	"github.com/angelmondragon/archivemint-backend/pkg/arweave"
	"github.com/angelmondragon/archivemint-backend/pkg/config"
	"github.com/angelmondragon/archivemint-backend/pkg/db"
	"github.com/angelmondragon/archivemint-backend/pkg/db/models"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/archivemint-backend/pkg/errors"
	"github.com/angelmondragon/archivemint-backend/pkg/ledger"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
	"github.com/angelmondragon/archivemint-backend/pkg/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrStillPending is returned by Confirm while the storage network has not confirmed
// the upload yet. Callers retry later.
var ErrStillPending = errors.New("storage transaction still pending")

// ErrMintFailed marks a start whose upload failed after the payment was consumed. The
// record is failed and the start must not be retried automatically.
var ErrMintFailed = errors.New("mint failed")

var errAlreadyProcessing = errors.New("asset already being archived")

// StartOutcome describes how a start request ended when it did not fail.
type StartOutcome string

const (
	OutcomeStarted           StartOutcome = "started"
	OutcomeAlreadyArchived   StartOutcome = "already_archived"
	OutcomeAlreadyProcessing StartOutcome = "already_processing"
)

type assetStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Asset, error)
	TransitionArchivalWithTx(tx *gorm.DB, id uuid.UUID, from, to enums.ArchivalStatus) (bool, error)
	SetArchivalWithTx(tx *gorm.DB, id uuid.UUID, status enums.ArchivalStatus) error
}

type recordStore interface {
	CreateWithTx(tx *gorm.DB, record *models.NFT) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.NFT, error)
	FindByLedgerTxHash(ctx context.Context, hash string) (*models.NFT, error)
	TransitionWithTx(tx *gorm.DB, id uuid.UUID, to enums.NFTStatus, fields map[string]any) (bool, error)
	Transition(ctx context.Context, id uuid.UUID, to enums.NFTStatus, fields map[string]any) (bool, error)
	RecordLedgerMint(ctx context.Context, id uuid.UUID, fields map[string]any) error
}

type pendingConsumer interface {
	ConsumeWithTx(tx *gorm.DB, action enums.ActionType, resourceID, userID uuid.UUID, now time.Time) (bool, error)
}

type entitlementResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, action enums.ActionType, sizeBytes int64) (entitlements.Decision, error)
}

type quotaAdmitter interface {
	CanAdmit(ctx context.Context, userID uuid.UUID, space enums.QuotaSpace) (quota.Decision, error)
}

type healthGate interface {
	Health(ctx context.Context) enums.PlatformHealth
}

type archiver interface {
	Upload(ctx context.Context, data []byte, tags []arweave.Tag) (string, error)
	Status(ctx context.Context, txID string) (arweave.TxStatus, error)
	URL(txID string) string
}

type objectReader interface {
	ReadObject(ctx context.Context, ref string, maxBytes int64) ([]byte, error)
}

type ledgerMinter interface {
	MintWithProvenance(ctx context.Context, req ledger.MintRequest) (*ledger.MintResult, error)
}

type confirmScheduler interface {
	EnqueueConfirm(ctx context.Context, recordID uuid.UUID, delay time.Duration) error
}

type walletLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service runs the archival state machine.
type Service interface {
	Start(ctx context.Context, input StartInput) (*StartResult, error)
	Confirm(ctx context.Context, recordID uuid.UUID) (*models.NFT, error)
	Sync(ctx context.Context, input SyncInput) (*SyncResult, error)
	Get(ctx context.Context, recordID, ownerID uuid.UUID) (*models.NFT, error)
}

type ServiceParams struct {
	Assets       assetStore
	Records      recordStore
	Pending      pendingConsumer
	Entitlements entitlementResolver
	Quota        quotaAdmitter
	Health       healthGate
	Storage      archiver
	Objects      objectReader
	Ledger       ledgerMinter
	Confirms     confirmScheduler
	Users        walletLookup
	TxRunner     txRunner
	Config       config.MintConfig
	AppName      string
	Metrics      *metrics.MintMetrics
	Logger       *logger.Logger
	Now          func() time.Time
}

// StartInput asks for an asset to be archived. A nil RoyaltyBps uses the configured default.
type StartInput struct {
	AssetID        uuid.UUID
	UserID         uuid.UUID
	WithLedgerMint bool
	RoyaltyBps     *int
}

type StartResult struct {
	Outcome  StartOutcome           `json:"outcome"`
	Record   *models.NFT            `json:"record,omitempty"`
	Decision *entitlements.Decision `json:"entitlement,omitempty"`
}

// SyncInput describes a token minted on the secondary ledger outside the platform.
type SyncInput struct {
	AssetID         uuid.UUID
	OwnerID         uuid.UUID
	LedgerTxHash    string
	TokenID         string
	ContractAddress string
	MetadataURI     string
	StorageTxID     string
	RoyaltyBps      int
}

type SyncResult struct {
	Record  *models.NFT `json:"record"`
	Created bool        `json:"created"`
}

type service struct {
	assets   assetStore
	records  recordStore
	pending  pendingConsumer
	gate     entitlementResolver
	quota    quotaAdmitter
	health   healthGate
	storage  archiver
	objects  objectReader
	ledger   ledgerMinter
	confirms confirmScheduler
	users    walletLookup
	tx       txRunner
	cfg      config.MintConfig
	appName  string
	metrics  *metrics.MintMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Assets == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "asset store required")
	case params.Records == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "record store required")
	case params.Pending == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "pending operation store required")
	case params.Entitlements == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "entitlement gate required")
	case params.Quota == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "quota manager required")
	case params.Health == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "balance monitor required")
	case params.Storage == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "storage network client required")
	case params.Objects == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "object reader required")
	case params.Confirms == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "confirmation scheduler required")
	case params.TxRunner == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	case params.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	cfg := params.Config
	if cfg.MinConfirmations <= 0 {
		cfg.MinConfirmations = 1
	}
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = 6 * time.Hour
	}
	if cfg.MaxRoyaltyBps <= 0 || cfg.MaxRoyaltyBps > 10000 {
		cfg.MaxRoyaltyBps = 10000
	}
	if cfg.DefaultRoyaltyBps < 0 || cfg.DefaultRoyaltyBps > cfg.MaxRoyaltyBps {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "default royalty exceeds the maximum")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	appName := strings.TrimSpace(params.AppName)
	if appName == "" {
		appName = "ArchiveMint"
	}
	return &service{
		assets:   params.Assets,
		records:  params.Records,
		pending:  params.Pending,
		gate:     params.Entitlements,
		quota:    params.Quota,
		health:   params.Health,
		storage:  params.Storage,
		objects:  params.Objects,
		ledger:   params.Ledger,
		confirms: params.Confirms,
		users:    params.Users,
		tx:       params.TxRunner,
		cfg:      cfg,
		appName:  appName,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// Start moves an asset from none to uploading and runs the upload. The asset status swap
// and the pending payment consumption share one transaction so only one caller proceeds.
// A failure after that point leaves the record failed and the payment consumed.
func (s *service) Start(ctx context.Context, input StartInput) (*StartResult, error) {
	if input.AssetID == uuid.Nil || input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "asset id and user id are required")
	}
	royalty, err := s.royalty(input.RoyaltyBps)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithAssetID(s.logg.WithUserID(ctx, input.UserID.String()), input.AssetID.String())

	asset, err := s.assets.FindByID(ctx, input.AssetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "asset not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load asset")
	}
	if asset.OwnerID != input.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "asset belongs to another user")
	}
	switch asset.ArchivalStatus {
	case enums.ArchivalStatusArchived:
		s.metrics.IncOutcome(string(OutcomeAlreadyArchived))
		return &StartResult{Outcome: OutcomeAlreadyArchived}, nil
	case enums.ArchivalStatusPending:
		s.metrics.IncOutcome(string(OutcomeAlreadyProcessing))
		return &StartResult{Outcome: OutcomeAlreadyProcessing}, nil
	}

	if health := s.health.Health(ctx); health.BlocksMinting() {
		s.metrics.IncOutcome("paused")
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "minting is paused while the platform balance is "+string(health)).
			WithDetails(map[string]any{"health": health})
	}

	admit, err := s.quota.CanAdmit(ctx, input.UserID, enums.QuotaSpaceArchived)
	if err != nil {
		return nil, err
	}
	if err := admit.Err(); err != nil {
		s.metrics.IncOutcome("quota_full")
		return nil, err
	}

	decision, err := s.gate.Resolve(ctx, input.UserID, enums.ActionTypeMint, asset.SizeBytes)
	if err != nil {
		return nil, err
	}

	record := &models.NFT{
		AssetID:    asset.ID,
		OwnerID:    asset.OwnerID,
		Status:     enums.NFTStatusUploading,
		Origin:     enums.NFTOriginPlatform,
		RoyaltyBps: royalty,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		won, err := s.assets.TransitionArchivalWithTx(tx, asset.ID, enums.ArchivalStatusNone, enums.ArchivalStatusPending)
		if err != nil {
			return err
		}
		if !won {
			return errAlreadyProcessing
		}
		if !decision.Free() {
			consumed, err := s.pending.ConsumeWithTx(tx, enums.ActionTypeMint, asset.ID, input.UserID, s.now())
			if err != nil {
				return err
			}
			if !consumed {
				return decision.PaymentRequiredError()
			}
		}
		if err := s.records.CreateWithTx(tx, record); err != nil {
			if db.IsUniqueViolation(err, "") {
				return errAlreadyProcessing
			}
			return err
		}
		return nil
	})
	switch {
	case errors.Is(err, errAlreadyProcessing):
		s.metrics.IncOutcome(string(OutcomeAlreadyProcessing))
		return &StartResult{Outcome: OutcomeAlreadyProcessing}, nil
	case pkgerrors.Is(err, pkgerrors.CodePaymentRequired):
		s.metrics.IncOutcome("payment_required")
		return nil, err
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "start mint")
	}
	s.metrics.IncTransition(string(enums.NFTStatusUploading))
	s.logg.Info(ctx, fmt.Sprintf("mint started as %s (%s)", record.ID, decision.Outcome))

	if err := s.archive(ctx, asset, record, input.WithLedgerMint || s.cfg.LedgerByDefault); err != nil {
		s.logg.Error(ctx, "mint upload failed", err)
		if failErr := s.fail(ctx, record.ID, asset.ID, err.Error()); failErr != nil {
			s.logg.Error(ctx, "failed to mark mint as failed", failErr)
		}
		s.metrics.IncOutcome("failed")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("%w: %w", ErrMintFailed, err), "mint failed, contact support").
			WithDetails(map[string]any{"record_id": record.ID})
	}
	s.metrics.IncOutcome(string(OutcomeStarted))
	return &StartResult{Outcome: OutcomeStarted, Record: record, Decision: &decision}, nil
}

func (s *service) royalty(requested *int) (int, error) {
	if requested == nil {
		return s.cfg.DefaultRoyaltyBps, nil
	}
	if *requested < 0 || *requested > s.cfg.MaxRoyaltyBps {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("royalty must be within 0..%d basis points", s.cfg.MaxRoyaltyBps))
	}
	return *requested, nil
}

// archive uploads the asset and its metadata, records the storage identifiers and
// schedules confirmation.
func (s *service) archive(ctx context.Context, asset *models.Asset, record *models.NFT, withLedger bool) error {
	handler, err := assets.HandlerFor(asset.Kind)
	if err != nil {
		return err
	}

	fields := map[string]any{}
	contentURI := ""
	if handler.UploadsContent {
		data, err := s.objects.ReadObject(ctx, storageRef(asset), s.cfg.MaxContentBytes)
		if err != nil {
			return fmt.Errorf("read asset bytes: %w", err)
		}
		started := time.Now()
		contentTx, err := s.storage.Upload(ctx, data, s.tags(asset, asset.MimeType, "content"))
		s.metrics.ObserveUpload(string(asset.Kind), time.Since(started))
		if err != nil {
			return fmt.Errorf("upload asset bytes: %w", err)
		}
		contentURI = s.storage.URL(contentTx)
		record.ContentTxID = &contentTx
		fields["content_tx_id"] = contentTx
	}

	metadata, err := handler.BuildMetadata(asset, contentURI)
	if err != nil {
		return err
	}
	doc, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	started := time.Now()
	metadataTx, err := s.storage.Upload(ctx, doc, s.tags(asset, "application/json", "metadata"))
	s.metrics.ObserveUpload("metadata", time.Since(started))
	if err != nil {
		return fmt.Errorf("upload metadata: %w", err)
	}
	metadataURI := s.storage.URL(metadataTx)

	fields["storage_tx_id"] = metadataTx
	fields["metadata_uri"] = metadataURI
	fields["metadata"] = datatypes.JSON(doc)
	moved, err := s.records.Transition(ctx, record.ID, enums.NFTStatusAwaitingConfirmation, fields)
	if err != nil {
		return fmt.Errorf("record storage transaction: %w", err)
	}
	if !moved {
		return fmt.Errorf("record %s left uploading before its upload was recorded", record.ID)
	}
	record.Status = enums.NFTStatusAwaitingConfirmation
	record.StorageTxID = &metadataTx
	record.MetadataURI = &metadataURI
	record.Metadata = datatypes.JSON(doc)
	s.metrics.IncTransition(string(enums.NFTStatusAwaitingConfirmation))

	if withLedger && s.ledger != nil {
		if err := s.mintOnLedger(ctx, record, metadataURI, metadataTx); err != nil {
			return err
		}
	}

	if err := s.confirms.EnqueueConfirm(ctx, record.ID, s.cfg.ConfirmPollDelay); err != nil {
		return fmt.Errorf("schedule confirmation: %w", err)
	}
	return nil
}

func (s *service) mintOnLedger(ctx context.Context, record *models.NFT, metadataURI, provenance string) error {
	req := ledger.MintRequest{
		MetadataURI:  metadataURI,
		ProvenanceID: provenance,
		RoyaltyBps:   record.RoyaltyBps,
	}
	if s.users != nil {
		if owner, err := s.users.FindByID(ctx, record.OwnerID); err == nil && owner.WalletAddress != nil && common.IsHexAddress(*owner.WalletAddress) {
			req.To = common.HexToAddress(*owner.WalletAddress)
		}
	}
	res, err := s.ledger.MintWithProvenance(ctx, req)
	if err != nil {
		return fmt.Errorf("ledger mint: %w", err)
	}

	tokenID := res.TokenID.String()
	txHash := res.TxHash.Hex()
	gasUsed := int64(res.GasUsed)
	gasCost := res.GasCostWei.String()
	contract := res.ContractAddress.Hex()
	err = s.records.RecordLedgerMint(ctx, record.ID, map[string]any{
		"token_id":         tokenID,
		"ledger_tx_hash":   txHash,
		"gas_used":         gasUsed,
		"gas_cost_wei":     gasCost,
		"contract_address": contract,
	})
	if err != nil {
		return fmt.Errorf("record ledger mint %s: %w", txHash, err)
	}
	record.TokenID = &tokenID
	record.LedgerTxHash = &txHash
	record.GasUsed = &gasUsed
	record.GasCostWei = &gasCost
	record.ContractAddress = &contract
	s.logg.Info(ctx, fmt.Sprintf("ledger token %s minted in %s", tokenID, txHash))
	return nil
}

func (s *service) tags(asset *models.Asset, contentType, role string) []arweave.Tag {
	return []arweave.Tag{
		{Name: "Content-Type", Value: contentType},
		{Name: "App-Name", Value: s.appName},
		{Name: "Asset-Id", Value: asset.ID.String()},
		{Name: "Media-Kind", Value: string(asset.Kind)},
		{Name: "Type", Value: role},
		{Name: "Schema-Version", Value: strconv.Itoa(models.CurrentSchemaVersion)},
	}
}

func storageRef(asset *models.Asset) string {
	if asset.StorageObject != nil && *asset.StorageObject != "" {
		return *asset.StorageObject
	}
	return asset.StorageURL
}

// fail moves a live record to failed and releases the asset. The pending payment is not
// restored.
func (s *service) fail(ctx context.Context, recordID, assetID uuid.UUID, reason string) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.records.TransitionWithTx(tx, recordID, enums.NFTStatusFailed, map[string]any{"failure_reason": reason})
		if err != nil || !moved {
			return err
		}
		_, err = s.assets.TransitionArchivalWithTx(tx, assetID, enums.ArchivalStatusPending, enums.ArchivalStatusNone)
		return err
	})
	if err == nil {
		s.metrics.IncTransition(string(enums.NFTStatusFailed))
	}
	return err
}

// Confirm polls the storage network for a record awaiting confirmation. Terminal records
// are returned unchanged.
func (s *service) Confirm(ctx context.Context, recordID uuid.UUID) (*models.NFT, error) {
	record, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "archival record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load archival record")
	}
	ctx = s.logg.WithRecordID(s.logg.WithAssetID(ctx, record.AssetID.String()), record.ID.String())

	switch record.Status {
	case enums.NFTStatusConfirmed, enums.NFTStatusFailed:
		return record, nil
	case enums.NFTStatusUploading:
		return record, ErrStillPending
	}
	if record.StorageTxID == nil || *record.StorageTxID == "" {
		return s.failAndReload(ctx, record, "record has no storage transaction")
	}

	status, err := s.storage.Status(ctx, *record.StorageTxID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check storage transaction")
	}
	expired := s.now().After(record.CreatedAt.Add(s.cfg.ConfirmationTimeout))
	switch {
	case !status.Pending && !status.NotFound && status.Confirmations >= s.cfg.MinConfirmations:
		return s.markConfirmed(ctx, record)
	case expired && status.NotFound:
		return s.failAndReload(ctx, record, "storage transaction not found before the confirmation deadline")
	case expired:
		return s.failAndReload(ctx, record, "storage transaction not confirmed before the confirmation deadline")
	default:
		return record, ErrStillPending
	}
}

func (s *service) markConfirmed(ctx context.Context, record *models.NFT) (*models.NFT, error) {
	confirmedAt := s.now().UTC()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.records.TransitionWithTx(tx, record.ID, enums.NFTStatusConfirmed, map[string]any{"confirmed_at": confirmedAt})
		if err != nil || !moved {
			return err
		}
		_, err = s.assets.TransitionArchivalWithTx(tx, record.AssetID, enums.ArchivalStatusPending, enums.ArchivalStatusArchived)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm archival record")
	}
	s.metrics.IncTransition(string(enums.NFTStatusConfirmed))
	s.logg.Info(ctx, fmt.Sprintf("archival record %s confirmed", record.ID))
	return s.reload(ctx, record.ID)
}

func (s *service) failAndReload(ctx context.Context, record *models.NFT, reason string) (*models.NFT, error) {
	if err := s.fail(ctx, record.ID, record.AssetID, reason); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail archival record")
	}
	s.logg.Warn(ctx, fmt.Sprintf("archival record %s failed: %s", record.ID, reason))
	return s.reload(ctx, record.ID)
}

func (s *service) reload(ctx context.Context, id uuid.UUID) (*models.NFT, error) {
	record, err := s.records.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload archival record")
	}
	return record, nil
}

// Sync imports a token minted directly on the secondary ledger. It is idempotent by ledger
// transaction hash and never rewrites a confirmed record.
func (s *service) Sync(ctx context.Context, input SyncInput) (*SyncResult, error) {
	hash := strings.ToLower(strings.TrimSpace(input.LedgerTxHash))
	if len(hash) != 66 || !strings.HasPrefix(hash, "0x") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ledger tx hash must be a 32-byte hex string")
	}
	if input.AssetID == uuid.Nil || input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "asset id and owner id are required")
	}
	if input.ContractAddress != "" && !common.IsHexAddress(input.ContractAddress) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract address is not a hex address")
	}
	if input.RoyaltyBps < 0 || input.RoyaltyBps > 10000 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "royalty must be within 0..10000 basis points")
	}
	ctx = s.logg.WithAssetID(ctx, input.AssetID.String())

	if existing, err := s.records.FindByLedgerTxHash(ctx, hash); err == nil {
		return s.syncExisting(ctx, existing, input.AssetID)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load record by ledger hash")
	}

	asset, err := s.assets.FindByID(ctx, input.AssetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "asset not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load asset")
	}
	if asset.OwnerID != input.OwnerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner does not match the asset")
	}

	confirmedAt := s.now().UTC()
	record := &models.NFT{
		AssetID:      asset.ID,
		OwnerID:      asset.OwnerID,
		Status:       enums.NFTStatusConfirmed,
		Origin:       enums.NFTOriginLedgerSync,
		RoyaltyBps:   input.RoyaltyBps,
		LedgerTxHash: &hash,
		ConfirmedAt:  &confirmedAt,
	}
	if v := strings.TrimSpace(input.TokenID); v != "" {
		record.TokenID = &v
	}
	if input.ContractAddress != "" {
		contract := common.HexToAddress(input.ContractAddress).Hex()
		record.ContractAddress = &contract
	}
	if v := strings.TrimSpace(input.MetadataURI); v != "" {
		record.MetadataURI = &v
	}
	if v := strings.TrimSpace(input.StorageTxID); v != "" {
		record.StorageTxID = &v
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.records.CreateWithTx(tx, record); err != nil {
			return err
		}
		return s.assets.SetArchivalWithTx(tx, asset.ID, enums.ArchivalStatusArchived)
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			if existing, findErr := s.records.FindByLedgerTxHash(ctx, hash); findErr == nil {
				return s.syncExisting(ctx, existing, input.AssetID)
			}
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "asset already has an archival record")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "import ledger record")
	}
	s.metrics.IncTransition(string(enums.NFTStatusConfirmed))
	s.logg.Info(ctx, fmt.Sprintf("ledger record %s imported as %s", hash, record.ID))
	return &SyncResult{Record: record, Created: true}, nil
}

func (s *service) syncExisting(ctx context.Context, existing *models.NFT, assetID uuid.UUID) (*SyncResult, error) {
	if existing.AssetID != assetID {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "ledger transaction belongs to another asset")
	}
	switch existing.Status {
	case enums.NFTStatusConfirmed:
		return &SyncResult{Record: existing}, nil
	case enums.NFTStatusAwaitingConfirmation:
		record, err := s.markConfirmed(ctx, existing)
		if err != nil {
			return nil, err
		}
		return &SyncResult{Record: record}, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "archival record is "+string(existing.Status)).
			WithDetails(map[string]any{"record_id": existing.ID})
	}
}

func (s *service) Get(ctx context.Context, recordID, ownerID uuid.UUID) (*models.NFT, error) {
	record, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "archival record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load archival record")
	}
	if record.OwnerID != ownerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "archival record not found")
	}
	return record, nil
}
