package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/archivemint-backend/internal/quota"
	"github.com/angelmondragon/archivemint-backend/pkg/db/models"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/archivemint-backend/pkg/errors"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const uploadThrottleScope = "asset-upload"

type assetStore interface {
	Create(ctx context.Context, asset *models.Asset) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Asset, error)
}

type admitter interface {
	CanAdmit(ctx context.Context, userID uuid.UUID, space enums.QuotaSpace) (quota.Decision, error)
}

type throttle interface {
	SlidingWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Service registers assets whose bytes were already stored by the upload service.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.Asset, error)
	Get(ctx context.Context, id, ownerID uuid.UUID) (*models.Asset, error)
}

type ServiceParams struct {
	Repo         assetStore
	Quota        admitter
	Throttle     throttle
	UploadLimit  int
	UploadWindow time.Duration
	Logger       *logger.Logger
}

// RegisterInput describes an uploaded file.
type RegisterInput struct {
	OwnerID       uuid.UUID
	Kind          enums.MediaKind
	Name          string
	Description   *string
	MimeType      string
	SizeBytes     int64
	StorageURL    string
	StorageObject *string
	Attributes    map[string]any
}

type service struct {
	repo   assetStore
	quota  admitter
	limit  throttle
	max    int64
	window time.Duration
	logg   *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "asset repository required")
	}
	if params.Quota == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "quota manager required")
	}
	if params.Throttle == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "upload throttle required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	max := int64(params.UploadLimit)
	if max <= 0 {
		max = 20
	}
	window := params.UploadWindow
	if window <= 0 {
		window = time.Hour
	}
	return &service{
		repo:   params.Repo,
		quota:  params.Quota,
		limit:  params.Throttle,
		max:    max,
		window: window,
		logg:   params.Logger,
	}, nil
}

// Register admits the asset into the owner's draft space and records it.
func (s *service) Register(ctx context.Context, input RegisterInput) (*models.Asset, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown media kind %q", input.Kind))
	}
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.StorageURL) == "" || strings.TrimSpace(input.MimeType) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name, mime type and storage url are required")
	}
	if input.SizeBytes <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "size must be positive")
	}
	ctx = s.logg.WithUserID(ctx, input.OwnerID.String())

	decision, err := s.quota.CanAdmit(ctx, input.OwnerID, enums.QuotaSpaceDraft)
	if err != nil {
		return nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}

	allowed, count, err := s.limit.SlidingWindowAllow(ctx, uploadThrottleScope+":"+input.OwnerID.String(), s.max, s.window)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check upload throttle")
	}
	if !allowed {
		return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "too many uploads, try again later").WithDetails(map[string]any{
			"limit":          s.max,
			"window_seconds": int64(s.window.Seconds()),
			"count":          count,
		})
	}

	asset := &models.Asset{
		OwnerID:       input.OwnerID,
		Kind:          input.Kind,
		Name:          strings.TrimSpace(input.Name),
		Description:   input.Description,
		MimeType:      strings.TrimSpace(input.MimeType),
		SizeBytes:     input.SizeBytes,
		StorageURL:    strings.TrimSpace(input.StorageURL),
		StorageObject: input.StorageObject,
	}
	if len(input.Attributes) > 0 {
		raw, err := json.Marshal(input.Attributes)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "attributes must be json")
		}
		asset.Attributes = datatypes.JSON(raw)
	}
	if err := s.repo.Create(ctx, asset); err != nil {
		var schemaErr *models.SchemaError
		if errors.As(err, &schemaErr) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, schemaErr.Error())
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create asset")
	}

	s.logg.Info(s.logg.WithAssetID(ctx, asset.ID.String()), "asset registered")
	return asset, nil
}

// Get loads an asset owned by ownerID.
func (s *service) Get(ctx context.Context, id, ownerID uuid.UUID) (*models.Asset, error) {
	asset, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "asset not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load asset")
	}
	if asset.OwnerID != ownerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "asset not found")
	}
	return asset, nil
}
