package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/archivemint-backend/internal/mints"
	"github.com/angelmondragon/archivemint-backend/pkg/db/models"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const defaultConfirmBatch = 100

type awaitingLister interface {
	ListAwaitingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.NFT, error)
}

type mintConfirmer interface {
	Confirm(ctx context.Context, recordID uuid.UUID) (*models.NFT, error)
}

type MintConfirmSweepJobParams struct {
	Logger  *logger.Logger
	Records awaitingLister
	Mints   mintConfirmer
	MinAge  time.Duration
	Batch   int
}

// NewMintConfirmSweepJob re-polls records the confirm task gave up on. Records still
// waiting are left alone until their confirmation deadline fails them.
func NewMintConfirmSweepJob(params MintConfirmSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Records == nil || params.Mints == nil {
		return nil, errors.New("mint records and service required")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultConfirmBatch
	}
	minAge := params.MinAge
	if minAge <= 0 {
		minAge = 30 * time.Minute
	}
	return &mintConfirmSweepJob{
		logg:    params.Logger,
		records: params.Records,
		mints:   params.Mints,
		minAge:  minAge,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type mintConfirmSweepJob struct {
	logg    *logger.Logger
	records awaitingLister
	mints   mintConfirmer
	minAge  time.Duration
	batch   int
	now     func() time.Time
}

func (j *mintConfirmSweepJob) Name() string { return "mint-confirm-sweep" }

func (j *mintConfirmSweepJob) Run(ctx context.Context) error {
	records, err := j.records.ListAwaitingBefore(ctx, j.now().UTC().Add(-j.minAge), j.batch)
	if err != nil {
		return fmt.Errorf("list awaiting records: %w", err)
	}
	var (
		errs     error
		resolved int
	)
	for _, record := range records {
		updated, err := j.mints.Confirm(ctx, record.ID)
		switch {
		case errors.Is(err, mints.ErrStillPending):
		case err != nil:
			errs = multierr.Append(errs, fmt.Errorf("confirm %s: %w", record.ID, err))
		default:
			resolved++
			j.logg.Info(j.logg.WithRecordID(ctx, updated.ID.String()), "swept record is "+string(updated.Status))
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{"checked": len(records), "resolved": resolved}), "mint confirm sweep complete")
	return errs
}
