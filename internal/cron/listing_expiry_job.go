package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/archivemint-backend/pkg/logger"
)

type listingExpirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

type ListingExpiryJobParams struct {
	Logger   *logger.Logger
	Listings listingExpirer
}

func NewListingExpiryJob(params ListingExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Listings == nil {
		return nil, errors.New("listing service required")
	}
	return &listingExpiryJob{logg: params.Logger, listings: params.Listings, now: time.Now}, nil
}

type listingExpiryJob struct {
	logg     *logger.Logger
	listings listingExpirer
	now      func() time.Time
}

func (j *listingExpiryJob) Name() string { return "listing-expiry" }

func (j *listingExpiryJob) Run(ctx context.Context) error {
	expired, err := j.listings.ExpireDue(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("expire listings: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "listings_expired", expired), "listing expiry complete")
	return nil
}
