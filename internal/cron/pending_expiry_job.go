package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
	"go.uber.org/multierr"
)

type pendingExpirer interface {
	ExpireDue(ctx context.Context, action enums.ActionType, now time.Time) (int64, error)
}

type PendingExpiryJobParams struct {
	Logger  *logger.Logger
	Pending pendingExpirer
}

// NewPendingExpiryJob expires paid operations nobody consumed before their deadline. Each
// priced action is swept even when another fails.
func NewPendingExpiryJob(params PendingExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Pending == nil {
		return nil, errors.New("pending operation store required")
	}
	return &pendingExpiryJob{
		logg:    params.Logger,
		pending: params.Pending,
		actions: []enums.ActionType{enums.ActionTypeMint, enums.ActionTypeAnalysis},
		now:     time.Now,
	}, nil
}

type pendingExpiryJob struct {
	logg    *logger.Logger
	pending pendingExpirer
	actions []enums.ActionType
	now     func() time.Time
}

func (j *pendingExpiryJob) Name() string { return "pending-expiry" }

func (j *pendingExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	var errs error
	for _, action := range j.actions {
		expired, err := j.pending.ExpireDue(ctx, action, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire pending %s: %w", action, err))
			continue
		}
		if expired > 0 {
			j.logg.Info(j.logg.WithFields(ctx, map[string]any{"action": string(action), "expired": expired}), "pending operations expired")
		}
	}
	return errs
}
