package mints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/angelmondragon/archivemint-backend/pkg/errors"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// TaskStart is enqueued when a mint payment lands.
	TaskStart = "mint:start"
	// TaskConfirm polls the storage network for an uploaded record.
	TaskConfirm = "mint:confirm"
)

// StartPayload identifies the asset to archive and the paying user.
type StartPayload struct {
	AssetID uuid.UUID `json:"asset_id"`
	UserID  uuid.UUID `json:"user_id"`
}

// ConfirmPayload identifies the record to confirm.
type ConfirmPayload struct {
	RecordID uuid.UUID `json:"record_id"`
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Queue enqueues mint tasks. Task ids are derived from the resource so duplicates collapse.
type Queue struct {
	client   enqueuer
	maxRetry int
}

func NewQueue(client enqueuer, maxRetry int) *Queue {
	if maxRetry <= 0 {
		maxRetry = 25
	}
	return &Queue{client: client, maxRetry: maxRetry}
}

// EnqueueStart schedules a mint start for a paid asset.
func (q *Queue) EnqueueStart(ctx context.Context, assetID, userID uuid.UUID) error {
	data, err := json.Marshal(StartPayload{AssetID: assetID, UserID: userID})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return q.enqueue(ctx, asynq.NewTask(TaskStart, data),
		asynq.TaskID(TaskStart+":"+assetID.String()),
		asynq.MaxRetry(q.maxRetry),
	)
}

// EnqueueConfirm schedules a confirmation poll after delay.
func (q *Queue) EnqueueConfirm(ctx context.Context, recordID uuid.UUID, delay time.Duration) error {
	data, err := json.Marshal(ConfirmPayload{RecordID: recordID})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return q.enqueue(ctx, asynq.NewTask(TaskConfirm, data),
		asynq.TaskID(TaskConfirm+":"+recordID.String()),
		asynq.ProcessIn(delay),
		asynq.MaxRetry(q.maxRetry),
	)
}

func (q *Queue) enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error {
	if q == nil || q.client == nil {
		return errors.New("mint queue not initialized")
	}
	_, err := q.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return nil
}

// Processor serves mint tasks from the asynq worker loop.
type Processor struct {
	svc  Service
	logg *logger.Logger
}

func NewProcessor(svc Service, logg *logger.Logger) *Processor {
	return &Processor{svc: svc, logg: logg}
}

// Handler registers the mint task handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskStart, p.handleStart)
	mux.HandleFunc(TaskConfirm, p.handleConfirm)
	return mux
}

func (p *Processor) handleStart(ctx context.Context, task *asynq.Task) error {
	var payload StartPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	res, err := p.svc.Start(ctx, StartInput{AssetID: payload.AssetID, UserID: payload.UserID})
	if err != nil {
		return retryable(err)
	}
	p.logg.Info(p.logg.WithAssetID(ctx, payload.AssetID.String()), fmt.Sprintf("mint start task finished: %s", res.Outcome))
	return nil
}

func (p *Processor) handleConfirm(ctx context.Context, task *asynq.Task) error {
	var payload ConfirmPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	record, err := p.svc.Confirm(ctx, payload.RecordID)
	if err != nil {
		if errors.Is(err, ErrStillPending) {
			return err
		}
		return retryable(err)
	}
	p.logg.Info(p.logg.WithRecordID(p.logg.WithAssetID(ctx, record.AssetID.String()), record.ID.String()), "record is "+string(record.Status))
	return nil
}

// retryable keeps errors the worker can outlast, such as outages or a paused platform,
// and marks the rest as final.
func retryable(err error) error {
	if errors.Is(err, ErrMintFailed) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if !pkgerrors.Retryable(err) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// RetryDelay polls confirmations at a fixed interval and backs off everything else.
func RetryDelay(confirmEvery time.Duration) asynq.RetryDelayFunc {
	return func(n int, err error, task *asynq.Task) time.Duration {
		if task.Type() == TaskConfirm && errors.Is(err, ErrStillPending) && confirmEvery > 0 {
			return confirmEvery
		}
		return asynq.DefaultRetryDelayFunc(n, err, task)
	}
}
