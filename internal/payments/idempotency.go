package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/archivemint-backend/pkg/redis"
)

// ClaimState is what a webhook delivery finds when it tries to take an event id.
type ClaimState int

const (
	// ClaimAcquired means this delivery owns the event and must Complete or Release it.
	ClaimAcquired ClaimState = iota
	// ClaimDone means an earlier delivery finished the event.
	ClaimDone
	// ClaimInFlight means another delivery is processing the event right now.
	ClaimInFlight
)

const (
	markProcessing = "processing"
	markDone       = "done"

	// claimTTL bounds how long a crashed delivery can block redelivery.
	claimTTL = 2 * time.Minute
)

// EventStore is the redis surface the guard needs.
type EventStore interface {
	redis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// EventGuard deduplicates processor webhook deliveries by event id. A delivery first
// claims the id for a short window, then marks it done for the full retention period.
type EventGuard struct {
	store EventStore
	ttl   time.Duration
	scope string
}

func NewEventGuard(store EventStore, ttl time.Duration, scope string) (*EventGuard, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case ttl < claimTTL:
		return nil, fmt.Errorf("event retention must be at least %s", claimTTL)
	case scope == "":
		return nil, errors.New("scope is required")
	}
	return &EventGuard{store: store, ttl: ttl, scope: scope}, nil
}

// Claim tries to take eventID for this delivery.
func (g *EventGuard) Claim(ctx context.Context, eventID string) (ClaimState, error) {
	key, err := g.key(eventID)
	if err != nil {
		return 0, err
	}
	acquired, err := g.store.SetNX(ctx, key, markProcessing, claimTTL)
	if err != nil {
		return 0, fmt.Errorf("claim event: %w", err)
	}
	if acquired {
		return ClaimAcquired, nil
	}
	mark, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, goredis.Nil):
		// released between SetNX and Get; let the processor redeliver
		return ClaimInFlight, nil
	case err != nil:
		return 0, fmt.Errorf("read event mark: %w", err)
	case mark == markDone:
		return ClaimDone, nil
	default:
		return ClaimInFlight, nil
	}
}

// Complete marks eventID finished so later deliveries are acknowledged without work.
func (g *EventGuard) Complete(ctx context.Context, eventID string) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	return g.store.Set(ctx, key, markDone, g.ttl)
}

// Release forgets eventID so a redelivery is processed again.
func (g *EventGuard) Release(ctx context.Context, eventID string) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *EventGuard) key(eventID string) (string, error) {
	if eventID == "" {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey(g.scope, eventID), nil
}
