package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/archivemint-backend/pkg/config"
)

func TestSlidingWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	client := &Client{store: mock, now: func() time.Time { return now }}

	for i := 1; i <= 2; i++ {
		allowed, count, err := client.SlidingWindowAllow(ctx, "uploads:user-1", 2, time.Hour)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !allowed || count != int64(i) {
			t.Fatalf("call %d: allowed=%v count=%d", i, allowed, count)
		}
		now = now.Add(10 * time.Minute)
	}

	allowed, count, err := client.SlidingWindowAllow(ctx, "uploads:user-1", 2, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Fatalf("expected third call inside the window to be denied")
	}
	if count != 2 {
		t.Fatalf("denied event must be withdrawn, window holds %d", count)
	}

	// First event leaves the window after an hour.
	now = now.Add(41 * time.Minute)
	allowed, _, err = client.SlidingWindowAllow(ctx, "uploads:user-1", 2, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Fatalf("expected admission once the oldest event slid out")
	}
}

func TestSlidingWindowScopesAreIndependent(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	if ok, _, _ := client.SlidingWindowAllow(ctx, "uploads:a", 1, time.Hour); !ok {
		t.Fatalf("first scope should be admitted")
	}
	if ok, _, _ := client.SlidingWindowAllow(ctx, "uploads:b", 1, time.Hour); !ok {
		t.Fatalf("second scope should not share the first window")
	}
	if _, _, err := client.SlidingWindowAllow(ctx, "uploads:a", 0, time.Hour); err == nil {
		t.Fatalf("expected error for non-positive limit")
	}
}

func TestSetNXAndDel(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}
	key := client.IdempotencyKey("stripe_webhook", "evt_1")

	ok, err := client.SetNX(ctx, key, "1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first setnx to win: ok=%v err=%v", ok, err)
	}
	ok, _ = client.SetNX(ctx, key, "1", time.Minute)
	if ok {
		t.Fatalf("expected replay to lose")
	}
	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, key); err != redis.Nil {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("scope", "id"); got != "am:idempotency:scope:id" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.RateLimitKey("uploads:u1"); got != "am:rate_limit:uploads:u1" {
		t.Fatalf("unexpected rate limit key %s", got)
	}
	if got := client.LockKey(" cron-worker "); got != "am:lock:cron-worker" {
		t.Fatalf("parts should be trimmed, got %s", got)
	}
	if got := client.LockKey(""); got != "am:lock" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	if _, _, err := client.SlidingWindowAllow(context.Background(), "x", 1, time.Second); err == nil {
		t.Fatalf("expected error without store")
	}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping error without store")
	}
}

type mockCmdable struct {
	data  map[string]string
	zsets map[string]map[string]float64
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data:  make(map[string]string),
		zsets: make(map[string]map[string]float64),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
		delete(m.zsets, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd {
	set := m.zsets[key]
	if set == nil {
		set = make(map[string]float64)
		m.zsets[key] = set
	}
	for _, z := range members {
		set[fmt.Sprint(z.Member)] = z.Score
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (m *mockCmdable) ZCard(ctx context.Context, key string) *redis.IntCmd {
	return redis.NewIntResult(int64(len(m.zsets[key])), nil)
}

func (m *mockCmdable) ZRem(ctx context.Context, key string, members ...any) *redis.IntCmd {
	for _, member := range members {
		delete(m.zsets[key], fmt.Sprint(member))
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

// ZRemRangeByScore only understands the "-inf" to "(max" form used by the client.
func (m *mockCmdable) ZRemRangeByScore(ctx context.Context, key, min, max string) *redis.IntCmd {
	var limit float64
	if _, err := fmt.Sscanf(max, "(%g", &limit); err != nil {
		return redis.NewIntResult(0, err)
	}
	var removed []string
	for member, score := range m.zsets[key] {
		if score < limit {
			removed = append(removed, member)
		}
	}
	for _, member := range removed {
		delete(m.zsets[key], member)
	}
	return redis.NewIntResult(int64(len(removed)), nil)
}

func TestQueueOptUsesURLThenConfigDefaults(t *testing.T) {
	opt, err := QueueOpt(config.RedisConfig{
		URL:         "redis://:hunter2@cache.internal:6380/3",
		DB:          1,
		PoolSize:    12,
		DialTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("queue opt: %v", err)
	}
	if opt.Addr != "cache.internal:6380" || opt.Password != "hunter2" || opt.DB != 3 {
		t.Fatalf("url settings should win, got %+v", opt)
	}
	if opt.PoolSize != 12 || opt.DialTimeout != 2*time.Second {
		t.Fatalf("config defaults should fill the gaps, got %+v", opt)
	}

	if _, err := QueueOpt(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error without url or address")
	}
}
