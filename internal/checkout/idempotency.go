package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCheckoutInProgress = errors.New("checkout with this idempotency key is already in progress")

const pendingMarker = "pending"

// IdempotencyStore remembers which checkout key produced which order.
type IdempotencyStore interface {
	// Claim reserves key for a new checkout and returns "". When key already
	// completed it returns that order id; when another checkout holds it, it
	// fails with ErrCheckoutInProgress.
	Claim(ctx context.Context, key string) (string, error)
	Complete(ctx context.Context, key, orderID string) error
	// Release forgets a claimed key so the same checkout can be retried.
	Release(ctx context.Context, key string) error
}

type RedisIdempotency struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotency(client *redis.Client, ttl time.Duration) *RedisIdempotency {
	return &RedisIdempotency{client: client, ttl: ttl}
}

func (r *RedisIdempotency) Claim(ctx context.Context, key string) (string, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKey(key), pendingMarker, r.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("redis setnx failed: %w", err)
	}
	if ok {
		return "", nil
	}

	value, err := r.client.Get(ctx, idempotencyKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		// expired between the two calls
		return r.Claim(ctx, key)
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	if value == pendingMarker {
		return "", ErrCheckoutInProgress
	}
	return value, nil
}

func (r *RedisIdempotency) Complete(ctx context.Context, key, orderID string) error {
	if err := r.client.Set(ctx, idempotencyKey(key), orderID, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisIdempotency) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, idempotencyKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("checkout:idempotency:%s", key)
}

type MemoryIdempotency struct {
	mu      sync.Mutex
	entries map[string]idempotencyEntry
	ttl     time.Duration
	now     func() time.Time
}

type idempotencyEntry struct {
	orderID   string
	expiresAt time.Time
}

func NewMemoryIdempotency(ttl time.Duration) *MemoryIdempotency {
	return &MemoryIdempotency{
		entries: make(map[string]idempotencyEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryIdempotency) Claim(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[key]; ok && m.now().Before(entry.expiresAt) {
		if entry.orderID == "" {
			return "", ErrCheckoutInProgress
		}
		return entry.orderID, nil
	}
	m.entries[key] = idempotencyEntry{expiresAt: m.now().Add(m.ttl)}
	return "", nil
}

func (m *MemoryIdempotency) Complete(_ context.Context, key, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = idempotencyEntry{orderID: orderID, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
