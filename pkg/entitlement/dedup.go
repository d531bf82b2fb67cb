package entitlement

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper tracks provider event ids so redelivered webhooks can be skipped
// cheaply. An event id is marked only after its transition was applied; a
// failed apply leaves the id unmarked so the provider's redelivery is
// processed, not swallowed. Deduplication is best-effort: transitions are
// idempotent assignments, so a dedup miss is harmless.
type Deduper interface {
	// Seen reports whether the event id was already applied.
	Seen(ctx context.Context, eventID string) (bool, error)
	// Mark records the event id as applied.
	Mark(ctx context.Context, eventID string) error
}

// RedisDeduper marks event ids in Redis with a TTL, surviving restarts and
// shared across replicas.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a Deduper on the given client. Events older than
// ttl may be reprocessed; that is safe because transitions are idempotent.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, dedupKey(eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisDeduper) Mark(ctx context.Context, eventID string) error {
	return d.client.Set(ctx, dedupKey(eventID), 1, d.ttl).Err()
}

func dedupKey(eventID string) string {
	return "webhook:event:" + eventID
}

// MemoryDeduper is a process-local Deduper for tests and single-instance
// deployments.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]struct{})}
}

func (d *MemoryDeduper) Seen(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[eventID]
	return ok, nil
}

func (d *MemoryDeduper) Mark(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[eventID] = struct{}{}
	return nil
}
