package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"velora-scenario-service/internal/app"
)

// QuotaStore counts anonymous submissions per device with a plain Redis counter.
// The key never expires.
type QuotaStore struct {
	client   *redis.Client
	deviceID string
}

func NewQuotaStore(client *redis.Client, deviceID string) *QuotaStore {
	return &QuotaStore{client: client, deviceID: deviceID}
}

// QuotaFactory builds per-device counters sharing one client.
func QuotaFactory(client *redis.Client) app.QuotaFactory {
	return func(deviceID string) app.QuotaStore {
		return NewQuotaStore(client, deviceID)
	}
}

func (q *QuotaStore) Count(ctx context.Context) (int, error) {
	n, err := q.client.Get(ctx, q.key()).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// IncrementAndRead is atomic across processes sharing the Redis instance.
func (q *QuotaStore) IncrementAndRead(ctx context.Context) (int, error) {
	n, err := q.client.Incr(ctx, q.key()).Result()
	return int(n), err
}

func (q *QuotaStore) key() string {
	return "velora_anon_count:" + q.deviceID
}
