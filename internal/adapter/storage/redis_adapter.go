package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	orderNumberKeyPrefix = "orderno:"
	orderNumberTTL       = 24 * time.Hour
)

// RedisAdapter reserves freshly generated order numbers so two concurrent
// orders never race for the same one. MySQL's unique constraint remains the
// durable backstop; this reservation makes the conflict visible before the
// order row is built.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) ReserveOrderNumber(ctx context.Context, number string) (bool, error) {
	ok, err := r.client.SetNX(ctx, orderNumberKeyPrefix+number, 1, orderNumberTTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (r *RedisAdapter) ReleaseOrderNumber(ctx context.Context, number string) error {
	return r.client.Del(ctx, orderNumberKeyPrefix+number).Err()
}
