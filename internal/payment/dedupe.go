package payment

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mEsam147/new-Ecommerce-sub000/internal/redisx"
)

// RedisDeduper backs the webhook idempotency cache with TTL-bounded keys,
// so it evicts itself instead of growing without bound.
type RedisDeduper struct {
	Client *redis.Client
}

func (d *RedisDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	return redisx.Exists(ctx, d.Client, fmt.Sprintf(redisx.KeyWebhookEvent, eventID))
}

func (d *RedisDeduper) Mark(ctx context.Context, eventID string) error {
	_, err := redisx.MarkOnce(ctx, d.Client, fmt.Sprintf(redisx.KeyWebhookEvent, eventID), redisx.TTLWebhookDedup)
	return err
}
