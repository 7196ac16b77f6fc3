package redisx

import "time"

const (
	// Dedup of gateway webhook events: webhook:event:{event_id}
	KeyWebhookEvent = "webhook:event:%s"

	// Cache of order status for reads: order_status:{order_id}
	KeyOrderStatus = "order_status:%s"
)

var (
	// TTLWebhookDedup bounds the idempotency cache; events older than this
	// fall back to natural-key lookups in the database.
	TTLWebhookDedup = 48 * time.Hour

	TTLStatusCache = 5 * time.Minute
)
