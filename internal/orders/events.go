package orders

import (
	"encoding/json"
	"time"
)

// Post-commit notification events. The API publishes these after the
// checkout or status transaction commits; the notifier process consumes
// them. Their delivery is best-effort and never rolls back an order.

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusUpdated = "OrderStatusUpdated"
)

const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusUpdated = "order.status.updated"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID   string `json:"order_id"`
	UserID    string `json:"user_id"`
	Total     string `json:"total"`
	Currency  string `json:"currency"`
	ItemCount int    `json:"item_count"`
}

type OrderStatusPayload struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Status  Status `json:"status"`
	Note    string `json:"note,omitempty"`
}

// PartitionKey keeps all events of one order on one partition, preserving
// per-order ordering.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
