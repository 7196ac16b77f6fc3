package notifier_test

import (
	"context"
	"encoding/json"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mEsam147/new-Ecommerce-sub000/internal/notifier"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/orders"
)

type captureSender struct {
	sent []notifier.Notification
}

func (c *captureSender) Send(_ context.Context, n notifier.Notification) error {
	c.sent = append(c.sent, n)
	return nil
}

func message(t *testing.T, eventType string, payload any) kafkago.Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	env, err := json.Marshal(orders.Envelope{
		EventID:   "evt-1",
		EventType: eventType,
		Payload:   raw,
	})
	require.NoError(t, err)
	return kafkago.Message{Value: env}
}

func TestHandleOrderCreated(t *testing.T) {
	sender := &captureSender{}
	svc := &notifier.Service{Sender: sender, Logger: zap.NewNop()}

	m := message(t, orders.EventOrderCreated, orders.OrderCreatedPayload{
		OrderID:  "o-1",
		UserID:   "u-1",
		Total:    "221.50",
		Currency: "USD",
	})

	require.NoError(t, svc.HandleOrderCreated(context.Background(), m))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "u-1", sender.sent[0].UserID)
	assert.Equal(t, "o-1", sender.sent[0].OrderID)
	assert.Contains(t, sender.sent[0].Body, "221.50 USD")
}

func TestHandleStatusUpdated(t *testing.T) {
	sender := &captureSender{}
	svc := &notifier.Service{Sender: sender, Logger: zap.NewNop()}

	m := message(t, orders.EventOrderStatusUpdated, orders.OrderStatusPayload{
		OrderID: "o-1",
		UserID:  "u-1",
		Status:  orders.StatusShipped,
	})

	require.NoError(t, svc.HandleStatusUpdated(context.Background(), m))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Order shipped", sender.sent[0].Subject)
}

func TestHandleStatusUpdated_InternalStatusIsSilent(t *testing.T) {
	sender := &captureSender{}
	svc := &notifier.Service{Sender: sender, Logger: zap.NewNop()}

	m := message(t, orders.EventOrderStatusUpdated, orders.OrderStatusPayload{
		OrderID: "o-1",
		UserID:  "u-1",
		Status:  orders.StatusReadyForShipment,
	})

	require.NoError(t, svc.HandleStatusUpdated(context.Background(), m))
	assert.Empty(t, sender.sent)
}

func TestPoisonMessageIsSwallowed(t *testing.T) {
	sender := &captureSender{}
	svc := &notifier.Service{Sender: sender, Logger: zap.NewNop()}

	err := svc.HandleOrderCreated(context.Background(), kafkago.Message{Value: []byte("not json")})

	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}
