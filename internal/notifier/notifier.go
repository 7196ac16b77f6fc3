package notifier

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/mEsam147/new-Ecommerce-sub000/internal/kafka"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/orders"
)

// Notification is one message destined for a customer channel.
type Notification struct {
	UserID  string
	OrderID string
	Subject string
	Body    string
}

// Sender delivers notifications. Production wires email or push; the default
// is the log-backed sender.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender writes notifications to the structured log. It stands in until a
// real channel is configured and is handy in development.
type LogSender struct {
	Logger *zap.Logger
}

func (s *LogSender) Send(_ context.Context, n Notification) error {
	s.Logger.Info("notification",
		zap.String("user_id", n.UserID),
		zap.String("order_id", n.OrderID),
		zap.String("subject", n.Subject),
		zap.String("body", n.Body))
	return nil
}

// Service turns order events into notifications. Handlers return nil on
// undecodable messages so poison pills do not wedge the partition.
type Service struct {
	Sender Sender
	Logger *zap.Logger
}

func (s *Service) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	env, ok := s.decode(m)
	if !ok {
		return nil
	}
	p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	if err != nil {
		s.Logger.Warn("undecodable order.created payload",
			zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	return s.Sender.Send(ctx, Notification{
		UserID:  p.UserID,
		OrderID: p.OrderID,
		Subject: "Order received",
		Body:    "We received your order for " + p.Total + " " + p.Currency + ". We'll let you know when it ships.",
	})
}

func (s *Service) HandleStatusUpdated(ctx context.Context, m kafkago.Message) error {
	env, ok := s.decode(m)
	if !ok {
		return nil
	}
	p, err := kafkax.UnwrapPayload[orders.OrderStatusPayload](env.Payload)
	if err != nil {
		s.Logger.Warn("undecodable order.status.updated payload",
			zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	subject, body, notify := statusMessage(p.Status)
	if !notify {
		return nil
	}
	return s.Sender.Send(ctx, Notification{
		UserID:  p.UserID,
		OrderID: p.OrderID,
		Subject: subject,
		Body:    body,
	})
}

func (s *Service) decode(m kafkago.Message) (orders.Envelope, bool) {
	env, err := kafkax.UnwrapPayload[orders.Envelope](m.Value)
	if err != nil {
		s.Logger.Warn("undecodable event envelope", zap.Error(err))
		return orders.Envelope{}, false
	}
	return env, true
}

// statusMessage maps customer-visible transitions to copy. Internal statuses
// produce no notification.
func statusMessage(st orders.Status) (subject, body string, notify bool) {
	switch st {
	case orders.StatusConfirmed:
		return "Payment confirmed", "Your payment went through and your order is confirmed.", true
	case orders.StatusShipped:
		return "Order shipped", "Your order is on its way.", true
	case orders.StatusOutForDelivery:
		return "Out for delivery", "Your order is out for delivery today.", true
	case orders.StatusDelivered:
		return "Order delivered", "Your order was delivered. Enjoy!", true
	case orders.StatusCancelled:
		return "Order cancelled", "Your order was cancelled. Any payment will be refunded.", true
	case orders.StatusRefunded:
		return "Refund issued", "Your refund has been issued to the original payment method.", true
	default:
		return "", "", false
	}
}
