package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mEsam147/new-Ecommerce-sub000/internal/errs"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/inventory"
	kafkax "github.com/mEsam147/new-Ecommerce-sub000/internal/kafka"
)

// Store is the persistence surface the order service needs.
type Store interface {
	Get(ctx context.Context, id string) (*Order, error)
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Order, error)
	SaveStatus(ctx context.Context, o *Order, newEntries []HistoryEntry) error
	AddRefund(ctx context.Context, orderID string, r Refund) error
}

// Releaser reverses inventory accounting when an order is cancelled: Release
// drops holds that are still pending, Restock returns units a completed
// payment already depleted. Using the wrong one corrupts other orders'
// reservations, so callers pick via Order.Fulfilled.
type Releaser interface {
	Release(ctx context.Context, lines []inventory.Line) error
	Restock(ctx context.Context, lines []inventory.Line) error
}

// RefundGateway issues a refund at the payment provider and returns the
// provider's refund id.
type RefundGateway interface {
	CreateRefund(ctx context.Context, intentID string, amount decimal.Decimal, reason string) (string, error)
}

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	store    Store
	inv      Releaser
	gateway  RefundGateway
	tx       TxRunner
	events   Publisher
	producer string
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(store Store, inv Releaser, gateway RefundGateway, tx TxRunner, events Publisher, producer string, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		inv:      inv,
		gateway:  gateway,
		tx:       tx,
		events:   events,
		producer: producer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Get enforces cross-user access control: an order is visible only to its
// owner or an admin.
func (s *Service) Get(ctx context.Context, orderID, requesterID string, admin bool) (*Order, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !admin && o.UserID != requesterID {
		return nil, errs.Authorization("order belongs to another account")
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]*Order, error) {
	return s.store.ListByUser(ctx, userID, limit, offset)
}

// UpdateStatus is the admin transition path. Entering cancelled releases the
// inventory holds within the same transaction.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, next Status, note, actor string) (*Order, error) {
	var out *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.store.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		mark := len(o.History)
		if err := o.UpdateStatus(next, note, actor, s.now()); err != nil {
			return err
		}
		if next == StatusCancelled {
			if err := s.reverseInventory(ctx, o); err != nil {
				return err
			}
		}
		if err := s.store.SaveStatus(ctx, o, o.History[mark:]); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishStatus(out, note)
	return out, nil
}

// Cancel is the customer path. A paid order gets a full gateway refund, but
// the order lands in cancelled, not refunded: the terminal state records why
// it ended, the payment status records where the money went.
func (s *Service) Cancel(ctx context.Context, orderID, requesterID string, admin bool, reason string) (*Order, error) {
	var out *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.store.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !admin && o.UserID != requesterID {
			return errs.Authorization("order belongs to another account")
		}
		if !o.CanBeCancelled() {
			return errs.Conflict("order in status " + string(o.Status) + " cannot be cancelled")
		}

		if err := s.reverseInventory(ctx, o); err != nil {
			return err
		}

		if o.IsPaid() {
			refundID, err := s.gateway.CreateRefund(ctx, o.Payment.IntentID, o.RefundableAmount(), reason)
			if err != nil {
				return errs.Gateway("refund on cancellation failed", err)
			}
			r := Refund{
				ID:              uuid.NewString(),
				Amount:          o.RefundableAmount(),
				Reason:          reason,
				GatewayRefundID: refundID,
				CreatedAt:       s.now(),
			}
			o.Payment.Refunds = append(o.Payment.Refunds, r)
			o.Payment.Status = PaymentRefunded
			if err := s.store.AddRefund(ctx, o.ID, r); err != nil {
				return err
			}
		}

		mark := len(o.History)
		if err := o.UpdateStatus(StatusCancelled, reason, requesterID, s.now()); err != nil {
			return err
		}
		if err := s.store.SaveStatus(ctx, o, o.History[mark:]); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishStatus(out, reason)
	return out, nil
}

// Refund is the admin path for delivered/shipped/processing orders; the
// authoritative refund initiation lives here, never in the webhook.
func (s *Service) Refund(ctx context.Context, orderID string, amount decimal.Decimal, reason, actor string) (*Order, error) {
	var out *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.store.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.CanBeRefunded() {
			return errs.Conflict("order in status " + string(o.Status) + " cannot be refunded")
		}
		if !amount.IsPositive() || amount.GreaterThan(o.RefundableAmount()) {
			return errs.Validation("refund amount must be positive and within the refundable balance")
		}

		refundID, err := s.gateway.CreateRefund(ctx, o.Payment.IntentID, amount, reason)
		if err != nil {
			return errs.Gateway("gateway refund failed", err)
		}

		mark := len(o.History)
		r, err := o.ProcessRefund(amount, reason, refundID, actor, s.now())
		if err != nil {
			return err
		}
		if err := s.store.AddRefund(ctx, o.ID, *r); err != nil {
			return err
		}
		if err := s.store.SaveStatus(ctx, o, o.History[mark:]); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishStatus(out, reason)
	return out, nil
}

func (s *Service) publishStatus(o *Order, note string) {
	if s.events == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderStatusUpdated,
		EventVersion:  1,
		OccurredAt:    s.now(),
		Producer:      s.producer,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(OrderStatusPayload{
			OrderID: o.ID,
			UserID:  o.UserID,
			Status:  o.Status,
			Note:    note,
		}),
	}
	s.events.Publish(PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventOrderStatusUpdated)})
}

// reverseInventory undoes the order's stock accounting on cancellation. A
// fulfilled order has no holds left, only depleted quantity; releasing it
// would eat reservations belonging to other orders.
func (s *Service) reverseInventory(ctx context.Context, o *Order) error {
	if o.Fulfilled() {
		return s.inv.Restock(ctx, releaseLines(o))
	}
	return s.inv.Release(ctx, releaseLines(o))
}

func releaseLines(o *Order) []inventory.Line {
	lines := make([]inventory.Line, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, inventory.Line{
			ProductID: it.ProductID,
			Size:      it.Size,
			Color:     it.Color,
			Quantity:  it.Quantity,
		})
	}
	return lines
}
