package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mEsam147/new-Ecommerce-sub000/internal/errs"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/inventory"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/orders"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/pricing"
)

// OrderStore is the persistence surface reconciliation needs. The lookups by
// gateway natural key take row locks, so concurrent deliveries of related
// events serialize per order.
type OrderStore interface {
	ByIntentID(ctx context.Context, intentID string) (*orders.Order, error)
	BySessionID(ctx context.Context, sessionID string) (*orders.Order, error)
	Create(ctx context.Context, o *orders.Order) error
	SaveStatus(ctx context.Context, o *orders.Order, newEntries []orders.HistoryEntry) error
	SavePaymentStatus(ctx context.Context, orderID string, status orders.PaymentStatus) error
	AddRefund(ctx context.Context, orderID string, r orders.Refund) error
	HasRefundFromGateway(ctx context.Context, orderID, gatewayRefundID string) (bool, error)
}

// Fulfiller converts reservations into depletion on confirmed payment.
type Fulfiller interface {
	Fulfill(ctx context.Context, lines []inventory.Line) error
}

// Deduper remembers recently applied event ids. It is a bounded cache, not
// the source of truth; the natural-key checks below stay authoritative.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Reconciler applies asynchronous gateway events to orders and payments.
// Every handler tolerates at-least-once, out-of-order, concurrent delivery.
type Reconciler struct {
	store  OrderStore
	inv    Fulfiller
	tx     TxRunner
	dedupe Deduper
	logger *zap.Logger
	now    func() time.Time
}

func NewReconciler(store OrderStore, inv Fulfiller, tx TxRunner, dedupe Deduper, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		inv:    inv,
		tx:     tx,
		dedupe: dedupe,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Handle applies one event. A nil return means applied or recognized as a
// duplicate; anything else tells the gateway to redeliver.
func (r *Reconciler) Handle(ctx context.Context, ev *Event) error {
	if r.dedupe != nil {
		seen, err := r.dedupe.Seen(ctx, ev.ID)
		if err != nil {
			r.logger.Warn("dedup cache unavailable, relying on natural keys", zap.Error(err))
		} else if seen {
			r.logger.Debug("duplicate webhook event", zap.String("event_id", ev.ID))
			return nil
		}
	}

	var err error
	switch ev.Type {
	case EventSessionCompleted:
		err = r.tx.WithinTx(ctx, func(ctx context.Context) error { return r.sessionCompleted(ctx, ev) })
	case EventPaymentSucceeded:
		err = r.tx.WithinTx(ctx, func(ctx context.Context) error { return r.paymentSucceeded(ctx, ev) })
	case EventPaymentFailed:
		err = r.tx.WithinTx(ctx, func(ctx context.Context) error { return r.paymentFailed(ctx, ev) })
	case EventChargeRefunded:
		err = r.tx.WithinTx(ctx, func(ctx context.Context) error { return r.chargeRefunded(ctx, ev) })
	default:
		r.logger.Debug("ignoring webhook event", zap.String("type", ev.Type))
		return nil
	}
	if err != nil {
		return err
	}

	if r.dedupe != nil {
		if err := r.dedupe.Mark(ctx, ev.ID); err != nil {
			r.logger.Warn("failed to record event id", zap.Error(err))
		}
	}
	return nil
}

// sessionCompleted confirms the payment for the order tied to the hosted
// checkout session. When no local order exists (the synchronous checkout
// never ran) one is synthesized from the session metadata.
func (r *Reconciler) sessionCompleted(ctx context.Context, ev *Event) error {
	o, err := r.store.BySessionID(ctx, ev.Data.SessionID)
	if errs.Is(err, errs.KindNotFound) {
		return r.synthesize(ctx, ev)
	}
	if err != nil {
		return err
	}
	return r.markPaid(ctx, o, "gateway session completed")
}

func (r *Reconciler) paymentSucceeded(ctx context.Context, ev *Event) error {
	o, err := r.store.ByIntentID(ctx, ev.Data.IntentID)
	if err != nil {
		return err
	}
	return r.markPaid(ctx, o, "gateway payment succeeded")
}

// markPaid moves the payment to completed and fulfills inventory exactly
// once; a second delivery observes the completed payment and no-ops.
func (r *Reconciler) markPaid(ctx context.Context, o *orders.Order, note string) error {
	if o.Payment.Status == orders.PaymentCompleted {
		return nil
	}

	o.Payment.Status = orders.PaymentCompleted
	mark := len(o.History)
	if orders.CanTransition(o.Status, orders.StatusConfirmed) {
		if err := o.UpdateStatus(orders.StatusConfirmed, note, "gateway", r.now()); err != nil {
			return err
		}
	}

	if len(o.Items) > 0 {
		if err := r.inv.Fulfill(ctx, fulfillLines(o)); err != nil {
			return err
		}
	}
	if err := r.store.SaveStatus(ctx, o, o.History[mark:]); err != nil {
		return err
	}
	r.logger.Info("payment reconciled",
		zap.String("order_id", o.ID),
		zap.String("intent_id", o.Payment.IntentID))
	return nil
}

// paymentFailed marks the payment failed and deliberately leaves inventory
// reserved; resolving the hold is a manual decision.
func (r *Reconciler) paymentFailed(ctx context.Context, ev *Event) error {
	o, err := r.store.ByIntentID(ctx, ev.Data.IntentID)
	if err != nil {
		return err
	}
	if o.Status == orders.StatusCancelled {
		return nil
	}
	if o.Payment.Status == orders.PaymentFailed {
		return nil
	}
	if err := r.store.SavePaymentStatus(ctx, o.ID, orders.PaymentFailed); err != nil {
		return err
	}
	r.logger.Warn("payment failed",
		zap.String("order_id", o.ID),
		zap.String("reason", ev.Data.Reason))
	return nil
}

// chargeRefunded only reconciles the local refund ledger against a refund
// the gateway reports; refunds are initiated through the local API.
func (r *Reconciler) chargeRefunded(ctx context.Context, ev *Event) error {
	o, err := r.store.ByIntentID(ctx, ev.Data.IntentID)
	if err != nil {
		return err
	}
	known, err := r.store.HasRefundFromGateway(ctx, o.ID, ev.Data.RefundID)
	if err != nil {
		return err
	}
	if known {
		return nil
	}

	amount := ev.Data.Amount.Round(2)
	if amount.GreaterThan(o.RefundableAmount()) {
		return errs.Conflict(fmt.Sprintf("gateway refund %s exceeds refundable balance", ev.Data.RefundID))
	}
	rec := orders.Refund{
		ID:              uuid.NewString(),
		Amount:          amount,
		Reason:          "gateway reconciliation: " + ev.Data.Reason,
		GatewayRefundID: ev.Data.RefundID,
		CreatedAt:       r.now(),
	}
	o.Payment.Refunds = append(o.Payment.Refunds, rec)
	if err := r.store.AddRefund(ctx, o.ID, rec); err != nil {
		return err
	}

	status := orders.PaymentPartiallyRefunded
	if o.RefundedAmount().Equal(o.Pricing.Total) {
		status = orders.PaymentRefunded
	}
	if err := r.store.SavePaymentStatus(ctx, o.ID, status); err != nil {
		return err
	}
	r.logger.Info("refund reconciled",
		zap.String("order_id", o.ID),
		zap.String("refund_id", ev.Data.RefundID))
	return nil
}

// synthesize creates a minimal order from session metadata, the fallback
// for hosted checkout where no synchronous order exists.
func (r *Reconciler) synthesize(ctx context.Context, ev *Event) error {
	now := r.now()
	currency := ev.Data.Currency
	if currency == "" {
		currency = pricing.Currency
	}
	o := &orders.Order{
		ID:     uuid.NewString(),
		UserID: ev.Data.Metadata.UserID,
		Status: orders.StatusConfirmed,
		Pricing: orders.Pricing{
			Subtotal: ev.Data.Amount.Round(2),
			Total:    ev.Data.Amount.Round(2),
			Currency: currency,
		},
		Payment: orders.Payment{
			Method:    orders.PaymentCard,
			Status:    orders.PaymentCompleted,
			IntentID:  ev.Data.IntentID,
			SessionID: ev.Data.SessionID,
		},
		History: []orders.HistoryEntry{{
			Status:    orders.StatusConfirmed,
			Note:      "synthesized from gateway session " + ev.Data.SessionID,
			Actor:     "gateway",
			CreatedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.Create(ctx, o); err != nil {
		return err
	}
	r.logger.Info("order synthesized from gateway session",
		zap.String("order_id", o.ID),
		zap.String("session_id", ev.Data.SessionID))
	return nil
}

func fulfillLines(o *orders.Order) []inventory.Line {
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
