package orders

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mEsam147/new-Ecommerce-sub000/internal/errs"
)

// Derived predicates are computed over current state on every read and are
// never persisted, so stored and derived truth cannot diverge.

func (o *Order) IsPaid() bool { return o.Payment.Status == PaymentCompleted }

// Fulfilled reports whether inventory was already depleted for this order.
// Depletion happens when the payment completes; a later refund does not put
// the units back by itself.
func (o *Order) Fulfilled() bool {
	switch o.Payment.Status {
	case PaymentCompleted, PaymentRefunded, PaymentPartiallyRefunded:
		return true
	}
	return false
}

func (o *Order) CanBeCancelled() bool {
	switch o.Status {
	case StatusPending, StatusConfirmed, StatusProcessing:
		return true
	}
	return false
}

func (o *Order) CanBeRefunded() bool {
	if !o.IsPaid() {
		return false
	}
	switch o.Status {
	case StatusDelivered, StatusShipped, StatusProcessing:
		return true
	}
	return false
}

// RefundedAmount sums the refund ledger.
func (o *Order) RefundedAmount() decimal.Decimal {
	sum := decimal.Zero
	for _, r := range o.Payment.Refunds {
		sum = sum.Add(r.Amount)
	}
	return sum
}

func (o *Order) RefundableAmount() decimal.Decimal {
	return o.Pricing.Total.Sub(o.RefundedAmount())
}

// UpdateStatus moves the order through the state machine, appending an
// immutable history entry and stamping shipped/delivered timestamps. Callers
// own the side effects the transition implies (inventory release on cancel).
func (o *Order) UpdateStatus(next Status, note, actor string, now time.Time) error {
	if !ValidStatus(next) {
		return errs.Validation(fmt.Sprintf("unknown order status %q", next))
	}
	if !CanTransition(o.Status, next) {
		return errs.Conflict(fmt.Sprintf("cannot move order from %s to %s", o.Status, next))
	}

	o.Status = next
	o.History = append(o.History, HistoryEntry{Status: next, Note: note, Actor: actor, CreatedAt: now})
	o.UpdatedAt = now

	switch next {
	case StatusShipped:
		if o.ShippedAt == nil {
			t := now
			o.ShippedAt = &t
		}
	case StatusDelivered:
		if o.DeliveredAt == nil {
			t := now
			o.DeliveredAt = &t
		}
	}
	return nil
}

// ProcessRefund appends a refund to the ledger. A full refund flips payment
// to refunded and the order itself to refunded; a partial refund only marks
// the payment partially refunded.
func (o *Order) ProcessRefund(amount decimal.Decimal, reason, gatewayRefundID, actor string, now time.Time) (*Refund, error) {
	if !o.CanBeRefunded() {
		return nil, errs.Conflict(fmt.Sprintf("order in status %s with payment %s cannot be refunded", o.Status, o.Payment.Status))
	}
	if !amount.IsPositive() {
		return nil, errs.Validation("refund amount must be positive")
	}
	refundable := o.RefundableAmount()
	if amount.GreaterThan(refundable) {
		return nil, errs.Validation(fmt.Sprintf("refund amount %s exceeds refundable %s", amount.StringFixed(2), refundable.StringFixed(2)))
	}

	r := Refund{
		ID:              uuid.NewString(),
		Amount:          amount.Round(2),
		Reason:          reason,
		GatewayRefundID: gatewayRefundID,
		CreatedAt:       now,
	}
	o.Payment.Refunds = append(o.Payment.Refunds, r)

	if o.RefundedAmount().Equal(o.Pricing.Total) {
		o.Payment.Status = PaymentRefunded
		if err := o.UpdateStatus(StatusRefunded, "full refund: "+reason, actor, now); err != nil {
			return nil, err
		}
	} else {
		o.Payment.Status = PaymentPartiallyRefunded
		o.History = append(o.History, HistoryEntry{
			Status:    o.Status,
			Note:      fmt.Sprintf("partial refund of %s: %s", r.Amount.StringFixed(2), reason),
			Actor:     actor,
			CreatedAt: now,
		})
		o.UpdatedAt = now
	}
	return &r, nil
}
