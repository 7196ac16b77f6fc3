package orders_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mEsam147/new-Ecommerce-sub000/internal/errs"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/orders"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func paidOrder(status orders.Status) *orders.Order {
	return &orders.Order{
		ID:     "o-1",
		UserID: "u-1",
		Status: status,
		Pricing: orders.Pricing{
			Subtotal: d("200"), Shipping: d("5.5"), Tax: d("16"),
			Discount: decimal.Zero, Total: d("221.5"), Currency: "USD",
		},
		Payment: orders.Payment{Method: orders.PaymentCard, Status: orders.PaymentCompleted, IntentID: "pi_1"},
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to orders.Status
		want     bool
	}{
		{orders.StatusPending, orders.StatusConfirmed, true},
		{orders.StatusConfirmed, orders.StatusProcessing, true},
		{orders.StatusProcessing, orders.StatusReadyForShipment, true},
		{orders.StatusReadyForShipment, orders.StatusShipped, true},
		{orders.StatusShipped, orders.StatusOutForDelivery, true},
		{orders.StatusOutForDelivery, orders.StatusDelivered, true},
		{orders.StatusPending, orders.StatusCancelled, true},
		{orders.StatusOnHold, orders.StatusProcessing, true},
		{orders.StatusDelivered, orders.StatusRefunded, true},
		{orders.StatusDelivered, orders.StatusPending, false},
		{orders.StatusCancelled, orders.StatusConfirmed, false},
		{orders.StatusRefunded, orders.StatusProcessing, false},
		{orders.StatusPending, orders.StatusShipped, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, orders.CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestUpdateStatus_AppendsHistoryAndStamps(t *testing.T) {
	o := paidOrder(orders.StatusReadyForShipment)
	now := time.Now().UTC()

	require.NoError(t, o.UpdateStatus(orders.StatusShipped, "handed to carrier", "admin", now))

	assert.Equal(t, orders.StatusShipped, o.Status)
	require.NotNil(t, o.ShippedAt)
	assert.Equal(t, now, *o.ShippedAt)
	require.Len(t, o.History, 1)
	assert.Equal(t, "handed to carrier", o.History[0].Note)
	assert.Equal(t, "admin", o.History[0].Actor)

	require.NoError(t, o.UpdateStatus(orders.StatusDelivered, "", "carrier", now.Add(time.Hour)))
	require.NotNil(t, o.DeliveredAt)
}

func TestUpdateStatus_RejectsInvalidTransition(t *testing.T) {
	o := paidOrder(orders.StatusDelivered)
	err := o.UpdateStatus(orders.StatusPending, "", "admin", time.Now())

	assert.True(t, errs.Is(err, errs.KindConflict))
	assert.Empty(t, o.History)
}

func TestUpdateStatus_RejectsUnknownStatus(t *testing.T) {
	o := paidOrder(orders.StatusPending)
	err := o.UpdateStatus(orders.Status("lost_in_mail"), "", "admin", time.Now())
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestDerivedPredicates(t *testing.T) {
	o := paidOrder(orders.StatusProcessing)
	assert.True(t, o.IsPaid())
	assert.True(t, o.CanBeCancelled())
	assert.True(t, o.CanBeRefunded())

	o.Payment.Status = orders.PaymentPending
	assert.False(t, o.IsPaid())
	assert.False(t, o.CanBeRefunded())
	assert.True(t, o.CanBeCancelled())

	o = paidOrder(orders.StatusShipped)
	assert.False(t, o.CanBeCancelled())
	assert.True(t, o.CanBeRefunded())
}

func TestProcessRefund_Partial(t *testing.T) {
	o := paidOrder(orders.StatusDelivered)
	now := time.Now().UTC()

	r, err := o.ProcessRefund(d("100"), "damaged item", "re_1", "admin", now)

	require.NoError(t, err)
	assert.True(t, r.Amount.Equal(d("100")))
	assert.Equal(t, orders.PaymentPartiallyRefunded, o.Payment.Status)
	assert.Equal(t, orders.StatusDelivered, o.Status, "partial refund keeps order status")
	assert.True(t, o.RefundedAmount().LessThanOrEqual(o.Pricing.Total))
}

func TestProcessRefund_FullMovesOrderToRefunded(t *testing.T) {
	o := paidOrder(orders.StatusDelivered)
	now := time.Now().UTC()

	_, err := o.ProcessRefund(d("21.5"), "first", "re_1", "admin", now)
	require.NoError(t, err)
	_, err = o.ProcessRefund(d("200"), "rest", "re_2", "admin", now)
	require.NoError(t, err)

	assert.Equal(t, orders.PaymentRefunded, o.Payment.Status)
	assert.Equal(t, orders.StatusRefunded, o.Status)
	assert.True(t, o.RefundedAmount().Equal(o.Pricing.Total))
}

func TestProcessRefund_RejectsOverRefund(t *testing.T) {
	o := paidOrder(orders.StatusDelivered)
	now := time.Now().UTC()

	_, err := o.ProcessRefund(d("200"), "first", "re_1", "admin", now)
	require.NoError(t, err)

	_, err = o.ProcessRefund(d("50"), "too much", "re_2", "admin", now)
	assert.True(t, errs.Is(err, errs.KindValidation))
	assert.True(t, o.RefundedAmount().Equal(d("200")))
}

func TestProcessRefund_RequiresRefundableState(t *testing.T) {
	o := paidOrder(orders.StatusPending)
	_, err := o.ProcessRefund(d("10"), "", "re_1", "admin", time.Now())
	assert.True(t, errs.Is(err, errs.KindConflict))

	o = paidOrder(orders.StatusDelivered)
	o.Payment.Status = orders.PaymentPending
	_, err = o.ProcessRefund(d("10"), "", "re_1", "admin", time.Now())
	assert.True(t, errs.Is(err, errs.KindConflict))
}
