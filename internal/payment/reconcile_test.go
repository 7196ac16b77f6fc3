package payment_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mEsam147/new-Ecommerce-sub000/internal/errs"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/inventory"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/orders"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/payment"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type MockOrderStore struct{ mock.Mock }

func (m *MockOrderStore) ByIntentID(ctx context.Context, intentID string) (*orders.Order, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orders.Order), args.Error(1)
}

func (m *MockOrderStore) BySessionID(ctx context.Context, sessionID string) (*orders.Order, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orders.Order), args.Error(1)
}

func (m *MockOrderStore) Create(ctx context.Context, o *orders.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockOrderStore) SaveStatus(ctx context.Context, o *orders.Order, entries []orders.HistoryEntry) error {
	return m.Called(ctx, o, entries).Error(0)
}

func (m *MockOrderStore) SavePaymentStatus(ctx context.Context, orderID string, status orders.PaymentStatus) error {
	return m.Called(ctx, orderID, status).Error(0)
}

func (m *MockOrderStore) AddRefund(ctx context.Context, orderID string, r orders.Refund) error {
	return m.Called(ctx, orderID, r).Error(0)
}

func (m *MockOrderStore) HasRefundFromGateway(ctx context.Context, orderID, gatewayRefundID string) (bool, error) {
	args := m.Called(ctx, orderID, gatewayRefundID)
	return args.Bool(0), args.Error(1)
}

type MockFulfiller struct{ mock.Mock }

func (m *MockFulfiller) Fulfill(ctx context.Context, lines []inventory.Line) error {
	return m.Called(ctx, lines).Error(0)
}

type MockDeduper struct{ mock.Mock }

func (m *MockDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDeduper) Mark(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

type passTx struct{}

func (passTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newReconciler(store *MockOrderStore, inv *MockFulfiller, dd *MockDeduper) *payment.Reconciler {
	return payment.NewReconciler(store, inv, passTx{}, dd, zap.NewNop())
}

func pendingCardOrder() *orders.Order {
	return &orders.Order{
		ID:     "o-1",
		UserID: "u-1",
		Status: orders.StatusPending,
		Items:  []orders.Item{{ProductID: "p-1", Size: "M", Color: "black", Quantity: 2}},
		Pricing: orders.Pricing{
			Total:    d("221.50"),
			Currency: "USD",
		},
		Payment: orders.Payment{
			Method:   orders.PaymentCard,
			Status:   orders.PaymentPending,
			IntentID: "pi_1",
		},
	}
}

func TestHandle_PaymentSucceededConfirmsAndFulfills(t *testing.T) {
	store := new(MockOrderStore)
	inv := new(MockFulfiller)
	dd := new(MockDeduper)
	rec := newReconciler(store, inv, dd)

	o := pendingCardOrder()
	dd.On("Seen", mock.Anything, "evt_1").Return(false, nil).Once()
	store.On("ByIntentID", mock.Anything, "pi_1").Return(o, nil).Once()
	inv.On("Fulfill", mock.Anything, []inventory.Line{{ProductID: "p-1", Size: "M", Color: "black", Quantity: 2}}).Return(nil).Once()
	store.On("SaveStatus", mock.Anything, o, mock.Anything).Return(nil).Once()
	dd.On("Mark", mock.Anything, "evt_1").Return(nil).Once()

	err := rec.Handle(context.Background(), &payment.Event{
		ID:   "evt_1",
		Type: payment.EventPaymentSucceeded,
		Data: payment.EventData{IntentID: "pi_1"},
	})

	require.NoError(t, err)
	assert.Equal(t, orders.StatusConfirmed, o.Status)
	assert.Equal(t, orders.PaymentCompleted, o.Payment.Status)
	store.AssertExpectations(t)
	inv.AssertExpectations(t)
	dd.AssertExpectations(t)
}

func TestHandle_SecondDeliveryFulfillsOnce(t *testing.T) {
	// the dedup cache missed but the payment is already completed, so the
	// natural-key guard prevents a second depletion
	store := new(MockOrderStore)
	inv := new(MockFulfiller)
	dd := new(MockDeduper)
	rec := newReconciler(store, inv, dd)

	o := pendingCardOrder()
	o.Status = orders.StatusConfirmed
	o.Payment.Status = orders.PaymentCompleted

	dd.On("Seen", mock.Anything, "evt_2").Return(false, nil).Once()
	store.On("ByIntentID", mock.Anything, "pi_1").Return(o, nil).Once()
	dd.On("Mark", mock.Anything, "evt_2").Return(nil).Once()

	err := rec.Handle(context.Background(), &payment.Event{
		ID:   "evt_2",
		Type: payment.EventPaymentSucceeded,
		Data: payment.EventData{IntentID: "pi_1"},
	})

	require.NoError(t, err)
	inv.AssertNotCalled(t, "Fulfill")
	store.AssertNotCalled(t, "SaveStatus")
}

func TestHandle_DedupCacheShortCircuits(t *testing.T) {
	store := new(MockOrderStore)
	inv := new(MockFulfiller)
	dd := new(MockDeduper)
	rec := newReconciler(store, inv, dd)

	dd.On("Seen", mock.Anything, "evt_1").Return(true, nil).Once()

	err := rec.Handle(context.Background(), &payment.Event{
		ID:   "evt_1",
		Type: payment.EventPaymentSucceeded,
		Data: payment.EventData{IntentID: "pi_1"},
	})

	require.NoError(t, err)
	store.AssertNotCalled(t, "ByIntentID")
	dd.AssertNotCalled(t, "Mark")
}

func TestHandle_SessionCompletedRoutesThroughSession(t *testing.T) {
	store := new(MockOrderStore)
	inv := new(MockFulfiller)
	dd := new(MockDeduper)
	rec := newReconciler(store, inv, dd)

	o := pendingCardOrder()
	o.Payment.SessionID = "cs_1"

	dd.On("Seen", mock.Anything, "evt_1").Return(false, nil).Once()
	store.On("BySessionID", mock.Anything, "cs_1").Return(o, nil).Once()
	inv.On("Fulfill", mock.Anything, mock.Anything).Return(nil).Once()
	store.On("SaveStatus", mock.Anything, o, mock.Anything).Return(nil).Once()
	dd.On("Mark", mock.Anything, "evt_1").Return(nil).Once()

	err := rec.Handle(context.Background(), &payment.Event{
		ID:   "evt_1",
		Type: payment.EventSessionCompleted,
		Data: payment.EventData{SessionID: "cs_1"},
	})

	require.NoError(t, err)
	assert.Equal(t, orders.PaymentCompleted, o.Payment.Status)
}

func TestHandle_SessionCompletedSynthesizesUnknownOrder(t *testing.T) {
	store := new(MockOrderStore)
	inv := new(MockFulfiller)
	dd := new(MockDeduper)
	rec := newReconciler(store, inv, dd)

	dd.On("Seen", mock.Anything, "evt_1").Return(false, nil).Once()
	store.On("BySessionID", mock.Anything, "cs_9").Return(nil, errs.NotFound("order not found")).Once()
	store.On("Create", mock.Anything, mock.MatchedBy(func(o *orders.Order) bool {
		return o.Status == orders.StatusConfirmed &&
			o.Payment.Status == orders.PaymentCompleted &&
			o.Payment.SessionID == "cs_9" &&
			o.UserID == "u-7" &&
			o.Pricing.Total.Equal(d("49.99"))
	})).Return(nil).Once()
	dd.On("Mark", mock.Anything, "evt_1").Return(nil).Once()

	err := rec.Handle(context.Background(), &payment.Event{
		ID:   "evt_1",
		Type: payment.EventSessionCompleted,
		Data: payment.EventData{
			SessionID: "cs_9",
			Amount:    d("49.99"),
			Metadata:  payment.IntentMetadata{UserID: "u-7"},
		},
	})

	require.NoError(t, err)
	store.AssertExpectations(t)
	inv.AssertNotCalled(t, "Fulfill")
}

func TestHandle_PaymentFailedMarksFailed(t *testing.T) {
	store := new(MockOrderStore)
	inv := new(MockFulfiller)
	dd := new(MockDeduper)
	rec := newReconciler(store, inv, dd)

	o := pendingCardOrder()
	dd.On("Seen", mock.Anything, "evt_1").Return(false, nil).Once()
	store.On("ByIntentID", mock.Anything, "pi_1").Return(o, nil).Once()
	store.On("SavePaymentStatus", mock.Anything, "o-1", orders.PaymentFailed).Return(nil).Once()
	dd.On("Mark", mock.Anything, "evt_1").Return(nil).Once()

	err := rec.Handle(context.Background(), &payment.Event{
		ID:   "evt_1",
		Type: payment.EventPaymentFailed,
		Data: payment.EventData{IntentID: "pi_1", Reason: "card_declined"},
	})

	require.NoError(t, err)
	inv.AssertNotCalled(t, "Fulfill")
	store.AssertExpectations(t)
}

func TestHandle_PaymentFailedAfterCancelIsNoop(t *testing.T) {
	// the buyer cancelled while the charge was in flight; the late failure
	// event must not disturb the cancelled order
	store := new(MockOrderStore)
	inv := new(MockFulfiller)
	dd := new(MockDeduper)
	rec := newReconciler(store, inv, dd)

	o := pendingCardOrder()
	o.Status = orders.StatusCancelled

	dd.On("Seen", mock.Anything, "evt_1").Return(false, nil).Once()
	store.On("ByIntentID", mock.Anything, "pi_1").Return(o, nil).Once()
	dd.On("Mark", mock.Anything, "evt_1").Return(nil).Once()

	err := rec.Handle(context.Background(), &payment.Event{
		ID:   "evt_1",
		Type: payment.EventPaymentFailed,
		Data: payment.EventData{IntentID: "pi_1", Reason: "card_declined"},
	})

	require.NoError(t, err)
	store.AssertNotCalled(t, "SavePaymentStatus")
}

func TestHandle_ChargeRefundedAppendsLedger(t *testing.T) {
	store := new(MockOrderStore)
	inv := new(MockFulfiller)
	dd := new(MockDeduper)
	rec := newReconciler(store, inv, dd)

	o := pendingCardOrder()
	o.Status = orders.StatusDelivered
	o.Payment.Status = orders.PaymentCompleted

	dd.On("Seen", mock.Anything, "evt_1").Return(false, nil).Once()
	store.On("ByIntentID", mock.Anything, "pi_1").Return(o, nil).Once()
	store.On("HasRefundFromGateway", mock.Anything, "o-1", "re_1").Return(false, nil).Once()
	store.On("AddRefund", mock.Anything, "o-1", mock.MatchedBy(func(r orders.Refund) bool {
		return r.GatewayRefundID == "re_1" && r.Amount.Equal(d("50"))
	})).Return(nil).Once()
	store.On("SavePaymentStatus", mock.Anything, "o-1", orders.PaymentPartiallyRefunded).Return(nil).Once()
	dd.On("Mark", mock.Anything, "evt_1").Return(nil).Once()

	err := rec.Handle(context.Background(), &payment.Event{
		ID:   "evt_1",
		Type: payment.EventChargeRefunded,
		Data: payment.EventData{IntentID: "pi_1", RefundID: "re_1", Amount: d("50"), Reason: "requested_by_customer"},
	})

	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestHandle_ChargeRefundedKnownRefundIsNoop(t *testing.T) {
	store := new(MockOrderStore)
	inv := new(MockFulfiller)
	dd := new(MockDeduper)
	rec := newReconciler(store, inv, dd)

	o := pendingCardOrder()
	o.Payment.Status = orders.PaymentCompleted

	dd.On("Seen", mock.Anything, "evt_1").Return(false, nil).Once()
	store.On("ByIntentID", mock.Anything, "pi_1").Return(o, nil).Once()
	store.On("HasRefundFromGateway", mock.Anything, "o-1", "re_1").Return(true, nil).Once()
	dd.On("Mark", mock.Anything, "evt_1").Return(nil).Once()

	err := rec.Handle(context.Background(), &payment.Event{
		ID:   "evt_1",
		Type: payment.EventChargeRefunded,
		Data: payment.EventData{IntentID: "pi_1", RefundID: "re_1", Amount: d("50")},
	})

	require.NoError(t, err)
	store.AssertNotCalled(t, "AddRefund")
	inv.AssertNotCalled(t, "Fulfill")
}

func TestHandle_UnknownEventTypeIgnored(t *testing.T) {
	store := new(MockOrderStore)
	inv := new(MockFulfiller)
	dd := new(MockDeduper)
	rec := newReconciler(store, inv, dd)

	dd.On("Seen", mock.Anything, "evt_1").Return(false, nil).Once()
	dd.On("Mark", mock.Anything, "evt_1").Return(nil).Maybe()

	err := rec.Handle(context.Background(), &payment.Event{ID: "evt_1", Type: "customer.updated"})

	require.NoError(t, err)
	store.AssertNotCalled(t, "ByIntentID")
}

func TestHandle_ApplyFailureSkipsDedupMark(t *testing.T) {
	store := new(MockOrderStore)
	inv := new(MockFulfiller)
	dd := new(MockDeduper)
	rec := newReconciler(store, inv, dd)

	dd.On("Seen", mock.Anything, "evt_1").Return(false, nil).Once()
	store.On("ByIntentID", mock.Anything, "pi_1").Return(nil, assert.AnError).Once()

	err := rec.Handle(context.Background(), &payment.Event{
		ID:   "evt_1",
		Type: payment.EventPaymentSucceeded,
		Data: payment.EventData{IntentID: "pi_1"},
	})

	require.Error(t, err)
	dd.AssertNotCalled(t, "Mark")
}
