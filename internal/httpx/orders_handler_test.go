package httpx_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mEsam147/new-Ecommerce-sub000/internal/httpx"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/inventory"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/orders"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/redisx"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, id string) (*orders.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orders.Order), args.Error(1)
}

func (m *MockStore) GetForUpdate(ctx context.Context, id string) (*orders.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orders.Order), args.Error(1)
}

func (m *MockStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*orders.Order, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*orders.Order), args.Error(1)
}

func (m *MockStore) SaveStatus(ctx context.Context, o *orders.Order, newEntries []orders.HistoryEntry) error {
	return m.Called(ctx, o, newEntries).Error(0)
}

func (m *MockStore) AddRefund(ctx context.Context, orderID string, r orders.Refund) error {
	return m.Called(ctx, orderID, r).Error(0)
}

type nopReleaser struct{}

func (nopReleaser) Release(ctx context.Context, lines []inventory.Line) error { return nil }
func (nopReleaser) Restock(ctx context.Context, lines []inventory.Line) error { return nil }

type nopGateway struct{}

func (nopGateway) CreateRefund(ctx context.Context, intentID string, amount decimal.Decimal, reason string) (string, error) {
	return "re_1", nil
}

type passTx struct{}

func (passTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type nopPublisher struct{}

func (nopPublisher) Publish(key, value []byte, headers ...kafkago.Header) {}

// fakeCache is an in-memory stand-in for the redis status cache.
type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string]string{}} }

func (c *fakeCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = string(value)
	return nil
}

func (c *fakeCache) seed(t *testing.T, o *orders.Order) {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"order_id":       o.ID,
		"user_id":        o.UserID,
		"status":         o.Status,
		"payment_status": o.Payment.Status,
		"updated_at":     o.UpdatedAt,
	})
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), fmt.Sprintf(redisx.KeyOrderStatus, o.ID), b, time.Minute))
}

func newHandler(store *MockStore, cache httpx.StatusCache) *httpx.OrdersHandler {
	svc := orders.NewService(store, nopReleaser{}, nopGateway{}, passTx{}, nopPublisher{}, "api-test", zap.NewNop())
	return &httpx.OrdersHandler{
		Orders:   svc,
		Status:   cache,
		Validate: validator.New(),
		Logger:   zap.NewNop(),
	}
}

func shippedOrder() *orders.Order {
	return &orders.Order{
		ID:        "o-1",
		UserID:    "u-1",
		Status:    orders.StatusShipped,
		Payment:   orders.Payment{Status: orders.PaymentCompleted},
		UpdatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func getStatusReq(orderID, uid, role string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/orders/"+orderID+"/status", nil)
	if uid != "" {
		r.Header.Set(httpx.HeaderUserID, uid)
	}
	if role != "" {
		r.Header.Set(httpx.HeaderRole, role)
	}
	return r
}

func TestGetStatus_OwnerServedFromCache(t *testing.T) {
	store := new(MockStore)
	cache := newFakeCache()
	cache.seed(t, shippedOrder())
	router := httpx.NewRouter()
	newHandler(store, cache).Register(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, getStatusReq("o-1", "u-1", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"shipped"`)
	store.AssertNotCalled(t, "Get")
}

func TestGetStatus_AdminServedFromCache(t *testing.T) {
	store := new(MockStore)
	cache := newFakeCache()
	cache.seed(t, shippedOrder())
	router := httpx.NewRouter()
	newHandler(store, cache).Register(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, getStatusReq("o-1", "staff-1", "admin"))

	assert.Equal(t, http.StatusOK, rec.Code)
	store.AssertNotCalled(t, "Get")
}

func TestGetStatus_CacheHitForAnotherUsersOrderIsForbidden(t *testing.T) {
	// a warm cache entry must not leak order status across accounts; the
	// stranger falls through to the service, which rejects them
	store := new(MockStore)
	cache := newFakeCache()
	cache.seed(t, shippedOrder())
	store.On("Get", mock.Anything, "o-1").Return(shippedOrder(), nil).Once()
	router := httpx.NewRouter()
	newHandler(store, cache).Register(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, getStatusReq("o-1", "u-2", ""))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), "shipped")
	store.AssertExpectations(t)
}

func TestGetStatus_MissPopulatesCache(t *testing.T) {
	store := new(MockStore)
	cache := newFakeCache()
	store.On("Get", mock.Anything, "o-1").Return(shippedOrder(), nil).Once()
	router := httpx.NewRouter()
	newHandler(store, cache).Register(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, getStatusReq("o-1", "u-1", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	cached, err := cache.Get(context.Background(), fmt.Sprintf(redisx.KeyOrderStatus, "o-1"))
	require.NoError(t, err)
	assert.Contains(t, cached, `"user_id":"u-1"`)
	store.AssertExpectations(t)
}
