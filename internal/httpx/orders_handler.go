package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mEsam147/new-Ecommerce-sub000/internal/checkout"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/errs"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/orders"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/pricing"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/redisx"
)

// StatusCache backs the hot status read path. Production wires *redisx.Cache.
type StatusCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type OrdersHandler struct {
	Checkout *checkout.Orchestrator
	Orders   *orders.Service
	Status   StatusCache
	Validate *validator.Validate
	Logger   *zap.Logger
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.create)
	r.Get("/orders", h.list)
	r.Get("/orders/{id}", h.get)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Put("/orders/{id}/status", h.updateStatus)
	r.Put("/orders/{id}/cancel", h.cancel)
	r.Post("/orders/{id}/refund", h.refund)
}

type checkoutReq struct {
	ShippingAddress orders.Address `json:"shipping_address" validate:"required"`
	BillingAddress  orders.Address `json:"billing_address"`
	PaymentMethod   string         `json:"payment_method" validate:"required,oneof=card cash_on_delivery"`
	ShippingMethod  string         `json:"shipping_method" validate:"required,oneof=standard express overnight free"`
	CouponCode      string         `json:"coupon_code"`
}

type checkoutResp struct {
	Order        orderView `json:"order"`
	ClientSecret string    `json:"client_secret,omitempty"`
	Warnings     []string  `json:"warnings,omitempty"`
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, errs.Authorization("missing caller identity"))
		return
	}
	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Validation("invalid json"))
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeError(w, errs.Validation(err.Error()))
		return
	}
	billing := req.BillingAddress
	if billing == (orders.Address{}) {
		billing = req.ShippingAddress
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.Checkout.Checkout(ctx, checkout.Input{
		UserID:          uid,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  billing,
		PaymentMethod:   orders.PaymentMethod(req.PaymentMethod),
		ShippingMethod:  pricing.ShippingMethod(req.ShippingMethod),
		CouponCode:      req.CouponCode,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.cacheStatus(ctx, res.Order)
	writeJSON(w, http.StatusCreated, checkoutResp{
		Order:        toOrderView(res.Order),
		ClientSecret: res.ClientSecret,
		Warnings:     res.Warnings,
	})
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, errs.Authorization("missing caller identity"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Orders.List(ctx, uid, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]orderView, 0, len(list))
	for _, o := range list {
		views = append(views, toOrderView(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": views})
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.Get(ctx, chi.URLParam(r, "id"), userID(r), isAdmin(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(o))
}

// getStatus is the hot read. It serves from the redis cache when possible and
// repopulates it from the database on a miss. A cached entry is served only to
// the order's owner or an admin; any other caller falls through to Orders.Get,
// which enforces ownership.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if h.Status != nil {
		if s, err := h.Status.Get(ctx, key); err == nil && s != "" {
			var cached statusView
			if json.Unmarshal([]byte(s), &cached) == nil &&
				cached.UserID != "" && (isAdmin(r) || cached.UserID == userID(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(s))
				return
			}
		}
	}

	o, err := h.Orders.Get(ctx, orderID, userID(r), isAdmin(r))
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, statusBody(o))
}

type statusReq struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		writeError(w, errs.Authorization("admin only"))
		return
	}
	var req statusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Validation("invalid json"))
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeError(w, errs.Validation(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.UpdateStatus(ctx, chi.URLParam(r, "id"), orders.Status(req.Status), req.Note, userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, toOrderView(o))
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, errs.Authorization("missing caller identity"))
		return
	}
	var req cancelReq
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, err := h.Orders.Cancel(ctx, chi.URLParam(r, "id"), uid, isAdmin(r), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, toOrderView(o))
}

type refundReq struct {
	Amount string `json:"amount" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

func (h *OrdersHandler) refund(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		writeError(w, errs.Authorization("admin only"))
		return
	}
	var req refundReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Validation("invalid json"))
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeError(w, errs.Validation(err.Error()))
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, errs.Validation("amount must be a decimal string"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, err := h.Orders.Refund(ctx, chi.URLParam(r, "id"), amount, req.Reason, userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, toOrderView(o))
}

// cacheStatus refreshes the status read cache after any write; on failure the
// next read falls through to the database.
func (h *OrdersHandler) cacheStatus(ctx context.Context, o *orders.Order) {
	if h.Status == nil {
		return
	}
	b, err := json.Marshal(statusBody(o))
	if err != nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	if err := h.Status.Set(ctx, key, b, redisx.TTLStatusCache); err != nil {
		h.Logger.Warn("status cache write failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

// statusView carries user_id so cache hits can be checked against the caller.
type statusView struct {
	OrderID       string               `json:"order_id"`
	UserID        string               `json:"user_id"`
	Status        orders.Status        `json:"status"`
	PaymentStatus orders.PaymentStatus `json:"payment_status"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func statusBody(o *orders.Order) statusView {
	return statusView{
		OrderID:       o.ID,
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentStatus: o.Payment.Status,
		UpdatedAt:     o.UpdatedAt,
	}
}
