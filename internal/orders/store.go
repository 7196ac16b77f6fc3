package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mEsam147/new-Ecommerce-sub000/internal/errs"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/postgres"
)

type PGStore struct{ Pool *pgxpool.Pool }

func NewPGStore(pool *pgxpool.Pool) *PGStore { return &PGStore{Pool: pool} }

const orderColumns = `
	id, user_id, coupon_code, status,
	subtotal, shipping_cost, tax, discount, total, currency,
	payment_method, payment_status, payment_intent_id, gateway_session_id,
	shipping_method, shipping_address, billing_address, tracking,
	fraud_score, fraud_status,
	shipped_at, delivered_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var shipAddr, billAddr []byte
	err := row.Scan(
		&o.ID, &o.UserID, &o.CouponCode, &o.Status,
		&o.Pricing.Subtotal, &o.Pricing.Shipping, &o.Pricing.Tax, &o.Pricing.Discount, &o.Pricing.Total, &o.Pricing.Currency,
		&o.Payment.Method, &o.Payment.Status, &o.Payment.IntentID, &o.Payment.SessionID,
		&o.Shipping.Method, &shipAddr, &billAddr, &o.Shipping.Tracking,
		&o.Fraud.Score, &o.Fraud.Status,
		&o.ShippedAt, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(shipAddr) > 0 {
		if err := json.Unmarshal(shipAddr, &o.Shipping.Address); err != nil {
			return nil, fmt.Errorf("decode shipping address: %w", err)
		}
	}
	if len(billAddr) > 0 {
		if err := json.Unmarshal(billAddr, &o.Billing.Address); err != nil {
			return nil, fmt.Errorf("decode billing address: %w", err)
		}
	}
	return &o, nil
}

// Create persists the aggregate: order row, item snapshots, and the initial
// history entry. Meant to run inside the checkout transaction.
func (s *PGStore) Create(ctx context.Context, o *Order) error {
	q := postgres.FromContext(ctx, s.Pool)

	shipAddr, err := json.Marshal(o.Shipping.Address)
	if err != nil {
		return fmt.Errorf("encode shipping address: %w", err)
	}
	billAddr, err := json.Marshal(o.Billing.Address)
	if err != nil {
		return fmt.Errorf("encode billing address: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO orders(
			id, user_id, coupon_code, status,
			subtotal, shipping_cost, tax, discount, total, currency,
			payment_method, payment_status, payment_intent_id, gateway_session_id,
			shipping_method, shipping_address, billing_address, tracking,
			fraud_score, fraud_status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		o.ID, o.UserID, o.CouponCode, o.Status,
		o.Pricing.Subtotal, o.Pricing.Shipping, o.Pricing.Tax, o.Pricing.Discount, o.Pricing.Total, o.Pricing.Currency,
		o.Payment.Method, o.Payment.Status, o.Payment.IntentID, o.Payment.SessionID,
		o.Shipping.Method, shipAddr, billAddr, o.Shipping.Tracking,
		o.Fraud.Score, o.Fraud.Status, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range o.Items {
		_, err = q.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, name, image_url, size, color, unit_price, quantity, line_total)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			o.ID, it.ProductID, it.Name, it.ImageURL, it.Size, it.Color, it.UnitPrice, it.Quantity, it.LineTotal)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	for _, h := range o.History {
		if err := s.insertHistory(ctx, o.ID, h); err != nil {
			return err
		}
	}
	return nil
}

func (s *PGStore) insertHistory(ctx context.Context, orderID string, h HistoryEntry) error {
	q := postgres.FromContext(ctx, s.Pool)
	_, err := q.Exec(ctx, `
		INSERT INTO order_status_history(order_id, status, note, actor, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		orderID, h.Status, h.Note, h.Actor, h.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id string) (*Order, error) {
	return s.getWhere(ctx, `id = $1`, id, false)
}

// GetForUpdate takes a row lock so a refund and a cancellation racing on the
// same order serialize. Only meaningful inside a transaction.
func (s *PGStore) GetForUpdate(ctx context.Context, id string) (*Order, error) {
	return s.getWhere(ctx, `id = $1`, id, true)
}

func (s *PGStore) ByIntentID(ctx context.Context, intentID string) (*Order, error) {
	return s.getWhere(ctx, `payment_intent_id = $1`, intentID, true)
}

func (s *PGStore) BySessionID(ctx context.Context, sessionID string) (*Order, error) {
	return s.getWhere(ctx, `gateway_session_id = $1`, sessionID, true)
}

func (s *PGStore) getWhere(ctx context.Context, where, arg string, lock bool) (*Order, error) {
	q := postgres.FromContext(ctx, s.Pool)

	sql := `SELECT ` + orderColumns + ` FROM orders WHERE ` + where
	if lock {
		sql += ` FOR UPDATE`
	}
	o, err := scanOrder(q.QueryRow(ctx, sql, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if err := s.loadChildren(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *PGStore) loadChildren(ctx context.Context, o *Order) error {
	q := postgres.FromContext(ctx, s.Pool)

	rows, err := q.Query(ctx, `
		SELECT product_id, name, image_url, size, color, unit_price, quantity, line_total
		FROM order_items WHERE order_id = $1 ORDER BY id`, o.ID)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Name, &it.ImageURL, &it.Size, &it.Color, &it.UnitPrice, &it.Quantity, &it.LineTotal); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	hrows, err := q.Query(ctx, `
		SELECT status, note, actor, created_at
		FROM order_status_history WHERE order_id = $1 ORDER BY id`, o.ID)
	if err != nil {
		return fmt.Errorf("load status history: %w", err)
	}
	defer hrows.Close()
	for hrows.Next() {
		var h HistoryEntry
		if err := hrows.Scan(&h.Status, &h.Note, &h.Actor, &h.CreatedAt); err != nil {
			return err
		}
		o.History = append(o.History, h)
	}
	if err := hrows.Err(); err != nil {
		return err
	}

	rrows, err := q.Query(ctx, `
		SELECT id, amount, reason, gateway_refund_id, created_at
		FROM order_refunds WHERE order_id = $1 ORDER BY created_at`, o.ID)
	if err != nil {
		return fmt.Errorf("load refunds: %w", err)
	}
	defer rrows.Close()
	for rrows.Next() {
		var r Refund
		if err := rrows.Scan(&r.ID, &r.Amount, &r.Reason, &r.GatewayRefundID, &r.CreatedAt); err != nil {
			return err
		}
		o.Payment.Refunds = append(o.Payment.Refunds, r)
	}
	return rrows.Err()
}

func (s *PGStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Order, error) {
	q := postgres.FromContext(ctx, s.Pool)

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := q.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// SaveStatus persists a status mutation done on the aggregate: the row
// fields plus the history entries appended since load.
func (s *PGStore) SaveStatus(ctx context.Context, o *Order, newEntries []HistoryEntry) error {
	q := postgres.FromContext(ctx, s.Pool)

	_, err := q.Exec(ctx, `
		UPDATE orders
		SET status=$2, payment_status=$3, tracking=$4,
		    shipped_at=$5, delivered_at=$6, updated_at=$7
		WHERE id=$1`,
		o.ID, o.Status, o.Payment.Status, o.Shipping.Tracking,
		o.ShippedAt, o.DeliveredAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	for _, h := range newEntries {
		if err := s.insertHistory(ctx, o.ID, h); err != nil {
			return err
		}
	}
	return nil
}

func (s *PGStore) SavePaymentIntent(ctx context.Context, orderID, intentID, sessionID string) error {
	q := postgres.FromContext(ctx, s.Pool)
	_, err := q.Exec(ctx,
		`UPDATE orders SET payment_intent_id=$2, gateway_session_id=$3, updated_at=now() WHERE id=$1`,
		orderID, intentID, sessionID)
	if err != nil {
		return fmt.Errorf("store payment intent: %w", err)
	}
	return nil
}

func (s *PGStore) SavePaymentStatus(ctx context.Context, orderID string, status PaymentStatus) error {
	q := postgres.FromContext(ctx, s.Pool)
	_, err := q.Exec(ctx,
		`UPDATE orders SET payment_status=$2, updated_at=now() WHERE id=$1`,
		orderID, status)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return nil
}

func (s *PGStore) AddRefund(ctx context.Context, orderID string, r Refund) error {
	q := postgres.FromContext(ctx, s.Pool)
	_, err := q.Exec(ctx, `
		INSERT INTO order_refunds(id, order_id, amount, reason, gateway_refund_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		r.ID, orderID, r.Amount, r.Reason, r.GatewayRefundID, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert refund: %w", err)
	}
	return nil
}

// HasRefundFromGateway reports whether a gateway refund id is already in the
// local ledger; charge.refunded reconciliation uses this for idempotency.
func (s *PGStore) HasRefundFromGateway(ctx context.Context, orderID, gatewayRefundID string) (bool, error) {
	q := postgres.FromContext(ctx, s.Pool)
	var n int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM order_refunds WHERE order_id=$1 AND gateway_refund_id=$2`,
		orderID, gatewayRefundID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check refund ledger: %w", err)
	}
	return n > 0, nil
}

// CountSince returns how many orders the user placed after the cutoff,
// feeding the velocity term of the fraud score.
func (s *PGStore) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	q := postgres.FromContext(ctx, s.Pool)
	var n int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id=$1 AND created_at > $2`,
		userID, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("count recent orders: %w", err)
	}
	return n, nil
}

// DefaultAddress loads the user's stored default shipping address, or nil
// when the user has none on file.
func (s *PGStore) DefaultAddress(ctx context.Context, userID string) (*Address, error) {
	q := postgres.FromContext(ctx, s.Pool)
	var raw []byte
	err := q.QueryRow(ctx, `SELECT default_address FROM users WHERE id=$1`, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load default address: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var a Address
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode default address: %w", err)
	}
	return &a, nil
}
