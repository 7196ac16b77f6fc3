package coupon

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mEsam147/new-Ecommerce-sub000/internal/errs"
)

// Store is the persistence surface the engine needs.
type Store interface {
	// ActiveByCode resolves a coupon by case-insensitive code, restricted to
	// active rows whose validity window contains now.
	ActiveByCode(ctx context.Context, code string, now time.Time) (*Coupon, error)
	// UserUsage returns how many times the user has redeemed the coupon.
	UserUsage(ctx context.Context, couponID, userID string) (int, error)
	// UserOrderCount returns the user's lifetime committed order count.
	UserOrderCount(ctx context.Context, userID string) (int, error)
	// IncrementUsage bumps the coupon's global counter and the user's
	// per-coupon counter together.
	IncrementUsage(ctx context.Context, couponID, userID string) error
}

type Engine struct {
	store  Store
	logger *zap.Logger
}

func NewEngine(store Store, logger *zap.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// FindValid looks up the coupon and runs the full validation chain against
// the user and cart. All failing checks are reported together.
func (e *Engine) FindValid(ctx context.Context, code, userID string, cartAmount decimal.Decimal, items []ItemRef) (*Coupon, error) {
	now := time.Now().UTC()

	c, err := e.store.ActiveByCode(ctx, code, now)
	if err != nil {
		return nil, err
	}

	usage, err := e.store.UserUsage(ctx, c.ID, userID)
	if err != nil {
		return nil, err
	}
	priorOrders, err := e.store.UserOrderCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	fails := c.Validate(CheckInput{
		UserID:      userID,
		CartAmount:  cartAmount,
		Items:       items,
		UserUsage:   usage,
		PriorOrders: priorOrders,
		Now:         now,
	})
	if len(fails) > 0 {
		return nil, errs.Conflict("coupon cannot be applied", fails...)
	}
	return c, nil
}

// IncrementUsage must only run after the order holding the discount is
// durably committed.
func (e *Engine) IncrementUsage(ctx context.Context, c *Coupon, userID string) error {
	if err := e.store.IncrementUsage(ctx, c.ID, userID); err != nil {
		return err
	}
	e.logger.Info("coupon redeemed",
		zap.String("coupon_id", c.ID),
		zap.String("code", c.Code),
		zap.String("user_id", userID))
	return nil
}
