package coupon

import (
	"context"
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

func (s *PGStore) ActiveByCode(ctx context.Context, code string, now time.Time) (*Coupon, error) {
	q := postgres.FromContext(ctx, s.Pool)

	var c Coupon
	err := q.QueryRow(ctx, `
		SELECT id, code, discount_type, discount_value, minimum_amount, maximum_discount,
		       start_date, end_date, usage_limit, used_count, per_user_limit,
		       eligibility, allowed_user_ids, include_products, exclude_products,
		       include_categories, exclude_categories, is_active, created_at, updated_at
		FROM coupons
		WHERE lower(code) = lower($1)
		  AND is_active
		  AND start_date <= $2 AND end_date >= $2`,
		code, now,
	).Scan(
		&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &c.MinimumAmount, &c.MaximumDiscount,
		&c.StartDate, &c.EndDate, &c.UsageLimit, &c.UsedCount, &c.PerUserLimit,
		&c.Eligibility, &c.AllowedUserIDs, &c.IncludeProducts, &c.ExcludeProducts,
		&c.IncludeCategories, &c.ExcludeCategories, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("coupon not found or expired")
	}
	if err != nil {
		return nil, fmt.Errorf("lookup coupon %q: %w", code, err)
	}
	return &c, nil
}

func (s *PGStore) UserUsage(ctx context.Context, couponID, userID string) (int, error) {
	q := postgres.FromContext(ctx, s.Pool)

	var n int
	err := q.QueryRow(ctx,
		`SELECT COALESCE(used_count, 0) FROM coupon_usages WHERE coupon_id=$1 AND user_id=$2`,
		couponID, userID,
	).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lookup coupon usage: %w", err)
	}
	return n, nil
}

func (s *PGStore) UserOrderCount(ctx context.Context, userID string) (int, error) {
	q := postgres.FromContext(ctx, s.Pool)

	var n int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id=$1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count user orders: %w", err)
	}
	return n, nil
}

// IncrementUsage bumps the global counter guarded by the usage limit, then
// the per-user counter. Zero rows on the guarded update means the limit was
// exhausted by a concurrent redemption.
func (s *PGStore) IncrementUsage(ctx context.Context, couponID, userID string) error {
	q := postgres.FromContext(ctx, s.Pool)

	ct, err := q.Exec(ctx, `
		UPDATE coupons
		SET used_count = used_count + 1, updated_at = now()
		WHERE id = $1 AND (usage_limit = 0 OR used_count < usage_limit)`,
		couponID)
	if err != nil {
		return fmt.Errorf("increment coupon usage: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return errs.Conflict("coupon usage limit reached")
	}

	_, err = q.Exec(ctx, `
		INSERT INTO coupon_usages(coupon_id, user_id, used_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (coupon_id, user_id)
		DO UPDATE SET used_count = coupon_usages.used_count + 1`,
		couponID, userID)
	if err != nil {
		return fmt.Errorf("increment per-user coupon usage: %w", err)
	}
	return nil
}
