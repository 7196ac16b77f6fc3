package inventory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mEsam147/new-Ecommerce-sub000/internal/errs"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/postgres"
)

type PGStore struct{ Pool *pgxpool.Pool }

func NewPGStore(pool *pgxpool.Pool) *PGStore { return &PGStore{Pool: pool} }

func (s *PGStore) ProductsByIDs(ctx context.Context, ids []string) (map[string]*Product, error) {
	q := postgres.FromContext(ctx, s.Pool)

	rows, err := q.Query(ctx, `
		SELECT id, name, image_url, category_id, price, weight_kg, is_active,
		       quantity, reserved, low_stock_alert, sales_count, updated_at
		FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	defer rows.Close()

	out := map[string]*Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.ImageURL, &p.CategoryID, &p.Price, &p.WeightKG,
			&p.IsActive, &p.Quantity, &p.Reserved, &p.LowStockAlert, &p.SalesCount, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out[p.ID] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	vrows, err := q.Query(ctx, `
		SELECT product_id, size, color, stock, reserved
		FROM product_variants WHERE product_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}
	defer vrows.Close()

	for vrows.Next() {
		var pid string
		var v Variant
		if err := vrows.Scan(&pid, &v.Size, &v.Color, &v.Stock, &v.Reserved); err != nil {
			return nil, err
		}
		if p, ok := out[pid]; ok {
			p.Variants = append(p.Variants, v)
		}
	}
	return out, vrows.Err()
}

// ReserveLine increments holds guarded by "reserved + qty <= quantity".
// Under concurrency the database resolves the last unit deterministically:
// one caller updates a row, the other sees zero rows and fails out-of-stock.
func (s *PGStore) ReserveLine(ctx context.Context, l Line) error {
	q := postgres.FromContext(ctx, s.Pool)

	ct, err := q.Exec(ctx, `
		UPDATE products
		SET reserved = reserved + $2, updated_at = now()
		WHERE id = $1 AND reserved + $2 <= quantity`,
		l.ProductID, l.Quantity)
	if err != nil {
		return fmt.Errorf("reserve product %s: %w", l.ProductID, err)
	}
	if ct.RowsAffected() == 0 {
		return errs.Conflict(fmt.Sprintf("product %s is out of stock", l.ProductID))
	}

	if !l.HasVariant() {
		return nil
	}
	ct, err = q.Exec(ctx, `
		UPDATE product_variants
		SET reserved = reserved + $4
		WHERE product_id = $1 AND size = $2 AND color = $3 AND reserved + $4 <= stock`,
		l.ProductID, l.Size, l.Color, l.Quantity)
	if err != nil {
		return fmt.Errorf("reserve variant %s %s/%s: %w", l.ProductID, l.Size, l.Color, err)
	}
	if ct.RowsAffected() == 0 {
		return errs.Conflict(fmt.Sprintf("variant %s/%s of product %s is out of stock", l.Size, l.Color, l.ProductID))
	}
	return nil
}

func (s *PGStore) FulfillLine(ctx context.Context, l Line) error {
	q := postgres.FromContext(ctx, s.Pool)

	_, err := q.Exec(ctx, `
		UPDATE products
		SET quantity = quantity - $2,
		    reserved = GREATEST(reserved - $2, 0),
		    sales_count = sales_count + $2,
		    updated_at = now()
		WHERE id = $1`,
		l.ProductID, l.Quantity)
	if err != nil {
		return fmt.Errorf("fulfill product %s: %w", l.ProductID, err)
	}

	if !l.HasVariant() {
		return nil
	}
	_, err = q.Exec(ctx, `
		UPDATE product_variants
		SET stock = stock - $4, reserved = GREATEST(reserved - $4, 0)
		WHERE product_id = $1 AND size = $2 AND color = $3`,
		l.ProductID, l.Size, l.Color, l.Quantity)
	if err != nil {
		return fmt.Errorf("fulfill variant %s %s/%s: %w", l.ProductID, l.Size, l.Color, err)
	}
	return nil
}

// RestockLine returns fulfilled units to sellable stock. Unlike ReleaseLine
// it touches quantity, not reserved: fulfillment already consumed the hold.
func (s *PGStore) RestockLine(ctx context.Context, l Line) error {
	q := postgres.FromContext(ctx, s.Pool)

	_, err := q.Exec(ctx, `
		UPDATE products
		SET quantity = quantity + $2,
		    sales_count = GREATEST(sales_count - $2, 0),
		    updated_at = now()
		WHERE id = $1`,
		l.ProductID, l.Quantity)
	if err != nil {
		return fmt.Errorf("restock product %s: %w", l.ProductID, err)
	}

	if !l.HasVariant() {
		return nil
	}
	_, err = q.Exec(ctx, `
		UPDATE product_variants
		SET stock = stock + $4
		WHERE product_id = $1 AND size = $2 AND color = $3`,
		l.ProductID, l.Size, l.Color, l.Quantity)
	if err != nil {
		return fmt.Errorf("restock variant %s %s/%s: %w", l.ProductID, l.Size, l.Color, err)
	}
	return nil
}

func (s *PGStore) ReleaseLine(ctx context.Context, l Line) error {
	q := postgres.FromContext(ctx, s.Pool)

	_, err := q.Exec(ctx, `
		UPDATE products
		SET reserved = GREATEST(reserved - $2, 0), updated_at = now()
		WHERE id = $1`,
		l.ProductID, l.Quantity)
	if err != nil {
		return fmt.Errorf("release product %s: %w", l.ProductID, err)
	}

	if !l.HasVariant() {
		return nil
	}
	_, err = q.Exec(ctx, `
		UPDATE product_variants
		SET reserved = GREATEST(reserved - $4, 0)
		WHERE product_id = $1 AND size = $2 AND color = $3`,
		l.ProductID, l.Size, l.Color, l.Quantity)
	if err != nil {
		return fmt.Errorf("release variant %s %s/%s: %w", l.ProductID, l.Size, l.Color, err)
	}
	return nil
}
