package cart

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mEsam147/new-Ecommerce-sub000/internal/postgres"
)

// The cart is owned by an external collaborator; checkout only reads it and
// clears it once an order commits.

// Item is one cart line with the price captured when it was added.
type Item struct {
	ProductID  string
	Size       string
	Color      string
	Quantity   int
	PriceAtAdd decimal.Decimal
}

type PGStore struct{ Pool *pgxpool.Pool }

func NewPGStore(pool *pgxpool.Pool) *PGStore { return &PGStore{Pool: pool} }

func (s *PGStore) Load(ctx context.Context, userID string) ([]Item, error) {
	q := postgres.FromContext(ctx, s.Pool)

	rows, err := q.Query(ctx, `
		SELECT product_id, size, color, quantity, price_at_add
		FROM cart_items WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Size, &it.Color, &it.Quantity, &it.PriceAtAdd); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Clear empties the cart's items; the cart itself stays.
func (s *PGStore) Clear(ctx context.Context, userID string) error {
	q := postgres.FromContext(ctx, s.Pool)
	if _, err := q.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
