package inventory

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Store mutates stock accounting. Reserve must be a conditional update that
// reports zero rows as an out-of-stock conflict, never a silent success.
type Store interface {
	ProductsByIDs(ctx context.Context, ids []string) (map[string]*Product, error)
	ReserveLine(ctx context.Context, l Line) error
	FulfillLine(ctx context.Context, l Line) error
	ReleaseLine(ctx context.Context, l Line) error
	RestockLine(ctx context.Context, l Line) error
}

type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// ValidateCart checks every line against the live catalog: active product,
// sufficient stock at the requested level (variant when selected, aggregate
// otherwise), and refreshes stale cart prices to the current catalog price.
// All shortfalls are collected into one itemized result.
func (s *Service) ValidateCart(ctx context.Context, lines []Line) (*Validation, error) {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := s.store.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := &Validation{}
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			out.Errors = append(out.Errors, fmt.Sprintf("product %s is no longer available", l.ProductID))
			continue
		}
		if !p.IsActive {
			out.Errors = append(out.Errors, fmt.Sprintf("%s is no longer available", p.Name))
			continue
		}

		available := p.Available()
		if l.HasVariant() {
			v := p.FindVariant(l.Size, l.Color)
			if v == nil {
				out.Errors = append(out.Errors, fmt.Sprintf("%s is not available in %s/%s", p.Name, l.Size, l.Color))
				continue
			}
			available = v.Available()
		}
		if l.Quantity > available {
			out.Errors = append(out.Errors, fmt.Sprintf("%s: requested %d, available %d", p.Name, l.Quantity, available))
			continue
		}
		if p.LowStockAlert > 0 && available-l.Quantity <= p.LowStockAlert {
			out.LowStock = append(out.LowStock, fmt.Sprintf("%s is running low (%d left)", p.Name, available-l.Quantity))
		}

		if !l.PriceAtAdd.Equal(p.Price) {
			s.logger.Debug("refreshing stale cart price",
				zap.String("product_id", p.ID),
				zap.String("cart_price", l.PriceAtAdd.String()),
				zap.String("catalog_price", p.Price.String()))
		}
		out.Items = append(out.Items, ValidItem{
			Line:       l,
			Name:       p.Name,
			ImageURL:   p.ImageURL,
			CategoryID: p.CategoryID,
			UnitPrice:  p.Price,
			WeightKG:   p.WeightKG,
		})
	}
	return out, nil
}

// Reserve places holds for every line. Within the checkout transaction a
// failing line rolls back the holds already taken.
func (s *Service) Reserve(ctx context.Context, lines []Line) error {
	for _, l := range lines {
		if err := s.store.ReserveLine(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

// Fulfill converts holds into real depletion on confirmed payment.
func (s *Service) Fulfill(ctx context.Context, lines []Line) error {
	for _, l := range lines {
		if err := s.store.FulfillLine(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

// Release drops holds without depletion. Only valid while the lines are
// still reserved: once payment fulfilled them the hold is gone, and a
// release here would eat another order's reservation.
func (s *Service) Release(ctx context.Context, lines []Line) error {
	for _, l := range lines {
		if err := s.store.ReleaseLine(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

// Restock returns fulfilled units to sellable stock, for cancellation after
// the payment already converted the holds into depletion.
func (s *Service) Restock(ctx context.Context, lines []Line) error {
	for _, l := range lines {
		if err := s.store.RestockLine(ctx, l); err != nil {
			return err
		}
	}
	return nil
}
