package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog view the commerce core consumes. The catalog
// service owns these rows; this package only reads them and mutates the
// stock accounting columns.
type Product struct {
	ID            string
	Name          string
	ImageURL      string
	CategoryID    string
	Price         decimal.Decimal
	WeightKG      decimal.Decimal
	IsActive      bool
	Quantity      int
	Reserved      int
	LowStockAlert int
	SalesCount    int
	Variants      []Variant
	UpdatedAt     time.Time
}

type Variant struct {
	Size     string
	Color    string
	Stock    int
	Reserved int
}

// Available is the sellable aggregate quantity net of holds.
func (p *Product) Available() int { return p.Quantity - p.Reserved }

func (p *Product) FindVariant(size, color string) *Variant {
	for i := range p.Variants {
		if p.Variants[i].Size == size && p.Variants[i].Color == color {
			return &p.Variants[i]
		}
	}
	return nil
}

func (v *Variant) Available() int { return v.Stock - v.Reserved }

// Line is one requested cart line: product, optional variant, quantity, and
// the price captured when the item was added to the cart.
type Line struct {
	ProductID  string
	Size       string
	Color      string
	Quantity   int
	PriceAtAdd decimal.Decimal
}

// HasVariant reports whether the line targets variant-level stock.
func (l Line) HasVariant() bool { return l.Size != "" || l.Color != "" }

// ValidItem is a validated line enriched with current catalog data. The unit
// price is the catalog's current price, replacing a stale price-at-add.
type ValidItem struct {
	Line
	Name       string
	ImageURL   string
	CategoryID string
	UnitPrice  decimal.Decimal
	WeightKG   decimal.Decimal
}

// Validation aggregates every problem found in one pass instead of failing
// on the first bad line.
type Validation struct {
	Items    []ValidItem
	Errors   []string
	LowStock []string
}

func (v *Validation) OK() bool { return len(v.Errors) == 0 }
