package pricing

import "github.com/shopspring/decimal"

type ShippingMethod string

const (
	ShippingStandard  ShippingMethod = "standard"
	ShippingExpress   ShippingMethod = "express"
	ShippingOvernight ShippingMethod = "overnight"
	ShippingFree      ShippingMethod = "free"
)

const Currency = "USD"

// TaxRate is a flat 8% applied to the subtotal.
var TaxRate = decimal.NewFromFloat(0.08)

// DefaultItemWeightKG is assumed when the catalog has no weight on record.
var DefaultItemWeightKG = decimal.NewFromFloat(0.5)

// Item is the priced-and-weighed view of one cart line.
type Item struct {
	UnitPrice decimal.Decimal
	Quantity  int
	WeightKG  decimal.Decimal // zero means unspecified
}

type Quote struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
	Currency string
}

// weight tiers: <=1kg, <=5kg, above
var shippingRates = map[ShippingMethod][3]decimal.Decimal{
	ShippingStandard:  rates(5.50, 8.50, 12.50),
	ShippingExpress:   rates(12.00, 18.00, 25.00),
	ShippingOvernight: rates(24.00, 35.00, 50.00),
}

func rates(a, b, c float64) [3]decimal.Decimal {
	return [3]decimal.Decimal{
		decimal.NewFromFloat(a),
		decimal.NewFromFloat(b),
		decimal.NewFromFloat(c),
	}
}

// Calculate prices a cart. It performs no I/O: callers resolve items,
// the discount amount, and whether shipping is waived beforehand.
func Calculate(items []Item, method ShippingMethod, discount decimal.Decimal, waiveShipping bool) Quote {
	subtotal := decimal.Zero
	weight := decimal.Zero
	for _, it := range items {
		qty := decimal.NewFromInt(int64(it.Quantity))
		subtotal = subtotal.Add(it.UnitPrice.Mul(qty))
		w := it.WeightKG
		if w.IsZero() {
			w = DefaultItemWeightKG
		}
		weight = weight.Add(w.Mul(qty))
	}
	subtotal = subtotal.Round(2)

	shipping := shippingCost(method, weight)
	if waiveShipping {
		shipping = decimal.Zero
	}

	tax := subtotal.Mul(TaxRate).Round(2)
	discount = discount.Round(2)

	total := subtotal.Add(shipping).Add(tax).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Quote{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Discount: discount,
		Total:    total.Round(2),
		Currency: Currency,
	}
}

func shippingCost(method ShippingMethod, weightKG decimal.Decimal) decimal.Decimal {
	if method == ShippingFree {
		return decimal.Zero
	}
	tiers, ok := shippingRates[method]
	if !ok {
		tiers = shippingRates[ShippingStandard]
	}
	switch {
	case weightKG.LessThanOrEqual(decimal.NewFromInt(1)):
		return tiers[0]
	case weightKG.LessThanOrEqual(decimal.NewFromInt(5)):
		return tiers[1]
	default:
		return tiers[2]
	}
}
