package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/mEsam147/new-Ecommerce-sub000/internal/orders"
)

// reviewThreshold flags low scores for manual review. The score is recorded
// on the order and surfaced to admins; it does not block checkout.
const reviewThreshold = 30

var (
	highAmount     = decimal.NewFromInt(1000)
	veryHighAmount = decimal.NewFromInt(5000)
)

// FraudScore starts at 50 and deducts for risk signals: large totals, a
// shipping address that differs from the user's stored default, and order
// velocity over the trailing 24 hours. Clamped to [0,100].
func FraudScore(total decimal.Decimal, addressMatchesDefault bool, recentOrders int) int {
	score := 50
	if total.GreaterThan(highAmount) {
		score -= 10
	}
	if total.GreaterThan(veryHighAmount) {
		score -= 20
	}
	if !addressMatchesDefault {
		score -= 15
	}
	if recentOrders > 5 {
		score -= 10
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

func fraudStatus(score int) orders.FraudStatus {
	if score < reviewThreshold {
		return orders.FraudReview
	}
	return orders.FraudPassed
}
