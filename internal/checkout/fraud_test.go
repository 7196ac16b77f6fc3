package checkout_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mEsam147/new-Ecommerce-sub000/internal/checkout"
)

func TestFraudScore(t *testing.T) {
	cases := []struct {
		name         string
		total        string
		addressMatch bool
		recent       int
		want         int
	}{
		{"baseline", "200", true, 0, 50},
		{"large total", "1500", true, 0, 40},
		{"very large total stacks both deductions", "6000", true, 0, 20},
		{"exactly 1000 is not large", "1000", true, 0, 50},
		{"new shipping address", "200", false, 0, 35},
		{"heavy order velocity", "200", true, 6, 40},
		{"five recent orders is still fine", "200", true, 5, 50},
		{"everything at once clamps at zero", "6000", false, 10, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			total := decimal.RequireFromString(tc.total)
			assert.Equal(t, tc.want, checkout.FraudScore(total, tc.addressMatch, tc.recent))
		})
	}
}
