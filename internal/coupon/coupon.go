package coupon

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage   DiscountType = "percentage"
	DiscountFixed        DiscountType = "fixed"
	DiscountFreeShipping DiscountType = "free_shipping"
)

type Eligibility string

const (
	EligibilityAll               Eligibility = "all"
	EligibilityNewCustomers      Eligibility = "new_customers"
	EligibilityExistingCustomers Eligibility = "existing_customers"
	EligibilitySpecificCustomers Eligibility = "specific_customers"
)

type Coupon struct {
	ID                string
	Code              string
	DiscountType      DiscountType
	DiscountValue     decimal.Decimal
	MinimumAmount     decimal.Decimal
	MaximumDiscount   decimal.Decimal // zero means uncapped
	StartDate         time.Time
	EndDate           time.Time
	UsageLimit        int // zero means unlimited
	UsedCount         int
	PerUserLimit      int // zero means unlimited
	Eligibility       Eligibility
	AllowedUserIDs    []string
	IncludeProducts   []string
	ExcludeProducts   []string
	IncludeCategories []string
	ExcludeCategories []string
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ItemRef identifies one cart line for include/exclude checks.
type ItemRef struct {
	ProductID  string
	CategoryID string
}

// CheckInput carries everything Validate needs so it stays free of I/O.
type CheckInput struct {
	UserID      string
	CartAmount  decimal.Decimal
	Items       []ItemRef
	UserUsage   int // times this user has already redeemed the coupon
	PriorOrders int // user's lifetime committed orders, for eligibility class
	Now         time.Time
}

// Validate runs every eligibility check and returns all failures, not just
// the first, so the caller can report them itemized.
func (c *Coupon) Validate(in CheckInput) []string {
	var fails []string

	if !c.IsActive {
		fails = append(fails, "coupon is not active")
	}
	if in.Now.Before(c.StartDate) {
		fails = append(fails, "coupon is not yet valid")
	}
	if in.Now.After(c.EndDate) {
		fails = append(fails, "coupon has expired")
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		fails = append(fails, "coupon usage limit reached")
	}
	if c.MinimumAmount.IsPositive() && in.CartAmount.LessThan(c.MinimumAmount) {
		fails = append(fails, fmt.Sprintf("minimum order amount is %s", c.MinimumAmount.StringFixed(2)))
	}
	if c.PerUserLimit > 0 && in.UserUsage >= c.PerUserLimit {
		fails = append(fails, "per-user usage limit reached")
	}
	if msg := c.checkEligibility(in); msg != "" {
		fails = append(fails, msg)
	}
	fails = append(fails, c.checkItemLists(in.Items)...)

	return fails
}

func (c *Coupon) checkEligibility(in CheckInput) string {
	switch c.Eligibility {
	case EligibilityNewCustomers:
		if in.PriorOrders > 0 {
			return "coupon is limited to new customers"
		}
	case EligibilityExistingCustomers:
		if in.PriorOrders == 0 {
			return "coupon is limited to existing customers"
		}
	case EligibilitySpecificCustomers:
		for _, id := range c.AllowedUserIDs {
			if id == in.UserID {
				return ""
			}
		}
		return "coupon is not available for this account"
	}
	return ""
}

func (c *Coupon) checkItemLists(items []ItemRef) []string {
	var fails []string

	for _, it := range items {
		if contains(c.ExcludeProducts, it.ProductID) {
			fails = append(fails, fmt.Sprintf("product %s is excluded from this coupon", it.ProductID))
		}
		if it.CategoryID != "" && contains(c.ExcludeCategories, it.CategoryID) {
			fails = append(fails, fmt.Sprintf("category %s is excluded from this coupon", it.CategoryID))
		}
	}

	if len(c.IncludeProducts) > 0 || len(c.IncludeCategories) > 0 {
		matched := false
		for _, it := range items {
			if contains(c.IncludeProducts, it.ProductID) || contains(c.IncludeCategories, it.CategoryID) {
				matched = true
				break
			}
		}
		if !matched {
			fails = append(fails, "no eligible products in cart for this coupon")
		}
	}

	return fails
}

// Discount computes the monetary discount for a cart amount, rounded to two
// decimal places. free_shipping carries no monetary discount; the pricing
// calculator waives the shipping line instead.
func (c *Coupon) Discount(cartAmount decimal.Decimal) decimal.Decimal {
	switch c.DiscountType {
	case DiscountPercentage:
		d := cartAmount.Mul(c.DiscountValue).Div(decimal.NewFromInt(100))
		if c.MaximumDiscount.IsPositive() && d.GreaterThan(c.MaximumDiscount) {
			d = c.MaximumDiscount
		}
		return d.Round(2)
	case DiscountFixed:
		if c.DiscountValue.GreaterThan(cartAmount) {
			return cartAmount.Round(2)
		}
		return c.DiscountValue.Round(2)
	default:
		return decimal.Zero
	}
}

// WaivesShipping reports whether this coupon zeroes the shipping line.
func (c *Coupon) WaivesShipping() bool { return c.DiscountType == DiscountFreeShipping }

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
