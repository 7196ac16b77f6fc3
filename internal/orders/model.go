package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mEsam147/new-Ecommerce-sub000/internal/pricing"
)

type PaymentMethod string

const (
	PaymentCard           PaymentMethod = "card"
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// RequiresGateway reports whether checkout must open a payment intent.
func (m PaymentMethod) RequiresGateway() bool { return m == PaymentCard }

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentCompleted         PaymentStatus = "completed"
	PaymentFailed            PaymentStatus = "failed"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

// Item is a line of an order with the product snapshot taken at checkout.
// The snapshot survives later catalog edits; the order is the audit record.
type Item struct {
	ProductID string
	Name      string
	ImageURL  string
	Size      string
	Color     string
	UnitPrice decimal.Decimal
	Quantity  int
	LineTotal decimal.Decimal
}

type Pricing struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
	Currency string
}

type Refund struct {
	ID              string
	Amount          decimal.Decimal
	Reason          string
	GatewayRefundID string
	CreatedAt       time.Time
}

type Payment struct {
	Method    PaymentMethod
	Status    PaymentStatus
	IntentID  string
	SessionID string
	Refunds   []Refund
}

type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Matches compares the fields that matter for fraud scoring.
func (a Address) Matches(b Address) bool {
	return a.Line1 == b.Line1 && a.City == b.City && a.PostalCode == b.PostalCode && a.Country == b.Country
}

type Shipping struct {
	Method   pricing.ShippingMethod
	Address  Address
	Tracking string
}

// Billing is kept alongside shipping for dispute handling; the gateway sees
// only the intent metadata.
type Billing struct {
	Address Address
}

type FraudStatus string

const (
	FraudPassed FraudStatus = "passed"
	FraudReview FraudStatus = "review"
)

type FraudCheck struct {
	Score  int
	Status FraudStatus
}

// HistoryEntry is one append-only status audit record.
type HistoryEntry struct {
	Status    Status
	Note      string
	Actor     string
	CreatedAt time.Time
}

// Order is the aggregate root. It is created by checkout in pending state,
// mutated only through UpdateStatus and ProcessRefund, and never deleted.
type Order struct {
	ID          string
	UserID      string
	CouponCode  string
	Items       []Item
	Status      Status
	History     []HistoryEntry
	Pricing     Pricing
	Payment     Payment
	Shipping    Shipping
	Billing     Billing
	Fraud       FraudCheck
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
