package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mEsam147/new-Ecommerce-sub000/internal/cart"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/coupon"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/errs"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/inventory"
	kafkax "github.com/mEsam147/new-Ecommerce-sub000/internal/kafka"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/orders"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/payment"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/pricing"
)

type Carts interface {
	Load(ctx context.Context, userID string) ([]cart.Item, error)
	Clear(ctx context.Context, userID string) error
}

type Inventory interface {
	ValidateCart(ctx context.Context, lines []inventory.Line) (*inventory.Validation, error)
	Reserve(ctx context.Context, lines []inventory.Line) error
}

type Coupons interface {
	FindValid(ctx context.Context, code, userID string, cartAmount decimal.Decimal, items []coupon.ItemRef) (*coupon.Coupon, error)
	IncrementUsage(ctx context.Context, c *coupon.Coupon, userID string) error
}

type Orders interface {
	Create(ctx context.Context, o *orders.Order) error
	SavePaymentIntent(ctx context.Context, orderID, intentID, sessionID string) error
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
	DefaultAddress(ctx context.Context, userID string) (*orders.Address, error)
}

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Input struct {
	UserID          string
	ShippingAddress orders.Address
	BillingAddress  orders.Address
	PaymentMethod   orders.PaymentMethod
	ShippingMethod  pricing.ShippingMethod
	CouponCode      string
}

type Result struct {
	Order        *orders.Order
	ClientSecret string
	Warnings     []string
}

// Orchestrator runs checkout as one all-or-nothing saga inside a single
// serializable transaction: order, reservations, cart clear, coupon usage,
// and the stored intent id either all land or none do.
type Orchestrator struct {
	carts    Carts
	inv      Inventory
	coupons  Coupons
	orders   Orders
	gateway  payment.Gateway
	tx       TxRunner
	events   Publisher
	producer string
	logger   *zap.Logger
	now      func() time.Time
}

func New(carts Carts, inv Inventory, coupons Coupons, ord Orders, gateway payment.Gateway, tx TxRunner, events Publisher, producer string, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		carts:    carts,
		inv:      inv,
		coupons:  coupons,
		orders:   ord,
		gateway:  gateway,
		tx:       tx,
		events:   events,
		producer: producer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Orchestrator) Checkout(ctx context.Context, in Input) (*Result, error) {
	var res Result
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.now()

		// 1: the cart with current product snapshots
		items, err := s.carts.Load(ctx, in.UserID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return errs.Conflict("cart is empty")
		}
		lines := toLines(items)

		// 2: validate against the live catalog; abort with every shortfall
		v, err := s.inv.ValidateCart(ctx, lines)
		if err != nil {
			return err
		}
		if !v.OK() {
			return errs.Conflict("some items are unavailable", v.Errors...)
		}
		res.Warnings = v.LowStock

		// 3: pricing with best-effort coupon. A rejected coupon is logged
		// and checkout proceeds with zero discount.
		cartAmount := decimal.Zero
		for _, it := range v.Items {
			cartAmount = cartAmount.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
		var applied *coupon.Coupon
		discount := decimal.Zero
		waiveShipping := false
		if in.CouponCode != "" {
			c, err := s.coupons.FindValid(ctx, in.CouponCode, in.UserID, cartAmount, couponRefs(v.Items))
			switch {
			case err != nil && errs.KindOf(err) == errs.KindInternal:
				return err
			case err != nil:
				s.logger.Warn("coupon rejected, proceeding without discount",
					zap.String("code", in.CouponCode),
					zap.String("user_id", in.UserID),
					zap.Strings("reasons", errs.DetailsOf(err)))
				res.Warnings = append(res.Warnings, "coupon could not be applied")
			default:
				applied = c
				discount = c.Discount(cartAmount)
				waiveShipping = c.WaivesShipping()
			}
		}
		quote := pricing.Calculate(pricingItems(v.Items), in.ShippingMethod, discount, waiveShipping)

		// 4: aggregate plus fraud score; the score is recorded, not a gate
		recent, err := s.orders.CountSince(ctx, in.UserID, now.Add(-24*time.Hour))
		if err != nil {
			return err
		}
		def, err := s.orders.DefaultAddress(ctx, in.UserID)
		if err != nil && !errs.Is(err, errs.KindNotFound) {
			return err
		}
		addressMatches := def == nil || def.Matches(in.ShippingAddress)
		score := FraudScore(quote.Total, addressMatches, recent)

		o := s.buildOrder(in, v.Items, quote, applied, score, now)

		// 5: persist
		if err := s.orders.Create(ctx, o); err != nil {
			return err
		}

		// 6: holds; a concurrent buyer of the last unit fails here
		if err := s.inv.Reserve(ctx, lines); err != nil {
			return err
		}

		// 7: clear the committed cart
		if err := s.carts.Clear(ctx, in.UserID); err != nil {
			return err
		}

		// coupon usage counters travel in the same transaction as the
		// order they discount
		if applied != nil {
			if err := s.coupons.IncrementUsage(ctx, applied, in.UserID); err != nil {
				return err
			}
		}

		// 8: open the payment intent and pin its id to the order
		if o.Payment.Method.RequiresGateway() {
			intent, err := s.gateway.CreatePaymentIntent(ctx, quote.Total, quote.Currency, payment.IntentMetadata{
				OrderID: o.ID,
				UserID:  in.UserID,
			})
			if err != nil {
				return err
			}
			o.Payment.IntentID = intent.ID
			res.ClientSecret = intent.ClientSecret
			if err := s.orders.SavePaymentIntent(ctx, o.ID, intent.ID, ""); err != nil {
				return err
			}
		}

		res.Order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 9 happened at commit; everything after is best-effort
	s.publishCreated(res.Order)
	return &res, nil
}

func (s *Orchestrator) buildOrder(in Input, items []inventory.ValidItem, quote pricing.Quote, applied *coupon.Coupon, score int, now time.Time) *orders.Order {
	o := &orders.Order{
		ID:      uuid.NewString(),
		UserID:  in.UserID,
		Status:  orders.StatusPending,
		Pricing: orders.Pricing{
			Subtotal: quote.Subtotal,
			Shipping: quote.Shipping,
			Tax:      quote.Tax,
			Discount: quote.Discount,
			Total:    quote.Total,
			Currency: quote.Currency,
		},
		Payment:  orders.Payment{Method: in.PaymentMethod, Status: orders.PaymentPending},
		Shipping: orders.Shipping{Method: in.ShippingMethod, Address: in.ShippingAddress},
		Billing:  orders.Billing{Address: in.BillingAddress},
		Fraud:    orders.FraudCheck{Score: score, Status: fraudStatus(score)},
		History: []orders.HistoryEntry{{
			Status:    orders.StatusPending,
			Note:      "order placed",
			Actor:     in.UserID,
			CreatedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if applied != nil {
		o.CouponCode = applied.Code
	}
	for _, it := range items {
		qty := decimal.NewFromInt(int64(it.Quantity))
		o.Items = append(o.Items, orders.Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			ImageURL:  it.ImageURL,
			Size:      it.Size,
			Color:     it.Color,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			LineTotal: it.UnitPrice.Mul(qty).Round(2),
		})
	}
	return o
}

func (s *Orchestrator) publishCreated(o *orders.Order) {
	if s.events == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    s.now(),
		Producer:      s.producer,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderCreatedPayload{
			OrderID:   o.ID,
			UserID:    o.UserID,
			Total:     o.Pricing.Total.StringFixed(2),
			Currency:  o.Pricing.Currency,
			ItemCount: len(o.Items),
		}),
	}
	s.events.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCreated)})
}

func toLines(items []cart.Item) []inventory.Line {
	lines := make([]inventory.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, inventory.Line{
			ProductID:  it.ProductID,
			Size:       it.Size,
			Color:      it.Color,
			Quantity:   it.Quantity,
			PriceAtAdd: it.PriceAtAdd,
		})
	}
	return lines
}

func couponRefs(items []inventory.ValidItem) []coupon.ItemRef {
	refs := make([]coupon.ItemRef, 0, len(items))
	for _, it := range items {
		refs = append(refs, coupon.ItemRef{ProductID: it.ProductID, CategoryID: it.CategoryID})
	}
	return refs
}

func pricingItems(items []inventory.ValidItem) []pricing.Item {
	out := make([]pricing.Item, 0, len(items))
	for _, it := range items {
		out = append(out, pricing.Item{
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			WeightKG:  it.WeightKG,
		})
	}
	return out
}
