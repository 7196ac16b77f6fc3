package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mEsam147/new-Ecommerce-sub000/internal/errs"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/orders"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	body := map[string]any{"error": err.Error()}
	if details := errs.DetailsOf(err); len(details) > 0 {
		body["details"] = details
	}
	writeJSON(w, errs.HTTPStatus(err), body)
}

// orderView is the wire shape of an order. The aggregate itself carries no
// json tags; the API owns its representation.
type orderView struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Status      orders.Status   `json:"status"`
	CouponCode  string          `json:"coupon_code,omitempty"`
	Items       []itemView      `json:"items"`
	Pricing     pricingView     `json:"pricing"`
	Payment     paymentView     `json:"payment"`
	Shipping    shippingView    `json:"shipping"`
	Billing     *addressView    `json:"billing_address,omitempty"`
	Fraud       fraudView       `json:"fraud_check"`
	History     []historyView   `json:"status_history"`
	IsPaid      bool            `json:"is_paid"`
	CanCancel   bool            `json:"can_be_cancelled"`
	CanRefund   bool            `json:"can_be_refunded"`
	ShippedAt   *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type itemView struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	ImageURL  string `json:"image_url,omitempty"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"line_total"`
}

type pricingView struct {
	Subtotal string `json:"subtotal"`
	Shipping string `json:"shipping"`
	Tax      string `json:"tax"`
	Discount string `json:"discount"`
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

type paymentView struct {
	Method   orders.PaymentMethod `json:"method"`
	Status   orders.PaymentStatus `json:"status"`
	IntentID string               `json:"intent_id,omitempty"`
	Refunds  []refundView         `json:"refunds,omitempty"`
}

type refundView struct {
	ID              string    `json:"id"`
	Amount          string    `json:"amount"`
	Reason          string    `json:"reason"`
	GatewayRefundID string    `json:"gateway_refund_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type shippingView struct {
	Method   string      `json:"method"`
	Address  addressView `json:"address"`
	Tracking string      `json:"tracking,omitempty"`
}

type addressView = orders.Address

type fraudView struct {
	Score  int                `json:"score"`
	Status orders.FraudStatus `json:"status"`
}

type historyView struct {
	Status    orders.Status `json:"status"`
	Note      string        `json:"note,omitempty"`
	Actor     string        `json:"actor,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

func toOrderView(o *orders.Order) orderView {
	v := orderView{
		ID:         o.ID,
		UserID:     o.UserID,
		Status:     o.Status,
		CouponCode: o.CouponCode,
		Pricing: pricingView{
			Subtotal: o.Pricing.Subtotal.StringFixed(2),
			Shipping: o.Pricing.Shipping.StringFixed(2),
			Tax:      o.Pricing.Tax.StringFixed(2),
			Discount: o.Pricing.Discount.StringFixed(2),
			Total:    o.Pricing.Total.StringFixed(2),
			Currency: o.Pricing.Currency,
		},
		Payment: paymentView{
			Method:   o.Payment.Method,
			Status:   o.Payment.Status,
			IntentID: o.Payment.IntentID,
		},
		Shipping: shippingView{
			Method:   string(o.Shipping.Method),
			Address:  o.Shipping.Address,
			Tracking: o.Shipping.Tracking,
		},
		Fraud:       fraudView{Score: o.Fraud.Score, Status: o.Fraud.Status},
		IsPaid:      o.IsPaid(),
		CanCancel:   o.CanBeCancelled(),
		CanRefund:   o.CanBeRefunded(),
		ShippedAt:   o.ShippedAt,
		DeliveredAt: o.DeliveredAt,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
	if o.Billing.Address != (orders.Address{}) {
		addr := o.Billing.Address
		v.Billing = &addr
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, itemView{
			ProductID: it.ProductID,
			Name:      it.Name,
			ImageURL:  it.ImageURL,
			Size:      it.Size,
			Color:     it.Color,
			UnitPrice: it.UnitPrice.StringFixed(2),
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal.StringFixed(2),
		})
	}
	for _, h := range o.History {
		v.History = append(v.History, historyView{
			Status:    h.Status,
			Note:      h.Note,
			Actor:     h.Actor,
			CreatedAt: h.CreatedAt,
		})
	}
	for _, r := range o.Payment.Refunds {
		v.Payment.Refunds = append(v.Payment.Refunds, refundView{
			ID:              r.ID,
			Amount:          r.Amount.StringFixed(2),
			Reason:          r.Reason,
			GatewayRefundID: r.GatewayRefundID,
			CreatedAt:       r.CreatedAt,
		})
	}
	return v
}
