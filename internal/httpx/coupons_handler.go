package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/mEsam147/new-Ecommerce-sub000/internal/coupon"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/errs"
)

type CouponsHandler struct {
	Engine   *coupon.Engine
	Validate *validator.Validate
}

func (h *CouponsHandler) Register(r *chi.Mux) {
	r.Post("/coupons/validate", h.validate)
}

type couponItemReq struct {
	ProductID  string `json:"product_id" validate:"required"`
	CategoryID string `json:"category_id"`
}

type validateCouponReq struct {
	Code       string          `json:"code" validate:"required"`
	CartAmount string          `json:"cart_amount" validate:"required"`
	Items      []couponItemReq `json:"items"`
}

type validateCouponResp struct {
	Valid          bool     `json:"valid"`
	Code           string   `json:"code"`
	DiscountAmount string   `json:"discount_amount"`
	FinalAmount    string   `json:"final_amount"`
	FreeShipping   bool     `json:"free_shipping,omitempty"`
	Reasons        []string `json:"reasons,omitempty"`
}

// validate is the pre-checkout dry run: it reports the discount the coupon
// would yield without reserving a redemption.
func (h *CouponsHandler) validate(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, errs.Authorization("missing caller identity"))
		return
	}
	var req validateCouponReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Validation("invalid json"))
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeError(w, errs.Validation(err.Error()))
		return
	}
	cartAmount, err := decimal.NewFromString(req.CartAmount)
	if err != nil || cartAmount.IsNegative() {
		writeError(w, errs.Validation("cart_amount must be a non-negative decimal string"))
		return
	}
	refs := make([]coupon.ItemRef, 0, len(req.Items))
	for _, it := range req.Items {
		refs = append(refs, coupon.ItemRef{ProductID: it.ProductID, CategoryID: it.CategoryID})
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.Engine.FindValid(ctx, req.Code, uid, cartAmount, refs)
	if err != nil {
		if errs.KindOf(err) == errs.KindInternal {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, validateCouponResp{
			Valid:          false,
			Code:           req.Code,
			DiscountAmount: "0.00",
			FinalAmount:    cartAmount.StringFixed(2),
			Reasons:        reasonsOf(err),
		})
		return
	}

	discount := c.Discount(cartAmount)
	writeJSON(w, http.StatusOK, validateCouponResp{
		Valid:          true,
		Code:           c.Code,
		DiscountAmount: discount.StringFixed(2),
		FinalAmount:    cartAmount.Sub(discount).StringFixed(2),
		FreeShipping:   c.WaivesShipping(),
	})
}

func reasonsOf(err error) []string {
	if details := errs.DetailsOf(err); len(details) > 0 {
		return details
	}
	return []string{err.Error()}
}
