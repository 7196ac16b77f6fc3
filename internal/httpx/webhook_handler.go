package httpx

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mEsam147/new-Ecommerce-sub000/internal/errs"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/payment"
)

type WebhookHandler struct {
	Reconciler *payment.Reconciler
	Secret     string
	Logger     *zap.Logger
}

func (h *WebhookHandler) Register(r *chi.Mux) {
	r.Post("/payments/webhook", h.receive)
}

const maxWebhookBody = 1 << 20

// receive verifies the signature over the raw body before parsing anything.
// A non-2xx response tells the gateway to redeliver, so apply failures must
// not be swallowed.
func (h *WebhookHandler) receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, errs.Validation("unreadable body"))
		return
	}

	ev, err := payment.ParseEvent(h.Secret, body, r.Header.Get(payment.SignatureHeader))
	if err != nil {
		h.Logger.Warn("webhook rejected", zap.Error(err))
		writeError(w, err)
		return
	}

	if err := h.Reconciler.Handle(r.Context(), ev); err != nil {
		h.Logger.Error("webhook apply failed",
			zap.String("event_id", ev.ID),
			zap.String("type", ev.Type),
			zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"received": ev.ID})
}
