package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/mEsam147/new-Ecommerce-sub000/internal/errs"
)

// Gateway webhook event types consumed by the reconciler.
const (
	EventSessionCompleted = "session.completed"
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventChargeRefunded   = "charge.refunded"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Gateway-Signature"

type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

type EventData struct {
	SessionID string          `json:"session_id,omitempty"`
	IntentID  string          `json:"payment_intent,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency,omitempty"`
	RefundID  string          `json:"refund_id,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Metadata  IntentMetadata  `json:"metadata"`
}

// VerifySignature checks the HMAC over the raw body before any parsing.
func VerifySignature(secret string, body []byte, signature string) error {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return errs.Authorization("webhook signature mismatch")
	}
	return nil
}

// ParseEvent verifies then decodes a webhook delivery.
func ParseEvent(secret string, body []byte, signature string) (*Event, error) {
	if err := VerifySignature(secret, body, signature); err != nil {
		return nil, err
	}
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, errs.Validation("malformed webhook payload")
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, errs.Validation("webhook event missing id or type")
	}
	return &ev, nil
}
