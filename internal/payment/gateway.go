package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mEsam147/new-Ecommerce-sub000/internal/errs"
)

// IntentMetadata is the closed set of keys attached to a payment intent.
// Webhook handlers rely on these to correlate gateway events with orders.
type IntentMetadata struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
}

type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

// Gateway is the payment-provider surface the core depends on. It is
// injected everywhere; nothing holds a process-wide client.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, currency string, meta IntentMetadata) (*Intent, error)
	CreateRefund(ctx context.Context, intentID string, amount decimal.Decimal, reason string) (string, error)
}

// Client talks to the provider's REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, currency string, meta IntentMetadata) (*Intent, error) {
	var out Intent
	err := c.post(ctx, "/v1/payment_intents", map[string]any{
		"amount":   amount.StringFixed(2),
		"currency": currency,
		"metadata": meta,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateRefund(ctx context.Context, intentID string, amount decimal.Decimal, reason string) (string, error) {
	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	err := c.post(ctx, "/v1/refunds", map[string]any{
		"payment_intent": intentID,
		"amount":         amount.StringFixed(2),
		"reason":         reason,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode gateway request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Gateway("payment gateway unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errs.Gateway(fmt.Sprintf("payment gateway returned %d for %s", resp.StatusCode, path), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Gateway("decode gateway response", err)
	}
	return nil
}
