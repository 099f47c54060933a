package payment

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/xiaot623/gogo/mediator/internal/metrics"
)

const checkoutPath = "/v1/checkout/sessions"

// StripeClient creates Stripe hosted checkout sessions.
type StripeClient struct {
	httpClient *resty.Client
	successURL string
	cancelURL  string
}

var _ Provider = (*StripeClient)(nil)

// NewStripeClient creates a new Stripe client.
func NewStripeClient(baseURL, secretKey, successURL, cancelURL string, timeout time.Duration) *StripeClient {
	return &StripeClient{
		httpClient: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetAuthToken(secretKey).
			SetHeader("User-Agent", "mediator/1.0").
			SetTimeout(timeout),
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// CreateCheckout creates a one line item checkout tagged with the session id.
func (c *StripeClient) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	form := map[string]string{
		"mode":                "payment",
		"success_url":         c.successURL + "?session_id={CHECKOUT_SESSION_ID}",
		"cancel_url":          c.cancelURL + "/" + req.SessionID,
		"client_reference_id": req.SessionID,
	}
	form["line_items[0][quantity]"] = "1"
	form["line_items[0][price_data][currency]"] = "usd"
	form["line_items[0][price_data][unit_amount]"] = strconv.FormatInt(req.AmountCents, 10)
	form["line_items[0][price_data][product_data][name]"] = "Settlement Agreement " + req.SessionCode
	form["metadata[session_id]"] = req.SessionID
	form["metadata[promo_code]"] = req.DiscountCode
	if req.CustomerMail != "" {
		form["customer_email"] = req.CustomerMail
	}

	start := time.Now()
	var result Checkout
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&result).
		Post(checkoutPath)
	metrics.UpstreamDuration.WithLabelValues("payment").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamCalls.WithLabelValues("payment", "error").Inc()
		return nil, fmt.Errorf("failed to create checkout: %w", err)
	}
	if resp.IsError() {
		metrics.UpstreamCalls.WithLabelValues("payment", "error").Inc()
		return nil, fmt.Errorf("checkout API error (status %d): %s", resp.StatusCode(), resp.String())
	}
	if result.ID == "" || result.URL == "" {
		metrics.UpstreamCalls.WithLabelValues("payment", "error").Inc()
		return nil, fmt.Errorf("checkout API returned no id or url")
	}
	metrics.UpstreamCalls.WithLabelValues("payment", "ok").Inc()
	return &result, nil
}
