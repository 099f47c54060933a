// Package payment talks to the checkout provider.
package payment

import (
	"context"
	"strings"
)

const (
	// BasePriceCents is the price of one settlement document.
	BasePriceCents int64 = 499
	// DiscountPriceCents applies with DiscountCode.
	DiscountPriceCents int64 = 249
	// DiscountCode is the first-purchase promotion.
	DiscountCode = "FIRST25"
)

// Price returns the amount in cents for an optional discount code.
// Unknown codes are charged the base price.
func Price(code string) int64 {
	if strings.TrimSpace(code) == DiscountCode {
		return DiscountPriceCents
	}
	return BasePriceCents
}

// CheckoutRequest describes a checkout for one mediation session.
type CheckoutRequest struct {
	SessionID    string
	SessionCode  string
	AmountCents  int64
	DiscountCode string
	CustomerMail string
}

// Checkout is the provider's answer to a checkout request.
type Checkout struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Provider creates hosted checkouts.
type Provider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
}
