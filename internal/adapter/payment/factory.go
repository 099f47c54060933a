package payment

import (
	"github.com/rs/zerolog/log"

	"github.com/xiaot623/gogo/mediator/internal/config"
)

// NewProvider returns the checkout provider selected by the configuration.
func NewProvider(cfg *config.Config) Provider {
	if cfg.IsMock() || cfg.StripeSecretKey == "" {
		log.Info().Msg("no payment provider configured, using mock checkout provider")
		return NewMockProvider()
	}
	return NewStripeClient(cfg.StripeBaseURL, cfg.StripeSecretKey, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL, cfg.PaymentTimeout)
}
