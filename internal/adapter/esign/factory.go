package esign

import (
	"github.com/rs/zerolog/log"

	"github.com/xiaot623/gogo/mediator/internal/config"
)

// NewProvider returns the signature provider selected by the configuration.
func NewProvider(cfg *config.Config) (Provider, error) {
	if cfg.IsMock() || cfg.DocuSignIntegrationKey == "" {
		log.Info().Msg("no signature provider configured, using mock envelope provider")
		return NewMockProvider(), nil
	}
	client, err := NewDocuSignClient(DocuSignConfig{
		IntegrationKey: cfg.DocuSignIntegrationKey,
		UserID:         cfg.DocuSignUserID,
		AccountID:      cfg.DocuSignAccountID,
		PrivateKeyPEM:  cfg.DocuSignPrivateKey,
		BaseURL:        cfg.DocuSignBaseURL,
		OAuthBaseURL:   cfg.DocuSignOAuthBaseURL,
		Timeout:        cfg.DocuSignTimeout,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
