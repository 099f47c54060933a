package llm

import (
	"github.com/rs/zerolog/log"

	"github.com/xiaot623/gogo/mediator/internal/config"
)

// NewGenerator creates a Generator based on MEDIATOR_MODE.
// If MEDIATOR_MODE=MOCK, returns a MockClient; otherwise returns a real Client.
func NewGenerator(cfg *config.Config) Generator {
	if cfg.IsMock() {
		log.Info().Msg("MEDIATOR_MODE=MOCK detected, using mock LLM client")
		return NewMockClient()
	}
	return NewClient(Options{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.OpenAIModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
		Timeout:     cfg.LLMTimeout,
	})
}
