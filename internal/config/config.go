// Package config provides configuration for the mediator.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds the mediator configuration.
type Config struct {
	// Service settings
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"mediator"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	Mode            string        `env:"MEDIATOR_MODE"`

	// Database
	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:mediator.db?cache=shared&mode=rwc&_busy_timeout=5000"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	// AI provider
	OpenAIAPIKey   string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL  string        `env:"OPENAI_BASE_URL"`
	OpenAIModel    string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	LLMTemperature float32       `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	LLMMaxTokens   int           `env:"LLM_MAX_TOKENS" envDefault:"1000"`
	LLMTimeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`

	// Payment provider
	StripeSecretKey     string        `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string        `env:"STRIPE_WEBHOOK_SECRET"`
	StripeBaseURL       string        `env:"STRIPE_BASE_URL" envDefault:"https://api.stripe.com"`
	CheckoutSuccessURL  string        `env:"CHECKOUT_SUCCESS_URL" envDefault:"http://localhost:5173/payment-success"`
	CheckoutCancelURL   string        `env:"CHECKOUT_CANCEL_URL" envDefault:"http://localhost:5173/checkout"`
	PaymentTimeout      time.Duration `env:"PAYMENT_TIMEOUT" envDefault:"15s"`

	// Signature provider
	DocuSignIntegrationKey string        `env:"DOCUSIGN_INTEGRATION_KEY"`
	DocuSignUserID         string        `env:"DOCUSIGN_USER_ID"`
	DocuSignAccountID      string        `env:"DOCUSIGN_ACCOUNT_ID"`
	DocuSignPrivateKey     string        `env:"DOCUSIGN_PRIVATE_KEY"`
	DocuSignBaseURL        string        `env:"DOCUSIGN_BASE_URL" envDefault:"https://demo.docusign.net"`
	DocuSignOAuthBaseURL   string        `env:"DOCUSIGN_OAUTH_BASE_URL" envDefault:"https://account-d.docusign.com"`
	DocuSignHMACSecret     string        `env:"DOCUSIGN_HMAC_SECRET"`
	DocuSignTimeout        time.Duration `env:"DOCUSIGN_TIMEOUT" envDefault:"20s"`

	// Webhook rate limiting
	RedisURL          string        `env:"REDIS_URL"`
	WebhookRateLimit  int           `env:"WEBHOOK_RATE_LIMIT" envDefault:"30"`
	WebhookRateWindow time.Duration `env:"WEBHOOK_RATE_WINDOW" envDefault:"1m"`

	// Caches
	ProfileCacheSize int `env:"PROFILE_CACHE_SIZE" envDefault:"1024"`

	// Push
	WSPingInterval time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
	WSWriteTimeout time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`
	WSReadTimeout  time.Duration `env:"WS_READ_TIMEOUT" envDefault:"60s"`
}

// ModeMock selects the in-process provider fakes.
const ModeMock = "MOCK"

// IsMock reports whether external providers are replaced by mocks.
func (c *Config) IsMock() bool {
	return strings.EqualFold(c.Mode, ModeMock)
}

// Load reads optional .env files and parses environment variables into Config.
func Load() (*Config, error) {
	loadEnvFiles()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cfg.DocuSignPrivateKey = strings.ReplaceAll(strings.TrimSpace(cfg.DocuSignPrivateKey), `\n`, "\n")
	if cfg.WebhookRateLimit <= 0 {
		cfg.WebhookRateLimit = 30
	}
	if cfg.WebhookRateWindow <= 0 {
		cfg.WebhookRateWindow = time.Minute
	}
	if cfg.ProfileCacheSize <= 0 {
		cfg.ProfileCacheSize = 1024
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would accept unauthenticated
// provider webhooks. Mock mode runs without secrets.
func (c *Config) Validate() error {
	if c.IsMock() {
		return nil
	}
	var missing []string
	if c.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if c.DocuSignHMACSecret == "" {
		missing = append(missing, "DOCUSIGN_HMAC_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("webhook secrets required outside %s mode: %s", ModeMock, strings.Join(missing, ", "))
	}
	return nil
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
