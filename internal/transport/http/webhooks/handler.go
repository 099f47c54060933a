// Package webhooks provides the provider-facing callback endpoints.
// These routes are called by the payment and e-signature providers only.
package webhooks

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/xiaot623/gogo/mediator/internal/adapter/esign"
	"github.com/xiaot623/gogo/mediator/internal/adapter/payment"
	"github.com/xiaot623/gogo/mediator/internal/domain"
	"github.com/xiaot623/gogo/mediator/internal/metrics"
	"github.com/xiaot623/gogo/mediator/internal/ratelimit"
	"github.com/xiaot623/gogo/mediator/internal/service"
)

const maxBodyBytes = 1 << 20

// Options configures webhook verification.
type Options struct {
	ESignSecret   string
	PaymentSecret string
}

// Handler handles provider webhook deliveries.
type Handler struct {
	service *service.Service
	limiter ratelimit.Limiter
	opts    Options
	now     func() time.Time
}

// NewHandler creates a new webhook handler.
func NewHandler(service *service.Service, limiter ratelimit.Limiter, opts Options) *Handler {
	return &Handler{
		service: service,
		limiter: limiter,
		opts:    opts,
		now:     time.Now,
	}
}

// RegisterRoutes registers webhook routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/webhooks", h.rateLimit)
	g.POST("/esign", h.ESignEvent)
	g.POST("/payment", h.PaymentEvent)
}

// rateLimit rejects deliveries above the per-source budget. Limiter
// failures let the request through.
func (h *Handler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.limiter == nil {
			return next(c)
		}
		ok, err := h.limiter.Allow(c.Request().Context(), c.RealIP())
		if err != nil {
			log.Warn().Err(err).Str("ip", c.RealIP()).Msg("rate limiter unavailable")
			return next(c)
		}
		if !ok {
			metrics.WebhookEvents.WithLabelValues(provider(c.Path()), "", "rate_limited").Inc()
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		}
		return next(c)
	}
}

func provider(path string) string {
	switch path {
	case "/webhooks/esign":
		return "esign"
	case "/webhooks/payment":
		return "payment"
	}
	return "unknown"
}

// ESignEvent applies an envelope event.
// POST /webhooks/esign
func (h *Handler) ESignEvent(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable body"})
	}
	if err := esign.VerifySignature(body, c.Request().Header.Get(esign.SignatureHeader), h.opts.ESignSecret); err != nil {
		metrics.WebhookEvents.WithLabelValues("esign", "", "unauthorized").Inc()
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
	}

	ev, err := esign.ParseEvent(body)
	if err != nil {
		log.Warn().Err(err).Msg("malformed envelope event")
		metrics.WebhookEvents.WithLabelValues("esign", "", "malformed").Inc()
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}

	outcome, err := h.service.ApplyEnvelopeEvent(c.Request().Context(), *ev)
	if err != nil {
		log.Error().Err(err).Str("envelope_id", ev.EnvelopeID).Str("event", string(ev.Type)).Msg("failed to apply envelope event")
		metrics.WebhookEvents.WithLabelValues("esign", string(ev.Type), "error").Inc()
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to apply event"})
	}
	metrics.WebhookEvents.WithLabelValues("esign", string(ev.Type), string(outcome)).Inc()
	return c.JSON(http.StatusOK, map[string]string{"status": string(outcome)})
}

// PaymentEvent confirms a completed checkout.
// POST /webhooks/payment
func (h *Handler) PaymentEvent(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable body"})
	}
	if h.opts.PaymentSecret != "" {
		sig := c.Request().Header.Get("Stripe-Signature")
		if err := payment.VerifySignature(body, sig, h.opts.PaymentSecret, h.now()); err != nil {
			metrics.WebhookEvents.WithLabelValues("payment", "", "unauthorized").Inc()
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		}
	}

	ev, err := payment.ParseEvent(body)
	if err != nil {
		log.Warn().Err(err).Msg("malformed payment event")
		metrics.WebhookEvents.WithLabelValues("payment", "", "malformed").Inc()
		return c.JSON(http.StatusOK, map[string]string{"status": string(service.OutcomeIgnored)})
	}
	if ev.Type != payment.EventCheckoutCompleted {
		metrics.WebhookEvents.WithLabelValues("payment", ev.Type, string(service.OutcomeIgnored)).Inc()
		return c.JSON(http.StatusOK, map[string]string{"status": string(service.OutcomeIgnored)})
	}
	if !ev.Paid() {
		log.Info().Str("checkout_id", ev.Data.Object.ID).Str("payment_status", ev.Data.Object.PaymentStatus).
			Msg("checkout completed without payment")
		metrics.WebhookEvents.WithLabelValues("payment", ev.Type, string(service.OutcomeIgnored)).Inc()
		return c.JSON(http.StatusOK, map[string]string{"status": string(service.OutcomeIgnored)})
	}

	changed, err := h.service.ConfirmPayment(c.Request().Context(), ev.Data.Object.ID)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			log.Warn().Str("checkout_id", ev.Data.Object.ID).Str("metadata_session_id", ev.SessionID()).
				Msg("payment event for unknown checkout")
			metrics.WebhookEvents.WithLabelValues("payment", ev.Type, string(service.OutcomeIgnored)).Inc()
			return c.JSON(http.StatusOK, map[string]string{"status": string(service.OutcomeIgnored)})
		}
		log.Error().Err(err).Str("checkout_id", ev.Data.Object.ID).Msg("failed to confirm payment")
		metrics.WebhookEvents.WithLabelValues("payment", ev.Type, "error").Inc()
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to confirm payment"})
	}

	outcome := service.OutcomeNoop
	if changed {
		outcome = service.OutcomeApplied
	}
	metrics.WebhookEvents.WithLabelValues("payment", ev.Type, string(outcome)).Inc()
	return c.JSON(http.StatusOK, map[string]string{"status": string(outcome)})
}

func readBody(c echo.Context) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodyBytes {
		return nil, errors.New("body too large")
	}
	return body, nil
}
