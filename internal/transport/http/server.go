// Package http provides the HTTP server implementation for the mediator.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/xiaot623/gogo/mediator/internal/config"
	"github.com/xiaot623/gogo/mediator/internal/push"
	"github.com/xiaot623/gogo/mediator/internal/ratelimit"
	"github.com/xiaot623/gogo/mediator/internal/service"
	v1 "github.com/xiaot623/gogo/mediator/internal/transport/http/v1"
	"github.com/xiaot623/gogo/mediator/internal/transport/http/webhooks"
)

// NewServer creates and configures the HTTP server.
// It serves the public API, provider webhooks and the metrics endpoint.
func NewServer(svc *service.Service, pushServer *push.Server, limiter ratelimit.Limiter, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Error != nil || v.Status >= 500 {
				evt = log.Error().Err(v.Error)
			}
			evt.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, v1.PartyHeader},
	}))

	// Handlers
	v1Handler := v1.NewHandler(svc, pushServer)
	webhookHandler := webhooks.NewHandler(svc, limiter, webhooks.Options{
		ESignSecret:   cfg.DocuSignHMACSecret,
		PaymentSecret: cfg.StripeWebhookSecret,
	})

	// Register Routes
	v1Handler.RegisterRoutes(e)
	webhookHandler.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}
