// Package v1 provides the public mediation API.
package v1

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/mediator/internal/domain"
	"github.com/xiaot623/gogo/mediator/internal/push"
	"github.com/xiaot623/gogo/mediator/internal/service"
	"github.com/xiaot623/gogo/mediator/internal/transport/http/respond"
)

// PartyHeader carries the caller identity resolved against the party slots.
const PartyHeader = "X-Party-ID"

// Handler handles HTTP requests.
type Handler struct {
	service  *service.Service
	push     *push.Server
	validate *validator.Validate
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service, pushServer *push.Server) *Handler {
	return &Handler{
		service:  service,
		push:     pushServer,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the public routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/v1")

	// Sessions
	g.POST("/sessions", h.CreateSession)
	g.POST("/sessions/join", h.JoinSession)
	g.GET("/sessions/:session_id", h.GetSession)
	g.POST("/sessions/:session_id/cancel", h.CancelSession)
	g.POST("/sessions/:session_id/fail", h.FailSession)
	g.GET("/sessions/:session_id/ws", h.Subscribe)

	// Negotiation
	g.POST("/sessions/:session_id/positions", h.RecordPositions)
	g.POST("/sessions/:session_id/settlement", h.GenerateSettlement)
	g.GET("/sessions/:session_id/settlement", h.DownloadSettlement)
	g.PUT("/sessions/:session_id/amount", h.SetAmount)
	g.POST("/sessions/:session_id/edits", h.SubmitEdit)

	// Conversation
	g.GET("/sessions/:session_id/messages", h.GetSessionMessages)
	g.POST("/sessions/:session_id/messages", h.PostMessage)
	g.GET("/sessions/:session_id/metrics", h.GetMetrics)
	g.POST("/sessions/:session_id/stage/advance", h.AdvanceStage)
	g.GET("/sessions/:session_id/insights", h.GetInsights)
	g.POST("/sessions/:session_id/mediator", h.RequestMediator)

	// Payment and signature
	g.POST("/sessions/:session_id/checkout", h.CreateCheckout)
	g.POST("/sessions/:session_id/envelope", h.CreateEnvelope)
	g.GET("/sessions/:session_id/envelope", h.GetEnvelope)

	// Identity
	g.PUT("/profiles/:profile_id", h.UpsertProfile)
	g.GET("/profiles/:profile_id", h.GetProfile)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

func callerID(c echo.Context) string {
	return c.Request().Header.Get(PartyHeader)
}

// bind decodes and validates a request body.
func (h *Handler) bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domain.Validation("invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return respond.Invalid(err)
	}
	return nil
}
