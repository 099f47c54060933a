package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/mediator/internal/domain"
	"github.com/xiaot623/gogo/mediator/internal/transport/http/respond"
)

// GetSessionMessages retrieves messages for a session.
// GET /v1/sessions/:session_id/messages
func (h *Handler) GetSessionMessages(c echo.Context) error {
	sessionID := c.Param("session_id")
	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}
	before := c.QueryParam("before")

	messages, err := h.service.GetMessages(c.Request().Context(), sessionID, limit, before)
	if err != nil {
		return respond.Error(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages": messages,
		"has_more": len(messages) == limit,
	})
}

// PostMessage appends a party message.
// POST /v1/sessions/:session_id/messages
func (h *Handler) PostMessage(c echo.Context) error {
	var req domain.CreateMessageRequest
	if err := h.bind(c, &req); err != nil {
		return respond.Error(c, err)
	}
	msg, err := h.service.PostMessage(c.Request().Context(), c.Param("session_id"), callerID(c), req)
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// GetMetrics returns the conversation metrics and recommendations.
// GET /v1/sessions/:session_id/metrics
func (h *Handler) GetMetrics(c echo.Context) error {
	report, err := h.service.GetConversationReport(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// AdvanceStage moves the negotiation stage forward.
// POST /v1/sessions/:session_id/stage/advance
func (h *Handler) AdvanceStage(c echo.Context) error {
	report, err := h.service.AdvanceStage(c.Request().Context(), c.Param("session_id"), callerID(c))
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// GetInsights returns extracted dispute information.
// GET /v1/sessions/:session_id/insights
func (h *Handler) GetInsights(c echo.Context) error {
	info, err := h.service.ExtractInfo(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

// RequestMediator asks the AI mediator for a contribution.
// POST /v1/sessions/:session_id/mediator
func (h *Handler) RequestMediator(c echo.Context) error {
	var req domain.MediatorRequest
	if err := h.bind(c, &req); err != nil {
		return respond.Error(c, err)
	}
	msg, err := h.service.RequestMediator(c.Request().Context(), c.Param("session_id"), callerID(c), req.Action)
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}
