package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/mediator/internal/domain"
	"github.com/xiaot623/gogo/mediator/internal/transport/http/respond"
)

// CreateSession opens a session with the caller as party A.
// POST /v1/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	var req domain.CreateSessionRequest
	if err := h.bind(c, &req); err != nil {
		return respond.Error(c, err)
	}
	sess, err := h.service.CreateSession(c.Request().Context(), callerID(c), req)
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusCreated, sess)
}

// JoinSession joins a waiting session by code.
// POST /v1/sessions/join
func (h *Handler) JoinSession(c echo.Context) error {
	var req domain.JoinSessionRequest
	if err := h.bind(c, &req); err != nil {
		return respond.Error(c, err)
	}
	sess, err := h.service.JoinSession(c.Request().Context(), req.Code, callerID(c))
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// GetSession returns the session with derived state.
// GET /v1/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	view, err := h.service.GetSessionView(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// CancelSession cancels a waiting or active session.
// POST /v1/sessions/:session_id/cancel
func (h *Handler) CancelSession(c echo.Context) error {
	sess, err := h.service.CancelSession(c.Request().Context(), c.Param("session_id"), callerID(c))
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// FailSession marks a session as failed.
// POST /v1/sessions/:session_id/fail
func (h *Handler) FailSession(c echo.Context) error {
	var req domain.FailRequest
	if err := h.bind(c, &req); err != nil {
		return respond.Error(c, err)
	}
	sess, err := h.service.FailSession(c.Request().Context(), c.Param("session_id"), callerID(c), req.Reason)
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// Subscribe streams session events over a websocket.
// GET /v1/sessions/:session_id/ws
func (h *Handler) Subscribe(c echo.Context) error {
	sessionID := c.Param("session_id")
	if _, err := h.service.GetSession(c.Request().Context(), sessionID); err != nil {
		return respond.Error(c, err)
	}
	return h.push.Subscribe(c, sessionID)
}
