package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/mediator/internal/domain"
	"github.com/xiaot623/gogo/mediator/internal/transport/http/respond"
)

// CreateCheckout starts payment for the settlement.
// POST /v1/sessions/:session_id/checkout
func (h *Handler) CreateCheckout(c echo.Context) error {
	var req domain.CheckoutRequest
	if err := h.bind(c, &req); err != nil {
		return respond.Error(c, err)
	}
	resp, err := h.service.CreateCheckout(c.Request().Context(), c.Param("session_id"), callerID(c), req.DiscountCode)
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// CreateEnvelope routes the settlement for signature.
// POST /v1/sessions/:session_id/envelope
func (h *Handler) CreateEnvelope(c echo.Context) error {
	env, err := h.service.CreateEnvelope(c.Request().Context(), c.Param("session_id"), callerID(c))
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusOK, envelopeView(env))
}

// GetEnvelope returns the envelope with its effective status.
// GET /v1/sessions/:session_id/envelope
func (h *Handler) GetEnvelope(c echo.Context) error {
	env, err := h.service.GetEnvelope(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusOK, envelopeView(env))
}

func envelopeView(env *domain.Envelope) map[string]interface{} {
	return map[string]interface{}{
		"envelope":         env,
		"effective_status": env.EffectiveStatus(),
	}
}

// UpsertProfile provisions a party profile.
// PUT /v1/profiles/:profile_id
func (h *Handler) UpsertProfile(c echo.Context) error {
	var req domain.ProfileRequest
	if err := h.bind(c, &req); err != nil {
		return respond.Error(c, err)
	}
	profile, err := h.service.UpsertProfile(c.Request().Context(), c.Param("profile_id"), req)
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusOK, profile)
}

// GetProfile returns a party profile.
// GET /v1/profiles/:profile_id
func (h *Handler) GetProfile(c echo.Context) error {
	profile, err := h.service.GetProfile(c.Request().Context(), c.Param("profile_id"))
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusOK, profile)
}
