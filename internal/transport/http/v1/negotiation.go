package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/mediator/internal/domain"
	"github.com/xiaot623/gogo/mediator/internal/transport/http/respond"
)

// RecordPositions stores both positions, or the caller's own one.
// POST /v1/sessions/:session_id/positions
func (h *Handler) RecordPositions(c echo.Context) error {
	var req domain.PositionsRequest
	if err := h.bind(c, &req); err != nil {
		return respond.Error(c, err)
	}
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	var (
		sess *domain.Session
		err  error
	)
	switch {
	case req.PartyA != "" && req.PartyB != "":
		sess, err = h.service.RecordPartyPositions(ctx, sessionID, callerID(c), req.PartyA, req.PartyB)
	case req.Position != "":
		sess, err = h.service.RecordPartyPosition(ctx, sessionID, callerID(c), req.Position)
	default:
		err = domain.Validation("either position or both party_a and party_b are required")
	}
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// GenerateSettlement generates the settlement document.
// POST /v1/sessions/:session_id/settlement
func (h *Handler) GenerateSettlement(c echo.Context) error {
	sess, err := h.service.GenerateSettlement(c.Request().Context(), c.Param("session_id"), callerID(c))
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// DownloadSettlement returns the document as a plain text attachment.
// GET /v1/sessions/:session_id/settlement
func (h *Handler) DownloadSettlement(c echo.Context) error {
	text, filename, err := h.service.SettlementDocument(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return respond.Error(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.String(http.StatusOK, text)
}

// SetAmount sets the settlement amount.
// PUT /v1/sessions/:session_id/amount
func (h *Handler) SetAmount(c echo.Context) error {
	var req domain.AmountRequest
	if err := h.bind(c, &req); err != nil {
		return respond.Error(c, err)
	}
	sess, err := h.service.SetSettlementAmount(c.Request().Context(), c.Param("session_id"), callerID(c), req.Amount)
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// SubmitEdit appends the caller's edit.
// POST /v1/sessions/:session_id/edits
func (h *Handler) SubmitEdit(c echo.Context) error {
	var req domain.EditRequest
	if err := h.bind(c, &req); err != nil {
		return respond.Error(c, err)
	}
	sess, err := h.service.SubmitEdit(c.Request().Context(), c.Param("session_id"), callerID(c), req.Text)
	if err != nil {
		return respond.Error(c, err)
	}
	round := sess.EditRound()
	return c.JSON(http.StatusOK, domain.SessionView{
		Session:         sess,
		EditRound:       round,
		EditsComplete:   round.Complete(),
		PaymentEligible: sess.PaymentEligible(),
	})
}
