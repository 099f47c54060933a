// Package respond writes API errors in the mediator's JSON shape.
package respond

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/xiaot623/gogo/mediator/internal/domain"
)

// ErrorBody is the error envelope returned by every endpoint.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a stable code and a caller-safe message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidTransition, domain.KindConflict:
		return http.StatusConflict
	case domain.KindEditLimitExceeded:
		return http.StatusUnprocessableEntity
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindUpstream:
		return http.StatusBadGateway
	case domain.KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// Error writes err. Untyped errors become a generic 500 and are only logged.
func Error(c echo.Context, err error) error {
	var de *domain.Error
	if !errors.As(err, &de) {
		log.Error().Err(err).Str("method", c.Request().Method).Str("path", c.Path()).Msg("request failed")
		return c.JSON(http.StatusInternalServerError, ErrorBody{Error: ErrorDetail{
			Code:    "internal_error",
			Message: "an internal error occurred",
		}})
	}
	if de.Err != nil {
		log.Warn().Err(de.Err).Str("code", de.Code).Str("path", c.Path()).Msg("upstream failure")
	}
	return c.JSON(StatusFor(de.Kind), ErrorBody{Error: ErrorDetail{Code: de.Code, Message: de.Message}})
}

// Invalid describes the first failing field of a validator error.
func Invalid(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return domain.Validation(fe.Field() + " failed the " + fe.Tag() + " rule")
	}
	return domain.Validation("invalid request body")
}
