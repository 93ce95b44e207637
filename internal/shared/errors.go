package shared

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	ErrNotFound = errors.New("not found")

	// Voice session error taxonomy. Callers match with errors.Is; the
	// concrete kind stays visible in logs while the UI only ever sees a
	// single message string.
	ErrConnectionFailed      = errors.New("connection failed")
	ErrConnectionTimeout     = errors.New("connection timeout")
	ErrCaptureUnavailable    = errors.New("capture unavailable")
	ErrMalformedAudioPayload = errors.New("malformed audio payload")
	ErrRemoteReported        = errors.New("remote reported error")
	ErrProtocolDecode        = errors.New("protocol decode error")
)

type APIError struct {
	Code    string `json:"code" example:"invalid_request"`
	Message string `json:"message" example:"Invalid request body"`
	Details any    `json:"details,omitempty"`
}

func NewAPIError(code, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
	}
}

func (e *APIError) WithDetails(details any) *APIError {
	e.Details = details
	return e
}

func (e *APIError) ToHTTP(status int) *echo.HTTPError {
	return echo.NewHTTPError(status, e)
}

func BadRequest(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusBadRequest)
}

func NotFoundError(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusNotFound)
}

func InternalError(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusInternalServerError)
}
