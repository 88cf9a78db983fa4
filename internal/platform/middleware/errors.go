package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// GenericErrorMessage is the body message for errors that carry no HTTP status.
const GenericErrorMessage = "Something went wrong!"

// ErrorResponse is the JSON body of every error the API returns.
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// HTTPErrorHandler renders errors as {"message": ...}. An *echo.HTTPError keeps
// its status and message; anything else is logged and answered with a 500.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		body := ErrorResponse{Message: GenericErrorMessage}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			switch m := he.Message.(type) {
			case string:
				body.Message = m
			case ErrorResponse:
				body = m
			case *ErrorResponse:
				body = *m
			default:
				body.Message = fmt.Sprintf("%v", m)
			}
		} else {
			rid, _ := c.Get(requestIDKey).(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Msg("unhandled error")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(code)
		} else {
			writeErr = c.JSON(code, body)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("failed to write error response")
		}
	}
}
