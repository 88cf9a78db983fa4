package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Logger writes one line per request and puts a logger tagged with the
// request id on the request context for zerolog.Ctx. Errors are handed to
// the echo error handler here so the logged status is the one sent.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			began := time.Now()
			rid, _ := c.Get(requestIDKey).(string)

			scoped := logger.With().Str("request_id", rid).Logger()
			req := c.Request().WithContext(scoped.WithContext(c.Request().Context()))
			c.SetRequest(req)

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			res := c.Response()
			var evt *zerolog.Event
			switch {
			case err != nil || res.Status >= 500:
				evt = scoped.Error().Err(err)
			case res.Status >= 400:
				evt = scoped.Warn()
			default:
				evt = scoped.Info()
			}
			evt.Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Int64("bytes_out", res.Size).
				Dur("latency", time.Since(began)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return nil
		}
	}
}
