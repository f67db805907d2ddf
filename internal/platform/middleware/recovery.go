package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/inflammation/inflammation/internal/platform/metrics"
)

// Recovery converts a handler panic into a 500. The panic is logged with the
// request ID and counted against its route pattern.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				route := metrics.RoutePattern(c)
				metrics.PanicRecovered(route)

				ev := logger.Error().
					Str("method", c.Request().Method).
					Str("route", route).
					Interface("panic", r).
					Bytes("stack", debug.Stack())
				if rid, ok := c.Get("request_id").(string); ok {
					ev = ev.Str("request_id", rid)
				}
				if perr, ok := r.(error); ok {
					ev = ev.Err(perr)
				}
				ev.Msg("handler panicked")

				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}()
			return next(c)
		}
	}
}
