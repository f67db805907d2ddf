package middleware

import (
	"github.com/labstack/echo/v4"
)

const hstsValue = "max-age=31536000"

// apiHeaders go on every response. The API serves JSON and patient record
// downloads only, so nothing it returns may be framed, sniffed, embedded or
// cached.
var apiHeaders = map[string]string{
	"X-Content-Type-Options":       "nosniff",
	"X-Frame-Options":              "DENY",
	"Content-Security-Policy":      "default-src 'none'; frame-ancestors 'none'",
	"Referrer-Policy":              "no-referrer",
	"Cross-Origin-Resource-Policy": "same-origin",
	"Cache-Control":                "no-store",
	"Pragma":                       "no-cache",
}

// SecurityHeaders sets apiHeaders, plus HSTS when the request reached us
// over TLS, directly or behind a proxy that sets X-Forwarded-Proto.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for k, v := range apiHeaders {
				h.Set(k, v)
			}
			if c.Scheme() == "https" {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			return next(c)
		}
	}
}
