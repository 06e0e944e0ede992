package api

import (
	echo "github.com/labstack/echo/v5"
)

// securityHeaders returns middleware setting the standard security response
// headers. Responses carry operational state (updates, stats, alerts) and
// must never be cached by intermediaries.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Cache-Control", "no-store")
			return next(c)
		}
	}
}
