package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"storefront-api/internal/apperror"
	"storefront-api/internal/idempotency"
)

const idempotencyKeyContextKey = "idempotency_key"

// RequireIdempotencyKey rejects a request without an Idempotency-Key header
// before its body is read, and keeps the trimmed key on the context.
func RequireIdempotencyKey() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := strings.TrimSpace(c.Request().Header.Get(idempotency.Header))
			if key == "" {
				return apperror.MissingIdempotencyKey()
			}
			c.Set(idempotencyKeyContextKey, key)
			return next(c)
		}
	}
}

func IdempotencyKey(c echo.Context) string {
	key, _ := c.Get(idempotencyKeyContextKey).(string)
	return key
}
