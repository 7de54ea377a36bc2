package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"storefront-api/internal/metrics"
)

// Metrics records request counts and latency labelled by route template,
// so /orders/:id is one series no matter how many ids are requested.
func Metrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				// render now so the recorded status is the one sent; outer
				// middleware still sees err and the error handler skips
				// committed responses
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method

			m.Requests.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
			m.Latency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
